package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Harsh-BH/codepad/internal/domain"
	"github.com/Harsh-BH/codepad/internal/session"
)

// CreateDocumentRequest is the body of POST /documents and POST /documents/:id/open.
type CreateDocumentRequest struct {
	Filename string `json:"filename" binding:"required"`
	Text     string `json:"text"`
}

// EditRequest is the body of PUT /documents/:id/text.
type EditRequest struct {
	Text *string `json:"text" binding:"required"`
}

// RunResponse is returned by POST /documents/:id/run without waiting.
type RunResponse struct {
	DocumentID uuid.UUID     `json:"document_id"`
	Status     domain.Status `json:"status"`
}

// DocumentHandler handles HTTP requests for open documents.
type DocumentHandler struct {
	registry *session.Registry
	logger   *zap.Logger
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(registry *session.Registry, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{registry: registry, logger: logger}
}

// Create handles POST /api/v1/documents
func (h *DocumentHandler) Create(c *gin.Context) {
	var req CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	s, err := h.registry.Create(req.Filename, req.Text)
	if err != nil {
		h.writeError(c, err)
		return
	}
	snap, err := s.Snapshot(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, snap)
}

// Get handles GET /api/v1/documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	snap, err := s.Snapshot(c.Request.Context())
	h.respond(c, snap, err)
}

// Edit handles PUT /api/v1/documents/:id/text
func (h *DocumentHandler) Edit(c *gin.Context) {
	var req EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	snap, err := s.Edit(c.Request.Context(), *req.Text)
	h.respond(c, snap, err)
}

// Open handles POST /api/v1/documents/:id/open
func (h *DocumentHandler) Open(c *gin.Context) {
	var req CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	snap, err := s.Open(c.Request.Context(), req.Filename, req.Text)
	h.respond(c, snap, err)
}

// Undo handles POST /api/v1/documents/:id/undo
func (h *DocumentHandler) Undo(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	snap, err := s.Undo(c.Request.Context())
	h.respond(c, snap, err)
}

// Redo handles POST /api/v1/documents/:id/redo
func (h *DocumentHandler) Redo(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	snap, err := s.Redo(c.Request.Context())
	h.respond(c, snap, err)
}

// Run handles POST /api/v1/documents/:id/run
// With ?wait=true the response carries the execution result; otherwise the
// run is accepted and its result is delivered on the stream.
func (h *DocumentHandler) Run(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	results, err := s.Run(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	if c.Query("wait") != "true" {
		c.JSON(http.StatusAccepted, RunResponse{DocumentID: s.ID(), Status: domain.StatusRunning})
		return
	}

	select {
	case result := <-results:
		c.JSON(http.StatusOK, result)
	case <-c.Request.Context().Done():
		// The execution keeps running; its result is recorded on the session.
		h.logger.Debug("Client left before execution finished", zap.String("document_id", s.ID().String()))
	}
}

// Delete handles DELETE /api/v1/documents/:id
func (h *DocumentHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.registry.Close(id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DocumentHandler) lookup(c *gin.Context) (*session.Session, bool) {
	id, ok := parseID(c)
	if !ok {
		return nil, false
	}
	s, err := h.registry.Get(id)
	if err != nil {
		h.writeError(c, err)
		return nil, false
	}
	return s, true
}

func (h *DocumentHandler) respond(c *gin.Context, snap session.Snapshot, err error) {
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *DocumentHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrSessionClosed):
		c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
	case errors.Is(err, domain.ErrNothingToUndo), errors.Is(err, domain.ErrNothingToRedo):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrExecutionInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrEmptySource):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrPayloadTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrPoolBusy), errors.Is(err, domain.ErrPoolStopped), errors.Is(err, domain.ErrTooManySessions):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable"})
	default:
		h.logger.Error("Document request failed", zap.Error(err), zap.String("path", c.FullPath()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid document ID format"})
		return uuid.Nil, false
	}
	return id, true
}
