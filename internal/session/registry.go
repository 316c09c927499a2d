package session

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Harsh-BH/codepad/internal/domain"
	"github.com/Harsh-BH/codepad/internal/metrics"
)

// Registry tracks open sessions by document ID.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session

	historyCapacity int
	maxSessions     int
	jobs            Submitter
	logger          *zap.Logger
}

// NewRegistry creates a registry. maxSessions <= 0 means unlimited.
func NewRegistry(jobs Submitter, historyCapacity, maxSessions int, logger *zap.Logger) *Registry {
	return &Registry{
		sessions:        make(map[uuid.UUID]*Session),
		historyCapacity: historyCapacity,
		maxSessions:     maxSessions,
		jobs:            jobs,
		logger:          logger,
	}
}

// Create opens a new document session.
func (r *Registry) Create(filename, text string) (*Session, error) {
	if len(text) > MaxDocumentBytes {
		return nil, domain.ErrPayloadTooLarge
	}

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.maxSessions > 0 && len(r.sessions) >= r.maxSessions {
		return nil, domain.ErrTooManySessions
	}

	s := New(id, filename, text, r.historyCapacity, r.jobs, r.logger)
	r.sessions[id] = s
	metrics.SessionsActive.Inc()

	r.logger.Info("Document opened",
		zap.String("document_id", id.String()),
		zap.String("filename", filename),
	)
	return s, nil
}

// Get returns the session for id.
func (r *Registry) Get(id uuid.UUID) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

// Close closes and forgets the session for id.
func (r *Registry) Close(id uuid.UUID) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return domain.ErrSessionNotFound
	}

	s.Close()
	metrics.SessionsActive.Dec()
	r.logger.Info("Document closed", zap.String("document_id", id.String()))
	return nil
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll closes every session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[uuid.UUID]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
		metrics.SessionsActive.Dec()
	}
}
