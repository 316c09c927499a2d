package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Harsh-BH/codepad/internal/domain"
)

// LanguageCatalog reports the supported languages.
type LanguageCatalog func() []domain.LanguageInfo

// LanguageHandler handles language listing requests.
type LanguageHandler struct {
	catalog LanguageCatalog
}

// NewLanguageHandler creates a new LanguageHandler.
func NewLanguageHandler(catalog LanguageCatalog) *LanguageHandler {
	return &LanguageHandler{catalog: catalog}
}

// List handles GET /api/v1/languages
func (h *LanguageHandler) List(c *gin.Context) {
	var languages []domain.LanguageInfo
	if h.catalog != nil {
		languages = h.catalog()
	} else {
		for _, l := range domain.Languages {
			languages = append(languages, domain.LanguageInfo{Name: l, Extensions: l.Extensions()})
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"languages": languages,
		"default":   domain.DefaultLanguage,
	})
}
