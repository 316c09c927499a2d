package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Harsh-BH/codepad/internal/delivery/http/middleware"
	"github.com/Harsh-BH/codepad/internal/session"
)

// maxBodyBytes leaves room for JSON escaping on top of the document size limit.
const maxBodyBytes = 2 * session.MaxDocumentBytes

// RouterDeps holds everything the HTTP layer needs.
type RouterDeps struct {
	Registry        *session.Registry
	Languages       LanguageCatalog
	HealthChecks    map[string]HealthCheck
	Strategies      []string
	Logger          *zap.Logger
	RateLimitPerMin int
	CORSOrigins     []string
	JWTSecret       string
}

// NewRouter creates and configures the Gin router with all routes and middleware.
func NewRouter(deps *RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(deps.CORSOrigins))
	router.Use(middleware.Logger(deps.Logger))

	// Metrics endpoint (no rate limiting)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Health check (no rate limiting, no auth)
		healthHandler := NewHealthHandler(deps.HealthChecks, deps.Strategies, deps.Logger)
		v1.GET("/health", healthHandler.Health)

		// Languages
		langHandler := NewLanguageHandler(deps.Languages)
		v1.GET("/languages", langHandler.List)

		// Documents (authenticated, rate limited)
		docs := v1.Group("/documents")
		docs.Use(middleware.BearerAuth(deps.JWTSecret))
		docs.Use(middleware.RateLimiter(deps.RateLimitPerMin))
		docs.Use(middleware.BodySizeLimit(maxBodyBytes))

		docHandler := NewDocumentHandler(deps.Registry, deps.Logger)
		docs.POST("", docHandler.Create)
		docs.GET("/:id", docHandler.Get)
		docs.PUT("/:id/text", docHandler.Edit)
		docs.POST("/:id/open", docHandler.Open)
		docs.POST("/:id/undo", docHandler.Undo)
		docs.POST("/:id/redo", docHandler.Redo)
		docs.POST("/:id/run", docHandler.Run)
		docs.DELETE("/:id", docHandler.Delete)

		// WebSocket for real-time updates
		wsHandler := NewWebSocketHandler(deps.Registry, deps.CORSOrigins, deps.Logger)
		docs.GET("/:id/stream", wsHandler.Stream)
	}

	return router
}
