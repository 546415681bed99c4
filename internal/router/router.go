package router

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/user/movierec/internal/handler"
	"github.com/user/movierec/internal/middleware"
)

// Options cross-cutting settings of the engine.
type Options struct {
	CORSOrigins []string
	// RateLimiter nil disables rate limiting.
	RateLimiter *middleware.RateLimiter
}

// New builds the gin engine with middleware and routes.
func New(h *handler.Handler, opts Options) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = false

	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.Metrics())
	r.Use(middleware.Security())
	r.Use(middleware.CORS(opts.CORSOrigins))
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(middleware.ErrorHandler())

	RegisterRoutes(r, h, opts)
	return r
}

// RegisterRoutes registers all routes.
func RegisterRoutes(r *gin.Engine, h *handler.Handler, opts Options) {
	r.GET("/", h.Index)
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	if opts.RateLimiter != nil {
		api.Use(opts.RateLimiter.Middleware())
	}
	{
		api.GET("/movies", h.ListMovies)
		api.GET("/movies/:id", h.GetMovie)
		api.GET("/movies/:id/recommendations", h.Recommendations)
	}

	r.NoRoute(middleware.NoRoute())
}
