// Package server exposes the feedback engine over HTTP.
package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aegis/internal/logging"
)

// NewRouter assembles the gin engine with the engine's routes and middleware.
// gatherer may be nil to disable the /metrics endpoint.
func NewRouter(h *Handlers, allowedOrigins []string, gatherer prometheus.Gatherer, logger logging.Logger) *gin.Engine {
	logger = logging.OrNop(logger)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(logger))
	engine.Use(corsMiddleware(allowedOrigins))

	engine.GET("/health", h.Health)
	if gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	fb := engine.Group("/feedback")
	{
		fb.POST("", h.CreateFeedback)
		fb.GET("", h.ListFeedback)
		fb.GET("/:id", h.GetFeedback)
		fb.PATCH("/:id/resolve", h.ResolveFeedback)
		fb.POST("/batch_csv", h.BatchCSV)
	}

	admin := engine.Group("/admin")
	{
		admin.GET("/stats", h.Stats)
		admin.POST("/reconcile", h.TriggerReconcile)
		admin.GET("/reviews", h.ListReviews)
		admin.GET("/reviews/csv", h.ReviewsCSV)
	}

	return engine
}

// requestLogger logs each request line through the engine's logger instead of
// gin's default writer.
func requestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(start))
	}
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	if len(allowedOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = allowedOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"}
	corsConfig.ExposeHeaders = []string{"X-Status"}
	return cors.New(corsConfig)
}
