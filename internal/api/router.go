package api

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"production-ops-backend/config"
	"production-ops-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(handler *Handler, cfg config.ServerConfig) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	lines := []gin.HandlerFunc{handler.GetLines}
	if handler.cache != nil {
		lines = append([]gin.HandlerFunc{handler.cache.Middleware()}, lines...)
	}

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/lines", lines...)

		api.POST("/sequence", handler.PostSequence)
		api.POST("/sequence/pending", handler.PostSequencePending)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
