package api

import "github.com/gin-gonic/gin"

// NewRouter registers all routes on a fresh gin engine.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", h.Health)

	group := router.Group("/api")
	{
		group.POST("/run", h.Run)
		group.GET("/status", h.Status)
		group.GET("/feeds", h.Feeds)
		group.GET("/ledger/stats", h.LedgerStats)
	}

	return router
}
