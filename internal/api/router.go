package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// corsMiddleware allows the local frontend dev servers to call the API from
// the browser.
func corsMiddleware() gin.HandlerFunc {
	allowed := map[string]bool{
		"http://localhost:3000": true,
		"http://localhost:5173": true,
		"http://127.0.0.1:3000": true,
		"http://127.0.0.1:5173": true,
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if allowed[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// SetupRouter registers all API routes on a new gin engine.
func SetupRouter(h *Handler) *gin.Engine {
	router := gin.Default()
	router.Use(corsMiddleware())

	router.POST("/ingest", h.Ingest)
	router.POST("/query", h.Query)
	router.POST("/clear", h.Clear)
	router.GET("/status", h.Status)
	router.GET("/sources", h.Sources)
	router.GET("/health", h.Health)

	return router
}
