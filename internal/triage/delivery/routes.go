package delivery

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the triage endpoints on the /api group
func RegisterRoutes(api *gin.RouterGroup, h *TriageHandler) {
	api.GET("/health", h.Health)
	api.GET("/stats", h.GetStats)

	emails := api.Group("/emails")
	{
		emails.GET("", h.ListEmails)
		emails.POST("/fetch", h.FetchEmails)
		emails.GET("/search", h.SearchEmails)
		emails.GET("/queue/next", h.NextQueued)
	}

	process := api.Group("/process")
	{
		process.POST("", h.ProcessManual)
		process.POST("/raw", h.ProcessRaw)
	}
}
