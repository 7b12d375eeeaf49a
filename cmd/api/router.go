package api

import (
	"triage-backend/internal/triage/delivery"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, triageHandler *delivery.TriageHandler, settingsHandler *SettingsHandler) {
	api := r.Group("/api")
	{
		delivery.RegisterRoutes(api, triageHandler)

		// Settings routes - Runtime configuration
		if settingsHandler != nil {
			settings := api.Group("/settings")
			{
				settings.GET("/ollama", settingsHandler.GetOllamaSettings)
				settings.PUT("/ollama", settingsHandler.UpdateOllamaSettings)
				settings.POST("/ollama/test", settingsHandler.TestOllamaConnection)
			}
		}
	}
}
