package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"triage-backend/internal/triage/delivery"
	"triage-backend/internal/triage/usecase"
	"triage-backend/pkg/ai"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	triageHandler   *delivery.TriageHandler
	settingsHandler *SettingsHandler

	mu     sync.Mutex
	server *http.Server
}

func NewHandler(triageUc usecase.TriageUsecase, ollamaSettings *ai.OllamaSettings) *Handler {
	var settingsHandler *SettingsHandler
	if ollamaSettings != nil {
		settingsHandler = NewSettingsHandler(ollamaSettings)
	}

	return &Handler{
		triageHandler:   delivery.NewTriageHandler(triageUc),
		settingsHandler: settingsHandler,
	}
}

// Router builds the gin engine with CORS and all routes
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.triageHandler, h.settingsHandler)
	return r
}

// Start serves HTTP until Shutdown is called
func (h *Handler) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	h.mu.Lock()
	h.server = srv
	h.mu.Unlock()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (h *Handler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	srv := h.server
	h.mu.Unlock()
	if srv == nil {
		return nil
	}
	log.Println("Shutting down HTTP server")
	return srv.Shutdown(ctx)
}
