package delivery

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"triage-backend/internal/triage/domain"
	"triage-backend/internal/triage/dto"
	"triage-backend/internal/triage/usecase"

	"github.com/gin-gonic/gin"
)

// maxRawMessageBytes caps POST /api/process/raw bodies
const maxRawMessageBytes = 10 << 20

type TriageHandler struct {
	triageUsecase usecase.TriageUsecase
}

func NewTriageHandler(triageUsecase usecase.TriageUsecase) *TriageHandler {
	return &TriageHandler{
		triageUsecase: triageUsecase,
	}
}

// Health reports service status
// GET /api/health
func (h *TriageHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{
		Status:            "ok",
		ClassifierEnabled: h.triageUsecase.ClassifierEnabled(),
		MailSource:        h.triageUsecase.SourceName(),
		QueueDepth:        h.triageUsecase.QueueDepth(),
		Time:              time.Now().UTC(),
	})
}

// FetchEmails fetches the mailbox and processes the batch synchronously
// POST /api/emails/fetch
func (h *TriageHandler) FetchEmails(c *gin.Context) {
	var req dto.FetchRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	items, err := h.triageUsecase.FetchAndProcess(c.Request.Context(), req.Options())
	if err != nil {
		if errors.Is(err, domain.ErrSourceUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.ItemsResponse{Items: items, Count: len(items)})
}

// ListEmails returns the newest processed items
// GET /api/emails?limit=
func (h *TriageHandler) ListEmails(c *gin.Context) {
	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > 500 {
		limit = 500
	}

	items, err := h.triageUsecase.ListProcessed(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.ItemsResponse{Items: items, Count: len(items)})
}

// SearchEmails ranks processed items against a query
// GET /api/emails/search?q=&limit=
func (h *TriageHandler) SearchEmails(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'q' is required"})
		return
	}

	limit := 20
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	items, err := h.triageUsecase.Search(query, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.ItemsResponse{Items: items, Count: len(items)})
}

// NextQueued pops the most urgent queued item, 204 when the queue is empty
// GET /api/emails/queue/next
func (h *TriageHandler) NextQueued(c *gin.Context) {
	item, ok := h.triageUsecase.NextItem()
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, item)
}

// ProcessManual classifies a message submitted as JSON
// POST /api/process
func (h *TriageHandler) ProcessManual(c *gin.Context) {
	var req dto.ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := h.triageUsecase.SubmitManual(c.Request.Context(), req.Submission())
	if err != nil {
		h.writeProcessError(c, err)
		return
	}

	c.JSON(http.StatusCreated, item)
}

// ProcessRaw classifies a raw RFC 5322 message sent as the request body
// POST /api/process/raw
func (h *TriageHandler) ProcessRaw(c *gin.Context) {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxRawMessageBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("message exceeds %d bytes", tooLarge.Limit)})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := h.triageUsecase.SubmitRaw(c.Request.Context(), bytes.NewReader(raw))
	if err != nil {
		h.writeProcessError(c, err)
		return
	}

	c.JSON(http.StatusCreated, item)
}

// GetStats returns processing totals
// GET /api/stats
func (h *TriageHandler) GetStats(c *gin.Context) {
	stats, err := h.triageUsecase.Stats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *TriageHandler) writeProcessError(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrInvalidMessage) || errors.Is(err, domain.ErrInvalidClassification) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
