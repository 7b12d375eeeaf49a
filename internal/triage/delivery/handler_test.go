package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"triage-backend/internal/triage/domain"
	"triage-backend/internal/triage/dto"
	"triage-backend/internal/triage/queue"
	"triage-backend/internal/triage/repository"
	"triage-backend/internal/triage/usecase"
	"triage-backend/pkg/database"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type staticSource struct {
	messages []*domain.Message
}

func (s *staticSource) FetchRecent(ctx context.Context, opts domain.FetchOptions) ([]*domain.Message, error) {
	if len(s.messages) > opts.MaxResults {
		return s.messages[:opts.MaxResults], nil
	}
	return s.messages, nil
}

func setupRouter(t *testing.T, opts ...usecase.PipelineOption) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "api.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	pipeline := usecase.NewPipeline(usecase.NewClassifier(nil), repository.NewTriageRepository(db), queue.NewPriorityQueue(), opts...)
	h := NewTriageHandler(pipeline)

	r := gin.New()
	api := r.Group("/api")
	RegisterRoutes(api, h)
	return r
}

func doRequest(r http.Handler, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r := setupRouter(t)

	w := doRequest(r, http.MethodGet, "/api/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.False(t, resp.ClassifierEnabled)
	assert.Equal(t, "none", resp.MailSource)
	assert.Equal(t, 0, resp.QueueDepth)
}

func TestProcessManualAndQueue(t *testing.T) {
	r := setupRouter(t)

	w := doRequest(r, http.MethodPost, "/api/process", []byte(`{"sender":"a@example.com","subject":"Billing","body":"Where is my invoice?"}`), "application/json")
	require.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(r, http.MethodPost, "/api/process", []byte(`{"subject":"Outage","body":"Production is down, fix immediately"}`), "application/json")
	require.Equal(t, http.StatusCreated, w.Code)

	var created domain.ProcessedItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotNil(t, created.Classification)
	assert.Equal(t, domain.PriorityUrgent, created.Classification.Priority)
	assert.Equal(t, 9, created.Classification.UrgencyScore)
	require.NotNil(t, created.Draft)
	assert.True(t, strings.HasPrefix(created.Record.ID, "manual-"))

	w = doRequest(r, http.MethodGet, "/api/emails/queue/next", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var first domain.ProcessedItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	assert.Equal(t, "Outage", first.Record.Subject)

	w = doRequest(r, http.MethodGet, "/api/emails/queue/next", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, http.MethodGet, "/api/emails/queue/next", nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestProcessManualValidation(t *testing.T) {
	r := setupRouter(t)

	w := doRequest(r, http.MethodPost, "/api/process", []byte(`{"subject":"no body"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodPost, "/api/process", []byte(`not json`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProcessRaw(t *testing.T) {
	r := setupRouter(t)

	raw := "From: Sam <sam@example.com>\r\nSubject: Refund\r\nContent-Type: text/plain\r\n\r\nPlease refund order 42\r\n"
	w := doRequest(r, http.MethodPost, "/api/process/raw", []byte(raw), "message/rfc822")
	require.Equal(t, http.StatusCreated, w.Code)

	var item domain.ProcessedItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &item))
	assert.Equal(t, "Refund", item.Record.Subject)
	assert.Equal(t, domain.SourceManual, item.Record.Source)
}

func TestProcessRawRejectsOversizedMessage(t *testing.T) {
	r := setupRouter(t)

	header := "From: Sam <sam@example.com>\r\nSubject: Huge\r\nContent-Type: text/plain\r\n\r\n"
	raw := header + strings.Repeat("a", maxRawMessageBytes)
	w := doRequest(r, http.MethodPost, "/api/process/raw", []byte(raw), "message/rfc822")
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = doRequest(r, http.MethodGet, "/api/emails", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.ItemsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Count)
}

func TestListSearchAndStats(t *testing.T) {
	r := setupRouter(t)

	for _, body := range []string{
		`{"subject":"Refund request","body":"Please refund me"}`,
		`{"subject":"Login","body":"Cannot access my account"}`,
	} {
		w := doRequest(r, http.MethodPost, "/api/process", []byte(body), "application/json")
		require.Equal(t, http.StatusCreated, w.Code)
		time.Sleep(2 * time.Millisecond)
	}

	w := doRequest(r, http.MethodGet, "/api/emails?limit=1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list dto.ItemsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)

	w = doRequest(r, http.MethodGet, "/api/emails/search?q=refund", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var found dto.ItemsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &found))
	require.Equal(t, 1, found.Count)
	assert.Equal(t, "Refund request", found.Items[0].Record.Subject)

	w = doRequest(r, http.MethodGet, "/api/emails/search", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodGet, "/api/stats", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var stats domain.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.TotalProcessed)
	assert.Equal(t, 2, stats.DraftsCreated)
	assert.Equal(t, 0, stats.EmailsSent)
	assert.Equal(t, map[string]int{domain.DefaultCategory: 2}, stats.Categories)
}

func TestFetchEmails(t *testing.T) {
	source := &staticSource{messages: []*domain.Message{
		{ID: "g1", Subject: "Help", Body: "Hi", SentDate: time.Now(), Source: domain.SourceGmail},
		{ID: "g2", Subject: "Error on login", Body: "error", SentDate: time.Now(), Source: domain.SourceGmail},
	}}
	r := setupRouter(t, usecase.WithMailboxSource("gmail", source))

	w := doRequest(r, http.MethodPost, "/api/emails/fetch", []byte(`{"max_results":1}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.ItemsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)

	w = doRequest(r, http.MethodPost, "/api/emails/fetch", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
}

func TestFetchEmailsWithoutSource(t *testing.T) {
	r := setupRouter(t)

	w := doRequest(r, http.MethodPost, "/api/emails/fetch", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
