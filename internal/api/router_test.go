package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subhatanay/expenseapp/internal/dialog"
	"github.com/subhatanay/expenseapp/internal/domain"
	"github.com/subhatanay/expenseapp/internal/infra/inmemory"
	"github.com/subhatanay/expenseapp/internal/jobs"
	jobsmem "github.com/subhatanay/expenseapp/internal/jobs/inmemory"
	"github.com/subhatanay/expenseapp/internal/logger"
)

type mockPublisher struct {
	published []*jobs.SyncJob
	store     jobs.JobStore
}

func (m *mockPublisher) PublishSync(ctx context.Context, job *jobs.SyncJob) error {
	job.JobID = "job-" + job.UserID
	job.Status = jobs.JobStatusPending
	job.CreatedAt = time.Now()
	m.published = append(m.published, job)
	return m.store.SaveJob(ctx, job)
}

func (m *mockPublisher) Close() error { return nil }

type harness struct {
	handler   http.Handler
	ledger    *inmemory.Ledger
	publisher *mockPublisher
}

func newHarness(t *testing.T, apiKey string) *harness {
	t.Helper()
	ledger := inmemory.NewLedger()
	store := jobsmem.NewStore()
	pub := &mockPublisher{store: store}
	engine := dialog.NewEngine(ledger, ledger, inmemory.NewConversationStore())

	h := NewRouter(Deps{
		Dialog:    engine,
		Ledger:    ledger,
		Publisher: pub,
		JobStore:  store,
		Users:     func() []string { return []string{"alice", "bob"} },
		APIKey:    apiKey,
		Log:       logger.Nop(),
	})
	return &harness{handler: h, ledger: ledger, publisher: pub}
}

func (h *harness) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func TestWebhook_RepliesWithTwiML(t *testing.T) {
	h := newHarness(t, "secret")

	form := url.Values{"From": {"whatsapp:+911234"}, "Body": {"create goa"}}
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := h.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<Response><Message>")
	assert.Contains(t, rec.Body.String(), "goa")

	contexts, err := h.ledger.ListContexts(context.Background(), "whatsapp:+911234")
	require.NoError(t, err)
	require.Len(t, contexts, 1)
}

func TestPostMessage(t *testing.T) {
	h := newHarness(t, "")

	req := httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader(`{"user_id":"alice","text":"help"}`))
	rec := h.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "alice", body["user_id"])
	assert.NotEmpty(t, body["reply"])

	rec = h.do(t, httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnqueueSync(t *testing.T) {
	h := newHarness(t, "secret")

	req := httptest.NewRequest(http.MethodPost, "/api/sync", nil)
	req.Header.Set("X-API-Key", "secret")
	rec := h.do(t, req)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, h.publisher.published, 2)
	assert.Equal(t, jobs.TriggerAPI, h.publisher.published[0].Trigger)

	req = httptest.NewRequest(http.MethodPost, "/api/sync", strings.NewReader(`{"user_id":"bob"}`))
	req.Header.Set("X-API-Key", "secret")
	rec = h.do(t, req)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "bob", h.publisher.published[2].UserID)

	req = httptest.NewRequest(http.MethodPost, "/api/sync", strings.NewReader(`{"user_id":"mallory"}`))
	req.Header.Set("X-API-Key", "secret")
	assert.Equal(t, http.StatusNotFound, h.do(t, req).Code)

	// no key
	assert.Equal(t, http.StatusUnauthorized, h.do(t, httptest.NewRequest(http.MethodPost, "/api/sync", nil)).Code)
}

func TestJobsEndpoints(t *testing.T) {
	h := newHarness(t, "")
	h.do(t, httptest.NewRequest(http.MethodPost, "/api/sync", strings.NewReader(`{"user_id":"alice"}`)))

	rec := h.do(t, httptest.NewRequest(http.MethodGet, "/api/jobs/job-alice", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var job jobs.SyncJob
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&job))
	assert.Equal(t, "alice", job.UserID)
	assert.Equal(t, jobs.JobStatusPending, job.Status)

	assert.Equal(t, http.StatusNotFound, h.do(t, httptest.NewRequest(http.MethodGet, "/api/jobs/nope", nil)).Code)

	rec = h.do(t, httptest.NewRequest(http.MethodGet, "/api/jobs?user_id=alice&limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Equal(t, 1, list.Count)
}

func TestTransactionsByDate(t *testing.T) {
	h := newHarness(t, "")
	date := civil.Date{Year: 2024, Month: time.June, Day: 1}
	_, err := h.ledger.Commit(context.Background(), domain.Transaction{
		UserID: "alice", Date: date, Action: domain.ActionDebit,
		Amount: decimal.RequireFromString("45.50"), Merchant: "CAFE",
	})
	require.NoError(t, err)

	rec := h.do(t, httptest.NewRequest(http.MethodGet, "/api/users/alice/transactions?date=2024-06-01", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Date         string               `json:"date"`
		Count        int                  `json:"count"`
		Transactions []domain.Transaction `json:"transactions"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "2024-06-01", body.Date)
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "CAFE", body.Transactions[0].Merchant)
	assert.True(t, body.Transactions[0].Amount.Equal(decimal.RequireFromString("45.5")))

	rec = h.do(t, httptest.NewRequest(http.MethodGet, "/api/users/alice/transactions?date=01-06-2024", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, httptest.NewRequest(http.MethodGet, "/api/users/bob/transactions?date=2024-06-01", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"transactions":[]`)
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	h := newHarness(t, "secret")
	assert.Equal(t, http.StatusOK, h.do(t, httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
	assert.Equal(t, http.StatusOK, h.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil)).Code)
}
