package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/subhatanay/expenseapp/internal/api/handlers"
	"github.com/subhatanay/expenseapp/internal/api/middleware"
	"github.com/subhatanay/expenseapp/internal/domain"
	"github.com/subhatanay/expenseapp/internal/jobs"
)

// Deps are the collaborators the HTTP surface is built on.
type Deps struct {
	Dialog    handlers.Dialog
	Ledger    domain.Ledger
	Publisher jobs.Publisher
	JobStore  jobs.JobStore
	Users     func() []string
	APIKey    string
	Log       zerolog.Logger
}

// NewRouter builds the routed and middleware-wrapped HTTP handler.
func NewRouter(d Deps) http.Handler {
	chat := handlers.NewChatHandler(d.Dialog, d.Log)
	syncH := handlers.NewSyncHandler(d.Publisher, d.Users, d.Log)
	jobsH := handlers.NewJobsHandler(d.JobStore, d.Log)
	txH := handlers.NewTransactionsHandler(d.Ledger, d.Log)

	mux := http.NewServeMux()

	// Chat endpoints
	mux.HandleFunc("POST /webhook", chat.Webhook)
	mux.HandleFunc("POST /api/messages", chat.PostMessage)

	// Sync and jobs endpoints
	mux.HandleFunc("POST /api/sync", syncH.EnqueueSync)
	mux.HandleFunc("GET /api/jobs", jobsH.ListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", jobsH.GetJob)

	// Transactions endpoints
	mux.HandleFunc("GET /api/users/{user}/transactions", txH.ListByDate)

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return middleware.Recovery(d.Log)(
		middleware.Logger(d.Log)(
			middleware.RequestID(
				middleware.CORS(
					middleware.Auth(d.APIKey, "/health", "/metrics", "/webhook")(mux),
				),
			),
		),
	)
}
