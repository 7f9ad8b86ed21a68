package handlers

import (
	"net/http"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/subhatanay/expenseapp/internal/api/middleware"
	"github.com/subhatanay/expenseapp/internal/domain"
)

// timeNow is replaced in tests.
var timeNow = time.Now

// TransactionsHandler serves ledger reads.
type TransactionsHandler struct {
	ledger domain.Ledger
	log    zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(ledger domain.Ledger, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{ledger: ledger, log: log}
}

// ListByDate handles GET /api/users/{user}/transactions?date=YYYY-MM-DD.
// The date defaults to today (UTC).
func (h *TransactionsHandler) ListByDate(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "User is required")
		return
	}

	date := civil.DateOf(timeNow().UTC())
	if s := r.URL.Query().Get("date"); s != "" {
		d, err := civil.ParseDate(s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid date format")
			return
		}
		date = d
	}

	txs, err := h.ledger.QueryByUserAndDate(r.Context(), userID, date)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to query transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to query transactions")
		return
	}
	if txs == nil {
		txs = []*domain.Transaction{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":      userID,
		"date":         date.String(),
		"transactions": txs,
		"count":        len(txs),
	})
}
