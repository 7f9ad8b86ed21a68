package handlers

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/subhatanay/expenseapp/internal/api/middleware"
	"github.com/subhatanay/expenseapp/internal/logger"
)

// Dialog answers one chat turn.
type Dialog interface {
	Handle(ctx context.Context, userID, text string) string
}

// ChatHandler exposes the dialog engine over HTTP.
type ChatHandler struct {
	dialog Dialog
	log    zerolog.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(dialog Dialog, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{dialog: dialog, log: log}
}

// twimlResponse is the messaging webhook reply: <Response><Message>..</Message></Response>.
type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

// Webhook handles POST /webhook, a Twilio-style form post carrying From
// and Body. The reply is returned as TwiML.
func (h *ChatHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid form body")
		return
	}
	from := strings.TrimSpace(r.PostForm.Get("From"))
	body := r.PostForm.Get("Body")

	reply := h.dialog.Handle(h.userContext(r, from), from, body)

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(xml.Header))
	if err := xml.NewEncoder(w).Encode(twimlResponse{Message: reply}); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode TwiML reply")
	}
}

// PostMessage handles POST /api/messages with {"user_id": "...", "text": "..."}.
func (h *ChatHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Text   string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// An empty user id is answered by the dialog itself.
	reply := h.dialog.Handle(h.userContext(r, req.UserID), req.UserID, req.Text)

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"user_id": req.UserID,
		"reply":   reply,
	})
}

func (h *ChatHandler) userContext(r *http.Request, userID string) context.Context {
	log := h.log.With().
		Str("request_id", middleware.GetRequestID(r.Context())).
		Str("user_id", userID).
		Logger()
	return logger.WithContext(r.Context(), log)
}
