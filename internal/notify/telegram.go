package notify

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/subhatanay/expenseapp/internal/domain"
)

// Sender is the part of *bot.Bot the Telegram notifier needs.
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Telegram pushes notifications to the chat registered for each user.
type Telegram struct {
	sender Sender
	chats  map[string]int64
}

// NewTelegram creates a Telegram notifier. chats maps user ids to chat ids.
func NewTelegram(sender Sender, chats map[string]int64) *Telegram {
	return &Telegram{sender: sender, chats: chats}
}

// Notify implements domain.Notifier.
func (t *Telegram) Notify(ctx context.Context, userID, text string) error {
	chatID, ok := t.chats[userID]
	if !ok {
		return fmt.Errorf("Notify: no telegram chat for user %s: %w", userID, domain.ErrNotFound)
	}
	if _, err := t.sender.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		return fmt.Errorf("Notify: sending to chat %d: %w", chatID, err)
	}
	return nil
}

var _ domain.Notifier = (*Telegram)(nil)
