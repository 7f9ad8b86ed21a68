package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/subhatanay/expenseapp/internal/logger"
)

// Dialog answers one chat turn.
type Dialog interface {
	Handle(ctx context.Context, userID, text string) string
}

// Config configures the chat bot.
type Config struct {
	Token string
	Debug bool
	// UserByChat resolves a chat id to the user id the dialog runs under.
	UserByChat func(chatID int64) string
}

// Bot relays Telegram text messages to the dialog engine and sends back
// its replies.
type Bot struct {
	api        *bot.Bot
	dialog     Dialog
	userByChat func(chatID int64) string
}

// New creates a long-polling bot. opts are passed to bot.New after the
// defaults, e.g. bot.WithServerURL.
func New(cfg Config, dialog Dialog, opts ...bot.Option) (*Bot, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram token is required")
	}
	if cfg.UserByChat == nil {
		return nil, errors.New("telegram chat resolver is required")
	}

	b := &Bot{dialog: dialog, userByChat: cfg.UserByChat}

	all := []bot.Option{bot.WithDefaultHandler(b.handleUpdate)}
	if cfg.Debug {
		all = append(all, bot.WithDebug())
	}
	all = append(all, opts...)

	api, err := bot.New(cfg.Token, all...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	b.api = api
	return b, nil
}

// Start polls for updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	log := logger.FromContext(ctx)

	me, err := b.api.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to get bot info: %w", err)
	}
	log.Info().Str("username", me.Username).Int64("id", me.ID).Msg("Telegram bot started")

	b.api.Start(ctx)
	log.Info().Msg("Telegram bot stopped")
	return nil
}

func (b *Bot) handleUpdate(ctx context.Context, api *bot.Bot, update *models.Update) {
	chatID, reply, ok := b.Reply(ctx, update)
	if !ok {
		return
	}
	if _, err := api.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: reply}); err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send reply")
	}
}

// Reply runs the dialog for a text update. ok is false for updates that
// carry no text message.
func (b *Bot) Reply(ctx context.Context, update *models.Update) (chatID int64, reply string, ok bool) {
	if update == nil || update.Message == nil || update.Message.Text == "" {
		return 0, "", false
	}
	chatID = update.Message.Chat.ID
	userID := b.userByChat(chatID)

	ctx = logger.WithUser(ctx, userID)
	return chatID, b.dialog.Handle(ctx, userID, update.Message.Text), true
}
