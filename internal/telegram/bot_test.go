package telegram

import (
	"context"
	"strconv"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockDialog struct {
	HandleFunc func(ctx context.Context, userID, text string) string
}

func (m *mockDialog) Handle(ctx context.Context, userID, text string) string {
	return m.HandleFunc(ctx, userID, text)
}

func newTestBot(t *testing.T, d Dialog) *Bot {
	t.Helper()
	b, err := New(Config{
		Token:      "123:test",
		UserByChat: func(chatID int64) string { return "tg:" + strconv.FormatInt(chatID, 10) },
	}, d, bot.WithSkipGetMe())
	require.NoError(t, err)
	return b
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{}, &mockDialog{})
	assert.Error(t, err)

	_, err = New(Config{Token: "123:test"}, &mockDialog{})
	assert.Error(t, err)
}

func TestReply_RoutesTextToDialog(t *testing.T) {
	var gotUser, gotText string
	b := newTestBot(t, &mockDialog{HandleFunc: func(_ context.Context, userID, text string) string {
		gotUser, gotText = userID, text
		return "ok"
	}})

	chatID, reply, ok := b.Reply(context.Background(), &models.Update{
		Message: &models.Message{Chat: models.Chat{ID: 77}, Text: "Show Pending"},
	})
	require.True(t, ok)
	assert.Equal(t, int64(77), chatID)
	assert.Equal(t, "ok", reply)
	assert.Equal(t, "tg:77", gotUser)
	assert.Equal(t, "Show Pending", gotText)
}

func TestReply_IgnoresNonText(t *testing.T) {
	called := false
	b := newTestBot(t, &mockDialog{HandleFunc: func(context.Context, string, string) string {
		called = true
		return ""
	}})

	for _, u := range []*models.Update{
		nil,
		{},
		{Message: &models.Message{Chat: models.Chat{ID: 1}}},
	} {
		_, _, ok := b.Reply(context.Background(), u)
		assert.False(t, ok)
	}
	assert.False(t, called)
}
