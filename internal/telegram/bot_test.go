package telegram

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallbackChatID(t *testing.T) {
	t.Run("detached callback has no chat", func(t *testing.T) {
		// Telegram sends callbacks without a message when the original
		// message was deleted or is inaccessible.
		_, ok := callbackChatID(&tgbotapi.CallbackQuery{ID: "cb1", Data: "exec"})
		assert.False(t, ok)
	})

	t.Run("attached callback yields the chat id", func(t *testing.T) {
		id, ok := callbackChatID(&tgbotapi.CallbackQuery{
			Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 42}},
		})
		require.True(t, ok)
		assert.Equal(t, int64(42), id)
	})
}
