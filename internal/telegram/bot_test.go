package telegram

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillm/action-guard/internal/notify"
	"github.com/kirillm/action-guard/pkg/utils"
)

const testChatID int64 = -1001

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	updates  chan tgbotapi.Update
	stopped  bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{updates: make(chan tgbotapi.Update, 10)}
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, m.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, m.Text)
		}
	}
	return out
}

func newTestBot(t *testing.T) (*Bot, *fakeAPI, *fakeGuard) {
	t.Helper()
	router, guard, _ := newTestRouter(t)
	router.ratePerSecond = 10
	api := newFakeAPI()
	bot := NewBot(api, testChatID, router, router.authManager, router.formatter, utils.Nop())
	return bot, api, guard
}

func commandUpdate(chatID, userID int64, text string) tgbotapi.Update {
	cmdLen := len(strings.Fields(text)[0])
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		Chat:      &tgbotapi.Chat{ID: chatID},
		From:      &tgbotapi.User{ID: userID, UserName: "alice"},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
	}}
}

func TestBot_HandleCommand(t *testing.T) {
	bot, api, guard := newTestBot(t)

	bot.HandleUpdate(t.Context(), commandUpdate(testChatID, adminID, "/approve req-1"))

	require.Len(t, api.texts(), 1)
	assert.Contains(t, api.texts()[0], "Approved")
	assert.Len(t, guard.approved, 1)

	msg := api.sent[0].(tgbotapi.MessageConfig)
	assert.Equal(t, testChatID, msg.ChatID)
	assert.Equal(t, tgbotapi.ModeMarkdown, msg.ParseMode)
}

func TestBot_IgnoresOtherChatsAndPlainText(t *testing.T) {
	bot, api, guard := newTestBot(t)

	bot.HandleUpdate(t.Context(), commandUpdate(555, adminID, "/approve req-1"))
	bot.HandleUpdate(t.Context(), tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: testChatID},
		From: &tgbotapi.User{ID: adminID},
		Text: "approve everything please",
	}})
	bot.HandleUpdate(t.Context(), tgbotapi.Update{})

	assert.Empty(t, api.texts())
	assert.Empty(t, guard.approved)
}

func TestBot_CallbackEditsCard(t *testing.T) {
	bot, api, guard := newTestBot(t)

	bot.HandleUpdate(t.Context(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		From:    &tgbotapi.User{ID: adminID, UserName: "alice"},
		Message: &tgbotapi.Message{MessageID: 77, Chat: &tgbotapi.Chat{ID: testChatID}},
		Data:    notify.CallbackApprove + "req-1",
	}})

	require.Len(t, api.requests, 1)
	answer := api.requests[0].(tgbotapi.CallbackConfig)
	assert.Equal(t, "cb-1", answer.CallbackQueryID)

	require.Len(t, api.sent, 1)
	edit := api.sent[0].(tgbotapi.EditMessageTextConfig)
	assert.Equal(t, 77, edit.MessageID)
	assert.Contains(t, edit.Text, "Approved")
	assert.Equal(t, []string{"req-1|@alice|"}, guard.approved)
}

func TestBot_StartStopsOnCancel(t *testing.T) {
	bot, api, guard := newTestBot(t)
	ctx, cancel := context.WithCancel(t.Context())

	done := make(chan struct{})
	go func() {
		bot.Start(ctx)
		close(done)
	}()

	api.updates <- commandUpdate(testChatID, adminID, "/reject req-2 nope")
	assert.Eventually(t, func() bool { return len(api.texts()) == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
	assert.True(t, api.stopped)
	assert.Len(t, guard.rejected, 1)
}

func TestSplitMessage(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		max       int
		wantParts int
	}{
		{"short", "hello", 10, 1},
		{"two lines", "aaaaa\nbbbbb", 8, 2},
		{"long line", strings.Repeat("x", 25), 10, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts := splitMessage(tt.text, tt.max)
			assert.Len(t, parts, tt.wantParts)
			for _, p := range parts {
				assert.LessOrEqual(t, len(p), tt.max)
			}
		})
	}
}
