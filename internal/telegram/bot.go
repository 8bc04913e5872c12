package telegram

import (
	"context"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kirillm/action-guard/pkg/utils"
)

const maxMessageLength = 4096

// API подмножество *tgbotapi.BotAPI, которое использует бот
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot принимает команды оператора и нажатия кнопок approve/reject
type Bot struct {
	api         API
	chatID      int64
	router      *Router
	authManager *AuthManager
	formatter   *Formatter
	logger      *utils.Logger
	wg          sync.WaitGroup
}

// NewBot создает бота. chatID = 0 снимает ограничение по чату.
func NewBot(api API, chatID int64, router *Router, authManager *AuthManager, formatter *Formatter, logger *utils.Logger) *Bot {
	if logger == nil {
		logger = utils.Default()
	}
	return &Bot{
		api:         api,
		chatID:      chatID,
		router:      router,
		authManager: authManager,
		formatter:   formatter,
		logger:      logger.Component("telegram"),
	}
}

// Start обрабатывает обновления до отмены ctx
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	ticker := time.NewTicker(limiterIdleTTL)
	defer ticker.Stop()

	b.logger.Info("Telegram bot started, chat %d", b.chatID)

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.HandleUpdate(ctx, update)
			}()
		case <-ticker.C:
			if n := b.authManager.CleanupRateLimiters(); n > 0 {
				b.logger.Debug("Cleaned up %d rate limiters", n)
			}
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.wg.Wait()
			return
		}
	}
}

// HandleUpdate обрабатывает одно обновление синхронно
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallbackQuery(ctx, update.CallbackQuery)
	}
}

func (b *Bot) allowedChat(chat *tgbotapi.Chat) bool {
	return b.chatID == 0 || (chat != nil && chat.ID == b.chatID)
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.Chat == nil || message.From == nil {
		return
	}
	if !b.allowedChat(message.Chat) {
		b.logger.Warn("Unauthorized access attempt from chat ID: %d", message.Chat.ID)
		return
	}
	if !message.IsCommand() {
		return
	}

	from := User{ID: message.From.ID, UserName: message.From.UserName}
	b.logger.Info("Received command from user %d: %s", from.ID, message.Text)

	response, err := b.router.HandleCommand(ctx, from, message.Text)
	if err != nil {
		b.logger.Error("Command error: %v", err)
	}
	b.SendMessage(message.Chat.ID, response)
}

// handleCallbackQuery обрабатывает callback от inline кнопок
func (b *Bot) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if query.Message == nil || !b.allowedChat(query.Message.Chat) || query.From == nil {
		return
	}

	from := User{ID: query.From.ID, UserName: query.From.UserName}
	response, err := b.router.HandleCallback(ctx, from, query.Data)
	if err != nil {
		b.logger.Error("Callback error: %v", err)
	}

	// Отвечаем на callback, чтобы кнопка перестала крутиться
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		b.logger.Warn("Failed to answer callback: %v", err)
	}

	// Заменяем карточку итогом, кнопки исчезают
	edit := tgbotapi.NewEditMessageText(query.Message.Chat.ID, query.Message.MessageID, response)
	edit.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(edit); err != nil {
		b.logger.Error("Failed to edit message %d: %v", query.Message.MessageID, err)
	}
}

// SendMessage отправляет сообщение, разбивая длинный текст
func (b *Bot) SendMessage(chatID int64, text string) {
	if text == "" {
		return
	}

	for _, part := range splitMessage(text, maxMessageLength) {
		message := tgbotapi.NewMessage(chatID, part)
		message.ParseMode = tgbotapi.ModeMarkdown
		if _, err := b.api.Send(message); err != nil {
			b.logger.Error("Failed to send telegram message to chat %d: %v", chatID, err)
		}
	}
}

// splitMessage разбивает длинное сообщение на части по строкам
func splitMessage(text string, maxLength int) []string {
	if len(text) <= maxLength {
		return []string{text}
	}

	var messages []string
	lines := strings.Split(text, "\n")
	currentMessage := ""

	for _, line := range lines {
		for len(line) > maxLength {
			if currentMessage != "" {
				messages = append(messages, currentMessage)
				currentMessage = ""
			}
			messages = append(messages, line[:maxLength])
			line = line[maxLength:]
		}
		if currentMessage != "" && len(currentMessage)+len(line)+1 > maxLength {
			messages = append(messages, currentMessage)
			currentMessage = line
		} else {
			if currentMessage != "" {
				currentMessage += "\n"
			}
			currentMessage += line
		}
	}

	if currentMessage != "" {
		messages = append(messages, currentMessage)
	}

	return messages
}
