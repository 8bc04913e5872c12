package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/kirillm/action-guard/internal/domain"
)

// Sender is the subset of *tgbotapi.BotAPI used by the channel.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Callback data prefixes for inline buttons.
const (
	CallbackApprove = "approve:"
	CallbackReject  = "reject:"
)

// TelegramChannel sends Markdown messages through the bot API.
type TelegramChannel struct {
	name      string
	sender    Sender
	chatID    int64
	formatter *Formatter
	throttle  *rate.Limiter
}

// NewTelegramChannel creates a channel posting into chatID.
func NewTelegramChannel(name string, sender Sender, chatID int64, formatter *Formatter) *TelegramChannel {
	if name == "" {
		name = domain.ChannelTelegram
	}
	if formatter == nil {
		formatter = NewFormatter(LangEN)
	}
	return &TelegramChannel{
		name:      name,
		sender:    sender,
		chatID:    chatID,
		formatter: formatter,
		// one message per second per chat, small burst
		throttle: rate.NewLimiter(rate.Limit(1), 3),
	}
}

func (c *TelegramChannel) Name() string { return c.name }
func (c *TelegramChannel) Type() string { return domain.ChannelTelegram }

// Send renders msg and posts it. Requests awaiting a decision get inline
// approve/reject buttons.
func (c *TelegramChannel) Send(ctx context.Context, msg Message) error {
	if err := c.throttle.Wait(ctx); err != nil {
		return fmt.Errorf("throttle: %w", err)
	}

	out := tgbotapi.NewMessage(c.chatID, c.formatter.Format(msg))
	out.ParseMode = tgbotapi.ModeMarkdown
	if msg.ApproveCommand != "" && msg.RequestID != "" {
		out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ Approve", CallbackApprove+msg.RequestID),
				tgbotapi.NewInlineKeyboardButtonData("❌ Reject", CallbackReject+msg.RequestID),
			),
		)
	}

	// BotAPI.Send has no context; bound it here.
	errCh := make(chan error, 1)
	go func() {
		_, err := c.sender.Send(out)
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("telegram send: %w", ctx.Err())
	}
}
