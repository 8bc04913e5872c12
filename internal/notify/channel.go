package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kirillm/action-guard/internal/domain"
)

// Channel is one outbound destination. Send performs exactly one call and
// does not retry.
type Channel interface {
	Name() string
	Type() string
	Send(ctx context.Context, msg Message) error
}

// ChannelConfig describes one configured destination.
type ChannelConfig struct {
	Name    string
	Type    string // domain.ChannelTelegram | domain.ChannelWebhook
	Enabled bool

	// webhook
	URL    string
	Secret string

	// telegram
	BotToken string
	ChatID   int64
	Lang     Lang
}

// BuildChannel creates the channel described by cfg.
func BuildChannel(cfg ChannelConfig) (Channel, error) {
	switch cfg.Type {
	case domain.ChannelWebhook:
		if cfg.URL == "" {
			return nil, fmt.Errorf("channel %s: webhook url is empty", cfg.Name)
		}
		return NewWebhookChannel(cfg.Name, cfg.URL, cfg.Secret, nil), nil
	case domain.ChannelTelegram:
		if cfg.BotToken == "" || cfg.ChatID == 0 {
			return nil, fmt.Errorf("channel %s: bot token and chat id are required", cfg.Name)
		}
		bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
		if err != nil {
			return nil, fmt.Errorf("channel %s: failed to create bot: %w", cfg.Name, err)
		}
		return NewTelegramChannel(cfg.Name, bot, cfg.ChatID, NewFormatter(cfg.Lang)), nil
	default:
		return nil, fmt.Errorf("channel %s: unknown type %q", cfg.Name, cfg.Type)
	}
}
