package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/hay-kot/criterio"
	"github.com/joho/godotenv"

	"github.com/kirillm/action-guard/internal/domain"
)

// Config содержит все настройки приложения
type Config struct {
	Policy    PolicyConfig
	Database  DatabaseConfig
	Telegram  TelegramConfig
	Webhook   WebhookConfig
	Guard     GuardConfig
	API       APIConfig
	Bybit     BybitConfig
	Strategy  StrategyConfig
	TraceFile string
	LogLevel  string
}

type PolicyConfig struct {
	File    string
	Profile string
	Watch   bool
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type TelegramConfig struct {
	BotToken  string
	ChatID    int64
	AdminIDs  string
	Whitelist string
}

type WebhookConfig struct {
	URL     string
	Secret  string
	Timeout time.Duration
}

type GuardConfig struct {
	Mode          string
	PilotMaxValue float64
	SummaryHour   int
	Timezone      string
	Location      *time.Location
	Language      string
}

type APIConfig struct {
	Addr  string
	Token string
}

type BybitConfig struct {
	APIKey          string
	APISecret       string
	BaseURL         string
	SlippagePercent float64
}

type StrategyConfig struct {
	TradingSymbol          string
	DCAAmount              float64
	DCAInterval            time.Duration
	AutoSellEnabled        bool
	AutoSellTriggerPercent float64
	AutoSellAmountPercent  float64
	PriceCheckInterval     time.Duration
}

// Enabled настроен ли Telegram
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != 0
}

// Enabled настроен ли вебхук
func (w WebhookConfig) Enabled() bool {
	return w.URL != ""
}

// Enabled заданы ли ключи биржи
func (b BybitConfig) Enabled() bool {
	return b.APIKey != "" && b.APISecret != ""
}

// Enabled запускать ли DCA
func (s StrategyConfig) Enabled() bool {
	return s.TradingSymbol != "" && s.DCAAmount > 0
}

// Enabled настроена ли база
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// Load загружает конфигурацию из .env файла и переменных окружения
func Load() (*Config, error) {
	return LoadFiles(".env")
}

// LoadFiles загружает конфигурацию из указанных env файлов.
// Переменные окружения имеют приоритет над файлами, отсутствующие файлы пропускаются.
func LoadFiles(files ...string) (*Config, error) {
	env := env{file: map[string]string{}}
	for _, f := range files {
		values, err := godotenv.Read(f)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read %s: %w", f, err)
		}
		for k, v := range values {
			if _, ok := env.file[k]; !ok {
				env.file[k] = v
			}
		}
	}
	return env.build()
}

type env struct {
	file map[string]string
}

// getEnv получает переменную окружения с значением по умолчанию
func (e env) getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	if value, ok := e.file[key]; ok && value != "" {
		return value
	}
	return defaultValue
}

func (e env) build() (*Config, error) {
	chatID, err := strconv.ParseInt(e.getEnv("TELEGRAM_CHAT_ID", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
	}

	maxOpenConns, err := strconv.Atoi(e.getEnv("DB_MAX_OPEN_CONNS", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_OPEN_CONNS: %w", err)
	}

	maxIdleConns, err := strconv.Atoi(e.getEnv("DB_MAX_IDLE_CONNS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_IDLE_CONNS: %w", err)
	}

	connMaxLifetime, err := time.ParseDuration(e.getEnv("DB_CONN_MAX_LIFETIME", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME: %w", err)
	}

	watch, err := strconv.ParseBool(e.getEnv("POLICY_WATCH", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid POLICY_WATCH: %w", err)
	}

	webhookTimeout, err := time.ParseDuration(e.getEnv("WEBHOOK_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid WEBHOOK_TIMEOUT: %w", err)
	}

	pilotMax, err := strconv.ParseFloat(e.getEnv("PILOT_MAX_VALUE", "100"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid PILOT_MAX_VALUE: %w", err)
	}

	summaryHour, err := strconv.Atoi(e.getEnv("SUMMARY_HOUR", "8"))
	if err != nil {
		return nil, fmt.Errorf("invalid SUMMARY_HOUR: %w", err)
	}

	slippage, err := strconv.ParseFloat(e.getEnv("SLIPPAGE_PERCENT", "1"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid SLIPPAGE_PERCENT: %w", err)
	}

	dcaAmount, err := strconv.ParseFloat(e.getEnv("DCA_AMOUNT", "0"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid DCA_AMOUNT: %w", err)
	}

	dcaInterval, err := time.ParseDuration(e.getEnv("DCA_INTERVAL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid DCA_INTERVAL: %w", err)
	}

	autoSellEnabled, err := strconv.ParseBool(e.getEnv("AUTO_SELL_ENABLED", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid AUTO_SELL_ENABLED: %w", err)
	}

	autoSellTrigger, err := strconv.ParseFloat(e.getEnv("AUTO_SELL_TRIGGER_PERCENT", "10"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid AUTO_SELL_TRIGGER_PERCENT: %w", err)
	}

	autoSellAmount, err := strconv.ParseFloat(e.getEnv("AUTO_SELL_AMOUNT_PERCENT", "50"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid AUTO_SELL_AMOUNT_PERCENT: %w", err)
	}

	priceCheckInterval, err := time.ParseDuration(e.getEnv("PRICE_CHECK_INTERVAL", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid PRICE_CHECK_INTERVAL: %w", err)
	}

	timezone := e.getEnv("TIMEZONE", "UTC")
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	cfg := &Config{
		Policy: PolicyConfig{
			File:    e.getEnv("POLICY_FILE", ""),
			Profile: e.getEnv("POLICY_PROFILE", ""),
			Watch:   watch,
		},
		Database: DatabaseConfig{
			URL:             e.getEnv("DATABASE_URL", ""),
			MaxOpenConns:    maxOpenConns,
			MaxIdleConns:    maxIdleConns,
			ConnMaxLifetime: connMaxLifetime,
		},
		Telegram: TelegramConfig{
			BotToken:  e.getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:    chatID,
			AdminIDs:  e.getEnv("TELEGRAM_ADMIN_IDS", ""),
			Whitelist: e.getEnv("TELEGRAM_WHITELIST", ""),
		},
		Webhook: WebhookConfig{
			URL:     e.getEnv("WEBHOOK_URL", ""),
			Secret:  e.getEnv("WEBHOOK_SECRET", ""),
			Timeout: webhookTimeout,
		},
		Guard: GuardConfig{
			Mode:          strings.ToLower(e.getEnv("MODE", domain.ModeShadow)),
			PilotMaxValue: pilotMax,
			SummaryHour:   summaryHour,
			Timezone:      timezone,
			Location:      loc,
			Language:      strings.ToLower(e.getEnv("LANGUAGE", "en")),
		},
		API: APIConfig{
			Addr:  e.getEnv("API_ADDR", ""),
			Token: e.getEnv("API_TOKEN", ""),
		},
		Bybit: BybitConfig{
			APIKey:          e.getEnv("BYBIT_API_KEY", ""),
			APISecret:       e.getEnv("BYBIT_API_SECRET", ""),
			BaseURL:         e.getEnv("BYBIT_BASE_URL", "https://api.bybit.com"),
			SlippagePercent: slippage,
		},
		Strategy: StrategyConfig{
			TradingSymbol:          strings.ToUpper(e.getEnv("TRADING_SYMBOL", "")),
			DCAAmount:              dcaAmount,
			DCAInterval:            dcaInterval,
			AutoSellEnabled:        autoSellEnabled,
			AutoSellTriggerPercent: autoSellTrigger,
			AutoSellAmountPercent:  autoSellAmount,
			PriceCheckInterval:     priceCheckInterval,
		},
		TraceFile: e.getEnv("TRACE_FILE", ""),
		LogLevel:  e.getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	var errs criterio.FieldErrorsBuilder

	switch c.Guard.Mode {
	case domain.ModeShadow, domain.ModePilot, domain.ModeFull:
	default:
		errs = errs.Append("MODE", fmt.Errorf("must be one of shadow|pilot|full, got %q", c.Guard.Mode))
	}
	if c.Guard.PilotMaxValue < 0 {
		errs = errs.Append("PILOT_MAX_VALUE", fmt.Errorf("must not be negative"))
	}
	if c.Guard.SummaryHour < 0 || c.Guard.SummaryHour > 23 {
		errs = errs.Append("SUMMARY_HOUR", fmt.Errorf("must be within [0,23], got %d", c.Guard.SummaryHour))
	}
	if c.Guard.Language != "en" && c.Guard.Language != "ru" {
		errs = errs.Append("LANGUAGE", fmt.Errorf("must be en or ru, got %q", c.Guard.Language))
	}

	if c.Telegram.BotToken != "" && c.Telegram.ChatID == 0 {
		errs = errs.Append("TELEGRAM_CHAT_ID", fmt.Errorf("is required when TELEGRAM_BOT_TOKEN is set"))
	}

	if c.Webhook.URL != "" {
		u, err := url.Parse(c.Webhook.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = errs.Append("WEBHOOK_URL", fmt.Errorf("must be an absolute http(s) url"))
		}
	}
	if c.Webhook.Timeout <= 0 {
		errs = errs.Append("WEBHOOK_TIMEOUT", fmt.Errorf("must be positive"))
	}

	if c.Database.MaxOpenConns <= 0 {
		errs = errs.Append("DB_MAX_OPEN_CONNS", fmt.Errorf("must be positive"))
	}
	if c.Database.MaxIdleConns < 0 || c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		errs = errs.Append("DB_MAX_IDLE_CONNS", fmt.Errorf("must be within [0,DB_MAX_OPEN_CONNS]"))
	}

	if c.Strategy.Enabled() {
		if !c.Bybit.Enabled() {
			errs = errs.Append("BYBIT_API_KEY", fmt.Errorf("is required when TRADING_SYMBOL and DCA_AMOUNT are set"))
		}
		if c.Strategy.DCAInterval <= 0 {
			errs = errs.Append("DCA_INTERVAL", fmt.Errorf("must be positive"))
		}
	}
	if c.Strategy.DCAAmount < 0 {
		errs = errs.Append("DCA_AMOUNT", fmt.Errorf("must not be negative"))
	}
	if c.Strategy.AutoSellEnabled {
		if c.Strategy.AutoSellTriggerPercent <= 0 {
			errs = errs.Append("AUTO_SELL_TRIGGER_PERCENT", fmt.Errorf("must be positive"))
		}
		if c.Strategy.AutoSellAmountPercent <= 0 || c.Strategy.AutoSellAmountPercent > 100 {
			errs = errs.Append("AUTO_SELL_AMOUNT_PERCENT", fmt.Errorf("must be within (0,100]"))
		}
		if c.Strategy.PriceCheckInterval <= 0 {
			errs = errs.Append("PRICE_CHECK_INTERVAL", fmt.Errorf("must be positive"))
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = errs.Append("LOG_LEVEL", fmt.Errorf("must be debug|info|warn|error, got %q", c.LogLevel))
	}

	return errs.ToError()
}
