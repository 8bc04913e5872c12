package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hay-kot/criterio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"LOG_LEVEL", "POLICY_FILE", "POLICY_PROFILE", "POLICY_WATCH", "DATABASE_URL",
	"DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME",
	"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "TELEGRAM_ADMIN_IDS", "TELEGRAM_WHITELIST",
	"WEBHOOK_URL", "WEBHOOK_SECRET", "WEBHOOK_TIMEOUT", "MODE", "PILOT_MAX_VALUE",
	"SUMMARY_HOUR", "TIMEZONE", "TRACE_FILE", "LANGUAGE", "API_ADDR", "API_TOKEN",
	"BYBIT_API_KEY", "BYBIT_API_SECRET", "BYBIT_BASE_URL", "SLIPPAGE_PERCENT",
	"TRADING_SYMBOL", "DCA_AMOUNT", "DCA_INTERVAL", "AUTO_SELL_ENABLED",
	"AUTO_SELL_TRIGGER_PERCENT", "AUTO_SELL_AMOUNT_PERCENT", "PRICE_CHECK_INTERVAL",
}

// clearEnv empty values are treated as unset by getEnv
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadFiles_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFiles(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "shadow", cfg.Guard.Mode)
	assert.Equal(t, 100.0, cfg.Guard.PilotMaxValue)
	assert.Equal(t, 8, cfg.Guard.SummaryHour)
	assert.Equal(t, time.UTC, cfg.Guard.Location)
	assert.Equal(t, "en", cfg.Guard.Language)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, 10*time.Second, cfg.Webhook.Timeout)
	assert.False(t, cfg.Policy.Watch)
	assert.False(t, cfg.Telegram.Enabled())
	assert.False(t, cfg.Webhook.Enabled())
	assert.False(t, cfg.Database.Enabled())
	assert.False(t, cfg.Strategy.Enabled())
	assert.Equal(t, 24*time.Hour, cfg.Strategy.DCAInterval)
	assert.Equal(t, "https://api.bybit.com", cfg.Bybit.BaseURL)
}

func TestLoadFiles_Strategy(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRADING_SYMBOL", "btcusdt")
	t.Setenv("DCA_AMOUNT", "25")
	t.Setenv("AUTO_SELL_ENABLED", "true")

	_, err := LoadFiles()
	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	require.Len(t, fieldErrs, 1)
	assert.Equal(t, "BYBIT_API_KEY", fieldErrs[0].Field)

	t.Setenv("BYBIT_API_KEY", "key")
	t.Setenv("BYBIT_API_SECRET", "secret")
	cfg, err := LoadFiles()
	require.NoError(t, err)
	assert.True(t, cfg.Strategy.Enabled())
	assert.Equal(t, "BTCUSDT", cfg.Strategy.TradingSymbol)
	assert.Equal(t, 10.0, cfg.Strategy.AutoSellTriggerPercent)
	assert.Equal(t, 50.0, cfg.Strategy.AutoSellAmountPercent)
}

func TestLoadFiles_EnvOverridesFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), ".env")
	content := "MODE=pilot\nTELEGRAM_BOT_TOKEN=file-token\nTELEGRAM_CHAT_ID=-1001\nLANGUAGE=ru\nPOLICY_WATCH=true\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("MODE", "FULL")
	t.Setenv("TIMEZONE", "Europe/Moscow")
	t.Setenv("WEBHOOK_URL", "https://hooks.example.com/guard")

	cfg, err := LoadFiles(path)
	require.NoError(t, err)

	assert.Equal(t, "full", cfg.Guard.Mode)
	assert.Equal(t, "file-token", cfg.Telegram.BotToken)
	assert.Equal(t, int64(-1001), cfg.Telegram.ChatID)
	assert.True(t, cfg.Telegram.Enabled())
	assert.True(t, cfg.Webhook.Enabled())
	assert.True(t, cfg.Policy.Watch)
	assert.Equal(t, "ru", cfg.Guard.Language)
	assert.Equal(t, "Europe/Moscow", cfg.Guard.Location.String())
}

func TestLoadFiles_ParseErrors(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"TELEGRAM_CHAT_ID", "abc"},
		{"DB_MAX_OPEN_CONNS", "many"},
		{"DB_CONN_MAX_LIFETIME", "5 minutes"},
		{"POLICY_WATCH", "maybe"},
		{"PILOT_MAX_VALUE", "lots"},
		{"SUMMARY_HOUR", "eight"},
		{"TIMEZONE", "Mars/Olympus"},
		{"WEBHOOK_TIMEOUT", "soon"},
		{"SLIPPAGE_PERCENT", "high"},
		{"DCA_AMOUNT", "ten"},
		{"DCA_INTERVAL", "daily"},
		{"AUTO_SELL_ENABLED", "sure"},
		{"PRICE_CHECK_INTERVAL", "often"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := LoadFiles()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid "+tt.key)
		})
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	clearEnv(t)
	t.Setenv("MODE", "yolo")
	t.Setenv("SUMMARY_HOUR", "24")
	t.Setenv("LANGUAGE", "de")
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("WEBHOOK_URL", "ftp://example.com")
	t.Setenv("LOG_LEVEL", "trace")

	_, err := LoadFiles()

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)

	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t, []string{
		"MODE", "SUMMARY_HOUR", "LANGUAGE", "TELEGRAM_CHAT_ID", "WEBHOOK_URL", "LOG_LEVEL",
	}, fields)
}

func TestValidate_IdleConns(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_MAX_OPEN_CONNS", "2")
	t.Setenv("DB_MAX_IDLE_CONNS", "3")

	_, err := LoadFiles()

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	require.Len(t, fieldErrs, 1)
	assert.Equal(t, "DB_MAX_IDLE_CONNS", fieldErrs[0].Field)
}
