package domain

// Operating modes
const (
	ModeShadow = "shadow"
	ModePilot  = "pilot"
	ModeFull   = "full"
)

// Notification channel types
const (
	ChannelTelegram = "telegram"
	ChannelWebhook  = "webhook"
)

// Audit event sources
const (
	SourceQueue        = "queue"
	SourceOrchestrator = "orchestrator"
	SourceRollback     = "rollback"
)

// Log levels
const (
	LogLevelInfo  = "INFO"
	LogLevelWarn  = "WARN"
	LogLevelError = "ERROR"
)
