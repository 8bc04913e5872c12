package utils

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger printf-style обертка над zerolog
type Logger struct {
	zl zerolog.Logger
}

var defaultLogger *Logger

func init() {
	defaultLogger = NewLogger("info")
}

// NewLogger создает логгер, пишущий JSON в stdout
func NewLogger(levelStr string) *Logger {
	return NewLoggerWithWriter(levelStr, os.Stdout)
}

// NewLoggerWithWriter создает логгер с произвольным writer (используется в тестах)
func NewLoggerWithWriter(levelStr string, w io.Writer) *Logger {
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil || levelStr == "" {
		level = zerolog.InfoLevel
	}

	zl := zerolog.New(w).
		With().
		Timestamp().
		Logger().
		Level(level)

	return &Logger{zl: zl}
}

// Nop возвращает логгер, который ничего не пишет
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// Component возвращает дочерний логгер с ключом cmp
func (l *Logger) Component(name string) *Logger {
	return &Logger{zl: l.zl.With().Str("cmp", name).Logger()}
}

// With возвращает дочерний логгер с дополнительным полем
func (l *Logger) With(key, value string) *Logger {
	return &Logger{zl: l.zl.With().Str(key, value).Logger()}
}

// Zerolog отдает нижележащий zerolog.Logger
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zl
}

func (l *Logger) Debug(format string, v ...interface{}) {
	l.zl.Debug().Msg(fmt.Sprintf(format, v...))
}

func (l *Logger) Info(format string, v ...interface{}) {
	l.zl.Info().Msg(fmt.Sprintf(format, v...))
}

func (l *Logger) Warn(format string, v ...interface{}) {
	l.zl.Warn().Msg(fmt.Sprintf(format, v...))
}

func (l *Logger) Error(format string, v ...interface{}) {
	l.zl.Error().Msg(fmt.Sprintf(format, v...))
}

// Default возвращает глобальный логгер
func Default() *Logger {
	return defaultLogger
}

// SetDefault заменяет глобальный логгер
func SetDefault(l *Logger) {
	if l != nil {
		defaultLogger = l
	}
}

// Global logging functions
func LogDebug(msg string) {
	defaultLogger.Debug("%s", msg)
}

func LogInfo(msg string) {
	defaultLogger.Info("%s", msg)
}

func LogWarn(msg string) {
	defaultLogger.Warn("%s", msg)
}

func LogError(msg string) {
	defaultLogger.Error("%s", msg)
}
