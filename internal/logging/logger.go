// Package logging wraps a zap sugared logger and adapts it to the
// func(level, msg string) callbacks the guardian components accept.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the CLI's structured logger. Every entry, message text and
// key/value pairs alike, passes through secret redaction before it reaches
// the zap core.
type Logger struct {
	sugar *zap.SugaredLogger
}

// New builds a logger. mode "prod"/"production" logs JSON, anything else
// logs console output. debug lowers the level from info to debug.
func New(mode string, debug bool) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.DisableStacktrace = true
	}
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	cfg.OutputPaths = []string{"stderr"}

	zapLogger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return &Logger{sugar: zapLogger.Sugar()}, nil
}

// NewWithCore wraps an existing core, e.g. an observer in tests.
func NewWithCore(core zapcore.Core) *Logger {
	return &Logger{sugar: zap.New(core).Sugar()}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

// Sync flushes buffered entries. Errors from syncing stderr are ignored.
func (l *Logger) Sync() {
	_ = l.sugar.Sync()
}

func (l *Logger) Debug(msg string, kv ...any) { l.log(zapcore.DebugLevel, msg, kv) }
func (l *Logger) Info(msg string, kv ...any)  { l.log(zapcore.InfoLevel, msg, kv) }
func (l *Logger) Warn(msg string, kv ...any)  { l.log(zapcore.WarnLevel, msg, kv) }
func (l *Logger) Error(msg string, kv ...any) { l.log(zapcore.ErrorLevel, msg, kv) }

// With returns a child logger carrying the redacted pairs on every entry.
func (l *Logger) With(kv ...any) *Logger {
	return &Logger{sugar: l.sugar.With(sanitizeKVs(kv)...)}
}

func (l *Logger) log(level zapcore.Level, msg string, kv []any) {
	l.sugar.Logw(level, redactMessage(msg), sanitizeKVs(kv)...)
}

// LogFn returns a callback for component configs. Levels are "debug",
// "info", "warning" (or "warn") and "error"; unknown levels log at info.
func (l *Logger) LogFn(kv ...any) func(level, msg string) {
	named := l.With(kv...)
	return func(level, msg string) {
		named.log(componentLevel(level), msg, nil)
	}
}

func componentLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warning", "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	}
	return zapcore.InfoLevel
}

func sanitizeKVs(kv []interface{}) []interface{} {
	if len(kv) == 0 {
		return kv
	}
	out := make([]interface{}, 0, len(kv))
	for i := 0; i < len(kv); i += 2 {
		if i == len(kv)-1 {
			out = append(out, kv[i])
			break
		}
		key := strings.TrimSpace(strings.ToLower(fmt.Sprint(kv[i])))
		if isRedactKey(key) {
			out = append(out, kv[i], "[REDACTED]")
			continue
		}
		out = append(out, kv[i], kv[i+1])
	}
	return out
}

func isRedactKey(key string) bool {
	switch {
	case strings.Contains(key, "token"),
		strings.Contains(key, "authorization"),
		strings.Contains(key, "password"),
		strings.Contains(key, "secret"),
		strings.Contains(key, "api_key"),
		strings.Contains(key, "apikey"):
		return true
	default:
		return false
	}
}

// redactMessage masks bearer tokens and Groq/OpenAI style keys in free text.
func redactMessage(msg string) string {
	fields := strings.Fields(msg)
	changed := false
	for i, f := range fields {
		if looksLikeKey(f) || (i > 0 && strings.EqualFold(fields[i-1], "bearer")) {
			fields[i] = "[REDACTED]"
			changed = true
		}
	}
	if !changed {
		return msg
	}
	return strings.Join(fields, " ")
}

func looksLikeKey(s string) bool {
	s = strings.Trim(s, `"',;:()`)
	for _, prefix := range []string{"gsk_", "sk-"} {
		if strings.HasPrefix(s, prefix) && len(s) > len(prefix)+16 {
			return true
		}
	}
	return false
}
