// Package logging provides the leveled logger used across the engine.
// Entries are mirrored to a zap console logger and, when a store is
// attached, appended to the persistent log table.
package logging

import (
	"encoding/json"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"socialpress/internal/store"
)

// Level of a log entry.
type Level string

const (
	LevelDebug    Level = "debug"
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelError    Level = "error"
	LevelCritical Level = "critical"
)

var levelRank = map[Level]int{
	LevelDebug:    0,
	LevelInfo:     1,
	LevelWarning:  2,
	LevelError:    3,
	LevelCritical: 4,
}

// Levels returns the known levels in ascending severity order.
func Levels() []Level {
	return []Level{LevelDebug, LevelInfo, LevelWarning, LevelError, LevelCritical}
}

// Valid reports whether l is a known level.
func (l Level) Valid() bool {
	_, ok := levelRank[l]
	return ok
}

// Logger writes leveled entries. A nil store disables persistence.
type Logger struct {
	zl    *zap.Logger
	store *store.Store
	min   Level
}

// New creates a Logger. minLevel gates both sinks; unknown values fall
// back to info.
func New(st *store.Store, minLevel Level) *Logger {
	if !minLevel.Valid() {
		minLevel = LevelInfo
	}

	cfg := zap.NewProductionConfig()
	if minLevel == LevelDebug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	zl, err := cfg.Build()
	if err != nil {
		zl = zap.NewNop()
	}

	return &Logger{zl: zl, store: st, min: minLevel}
}

// NewNop returns a logger that discards everything. For tests.
func NewNop() *Logger {
	return &Logger{zl: zap.NewNop(), min: LevelInfo}
}

// Sync flushes the zap sink.
func (l *Logger) Sync() {
	_ = l.zl.Sync()
}

// Debug logs at debug level. The context map is stored as JSON; a
// campaign_id key is lifted into the dedicated column.
func (l *Logger) Debug(msg string, context map[string]any) { l.log(LevelDebug, msg, context) }

// Info logs at info level.
func (l *Logger) Info(msg string, context map[string]any) { l.log(LevelInfo, msg, context) }

// Warning logs at warning level.
func (l *Logger) Warning(msg string, context map[string]any) { l.log(LevelWarning, msg, context) }

// Error logs at error level.
func (l *Logger) Error(msg string, context map[string]any) { l.log(LevelError, msg, context) }

// Critical logs at critical level.
func (l *Logger) Critical(msg string, context map[string]any) { l.log(LevelCritical, msg, context) }

func (l *Logger) log(level Level, msg string, context map[string]any) {
	if levelRank[level] < levelRank[l.min] {
		return
	}

	fields := make([]zap.Field, 0, len(context))
	for k, v := range context {
		fields = append(fields, zap.Any(k, v))
	}
	switch level {
	case LevelDebug:
		l.zl.Debug(msg, fields...)
	case LevelInfo:
		l.zl.Info(msg, fields...)
	case LevelWarning:
		l.zl.Warn(msg, fields...)
	default:
		l.zl.Error(msg, fields...)
	}

	if l.store == nil {
		return
	}

	campaignID := campaignIDFrom(context)
	ctxJSON := ""
	if len(context) > 0 {
		if data, err := json.Marshal(context); err == nil {
			ctxJSON = string(data)
		}
	}
	if err := l.store.InsertLog(string(level), msg, campaignID, ctxJSON); err != nil {
		l.zl.Error("failed to persist log entry", zap.Error(err))
	}
}

func campaignIDFrom(context map[string]any) *int64 {
	v, ok := context["campaign_id"]
	if !ok {
		return nil
	}
	switch id := v.(type) {
	case int64:
		return &id
	case int:
		i := int64(id)
		return &i
	}
	return nil
}
