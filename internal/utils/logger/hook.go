// internal/utils/logger/hook.go
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Hook receives log entries from the SDK, e.g. to forward them to a UI.
type Hook func(level, message string, fields map[string]interface{})

// hookCore is a zapcore.Core that calls a Hook. A panicking hook is
// recovered and the entry dropped, so logging never fails the caller.
type hookCore struct {
	zapcore.LevelEnabler
	hook   Hook
	fields []zapcore.Field
}

// NewHookCore returns a core feeding enabled entries to hook.
func NewHookCore(hook Hook, level zapcore.LevelEnabler) zapcore.Core {
	return &hookCore{LevelEnabler: level, hook: hook}
}

func (c *hookCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &hookCore{LevelEnabler: c.LevelEnabler, hook: c.hook, fields: merged}
}

func (c *hookCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *hookCore) Write(ent zapcore.Entry, fields []zapcore.Field) (err error) {
	if c.hook == nil {
		return nil
	}
	defer func() {
		_ = recover()
	}()

	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}
	if ent.LoggerName != "" {
		enc.Fields["logger"] = ent.LoggerName
	}
	c.hook(ent.Level.String(), ent.Message, enc.Fields)
	return nil
}

func (c *hookCore) Sync() error { return nil }

// WithHook tees l into hook. A nil hook returns l unchanged.
func WithHook(l *zap.Logger, hook Hook) *zap.Logger {
	if hook == nil {
		return l
	}
	if l == nil {
		l = zap.NewNop()
	}
	return l.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, NewHookCore(hook, zapcore.DebugLevel))
	}))
}
