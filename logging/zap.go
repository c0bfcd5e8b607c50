package logging

import "go.uber.org/zap"

// ZapAdapter wraps *zap.Logger to implement the Logger interface. Key/value
// arguments become zap.Any fields.
type ZapAdapter struct {
	logger *zap.Logger
}

// NewZapAdapter creates a Logger from *zap.Logger. A nil logger yields zap.NewNop.
func NewZapAdapter(logger *zap.Logger) *ZapAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapAdapter{logger: logger}
}

// Zap returns the wrapped logger.
func (z *ZapAdapter) Zap() *zap.Logger { return z.logger }

// Debug logs a debug message.
func (z *ZapAdapter) Debug(msg string, args ...any) { z.logger.Debug(msg, fields(args)...) }

// Info logs an informational message.
func (z *ZapAdapter) Info(msg string, args ...any) { z.logger.Info(msg, fields(args)...) }

// Warn logs a warning message.
func (z *ZapAdapter) Warn(msg string, args ...any) { z.logger.Warn(msg, fields(args)...) }

// Error logs an error message.
func (z *ZapAdapter) Error(msg string, args ...any) { z.logger.Error(msg, fields(args)...) }

func fields(args []any) []zap.Field {
	out := make([]zap.Field, 0, len(args)/2+1)
	for i := 0; i < len(args); {
		if f, ok := args[i].(zap.Field); ok {
			out = append(out, f)
			i++
			continue
		}
		key, ok := args[i].(string)
		if !ok || i+1 >= len(args) {
			out = append(out, zap.Any("!BADKEY", args[i]))
			i++
			continue
		}
		out = append(out, zap.Any(key, args[i+1]))
		i += 2
	}
	return out
}
