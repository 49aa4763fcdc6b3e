// Package zaplog implements interfaces.Logger on top of zap.
package zaplog

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gabrielkoerich/vault/internal/domain/interfaces"
)

// Options selects level, encoding and destination
type Options struct {
	Level   string // debug, info, warn, error, off
	Format  string // console or json
	Color   bool
	Output  io.Writer
	NoTimes bool
}

// Logger adapts a zap.Logger to the domain Logger interface
type Logger struct {
	z *zap.Logger
}

// New builds a logger writing to opts.Output
func New(opts Options) (*Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	format := strings.ToLower(opts.Format)
	if format != "" && format != "console" && format != "json" {
		return nil, fmt.Errorf("unknown log format %q (want console or json)", opts.Format)
	}

	ec := zapcore.EncoderConfig{
		TimeKey:          "t",
		MessageKey:       "m",
		LevelKey:         "l",
		EncodeTime:       zapcore.RFC3339TimeEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
	if opts.NoTimes {
		ec.TimeKey = ""
	}

	var enc zapcore.Encoder
	if format == "json" {
		ec.EncodeLevel = zapcore.LowercaseLevelEncoder
		enc = zapcore.NewJSONEncoder(ec)
	} else {
		if opts.Color {
			ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		} else {
			ec.EncodeLevel = zapcore.CapitalLevelEncoder
		}
		enc = zapcore.NewConsoleEncoder(ec)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(opts.Output), level)
	return &Logger{z: zap.New(core)}, nil
}

// FromZap wraps an existing zap logger
func FromZap(z *zap.Logger) *Logger {
	return &Logger{z: z}
}

// ParseLevel maps a level name to a zap level; "off" silences everything below fatal
func ParseLevel(s string) (zapcore.LevelEnabler, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zap.DebugLevel, nil
	case "info":
		return zap.InfoLevel, nil
	case "", "warn", "warning":
		return zap.WarnLevel, nil
	case "error":
		return zap.ErrorLevel, nil
	case "off", "none":
		return zap.FatalLevel, nil
	default:
		return nil, fmt.Errorf("unknown log level %q", s)
	}
}

// Debug logs debug-level messages
func (l *Logger) Debug(msg string, fields ...interfaces.Field) {
	l.z.Debug(msg, toZap(fields)...)
}

// Info logs informational messages
func (l *Logger) Info(msg string, fields ...interfaces.Field) {
	l.z.Info(msg, toZap(fields)...)
}

// Warn logs warning messages
func (l *Logger) Warn(msg string, fields ...interfaces.Field) {
	l.z.Warn(msg, toZap(fields)...)
}

// Error logs error messages
func (l *Logger) Error(msg string, fields ...interfaces.Field) {
	l.z.Error(msg, toZap(fields)...)
}

// Sync flushes buffered entries
func (l *Logger) Sync() error {
	return l.z.Sync()
}

func toZap(fields []interfaces.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			out = append(out, zap.NamedError(f.Key, err))
			continue
		}
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}
