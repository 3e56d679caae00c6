package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"

	slogzap "github.com/samber/slog-zap/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig configures NewLogger.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Default: info
	Level string
	// Format is text or json. Default: text
	Format string
	// AddSource adds caller information to every record.
	AddSource bool
}

// NewLogger builds a zap logger writing to out (stderr when nil) and returns
// it bridged into slog. Callers should Sync the zap logger before exiting.
func NewLogger(cfg LogConfig, out io.Writer) (*slog.Logger, *zap.Logger) {
	if out == nil {
		out = os.Stderr
	}
	zl := buildZapLogger(cfg, out)
	handler := slogzap.Option{
		Level:     parseSlogLevel(cfg.Level),
		Logger:    zl,
		AddSource: cfg.AddSource,
	}.NewZapHandler()
	return slog.New(handler), zl
}

func buildZapLogger(cfg LogConfig, out io.Writer) *zap.Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.TimeKey = "time"

	var encoder zapcore.Encoder
	if strings.EqualFold(cfg.Format, "json") {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(out), parseZapLevel(cfg.Level))

	options := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.AddSource {
		options = append(options, zap.AddCaller())
	}
	return zap.New(core, options...)
}

// ValidLogLevel reports whether level is one NewLogger understands.
func ValidLogLevel(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "debug", "info", "warn", "error":
		return true
	}
	return false
}

func parseSlogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseZapLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
