package observability

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hanko-field/storefront/internal/platform/requestctx"
)

// NewLogger builds the JSON logger used by every process. LOG_LEVEL selects the level and
// defaults to info; keys follow the Cloud Logging structured payload names.
func NewLogger(service string) (*zap.Logger, error) {
	return newLogger(service, os.Getenv("LOG_LEVEL"))
}

func newLogger(service, levelName string) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if name := strings.TrimSpace(levelName); name != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(name))); err != nil {
			level.SetLevel(zapcore.InfoLevel)
		}
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.DisableStacktrace = true
	cfg.Sampling = nil
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.LevelKey = "severity"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	if service = strings.TrimSpace(service); service != "" {
		cfg.InitialFields = map[string]any{"service": service}
	}
	return cfg.Build()
}

// WithLogger injects the logger into ctx.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return requestctx.WithLogger(ctx, logger)
}

// PrintfAdapter satisfies the go-redis internal logger.
type PrintfAdapter struct {
	logger *zap.SugaredLogger
}

func NewPrintfAdapter(logger *zap.Logger) PrintfAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return PrintfAdapter{logger: logger.Sugar()}
}

// Printf prefers the request logger carried by ctx.
func (a PrintfAdapter) Printf(ctx context.Context, format string, args ...any) {
	if logger := requestctx.Logger(ctx); logger != requestctx.NoopLogger() {
		logger.Sugar().Infof(format, args...)
		return
	}
	a.logger.Infof(format, args...)
}
