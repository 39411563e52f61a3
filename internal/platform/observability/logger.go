package observability

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/boxoffice/checkout/internal/platform/requestctx"
)

const (
	defaultLogLevel = "info"
	serviceName     = "checkout-api"
)

// LoggerOption customises NewLogger.
type LoggerOption func(*loggerOptions)

type loggerOptions struct {
	level       string
	environment string
	version     string
}

// WithLogLevel overrides LOG_LEVEL.
func WithLogLevel(level string) LoggerOption {
	return func(o *loggerOptions) {
		o.level = level
	}
}

// WithServiceContext stamps every entry with the deployment environment and build version.
func WithServiceContext(environment, version string) LoggerOption {
	return func(o *loggerOptions) {
		o.environment = strings.TrimSpace(environment)
		o.version = strings.TrimSpace(version)
	}
}

// NewLogger constructs a production-ready zap logger emitting structured JSON.
func NewLogger(opts ...LoggerOption) (*zap.Logger, error) {
	options := loggerOptions{level: os.Getenv("LOG_LEVEL")}
	for _, opt := range opts {
		opt(&options)
	}

	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(options.level)))); err != nil {
		_ = level.UnmarshalText([]byte(defaultLogLevel))
	}

	cfg := zap.Config{
		Level:             level,
		Encoding:          "json",
		EncoderConfig:     encoderConfig(),
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: true,
		InitialFields:     serviceFields(options),
	}

	return cfg.Build()
}

// encoderConfig matches the field names Cloud Logging understands.
func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey: "message",
		TimeKey:    "timestamp",
		LevelKey:   "severity",
		EncodeTime: zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(strings.ToUpper(level.String()))
		},
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		CallerKey:      "caller",
		StacktraceKey:  "stacktrace",
	}
}

func serviceFields(options loggerOptions) map[string]any {
	fields := map[string]any{"service": serviceName}
	if options.environment != "" {
		fields["environment"] = options.environment
	}
	if options.version != "" {
		fields["version"] = options.version
	}
	return fields
}

// WithLogger injects the logger into the provided context.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return requestctx.WithLogger(ctx, logger)
}

// FromContext retrieves the logger from context, defaulting to a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	return requestctx.Logger(ctx)
}

// WithRequestFields augments the logger with standard request-scoped fields.
func WithRequestFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger.With(fields...)
}
