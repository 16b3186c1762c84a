package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls how the process logger is built.
type Config struct {
	Level      string // debug, info, warn, error, fatal
	Format     string // json or console
	Output     string // stdout, stderr, or a file path
	TimeFormat string // layout passed to zapcore.TimeEncoderOfLayout
}

// DefaultConfig is the development setup: colored console output at info.
func DefaultConfig() *Config {
	return &Config{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
}

// ProductionConfig emits JSON lines for log shipping.
func ProductionConfig() *Config {
	return &Config{
		Level:      "info",
		Format:     "json",
		Output:     "stdout",
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
}

// New builds a zap logger from cfg. Stacktraces are attached at error
// level and above; callers are always recorded.
func New(cfg *Config) (*zap.Logger, error) {
	core := zapcore.NewCore(newEncoder(cfg), newSink(cfg.Output), parseLevel(cfg.Level))
	return zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	), nil
}

// NewForEnvironment picks ProductionConfig when env is "production".
func NewForEnvironment(env string) (*zap.Logger, error) {
	if env == "production" {
		return New(ProductionConfig())
	}
	return New(DefaultConfig())
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func newEncoder(cfg *Config) zapcore.Encoder {
	ec := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout(cfg.TimeFormat),
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if cfg.Format == "console" {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}

func newSink(output string) zapcore.WriteSyncer {
	switch strings.ToLower(output) {
	case "stdout":
		return zapcore.AddSync(os.Stdout)
	case "stderr":
		return zapcore.AddSync(os.Stderr)
	default:
		f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			// unwritable path falls back to stdout rather than failing startup
			return zapcore.AddSync(os.Stdout)
		}
		return zapcore.AddSync(f)
	}
}

// Sync flushes buffered entries; safe to call on shutdown paths.
func Sync(logger *zap.Logger) error {
	return logger.Sync()
}
