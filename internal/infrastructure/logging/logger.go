package logging

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mfduar8766/browserautomation/internal/infrastructure/config"
	"github.com/mfduar8766/browserautomation/internal/shared/id"
)

// Logger is the process logger, tagged with the run it belongs to.
type Logger struct {
	*zap.Logger
	RunID id.RunID

	level zap.AtomicLevel
}

// Config defines logger configuration.
type Config struct {
	Level       string // "debug", "info", "warn", "error"
	Development bool
	OutputPaths []string
}

// DefaultConfig returns JSON logging at info level on stderr.
func DefaultConfig() Config {
	return Config{
		Level:       "info",
		OutputPaths: []string{"stderr"},
	}
}

// DevelopmentConfig returns colored console logging at debug level.
func DevelopmentConfig() Config {
	return Config{
		Level:       "debug",
		Development: true,
		OutputPaths: []string{"stderr"},
	}
}

// FromConfig maps the host log settings onto a logger config.
func FromConfig(cfg config.LogConfig) Config {
	c := DefaultConfig()
	if cfg.Level != "" {
		c.Level = cfg.Level
	}
	c.Development = cfg.Development
	return c
}

// New builds a logger and tags it with a fresh run id. Sampling is off:
// renderer lines are forwarded one for one and must not be dropped.
func New(cfg Config) (*Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.EncoderConfig = productionEncoder()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapCfg.Level = level
	zapCfg.Sampling = nil
	zapCfg.DisableStacktrace = !cfg.Development
	zapCfg.OutputPaths = cfg.OutputPaths
	if len(zapCfg.OutputPaths) == 0 {
		zapCfg.OutputPaths = []string{"stderr"}
	}
	zapCfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	l := Wrap(logger)
	l.level = level
	return l, nil
}

// Wrap tags an existing zap logger with a fresh run id.
func Wrap(logger *zap.Logger) *Logger {
	runID := id.NewRunID()
	return &Logger{
		Logger: logger.With(zap.Stringer("run_id", runID)),
		RunID:  runID,
		level:  zap.NewAtomicLevelAt(logger.Level()),
	}
}

// LevelHandler serves the current level as JSON on GET and changes it on
// PUT. Only loggers built by New are affected by a change.
func (l *Logger) LevelHandler() http.Handler {
	return l.level
}

func productionEncoder() zapcore.EncoderConfig {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.MessageKey = "message"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeDuration = zapcore.StringDurationEncoder
	return enc
}
