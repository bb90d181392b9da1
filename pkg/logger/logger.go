package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.Logger

// Options selects the encoder and minimum level of the global logger.
type Options struct {
	Development bool
	// Level is a zap level name ("debug", "info", "warn", ...). Empty keeps the
	// mode's default: debug in development, info in production.
	Level string
}

func init() {
	if err := InitializeLogger(Options{}); err != nil {
		os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n")
	}
}

// InitializeLogger replaces the global zap logger.
func InitializeLogger(opts Options) error {
	var config zap.Config
	if opts.Development {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
		config.Encoding = "json"
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.EncoderConfig.MessageKey = "message"
		config.EncoderConfig.LevelKey = "level"
		config.EncoderConfig.CallerKey = "caller"
		config.EncoderConfig.StacktraceKey = "stacktrace"
	}

	if lvl := strings.TrimSpace(opts.Level); lvl != "" {
		var level zapcore.Level
		if err := level.Set(lvl); err == nil {
			config.Level.SetLevel(level)
		} else if log != nil {
			log.Warn("Invalid log level, keeping default", zap.String("level", lvl))
		}
	}

	built, err := config.Build()
	if err != nil {
		log = zap.NewNop()
		return err
	}
	log = built

	zap.RedirectStdLog(log)
	return nil
}

// L returns the global logger instance.
func L() *zap.Logger {
	return log
}

// Sync flushes any buffered log entries.
func Sync() error {
	if log != nil {
		return log.Sync()
	}
	return nil
}

// Replace swaps the global logger and returns a func restoring the previous one.
func Replace(l *zap.Logger) (restore func()) {
	prev := log
	log = l
	return func() { log = prev }
}
