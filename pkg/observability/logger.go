// Package observability builds the structured logger used across the
// evaluator. Loggers are constructed once and passed explicitly; there is no
// process-global logger state.
package observability

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LoggerConfig controls log verbosity and sinks.
type LoggerConfig struct {
	// Level is a zap level name: debug, info, warn, error.
	Level string `json:"level"`
	// Format selects the console encoder: "console" or "json".
	Format string `json:"format"`
	// LogFile, when set, adds a rotating JSON file sink.
	LogFile string `json:"logFile"`
	// MaxSizeMB is the rotation threshold for the file sink.
	MaxSizeMB  int `json:"maxSizeMB"`
	MaxBackups int `json:"maxBackups"`
	MaxAgeDays int `json:"maxAgeDays"`
}

// NewLogger builds a zap logger from cfg. Console output goes to stderr so it
// never interleaves with the CLI's progress display on stdout.
func NewLogger(cfg LoggerConfig) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	var consoleEncoder zapcore.Encoder
	if cfg.Format == "console" {
		consoleEncoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		consoleEncoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stderr), level),
	}

	if cfg.LogFile != "" {
		// lumberjack handles rotation and concurrent writes.
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), fileWriter, level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zap.ErrorLevel)), nil
}
