// Package logging constructs the process-wide zap logger from the
// LOG_FORMAT / LOG_LEVEL configuration.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap.Logger for the given format ("json" or "text") and
// level filter. An unrecognised level falls back to info rather than
// failing startup over a typo in an environment variable.
func New(format, level string) (*zap.Logger, error) {
	var encoderCfg zapcore.EncoderConfig
	var encoder zapcore.Encoder

	switch strings.ToLower(format) {
	case "json", "":
		encoderCfg = zap.NewProductionEncoderConfig()
		encoderCfg.TimeKey = "ts"
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	case "text", "console":
		encoderCfg = zap.NewDevelopmentEncoderConfig()
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	default:
		return nil, fmt.Errorf("unrecognised LOG_FORMAT %q", format)
	}

	zapLevel, err := parseLevel(level)
	if err != nil {
		zapLevel = zap.InfoLevel
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stdout)), zapLevel)
	return zap.New(core), nil
}

func parseLevel(level string) (zapcore.Level, error) {
	var l zapcore.Level
	if level == "" {
		return zap.InfoLevel, nil
	}
	if err := l.Set(strings.ToLower(level)); err != nil {
		return zap.InfoLevel, err
	}
	return l, nil
}
