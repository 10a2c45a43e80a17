// Package logging constructs the process-wide logger, grounded on
// common/go/logging in the teacher repo: zap with a color-capable console
// encoder when attached to a terminal.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// Config is the logging subsystem configuration.
type Config struct {
	Level zapcore.Level `yaml:"level"`
}

// Init builds a SugaredLogger writing to stderr, colorized when stderr is a
// terminal.
func Init(cfg Config) (*zap.SugaredLogger, zap.AtomicLevel, error) {
	encoderConfig := zap.NewDevelopmentEncoderConfig()

	if term.IsTerminal(int(os.Stderr.Fd())) {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	zcfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(cfg.Level),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("logging: failed to initialize logger: %w", err)
	}

	return logger.Sugar(), zcfg.Level, nil
}
