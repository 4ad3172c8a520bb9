package global

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func initLogger() {
	var err error
	if Logger, err = zap.NewDevelopment(); err != nil {
		fmt.Printf("Get logger error: %v", err.Error())
	}
}

// InitLogger replaces the development logger with one built for level.
func InitLogger(level string, development bool) error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return err
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		return err
	}
	Logger = logger
	return nil
}
