package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Logger *zap.SugaredLogger

func init() {
	Logger = newLogger()
}

// newLogger loads .env first so a LOG_LEVEL defined there is visible when the
// level is resolved.
func newLogger() *zap.SugaredLogger {
	_ = godotenv.Load()

	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if raw, ok := os.LookupEnv("LOG_LEVEL"); ok {
		parsed, err := zap.ParseAtomicLevel(raw)
		if err == nil {
			level.SetLevel(parsed.Level())
		} else {
			log.Printf("failed to parse log level, fallback to INFO: %v", err)
		}
	}
	config := zap.Config{
		Level:    level,
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:     "M",
			LevelKey:       "L",
			TimeKey:        "T",
			NameKey:        "N",
			CallerKey:      zapcore.OmitKey,
			FunctionKey:    zapcore.OmitKey,
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
		},
		// per-run progress is part of the CLI contract and belongs on stdout
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	logger, err := config.Build()
	if err != nil {
		panic(fmt.Errorf("failed to initialize logger: %w", err))
	}
	return logger.Sugar()
}
