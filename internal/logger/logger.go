package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New в production пишет JSON, в остальных окружениях читаемый вывод в консоль
func New(env string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	level := zerolog.DebugLevel
	if env == "production" {
		level = zerolog.InfoLevel
	}

	var base zerolog.Logger
	if env == "production" {
		base = zerolog.New(os.Stdout)
	} else {
		base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	return base.Level(level).With().Timestamp().Str("service", "yard-service").Logger()
}
