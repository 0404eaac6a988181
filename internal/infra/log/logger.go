package log

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger создаёт настроенный zerolog.
func NewLogger(appEnv string) zerolog.Logger {
	level := zerolog.InfoLevel
	if appEnv == "dev" {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	zerolog.TimeFieldFormat = time.RFC3339
	return logger
}

// Component возвращает логгер с меткой компонента.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}
