package infra

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger constructs a zerolog.Logger with sane defaults for the service.
func NewLogger(appEnv string) zerolog.Logger {
	level := zerolog.InfoLevel
	if appEnv == "development" {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Logger()

	if appEnv == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	return logger
}

// Logger aliases zerolog.Logger so packages can accept a logger without
// importing the module directly.
type Logger = zerolog.Logger

// CronLogger adapts a zerolog logger to the Info/Error logger interface used by
// the scheduler.
type CronLogger struct {
	Logger zerolog.Logger
}

func (l CronLogger) Info(msg string, keysAndValues ...any) {
	l.Logger.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l CronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.Logger.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}

// GooseLogger adapts a zerolog logger to the Printf/Fatalf logger interface
// used by the migration runner.
type GooseLogger struct {
	Logger zerolog.Logger
}

func (l GooseLogger) Printf(format string, v ...any) {
	l.Logger.Info().Msgf("migrate: "+format, v...)
}

func (l GooseLogger) Fatalf(format string, v ...any) {
	l.Logger.Fatal().Msgf("migrate: "+format, v...)
}
