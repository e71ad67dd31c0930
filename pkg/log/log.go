package log

import (
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

var (
	// Logger is the global logger instance
	Logger zerolog.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
)

// Level represents log level
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// WithComponent creates a child logger with component field
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithZone creates a child logger with zone_id field
func WithZone(zoneID int64) zerolog.Logger {
	return Logger.With().Str("zone_id", strconv.FormatInt(zoneID, 10)).Logger()
}

// WithGateway creates a child logger with gateway field
func WithGateway(gateway string) zerolog.Logger {
	return Logger.With().Str("gateway", gateway).Logger()
}

// WithSegment creates a child logger with segment field
func WithSegment(segment string) zerolog.Logger {
	return Logger.With().Str("segment", segment).Logger()
}

// Info logs msg at info level on the global logger
func Info(msg string) {
	Logger.Info().Msg(msg)
}
