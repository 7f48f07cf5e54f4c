package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logger configuration
type Config struct {
	Level  string // debug, info, warn, error
	Pretty bool   // human-readable console output for development
	LogDir string // when set, logs are mirrored to <LogDir>/hub.log
}

// New creates a configured zerolog logger
func New(cfg Config) zerolog.Logger {
	level := parseLevel(cfg.Level)

	var console io.Writer = os.Stdout
	if cfg.Pretty {
		console = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}
	}

	writers := []io.Writer{console}
	if cfg.LogDir != "" {
		if file, err := openLogFile(cfg.LogDir); err == nil {
			writers = append(writers, file)
		} else {
			// Fall back to console-only rather than failing startup.
			os.Stderr.WriteString("logger: cannot open log file: " + err.Error() + "\n")
		}
	}

	zerolog.TimeFieldFormat = time.RFC3339

	return zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Caller().
		Logger()
}

// SetGlobalLogger sets the global zerolog logger
func SetGlobalLogger(logger zerolog.Logger) {
	log.Logger = logger
}

func openLogFile(dir string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dir, "hub.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
