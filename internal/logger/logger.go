// Package logger configures the process-wide zerolog logger. The CLI logs
// diagnostics to stderr only; command results go to stdout.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// Logger is the application logger instance
var Logger = zerolog.Nop()

// Init sets up logging on stderr
func Init(level, format string) {
	InitWithWriter(os.Stderr, level, format)
}

// InitWithWriter sets up logging on out. format "json" writes one JSON object
// per line; anything else uses the human-readable console writer, coloured
// only when out is a terminal.
func InitWithWriter(out io.Writer, level, format string) {
	zerolog.SetGlobalLevel(parseLogLevel(level))

	dest := out
	if !strings.EqualFold(format, "json") {
		dest = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.Kitchen,
			NoColor:    !isTerminal(out),
		}
	}

	Logger = zerolog.New(dest).With().Timestamp().Logger()
	log.Logger = Logger
}

// parseLogLevel maps LOG_LEVEL to a zerolog level, defaulting to info
func parseLogLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}
	if level == "" {
		return zerolog.InfoLevel
	}

	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return parsed
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// GetLogger returns the configured logger instance
func GetLogger() zerolog.Logger {
	return Logger
}
