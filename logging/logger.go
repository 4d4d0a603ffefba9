// Package logging wraps zerolog behind the sprintf-style call surface used
// across the engine, so call sites read logger.Infof("...", args) rather
// than chained zerolog field builders.
package logging

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a leveled, sprintf-style logger backed by zerolog.
type Logger struct {
	zl zerolog.Logger
}

var base Logger

func init() {
	base = New(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
}

// New builds a Logger. level is one of debug/info/warn/error (default info).
// format "json" selects structured output; anything else (including empty)
// selects a human-readable console writer.
func New(level, format string) Logger {
	var w zerolog.Logger
	if strings.EqualFold(format, "json") {
		w = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		cw := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		w = zerolog.New(cw).With().Timestamp().Logger()
	}
	w = w.Level(parseLevel(level))
	return Logger{zl: w}
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "":
		return zerolog.InfoLevel
	default:
		return zerolog.InfoLevel
	}
}

// Default returns the process-wide logger configured from LOG_LEVEL/LOG_FORMAT.
func Default() Logger { return base }

// With returns a child logger carrying an additional string field, used to
// scope log lines to a ticker, hash, or queue name.
func (l Logger) With(key, value string) Logger {
	return Logger{zl: l.zl.With().Str(key, value).Logger()}
}

func (l Logger) Debugf(format string, args ...any) { l.zl.Debug().Msg(fmt.Sprintf(format, args...)) }
func (l Logger) Debug(msg string)                  { l.zl.Debug().Msg(msg) }
func (l Logger) Infof(format string, args ...any)  { l.zl.Info().Msg(fmt.Sprintf(format, args...)) }
func (l Logger) Info(msg string)                   { l.zl.Info().Msg(msg) }
func (l Logger) Warnf(format string, args ...any)  { l.zl.Warn().Msg(fmt.Sprintf(format, args...)) }
func (l Logger) Warn(msg string)                   { l.zl.Warn().Msg(msg) }
func (l Logger) Errorf(format string, args ...any) { l.zl.Error().Msg(fmt.Sprintf(format, args...)) }
func (l Logger) Error(msg string)                  { l.zl.Error().Msg(msg) }
func (l Logger) Fatalf(format string, args ...any) { l.zl.Fatal().Msg(fmt.Sprintf(format, args...)) }
