// Package log holds the zerolog loggers used across sled.  Until Init
// is called every logger is a no-op, so the library stays silent when
// embedded in a host application that never asks for logs.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type LoggerType uint8

const (
	ConsoleLogger LoggerType = iota
	JSONLogger
)

var (
	Root    = zerolog.Nop()
	Session = zerolog.Nop()
	Config  = zerolog.Nop()
	CLI     = zerolog.Nop()
	Engine  = zerolog.Nop()
)

// Options for Init
type Options struct {
	// default Info
	LogLevel zerolog.Level
	Type     LoggerType
	// Out defaults to os.Stderr so logs never mix with command
	// output on stdout.
	Out io.Writer
}

// ParseLoggerType maps a log format name to a LoggerType.  The empty
// name means console.
func ParseLoggerType(format string) (LoggerType, error) {
	switch strings.ToLower(format) {
	case "", "console":
		return ConsoleLogger, nil
	case "json":
		return JSONLogger, nil
	}
	return ConsoleLogger, fmt.Errorf("unknown log format %q", format)
}

func ParseLogLevel(loglevel string) (zerolog.Level, error) {
	return zerolog.ParseLevel(loglevel)
}

func Init(opts Options) {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	switch opts.Type {
	case ConsoleLogger:
		Root = zerolog.New(newConsoleWriter(out)).Level(opts.LogLevel).
			With().Timestamp().Logger()
	default:
		Root = zerolog.New(out).Level(opts.LogLevel).
			With().Timestamp().Logger()
	}
	Session = Root.With().Str("component", "session").Logger()
	Config = Root.With().Str("component", "config").Logger()
	CLI = Root.With().Str("component", "cli").Logger()
	Engine = Root.With().Str("component", "engine").Logger()
}

func newConsoleWriter(out io.Writer) zerolog.ConsoleWriter {
	cw := zerolog.ConsoleWriter{Out: out, NoColor: true, TimeFormat: time.RFC3339}

	cw.FormatLevel = func(i interface{}) string {
		return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
	}

	cw.FormatMessage = func(i interface{}) string {
		return fmt.Sprintf("%s |", i)
	}

	cw.FormatFieldName = func(i interface{}) string {
		return fmt.Sprintf("%s=", i)
	}

	cw.FormatFieldValue = func(i interface{}) string {
		return fmt.Sprintf("%s", i)
	}

	return cw
}
