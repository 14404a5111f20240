package sysutil

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOptions selects how the global logger writes.
type LogOptions struct {
	Level  string
	Pretty bool   // human-readable console output
	File   string // optional rotating file; JSON regardless of Pretty
}

// stdout is swapped in tests.
var stdout io.Writer = os.Stdout

// SetupLogger configures the global zerolog logger and returns a close
// function for the file sink (a no-op when File is empty).
func SetupLogger(opts LogOptions) func() error {
	SetLogLevel(opts.Level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var console io.Writer = stdout
	if opts.Pretty {
		console = zerolog.ConsoleWriter{Out: stdout, TimeFormat: time.RFC3339}
	}

	closeFn := func() error { return nil }
	out := console
	if opts.File != "" {
		file := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50, // MB
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		}
		out = zerolog.MultiLevelWriter(console, file)
		closeFn = file.Close
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return closeFn
}
