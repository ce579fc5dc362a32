//go:build !logless

package pal

import (
	"os"

	"github.com/rs/zerolog"
)

// consoleLog is the default log sink: a zerolog console writer, matching
// the teacher's pkg/logger/logger.go setup (caller info, unix time
// format, stderr console writer).
var consoleLog = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
}

func defaultEmitLog(entry LogEntry) {
	var event *zerolog.Event
	switch entry.Level {
	case LevelDebug:
		event = consoleLog.Debug()
	case LevelWarn:
		event = consoleLog.Warn()
	case LevelError:
		event = consoleLog.Error()
	default:
		event = consoleLog.Info()
	}
	event.
		Str("file", entry.File).
		Str("func", entry.Func).
		Int("line", entry.Line).
		Msg(entry.Msg)
}
