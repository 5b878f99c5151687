// Package telemetry is the module's logging facade: a small set of
// leveled calls (Debug/Info/Warn/Error, each with an F variant) matching
// the teacher's tools/logger call shape, backed by zerolog instead of a
// bare *log.Logger writing to a fixed file. zerolog is grounded on its use
// across the example pack (joeycumines-go-utilpkg/logiface-zerolog depends
// on it directly; several other repos in the pack use it for structured
// output), and gives every call a caller-file:line field the way the
// teacher's logger.setPrefix did with runtime.Caller.
package telemetry

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}).
	With().Timestamp().CallerWithSkipFrameCount(3).Logger()

func Debug(v ...any) {
	logger.Debug().Msg(sprint(v...))
}

func DebugF(format string, v ...any) {
	logger.Debug().Msgf(format, v...)
}

func Info(v ...any) {
	logger.Info().Msg(sprint(v...))
}

func InfoF(format string, v ...any) {
	logger.Info().Msgf(format, v...)
}

func Warn(v ...any) {
	logger.Warn().Msg(sprint(v...))
}

func WarnF(format string, v ...any) {
	logger.Warn().Msgf(format, v...)
}

func Error(v ...any) {
	logger.Error().Msg(sprint(v...))
}

func ErrorF(format string, v ...any) {
	logger.Error().Msgf(format, v...)
}

func sprint(v ...any) string {
	if len(v) == 1 {
		if s, ok := v[0].(string); ok {
			return s
		}
		if err, ok := v[0].(error); ok {
			return err.Error()
		}
	}
	return fmt.Sprint(v...)
}
