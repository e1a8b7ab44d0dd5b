// internal/logging/levels.go
package logging

import (
	"go.uber.org/zap/zapcore"
)

// TraceLevel is a custom level below Debug for ultra-verbose logging.
// Value: -2 (Debug is -1, Info is 0)
//
// Use for:
//   - Raw evdev frames
//   - Every swipe/pinch update and pointer move
//   - Almost always filtered
const TraceLevel = zapcore.Level(-2)

// LevelFromString parses a string into a zapcore.Level, supporting "trace".
func LevelFromString(level string) (zapcore.Level, error) {
	if level == "trace" {
		return TraceLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, err
	}
	return l, nil
}

// LevelFromVerbosity maps the CLI's repeatable -v flag onto a level.
// Zero keeps the configured level; debug forces at least Debug.
func LevelFromVerbosity(base zapcore.Level, verbose int, debug bool) zapcore.Level {
	lvl := base
	switch {
	case verbose == 1:
		lvl = zapcore.InfoLevel
	case verbose == 2:
		lvl = zapcore.DebugLevel
	case verbose >= 3:
		lvl = TraceLevel
	}
	if debug && lvl > zapcore.DebugLevel {
		lvl = zapcore.DebugLevel
	}
	return lvl
}
