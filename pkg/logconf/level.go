package logconf

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Severity names as they appear in configs and rendered lines.
const (
	LevelDebug    = "DEBUG"
	LevelInfo     = "INFO"
	LevelWarning  = "WARNING"
	LevelError    = "ERROR"
	LevelCritical = "CRITICAL"
)

// ParseLevel maps a severity name onto a zerolog level.
// CRITICAL maps to zerolog.FatalLevel; records are never fatal to the process.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return zerolog.TraceLevel, nil
	case LevelDebug:
		return zerolog.DebugLevel, nil
	case LevelInfo:
		return zerolog.InfoLevel, nil
	case LevelWarning, "WARN":
		return zerolog.WarnLevel, nil
	case LevelError:
		return zerolog.ErrorLevel, nil
	case LevelCritical, "FATAL":
		return zerolog.FatalLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown level %q", s)
	}
}

// LevelName is the inverse of ParseLevel for rendering.
func LevelName(l zerolog.Level) string {
	switch {
	case l <= zerolog.TraceLevel:
		return "TRACE"
	case l == zerolog.DebugLevel:
		return LevelDebug
	case l == zerolog.InfoLevel:
		return LevelInfo
	case l == zerolog.WarnLevel:
		return LevelWarning
	case l == zerolog.ErrorLevel:
		return LevelError
	case l == zerolog.NoLevel:
		return ""
	default:
		return LevelCritical
	}
}
