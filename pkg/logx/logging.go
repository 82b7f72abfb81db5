package logx

import (
	"bytes"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"starloc/pkg/logconf"
)

// ---- Logger API ----

type Level = zerolog.Level

const (
	LevelDebug    = zerolog.DebugLevel
	LevelInfo     = zerolog.InfoLevel
	LevelWarn     = zerolog.WarnLevel
	LevelError    = zerolog.ErrorLevel
	LevelCritical = zerolog.FatalLevel
)

// Event keys written by Logger and read back by handlers. The prefix keeps
// them apart from caller fields, so String("file", path) stays a field.
const (
	keyTime      = "_logx_time"
	keyLogger    = "_logx_logger"
	keyFile      = "_logx_file"
	keyLine      = "_logx_line"
	keyGoroutine = "_logx_goroutine"
	keyMessage   = "_logx_msg"
)

// Field mutates a zerolog event.
//
// Fields are applied in-order; if the same key is set twice, later fields win.
// Handlers render fields that are not part of their layout as key=value pairs
// after the message.
type Field func(e *zerolog.Event)

func String(k, v string) Field  { return func(e *zerolog.Event) { e.Str(k, v) } }
func Int(k string, v int) Field { return func(e *zerolog.Event) { e.Int(k, v) } }
func Int64(k string, v int64) Field {
	return func(e *zerolog.Event) { e.Int64(k, v) }
}
func Uint64(k string, v uint64) Field {
	return func(e *zerolog.Event) { e.Uint64(k, v) }
}
func Bool(k string, v bool) Field { return func(e *zerolog.Event) { e.Bool(k, v) } }
func Float64(k string, v float64) Field {
	return func(e *zerolog.Event) { e.Float64(k, v) }
}
func Duration(k string, v time.Duration) Field {
	return func(e *zerolog.Event) { e.Str(k, v.String()) }
}
func Time(k string, v time.Time) Field {
	return func(e *zerolog.Event) { e.Str(k, v.Format(time.RFC3339Nano)) }
}
func Any(k string, v any) Field { return func(e *zerolog.Event) { e.Interface(k, v) } }
func Err(err error) Field {
	return func(e *zerolog.Event) {
		if err != nil {
			e.Err(err)
		}
	}
}

// Logger is a named handle onto a Service.
//
//   - It stays "live" across Service.Apply() calls.
//   - With() returns a derived logger with additional fixed fields.
//   - Zero value is a safe no-op logger.
type Logger struct {
	svc  *Service
	name string

	fields []Field
}

func (l Logger) IsZero() bool { return l.svc == nil && l.name == "" && len(l.fields) == 0 }

// Name is the route name records are attributed to.
func (l Logger) Name() string { return l.name }

// Enabled reports whether a record at level would reach at least the
// route stage (handler thresholds may still drop it).
func (l Logger) Enabled(level Level) bool {
	if l.svc == nil {
		return false
	}
	b := l.svc.current().binding(l.name)
	return !b.off && level >= b.level
}

func (l Logger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	cp := l
	cp.fields = append(append([]Field(nil), l.fields...), fields...)
	return cp
}

func (l Logger) Debug(msg string, fields ...Field)    { l.log(zerolog.DebugLevel, msg, fields...) }
func (l Logger) Info(msg string, fields ...Field)     { l.log(zerolog.InfoLevel, msg, fields...) }
func (l Logger) Warn(msg string, fields ...Field)     { l.log(zerolog.WarnLevel, msg, fields...) }
func (l Logger) Error(msg string, fields ...Field)    { l.log(zerolog.ErrorLevel, msg, fields...) }
func (l Logger) Critical(msg string, fields ...Field) { l.log(zerolog.FatalLevel, msg, fields...) }

func (l Logger) log(level zerolog.Level, msg string, fields ...Field) {
	if l.svc == nil {
		return
	}
	b := l.svc.current().binding(l.name)
	if b.off {
		return
	}
	// WithLevel never exits, even at FatalLevel.
	e := b.zl.WithLevel(level)
	if e == nil {
		return
	}

	e.Str(keyTime, time.Now().Format(time.RFC3339Nano))
	e.Str(keyLogger, displayName(l.name))
	if file, line, ok := shortCaller(3); ok {
		e.Str(keyFile, file)
		e.Int(keyLine, line)
	}
	e.Uint64(keyGoroutine, goroutineID())

	// Fixed fields from With().
	for _, f := range l.fields {
		if f != nil {
			f(e)
		}
	}
	// Call-site fields.
	for _, f := range fields {
		if f != nil {
			f(e)
		}
	}

	e.Str(keyMessage, msg)
	e.Send()
}

func displayName(name string) string {
	if name == logconf.RouteRoot {
		return "root"
	}
	return name
}

func shortCaller(skip int) (string, int, bool) {
	_, file, line, ok := runtime.Caller(skip)
	if !ok || file == "" {
		return "", 0, false
	}
	return filepath.Base(file), line, true
}

// goroutineID parses the current goroutine's id out of its stack header
// ("goroutine 17 [running]:"). Returns 0 if the header is unexpected.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	s := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(s, ' '); i > 0 {
		s = s[:i]
	}
	id, err := strconv.ParseUint(string(s), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// ancestry lists name, its dotted parents, then the root route.
func ancestry(name string) []string {
	out := make([]string, 0, strings.Count(name, ".")+2)
	for n := name; n != ""; {
		out = append(out, n)
		i := strings.LastIndexByte(n, '.')
		if i < 0 {
			break
		}
		n = n[:i]
	}
	return append(out, logconf.RouteRoot)
}
