package logx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"starloc/pkg/logconf"
)

// record is one decoded log event as seen by a handler.
type record struct {
	Time      time.Time
	Level     zerolog.Level
	Logger    string
	File      string
	Line      int
	Goroutine uint64
	Message   string

	// Fields holds everything not covered above, keyed by field name.
	Fields map[string]any
}

// handler is a zerolog.LevelWriter: it drops events below its threshold,
// renders the rest with its layout and writes one line to its sink.
type handler struct {
	name    string
	level   zerolog.Level
	tokens  []logconf.Token
	datefmt string

	process string
	pid     int

	sink   sink
	report *reporter
}

func (h *handler) Write(p []byte) (int, error) {
	return h.WriteLevel(zerolog.NoLevel, p)
}

func (h *handler) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < h.level {
		return len(p), nil
	}
	rec, err := decodeRecord(level, p)
	if err != nil {
		h.report.printf("handler %q: undecodable event: %v", h.name, err)
		return len(p), nil
	}
	if err := h.sink.writeLine(rec, h.render(rec)); err != nil {
		h.report.printf("handler %q: write failed: %v", h.name, err)
	}
	// Sink failures never reach the caller or the other handlers.
	return len(p), nil
}

func (h *handler) render(r record) []byte {
	var b bytes.Buffer
	for _, t := range h.tokens {
		if t.Field == "" {
			b.WriteString(t.Literal)
			continue
		}
		switch t.Field {
		case logconf.FieldTime:
			b.WriteString(r.Time.Local().Format(h.datefmt))
		case logconf.FieldProcess:
			b.WriteString(h.process)
		case logconf.FieldGoroutine:
			b.WriteString(strconv.FormatUint(r.Goroutine, 10))
		case logconf.FieldPID:
			b.WriteString(strconv.Itoa(h.pid))
		case logconf.FieldLogger:
			b.WriteString(r.Logger)
		case logconf.FieldFile:
			b.WriteString(r.File)
		case logconf.FieldLine:
			b.WriteString(strconv.Itoa(r.Line))
		case logconf.FieldLevel:
			b.WriteString(logconf.LevelName(r.Level))
		case logconf.FieldMessage:
			b.WriteString(r.Message)
		}
	}

	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(valString(r.Fields[k]))
	}
	b.WriteByte('\n')
	return b.Bytes()
}

// decodeRecord reads a zerolog event. zerolog writes its own level key
// first, so only a leading "level" is dropped; a caller field named "level"
// later in the event is kept. For other repeated keys the last one wins.
func decodeRecord(level zerolog.Level, p []byte) (record, error) {
	m, err := decodeEvent(p)
	if err != nil {
		return record{}, err
	}

	r := record{Level: level}
	if s, ok := m[keyTime].(string); ok {
		r.Time, _ = time.Parse(time.RFC3339Nano, s)
	}
	if r.Time.IsZero() {
		r.Time = time.Now()
	}
	r.Logger, _ = m[keyLogger].(string)
	r.File, _ = m[keyFile].(string)
	if n, ok := m[keyLine].(json.Number); ok {
		v, _ := n.Int64()
		r.Line = int(v)
	}
	if n, ok := m[keyGoroutine].(json.Number); ok {
		v, _ := strconv.ParseUint(n.String(), 10, 64)
		r.Goroutine = v
	}
	r.Message, _ = m[keyMessage].(string)

	for _, k := range []string{keyTime, keyLogger, keyFile, keyLine, keyGoroutine, keyMessage} {
		delete(m, k)
	}
	if len(m) > 0 {
		r.Fields = m
	}
	return r, nil
}

func decodeEvent(p []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(p))
	dec.UseNumber()
	if tok, err := dec.Token(); err != nil {
		return nil, err
	} else if tok != json.Delim('{') {
		return nil, fmt.Errorf("event is not an object: %v", tok)
	}

	m := map[string]any{}
	for first := true; dec.More(); first = false {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		if first && key == zerolog.LevelFieldName {
			continue
		}
		m[key] = v
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return m, nil
}

func valString(v any) string {
	switch x := v.(type) {
	case string:
		return strconv.Quote(x)
	case json.Number:
		return x.String()
	case nil:
		return "null"
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	default:
		return fmt.Sprint(x)
	}
}
