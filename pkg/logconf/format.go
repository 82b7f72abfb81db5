package logconf

import (
	"fmt"
	"strings"
)

// Record fields a Formatter may reference.
const (
	FieldTime      = "time"
	FieldProcess   = "process"
	FieldGoroutine = "goroutine"
	FieldPID       = "pid"
	FieldLogger    = "logger"
	FieldFile      = "file"
	FieldLine      = "line"
	FieldLevel     = "level"
	FieldMessage   = "message"
)

var knownFields = map[string]struct{}{
	FieldTime:      {},
	FieldProcess:   {},
	FieldGoroutine: {},
	FieldPID:       {},
	FieldLogger:    {},
	FieldFile:      {},
	FieldLine:      {},
	FieldLevel:     {},
	FieldMessage:   {},
}

// Token is one piece of a parsed layout: either literal text or a field.
type Token struct {
	Literal string
	Field   string
}

// ParseFormat splits a layout like "[{level}][{time}]: {message}" into tokens.
func ParseFormat(layout string) ([]Token, error) {
	var (
		out []Token
		lit strings.Builder
	)
	flush := func() {
		if lit.Len() > 0 {
			out = append(out, Token{Literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(layout); i++ {
		c := layout[i]
		switch c {
		case '{':
			if i+1 < len(layout) && layout[i+1] == '{' {
				lit.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(layout[i+1:], '}')
			if end < 0 {
				return nil, fmt.Errorf("unclosed placeholder at offset %d", i)
			}
			name := strings.TrimSpace(layout[i+1 : i+1+end])
			if _, ok := knownFields[name]; !ok {
				return nil, fmt.Errorf("unknown field {%s}", name)
			}
			flush()
			out = append(out, Token{Field: name})
			i += end + 1
		case '}':
			if i+1 < len(layout) && layout[i+1] == '}' {
				lit.WriteByte('}')
				i++
				continue
			}
			return nil, fmt.Errorf("unmatched '}' at offset %d", i)
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	if len(out) == 0 {
		return nil, fmt.Errorf("empty format")
	}
	return out, nil
}
