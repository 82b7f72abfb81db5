package logconf

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Validate reports every inconsistency in c. The returned error wraps
// ErrInvalidConfig, and ErrDanglingRef when a reference names nothing.
func (c Config) Validate() error {
	var errs []error
	add := func(err error) { errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidConfig, err)) }

	if len(c.Handlers) == 0 {
		add(errors.New("handlers: none defined"))
	}
	if len(c.Loggers) == 0 {
		add(errors.New("loggers: none defined"))
	}

	for _, name := range sortedKeys(c.Formatters) {
		f := c.Formatters[name]
		if _, err := ParseFormat(f.Format); err != nil {
			add(fmt.Errorf("formatters.%s.format: %w", name, err))
		}
	}

	for _, name := range sortedKeys(c.Handlers) {
		h := c.Handlers[name]
		path := "handlers." + name
		if _, err := ParseLevel(h.Level); err != nil {
			add(fmt.Errorf("%s.level: %w", path, err))
		}
		if _, ok := c.Formatters[h.Formatter]; !ok {
			add(fmt.Errorf("%s.formatter: %w: formatter %q", path, ErrDanglingRef, h.Formatter))
		}
		switch h.Class {
		case ClassRotatingFile:
			if strings.TrimSpace(h.Filename) == "" {
				add(fmt.Errorf("%s.filename: required for %s", path, h.Class))
			}
			if h.MaxBytes < 0 {
				add(fmt.Errorf("%s.max_bytes: must be >= 0", path))
			}
			if h.BackupCount < 0 {
				add(fmt.Errorf("%s.backup_count: must be >= 0", path))
			}
			switch strings.ToLower(strings.TrimSpace(h.Encoding)) {
			case "", "utf-8", "utf8":
			default:
				add(fmt.Errorf("%s.encoding: unsupported encoding %q", path, h.Encoding))
			}
		case ClassStream:
			switch strings.ToLower(strings.TrimSpace(h.Stream)) {
			case "", "stderr", "stdout":
			default:
				add(fmt.Errorf("%s.stream: want stderr or stdout, got %q", path, h.Stream))
			}
		case ClassJournal:
		default:
			add(fmt.Errorf("%s.class: unknown class %q", path, h.Class))
		}
	}

	for _, name := range sortedKeys(c.Loggers) {
		r := c.Loggers[name]
		path := "loggers." + routeLabel(name)
		if _, err := ParseLevel(r.Level); err != nil {
			add(fmt.Errorf("%s.level: %w", path, err))
		}
		for _, hn := range r.Handlers {
			if _, ok := c.Handlers[hn]; !ok {
				add(fmt.Errorf("%s.handlers: %w: handler %q", path, ErrDanglingRef, hn))
			}
		}
	}

	return errors.Join(errs...)
}

// Expand resolves file-provided handler filenames: {date} becomes the
// calendar date of now, {base} the base directory, and relative names land
// under LogDir(base). Maps are copied; c is left untouched.
func (c Config) Expand(now time.Time, base string) Config {
	out := c
	out.Formatters = make(map[string]Formatter, len(c.Formatters))
	for k, v := range c.Formatters {
		out.Formatters[k] = v
	}
	out.Loggers = make(map[string]Route, len(c.Loggers))
	for k, v := range c.Loggers {
		v.Handlers = append([]string(nil), v.Handlers...)
		out.Loggers[k] = v
	}

	date := now.Format(fileDateLayout)
	out.Handlers = make(map[string]Handler, len(c.Handlers))
	for k, h := range c.Handlers {
		if h.Filename != "" {
			fn := strings.ReplaceAll(h.Filename, "{date}", date)
			fn = strings.ReplaceAll(fn, "{base}", base)
			if !filepath.IsAbs(fn) {
				fn = filepath.Join(LogDir(base), fn)
			}
			h.Filename = filepath.Clean(fn)
		}
		out.Handlers[k] = h
	}
	return out
}

func routeLabel(name string) string {
	if name == RouteRoot {
		return "<root>"
	}
	return name
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
