package logx

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"starloc/pkg/logconf"
)

// ConfirmMessage is logged at INFO by Init once a config is in place.
const ConfirmMessage = "Logger configuring finished."

var (
	ErrEmptyName = errors.New("logx: logger name is required")
	ErrClosed    = errors.New("logx: service closed")
)

// ---- Service (registry + sinks) ----

// Service owns the active routing state and every sink opened for it.
// All methods are safe for concurrent use.
type Service struct {
	mu     sync.Mutex // serializes Apply/Close
	closed bool

	// files holds the open file sinks of the active state, keyed by path.
	// Guarded by mu.
	files map[string]*fileSink

	root atomic.Value // stores *state

	// issued tracks every name handed out, for DisableExistingLoggers.
	issuedMu sync.Mutex
	issued   map[string]struct{}

	stderr  io.Writer
	stdout  io.Writer
	process string
	pid     int

	// one lock per stream, shared by every handler writing to it
	stderrMu *sync.Mutex
	stdoutMu *sync.Mutex

	report *reporter
}

type Option func(*Service)

// WithStderr replaces the standard error stream used by stream handlers and
// by logx's own diagnostics.
func WithStderr(w io.Writer) Option { return func(s *Service) { s.stderr = w } }

func WithStdout(w io.Writer) Option { return func(s *Service) { s.stdout = w } }

// WithProcessName sets what {process} renders as (default: executable base name).
func WithProcessName(name string) Option { return func(s *Service) { s.process = name } }

// New creates a Service that logs INFO and above to stderr until the first
// Apply.
func New(opts ...Option) *Service {
	zerolog.ErrorFieldName = "err"

	s := &Service{
		issued:   map[string]struct{}{},
		stderr:   os.Stderr,
		stdout:   os.Stdout,
		process:  filepath.Base(os.Args[0]),
		pid:      os.Getpid(),
		stderrMu: &sync.Mutex{},
		stdoutMu: &sync.Mutex{},
	}
	for _, o := range opts {
		o(s)
	}
	s.report = newReporter(s.stderr)
	s.root.Store(s.bootstrap())
	return s
}

var (
	defaultOnce sync.Once
	defaultSvc  *Service
)

// Default returns the process-wide Service.
func Default() *Service {
	defaultOnce.Do(func() { defaultSvc = New() })
	return defaultSvc
}

// Init builds today's built-in config under logconf.BaseDir, applies it to
// the process-wide Service and returns the logger called name.
//
// Every call rebuilds and reapplies the config. Files that stay the same keep
// their open sinks; the others are closed once the new ones are open.
func Init(name string) (Logger, error) {
	cfg, err := logconf.Default()
	if err != nil {
		return Logger{}, err
	}
	return Default().Init(cfg, name)
}

// Init applies cfg, then logs ConfirmMessage through the logger called name
// and returns it.
func (s *Service) Init(cfg logconf.Config, name string) (Logger, error) {
	if strings.TrimSpace(name) == "" {
		return Logger{}, ErrEmptyName
	}
	if err := s.Apply(cfg); err != nil {
		return Logger{}, err
	}
	l := s.Logger(name)
	l.Info(ConfirmMessage)
	return l, nil
}

// Logger returns the handle for name. "" is the root route.
func (s *Service) Logger(name string) Logger {
	s.issuedMu.Lock()
	s.issued[name] = struct{}{}
	s.issuedMu.Unlock()
	return Logger{svc: s, name: name}
}

// Apply validates cfg, opens all of its sinks and then swaps it in.
// Files the previous config already had open with the same rotation policy
// are carried over; the rest are closed after the swap.
// On error the previous config stays active and nothing opened is leaked.
func (s *Service) Apply(cfg logconf.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	st, files, err := s.build(cfg)
	if err != nil {
		return err
	}
	if cfg.DisableExistingLoggers {
		st.disabled = s.staleNames(cfg)
	}

	s.root.Store(st)
	for key, fs := range s.files {
		if files[key] != fs {
			_ = fs.Close()
		}
	}
	s.files = files
	return nil
}

// Close closes every sink. Records logged afterwards are dropped.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.root.Store(newState(nil))

	var errs []error
	for _, fs := range s.files {
		if err := fs.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.files = nil
	return errors.Join(errs...)
}

func (s *Service) current() *state {
	v := s.root.Load()
	if v == nil {
		return newState(nil)
	}
	st, ok := v.(*state)
	if !ok {
		return newState(nil)
	}
	return st
}

// staleNames lists issued names that cfg neither configures nor covers as a
// descendant of a configured (non-root) route.
func (s *Service) staleNames(cfg logconf.Config) map[string]struct{} {
	s.issuedMu.Lock()
	defer s.issuedMu.Unlock()

	out := map[string]struct{}{}
	for name := range s.issued {
		if name == logconf.RouteRoot {
			continue
		}
		keep := false
		for _, n := range ancestry(name) {
			if n == logconf.RouteRoot {
				break
			}
			if _, ok := cfg.Loggers[n]; ok {
				keep = true
				break
			}
		}
		if !keep {
			out[name] = struct{}{}
		}
	}
	return out
}

// build compiles cfg into a routing state and the file sinks it writes to.
// Sinks are opened here unless s.files already has a match; on failure the
// newly opened ones are closed again.
func (s *Service) build(cfg logconf.Config) (st *state, files map[string]*fileSink, err error) {
	var opened []sink
	defer func() {
		if err != nil {
			for _, sk := range opened {
				_ = sk.Close()
			}
		}
	}()

	// One sink per file, however many handlers write to it.
	files = map[string]*fileSink{}
	handlers := make(map[string]*handler, len(cfg.Handlers))
	for name, hc := range cfg.Handlers {
		fc := cfg.Formatters[hc.Formatter]
		tokens, err := logconf.ParseFormat(fc.Format)
		if err != nil {
			return nil, nil, fmt.Errorf("formatters.%s.format: %w", hc.Formatter, err)
		}
		level, err := logconf.ParseLevel(hc.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("handlers.%s.level: %w", name, err)
		}
		datefmt := fc.DateFormat
		if datefmt == "" {
			datefmt = logconf.DefaultDateFormat
		}

		var sk sink
		switch hc.Class {
		case logconf.ClassRotatingFile:
			key := filepath.Clean(hc.Filename)
			fs, ok := files[key]
			if !ok {
				if prev, live := s.files[key]; live && prev.rot == rotationOf(hc) {
					fs = prev
				} else {
					fs, err = openRotatingFile(hc)
					if err != nil {
						return nil, nil, fmt.Errorf("handlers.%s: open %s: %w", name, hc.Filename, err)
					}
					opened = append(opened, fs)
				}
				files[key] = fs
			}
			sk = fs
		case logconf.ClassStream:
			if strings.EqualFold(strings.TrimSpace(hc.Stream), "stdout") {
				sk = &streamSink{mu: s.stdoutMu, w: s.stdout}
			} else {
				sk = &streamSink{mu: s.stderrMu, w: s.stderr}
			}
		case logconf.ClassJournal:
			js, err := openJournal(s.process)
			if err != nil {
				return nil, nil, fmt.Errorf("handlers.%s: %w", name, err)
			}
			sk = js
		default:
			return nil, nil, fmt.Errorf("handlers.%s.class: unknown class %q", name, hc.Class)
		}

		handlers[name] = &handler{
			name:    name,
			level:   level,
			tokens:  tokens,
			datefmt: datefmt,
			process: s.process,
			pid:     s.pid,
			sink:    sk,
			report:  s.report,
		}
	}

	routes := make(map[string]*route, len(cfg.Loggers))
	for name, rc := range cfg.Loggers {
		level, err := logconf.ParseLevel(rc.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("loggers.%s.level: %w", name, err)
		}
		r := &route{level: level, propagate: rc.Propagate}
		for _, hn := range rc.Handlers {
			r.handlers = append(r.handlers, handlers[hn])
		}
		routes[name] = r
	}

	return newState(routes), files, nil
}

// bootstrap is the state before the first Apply: INFO and above to stderr.
func (s *Service) bootstrap() *state {
	tokens, _ := logconf.ParseFormat("[{level}][{time}]: {message}")
	h := &handler{
		name:    "bootstrap",
		level:   zerolog.InfoLevel,
		tokens:  tokens,
		datefmt: logconf.DefaultDateFormat,
		process: s.process,
		pid:     s.pid,
		sink:    &streamSink{mu: s.stderrMu, w: s.stderr},
		report:  s.report,
	}
	routes := map[string]*route{
		logconf.RouteRoot: {level: zerolog.InfoLevel, handlers: []*handler{h}},
	}
	return newState(routes)
}

// ---- Routing state ----

type route struct {
	level     zerolog.Level
	handlers  []*handler
	propagate bool
}

// binding is the resolved writer set and effective level for one name.
type binding struct {
	zl    zerolog.Logger
	level zerolog.Level
	off   bool
}

var offBinding = &binding{zl: zerolog.Nop(), level: zerolog.Disabled, off: true}

type state struct {
	routes   map[string]*route
	disabled map[string]struct{}

	mu       sync.RWMutex
	bindings map[string]*binding
}

func newState(routes map[string]*route) *state {
	return &state{routes: routes, bindings: map[string]*binding{}}
}

func (st *state) binding(name string) *binding {
	st.mu.RLock()
	b, ok := st.bindings[name]
	st.mu.RUnlock()
	if ok {
		return b
	}

	b = st.resolve(name)
	st.mu.Lock()
	st.bindings[name] = b
	st.mu.Unlock()
	return b
}

// resolve walks name's ancestry. The first configured route sets the
// effective level; handlers of every configured route are collected until a
// route that does not propagate.
func (st *state) resolve(name string) *binding {
	if _, ok := st.disabled[name]; ok {
		return offBinding
	}

	var (
		writers []io.Writer
		level   zerolog.Level
		found   bool
	)
	for _, n := range ancestry(name) {
		r, ok := st.routes[n]
		if !ok {
			continue
		}
		if !found {
			level = r.level
			found = true
		}
		for _, h := range r.handlers {
			writers = append(writers, h)
		}
		if !r.propagate {
			break
		}
	}
	if !found || len(writers) == 0 {
		return offBinding
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(level)
	return &binding{zl: zl, level: level}
}
