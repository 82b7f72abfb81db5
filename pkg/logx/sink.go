package logx

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/coreos/go-systemd/v22/journal"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"starloc/pkg/logconf"
)

const megabyte = 1024 * 1024

// sink is where a handler's rendered lines end up.
type sink interface {
	writeLine(rec record, line []byte) error
	Close() error
}

// ---- Files ----

// fileSink serializes writes to one file and drops them once closed, so a
// record racing a re-Apply cannot reopen a file the new config replaced.
type fileSink struct {
	mu     sync.Mutex
	w      io.WriteCloser
	closed bool

	// rot is what the file was opened with; Apply reuses the sink only
	// while it stays the same.
	rot rotation
}

// rotation is the effective rotation policy of a file handler. The zero
// value means a plain append file.
type rotation struct {
	maxMiB  int
	backups int
}

func rotationOf(h logconf.Handler) rotation {
	if h.MaxBytes <= 0 || h.BackupCount <= 0 {
		return rotation{}
	}
	return rotation{
		maxMiB:  int((h.MaxBytes + megabyte - 1) / megabyte),
		backups: h.BackupCount,
	}
}

func (s *fileSink) writeLine(_ record, line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	_, err := s.w.Write(line)
	return err
}

func (s *fileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.w.Close()
}

// openRotatingFile opens h.Filename now so filesystem errors surface at
// Apply time rather than on the first record. Missing directories are created.
//
// Rotation happens once a write would take the file past MaxBytes (rounded up
// to whole MiB). MaxBytes or BackupCount of 0 disables rotation.
//
// Each lumberjack.Logger starts a pruning goroutine that Close does not stop.
// Service.Apply reuses open sinks so that happens once per file.
func openRotatingFile(h logconf.Handler) (*fileSink, error) {
	rot := rotationOf(h)
	if rot == (rotation{}) {
		if err := os.MkdirAll(filepath.Dir(h.Filename), 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(h.Filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		return &fileSink{w: f}, nil
	}

	lj := &lumberjack.Logger{
		Filename:   h.Filename,
		MaxSize:    rot.maxMiB,
		MaxBackups: rot.backups,
		LocalTime:  true,
	}
	// A zero-length write makes lumberjack open (or create) the file.
	if _, err := lj.Write(nil); err != nil {
		_ = lj.Close()
		return nil, err
	}
	return &fileSink{w: lj, rot: rot}, nil
}

// ---- Streams ----

type streamSink struct {
	mu *sync.Mutex
	w  io.Writer
}

func (s *streamSink) writeLine(_ record, line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.w.Write(line)
	return err
}

// Streams belong to the process; closing a config never closes them.
func (s *streamSink) Close() error { return nil }

// ---- systemd journal ----

type journalSink struct {
	identifier string
}

func openJournal(identifier string) (*journalSink, error) {
	if !journal.Enabled() {
		return nil, errors.New("systemd journal is not available")
	}
	return &journalSink{identifier: identifier}, nil
}

func (s *journalSink) writeLine(rec record, line []byte) error {
	vars := map[string]string{
		"SYSLOG_IDENTIFIER": s.identifier,
		"LOGGER":            rec.Logger,
	}
	if rec.File != "" {
		vars["CODE_FILE"] = rec.File
		vars["CODE_LINE"] = fmt.Sprint(rec.Line)
	}
	return journal.Send(string(bytes.TrimRight(line, "\n")), journalPriority(rec.Level), vars)
}

func (s *journalSink) Close() error { return nil }

func journalPriority(l zerolog.Level) journal.Priority {
	switch {
	case l <= zerolog.DebugLevel:
		return journal.PriDebug
	case l == zerolog.InfoLevel:
		return journal.PriInfo
	case l == zerolog.WarnLevel:
		return journal.PriWarning
	case l == zerolog.ErrorLevel:
		return journal.PriErr
	default:
		return journal.PriCrit
	}
}
