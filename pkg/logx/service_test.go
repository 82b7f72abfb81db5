package logx

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"starloc/pkg/logconf"
)

// lockedBuffer stands in for stderr; handlers may write from many goroutines.
type lockedBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (l *lockedBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func (l *lockedBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.String()
}

var testDate = time.Date(2024, 1, 15, 9, 30, 0, 0, time.Local)

func newTestService(t *testing.T) (*Service, *lockedBuffer, string) {
	t.Helper()
	console := &lockedBuffer{}
	svc := New(WithStderr(console), WithProcessName("test"))
	t.Cleanup(func() { _ = svc.Close() })
	return svc, console, t.TempDir()
}

func readLog(t *testing.T, base, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(base, "log", name))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("read %s: %v", name, err)
	}
	return string(b)
}

func TestInitLogsConfirmation(t *testing.T) {
	svc, console, base := newTestService(t)

	l, err := svc.Init(logconf.Build(testDate, base), "worker")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if l.Name() != "worker" {
		t.Fatalf("name = %q", l.Name())
	}

	if out := console.String(); !strings.Contains(out, "[INFO][") || !strings.Contains(out, "]: "+ConfirmMessage+"\n") {
		t.Fatalf("console missing confirmation: %q", out)
	}
	def := readLog(t, base, "2024-01-15.log")
	if !strings.Contains(def, "[task_id:worker]") || !strings.Contains(def, "[INFO]: "+ConfirmMessage+"\n") {
		t.Fatalf("default file missing confirmation: %q", def)
	}
	if errLog := readLog(t, base, "2024-01-15ERR.log"); errLog != "" {
		t.Fatalf("error file should be empty, got %q", errLog)
	}
}

func TestInitRequiresName(t *testing.T) {
	svc, _, base := newTestService(t)
	if _, err := svc.Init(logconf.Build(testDate, base), "  "); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("err = %v, want ErrEmptyName", err)
	}
}

func TestThresholdsAndFanOut(t *testing.T) {
	svc, console, base := newTestService(t)
	if err := svc.Apply(logconf.Build(testDate, base)); err != nil {
		t.Fatalf("apply: %v", err)
	}

	l := svc.Logger("worker")
	l.Debug("debug-only")
	l.Error("boom")

	out := console.String()
	if strings.Contains(out, "debug-only") || !strings.Contains(out, "[ERROR]") || !strings.Contains(out, "boom") {
		t.Fatalf("console = %q", out)
	}
	def := readLog(t, base, "2024-01-15.log")
	if !strings.Contains(def, "[DEBUG]: debug-only") || !strings.Contains(def, "[ERROR]: boom") {
		t.Fatalf("default file = %q", def)
	}
	errLog := readLog(t, base, "2024-01-15ERR.log")
	if strings.Contains(errLog, "debug-only") || !strings.Contains(errLog, "[ERROR]: boom") {
		t.Fatalf("error file = %q", errLog)
	}
}

func TestErrorRouteDoesNotPropagate(t *testing.T) {
	svc, console, base := newTestService(t)
	if err := svc.Apply(logconf.Build(testDate, base)); err != nil {
		t.Fatalf("apply: %v", err)
	}

	l := svc.Logger(logconf.RouteError)
	l.Warn("below-threshold")
	l.Error("only-error-file")

	errLog := readLog(t, base, "2024-01-15ERR.log")
	if n := strings.Count(errLog, "only-error-file"); n != 1 {
		t.Fatalf("error file has %d copies: %q", n, errLog)
	}
	if strings.Contains(readLog(t, base, "2024-01-15.log"), "only-error-file") {
		t.Fatalf("l_error record leaked into default file")
	}
	if strings.Contains(console.String(), "only-error-file") {
		t.Fatalf("l_error record leaked onto console")
	}
	if strings.Contains(errLog, "below-threshold") {
		t.Fatalf("warning passed the ERROR route")
	}
}

func TestDottedNamesInheritNearestRoute(t *testing.T) {
	svc, _, base := newTestService(t)
	if err := svc.Apply(logconf.Build(testDate, base)); err != nil {
		t.Fatalf("apply: %v", err)
	}

	child := svc.Logger("l_error.db")
	child.Info("child-info")
	child.Error("child-error")
	svc.Logger("worker.sub").Debug("grandchild-debug")

	def := readLog(t, base, "2024-01-15.log")
	errLog := readLog(t, base, "2024-01-15ERR.log")
	if strings.Contains(def, "child-info") || strings.Contains(errLog, "child-info") {
		t.Fatalf("l_error.db inherited the wrong level")
	}
	if strings.Count(errLog, "child-error") != 1 || strings.Contains(def, "child-error") {
		t.Fatalf("l_error.db error routed wrong: default=%q error=%q", def, errLog)
	}
	if !strings.Contains(def, "[task_id:worker.sub]") {
		t.Fatalf("worker.sub did not reach root route: %q", def)
	}
	if child.Enabled(LevelWarn) || !child.Enabled(LevelError) {
		t.Fatalf("Enabled disagrees with the l_error level")
	}
}

func TestApplyFailureKeepsPreviousState(t *testing.T) {
	svc, console, base := newTestService(t)
	// A file where the log directory should be.
	if err := os.WriteFile(filepath.Join(base, "log"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Init(logconf.Build(testDate, base), "worker"); err == nil {
		t.Fatal("expected init to fail")
	}
	svc.Logger("worker").Info("still-on-bootstrap")
	if !strings.Contains(console.String(), "still-on-bootstrap") {
		t.Fatalf("bootstrap console lost after failed apply: %q", console.String())
	}

	bad := logconf.Build(testDate, t.TempDir())
	bad.Loggers["extra"] = logconf.Route{Handlers: []string{"ghost"}, Level: logconf.LevelInfo}
	if err := svc.Apply(bad); !errors.Is(err, logconf.ErrDanglingRef) {
		t.Fatalf("err = %v, want ErrDanglingRef", err)
	}
}

func TestReapplyKeepsHandlesLive(t *testing.T) {
	svc, _, first := newTestService(t)
	if err := svc.Apply(logconf.Build(testDate, first)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	l := svc.Logger("worker")
	l.Info("before")

	second := t.TempDir()
	if err := svc.Apply(logconf.Build(testDate.AddDate(0, 0, 1), second)); err != nil {
		t.Fatalf("reapply: %v", err)
	}
	l.Info("after")

	if got := readLog(t, first, "2024-01-15.log"); !strings.Contains(got, "before") || strings.Contains(got, "after") {
		t.Fatalf("first file = %q", got)
	}
	if got := readLog(t, second, "2024-01-16.log"); !strings.Contains(got, "after") {
		t.Fatalf("second file = %q", got)
	}
}

func TestReapplyReusesOpenFiles(t *testing.T) {
	svc, _, base := newTestService(t)
	if _, err := svc.Init(logconf.Build(testDate, base), "worker"); err != nil {
		t.Fatalf("init: %v", err)
	}
	first := map[string]*fileSink{}
	for k, fs := range svc.files {
		first[k] = fs
	}

	before := runtime.NumGoroutine()
	for i := 0; i < 50; i++ {
		if _, err := svc.Init(logconf.Build(testDate, base), "worker"); err != nil {
			t.Fatalf("init %d: %v", i, err)
		}
	}
	if after := runtime.NumGoroutine(); after > before+5 {
		t.Fatalf("goroutines grew from %d to %d over 50 Init calls", before, after)
	}
	for k, fs := range first {
		if svc.files[k] != fs {
			t.Fatalf("%s was reopened", k)
		}
	}
	if n := strings.Count(readLog(t, base, "2024-01-15.log"), ConfirmMessage); n != 51 {
		t.Fatalf("default file has %d confirmations, want 51", n)
	}
}

func TestReapplyReopensFileWhenRotationChanges(t *testing.T) {
	svc, _, base := newTestService(t)
	cfg := logconf.Build(testDate, base)
	if err := svc.Apply(cfg); err != nil {
		t.Fatalf("apply: %v", err)
	}
	path := filepath.Clean(cfg.Handlers[logconf.HandlerDefault].Filename)
	old := svc.files[path]

	next := logconf.Build(testDate, base)
	h := next.Handlers[logconf.HandlerDefault]
	h.BackupCount = 0
	next.Handlers[logconf.HandlerDefault] = h
	if err := svc.Apply(next); err != nil {
		t.Fatalf("reapply: %v", err)
	}

	cur := svc.files[path]
	if cur == old {
		t.Fatalf("sink kept across a rotation change")
	}
	if _, ok := cur.w.(*os.File); !ok {
		t.Fatalf("expected a plain file, got %T", cur.w)
	}
	old.mu.Lock()
	closed := old.closed
	old.mu.Unlock()
	if !closed {
		t.Fatalf("replaced sink left open")
	}
}

func TestDisableExistingLoggers(t *testing.T) {
	svc, _, base := newTestService(t)
	legacy := svc.Logger("legacy")
	kept := svc.Logger("l_error.kept")

	cfg := logconf.Build(testDate, base)
	cfg.DisableExistingLoggers = true
	if err := svc.Apply(cfg); err != nil {
		t.Fatalf("apply: %v", err)
	}
	legacy.Error("from-legacy")
	kept.Error("from-kept")
	svc.Logger("fresh").Error("from-fresh")

	errLog := readLog(t, base, "2024-01-15ERR.log")
	if strings.Contains(errLog, "from-legacy") {
		t.Fatalf("pre-existing logger should be disabled")
	}
	if !strings.Contains(errLog, "from-kept") || !strings.Contains(errLog, "from-fresh") {
		t.Fatalf("error file = %q", errLog)
	}
}

func TestFieldsRenderAfterMessage(t *testing.T) {
	svc, console, base := newTestService(t)
	if err := svc.Apply(logconf.Build(testDate, base)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	svc.Logger("worker").With(String("store", "1042")).Warn("slow lookup", Int("ms", 350), Err(errors.New("timeout")))

	if out := console.String(); !strings.Contains(out, `]: slow lookup err="timeout" ms=350 store="1042"`) {
		t.Fatalf("console = %q", out)
	}
}

func TestFieldsNamedLikeMetadataKeepCallerInfo(t *testing.T) {
	svc, _, base := newTestService(t)
	if err := svc.Apply(logconf.Build(testDate, base)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	svc.Logger("worker").Error("import failed", String("file", "orders.csv"), String("logger", "other"), Int("line", 9999))

	got := readLog(t, base, "2024-01-15ERR.log")
	if !strings.Contains(got, "[task_id:worker][service_test.go:") {
		t.Fatalf("caller attribution lost: %q", got)
	}
	if !strings.Contains(got, `[ERROR]: import failed file="orders.csv" line=9999 logger="other"`+"\n") {
		t.Fatalf("fields lost: %q", got)
	}
}

func TestCriticalIsRecordedWithoutExit(t *testing.T) {
	svc, _, base := newTestService(t)
	if err := svc.Apply(logconf.Build(testDate, base)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	svc.Logger("worker").Critical("disk gone")
	if got := readLog(t, base, "2024-01-15ERR.log"); !strings.Contains(got, "[CRITICAL]: disk gone") {
		t.Fatalf("error file = %q", got)
	}
}

func TestConcurrentWritersKeepLinesIntact(t *testing.T) {
	svc, _, base := newTestService(t)
	if err := svc.Apply(logconf.Build(testDate, base)); err != nil {
		t.Fatalf("apply: %v", err)
	}

	const workers, each = 8, 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := svc.Logger("worker")
			for j := 0; j < each; j++ {
				l.Debug("tick")
			}
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(readLog(t, base, "2024-01-15.log")), "\n")
	if len(lines) != workers*each {
		t.Fatalf("got %d lines, want %d", len(lines), workers*each)
	}
	for _, ln := range lines {
		if !strings.HasSuffix(ln, "[DEBUG]: tick") {
			t.Fatalf("mangled line %q", ln)
		}
	}
}

func TestCloseDropsLaterRecords(t *testing.T) {
	svc, _, base := newTestService(t)
	l, err := svc.Init(logconf.Build(testDate, base), "worker")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	l.Error("after-close")
	if strings.Contains(readLog(t, base, "2024-01-15.log"), "after-close") {
		t.Fatalf("record written after Close")
	}
	if err := svc.Apply(logconf.Build(testDate, base)); !errors.Is(err, ErrClosed) {
		t.Fatalf("apply after close = %v", err)
	}
}
