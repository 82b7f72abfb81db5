package logconf

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Names used by the built-in configuration.
const (
	FormatStandard = "standard"
	FormatSimple   = "simple"
	FormatCompact  = "compact"

	HandlerDefault = "default"
	HandlerStream  = "stream"
	HandlerError   = "error"

	RouteRoot  = ""
	RouteError = "l_error"
)

const (
	DefaultDateFormat = "2006-01-02 15:04:05"

	// DefaultMaxBytes is the rotation size of both built-in log files (5 MiB).
	DefaultMaxBytes    = 5 * 1024 * 1024
	DefaultBackupCount = 5
	DefaultEncoding    = "utf-8"

	fileDateLayout = "2006-01-02"
	logDirName     = "log"
)

const (
	standardFormat = "[{time}][{process}:{goroutine}][task_id:{logger}][{file}:{line}][{level}]: {message}"
	simpleFormat   = "[{level}][{time}][{file}:{line}]: {message}"
	compactFormat  = "[{level}][{time}]: {message}"
)

// LogFileNames returns the general and error-only file names for the
// calendar date of now, e.g. "2024-01-15.log" and "2024-01-15ERR.log".
func LogFileNames(now time.Time) (general, errs string) {
	d := now.Format(fileDateLayout)
	return d + ".log", d + "ERR.log"
}

// LogDir is the directory both built-in log files live in.
func LogDir(base string) string { return filepath.Join(base, logDirName) }

// BaseDir resolves the install root: the parent of the directory that holds
// the running executable.
func BaseDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	if real, err := filepath.EvalSymlinks(exe); err == nil {
		exe = real
	}
	return filepath.Dir(filepath.Dir(exe)), nil
}

// Default builds the configuration for today under BaseDir.
func Default() (Config, error) {
	base, err := BaseDir()
	if err != nil {
		return Config{}, err
	}
	return Build(time.Now(), base), nil
}

// Build returns the built-in configuration. The file names carry the date of
// now and are not refreshed afterwards; long-running processes keep writing
// to the file named for the day Build ran.
func Build(now time.Time, base string) Config {
	general, errs := LogFileNames(now)
	dir := LogDir(base)

	return Config{
		Version:                1,
		DisableExistingLoggers: false,
		Formatters: map[string]Formatter{
			FormatStandard: {Format: standardFormat, DateFormat: DefaultDateFormat},
			FormatSimple:   {Format: simpleFormat, DateFormat: DefaultDateFormat},
			FormatCompact:  {Format: compactFormat, DateFormat: DefaultDateFormat},
		},
		Handlers: map[string]Handler{
			HandlerDefault: {
				Class:       ClassRotatingFile,
				Level:       LevelDebug,
				Formatter:   FormatStandard,
				Filename:    filepath.Join(dir, general),
				MaxBytes:    DefaultMaxBytes,
				BackupCount: DefaultBackupCount,
				Encoding:    DefaultEncoding,
			},
			HandlerStream: {
				Class:     ClassStream,
				Level:     LevelInfo,
				Formatter: FormatSimple,
				Stream:    "stderr",
			},
			HandlerError: {
				Class:       ClassRotatingFile,
				Level:       LevelError,
				Formatter:   FormatStandard,
				Filename:    filepath.Join(dir, errs),
				MaxBytes:    DefaultMaxBytes,
				BackupCount: DefaultBackupCount,
				Encoding:    DefaultEncoding,
			},
		},
		Loggers: map[string]Route{
			RouteRoot: {
				Handlers:  []string{HandlerStream, HandlerDefault, HandlerError},
				Level:     LevelDebug,
				Propagate: false,
			},
			RouteError: {
				Handlers:  []string{HandlerError},
				Level:     LevelError,
				Propagate: false,
			},
		},
	}
}
