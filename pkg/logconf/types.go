package logconf

import "errors"

var (
	// ErrInvalidConfig wraps every problem reported by Config.Validate.
	ErrInvalidConfig = errors.New("invalid logging config")
	// ErrDanglingRef marks a formatter or handler reference that names nothing.
	ErrDanglingRef = errors.New("dangling reference")
)

// HandlerClass selects the sink a handler writes to.
type HandlerClass string

const (
	ClassRotatingFile HandlerClass = "rotating_file"
	ClassStream       HandlerClass = "stream"
	ClassJournal      HandlerClass = "journal"
)

// Config is a declarative logging setup. Build one with Build (or load one
// from a file), then hand it to logx.Service.Apply.
type Config struct {
	Version int `json:"version"`

	// DisableExistingLoggers disables loggers handed out before Apply that
	// the new config does not mention.
	DisableExistingLoggers bool `json:"disable_existing_loggers"`

	Formatters map[string]Formatter `json:"formatters"`
	Handlers   map[string]Handler   `json:"handlers"`

	// Loggers maps route names to routing rules. "" is the root route.
	Loggers map[string]Route `json:"loggers"`
}

// Formatter is a line layout with {field} placeholders.
//
// Known fields: time, process, goroutine, pid, logger, file, line, level,
// message. Use {{ and }} for literal braces.
type Formatter struct {
	Format string `json:"format"`
	// DateFormat is a Go time layout for {time}. Empty means DefaultDateFormat.
	DateFormat string `json:"datefmt,omitempty"`
}

type Handler struct {
	Class     HandlerClass `json:"class"`
	Level     string       `json:"level"`
	Formatter string       `json:"formatter"`

	// rotating_file
	Filename    string `json:"filename,omitempty"`
	MaxBytes    int64  `json:"max_bytes,omitempty"`
	BackupCount int    `json:"backup_count,omitempty"`
	Encoding    string `json:"encoding,omitempty"`

	// stream: "stderr" (default) or "stdout".
	Stream string `json:"stream,omitempty"`
}

type Route struct {
	Handlers  []string `json:"handlers"`
	Level     string   `json:"level"`
	Propagate bool     `json:"propagate"`
}
