package config

import "starloc/pkg/logconf"

// Config is the on-disk form of a logging setup (JSON or YAML).
//
// Handler filenames may use {date} and {base}; relative names land under
// <base>/log once expanded with logconf.Config.Expand. Parse keeps them raw so
// that change detection is not affected by the date.
//
// Example (YAML):
//
//	formatters:
//	  compact: {format: "[{level}][{time}]: {message}"}
//	handlers:
//	  console: {class: stream, level: INFO, formatter: compact}
//	  file:
//	    class: rotating_file
//	    level: DEBUG
//	    formatter: compact
//	    filename: "{date}.log"
//	    max_bytes: 5242880
//	    backup_count: 5
//	loggers:
//	  "": {handlers: [console, file], level: DEBUG}
type Config = logconf.Config
