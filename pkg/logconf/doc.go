// Package logconf describes a logging setup as plain data: named formatters,
// handlers with severity thresholds and sinks, and named logger routes.
//
// Build returns the built-in setup (console at INFO, a rotating general log
// at DEBUG and a rotating error log, both under <base>/log and named for the
// day the config was built). Validate catches dangling references before
// logx.Service.Apply opens anything.
package logconf
