// Package logx applies a logconf.Config and hands out named loggers.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Routing by logger name (dotted ancestry, per-route propagation)
//   - Per-handler thresholds and line layouts
//   - Size-rotated files (lumberjack), console streams and the systemd journal
//
// Loggers stay live across Service.Apply: a handle obtained once keeps
// writing to whatever the latest config routes its name to.
package logx
