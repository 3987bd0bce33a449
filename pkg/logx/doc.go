// Package logx is mediatrack's structured logging: a small Logger value over
// zerolog with typed field helpers, and a Service that owns the sinks (short
// console lines on stderr, JSON lines in a file) and can swap them when the
// config file is reloaded. Loggers derived from a Service follow the swap.
package logx
