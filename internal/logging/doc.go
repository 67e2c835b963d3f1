// Package logging assembles structured slog loggers and formatting helpers used
// across rollop.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes typed attribute helpers so every component tags its lines with the
// same keys (component, run_id, process, pid). The console handler only emits
// ANSI colour when the caller asks for it, which lets the CLI honour
// --no-ansi-esc for log output as well as for its own status lines. A no-op
// logger is provided for tests and wiring code that cannot fail.
package logging
