// Package logger builds configured slog.Logger instances with sane defaults:
// JSON output at info level for production, text output at debug level for
// development. Static attributes identify the service in aggregated logs.
package logger
