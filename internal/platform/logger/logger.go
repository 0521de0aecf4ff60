package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger: JSON to stdout so log aggregation can
// index request_id, tenant_id and policy_id fields.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
