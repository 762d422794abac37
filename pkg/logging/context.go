package logging

import (
	"log/slog"
)

// WithTable creates a logger with table context.
//
// Example:
//
//	log := logging.WithTable("orders")
//	log.Info("loaded", "records", n)
func WithTable(tableName string) *slog.Logger {
	return GetLogger().With("table", tableName)
}

// WithPage creates a logger with page context.
// Useful for buffer pool and storage operations.
func WithPage(tableName string, pageNo uint64) *slog.Logger {
	return GetLogger().With("table", tableName, "page", pageNo)
}

// WithComponent creates a logger with component/subsystem context.
func WithComponent(component string) *slog.Logger {
	return GetLogger().With("component", component)
}

// WithOperator creates a logger for one physical operator invocation.
//
// Example:
//
//	log := logging.WithOperator("Aggregate")
//	log.Debug("page processed", "page", i, "groups", len(groups))
func WithOperator(operator string) *slog.Logger {
	return GetLogger().With("component", "execution", "operator", operator)
}

// WithError creates a logger with error context.
func WithError(err error) *slog.Logger {
	return GetLogger().With("error", err.Error())
}
