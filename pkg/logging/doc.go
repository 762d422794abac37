// Package logging provides the process-wide structured logger of pagedb.
//
// The package wraps [log/slog] and exposes a single global logger that is
// initialized once and retrieved through GetLogger. Operators, the buffer
// pool and the CLI obtain their loggers here so the level and the output
// destination are controlled from one place.
//
// # Initialisation
//
// Call Init (or InitDefault) once at program startup:
//
//	if err := logging.Init(logging.Config{Level: logging.LevelDebug, Format: "json"}); err != nil {
//	    log.Fatal(err)
//	}
//
// InitDefault writes INFO-level text logs to stderr.
//
// # Context helpers
//
// Helpers return child loggers carrying structured fields:
//
//	log := logging.WithOperator("SortMergeJoin") // adds operator field
//	log := logging.WithTable(name)                // adds table field
package logging
