package aggregation

import (
	"log/slog"
	"pagedb/pkg/metrics"
)

type config struct {
	alias         string
	exactAverages bool
	hashOnly      bool
	logger        *slog.Logger
	metrics       *metrics.Metrics
}

// Option configures an Aggregate.
type Option func(*config)

// WithExactAverages computes each average from the group's running sum and
// count. By default the average is updated incrementally from the previous
// average, which accumulates floating-point error over long runs.
func WithExactAverages() Option {
	return func(c *config) { c.exactAverages = true }
}

// WithHashOnlyGroups treats records whose group keys hash equally as the same
// group, without comparing the grouping values. Distinct groups that collide
// are merged.
func WithHashOnlyGroups() Option {
	return func(c *config) { c.hashOnly = true }
}

// WithAlias sets the name under which expressions refer to the input, as in
// [alias.attr]. It defaults to the input table name.
func WithAlias(alias string) Option {
	return func(c *config) { c.alias = alias }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *config) { c.metrics = m }
}
