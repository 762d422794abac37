package join

import (
	"log/slog"
	"pagedb/pkg/execution/extsort"
	"pagedb/pkg/metrics"
)

type config struct {
	sort       extsort.Options
	leftAlias  string
	rightAlias string
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// Option configures a SortMergeJoin.
type Option func(*config)

// WithRunPages sets the number of pages sorted in memory per sort run.
func WithRunPages(n int) Option {
	return func(c *config) { c.sort.RunPages = n }
}

// WithFanIn sets the number of sort runs merged at once.
func WithFanIn(n int) Option {
	return func(c *config) { c.sort.FanIn = n }
}

// WithAliases sets the names under which expressions refer to the left and
// right inputs, as in [alias.attr]. They default to the table names.
func WithAliases(left, right string) Option {
	return func(c *config) { c.leftAlias, c.rightAlias = left, right }
}

// WithLogger sets the logger. The default is the global logger tagged with
// the operator name.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithMetrics records run outcomes and record counts in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *config) { c.metrics = m }
}
