// Package selection implements the filter-and-project pass over one table.
package selection

import (
	"context"
	"log/slog"
	"pagedb/pkg/dberror"
	"pagedb/pkg/expr"
	"pagedb/pkg/logging"
	"pagedb/pkg/metrics"
	"pagedb/pkg/table"
	"time"
)

const operatorName = "selection"

type config struct {
	alias   string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a RegularSelection.
type Option func(*config)

// WithAlias sets the name under which expressions refer to the input. It
// defaults to the input table name.
func WithAlias(alias string) Option {
	return func(c *config) { c.alias = alias }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// Stats counts what a run did.
type Stats struct {
	Input    int
	Rejected int
	Output   int
}

// RegularSelection copies the records of input accepted by filter into
// output, one projected record per accepted input record.
type RegularSelection struct {
	input, output *table.Table
	filter        string
	projections   []string

	cfg   config
	stats Stats
}

func NewRegularSelection(input, output *table.Table, filter string, projections []string, opts ...Option) *RegularSelection {
	cfg := config{alias: input.Name()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logging.WithOperator(operatorName)
	}
	return &RegularSelection{input: input, output: output, filter: filter, projections: projections, cfg: cfg}
}

// Stats returns the counters of the last Run.
func (s *RegularSelection) Stats() Stats {
	return s.stats
}

func (s *RegularSelection) compile() (*expr.Compiled, []*expr.Compiled, error) {
	scope := expr.Bind(s.cfg.alias, s.input.TupleDesc())

	filter, err := expr.CompilePredicate(s.filter, scope)
	if err != nil {
		return nil, nil, err
	}

	out := s.output.TupleDesc()
	if len(s.projections) != out.NumFields() {
		return nil, nil, dberror.SchemaMismatch("%d projections for an output of %d attributes",
			len(s.projections), out.NumFields())
	}
	projections := make([]*expr.Compiled, len(s.projections))
	for i, text := range s.projections {
		p, err := expr.Compile(text, scope)
		if err != nil {
			return nil, nil, err
		}
		if want, _ := out.TypeAtIndex(i); p.Type != want {
			return nil, nil, dberror.SchemaMismatch("projection %d %s has type %v, output attribute has %v",
				i, text, p.Type, want)
		}
		projections[i] = p
	}
	return filter, projections, nil
}

// Run executes the selection to completion.
func (s *RegularSelection) Run(ctx context.Context) (err error) {
	start := time.Now()
	s.stats = Stats{}
	defer func() { s.cfg.metrics.ObserveRun(operatorName, start, err) }()

	filter, projections, err := s.compile()
	if err != nil {
		return err
	}

	s.cfg.logger.Info("selection started", "input", s.input.Name(), "output", s.output.Name())
	if err := s.pass(ctx, filter, projections); err != nil {
		return dberror.Classify(err, "RegularSelection.Run", operatorName)
	}

	s.cfg.metrics.Records(operatorName, "input", s.stats.Input)
	s.cfg.metrics.Records(operatorName, "output", s.stats.Output)
	s.cfg.logger.Info("selection finished", "output", s.output.Name(), "records", s.stats.Output,
		"rejected", s.stats.Rejected, "elapsed", time.Since(start))
	return nil
}

func (s *RegularSelection) pass(ctx context.Context, filter *expr.Compiled, projections []*expr.Compiled) error {
	scan := s.input.Scan(ctx)
	defer scan.Close()

	app := s.output.NewAppender()
	defer app.Close()

	in := s.input.NewRecord()
	out := s.output.NewRecord()
	for {
		ok, err := scan.Advance()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if err := scan.Current(in); err != nil {
			return err
		}
		s.stats.Input++

		accepted, err := filter.Holds(in)
		if err != nil {
			return err
		}
		if !accepted {
			s.stats.Rejected++
			continue
		}

		for i, p := range projections {
			v, err := p.Eval(in)
			if err != nil {
				return err
			}
			if err := out.SetField(i, v); err != nil {
				return dberror.SchemaMismatch("projection %d: %v", i, err)
			}
		}
		out.MarkChanged()
		if _, err := app.Append(out); err != nil {
			return err
		}
		s.stats.Output++
	}
	return app.Close()
}
