// Package aggregation implements the single-pass hash group-by.
package aggregation

import (
	"context"
	"pagedb/pkg/dberror"
	"pagedb/pkg/expr"
	"pagedb/pkg/logging"
	"pagedb/pkg/table"
	"pagedb/pkg/tuple"
	"pagedb/pkg/types"
	"time"
)

const operatorName = "aggregate"

// Stats counts what a run did.
type Stats struct {
	Input      int // records read
	Rejected   int // records dropped by the filter
	Groups     int // output records
	Collisions int // records whose group key was taken by other grouping values
}

// Aggregate computes sum, avg and count per group in one pass over its input.
//
// Each group is materialized as one output record as soon as it is first
// seen, and that record is updated in place for every further member. The
// output pages stay pinned for the whole run, so the set of groups must fit
// in the buffer pool; when it does not, Run fails with a StorageFull error.
//
// The output schema is the grouping attributes followed by one attribute per
// AggSpec: double for sum and avg, int for count.
type Aggregate struct {
	input, output *table.Table
	aggs          []AggSpec
	groupings     []string
	filter        string

	cfg   config
	stats Stats
}

// NewAggregate creates an aggregation of input into output. An empty filter
// accepts every record.
func NewAggregate(input, output *table.Table, aggs []AggSpec, groupings []string, filter string, opts ...Option) *Aggregate {
	cfg := config{alias: input.Name()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logging.WithOperator(operatorName)
	}

	return &Aggregate{
		input:     input,
		output:    output,
		aggs:      aggs,
		groupings: groupings,
		filter:    filter,
		cfg:       cfg,
	}
}

// Stats returns the counters of the last Run.
func (a *Aggregate) Stats() Stats {
	return a.stats
}

type compiled struct {
	filter    *expr.Compiled
	groupings []*expr.Compiled
	operands  []*expr.Compiled
}

func (a *Aggregate) compile() (*compiled, error) {
	scope := expr.Bind(a.cfg.alias, a.input.TupleDesc())
	out := a.output.TupleDesc()

	if want := len(a.groupings) + len(a.aggs); out.NumFields() != want {
		return nil, dberror.SchemaMismatch("output has %d attributes, %d groupings and %d aggregates need %d",
			out.NumFields(), len(a.groupings), len(a.aggs), want)
	}

	var c compiled
	var err error
	if c.filter, err = expr.CompilePredicate(a.filter, scope); err != nil {
		return nil, err
	}

	for i, text := range a.groupings {
		g, err := expr.Compile(text, scope)
		if err != nil {
			return nil, err
		}
		if want, _ := out.TypeAtIndex(i); g.Type != want {
			return nil, dberror.SchemaMismatch("grouping %s has type %v, output attribute %d has %v",
				text, g.Type, i, want)
		}
		c.groupings = append(c.groupings, g)
	}

	for i, spec := range a.aggs {
		op, err := expr.Compile(spec.Expr, scope)
		if err != nil {
			return nil, err
		}
		if spec.Kind != Count && !op.Type.IsNumeric() {
			return nil, dberror.SchemaMismatch("%s needs a numeric operand, %s is %v", spec.Kind, spec.Expr, op.Type)
		}
		idx := len(a.groupings) + i
		if want, _ := out.TypeAtIndex(idx); want != spec.Kind.ResultType() {
			return nil, dberror.SchemaMismatch("%s is stored as %v, output attribute %d has %v",
				spec, spec.Kind.ResultType(), idx, want)
		}
		c.operands = append(c.operands, op)
	}
	return &c, nil
}

// Run executes the aggregation to completion.
func (a *Aggregate) Run(ctx context.Context) (err error) {
	start := time.Now()
	a.stats = Stats{}
	defer func() { a.cfg.metrics.ObserveRun(operatorName, start, err) }()

	c, err := a.compile()
	if err != nil {
		return err
	}

	a.cfg.logger.Info("aggregate started", "input", a.input.Name(), "output", a.output.Name(),
		"groupings", len(a.groupings), "aggregates", len(a.aggs))

	if err := a.pass(ctx, c); err != nil {
		return dberror.Classify(err, "Aggregate.Run", operatorName)
	}

	a.cfg.metrics.Records(operatorName, "input", a.stats.Input)
	a.cfg.metrics.Records(operatorName, "output", a.stats.Groups)
	a.cfg.logger.Info("aggregate finished", "output", a.output.Name(), "groups", a.stats.Groups,
		"input", a.stats.Input, "rejected", a.stats.Rejected, "collisions", a.stats.Collisions,
		"elapsed", time.Since(start))
	return nil
}

func (a *Aggregate) pass(ctx context.Context, c *compiled) error {
	scan := a.input.Scan(ctx)
	defer scan.Close()

	app := a.output.NewAppender(table.RetainPages())
	defer app.Close()

	groups := newGroupTable(a.cfg.hashOnly)
	in := a.input.NewRecord()
	out := a.output.NewRecord()
	values := make([]types.Field, len(c.groupings))
	operands := make([]float64, len(c.operands))

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
		a.stats.Input++

		accepted, err := c.filter.Holds(in)
		if err != nil {
			return err
		}
		if !accepted {
			a.stats.Rejected++
			continue
		}

		for i, g := range c.groupings {
			if values[i], err = g.Eval(in); err != nil {
				return err
			}
		}
		for i, op := range c.operands {
			if a.aggs[i].Kind == Count {
				continue
			}
			v, err := op.Eval(in)
			if err != nil {
				return err
			}
			operands[i] = v.ToFloat()
		}

		key := groupKey(values)
		g, collided := groups.lookup(key, values)
		if collided {
			a.stats.Collisions++
		}

		if g == nil {
			g, err = a.newGroup(app, out, values, operands)
			if err != nil {
				return err
			}
			groups.insert(key, g)
			continue
		}
		if err := a.update(g, out, operands); err != nil {
			return err
		}
	}

	a.stats.Groups = groups.Len()
	return app.Close()
}

// newGroup materializes the output record of a group seen for the first time.
func (a *Aggregate) newGroup(app *table.Appender, out *tuple.Tuple, values []types.Field, operands []float64) (*group, error) {
	g := &group{
		values: append([]types.Field(nil), values...),
		acc:    accumulator{count: 1, sums: append([]float64(nil), operands...)},
	}

	for i, v := range values {
		if err := out.SetField(i, v); err != nil {
			return nil, err
		}
	}
	for i, spec := range a.aggs {
		var f types.Field = types.NewFloat64Field(operands[i])
		if spec.Kind == Count {
			f = types.NewIntField(1)
		}
		if err := out.SetField(len(values)+i, f); err != nil {
			return nil, err
		}
	}
	out.MarkChanged()

	loc, err := app.Append(out)
	if err != nil {
		return nil, err
	}
	g.loc = loc
	return g, nil
}

// update folds one more member into an existing group and rewrites its
// output record in place.
func (a *Aggregate) update(g *group, out *tuple.Tuple, operands []float64) error {
	if err := a.output.ReadAt(g.loc, out); err != nil {
		return err
	}

	g.acc.count++
	n := float64(g.acc.count)
	base := len(g.values)
	for i, spec := range a.aggs {
		g.acc.sums[i] += operands[i]

		var f types.Field
		switch spec.Kind {
		case Count:
			f = types.NewIntField(g.acc.count)
		case Sum:
			f = types.NewFloat64Field(g.acc.sums[i])
		case Avg:
			if a.cfg.exactAverages {
				f = types.NewFloat64Field(g.acc.sums[i] / n)
			} else {
				prev, err := out.GetField(base + i)
				if err != nil {
					return err
				}
				f = types.NewFloat64Field((prev.ToFloat()*(n-1) + operands[i]) / n)
			}
		}
		if err := out.SetField(base+i, f); err != nil {
			return err
		}
	}

	out.MarkChanged()
	return a.output.WriteAt(g.loc, out)
}
