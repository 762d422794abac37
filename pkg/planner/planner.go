// Package planner turns select-from-where queries into runs of the physical
// operators: a selection or aggregation over one table, or a sort-merge join
// of two tables, optionally followed by an aggregation of the join result.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"pagedb/pkg/dberror"
	"pagedb/pkg/execution/aggregation"
	"pagedb/pkg/execution/join"
	"pagedb/pkg/execution/selection"
	"pagedb/pkg/expr"
	"pagedb/pkg/logging"
	"pagedb/pkg/metrics"
	"pagedb/pkg/table"
	"pagedb/pkg/tuple"
	"pagedb/pkg/types"
	"slices"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Config tunes the operators the planner runs. Zero values take the operator
// defaults.
type Config struct {
	RunPages       int
	FanIn          int
	ExactAverages  bool
	HashOnlyGroups bool
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
}

// Planner executes queries against the tables of one manager. Output tables
// are catalogued under generated names, Join<n>Out for joins and res<n>Out
// for everything else.
type Planner struct {
	mgr *table.Manager
	cfg Config
	log *slog.Logger

	mutex   sync.Mutex
	counter int
}

// New creates a planner over mgr. A nil cfg.Logger leaves each operator on
// its default logger.
func New(mgr *table.Manager, cfg Config) *Planner {
	log := cfg.Logger
	if log == nil {
		log = logging.WithComponent("planner")
	}
	return &Planner{mgr: mgr, cfg: cfg, log: log}
}

// Execute plans q and runs it to completion.
//
// Parameters:
//   - ctx: cancels the run between pages
//   - q: a validated query
//
// Returns:
//   - *Result: the output table and the operators that produced it
//   - error: COMPILE_ERROR or SCHEMA_MISMATCH before any I/O, or the error of
//     the failing operator
func (p *Planner) Execute(ctx context.Context, q *Query) (*Result, error) {
	if err := q.Validate(); err != nil {
		return nil, dberror.Compile("query", err)
	}

	inputs := make([]*table.Table, len(q.Tables))
	for i, ref := range q.Tables {
		t, err := p.mgr.Get(ref.Name)
		if err != nil {
			return nil, err
		}
		inputs[i] = t
	}

	p.log.Debug("query planned", "tables", len(inputs), "aggregates", q.hasAggregates(),
		"conjuncts", len(q.Where))

	res := &Result{}
	start := time.Now()
	var err error
	if len(inputs) == 1 {
		err = p.single(ctx, q, inputs[0], res)
	} else {
		err = p.join(ctx, q, inputs[0], inputs[1], res)
	}
	if err != nil {
		return nil, err
	}
	res.Elapsed = time.Since(start)

	p.log.Info("query finished", "output", res.Output.Name(), "steps", len(res.Steps),
		"elapsed", res.Elapsed)
	return res, nil
}

// columns compiles the regular select items and the aggregates of q.
type columns struct {
	regular      []string
	regularTypes []types.Type
	regularNames []string
	aggs         []aggregation.AggSpec
}

func splitSelect(q *Query, scope ...expr.Binding) (*columns, error) {
	var c columns
	for _, item := range q.Select {
		if item.Agg != "" {
			spec, err := aggregateSpec(item)
			if err != nil {
				return nil, dberror.Compile(item.Expr, err)
			}
			c.aggs = append(c.aggs, spec)
			continue
		}

		compiled, err := expr.Compile(item.Expr, scope...)
		if err != nil {
			return nil, err
		}
		c.regular = append(c.regular, item.Expr)
		c.regularTypes = append(c.regularTypes, compiled.Type)
		c.regularNames = append(c.regularNames, columnName(item.Expr, len(c.regularNames)))
	}
	return &c, nil
}

// columnName names an output column after the attribute it copies, or by
// position for computed columns.
func columnName(text string, i int) string {
	if n, err := expr.Parse(text); err == nil && n.Kind == expr.AttributeNode {
		return n.Name
	}
	return fmt.Sprintf("c%d", i)
}

// aggregateSchema is the output of an aggregation: the groupings followed by
// one column per aggregate.
func aggregateSchema(groupTypes []types.Type, groupNames []string, aggs []aggregation.AggSpec) (*tuple.TupleDescription, error) {
	fieldTypes := slices.Clone(groupTypes)
	names := slices.Clone(groupNames)
	for _, a := range aggs {
		fieldTypes = append(fieldTypes, a.Kind.ResultType())
		names = append(names, a.Kind.String())
	}
	return tuple.NewTupleDesc(fieldTypes, names)
}

func (p *Planner) single(ctx context.Context, q *Query, input *table.Table, res *Result) error {
	alias := q.Tables[0].alias()
	cols, err := splitSelect(q, expr.Bind(alias, input.TupleDesc()))
	if err != nil {
		return err
	}
	filter := conjoin(q.Where)

	if len(cols.aggs) == 0 {
		td, err := tuple.NewTupleDesc(cols.regularTypes, cols.regularNames)
		if err != nil {
			return dberror.SchemaMismatch("selection output: %v", err)
		}
		out, err := p.createOutput("res", td)
		if err != nil {
			return err
		}

		sel := selection.NewRegularSelection(input, out, filter, cols.regular,
			selection.WithAlias(alias), selection.WithLogger(p.cfg.Logger), selection.WithMetrics(p.cfg.Metrics))
		if err := p.discardOnCompileError(out, sel.Run(ctx)); err != nil {
			return err
		}
		res.add(Step{Operator: "selection", Inputs: []string{input.Name()}, Output: out.Name(),
			Filter: filter, Records: sel.Stats().Output})
		res.Output = out
		return nil
	}

	out, agg, err := p.aggregate(input, alias, cols.regular, cols.regularTypes, cols.regularNames, cols.aggs, filter)
	if err != nil {
		return err
	}
	if err := p.discardOnCompileError(out, agg.Run(ctx)); err != nil {
		return err
	}
	res.add(Step{Operator: "aggregate", Inputs: []string{input.Name()}, Output: out.Name(),
		Filter: filter, Records: agg.Stats().Groups})
	res.Output = out
	return nil
}

func (p *Planner) aggregate(input *table.Table, alias string, groupings []string, groupTypes []types.Type,
	groupNames []string, aggs []aggregation.AggSpec, filter string) (*table.Table, *aggregation.Aggregate, error) {
	td, err := aggregateSchema(groupTypes, groupNames, aggs)
	if err != nil {
		return nil, nil, dberror.SchemaMismatch("aggregate output: %v", err)
	}
	out, err := p.createOutput("res", td)
	if err != nil {
		return nil, nil, err
	}

	opts := []aggregation.Option{
		aggregation.WithAlias(alias),
		aggregation.WithLogger(p.cfg.Logger),
		aggregation.WithMetrics(p.cfg.Metrics),
	}
	if p.cfg.ExactAverages {
		opts = append(opts, aggregation.WithExactAverages())
	}
	if p.cfg.HashOnlyGroups {
		opts = append(opts, aggregation.WithHashOnlyGroups())
	}
	return out, aggregation.NewAggregate(input, out, aggs, groupings, filter, opts...), nil
}

func (p *Planner) join(ctx context.Context, q *Query, left, right *table.Table, res *Result) error {
	la, ra := q.Tables[0].alias(), q.Tables[1].alias()
	lb, rb := expr.Bind(la, left.TupleDesc()), expr.Bind(ra, right.TupleDesc())

	cols, err := splitSelect(q, lb, rb)
	if err != nil {
		return err
	}
	preds, err := splitJoinPredicates(q.Where, lb, rb)
	if err != nil {
		return err
	}
	if !preds.found {
		return dberror.Compile(conjoin(q.Where), errors.New("joining two tables needs an equality between them"))
	}

	projections := cols.regular
	fieldTypes := cols.regularTypes
	names := cols.regularNames
	if len(cols.aggs) > 0 {
		// The join writes the groupings and the aggregate operands as c0..cn
		// of an intermediate table.
		projections, fieldTypes, names = nil, nil, nil
		for i, text := range cols.regular {
			projections = append(projections, text)
			fieldTypes = append(fieldTypes, cols.regularTypes[i])
			names = append(names, fmt.Sprintf("c%d", i))
		}
		for _, a := range cols.aggs {
			if a.Kind == aggregation.Count {
				continue
			}
			c, err := expr.Compile(a.Expr, lb, rb)
			if err != nil {
				return err
			}
			projections = append(projections, a.Expr)
			fieldTypes = append(fieldTypes, c.Type)
			names = append(names, fmt.Sprintf("c%d", len(names)))
		}
	}
	if len(projections) == 0 {
		// A join feeding only counts still needs one column to write.
		projections, fieldTypes, names = []string{"int[0]"}, []types.Type{types.IntType}, []string{"c0"}
	}

	td, err := tuple.NewTupleDesc(fieldTypes, names)
	if err != nil {
		return dberror.SchemaMismatch("join output: %v", err)
	}

	var joined *table.Table
	if len(cols.aggs) == 0 {
		joined, err = p.createOutput("Join", td)
	} else {
		joined, err = p.mgr.CreateTemp("join", td)
		if err == nil {
			defer p.drop(joined)
		}
	}
	if err != nil {
		return err
	}

	smj := join.NewSortMergeJoin(left, right, joined, conjoin(preds.final), projections, preds.keys,
		conjoin(preds.left), conjoin(preds.right),
		join.WithAliases(la, ra), join.WithRunPages(p.cfg.RunPages), join.WithFanIn(p.cfg.FanIn),
		join.WithLogger(p.cfg.Logger), join.WithMetrics(p.cfg.Metrics))
	err = smj.Run(ctx)
	if len(cols.aggs) == 0 {
		err = p.discardOnCompileError(joined, err)
	}
	if err != nil {
		return err
	}
	res.add(Step{Operator: "sort_merge_join", Inputs: []string{left.Name(), right.Name()}, Output: joined.Name(),
		Filter: conjoin(preds.final), Records: smj.Stats().Output})
	res.Output = joined
	if len(cols.aggs) == 0 {
		return nil
	}

	groupings := make([]string, len(cols.regular))
	for i := range groupings {
		groupings[i] = fmt.Sprintf("[c%d]", i)
	}
	aggs := slices.Clone(cols.aggs)
	next := len(cols.regular)
	for i := range aggs {
		if aggs[i].Kind == aggregation.Count {
			continue
		}
		aggs[i].Expr = fmt.Sprintf("[c%d]", next)
		next++
	}

	out, agg, err := p.aggregate(joined, joined.Name(), groupings, cols.regularTypes, cols.regularNames, aggs, "")
	if err != nil {
		return err
	}
	if err := p.discardOnCompileError(out, agg.Run(ctx)); err != nil {
		return err
	}
	res.add(Step{Operator: "aggregate", Inputs: []string{joined.Name()}, Output: out.Name(),
		Records: agg.Stats().Groups})
	res.Output = out
	return nil
}

// createOutput creates a catalogued output table under the next free
// generated name.
func (p *Planner) createOutput(kind string, td *tuple.TupleDescription) (*table.Table, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	taken := p.mgr.Names()
	for {
		p.counter++
		name := fmt.Sprintf("%s%dOut", kind, p.counter)
		if !slices.Contains(taken, name) {
			return p.mgr.Create(name, td)
		}
	}
}

// discardOnCompileError drops out when err says the operator rejected its
// expressions or schemas, so a query that does not compile leaves no table
// behind. Other errors keep out for inspection.
func (p *Planner) discardOnCompileError(out *table.Table, err error) error {
	if dberror.HasCode(err, dberror.CodeCompile) || dberror.HasCode(err, dberror.CodeSchemaMismatch) {
		p.drop(out)
	}
	return err
}

func (p *Planner) drop(t *table.Table) {
	if err := p.mgr.Drop(t); err != nil {
		p.log.Warn("failed to drop table", "table", t.Name(), "error", err)
	}
}
