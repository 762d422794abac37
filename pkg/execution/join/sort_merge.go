// Package join implements the sort-merge equi-join over paged tables.
package join

import (
	"context"
	"pagedb/pkg/dberror"
	"pagedb/pkg/execution/extsort"
	"pagedb/pkg/expr"
	"pagedb/pkg/logging"
	"pagedb/pkg/table"
	"pagedb/pkg/tuple"
	"pagedb/pkg/types"
	"time"
)

const operatorName = "sort_merge_join"

// EqualityCheck is the pair of key expressions of an equi-join. LeftKey is
// evaluated against the left input, RightKey against the right one.
type EqualityCheck struct {
	LeftKey  string
	RightKey string
}

// Stats counts what a run did.
type Stats struct {
	LeftRecords   int // records read from the sorted left input
	RightRecords  int
	LeftRejected  int // records dropped by the left filter
	RightRejected int
	Groups        int // key values found on both sides
	Output        int
}

// SortMergeJoin joins two tables on key equality.
//
// Both inputs are sorted by their key with an external sort. A cursor on each
// sorted input skips records rejected by that side's filter. When the keys
// under the two cursors are equal, the full run of equal keys is collected on
// each side and every pair of the cross product that satisfies the final
// predicate is projected and appended to the output.
type SortMergeJoin struct {
	left, right, output *table.Table

	finalPredicate string
	projections    []string
	keys           EqualityCheck
	leftFilter     string
	rightFilter    string

	cfg   config
	stats Stats
}

// NewSortMergeJoin creates a join of left and right into output. Empty filter
// or predicate texts accept everything. Nothing is compiled or read until Run.
func NewSortMergeJoin(left, right, output *table.Table, finalPredicate string, projections []string,
	keys EqualityCheck, leftFilter, rightFilter string, opts ...Option) *SortMergeJoin {
	cfg := config{leftAlias: left.Name(), rightAlias: right.Name()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logging.WithOperator(operatorName)
	}
	cfg.sort.Logger = cfg.logger

	return &SortMergeJoin{
		left:           left,
		right:          right,
		output:         output,
		finalPredicate: finalPredicate,
		projections:    projections,
		keys:           keys,
		leftFilter:     leftFilter,
		rightFilter:    rightFilter,
		cfg:            cfg,
	}
}

// Stats returns the counters of the last Run.
func (j *SortMergeJoin) Stats() Stats {
	return j.stats
}

type compiled struct {
	leftKey, rightKey       *expr.Compiled
	leftFilter, rightFilter *expr.Compiled
	final                   *expr.Compiled
	projections             []*expr.Compiled
}

func (j *SortMergeJoin) compile() (*compiled, error) {
	lb := expr.Bind(j.cfg.leftAlias, j.left.TupleDesc())
	rb := expr.Bind(j.cfg.rightAlias, j.right.TupleDesc())

	var c compiled
	var err error
	if c.leftKey, err = expr.Compile(j.keys.LeftKey, lb); err != nil {
		return nil, err
	}
	if c.rightKey, err = expr.Compile(j.keys.RightKey, rb); err != nil {
		return nil, err
	}
	if !types.Comparable(c.leftKey.Type, c.rightKey.Type) {
		return nil, dberror.SchemaMismatch("join keys %s (%v) and %s (%v) are not comparable",
			c.leftKey.Text, c.leftKey.Type, c.rightKey.Text, c.rightKey.Type)
	}
	if c.leftFilter, err = expr.CompilePredicate(j.leftFilter, lb); err != nil {
		return nil, err
	}
	if c.rightFilter, err = expr.CompilePredicate(j.rightFilter, rb); err != nil {
		return nil, err
	}
	if c.final, err = expr.CompilePredicate(j.finalPredicate, lb, rb); err != nil {
		return nil, err
	}

	out := j.output.TupleDesc()
	if len(j.projections) != out.NumFields() {
		return nil, dberror.SchemaMismatch("%d projections for an output of %d attributes",
			len(j.projections), out.NumFields())
	}
	for i, text := range j.projections {
		p, err := expr.Compile(text, lb, rb)
		if err != nil {
			return nil, err
		}
		if want, _ := out.TypeAtIndex(i); p.Type != want {
			return nil, dberror.SchemaMismatch("projection %d %s has type %v, output attribute has %v",
				i, text, p.Type, want)
		}
		c.projections = append(c.projections, p)
	}
	return &c, nil
}

// Run executes the join to completion. Compilation failures abort before any
// I/O. Storage failures abort the run and leave the records already appended
// in the output table.
func (j *SortMergeJoin) Run(ctx context.Context) (err error) {
	start := time.Now()
	j.stats = Stats{}
	defer func() { j.cfg.metrics.ObserveRun(operatorName, start, err) }()

	c, err := j.compile()
	if err != nil {
		return err
	}

	j.cfg.logger.Info("join started", "left", j.left.Name(), "right", j.right.Name(),
		"output", j.output.Name(), "left_key", c.leftKey.Text, "right_key", c.rightKey.Text)

	sortedLeft, err := extsort.Sort(ctx, j.left, c.leftKey, j.cfg.sort)
	if err != nil {
		return dberror.Classify(err, "SortMergeJoin.Run", operatorName)
	}
	defer j.drop(sortedLeft)

	sortedRight, err := extsort.Sort(ctx, j.right, c.rightKey, j.cfg.sort)
	if err != nil {
		return dberror.Classify(err, "SortMergeJoin.Run", operatorName)
	}
	defer j.drop(sortedRight)

	if err := j.merge(ctx, c, sortedLeft, sortedRight); err != nil {
		return dberror.Classify(err, "SortMergeJoin.Run", operatorName)
	}

	j.cfg.metrics.Records(operatorName, "left", j.stats.LeftRecords)
	j.cfg.metrics.Records(operatorName, "right", j.stats.RightRecords)
	j.cfg.metrics.Records(operatorName, "output", j.stats.Output)
	j.cfg.logger.Info("join finished", "output", j.output.Name(), "records", j.stats.Output,
		"groups", j.stats.Groups, "left_rejected", j.stats.LeftRejected,
		"right_rejected", j.stats.RightRejected, "elapsed", time.Since(start))
	return nil
}

func (j *SortMergeJoin) merge(ctx context.Context, c *compiled, sortedLeft, sortedRight *table.Table) error {
	leftScan := sortedLeft.Scan(ctx)
	defer leftScan.Close()
	rightScan := sortedRight.Scan(ctx)
	defer rightScan.Close()

	l := newCursor(sortedLeft, leftScan, c.leftKey, c.leftFilter)
	r := newCursor(sortedRight, rightScan, c.rightKey, c.rightFilter)
	defer func() {
		j.stats.LeftRecords, j.stats.LeftRejected = l.read, l.rejected
		j.stats.RightRecords, j.stats.RightRejected = r.read, r.rejected
	}()

	app := j.output.NewAppender()
	defer app.Close()

	if err := l.advance(); err != nil {
		return err
	}
	if err := r.advance(); err != nil {
		return err
	}

	var lg, rg matchGroup
	out := j.output.NewRecord()
	for !l.done && !r.done {
		cmp, err := types.CompareFields(l.current, r.current)
		if err != nil {
			return dberror.SchemaMismatch("join keys: %v", err)
		}

		switch {
		case cmp < 0:
			err = l.advance()
		case cmp > 0:
			err = r.advance()
		default:
			if err := l.collect(&lg); err != nil {
				return err
			}
			if err := r.collect(&rg); err != nil {
				return err
			}
			j.stats.Groups++
			err = j.emit(c, &lg, &rg, out, app)
		}
		if err != nil {
			return err
		}
	}

	return app.Close()
}

// emit appends every accepted pair of the cross product of two matching
// groups.
func (j *SortMergeJoin) emit(c *compiled, lg, rg *matchGroup, out *tuple.Tuple, app *table.Appender) error {
	for _, lrec := range lg.records {
		for _, rrec := range rg.records {
			ok, err := c.final.Holds(lrec, rrec)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}

			for i, p := range c.projections {
				v, err := p.Eval(lrec, rrec)
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
			j.stats.Output++
		}
	}
	return nil
}

func (j *SortMergeJoin) drop(t *table.Table) {
	if err := t.Manager().Drop(t); err != nil {
		j.cfg.logger.Warn("failed to drop sorted input", "table", t.Name(), "error", err)
	}
}
