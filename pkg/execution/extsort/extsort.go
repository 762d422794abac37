// Package extsort sorts tables larger than the buffer pool by generating
// sorted runs and merging them.
package extsort

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"pagedb/pkg/dberror"
	"pagedb/pkg/expr"
	"pagedb/pkg/logging"
	"pagedb/pkg/table"
	"pagedb/pkg/tuple"
	"pagedb/pkg/types"
	"slices"
)

const (
	// DefaultRunPages is the number of input pages sorted in memory per run.
	DefaultRunPages = 64

	// DefaultFanIn is the number of runs merged at once. A merge never takes
	// more runs than the pool has free frames for, less one for the output page.
	DefaultFanIn = 16
)

// Options tune the sort. Zero values take the defaults.
type Options struct {
	RunPages int
	FanIn    int
	Logger   *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.RunPages <= 0 {
		o.RunPages = DefaultRunPages
	}
	if o.FanIn < 2 {
		o.FanIn = DefaultFanIn
	}
	if o.Logger == nil {
		o.Logger = logging.WithComponent("extsort")
	}
	return o
}

type keyed struct {
	key types.Field
	rec *tuple.Tuple
}

// Sort writes the records of src, ordered by key, to a new temporary table
// of src's manager and returns it. key must be compiled against src's schema alone.
// Records with equal keys keep their input order.
//
// The caller owns the returned table and must drop it. On error every
// temporary table created by Sort has already been dropped.
func Sort(ctx context.Context, src *table.Table, key *expr.Compiled, opts Options) (*table.Table, error) {
	mgr := src.Manager()
	if mgr == nil {
		return nil, dberror.IO(fmt.Errorf("table %s has no manager for temporary runs", src.Name()), "Sort")
	}

	opts = opts.withDefaults()
	s := &sorter{ctx: ctx, mgr: mgr, src: src, key: key, opts: opts}

	runs, err := s.generateRuns()
	if err != nil {
		s.dropAll(runs)
		return nil, err
	}

	passes := 0
	for len(runs) > 1 {
		runs, err = s.mergePass(runs)
		if err != nil {
			s.dropAll(runs)
			return nil, err
		}
		passes++
	}

	opts.Logger.Debug("sort finished", "table", src.Name(), "key", key.Text, "merge_passes", passes)
	return runs[0], nil
}

type sorter struct {
	ctx  context.Context
	mgr  *table.Manager
	src  *table.Table
	key  *expr.Compiled
	opts Options
	err  error
}

func (s *sorter) compare(a, b types.Field) int {
	c, err := types.CompareFields(a, b)
	if err != nil && s.err == nil {
		s.err = dberror.SchemaMismatch("sort key %s: %v", s.key.Text, err)
	}
	return c
}

// generateRuns sorts the input RunPages pages at a time. It always returns
// at least one run, empty if the input is.
func (s *sorter) generateRuns() ([]*table.Table, error) {
	pages, err := s.src.PageCount()
	if err != nil {
		return nil, err
	}

	var runs []*table.Table
	for first := 1; first < pages || len(runs) == 0; first += s.opts.RunPages {
		run, err := s.sortRun(first, first+s.opts.RunPages)
		if run != nil {
			runs = append(runs, run)
		}
		if err != nil {
			return runs, err
		}
	}

	s.opts.Logger.Debug("runs generated", "table", s.src.Name(), "pages", pages, "runs", len(runs))
	return runs, nil
}

func (s *sorter) sortRun(first, last int) (*table.Table, error) {
	scan := s.src.ScanPages(s.ctx, first, last)
	defer scan.Close()

	var items []keyed
	for {
		ok, err := scan.Advance()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		rec := s.src.NewRecord()
		if err := scan.Current(rec); err != nil {
			return nil, err
		}
		k, err := s.key.Eval(rec)
		if err != nil {
			return nil, err
		}
		items = append(items, keyed{key: k, rec: rec})
	}

	slices.SortStableFunc(items, func(a, b keyed) int { return s.compare(a.key, b.key) })
	if s.err != nil {
		return nil, s.err
	}

	run, err := s.mgr.CreateTemp(s.src.Name()+".run", s.src.TupleDesc())
	if err != nil {
		return nil, err
	}

	app := run.NewAppender()
	for _, it := range items {
		if _, err := app.Append(it.rec); err != nil {
			_ = app.Close()
			return run, err
		}
	}
	return run, app.Close()
}

// mergePass merges consecutive groups of FanIn runs. Groups are taken in
// order, so earlier input still sorts first among equal keys.
func (s *sorter) mergePass(runs []*table.Table) ([]*table.Table, error) {
	fanIn, err := s.fanIn()
	if err != nil {
		return runs, err
	}

	var next []*table.Table
	for i := 0; i < len(runs); i += fanIn {
		group := runs[i:min(i+fanIn, len(runs))]
		if len(group) == 1 {
			next = append(next, group[0])
			continue
		}

		merged, err := s.merge(group)
		if err != nil {
			if merged != nil {
				next = append(next, merged)
			}
			return append(next, runs[i:]...), err
		}
		s.dropAll(group)
		next = append(next, merged)
	}
	return next, nil
}

// fanIn caps FanIn at the frames left free in the pool: one per run cursor
// plus one for the output page.
func (s *sorter) fanIn() (int, error) {
	store := s.mgr.Store()
	free := store.Capacity() - store.PinnedCount() - 1
	if free < 2 {
		return 0, dberror.StorageFull(fmt.Errorf("%d of %d frames pinned, a merge needs at least 3",
			store.PinnedCount(), store.Capacity()))
	}
	if s.opts.FanIn > free {
		s.opts.Logger.Debug("fan-in reduced to fit the pool", "fan_in", s.opts.FanIn, "free_frames", free+1)
		return free, nil
	}
	return s.opts.FanIn, nil
}

func (s *sorter) merge(group []*table.Table) (*table.Table, error) {
	out, err := s.mgr.CreateTemp(s.src.Name()+".run", s.src.TupleDesc())
	if err != nil {
		return nil, err
	}
	app := out.NewAppender()
	defer app.Close()

	h := &cursorHeap{sorter: s}
	defer h.close()
	for i, run := range group {
		c := &cursor{run: i, scan: run.Scan(s.ctx), rec: run.NewRecord()}
		h.cursors = append(h.cursors, c)
		ok, err := s.advance(c)
		if err != nil {
			return out, err
		}
		if ok {
			h.live = append(h.live, c)
		}
	}
	heap.Init(h)

	for h.Len() > 0 {
		c := h.live[0]
		if _, err := app.Append(c.rec); err != nil {
			return out, err
		}

		ok, err := s.advance(c)
		if err != nil {
			return out, err
		}
		if ok {
			heap.Fix(h, 0)
		} else {
			heap.Pop(h)
		}
		if s.err != nil {
			return out, s.err
		}
	}
	return out, app.Close()
}

func (s *sorter) advance(c *cursor) (bool, error) {
	ok, err := c.scan.Advance()
	if err != nil || !ok {
		return false, err
	}
	if err := c.scan.Current(c.rec); err != nil {
		return false, err
	}
	c.key, err = s.key.Eval(c.rec)
	return err == nil, err
}

func (s *sorter) dropAll(runs []*table.Table) {
	for _, run := range runs {
		if err := s.mgr.Drop(run); err != nil {
			s.opts.Logger.Warn("failed to drop sort run", "table", run.Name(), "error", err)
		}
	}
}

type cursor struct {
	run  int
	scan *table.Scanner
	rec  *tuple.Tuple
	key  types.Field
}

// cursorHeap orders live cursors by (key, run index).
type cursorHeap struct {
	sorter  *sorter
	cursors []*cursor
	live    []*cursor
}

func (h *cursorHeap) Len() int { return len(h.live) }

func (h *cursorHeap) Less(i, j int) bool {
	a, b := h.live[i], h.live[j]
	if c := h.sorter.compare(a.key, b.key); c != 0 {
		return c < 0
	}
	return a.run < b.run
}

func (h *cursorHeap) Swap(i, j int) { h.live[i], h.live[j] = h.live[j], h.live[i] }

func (h *cursorHeap) Push(x any) { h.live = append(h.live, x.(*cursor)) }

func (h *cursorHeap) Pop() any {
	old := h.live
	c := old[len(old)-1]
	h.live = old[:len(old)-1]
	return c
}

func (h *cursorHeap) close() {
	for _, c := range h.cursors {
		_ = c.scan.Close()
	}
}
