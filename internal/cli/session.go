// Package cli provides the commands and the REPL of pagedb on top of one
// open data directory.
package cli

import (
	"context"
	"fmt"
	"io"
	"pagedb/internal/config"
	"pagedb/pkg/loader"
	"pagedb/pkg/memory"
	"pagedb/pkg/metrics"
	"pagedb/pkg/planner"
	"pagedb/pkg/table"
	"pagedb/pkg/tuple"
	"pagedb/pkg/types"
	"strings"
	"time"
)

// Session owns the buffer pool, the table manager and the planner of a data
// directory, and writes command output to Out.
type Session struct {
	cfg     *config.Config
	store   *memory.PageStore
	mgr     *table.Manager
	planner *planner.Planner
	metrics *metrics.Metrics

	Out io.Writer
}

// Open opens the data directory named by cfg. m may be nil.
func Open(cfg *config.Config, m *metrics.Metrics, out io.Writer) (*Session, error) {
	poolCfg := cfg.Pool()
	poolCfg.Metrics = m
	store, err := memory.NewPageStore(poolCfg)
	if err != nil {
		return nil, err
	}

	mgr, err := table.NewManager(cfg.Storage.DataDir, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	p := planner.New(mgr, planner.Config{
		RunPages:       cfg.Sort.RunPages,
		FanIn:          cfg.Sort.FanIn,
		ExactAverages:  cfg.Aggregate.ExactAverages,
		HashOnlyGroups: cfg.Aggregate.HashOnlyGroups,
		Metrics:        m,
	})
	return &Session{cfg: cfg, store: store, mgr: mgr, planner: p, metrics: m, Out: out}, nil
}

// Close flushes every table and releases the buffer pool.
func (s *Session) Close() error {
	err := s.mgr.Close()
	if cerr := s.store.Close(); err == nil {
		err = cerr
	}
	return err
}

// Create creates a table from column specs of the form name:type.
func (s *Session) Create(name string, columns []string) error {
	if len(columns) == 0 {
		return fmt.Errorf("table %s needs at least one column", name)
	}
	fieldTypes := make([]types.Type, len(columns))
	names := make([]string, len(columns))
	for i, col := range columns {
		colName, typeName, ok := strings.Cut(col, ":")
		if !ok || colName == "" {
			return fmt.Errorf("column %q is not of the form name:type", col)
		}
		t, err := types.ParseType(typeName)
		if err != nil {
			return err
		}
		names[i], fieldTypes[i] = colName, t
	}

	td, err := tuple.NewTupleDesc(fieldTypes, names)
	if err != nil {
		return err
	}
	if _, err := s.mgr.Create(name, td); err != nil {
		return err
	}
	fmt.Fprintf(s.Out, "Created table %s %s.\n", name, td)
	return nil
}

// Load bulk-loads the text file at path into the named table.
func (s *Session) Load(ctx context.Context, name, path string) error {
	t, err := s.mgr.Get(name)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.Out, "OK, loading %s from text file.\n", name)
	n, err := loader.LoadFile(ctx, t, path)
	if err != nil {
		return err
	}
	if err := t.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(s.Out, "Loaded %d records.\n", n)
	return nil
}

// LoadAll loads several tables concurrently.
func (s *Session) LoadAll(ctx context.Context, jobs []loader.Job) error {
	counts, err := loader.LoadAll(ctx, s.mgr, jobs, s.cfg.Storage.LoadWorkers)
	for _, j := range jobs {
		fmt.Fprintf(s.Out, "%s: %d records\n", j.Table, counts[j.Table])
	}
	if err != nil {
		return err
	}
	for _, j := range jobs {
		t, err := s.mgr.Get(j.Table)
		if err != nil {
			return err
		}
		if err := t.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// Tables lists the catalogued tables.
func (s *Session) Tables() error {
	var infos []tableInfo
	for _, name := range s.mgr.Names() {
		t, err := s.mgr.Get(name)
		if err != nil {
			return err
		}
		pages, err := t.PageCount()
		if err != nil {
			return err
		}
		infos = append(infos, tableInfo{name: name, schema: t.TupleDesc().String(), pages: pages})
	}
	renderTableList(s.Out, infos)
	return nil
}

// Show prints up to limit records of the named table. A limit of 0 prints
// every record.
func (s *Session) Show(ctx context.Context, name string, limit int) error {
	t, err := s.mgr.Get(name)
	if err != nil {
		return err
	}
	return renderRecords(ctx, s.Out, t, limit)
}

// Query runs the query document at path and prints its result.
func (s *Session) Query(ctx context.Context, path string, limit int) error {
	q, err := planner.ParseQueryFile(path)
	if err != nil {
		return err
	}
	res, err := s.planner.Execute(ctx, q)
	if err != nil {
		return err
	}

	if err := renderRecords(ctx, s.Out, res.Output, limit); err != nil {
		return err
	}
	fmt.Fprint(s.Out, res.String())
	fmt.Fprintf(s.Out, "Result in %s (%s).\n", res.Output.Name(), res.Elapsed.Round(time.Microsecond))
	return nil
}

// Stats prints the buffer pool counters.
func (s *Session) Stats() {
	renderPoolStats(s.Out, s.store.Stats())
}
