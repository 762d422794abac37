// Package loader bulk-loads '|'-separated text files into tables.
package loader

import (
	"bufio"
	"context"
	"io"
	"os"
	"pagedb/pkg/dberror"
	"pagedb/pkg/logging"
	"pagedb/pkg/table"
	"pagedb/pkg/types"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Separator splits the attributes of a line.
const Separator = "|"

const maxLine = 1 << 20

// Load appends one record per non-empty line of r to t and returns the
// number of records appended. Attributes are parsed by the type of the
// matching column; a trailing separator is allowed.
//
// A malformed line aborts the load with a SchemaMismatch error naming the
// line. Records appended before it stay in the table.
func Load(ctx context.Context, t *table.Table, r io.Reader) (int, error) {
	start := time.Now()
	log := logging.WithTable(t.Name())
	td := t.TupleDesc()

	app := t.NewAppender()
	defer app.Close()

	rec := t.NewRecord()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	n, line := 0, 0
	for sc.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return n, err
		}
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}

		parts := strings.Split(text, Separator)
		if len(parts) == td.NumFields()+1 && parts[len(parts)-1] == "" {
			parts = parts[:len(parts)-1]
		}
		if len(parts) != td.NumFields() {
			return n, dberror.SchemaMismatch("line %d has %d attributes, %s has %d",
				line, len(parts), t.Name(), td.NumFields())
		}

		for i, part := range parts {
			ft, _ := td.TypeAtIndex(i)
			f, err := types.ParseText(part, ft)
			if err != nil {
				return n, dberror.SchemaMismatch("line %d attribute %d: %v", line, i, err)
			}
			if err := rec.SetField(i, f); err != nil {
				return n, dberror.SchemaMismatch("line %d attribute %d: %v", line, i, err)
			}
		}
		rec.MarkChanged()
		if _, err := app.Append(rec); err != nil {
			return n, err
		}
		n++
	}
	if err := sc.Err(); err != nil {
		return n, dberror.IO(errors.Wrapf(err, "read line %d", line+1), "loader.Load")
	}
	if err := app.Close(); err != nil {
		return n, err
	}

	log.Info("table loaded", "records", n, "elapsed", time.Since(start))
	return n, nil
}

// LoadFile loads the text file at path into t.
func LoadFile(ctx context.Context, t *table.Table, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, dberror.NotFound("file", path)
		}
		return 0, dberror.IO(errors.Wrapf(err, "open %s", path), "loader.LoadFile")
	}
	defer f.Close()
	return Load(ctx, t, f)
}

// Job names a table and the file to load into it.
type Job struct {
	Table string
	Path  string
}

// LoadAll runs the jobs concurrently, at most limit at a time when limit is
// positive, and returns the records loaded per table. The first failure
// cancels the remaining loads.
func LoadAll(ctx context.Context, mgr *table.Manager, jobs []Job, limit int) (map[string]int, error) {
	tables := make([]*table.Table, len(jobs))
	for i, j := range jobs {
		t, err := mgr.Get(j.Table)
		if err != nil {
			return nil, err
		}
		tables[i] = t
	}

	counts := make([]int, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, j := range jobs {
		g.Go(func() error {
			n, err := LoadFile(ctx, tables[i], j.Path)
			counts[i] = n
			if err != nil {
				return errors.Wrapf(err, "load %s from %s", j.Table, j.Path)
			}
			return nil
		})
	}
	err := g.Wait()

	out := make(map[string]int, len(jobs))
	for i, j := range jobs {
		out[j.Table] += counts[i]
	}
	return out, err
}
