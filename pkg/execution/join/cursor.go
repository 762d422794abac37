package join

import (
	"pagedb/pkg/expr"
	"pagedb/pkg/table"
	"pagedb/pkg/tuple"
	"pagedb/pkg/types"
)

// cursor walks one sorted input, stopping only at records accepted by the
// side's filter.
type cursor struct {
	scan   *table.Scanner
	rec    *tuple.Tuple
	key    *expr.Compiled
	filter *expr.Compiled

	current  types.Field
	done     bool
	read     int
	rejected int
}

func newCursor(sorted *table.Table, scan *table.Scanner, key, filter *expr.Compiled) *cursor {
	return &cursor{scan: scan, rec: sorted.NewRecord(), key: key, filter: filter}
}

// advance moves to the next accepted record, or marks the cursor done.
func (c *cursor) advance() error {
	for {
		ok, err := c.scan.Advance()
		if err != nil {
			return err
		}
		if !ok {
			c.done = true
			c.current = nil
			return nil
		}

		if err := c.scan.Current(c.rec); err != nil {
			return err
		}
		c.read++

		accepted, err := c.filter.Holds(c.rec)
		if err != nil {
			return err
		}
		if !accepted {
			c.rejected++
			continue
		}

		c.current, err = c.key.Eval(c.rec)
		return err
	}
}

// collect gathers the full run of records whose key equals the current
// key, leaving the cursor on the first record past the run.
func (c *cursor) collect(g *matchGroup) error {
	key := c.current
	g.reset(key)
	for !c.done {
		if cmp, err := types.CompareFields(c.current, key); err != nil || cmp != 0 {
			return err
		}
		g.add(c.rec)
		if err := c.advance(); err != nil {
			return err
		}
	}
	return nil
}
