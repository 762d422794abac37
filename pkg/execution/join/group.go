package join

import (
	"pagedb/pkg/tuple"
	"pagedb/pkg/types"
)

// matchGroup holds the run of consecutive records of one side that share a
// key value. Records are copies, so the side's cursor may move on.
type matchGroup struct {
	key     types.Field
	records []*tuple.Tuple
}

func (g *matchGroup) reset(key types.Field) {
	g.key = key
	g.records = g.records[:0]
}

func (g *matchGroup) add(rec *tuple.Tuple) {
	g.records = append(g.records, rec.Clone())
}

func (g *matchGroup) Len() int {
	return len(g.records)
}
