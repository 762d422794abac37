package aggregation

import (
	"pagedb/pkg/primitives"
	"pagedb/pkg/tuple"
	"pagedb/pkg/types"
)

// accumulator is the running state of one group that cannot be read back
// from its output record alone.
type accumulator struct {
	count int64
	sums  []float64
}

// group is a durable handle on one output record.
type group struct {
	loc    tuple.Location
	values []types.Field
	acc    accumulator
}

func (g *group) matches(values []types.Field) bool {
	for i, v := range values {
		if !g.values[i].Equals(v) {
			return false
		}
	}
	return true
}

// groupTable maps a group key to the groups hashing to it. Chains hold more
// than one group only when distinct grouping values collide.
type groupTable struct {
	chains   map[primitives.HashCode][]*group
	hashOnly bool
	size     int
}

func newGroupTable(hashOnly bool) *groupTable {
	return &groupTable{chains: make(map[primitives.HashCode][]*group), hashOnly: hashOnly}
}

// groupKey XOR-folds the hashes of the grouping values.
func groupKey(values []types.Field) primitives.HashCode {
	var key primitives.HashCode
	for _, v := range values {
		key ^= v.Hash()
	}
	return key
}

// lookup returns the group of values, or nil. collided reports that the key
// was already taken by groups with other values.
func (gt *groupTable) lookup(key primitives.HashCode, values []types.Field) (g *group, collided bool) {
	chain := gt.chains[key]
	if len(chain) == 0 {
		return nil, false
	}
	if gt.hashOnly {
		return chain[0], !chain[0].matches(values)
	}
	for _, g := range chain {
		if g.matches(values) {
			return g, false
		}
	}
	return nil, true
}

func (gt *groupTable) insert(key primitives.HashCode, g *group) {
	gt.chains[key] = append(gt.chains[key], g)
	gt.size++
}

func (gt *groupTable) Len() int {
	return gt.size
}
