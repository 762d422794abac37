package planner

import (
	"context"
	"pagedb/pkg/dberror"
	"pagedb/pkg/memory"
	"pagedb/pkg/table"
	"pagedb/pkg/tuple"
	"pagedb/pkg/types"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPlanner(t *testing.T) (*Planner, *table.Manager) {
	t.Helper()
	store, err := memory.NewPageStore(memory.Config{MaxPinnedPages: 32})
	require.NoError(t, err)
	mgr, err := table.NewManager(t.TempDir(), store)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = mgr.Close()
		_ = store.Close()
	})

	load(t, mgr, "customers", []types.Type{types.IntType, types.StringType}, []string{"id", "name"}, [][]types.Field{
		{types.NewIntField(1), types.NewStringField("ann")},
		{types.NewIntField(2), types.NewStringField("bob")},
		{types.NewIntField(3), types.NewStringField("cy")},
	})
	load(t, mgr, "orders", []types.Type{types.IntType, types.IntType, types.FloatType}, []string{"id", "cust", "total"}, [][]types.Field{
		{types.NewIntField(1), types.NewIntField(1), types.NewFloat64Field(5)},
		{types.NewIntField(2), types.NewIntField(1), types.NewFloat64Field(20)},
		{types.NewIntField(3), types.NewIntField(2), types.NewFloat64Field(50)},
		{types.NewIntField(4), types.NewIntField(2), types.NewFloat64Field(7)},
		{types.NewIntField(5), types.NewIntField(4), types.NewFloat64Field(100)},
	})

	return New(mgr, Config{RunPages: 1, FanIn: 2}), mgr
}

func load(t *testing.T, mgr *table.Manager, name string, fieldTypes []types.Type, names []string, rows [][]types.Field) {
	t.Helper()
	td, err := tuple.NewTupleDesc(fieldTypes, names)
	require.NoError(t, err)
	tbl, err := mgr.Create(name, td)
	require.NoError(t, err)
	for _, row := range rows {
		rec := tbl.NewRecord()
		for i, f := range row {
			require.NoError(t, rec.SetField(i, f))
		}
		_, err := tbl.Append(rec)
		require.NoError(t, err)
	}
}

func rows(t *testing.T, tbl *table.Table) []string {
	t.Helper()
	s := tbl.Scan(context.Background())
	defer s.Close()

	rec := tbl.NewRecord()
	var out []string
	for {
		ok, err := s.Advance()
		require.NoError(t, err)
		if !ok {
			break
		}
		require.NoError(t, s.Current(rec))
		fields := make([]string, rec.TupleDesc.NumFields())
		for i := range fields {
			f, _ := rec.GetField(i)
			fields[i] = f.String()
		}
		out = append(out, strings.Join(fields, "|"))
	}
	sort.Strings(out)
	return out
}

func run(t *testing.T, p *Planner, doc string) *Result {
	t.Helper()
	q, err := ParseQuery(strings.NewReader(doc))
	require.NoError(t, err)
	res, err := p.Execute(context.Background(), q)
	require.NoError(t, err)
	return res
}

func TestPlanner_Selection(t *testing.T) {
	p, mgr := newPlanner(t)
	res := run(t, p, `
tables: [{name: orders}]
select:
  - {expr: "[id]"}
  - {expr: "* ([total], int[2])"}
where:
  - "> ([total], int[6])"
  - "!= ([cust], int[4])"
`)

	assert.Equal(t, "res1Out", res.Output.Name())
	assert.Equal(t, []string{"2|40", "3|100", "4|14"}, rows(t, res.Output))
	require.Len(t, res.Steps, 1)
	assert.Equal(t, "selection", res.Steps[0].Operator)
	assert.Equal(t, "&& ( > ([total], int[6]),!= ([cust], int[4]))", res.Steps[0].Filter)
	assert.Contains(t, mgr.Names(), "res1Out")

	name, _ := res.Output.TupleDesc().GetFieldName(1)
	assert.Equal(t, "c1", name)
}

func TestPlanner_SingleTableAggregate(t *testing.T) {
	p, _ := newPlanner(t)
	res := run(t, p, `
tables: [{name: orders, alias: o}]
select:
  - {expr: "[o.cust]"}
  - {agg: sum, expr: "[o.total]"}
  - {agg: avg, expr: "[o.total]"}
  - {agg: sum, expr: "int[1]"}
`)

	want := []string{"1|25|12.5|2", "2|57|28.5|2", "4|100|100|1"}
	if diff := cmp.Diff(want, rows(t, res.Output)); diff != "" {
		t.Errorf("aggregate mismatch (-want +got):\n%s", diff)
	}

	td := res.Output.TupleDesc()
	var names []string
	for i := 0; i < td.NumFields(); i++ {
		n, _ := td.GetFieldName(i)
		names = append(names, n)
	}
	assert.Equal(t, []string{"cust", "sum", "avg", "cnt"}, names)
}

func TestPlanner_Join(t *testing.T) {
	p, _ := newPlanner(t)
	res := run(t, p, `
tables: [{name: orders, alias: o}, {name: customers, alias: c}]
select:
  - {expr: "[c.name]"}
  - {expr: "[o.total]"}
where:
  - "== ([c.id], [o.cust])"
  - "> ([o.total], int[6])"
`)

	assert.Equal(t, "Join1Out", res.Output.Name())
	assert.Equal(t, []string{"ann|20", "bob|50", "bob|7"}, rows(t, res.Output))
	require.Len(t, res.Steps, 1)
	assert.Equal(t, 3, res.Steps[0].Records)
}

func TestPlanner_JoinThenAggregate(t *testing.T) {
	p, mgr := newPlanner(t)
	res := run(t, p, `
tables: [{name: orders, alias: o}, {name: customers, alias: c}]
select:
  - {expr: "[c.name]"}
  - {agg: sum, expr: "[o.total]"}
  - {agg: count, expr: "[o.id]"}
where:
  - "== ([o.cust], [c.id])"
  - "> ([o.total], int[6])"
`)

	assert.Equal(t, []string{"ann|20|1", "bob|57|2"}, rows(t, res.Output))
	require.Len(t, res.Steps, 2)
	assert.Equal(t, "sort_merge_join", res.Steps[0].Operator)
	assert.Equal(t, "aggregate", res.Steps[1].Operator)
	assert.NotContains(t, mgr.Open(), res.Steps[0].Output, "intermediate table is dropped")
}

func TestPlanner_JoinPlanningErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		code string
	}{
		{"no equality", `
tables: [{name: orders, alias: o}, {name: customers, alias: c}]
select: [{expr: "[c.name]"}]
where: ["> ([o.cust], [c.id])"]
`, dberror.CodeCompile},
		{"unknown attribute", `
tables: [{name: orders, alias: o}, {name: customers, alias: c}]
select: [{expr: "[c.email]"}]
where: ["== ([o.cust], [c.id])"]
`, dberror.CodeCompile},
		{"ambiguous attribute", `
tables: [{name: orders, alias: o}, {name: customers, alias: c}]
select: [{expr: "[id]"}]
where: ["== ([o.cust], [c.id])"]
`, dberror.CodeCompile},
		{"unknown table", `
tables: [{name: parts}]
select: [{expr: "[id]"}]
`, dberror.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newPlanner(t)
			q, err := ParseQuery(strings.NewReader(tt.doc))
			require.NoError(t, err)
			_, err = p.Execute(context.Background(), q)
			assert.True(t, dberror.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestPlanner_OutputNamesSkipCataloguedTables(t *testing.T) {
	p, mgr := newPlanner(t)
	td, err := tuple.NewTupleDesc([]types.Type{types.IntType}, []string{"x"})
	require.NoError(t, err)
	_, err = mgr.Create("res1Out", td)
	require.NoError(t, err)

	res := run(t, p, `
tables: [{name: customers}]
select: [{expr: "[id]"}]
`)
	assert.Equal(t, "res2Out", res.Output.Name())
}

func TestPlanner_CompileFailureLeavesNoOutput(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"selection filter", `
tables: [{name: orders}]
select: [{expr: "[id]"}]
where: ["> ([weight], int[6])"]
`},
		{"aggregate filter", `
tables: [{name: orders}]
select: [{expr: "[cust]"}, {agg: sum, expr: "[total]"}]
where: ["== ([total]"]
`},
		{"join predicate", `
tables: [{name: orders, alias: o}, {name: customers, alias: c}]
select: [{expr: "[c.name]"}]
where: ["== ([o.cust], [c.id])", "+ ([o.total], [c.id])"]
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, mgr := newPlanner(t)
			before := mgr.Names()

			q, err := ParseQuery(strings.NewReader(tt.doc))
			require.NoError(t, err)
			_, err = p.Execute(context.Background(), q)
			require.Error(t, err)
			assert.True(t, dberror.HasCode(err, dberror.CodeCompile) || dberror.HasCode(err, dberror.CodeSchemaMismatch),
				"got %v", err)

			assert.Equal(t, before, mgr.Names(), "no output table is catalogued")
			assert.Equal(t, before, mgr.Open())
		})
	}
}
