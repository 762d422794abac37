package expr

import (
	"pagedb/pkg/dberror"
	"pagedb/pkg/tuple"
	"pagedb/pkg/types"
	"testing"
)

func schema(t *testing.T, names []string, fieldTypes ...types.Type) *tuple.TupleDescription {
	t.Helper()
	td, err := tuple.NewTupleDesc(fieldTypes, names)
	if err != nil {
		t.Fatalf("NewTupleDesc: %v", err)
	}
	return td
}

func record(t *testing.T, td *tuple.TupleDescription, values ...types.Field) *tuple.Tuple {
	t.Helper()
	rec := tuple.NewTuple(td)
	for i, v := range values {
		if err := rec.SetField(i, v); err != nil {
			t.Fatalf("SetField(%d): %v", i, err)
		}
	}
	return rec
}

func TestParse_RoundTripsCanonicalText(t *testing.T) {
	tests := []string{
		"int[5]",
		"[o.cust]",
		"== ([a], int[1])",
		"&& (> ([x], double[1.5]), ! (== ([s], string[hello world])))",
		"/ (+ ([a], [b]), int[2])",
	}

	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			n, err := Parse(text)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			again, err := Parse(n.String())
			if err != nil {
				t.Fatalf("Parse(String()): %v", err)
			}
			if n.String() != again.String() {
				t.Errorf("round trip changed %q to %q", n.String(), again.String())
			}
		})
	}
}

func TestParse_Whitespace(t *testing.T) {
	n, err := Parse("  &&(==([a],int[1]),   <([b] ,int[2]))  ")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got, want := n.String(), "&& (== ([a], int[1]), < ([b], int[2]))"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []string{
		"",
		"== ([a])",
		"== ([a], [b], [c])",
		"== ([a], [b]",
		"int[5",
		"[a] [b]",
		"foo",
		"[.x]",
		"@ ([a])",
	}

	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			_, err := Parse(text)
			if err == nil {
				t.Fatalf("expected error for %q", text)
			}
			if !dberror.HasCode(err, dberror.CodeCompile) {
				t.Errorf("expected CompileError, got %v", err)
			}
		})
	}
}

func TestCompile_EvaluatesAgainstRecord(t *testing.T) {
	td := schema(t, []string{"id", "price", "name", "open"},
		types.IntType, types.FloatType, types.StringType, types.BoolType)
	rec := record(t, td, types.NewIntField(7), types.NewFloat64Field(2.5),
		types.NewStringField("bolt"), types.NewBoolField(true))

	tests := []struct {
		text     string
		wantType types.Type
		want     string
	}{
		{"[id]", types.IntType, "7"},
		{"+ ([id], int[3])", types.IntType, "10"},
		{"* ([id], [price])", types.FloatType, "17.5"},
		{"/ ([id], int[2])", types.FloatType, "3.5"},
		{"- ([id], int[10])", types.IntType, "-3"},
		{"+ ([name], string[s])", types.StringType, "bolts"},
		{"== ([id], double[7.0])", types.BoolType, "true"},
		{"&& ([open], > ([price], int[2]))", types.BoolType, "true"},
		{"|| (! ([open]), == ([name], string[nut]))", types.BoolType, "false"},
		{"<= ([name], string[bolt])", types.BoolType, "true"},
		{"", types.BoolType, "true"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			c, err := Compile(tt.text, Bind("p", td))
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			if c.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", c.Type, tt.wantType)
			}
			v, err := c.Eval(rec)
			if err != nil {
				t.Fatalf("Eval: %v", err)
			}
			if v.String() != tt.want {
				t.Errorf("Eval = %s, want %s", v.String(), tt.want)
			}
		})
	}
}

func TestCompile_TwoRecordScope(t *testing.T) {
	left := schema(t, []string{"id", "v"}, types.IntType, types.IntType)
	right := schema(t, []string{"id", "w"}, types.IntType, types.IntType)

	c, err := Compile("== ([l.id], [r.id])", Bind("l", left), Bind("r", right))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !c.Uses(0) || !c.Uses(1) {
		t.Errorf("expected both bindings to be used")
	}

	ok, err := c.Holds(record(t, left, types.NewIntField(1), types.NewIntField(2)),
		record(t, right, types.NewIntField(1), types.NewIntField(3)))
	if err != nil || !ok {
		t.Errorf("Holds = %v, %v; want true", ok, err)
	}

	w, err := Compile("[w]", Bind("l", left), Bind("r", right))
	if err != nil {
		t.Fatalf("Compile unqualified: %v", err)
	}
	if w.Uses(0) || !w.Uses(1) {
		t.Errorf("[w] should resolve to the right binding only")
	}

	if _, err := Compile("[id]", Bind("l", left), Bind("r", right)); err == nil {
		t.Errorf("expected ambiguity error for [id]")
	}
}

func TestCompile_Errors(t *testing.T) {
	td := schema(t, []string{"id", "name", "open"}, types.IntType, types.StringType, types.BoolType)

	tests := []string{
		"[missing]",
		"[x.id]",
		"== ([id], [name])",
		"&& ([id], [open])",
		"+ ([id], [name])",
		"! ([id])",
		"int[abc]",
		"blob[1]",
	}

	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			_, err := Compile(text, Bind("t", td))
			if !dberror.HasCode(err, dberror.CodeCompile) {
				t.Errorf("expected CompileError, got %v", err)
			}
		})
	}
}

func TestCompilePredicate_RequiresBool(t *testing.T) {
	td := schema(t, []string{"id"}, types.IntType)
	if _, err := CompilePredicate("[id]", Bind("t", td)); err == nil {
		t.Error("expected error for non-bool predicate")
	}
	if _, err := CompilePredicate("> ([id], int[0])", Bind("t", td)); err != nil {
		t.Errorf("CompilePredicate: %v", err)
	}
}

func TestNode_Attributes(t *testing.T) {
	n, err := Parse("&& (== ([a.x], [b.y]), > ([z], int[1]))")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	attrs := n.Attributes()
	if len(attrs) != 3 {
		t.Fatalf("got %d attributes, want 3", len(attrs))
	}
	if attrs[0].Alias != "a" || attrs[1].Name != "y" || attrs[2].Alias != "" {
		t.Errorf("unexpected attributes %v %v %v", attrs[0], attrs[1], attrs[2])
	}
}
