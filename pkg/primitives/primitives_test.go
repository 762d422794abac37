package primitives

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPredicate_Holds(t *testing.T) {
	tests := []struct {
		op       Predicate
		cmp      int
		expected bool
	}{
		{Equals, 0, true},
		{Equals, 1, false},
		{LessThan, -1, true},
		{LessThan, 0, false},
		{GreaterThan, 1, true},
		{GreaterThan, -1, false},
		{LessThanOrEqual, 0, true},
		{LessThanOrEqual, 1, false},
		{GreaterThanOrEqual, 0, true},
		{GreaterThanOrEqual, -1, false},
		{NotEqual, 1, true},
		{NotEqual, 0, false},
		{Predicate(99), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			if got := tt.op.Holds(tt.cmp); got != tt.expected {
				t.Errorf("%v.Holds(%d) = %v, want %v", tt.op, tt.cmp, got, tt.expected)
			}
		})
	}
}

func TestFilepath_Hash(t *testing.T) {
	a := Filepath("/data/orders.bin")
	b := Filepath("/data/../data/orders.bin")
	c := Filepath("/data/customers.bin")

	if a.Hash() != b.Hash() {
		t.Errorf("expected equivalent paths to hash equally")
	}
	if a.Hash() == c.Hash() {
		t.Errorf("expected different paths to produce different IDs")
	}
}

func TestFilepath_JoinAndBase(t *testing.T) {
	base := Filepath("/data")
	result := base.Join("tables", "orders.bin")
	expected := filepath.Join("/data", "tables", "orders.bin")
	if result.String() != expected {
		t.Errorf("expected '%s', got '%s'", expected, result.String())
	}
	if result.Base() != "orders.bin" {
		t.Errorf("expected 'orders.bin', got '%s'", result.Base())
	}
}

func TestFilepath_Remove(t *testing.T) {
	path := Filepath(filepath.Join(t.TempDir(), "gone.bin"))
	if err := os.WriteFile(path.String(), []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !path.Exists() {
		t.Fatalf("expected file to exist")
	}
	if err := path.Remove(); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := path.Remove(); err != nil {
		t.Errorf("removing a missing file should not fail: %v", err)
	}
}
