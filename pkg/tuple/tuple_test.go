package tuple

import (
	"bytes"
	"pagedb/pkg/types"
	"testing"
)

func mustDesc(t *testing.T, fieldTypes []types.Type, names []string) *TupleDescription {
	t.Helper()
	td, err := NewTupleDesc(fieldTypes, names)
	if err != nil {
		t.Fatalf("NewTupleDesc: %v", err)
	}
	return td
}

func TestNewTupleDesc(t *testing.T) {
	tests := []struct {
		name    string
		types   []types.Type
		names   []string
		wantErr bool
	}{
		{"named", []types.Type{types.IntType, types.StringType}, []string{"id", "name"}, false},
		{"unnamed", []types.Type{types.IntType}, nil, false},
		{"empty", nil, nil, true},
		{"length mismatch", []types.Type{types.IntType}, []string{"a", "b"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTupleDesc(tt.types, tt.names)
			if (err != nil) != tt.wantErr {
				t.Errorf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestTupleDescription_SizeAndLookup(t *testing.T) {
	td := mustDesc(t, []types.Type{types.IntType, types.FloatType, types.StringType, types.BoolType},
		[]string{"id", "price", "name", "active"})

	want := uint32(8 + 8 + 4 + types.StringMaxSize + 1)
	if td.GetSize() != want {
		t.Errorf("expected size %d, got %d", want, td.GetSize())
	}

	idx, err := td.FindFieldIndex("name")
	if err != nil || idx != 2 {
		t.Errorf("expected index 2, got %d (err %v)", idx, err)
	}
	if _, err := td.FindFieldIndex("missing"); err == nil {
		t.Error("expected error for missing column")
	}
	if td.String() != "id:int,price:double,name:string,active:bool" {
		t.Errorf("unexpected String(): %s", td.String())
	}
}

func TestTuple_SetFieldTypeCheck(t *testing.T) {
	td := mustDesc(t, []types.Type{types.IntType}, []string{"id"})
	tup := NewTuple(td)

	if err := tup.SetField(0, types.NewStringField("x")); err == nil {
		t.Error("expected type mismatch error")
	}
	if err := tup.SetField(1, types.NewIntField(1)); err == nil {
		t.Error("expected out of bounds error")
	}
	if err := tup.SetField(0, types.NewIntField(1)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestTuple_BinaryRoundTrip(t *testing.T) {
	td := mustDesc(t, []types.Type{types.IntType, types.StringType}, []string{"id", "name"})
	tup := NewTuple(td)
	_ = tup.SetField(0, types.NewIntField(9))
	_ = tup.SetField(1, types.NewStringField("nine"))

	data, err := tup.ToBinary()
	if err != nil {
		t.Fatalf("ToBinary: %v", err)
	}
	if uint32(len(data)) != td.GetSize() {
		t.Fatalf("expected %d bytes, got %d", td.GetSize(), len(data))
	}

	other := NewTuple(td)
	if err := other.FromBinary(data); err != nil {
		t.Fatalf("FromBinary: %v", err)
	}
	if other.String() != "9|nine|" {
		t.Errorf("unexpected decoded tuple %s", other.String())
	}

	again, err := other.ToBinary()
	if err != nil {
		t.Fatalf("ToBinary: %v", err)
	}
	if !bytes.Equal(again, data) {
		t.Error("re-encoding an unmodified record must leave its bytes unchanged")
	}
}

func TestTuple_StaleBytesWithoutMarkChanged(t *testing.T) {
	td := mustDesc(t, []types.Type{types.IntType}, []string{"n"})
	src := NewTuple(td)
	_ = src.SetField(0, types.NewIntField(1))
	original, _ := src.ToBinary()
	original = append([]byte(nil), original...)

	rec := NewTuple(td)
	if err := rec.FromBinary(original); err != nil {
		t.Fatalf("FromBinary: %v", err)
	}
	_ = rec.SetField(0, types.NewIntField(2))

	stale, _ := rec.ToBinary()
	if !bytes.Equal(stale, original) {
		t.Error("expected remembered bytes while the record is not marked changed")
	}

	rec.MarkChanged()
	if !rec.Changed() {
		t.Error("expected Changed after MarkChanged")
	}
	fresh, _ := rec.ToBinary()
	decoded := NewTuple(td)
	_ = decoded.FromBinary(fresh)
	f, _ := decoded.GetField(0)
	if f.ToInt() != 2 {
		t.Errorf("expected updated value 2, got %v", f)
	}
	if rec.Changed() {
		t.Error("expected Changed to clear after encoding")
	}
}

func TestTuple_FromBinarySizeMismatch(t *testing.T) {
	td := mustDesc(t, []types.Type{types.IntType}, nil)
	if err := NewTuple(td).FromBinary([]byte{1, 2, 3}); err == nil {
		t.Error("expected size mismatch error")
	}
}

func TestTuple_ToBinaryUnsetField(t *testing.T) {
	td := mustDesc(t, []types.Type{types.IntType, types.IntType}, nil)
	tup := NewTuple(td)
	_ = tup.SetField(0, types.NewIntField(1))
	if _, err := tup.ToBinary(); err == nil {
		t.Error("expected error for unset field")
	}
}

func TestTuple_Clone(t *testing.T) {
	td := mustDesc(t, []types.Type{types.IntType}, nil)
	tup := NewTuple(td)
	_ = tup.SetField(0, types.NewIntField(5))
	tup.RecordID = &Location{PageNo: 3, Slot: 1}

	c := tup.Clone()
	_ = tup.SetField(0, types.NewIntField(6))
	tup.RecordID.Slot = 9

	f, _ := c.GetField(0)
	if f.ToInt() != 5 {
		t.Errorf("clone should keep value 5, got %v", f)
	}
	if c.RecordID.Slot != 1 {
		t.Errorf("clone should keep its own location, got %v", c.RecordID)
	}
}
