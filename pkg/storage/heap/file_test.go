package heap

import (
	"errors"
	"pagedb/pkg/primitives"
	"pagedb/pkg/storage/page"
	"pagedb/pkg/tuple"
	"pagedb/pkg/types"
	"path/filepath"
	"testing"
)

func uint16ToSlot(i int) primitives.SlotID {
	return primitives.SlotID(i) // #nosec G115
}

func testDesc(t *testing.T, fieldTypes ...types.Type) *tuple.TupleDescription {
	t.Helper()
	td, err := tuple.NewTupleDesc(fieldTypes, nil)
	if err != nil {
		t.Fatalf("NewTupleDesc: %v", err)
	}
	return td
}

func TestHeapFile_CreateWritesMetaPage(t *testing.T) {
	path := primitives.Filepath(filepath.Join(t.TempDir(), "t.bin"))
	hf, err := NewHeapFile(path, testDesc(t, types.IntType, types.StringType))
	if err != nil {
		t.Fatalf("NewHeapFile: %v", err)
	}
	defer hf.Close()

	n, err := hf.NumPages()
	if err != nil || n != 1 {
		t.Fatalf("expected only the metadata page, got %d (err %v)", n, err)
	}

	meta, err := hf.ReadPage(primitives.MetaPageNumber)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if meta.Type() != page.PageTypeMeta {
		t.Errorf("expected meta page, got %v", meta.Type())
	}
}

func TestHeapFile_ReopenChecksSchema(t *testing.T) {
	path := primitives.Filepath(filepath.Join(t.TempDir(), "t.bin"))
	hf, err := NewHeapFile(path, testDesc(t, types.IntType, types.FloatType))
	if err != nil {
		t.Fatalf("NewHeapFile: %v", err)
	}
	_ = hf.Close()

	same, err := NewHeapFile(path, testDesc(t, types.IntType, types.FloatType))
	if err != nil {
		t.Fatalf("reopen with same schema: %v", err)
	}
	_ = same.Close()

	_, err = NewHeapFile(path, testDesc(t, types.IntType, types.IntType))
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Errorf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestHeapFile_WriteAndReadPage(t *testing.T) {
	path := primitives.Filepath(filepath.Join(t.TempDir(), "t.bin"))
	hf, err := NewHeapFile(path, testDesc(t, types.IntType))
	if err != nil {
		t.Fatalf("NewHeapFile: %v", err)
	}
	defer hf.Close()

	pageNo, err := hf.AllocateNewPage()
	if err != nil {
		t.Fatalf("AllocateNewPage: %v", err)
	}
	if pageNo != 1 {
		t.Fatalf("expected first data page to be 1, got %d", pageNo)
	}

	hp := NewRegularPage(page.NewPageDescriptor(hf.GetID(), pageNo))
	hp.Append(record(8, 3))
	if err := hf.WritePage(hp); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	if hp.IsDirty() {
		t.Error("expected page to be clean after write")
	}

	read, err := hf.ReadPage(pageNo)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if read.NumSlots() != 1 {
		t.Errorf("expected 1 slot, got %d", read.NumSlots())
	}

	past, err := hf.ReadPage(10)
	if err != nil {
		t.Fatalf("ReadPage past end: %v", err)
	}
	if past.Type() != page.PageTypeFree {
		t.Errorf("expected free page past end of file, got %v", past.Type())
	}
}

func TestHeapFile_WriteForeignPage(t *testing.T) {
	path := primitives.Filepath(filepath.Join(t.TempDir(), "t.bin"))
	hf, err := NewHeapFile(path, testDesc(t, types.IntType))
	if err != nil {
		t.Fatalf("NewHeapFile: %v", err)
	}
	defer hf.Close()

	foreign := NewRegularPage(page.NewPageDescriptor(hf.GetID()+1, 1))
	if err := hf.WritePage(foreign); err == nil {
		t.Error("expected error writing a page of another table")
	}
}
