// Package table exposes heap files as tables that are read and written
// through the shared buffer pool.
package table

import (
	"context"
	"fmt"
	"pagedb/pkg/dberror"
	"pagedb/pkg/memory"
	"pagedb/pkg/primitives"
	"pagedb/pkg/storage/heap"
	"pagedb/pkg/storage/page"
	"pagedb/pkg/tuple"
)

// Table is a named, page-backed collection of records of one schema. Page 0
// holds the file metadata; records live on regular pages 1..n-1.
type Table struct {
	name    string
	file    *heap.HeapFile
	store   *memory.PageStore
	manager *Manager
	temp    bool
}

// New binds file to the buffer pool under name.
func New(name string, file *heap.HeapFile, store *memory.PageStore) *Table {
	return &Table{name: name, file: file, store: store}
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// TupleDesc returns the schema of the table's records.
func (t *Table) TupleDesc() *tuple.TupleDescription { return t.file.GetTupleDesc() }

// File returns the underlying heap file.
func (t *Table) File() *heap.HeapFile { return t.file }

// Manager returns the manager that opened the table, or nil for a table
// built directly with New.
func (t *Table) Manager() *Manager { return t.manager }

// IsTemp reports whether the table was created with Manager.CreateTemp.
func (t *Table) IsTemp() bool { return t.temp }

// NewRecord returns an empty record of the table's schema.
func (t *Table) NewRecord() *tuple.Tuple {
	return tuple.NewTuple(t.TupleDesc())
}

// PageCount returns the number of pages in the table file, metadata page
// included.
func (t *Table) PageCount() (int, error) {
	n, err := t.file.NumPages()
	if err != nil {
		return 0, dberror.IO(err, "PageCount")
	}
	return int(n), nil // #nosec G115
}

// Pin pins page i. The caller must Unpin it.
func (t *Table) Pin(i int) (*heap.HeapPage, error) {
	return t.store.Pin(t.file, primitives.PageNumber(i)) // #nosec G115
}

// Unpin releases a pin taken with Pin, marking the page modified if dirty.
func (t *Table) Unpin(i int, dirty bool) error {
	return t.store.Unpin(t.file, primitives.PageNumber(i), dirty) // #nosec G115
}

// ReadAt rebinds rec to the record stored at loc.
func (t *Table) ReadAt(loc tuple.Location, rec *tuple.Tuple) error {
	hp, err := t.store.Pin(t.file, loc.PageNo)
	if err != nil {
		return err
	}
	defer t.store.Unpin(t.file, loc.PageNo, false)

	data, err := hp.ReadSlot(loc.Slot)
	if err != nil {
		return dberror.IO(err, "ReadAt")
	}
	if err := rec.FromBinary(data); err != nil {
		return dberror.IO(err, "ReadAt")
	}
	rec.RecordID = &tuple.Location{PageNo: loc.PageNo, Slot: loc.Slot}
	return nil
}

// WriteAt serializes rec over the record stored at loc. A record that was
// read back and changed must have been marked changed, otherwise its cached
// bytes are written.
func (t *Table) WriteAt(loc tuple.Location, rec *tuple.Tuple) error {
	data, err := rec.ToBinary()
	if err != nil {
		return err
	}

	hp, err := t.store.Pin(t.file, loc.PageNo)
	if err != nil {
		return err
	}
	if err := hp.WriteSlot(loc.Slot, data); err != nil {
		_ = t.store.Unpin(t.file, loc.PageNo, false)
		return dberror.IO(err, "WriteAt")
	}
	return t.store.Unpin(t.file, loc.PageNo, true)
}

// Append adds a single record through a short-lived appender.
func (t *Table) Append(rec *tuple.Tuple) (tuple.Location, error) {
	a := t.NewAppender()
	loc, err := a.Append(rec)
	if cerr := a.Close(); err == nil {
		err = cerr
	}
	return loc, err
}

// Count scans the table and returns its number of records.
func (t *Table) Count(ctx context.Context) (int, error) {
	s := t.Scan(ctx)
	defer s.Close()

	n := 0
	for {
		ok, err := s.Advance()
		if err != nil {
			return n, err
		}
		if !ok {
			return n, nil
		}
		n++
	}
}

// Flush writes the table's modified pages and syncs its file.
func (t *Table) Flush() error {
	return t.store.Flush(t.file)
}

func (t *Table) allocatePage() (primitives.PageNumber, *heap.HeapPage, error) {
	pageNo, err := t.file.AllocateNewPage()
	if err != nil {
		return 0, nil, dberror.IO(err, "allocatePage")
	}

	hp, err := t.store.Pin(t.file, pageNo)
	if err != nil {
		return 0, nil, err
	}
	if hp.Type() != page.PageTypeFree {
		_ = t.store.Unpin(t.file, pageNo, false)
		return 0, nil, dberror.IO(fmt.Errorf("new page %d of %s is not free", pageNo, t.name), "allocatePage")
	}
	if err := hp.Format(); err != nil {
		_ = t.store.Unpin(t.file, pageNo, false)
		return 0, nil, dberror.IO(err, "allocatePage")
	}
	hp.MarkDirty(true)
	return pageNo, hp, nil
}

func (t *Table) String() string {
	return fmt.Sprintf("%s(%s)", t.name, t.TupleDesc())
}
