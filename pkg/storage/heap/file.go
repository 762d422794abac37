package heap

import (
	"bytes"
	"encoding/binary"
	"io"
	"pagedb/pkg/primitives"
	"pagedb/pkg/storage/page"
	"pagedb/pkg/tuple"
	"pagedb/pkg/types"

	"github.com/pkg/errors"
)

const (
	metaMagic   = "PGDB"
	metaVersion = 1
)

// ErrSchemaMismatch is returned when an existing heap file was written with
// a different record layout than the one it is opened with.
var ErrSchemaMismatch = errors.New("heap file schema mismatch")

// HeapFile is a table stored in a single OS file.
//
// Storage Layout:
//   - Each page is exactly page.PageSize bytes
//   - Page 0 is the metadata page, recording the record layout
//   - Pages 1..n-1 are record pages (or free pages not yet formatted)
type HeapFile struct {
	*page.BaseFile
	tupleDesc *tuple.TupleDescription
}

// NewHeapFile opens the heap file at filename, creating it with a metadata
// page if it is new. An existing file must have been written with the same
// field types as td.
func NewHeapFile(filename primitives.Filepath, td *tuple.TupleDescription) (*HeapFile, error) {
	if td == nil {
		return nil, errors.New("tuple description cannot be nil")
	}
	if td.GetSize() > MaxRecordSize {
		return nil, errors.Errorf("record size %d exceeds maximum %d", td.GetSize(), MaxRecordSize)
	}

	baseFile, err := page.NewBaseFile(filename)
	if err != nil {
		return nil, err
	}

	hf := &HeapFile{BaseFile: baseFile, tupleDesc: td}
	if err := hf.initMeta(); err != nil {
		_ = baseFile.Close()
		return nil, err
	}
	return hf, nil
}

// GetTupleDesc returns the schema definition for records stored in this file.
func (hf *HeapFile) GetTupleDesc() *tuple.TupleDescription {
	return hf.tupleDesc
}

// ReadPage reads the specified page from disk. Pages past the end of the
// file come back as free pages.
func (hf *HeapFile) ReadPage(pageNo primitives.PageNumber) (*HeapPage, error) {
	pid := page.NewPageDescriptor(hf.GetID(), pageNo)

	pageData, err := hf.ReadPageData(pageNo)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return NewHeapPage(pid, make([]byte, page.PageSize))
		}
		return nil, errors.Wrap(err, "failed to read page data")
	}

	return NewHeapPage(pid, pageData)
}

// WritePage writes the page to its location in the file and clears its dirty flag.
func (hf *HeapFile) WritePage(p *HeapPage) error {
	if p == nil {
		return errors.New("page cannot be nil")
	}
	if p.GetID().GetTableID() != hf.GetID() {
		return errors.Errorf("%v does not belong to %s", p.GetID(), hf.FilePath())
	}

	if err := hf.WritePageData(p.GetID().PageNo(), p.GetPageData()); err != nil {
		return err
	}
	p.MarkDirty(false)
	return nil
}

func (hf *HeapFile) initMeta() error {
	n, err := hf.NumPages()
	if err != nil {
		return err
	}

	if n == 0 {
		if _, err := hf.AllocateNewPage(); err != nil {
			return err
		}
		return hf.WritePageData(primitives.MetaPageNumber, encodeMeta(hf.tupleDesc))
	}

	data, err := hf.ReadPageData(primitives.MetaPageNumber)
	if err != nil {
		return errors.Wrap(err, "failed to read metadata page")
	}
	return checkMeta(data, hf.tupleDesc)
}

func encodeMeta(td *tuple.TupleDescription) []byte {
	data := make([]byte, page.PageSize)
	data[0] = byte(page.PageTypeMeta)
	copy(data[1:5], metaMagic)
	binary.LittleEndian.PutUint16(data[5:], metaVersion)
	binary.LittleEndian.PutUint32(data[7:], td.GetSize())
	binary.LittleEndian.PutUint16(data[11:], uint16(td.NumFields())) // #nosec G115
	for i, t := range td.Types {
		data[13+i] = byte(t)
	}
	return data
}

func checkMeta(data []byte, td *tuple.TupleDescription) error {
	if page.PageType(data[0]) != page.PageTypeMeta || !bytes.Equal(data[1:5], []byte(metaMagic)) {
		return errors.New("missing heap file metadata page")
	}
	if v := binary.LittleEndian.Uint16(data[5:]); v != metaVersion {
		return errors.Errorf("unsupported heap file version %d", v)
	}

	size := binary.LittleEndian.Uint32(data[7:])
	n := int(binary.LittleEndian.Uint16(data[11:]))
	if size != td.GetSize() || n != td.NumFields() {
		return errors.Wrapf(ErrSchemaMismatch, "file has %d fields of %d bytes, schema %s has %d of %d",
			n, size, td, td.NumFields(), td.GetSize())
	}
	for i := 0; i < n; i++ {
		if types.Type(data[13+i]) != td.Types[i] {
			return errors.Wrapf(ErrSchemaMismatch, "field %d is %v on disk, %v in schema",
				i, types.Type(data[13+i]), td.Types[i])
		}
	}
	return nil
}
