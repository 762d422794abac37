package table

import (
	"context"
	"errors"
	"pagedb/pkg/dberror"
	"pagedb/pkg/primitives"
	"pagedb/pkg/storage/heap"
	"pagedb/pkg/storage/page"
	"pagedb/pkg/tuple"
)

var errNoCurrent = errors.New("scanner is not positioned on a record")

// Scanner is a restartable, forward-only cursor over the records of a range
// of pages. Only regular pages are read. At most one page is pinned at a time.
//
// The page range is fixed when the scan starts or is rewound, so records
// appended to the table during a scan are not visited.
type Scanner struct {
	t     *Table
	ctx   context.Context
	first primitives.PageNumber
	last  primitives.PageNumber // exclusive; zero means the end of the table
	end   primitives.PageNumber

	pageNo primitives.PageNumber // next page to pin
	pinned primitives.PageNumber // page held by page
	page   *heap.HeapPage
	slot   primitives.SlotID
	data   []byte
	loc    tuple.Location
	primed bool
}

// Scan returns a scanner over every record of the table. ctx is checked each
// time the scanner moves to another page.
func (t *Table) Scan(ctx context.Context) *Scanner {
	return t.ScanPages(ctx, 1, 0)
}

// ScanPages returns a scanner over pages [first, last). A zero last scans to
// the end of the table.
func (t *Table) ScanPages(ctx context.Context, first, last int) *Scanner {
	if first < 1 {
		first = 1
	}
	return &Scanner{
		t:     t,
		ctx:   ctx,
		first: primitives.PageNumber(first), // #nosec G115
		last:  primitives.PageNumber(last),  // #nosec G115
	}
}

// Advance moves to the next record. It returns false at the end of the range.
func (s *Scanner) Advance() (bool, error) {
	if !s.primed {
		if err := s.prime(); err != nil {
			return false, err
		}
	}

	for {
		if s.page != nil && s.slot < s.page.NumSlots() {
			data, err := s.page.ReadSlot(s.slot)
			if err != nil {
				return false, dberror.IO(err, "Scanner.Advance")
			}
			s.data = data
			s.loc = tuple.Location{PageNo: s.pinned, Slot: s.slot}
			s.slot++
			return true, nil
		}

		if err := s.release(); err != nil {
			return false, err
		}
		if s.pageNo >= s.end {
			return false, nil
		}
		if err := s.pinNext(); err != nil {
			return false, err
		}
	}
}

func (s *Scanner) prime() error {
	n, err := s.t.file.NumPages()
	if err != nil {
		return dberror.IO(err, "Scanner")
	}
	s.end = n
	if s.last != 0 && s.last < n {
		s.end = s.last
	}
	s.pageNo = s.first
	s.primed = true
	return nil
}

// pinNext pins page s.pageNo, skipping pages that are not regular, and
// advances s.pageNo past it.
func (s *Scanner) pinNext() error {
	for ; s.pageNo < s.end; s.pageNo++ {
		if s.ctx != nil {
			if err := s.ctx.Err(); err != nil {
				return err
			}
		}

		hp, err := s.t.store.Pin(s.t.file, s.pageNo)
		if err != nil {
			return err
		}
		if hp.Type() != page.PageTypeRegular {
			if err := s.t.store.Unpin(s.t.file, s.pageNo, false); err != nil {
				return err
			}
			continue
		}

		s.page = hp
		s.pinned = s.pageNo
		s.slot = 0
		s.pageNo++
		return nil
	}
	return nil
}

// Current rebinds rec to the record under the cursor.
func (s *Scanner) Current(rec *tuple.Tuple) error {
	if s.data == nil {
		return dberror.IO(errNoCurrent, "Scanner.Current")
	}
	if err := rec.FromBinary(s.data); err != nil {
		return dberror.SchemaMismatch("%v", err)
	}
	rec.RecordID = &tuple.Location{PageNo: s.loc.PageNo, Slot: s.loc.Slot}
	return nil
}

// Location returns the location of the record under the cursor.
func (s *Scanner) Location() tuple.Location {
	return s.loc
}

// Rewind releases the current page and restarts the scan from the first page.
func (s *Scanner) Rewind() error {
	if err := s.release(); err != nil {
		return err
	}
	s.primed = false
	s.data = nil
	return nil
}

// Close releases the pinned page, if any.
func (s *Scanner) Close() error {
	s.data = nil
	return s.release()
}

func (s *Scanner) release() error {
	if s.page == nil {
		return nil
	}
	s.page = nil
	return s.t.store.Unpin(s.t.file, s.pinned, false)
}
