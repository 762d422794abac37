package table

import (
	"fmt"
	"pagedb/pkg/dberror"
	"pagedb/pkg/primitives"
	"pagedb/pkg/storage/heap"
	"pagedb/pkg/storage/page"
	"pagedb/pkg/tuple"
)

// AppenderOption configures an Appender.
type AppenderOption func(*Appender)

// RetainPages keeps every page the appender fills pinned until Close, so the
// records written through it can be rewritten in place without reading them
// back from disk. When a further page cannot be pinned, Append fails with a
// StorageFull error.
func RetainPages() AppenderOption {
	return func(a *Appender) { a.retain = true }
}

// Appender adds records to the end of a table.
//
// It follows the page-full protocol: a record is appended to the current
// page; when the page reports full, a new page is allocated, pinned and
// formatted, and the append is retried there.
type Appender struct {
	t        *Table
	retain   bool
	pageNo   primitives.PageNumber
	page     *heap.HeapPage
	retained []primitives.PageNumber
	appended int
}

// NewAppender creates an appender positioned after the last record of t.
func (t *Table) NewAppender(opts ...AppenderOption) *Appender {
	a := &Appender{t: t}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Append writes rec and returns its location. rec is bound to that location.
func (a *Appender) Append(rec *tuple.Tuple) (tuple.Location, error) {
	data, err := rec.ToBinary()
	if err != nil {
		return tuple.Location{}, err
	}

	if a.page == nil {
		if err := a.start(); err != nil {
			return tuple.Location{}, err
		}
	}

	slot, ok := a.page.Append(data)
	if !ok {
		if err := a.nextPage(); err != nil {
			return tuple.Location{}, err
		}
		if slot, ok = a.page.Append(data); !ok {
			return tuple.Location{}, dberror.IO(
				fmt.Errorf("record of %d bytes does not fit an empty page", len(data)), "Append")
		}
	}

	a.appended++
	loc := tuple.Location{PageNo: a.pageNo, Slot: slot}
	rec.RecordID = &tuple.Location{PageNo: loc.PageNo, Slot: loc.Slot}
	return loc, nil
}

// Appended returns the number of records written through the appender.
func (a *Appender) Appended() int {
	return a.appended
}

// start pins the last page of the table when it is a regular page, so that a
// table grows without leaving a half-empty page behind every appender.
func (a *Appender) start() error {
	n, err := a.t.file.NumPages()
	if err != nil {
		return dberror.IO(err, "Append")
	}

	if n > 1 {
		last := n - 1
		hp, err := a.t.store.Pin(a.t.file, last)
		if err != nil {
			return err
		}
		if hp.Type() == page.PageTypeRegular {
			a.pageNo, a.page = last, hp
			return nil
		}
		if err := a.t.store.Unpin(a.t.file, last, false); err != nil {
			return err
		}
	}
	return a.nextPage()
}

func (a *Appender) nextPage() error {
	if err := a.release(); err != nil {
		return err
	}

	pageNo, hp, err := a.t.allocatePage()
	if err != nil {
		return err
	}
	a.pageNo, a.page = pageNo, hp
	return nil
}

// release gives up the current page, unless pages are retained.
func (a *Appender) release() error {
	if a.page == nil {
		return nil
	}

	pageNo := a.pageNo
	a.page = nil
	if a.retain {
		a.retained = append(a.retained, pageNo)
		return nil
	}
	return a.t.store.Unpin(a.t.file, pageNo, true)
}

// Close releases every page the appender still holds. It is safe to call
// Close more than once.
func (a *Appender) Close() error {
	var firstErr error
	if a.page != nil {
		pageNo := a.pageNo
		a.page = nil
		firstErr = a.t.store.Unpin(a.t.file, pageNo, true)
	}
	for _, pageNo := range a.retained {
		if err := a.t.store.Unpin(a.t.file, pageNo, true); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.retained = nil
	return firstErr
}
