package heap

import (
	"encoding/binary"
	"fmt"
	"pagedb/pkg/primitives"
	"pagedb/pkg/storage/page"
	"sync"
)

const (
	// HeaderSize is the size of the fixed page header:
	// type tag (1), reserved (1), slot count (2), free space start (2), free space end (2).
	HeaderSize = 8
	// SlotPointerSize is the size of each slot pointer (4 bytes: 2 for offset, 2 for length)
	SlotPointerSize = 4
	// MaxRecordSize is the largest record that fits on an empty page.
	MaxRecordSize = page.PageSize - HeaderSize - SlotPointerSize
)

// SlotPointer locates one record within a page.
type SlotPointer struct {
	Offset uint16 // Offset from start of page
	Length uint16 // Length of record data in bytes
}

// HeapPage is a slotted page of serialized records. It works directly on its
// page buffer; records are addressed by slot and never move once appended.
//
// Page Layout:
//   - Header: type tag, slot count, free space bounds
//   - Slot Pointer Array: (offset, length) pairs, growing from the header
//   - Free Space: Available space in the middle
//   - Record Data: growing backward from the end of the page
type HeapPage struct {
	pageID *page.PageDescriptor
	data   []byte
	dirty  bool
	mutex  sync.RWMutex
}

// NewRegularPage returns an empty, formatted record page.
func NewRegularPage(pid *page.PageDescriptor) *HeapPage {
	hp := &HeapPage{pageID: pid, data: make([]byte, page.PageSize)}
	hp.format()
	return hp
}

// NewHeapPage wraps raw page data read from disk. The page takes ownership
// of data. A zero-filled page is reported as PageTypeFree.
func NewHeapPage(pid *page.PageDescriptor, data []byte) (*HeapPage, error) {
	if len(data) != page.PageSize {
		return nil, fmt.Errorf("invalid page data size: expected %d, got %d", page.PageSize, len(data))
	}

	hp := &HeapPage{pageID: pid, data: data}
	if hp.pageType() == page.PageTypeRegular {
		if err := hp.validate(); err != nil {
			return nil, fmt.Errorf("%v: %w", pid, err)
		}
	}
	return hp, nil
}

// GetID returns the unique page identifier for this heap page.
func (hp *HeapPage) GetID() *page.PageDescriptor {
	return hp.pageID
}

// Type returns the page's type tag.
func (hp *HeapPage) Type() page.PageType {
	hp.mutex.RLock()
	defer hp.mutex.RUnlock()
	return hp.pageType()
}

// IsDirty reports whether the page was modified since it was last written.
func (hp *HeapPage) IsDirty() bool {
	hp.mutex.RLock()
	defer hp.mutex.RUnlock()
	return hp.dirty
}

// MarkDirty sets or clears the dirty flag.
func (hp *HeapPage) MarkDirty(dirty bool) {
	hp.mutex.Lock()
	defer hp.mutex.Unlock()
	hp.dirty = dirty
}

// Format turns a free page into an empty record page. Formatting a page that
// already holds records is an error.
func (hp *HeapPage) Format() error {
	hp.mutex.Lock()
	defer hp.mutex.Unlock()

	switch hp.pageType() {
	case page.PageTypeFree:
		hp.format()
		hp.dirty = true
		return nil
	case page.PageTypeRegular:
		if hp.numSlots() == 0 {
			return nil
		}
	}
	return fmt.Errorf("cannot format %s page %v", hp.pageType(), hp.pageID)
}

// NumSlots returns the number of records stored on the page.
func (hp *HeapPage) NumSlots() primitives.SlotID {
	hp.mutex.RLock()
	defer hp.mutex.RUnlock()
	return primitives.SlotID(hp.numSlots())
}

// FreeSpace returns the bytes left between the slot directory and the record data.
func (hp *HeapPage) FreeSpace() int {
	hp.mutex.RLock()
	defer hp.mutex.RUnlock()
	return int(hp.freeHigh()) - int(hp.freeLow())
}

// Append stores record on the page and returns its slot. The second result
// is false when the page is full (or is not a record page); the caller is
// expected to move on to the next page.
func (hp *HeapPage) Append(record []byte) (primitives.SlotID, bool) {
	hp.mutex.Lock()
	defer hp.mutex.Unlock()

	if hp.pageType() != page.PageTypeRegular || len(record) == 0 {
		return 0, false
	}

	needed := len(record) + SlotPointerSize
	if int(hp.freeHigh())-int(hp.freeLow()) < needed {
		return 0, false
	}

	slot := hp.numSlots()
	offset := hp.freeHigh() - uint16(len(record)) // #nosec G115
	copy(hp.data[offset:], record)

	ptr := HeaderSize + int(slot)*SlotPointerSize
	binary.LittleEndian.PutUint16(hp.data[ptr:], offset)
	binary.LittleEndian.PutUint16(hp.data[ptr+2:], uint16(len(record))) // #nosec G115

	hp.setNumSlots(slot + 1)
	hp.setFreeLow(uint16(ptr + SlotPointerSize)) // #nosec G115
	hp.setFreeHigh(offset)
	hp.dirty = true

	return primitives.SlotID(slot), true
}

// ReadSlot returns a copy of the record stored at slot.
func (hp *HeapPage) ReadSlot(slot primitives.SlotID) ([]byte, error) {
	hp.mutex.RLock()
	defer hp.mutex.RUnlock()

	sp, err := hp.slotPointer(slot)
	if err != nil {
		return nil, err
	}

	out := make([]byte, sp.Length)
	copy(out, hp.data[sp.Offset:sp.Offset+sp.Length])
	return out, nil
}

// WriteSlot overwrites the record at slot in place. The new record must have
// exactly the length of the stored one.
func (hp *HeapPage) WriteSlot(slot primitives.SlotID, record []byte) error {
	hp.mutex.Lock()
	defer hp.mutex.Unlock()

	sp, err := hp.slotPointer(slot)
	if err != nil {
		return err
	}
	if int(sp.Length) != len(record) {
		return fmt.Errorf("record length %d does not match slot %d length %d", len(record), slot, sp.Length)
	}

	copy(hp.data[sp.Offset:], record)
	hp.dirty = true
	return nil
}

// GetPageData returns a copy of the page bytes suitable for writing to disk.
func (hp *HeapPage) GetPageData() []byte {
	hp.mutex.RLock()
	defer hp.mutex.RUnlock()

	out := make([]byte, page.PageSize)
	copy(out, hp.data)
	return out
}

func (hp *HeapPage) format() {
	clear(hp.data)
	hp.data[0] = byte(page.PageTypeRegular)
	hp.setNumSlots(0)
	hp.setFreeLow(HeaderSize)
	hp.setFreeHigh(page.PageSize)
}

// validate checks that the header and slot directory of a record page are
// consistent with the page size.
func (hp *HeapPage) validate() error {
	low, high := hp.freeLow(), hp.freeHigh()
	n := hp.numSlots()

	if int(low) != HeaderSize+int(n)*SlotPointerSize || low > high || int(high) > page.PageSize {
		return fmt.Errorf("corrupt page header (slots=%d, low=%d, high=%d)", n, low, high)
	}

	for i := uint16(0); i < n; i++ {
		sp, _ := hp.slotPointer(primitives.SlotID(i))
		if sp.Offset < high || int(sp.Offset)+int(sp.Length) > page.PageSize {
			return fmt.Errorf("slot %d out of bounds (offset=%d, length=%d)", i, sp.Offset, sp.Length)
		}
	}
	return nil
}

func (hp *HeapPage) slotPointer(slot primitives.SlotID) (SlotPointer, error) {
	if hp.pageType() != page.PageTypeRegular {
		return SlotPointer{}, fmt.Errorf("%v is a %s page", hp.pageID, hp.pageType())
	}
	if uint16(slot) >= hp.numSlots() {
		return SlotPointer{}, fmt.Errorf("slot index %d out of bounds [0, %d)", slot, hp.numSlots())
	}

	ptr := HeaderSize + int(slot)*SlotPointerSize
	return SlotPointer{
		Offset: binary.LittleEndian.Uint16(hp.data[ptr:]),
		Length: binary.LittleEndian.Uint16(hp.data[ptr+2:]),
	}, nil
}

func (hp *HeapPage) pageType() page.PageType { return page.PageType(hp.data[0]) }
func (hp *HeapPage) numSlots() uint16        { return binary.LittleEndian.Uint16(hp.data[2:]) }
func (hp *HeapPage) freeLow() uint16         { return binary.LittleEndian.Uint16(hp.data[4:]) }
func (hp *HeapPage) freeHigh() uint16        { return binary.LittleEndian.Uint16(hp.data[6:]) }

func (hp *HeapPage) setNumSlots(n uint16) { binary.LittleEndian.PutUint16(hp.data[2:], n) }
func (hp *HeapPage) setFreeLow(v uint16)  { binary.LittleEndian.PutUint16(hp.data[4:], v) }
func (hp *HeapPage) setFreeHigh(v uint16) { binary.LittleEndian.PutUint16(hp.data[6:], v) }
