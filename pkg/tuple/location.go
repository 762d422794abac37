package tuple

import (
	"fmt"
	"pagedb/pkg/primitives"
)

// Location addresses a serialized record inside a table: the page number in
// the table file and the slot within that page. It is a plain value; the
// bytes it points at stay owned by the storage layer.
type Location struct {
	PageNo primitives.PageNumber
	Slot   primitives.SlotID
}

func (l Location) String() string {
	return fmt.Sprintf("(%d, %d)", l.PageNo, l.Slot)
}
