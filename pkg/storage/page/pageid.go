package page

import (
	"encoding/binary"
	"fmt"
	"pagedb/pkg/primitives"

	"github.com/cespare/xxhash/v2"
)

// PageDescriptor identifies a page: the table file it belongs to and its
// page number inside that file.
type PageDescriptor struct {
	tableID primitives.TableID
	pageNum primitives.PageNumber
}

// NewPageDescriptor creates a new page descriptor
func NewPageDescriptor(tableID primitives.TableID, pageNum primitives.PageNumber) *PageDescriptor {
	return &PageDescriptor{
		tableID: tableID,
		pageNum: pageNum,
	}
}

// GetTableID returns the table ID
func (pd *PageDescriptor) GetTableID() primitives.TableID {
	return pd.tableID
}

// PageNo returns the page number
func (pd *PageDescriptor) PageNo() primitives.PageNumber {
	return pd.pageNum
}

// Serialize returns this page ID as 16 little-endian bytes.
func (pd *PageDescriptor) Serialize() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(pd.tableID))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(pd.pageNum))
	return buf
}

// Equals checks if two page descriptors are equal
func (pd *PageDescriptor) Equals(other *PageDescriptor) bool {
	if other == nil {
		return false
	}
	return pd.tableID == other.tableID && pd.pageNum == other.pageNum
}

func (pd *PageDescriptor) String() string {
	return fmt.Sprintf("PageDescriptor(table=%d, page=%d)", pd.tableID, pd.pageNum)
}

// HashCode returns a hash code for this page descriptor. It doubles as the
// key of the page in the buffer pool's caches.
func (pd *PageDescriptor) HashCode() primitives.HashCode {
	return primitives.HashCode(xxhash.Sum64(pd.Serialize()))
}
