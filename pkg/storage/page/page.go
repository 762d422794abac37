package page

const (
	// PageSize is the size of each page in bytes (4KB)
	PageSize = 4096
)

// PageType tags the role of a page in a table file. The tag is the first
// byte of every page.
type PageType uint8

const (
	// PageTypeFree marks a zero-filled page that was allocated but never formatted.
	PageTypeFree PageType = iota
	// PageTypeMeta marks the table metadata page.
	PageTypeMeta
	// PageTypeRegular marks a page of records. Only regular pages are scanned.
	PageTypeRegular
)

func (t PageType) String() string {
	switch t {
	case PageTypeFree:
		return "free"
	case PageTypeMeta:
		return "meta"
	case PageTypeRegular:
		return "regular"
	default:
		return "unknown"
	}
}
