package primitives

// HashCode represents a hash value (group keys, page descriptors, attribute values).
type HashCode uint64

// TableID identifies a table file. It is derived from the file path.
type TableID uint64

// SlotID represents a slot number within a page
type SlotID uint16

// PageNumber represents a page number within a table file
type PageNumber uint64

// MetaPageNumber is the page reserved for table metadata in every heap file.
// Record pages start right after it.
const MetaPageNumber PageNumber = 0
