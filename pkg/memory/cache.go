// Package memory implements the buffer pool: a bounded table of pinned page
// frames in front of a cache of clean, unpinned pages.
package memory

import (
	"pagedb/pkg/storage/page"

	"github.com/dgraph-io/ristretto/v2"
)

type cachedPage struct {
	pid  page.PageDescriptor
	data []byte
}

// PageCache holds the bytes of clean pages that are not pinned. It is only a
// read-through shortcut: every page in it has already been written to its
// file, so a dropped or evicted entry is simply read from disk again. The
// replacement policy belongs to ristretto.
//
// A PageCache with zero capacity stores nothing.
type PageCache struct {
	cache *ristretto.Cache[uint64, *cachedPage]
}

// NewPageCache creates a cache holding up to maxBytes of page data.
func NewPageCache(maxBytes int64) (*PageCache, error) {
	if maxBytes <= 0 {
		return &PageCache{}, nil
	}

	pages := max(maxBytes/page.PageSize, 1)
	c, err := ristretto.NewCache(&ristretto.Config[uint64, *cachedPage]{
		NumCounters: pages * 10,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &PageCache{cache: c}, nil
}

// Get returns a private copy of the cached page data.
func (pc *PageCache) Get(pid *page.PageDescriptor) ([]byte, bool) {
	if pc.cache == nil {
		return nil, false
	}

	cp, ok := pc.cache.Get(uint64(pid.HashCode()))
	if !ok || !cp.pid.Equals(pid) {
		return nil, false
	}

	out := make([]byte, len(cp.data))
	copy(out, cp.data)
	return out, true
}

// Put caches data as the current content of pid.
func (pc *PageCache) Put(pid *page.PageDescriptor, data []byte) {
	if pc.cache == nil {
		return
	}

	cp := &cachedPage{pid: *pid, data: make([]byte, len(data))}
	copy(cp.data, data)
	pc.cache.Set(uint64(pid.HashCode()), cp, int64(len(data)))
	pc.cache.Wait()
}

// Remove drops pid from the cache.
func (pc *PageCache) Remove(pid *page.PageDescriptor) {
	if pc.cache == nil {
		return
	}
	pc.cache.Del(uint64(pid.HashCode()))
}

// Close releases the cache's background goroutines.
func (pc *PageCache) Close() {
	if pc.cache != nil {
		pc.cache.Close()
	}
}
