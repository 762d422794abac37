package memory

import (
	"fmt"
	"pagedb/pkg/dberror"
	"pagedb/pkg/logging"
	"pagedb/pkg/metrics"
	"pagedb/pkg/primitives"
	"pagedb/pkg/storage/heap"
	"pagedb/pkg/storage/page"
	"sync"
)

const (
	// DefaultMaxPinnedPages bounds the number of frames that may be pinned at
	// the same time.
	DefaultMaxPinnedPages = 256

	// DefaultCacheBytes is the default capacity of the clean page cache.
	DefaultCacheBytes int64 = 16 << 20
)

// Config sizes a PageStore.
type Config struct {
	MaxPinnedPages int
	CacheBytes     int64
	Metrics        *metrics.Metrics
}

type frameKey struct {
	table primitives.TableID
	page  primitives.PageNumber
}

type frame struct {
	file *heap.HeapFile
	page *heap.HeapPage
	pins int
}

// Stats is a snapshot of buffer pool activity.
type Stats struct {
	Pinned   int
	Capacity int
	Hits     uint64
	Misses   uint64
	Writes   uint64
}

// PageStore is the buffer pool shared by all tables.
//
// A pinned page lives in a frame and is never evicted; the number of frames is
// bounded by MaxPinnedPages. When the last pin on a page is released, a dirty
// page is written back to its file and the clean bytes move to a PageCache,
// from which a later Pin can revive them without touching disk.
//
// Pin returns the same *heap.HeapPage to every holder of a pin, so writers
// see each other's changes until the page is unpinned.
type PageStore struct {
	mutex    sync.Mutex
	maxPins  int
	frames   map[frameKey]*frame
	cache    *PageCache
	metrics  *metrics.Metrics
	hits     uint64
	misses   uint64
	writes   uint64
	isClosed bool
}

// NewPageStore creates a buffer pool. Zero fields in cfg take their defaults;
// a negative CacheBytes disables the clean page cache.
func NewPageStore(cfg Config) (*PageStore, error) {
	if cfg.MaxPinnedPages <= 0 {
		cfg.MaxPinnedPages = DefaultMaxPinnedPages
	}
	if cfg.CacheBytes == 0 {
		cfg.CacheBytes = DefaultCacheBytes
	}

	cache, err := NewPageCache(cfg.CacheBytes)
	if err != nil {
		return nil, dberror.Wrap(err, dberror.CodeIO, "NewPageStore", "PageStore")
	}

	return &PageStore{
		maxPins: cfg.MaxPinnedPages,
		frames:  make(map[frameKey]*frame),
		cache:   cache,
		metrics: cfg.Metrics,
	}, nil
}

// Pin makes page pageNo of file resident and returns it. Every Pin must be
// matched by an Unpin. If every frame is already pinned by other pages, Pin
// fails with a StorageFull error.
func (p *PageStore) Pin(file *heap.HeapFile, pageNo primitives.PageNumber) (*heap.HeapPage, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.isClosed {
		return nil, dberror.IO(fmt.Errorf("page store is closed"), "Pin")
	}

	key := frameKey{table: file.GetID(), page: pageNo}
	if f, ok := p.frames[key]; ok {
		f.pins++
		p.hit()
		return f.page, nil
	}

	if len(p.frames) >= p.maxPins {
		return nil, dberror.StorageFull(fmt.Errorf("all %d frames are pinned, cannot pin page %d of %s",
			p.maxPins, pageNo, file.FilePath()))
	}

	pid := page.NewPageDescriptor(key.table, pageNo)
	hp, err := p.load(file, pid)
	if err != nil {
		return nil, err
	}

	p.frames[key] = &frame{file: file, page: hp, pins: 1}
	p.metrics.SetPinned(len(p.frames))
	return hp, nil
}

func (p *PageStore) load(file *heap.HeapFile, pid *page.PageDescriptor) (*heap.HeapPage, error) {
	if data, ok := p.cache.Get(pid); ok {
		p.cache.Remove(pid)
		hp, err := heap.NewHeapPage(pid, data)
		if err == nil {
			p.hit()
			return hp, nil
		}
		logging.WithComponent("buffer").Warn("discarding corrupt cached page", "page", pid.String(), "error", err)
	}

	hp, err := file.ReadPage(pid.PageNo())
	if err != nil {
		return nil, dberror.IO(err, "Pin")
	}
	p.misses++
	p.metrics.Miss()
	return hp, nil
}

func (p *PageStore) hit() {
	p.hits++
	p.metrics.Hit()
}

// Unpin releases one pin on the page. When dirty is true the page is marked
// as modified. Releasing the last pin writes a modified page to its file.
func (p *PageStore) Unpin(file *heap.HeapFile, pageNo primitives.PageNumber, dirty bool) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	key := frameKey{table: file.GetID(), page: pageNo}
	f, ok := p.frames[key]
	if !ok || f.pins == 0 {
		return dberror.IO(fmt.Errorf("page %d of %s is not pinned", pageNo, file.FilePath()), "Unpin")
	}

	if dirty {
		f.page.MarkDirty(true)
	}
	f.pins--
	if f.pins > 0 {
		return nil
	}

	if err := p.writeBack(f); err != nil {
		f.pins = 0
		return err
	}

	delete(p.frames, key)
	p.metrics.SetPinned(len(p.frames))
	p.cache.Put(f.page.GetID(), f.page.GetPageData())
	return nil
}

func (p *PageStore) writeBack(f *frame) error {
	if !f.page.IsDirty() {
		return nil
	}
	if err := f.file.WritePage(f.page); err != nil {
		return dberror.IO(err, "writeBack")
	}
	p.writes++
	p.metrics.Wrote()
	return nil
}

// Flush writes every modified page of file, pinned or not, and syncs the file.
func (p *PageStore) Flush(file *heap.HeapFile) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.flushLocked(file)
}

func (p *PageStore) flushLocked(file *heap.HeapFile) error {
	for key, f := range p.frames {
		if key.table != file.GetID() {
			continue
		}
		if err := p.writeBack(f); err != nil {
			return err
		}
		if f.pins == 0 {
			delete(p.frames, key)
		}
	}
	p.metrics.SetPinned(len(p.frames))

	if err := file.Sync(); err != nil {
		return dberror.IO(err, "Flush")
	}
	return nil
}

// FlushAll writes every modified page in the pool.
func (p *PageStore) FlushAll() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	files := make(map[primitives.TableID]*heap.HeapFile)
	for key, f := range p.frames {
		files[key.table] = f.file
	}
	for _, file := range files {
		if err := p.flushLocked(file); err != nil {
			return err
		}
	}
	return nil
}

// Discard forgets every page of file without writing it. It fails if any page
// of the file is still pinned. Discard is used before a table is deleted.
func (p *PageStore) Discard(file *heap.HeapFile) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	for key, f := range p.frames {
		if key.table != file.GetID() {
			continue
		}
		if f.pins > 0 {
			return dberror.IO(fmt.Errorf("page %d of %s is still pinned", key.page, file.FilePath()), "Discard")
		}
		delete(p.frames, key)
	}
	p.metrics.SetPinned(len(p.frames))

	n, err := file.NumPages()
	if err != nil {
		return dberror.IO(err, "Discard")
	}
	for pageNo := primitives.PageNumber(0); pageNo < n; pageNo++ {
		p.cache.Remove(page.NewPageDescriptor(file.GetID(), pageNo))
	}
	return nil
}

// PinnedCount returns the number of frames currently holding a pinned page.
func (p *PageStore) PinnedCount() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	n := 0
	for _, f := range p.frames {
		if f.pins > 0 {
			n++
		}
	}
	return n
}

// Capacity returns the number of frames, the most pages that can be pinned at once.
func (p *PageStore) Capacity() int {
	return p.maxPins
}

// Stats returns a snapshot of the pool counters.
func (p *PageStore) Stats() Stats {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return Stats{
		Pinned:   len(p.frames),
		Capacity: p.maxPins,
		Hits:     p.hits,
		Misses:   p.misses,
		Writes:   p.writes,
	}
}

// Close flushes all modified pages and releases the page cache.
func (p *PageStore) Close() error {
	if err := p.FlushAll(); err != nil {
		return err
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.isClosed {
		p.isClosed = true
		p.cache.Close()
	}
	return nil
}
