package memory

import (
	"errors"
	"pagedb/pkg/dberror"
	"pagedb/pkg/metrics"
	"pagedb/pkg/primitives"
	"pagedb/pkg/storage/heap"
	"pagedb/pkg/tuple"
	"pagedb/pkg/types"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFile(t *testing.T, name string) *heap.HeapFile {
	t.Helper()
	td, err := tuple.NewTupleDesc([]types.Type{types.IntType}, []string{"v"})
	require.NoError(t, err)

	hf, err := heap.NewHeapFile(primitives.Filepath(filepath.Join(t.TempDir(), name)), td)
	require.NoError(t, err)
	t.Cleanup(func() { _ = hf.Close() })
	return hf
}

func allocate(t *testing.T, hf *heap.HeapFile, n int) []primitives.PageNumber {
	t.Helper()
	pages := make([]primitives.PageNumber, n)
	for i := range pages {
		pageNo, err := hf.AllocateNewPage()
		require.NoError(t, err)
		pages[i] = pageNo
	}
	return pages
}

func newTestStore(t *testing.T, cfg Config) *PageStore {
	t.Helper()
	ps, err := NewPageStore(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ps.Close() })
	return ps
}

func TestPageStore_PinSharesPage(t *testing.T) {
	hf := newTestFile(t, "a.dat")
	pageNo := allocate(t, hf, 1)[0]
	ps := newTestStore(t, Config{MaxPinnedPages: 4})

	first, err := ps.Pin(hf, pageNo)
	require.NoError(t, err)
	second, err := ps.Pin(hf, pageNo)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, ps.PinnedCount())

	require.NoError(t, ps.Unpin(hf, pageNo, false))
	assert.Equal(t, 1, ps.PinnedCount(), "page still held by one pin")
	require.NoError(t, ps.Unpin(hf, pageNo, false))
	assert.Equal(t, 0, ps.PinnedCount())
}

func TestPageStore_StorageFullWhenAllFramesPinned(t *testing.T) {
	hf := newTestFile(t, "a.dat")
	pages := allocate(t, hf, 3)
	ps := newTestStore(t, Config{MaxPinnedPages: 2})

	_, err := ps.Pin(hf, pages[0])
	require.NoError(t, err)
	_, err = ps.Pin(hf, pages[1])
	require.NoError(t, err)

	_, err = ps.Pin(hf, pages[2])
	require.Error(t, err)
	assert.True(t, errors.Is(err, dberror.ErrStorageFull))

	require.NoError(t, ps.Unpin(hf, pages[0], false))
	_, err = ps.Pin(hf, pages[2])
	assert.NoError(t, err, "an unpinned frame must be reusable")
}

func TestPageStore_DirtyPageWrittenOnLastUnpin(t *testing.T) {
	hf := newTestFile(t, "a.dat")
	pageNo := allocate(t, hf, 1)[0]
	ps := newTestStore(t, Config{MaxPinnedPages: 2, CacheBytes: -1})

	hp, err := ps.Pin(hf, pageNo)
	require.NoError(t, err)
	require.NoError(t, hp.Format())
	_, ok := hp.Append([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	require.True(t, ok)
	require.NoError(t, ps.Unpin(hf, pageNo, true))

	onDisk, err := hf.ReadPage(pageNo)
	require.NoError(t, err)
	rec, err := onDisk.ReadSlot(0)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, rec)
	assert.Equal(t, uint64(1), ps.Stats().Writes)
}

func TestPageStore_CleanCacheServesRepin(t *testing.T) {
	hf := newTestFile(t, "a.dat")
	pageNo := allocate(t, hf, 1)[0]
	m := metrics.New()
	ps := newTestStore(t, Config{MaxPinnedPages: 2, Metrics: m})

	_, err := ps.Pin(hf, pageNo)
	require.NoError(t, err)
	require.NoError(t, ps.Unpin(hf, pageNo, false))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PoolMisses))

	_, err = ps.Pin(hf, pageNo)
	require.NoError(t, err)
	require.NoError(t, ps.Unpin(hf, pageNo, false))

	// ristretto may refuse admission, in which case the second pin reads disk.
	stats := ps.Stats()
	assert.Equal(t, uint64(2), stats.Hits+stats.Misses)
	assert.GreaterOrEqual(t, stats.Misses, uint64(1))
}

func TestPageStore_UnpinWithoutPin(t *testing.T) {
	hf := newTestFile(t, "a.dat")
	ps := newTestStore(t, Config{})

	err := ps.Unpin(hf, 1, false)
	require.Error(t, err)
	assert.True(t, dberror.HasCode(err, dberror.CodeIO))
}

func TestPageStore_DiscardRefusesPinnedPages(t *testing.T) {
	hf := newTestFile(t, "a.dat")
	pageNo := allocate(t, hf, 1)[0]
	ps := newTestStore(t, Config{})

	_, err := ps.Pin(hf, pageNo)
	require.NoError(t, err)
	assert.Error(t, ps.Discard(hf))

	require.NoError(t, ps.Unpin(hf, pageNo, false))
	assert.NoError(t, ps.Discard(hf))
	assert.Equal(t, 0, ps.Stats().Pinned)
}

func TestPageStore_FlushWritesPinnedDirtyPages(t *testing.T) {
	hf := newTestFile(t, "a.dat")
	pageNo := allocate(t, hf, 1)[0]
	ps := newTestStore(t, Config{})

	hp, err := ps.Pin(hf, pageNo)
	require.NoError(t, err)
	require.NoError(t, hp.Format())
	hp.MarkDirty(true)

	require.NoError(t, ps.Flush(hf))
	assert.False(t, hp.IsDirty())
	assert.Equal(t, 1, ps.PinnedCount(), "flush keeps pinned frames resident")

	require.NoError(t, ps.Unpin(hf, pageNo, false))
}

func TestPageStore_PinAfterClose(t *testing.T) {
	hf := newTestFile(t, "a.dat")
	ps, err := NewPageStore(Config{})
	require.NoError(t, err)
	require.NoError(t, ps.Close())

	_, err = ps.Pin(hf, 1)
	assert.Error(t, err)
}
