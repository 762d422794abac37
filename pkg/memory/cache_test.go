package memory

import (
	"testing"

	"pagedb/pkg/storage/page"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageCache_GetReturnsCopy(t *testing.T) {
	pc, err := NewPageCache(1 << 20)
	require.NoError(t, err)
	defer pc.Close()

	pid := page.NewPageDescriptor(7, 3)
	data := make([]byte, page.PageSize)
	data[10] = 42
	pc.Put(pid, data)
	data[10] = 0

	got, ok := pc.Get(pid)
	if !ok {
		t.Skip("ristretto declined admission")
	}
	assert.Equal(t, byte(42), got[10])

	got[10] = 1
	again, ok := pc.Get(pid)
	require.True(t, ok)
	assert.Equal(t, byte(42), again[10])

	pc.Remove(pid)
	_, ok = pc.Get(pid)
	assert.False(t, ok)
}

func TestPageCache_Disabled(t *testing.T) {
	pc, err := NewPageCache(0)
	require.NoError(t, err)

	pid := page.NewPageDescriptor(1, 1)
	pc.Put(pid, make([]byte, page.PageSize))
	_, ok := pc.Get(pid)
	assert.False(t, ok)
	pc.Close()
}
