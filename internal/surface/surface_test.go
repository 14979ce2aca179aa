package surface

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	m := NewMemory()

	_, ok := m.Latest()
	assert.False(t, ok, "new surface should be empty")
	assert.Zero(t, m.Version())

	first := Image{ContentType: "image/png", Data: []byte("one"), RenderedAt: time.Now()}
	second := Image{ContentType: "image/png", Data: []byte("two"), RenderedAt: time.Now()}
	require.NoError(t, m.Replace(first))
	require.NoError(t, m.Replace(second))

	img, ok := m.Latest()
	require.True(t, ok)
	assert.Equal(t, []byte("two"), img.Data)
	assert.Equal(t, uint64(2), m.Version())
}

func TestMemoryConcurrentReplace(t *testing.T) {
	m := NewMemory()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = m.Replace(Image{Data: []byte(fmt.Sprintf("%d", i))})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, uint64(20), m.Version())
	_, ok := m.Latest()
	assert.True(t, ok)
}

func TestFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "usage.png")
	f := NewFile(path)
	assert.Equal(t, path, f.Path())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "file should not exist before first render")

	require.NoError(t, f.Replace(Image{Data: []byte("first")}))
	require.NoError(t, f.Replace(Image{Data: []byte("second")}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files should be cleaned up")
}

func TestFileMissingDirectory(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "missing", "chart.png"))
	assert.Error(t, f.Replace(Image{Data: []byte("x")}))
}
