package assets

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scene-renderer/renderer"
)

type collector struct {
	mu      sync.Mutex
	uploads []renderer.Upload
}

func (c *collector) Publish(u renderer.Upload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uploads = append(c.uploads, u)
}

func TestLoaderPublishesDecodedPixels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checker.png")
	require.NoError(t, os.WriteFile(path, encodePNG(t, checker(4, 4)), 0o600))

	out := &collector{}
	l := NewTextureLoader(out, DefaultLoaderConfig(), nil)
	tex := l.Load(path)
	assert.Same(t, tex, l.Load(filepath.Join(dir, ".", "checker.png")))
	assert.False(t, tex.Ready())
	assert.Equal(t, "checker.png", tex.Name)

	l.Wait()
	require.Len(t, out.uploads, 1)
	u := out.uploads[0]
	assert.NoError(t, u.Err)
	assert.Same(t, tex, u.Texture)
	assert.Equal(t, int32(4), u.Width)
	assert.Len(t, u.Pixels, 4*4*4)
	// Pixels are applied by the render thread, never by the loader.
	assert.False(t, tex.Ready())
}

func TestLoaderIntoUploadQueue(t *testing.T) {
	dir := t.TempDir()
	q := renderer.NewUploadQueue(8)
	l := NewTextureLoader(q, LoaderConfig{Workers: 2}, nil)
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, encodePNG(t, checker(2, 2)), 0o600))
		l.Load(path)
	}
	l.Wait()
	assert.Equal(t, 3, q.Len())
}

func TestLoaderReportsFailures(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("nope"), 0o600))

	out := &collector{}
	l := NewTextureLoader(out, DefaultLoaderConfig(), nil)
	l.Load(bad)
	l.Load(filepath.Join(dir, "missing.png"))
	l.Wait()

	require.Len(t, out.uploads, 2)
	for _, u := range out.uploads {
		assert.Error(t, u.Err)
		assert.Nil(t, u.Pixels)
	}
}
