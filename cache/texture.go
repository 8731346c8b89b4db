package cache

import (
	"log/slog"

	"scene-renderer/gpu"
	"scene-renderer/scene"
)

// textureStorage is the part of a texture description that decides whether
// new pixels fit the existing allocation.
type textureStorage struct {
	width, height int32
	format        gpu.Format
	mipmaps       bool
}

type textureUploader struct {
	dev gpu.Device
}

func (textureUploader) version(t *scene.Texture) uint64 { return t.Version() }
func (textureUploader) label(t *scene.Texture) string   { return t.Name }

func (textureUploader) signature(t *scene.Texture) textureStorage {
	d := t.Desc()
	return textureStorage{width: d.Width, height: d.Height, format: d.Format, mipmaps: d.Mipmaps}
}

func (u textureUploader) create(t *scene.Texture) (gpu.Texture, error) {
	return u.dev.CreateTexture(t.Desc(), t.Pixels())
}

func (u textureUploader) update(h gpu.Texture, t *scene.Texture) error {
	return u.dev.UpdateTexture(h, t.Desc(), t.Pixels())
}

func (u textureUploader) destroy(h gpu.Texture) { u.dev.DeleteTexture(h) }

var placeholderPixels = []byte{255, 255, 255, 255}

// AcquireTexture returns the GPU texture for t. A texture whose pixels have
// not arrived yet resolves to a shared 1x1 white placeholder.
func (c *Cache) AcquireTexture(t *scene.Texture) (gpu.Texture, error) {
	if !t.Ready() {
		return c.Placeholder()
	}
	return c.textures.acquire(c, t)
}

// Placeholder returns the 1x1 white texture, creating it on first use.
func (c *Cache) Placeholder() (gpu.Texture, error) {
	if c.placeholderLive {
		return c.placeholder, nil
	}
	desc := gpu.TextureDesc{
		Label:  "placeholder",
		Width:  1,
		Height: 1,
		Format: gpu.FormatRGBA8,
		Filter: gpu.FilterNearest,
	}
	h, err := c.dev.CreateTexture(desc, placeholderPixels)
	if err != nil {
		return 0, &ResourceError{Kind: "texture", Name: desc.Label, Err: err}
	}
	c.placeholder = h
	c.placeholderLive = true
	c.log.Debug("created placeholder texture", slog.Uint64("handle", uint64(h)))
	return h, nil
}

// RetainTexture adds an owner to an acquired texture.
func (c *Cache) RetainTexture(t *scene.Texture) bool {
	return c.textures.retain(t)
}

// ReleaseTexture drops an owner; see ReleaseGeometry.
func (c *Cache) ReleaseTexture(t *scene.Texture) bool {
	return c.textures.release(t)
}

func (c *Cache) LookupTexture(t *scene.Texture) (gpu.Texture, bool) {
	return c.textures.lookup(t)
}
