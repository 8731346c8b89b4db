package scene

import "scene-renderer/gpu"

// Texture holds CPU-side RGBA8 pixels (row-major, top-to-bottom). A texture
// created without pixels is pending: the renderer draws it with a
// placeholder until SetPixels is called on the render thread.
type Texture struct {
	Name    string
	Filter  gpu.Filter
	Wrap    gpu.Wrap
	Mipmaps bool

	width   int32
	height  int32
	pixels  []byte
	version uint64
}

func NewTexture(name string, width, height int32, pixels []byte) *Texture {
	t := &Texture{Name: name, Mipmaps: true}
	t.SetPixels(width, height, pixels)
	return t
}

// NewPendingTexture returns a texture whose pixels arrive later.
func NewPendingTexture(name string) *Texture {
	return &Texture{Name: name, Mipmaps: true, version: 1}
}

// NewSolidTexture creates a 1x1 texture with the given RGBA color values (0-255).
func NewSolidTexture(name string, r, g, b, a uint8) *Texture {
	t := NewTexture(name, 1, 1, []byte{r, g, b, a})
	t.Mipmaps = false
	t.Filter = gpu.FilterNearest
	return t
}

// SetPixels replaces the image and bumps the version.
func (t *Texture) SetPixels(width, height int32, pixels []byte) {
	t.width = width
	t.height = height
	t.pixels = pixels
	t.version++
}

// MarkModified records an in-place edit of Pixels.
func (t *Texture) MarkModified() { t.version++ }

func (t *Texture) Version() uint64 { return t.version }
func (t *Texture) Width() int32    { return t.width }
func (t *Texture) Height() int32   { return t.height }
func (t *Texture) Pixels() []byte  { return t.pixels }

// Ready reports whether pixel data of the right size is present.
func (t *Texture) Ready() bool {
	return t.width > 0 && t.height > 0 && len(t.pixels) == int(t.width)*int(t.height)*4
}

// Desc returns the GPU storage description for the current pixels.
func (t *Texture) Desc() gpu.TextureDesc {
	return gpu.TextureDesc{
		Label:   t.Name,
		Width:   t.width,
		Height:  t.height,
		Format:  gpu.FormatRGBA8,
		Filter:  t.Filter,
		Wrap:    t.Wrap,
		Mipmaps: t.Mipmaps,
	}
}
