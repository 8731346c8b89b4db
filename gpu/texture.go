package gpu

type Format uint8

const (
	FormatNone Format = iota
	FormatRGBA8
	FormatRGBA16F
	FormatDepth24
	FormatDepth32F
)

// BytesPerPixel returns the CPU-side size of one pixel in the format.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatRGBA8, FormatDepth24, FormatDepth32F:
		return 4
	case FormatRGBA16F:
		return 8
	}
	return 0
}

func (f Format) IsDepth() bool {
	return f == FormatDepth24 || f == FormatDepth32F
}

type Filter uint8

const (
	FilterLinear Filter = iota
	FilterNearest
)

type Wrap uint8

const (
	WrapRepeat Wrap = iota
	WrapClamp
)

// TextureDesc describes the storage of a 2D texture.
type TextureDesc struct {
	Label   string
	Width   int32
	Height  int32
	Format  Format
	Filter  Filter
	Wrap    Wrap
	Mipmaps bool
	// Compare enables depth comparison sampling (sampler2DShadow).
	Compare bool
}

// SameStorage reports whether an update from a to b can be done in place.
func (a TextureDesc) SameStorage(b TextureDesc) bool {
	return a.Width == b.Width && a.Height == b.Height && a.Format == b.Format
}

// TargetDesc describes an off-screen render target and its attachments.
type TargetDesc struct {
	Label  string
	Width  int32
	Height int32
	// Color is FormatNone for depth-only targets.
	Color Format
	// Depth is FormatNone for color-only targets.
	Depth   Format
	Filter  Filter
	Compare bool
}
