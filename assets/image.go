// Package assets loads external data into scene descriptors: images decoded
// off the render thread and handed over through the renderer's upload
// queue, and glTF files turned into node trees.
package assets

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"scene-renderer/scene"
)

// Image is decoded RGBA8 pixel data, rows top to bottom.
type Image struct {
	Width  int32
	Height int32
	Pixels []byte
}

// Decode reads a PNG, JPEG, BMP, TIFF or WebP image. Images larger than
// maxSize on either side are scaled down to fit; zero means no limit.
func Decode(r io.Reader, maxSize int) (Image, error) {
	src, format, err := image.Decode(r)
	if err != nil {
		return Image{}, fmt.Errorf("decode: %w", err)
	}
	b := src.Bounds()
	if b.Empty() {
		return Image{}, fmt.Errorf("decode %s: empty image", format)
	}

	w, h := fit(b.Dx(), b.Dy(), maxSize)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	}
	return Image{Width: int32(w), Height: int32(h), Pixels: dst.Pix}, nil
}

// DecodeTexture decodes data into a ready texture.
func DecodeTexture(name string, data []byte, maxSize int) (*scene.Texture, error) {
	img, err := Decode(bytes.NewReader(data), maxSize)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return scene.NewTexture(name, img.Width, img.Height, img.Pixels), nil
}

// fit keeps the aspect ratio while bounding the longer side.
func fit(w, h, limit int) (int, int) {
	if limit <= 0 || (w <= limit && h <= limit) {
		return w, h
	}
	if w >= h {
		return limit, max(h*limit/w, 1)
	}
	return max(w*limit/h, 1), limit
}
