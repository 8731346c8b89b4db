package opengl

import (
	"fmt"
	"unsafe"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"scene-renderer/gpu"
)

type texFormat struct {
	internal int32
	format   uint32
	xtype    uint32
}

func glFormat(f gpu.Format) (texFormat, error) {
	switch f {
	case gpu.FormatRGBA8:
		return texFormat{gl.RGBA8, gl.RGBA, gl.UNSIGNED_BYTE}, nil
	case gpu.FormatRGBA16F:
		return texFormat{gl.RGBA16F, gl.RGBA, gl.HALF_FLOAT}, nil
	case gpu.FormatDepth24:
		return texFormat{gl.DEPTH_COMPONENT24, gl.DEPTH_COMPONENT, gl.UNSIGNED_INT}, nil
	case gpu.FormatDepth32F:
		return texFormat{gl.DEPTH_COMPONENT32F, gl.DEPTH_COMPONENT, gl.FLOAT}, nil
	}
	return texFormat{}, fmt.Errorf("opengl: unsupported texture format %d", f)
}

func (d *Device) CreateTexture(desc gpu.TextureDesc, pixels []byte) (gpu.Texture, error) {
	if d.lost {
		return 0, gpu.ErrContextLost
	}
	f, err := glFormat(desc.Format)
	if err != nil {
		return 0, err
	}
	if want := int(desc.Width) * int(desc.Height) * desc.Format.BytesPerPixel(); pixels != nil && len(pixels) < want {
		return 0, fmt.Errorf("opengl: texture %q has %d bytes, want %d", desc.Label, len(pixels), want)
	}

	var id uint32
	gl.GenTextures(1, &id)
	gl.ActiveTexture(gl.TEXTURE0 + scratchUnit)
	gl.BindTexture(gl.TEXTURE_2D, id)
	setSampling(desc)

	var data unsafe.Pointer
	if len(pixels) > 0 {
		data = gl.Ptr(pixels)
	}
	gl.TexImage2D(gl.TEXTURE_2D, 0, f.internal, desc.Width, desc.Height, 0, f.format, f.xtype, data)
	if desc.Mipmaps && len(pixels) > 0 {
		gl.GenerateMipmap(gl.TEXTURE_2D)
	}
	gl.BindTexture(gl.TEXTURE_2D, 0)

	if err := d.check("create texture " + desc.Label); err != nil {
		gl.DeleteTextures(1, &id)
		return 0, err
	}
	d.rebind(gpu.Texture(id))
	return gpu.Texture(id), nil
}

func (d *Device) UpdateTexture(t gpu.Texture, desc gpu.TextureDesc, pixels []byte) error {
	if d.lost {
		return gpu.ErrContextLost
	}
	if t == 0 || len(pixels) == 0 {
		return gpu.ErrInvalidHandle
	}
	f, err := glFormat(desc.Format)
	if err != nil {
		return err
	}
	gl.ActiveTexture(gl.TEXTURE0 + scratchUnit)
	gl.BindTexture(gl.TEXTURE_2D, uint32(t))
	setSampling(desc)
	gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, desc.Width, desc.Height, f.format, f.xtype, gl.Ptr(pixels))
	if desc.Mipmaps {
		gl.GenerateMipmap(gl.TEXTURE_2D)
	}
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return d.check("update texture " + desc.Label)
}

func (d *Device) DeleteTexture(t gpu.Texture) {
	if d.lost || t == 0 {
		return
	}
	id := uint32(t)
	gl.DeleteTextures(1, &id)
}

// setSampling configures the texture bound on the active unit.
func setSampling(desc gpu.TextureDesc) {
	magFilter, minFilter := int32(gl.LINEAR), int32(gl.LINEAR)
	if desc.Filter == gpu.FilterNearest {
		magFilter, minFilter = gl.NEAREST, gl.NEAREST
	}
	if desc.Mipmaps {
		minFilter = gl.LINEAR_MIPMAP_LINEAR
		if desc.Filter == gpu.FilterNearest {
			minFilter = gl.NEAREST_MIPMAP_NEAREST
		}
	}
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, minFilter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, magFilter)

	wrap := int32(gl.REPEAT)
	if desc.Wrap == gpu.WrapClamp {
		wrap = gl.CLAMP_TO_EDGE
	}
	if desc.Compare {
		// Outside the shadow map everything is lit.
		wrap = gl.CLAMP_TO_BORDER
		border := [4]float32{1, 1, 1, 1}
		gl.TexParameterfv(gl.TEXTURE_2D, gl.TEXTURE_BORDER_COLOR, &border[0])
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_COMPARE_MODE, gl.COMPARE_REF_TO_TEXTURE)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_COMPARE_FUNC, gl.LEQUAL)
	}
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, wrap)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, wrap)
}
