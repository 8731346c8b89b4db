package opengl

import (
	"fmt"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"scene-renderer/gpu"
)

// CreateTarget builds a framebuffer with sampleable attachments. The
// framebuffer bound through BindTarget is bound again before returning.
func (d *Device) CreateTarget(desc gpu.TargetDesc) (gpu.Target, gpu.Attachments, error) {
	if d.lost {
		return 0, gpu.Attachments{}, gpu.ErrContextLost
	}
	var att gpu.Attachments
	free := func() {
		d.DeleteTexture(att.Color)
		d.DeleteTexture(att.Depth)
	}

	if desc.Color != gpu.FormatNone {
		t, err := d.CreateTexture(gpu.TextureDesc{
			Label:  desc.Label + ".color",
			Width:  desc.Width,
			Height: desc.Height,
			Format: desc.Color,
			Filter: desc.Filter,
			Wrap:   gpu.WrapClamp,
		}, nil)
		if err != nil {
			return 0, att, err
		}
		att.Color = t
	}
	if desc.Depth != gpu.FormatNone {
		t, err := d.CreateTexture(gpu.TextureDesc{
			Label:   desc.Label + ".depth",
			Width:   desc.Width,
			Height:  desc.Height,
			Format:  desc.Depth,
			Filter:  desc.Filter,
			Wrap:    gpu.WrapClamp,
			Compare: desc.Compare,
		}, nil)
		if err != nil {
			free()
			return 0, gpu.Attachments{}, err
		}
		att.Depth = t
	}

	var fbo uint32
	gl.GenFramebuffers(1, &fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, fbo)
	if att.Color != 0 {
		gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, uint32(att.Color), 0)
	} else {
		gl.DrawBuffer(gl.NONE)
		gl.ReadBuffer(gl.NONE)
	}
	if att.Depth != 0 {
		gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.TEXTURE_2D, uint32(att.Depth), 0)
	}
	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	if _, live := d.targets[d.target]; live || d.target == gpu.Screen || d.target == gpu.Target(fbo) {
		gl.BindFramebuffer(gl.FRAMEBUFFER, uint32(d.target))
	} else {
		gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	}

	if status != gl.FRAMEBUFFER_COMPLETE {
		gl.DeleteFramebuffers(1, &fbo)
		free()
		return 0, gpu.Attachments{}, fmt.Errorf("opengl: target %q incomplete: status=0x%X", desc.Label, status)
	}
	if err := d.check("create target " + desc.Label); err != nil {
		gl.DeleteFramebuffers(1, &fbo)
		free()
		return 0, gpu.Attachments{}, err
	}
	h := gpu.Target(fbo)
	d.targets[h] = att
	return h, att, nil
}

func (d *Device) DeleteTarget(t gpu.Target) {
	att, ok := d.targets[t]
	if !ok {
		return
	}
	delete(d.targets, t)
	if d.lost {
		return
	}
	fbo := uint32(t)
	gl.DeleteFramebuffers(1, &fbo)
	d.DeleteTexture(att.Color)
	d.DeleteTexture(att.Depth)
}
