package opengl

import (
	gl "github.com/go-gl/gl/v4.1-core/gl"

	"scene-renderer/gpu"
)

func enable(c uint32, on bool) {
	if on {
		gl.Enable(c)
	} else {
		gl.Disable(c)
	}
}

func (d *Device) SetBlend(b gpu.BlendState) {
	enable(gl.BLEND, b.Enabled)
	if !b.Enabled {
		return
	}
	gl.BlendEquation(blendEquation(b.Equation))
	gl.BlendFuncSeparate(blendFactor(b.Src), blendFactor(b.Dst), blendFactor(b.SrcAlpha), blendFactor(b.DstAlpha))
}

func (d *Device) SetDepth(s gpu.DepthState) {
	enable(gl.DEPTH_TEST, s.Test)
	gl.DepthMask(s.Write)
	gl.DepthFunc(compareFunc(s.Func))
}

func (d *Device) SetCull(c gpu.CullMode) {
	switch c {
	case gpu.CullNone:
		gl.Disable(gl.CULL_FACE)
	case gpu.CullFront:
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.FRONT)
	default:
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.BACK)
	}
}

func (d *Device) SetStencil(s gpu.StencilState) {
	enable(gl.STENCIL_TEST, s.Enabled)
	gl.StencilMask(stencilWriteMask(s))
	if !s.Enabled {
		return
	}
	gl.StencilFunc(compareFunc(s.Func), s.Ref, s.ReadMask)
	gl.StencilOp(stencilOp(s.Fail), stencilOp(s.DepthFail), stencilOp(s.Pass))
}

func (d *Device) SetPolygonOffset(p gpu.PolygonOffset) {
	enable(gl.POLYGON_OFFSET_FILL, p.Enabled)
	if p.Enabled {
		gl.PolygonOffset(p.Factor, p.Units)
	}
}

// stencilWriteMask is the mask to leave in place. A disabled stencil test
// still masks glClear, so it gets every bit back.
func stencilWriteMask(s gpu.StencilState) uint32 {
	if !s.Enabled {
		return 0xFF
	}
	return s.WriteMask
}

func blendEquation(e gpu.BlendEquation) uint32 {
	switch e {
	case gpu.BlendSubtract:
		return gl.FUNC_SUBTRACT
	case gpu.BlendReverseSubtract:
		return gl.FUNC_REVERSE_SUBTRACT
	}
	return gl.FUNC_ADD
}

func blendFactor(f gpu.BlendFactor) uint32 {
	switch f {
	case gpu.BlendZero:
		return gl.ZERO
	case gpu.BlendSrcAlpha:
		return gl.SRC_ALPHA
	case gpu.BlendOneMinusSrcAlpha:
		return gl.ONE_MINUS_SRC_ALPHA
	case gpu.BlendDstColor:
		return gl.DST_COLOR
	case gpu.BlendOneMinusDstColor:
		return gl.ONE_MINUS_DST_COLOR
	}
	return gl.ONE
}

func compareFunc(f gpu.CompareFunc) uint32 {
	switch f {
	case gpu.CompareLessEqual:
		return gl.LEQUAL
	case gpu.CompareEqual:
		return gl.EQUAL
	case gpu.CompareGreater:
		return gl.GREATER
	case gpu.CompareGreaterEqual:
		return gl.GEQUAL
	case gpu.CompareNotEqual:
		return gl.NOTEQUAL
	case gpu.CompareAlways:
		return gl.ALWAYS
	case gpu.CompareNever:
		return gl.NEVER
	}
	return gl.LESS
}

func stencilOp(op gpu.StencilOp) uint32 {
	switch op {
	case gpu.StencilZero:
		return gl.ZERO
	case gpu.StencilReplace:
		return gl.REPLACE
	case gpu.StencilIncr:
		return gl.INCR
	case gpu.StencilDecr:
		return gl.DECR
	case gpu.StencilInvert:
		return gl.INVERT
	}
	return gl.KEEP
}
