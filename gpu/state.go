package gpu

type BlendFactor uint8

const (
	BlendOne BlendFactor = iota
	BlendZero
	BlendSrcAlpha
	BlendOneMinusSrcAlpha
	BlendDstColor
	BlendOneMinusDstColor
)

type BlendEquation uint8

const (
	BlendAdd BlendEquation = iota
	BlendSubtract
	BlendReverseSubtract
)

type BlendState struct {
	Enabled  bool
	Equation BlendEquation
	Src      BlendFactor
	Dst      BlendFactor
	SrcAlpha BlendFactor
	DstAlpha BlendFactor
}

var (
	BlendDisabled = BlendState{}
	BlendAlpha    = BlendState{
		Enabled:  true,
		Equation: BlendAdd,
		Src:      BlendSrcAlpha,
		Dst:      BlendOneMinusSrcAlpha,
		SrcAlpha: BlendOne,
		DstAlpha: BlendOneMinusSrcAlpha,
	}
	BlendAdditive = BlendState{
		Enabled:  true,
		Equation: BlendAdd,
		Src:      BlendSrcAlpha,
		Dst:      BlendOne,
		SrcAlpha: BlendOne,
		DstAlpha: BlendOne,
	}
)

type CompareFunc uint8

const (
	CompareLess CompareFunc = iota
	CompareLessEqual
	CompareEqual
	CompareGreater
	CompareGreaterEqual
	CompareNotEqual
	CompareAlways
	CompareNever
)

type DepthState struct {
	Test  bool
	Write bool
	Func  CompareFunc
}

type CullMode uint8

const (
	CullBack CullMode = iota
	CullFront
	CullNone
)

type StencilOp uint8

const (
	StencilKeep StencilOp = iota
	StencilZero
	StencilReplace
	StencilIncr
	StencilDecr
	StencilInvert
)

type StencilState struct {
	Enabled   bool
	Func      CompareFunc
	Ref       int32
	ReadMask  uint32
	WriteMask uint32
	Fail      StencilOp
	DepthFail StencilOp
	Pass      StencilOp
}

type PolygonOffset struct {
	Enabled bool
	Factor  float32
	Units   float32
}

// RenderState is the fixed-function state a material requests. It is
// comparable so the tracker can diff it field by field.
type RenderState struct {
	Blend         BlendState
	Depth         DepthState
	Cull          CullMode
	Stencil       StencilState
	PolygonOffset PolygonOffset
}

// Transparent reports whether the state requests blending.
func (s RenderState) Transparent() bool {
	return s.Blend.Enabled
}

// OpaqueState tests and writes depth with back-face culling.
func OpaqueState() RenderState {
	return RenderState{
		Blend: BlendDisabled,
		Depth: DepthState{Test: true, Write: true, Func: CompareLess},
		Cull:  CullBack,
	}
}

// TransparentState alpha-blends, tests depth without writing and draws both faces.
func TransparentState() RenderState {
	return RenderState{
		Blend: BlendAlpha,
		Depth: DepthState{Test: true, Write: false, Func: CompareLess},
		Cull:  CullNone,
	}
}

// AdditiveState adds color on top of the target.
func AdditiveState() RenderState {
	s := TransparentState()
	s.Blend = BlendAdditive
	return s
}

// FullscreenState is used for post-processing quads.
func FullscreenState() RenderState {
	return RenderState{
		Blend: BlendDisabled,
		Depth: DepthState{Test: false, Write: false, Func: CompareAlways},
		Cull:  CullNone,
	}
}
