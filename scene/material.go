package scene

import (
	"fmt"
	"strings"

	"scene-renderer/core"
	"scene-renderer/gpu"
	"scene-renderer/math"
)

// Kind is the shading model a material selects.
type Kind uint8

const (
	KindUnlit Kind = iota
	KindLambert
	KindPhong
	KindPBR
	KindLine
	KindPoint
	KindSprite
	KindCustom
	// KindDepth is the depth-only variant used by shadow passes. No
	// material carries it.
	KindDepth
)

var kindNames = [...]string{"unlit", "lambert", "phong", "pbr", "line", "point", "sprite", "custom", "depth"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Lit reports whether the kind consumes scene lights.
func (k Kind) Lit() bool {
	return k == KindLambert || k == KindPhong || k == KindPBR
}

// Flags is the set of optional shader features a draw needs. Together with
// Kind it is the shader variant key.
type Flags uint16

const (
	FlagAlbedoMap Flags = 1 << iota
	FlagNormalMap
	FlagMetallicRoughnessMap
	FlagEmissiveMap
	FlagVertexColor
	FlagSkinning
	FlagReceiveShadows
	FlagAlphaTest
	FlagFog
)

var flagNames = [...]string{"ALBEDO_MAP", "NORMAL_MAP", "METALLIC_ROUGHNESS_MAP", "EMISSIVE_MAP", "VERTEX_COLOR", "SKINNING", "RECEIVE_SHADOWS", "ALPHA_TEST", "FOG"}

func (f Flags) Has(flag Flags) bool { return f&flag != 0 }

// Defines returns the preprocessor names of the set flags in bit order.
func (f Flags) Defines() []string {
	var out []string
	for i, name := range flagNames {
		if f&(1<<i) != 0 {
			out = append(out, name)
		}
	}
	return out
}

func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	return strings.Join(f.Defines(), "|")
}

// TextureSlot binds a texture to a sampler uniform.
type TextureSlot struct {
	Sampler string
	Texture *Texture
}

// Params is the per-kind payload of a material. The set of implementations
// is closed; every method is a pure function of the payload.
type Params interface {
	Kind() Kind
	Flags() Flags
	// AppendUniforms appends the material's uniform values to dst.
	AppendUniforms(dst []gpu.Uniform) []gpu.Uniform
	Textures() []TextureSlot
	sealed()
}

// Surface holds options shared by most kinds.
type Surface struct {
	VertexColors bool
	// AlphaCutoff discards fragments with alpha below it when > 0.
	AlphaCutoff float32
	Fog         bool
}

func (s Surface) flags() Flags {
	var f Flags
	if s.VertexColors {
		f |= FlagVertexColor
	}
	if s.AlphaCutoff > 0 {
		f |= FlagAlphaTest
	}
	if s.Fog {
		f |= FlagFog
	}
	return f
}

func (s Surface) uniforms(dst []gpu.Uniform) []gpu.Uniform {
	if s.AlphaCutoff > 0 {
		dst = append(dst, gpu.Uniform{Name: "uAlphaCutoff", Value: gpu.Float(s.AlphaCutoff)})
	}
	return dst
}

func mapFlag(t *Texture, f Flags) Flags {
	if t != nil {
		return f
	}
	return 0
}

func appendSlot(dst []TextureSlot, sampler string, t *Texture) []TextureSlot {
	if t != nil {
		dst = append(dst, TextureSlot{Sampler: sampler, Texture: t})
	}
	return dst
}

func colorUniform(name string, c core.Color) gpu.Uniform {
	return gpu.Uniform{Name: name, Value: gpu.Vec4(c.Vec4())}
}

type UnlitParams struct {
	Surface
	Color core.Color
	Map   *Texture
}

func (UnlitParams) Kind() Kind { return KindUnlit }
func (UnlitParams) sealed()    {}

func (p UnlitParams) Flags() Flags {
	return p.Surface.flags() | mapFlag(p.Map, FlagAlbedoMap)
}

func (p UnlitParams) AppendUniforms(dst []gpu.Uniform) []gpu.Uniform {
	return p.Surface.uniforms(append(dst, colorUniform("uColor", p.Color)))
}

func (p UnlitParams) Textures() []TextureSlot {
	return appendSlot(nil, "uAlbedoMap", p.Map)
}

type LambertParams struct {
	Surface
	Color       core.Color
	Emissive    core.Color
	Map         *Texture
	EmissiveMap *Texture
}

func (LambertParams) Kind() Kind { return KindLambert }
func (LambertParams) sealed()    {}

func (p LambertParams) Flags() Flags {
	return p.Surface.flags() | mapFlag(p.Map, FlagAlbedoMap) | mapFlag(p.EmissiveMap, FlagEmissiveMap)
}

func (p LambertParams) AppendUniforms(dst []gpu.Uniform) []gpu.Uniform {
	dst = append(dst, colorUniform("uColor", p.Color), colorUniform("uEmissive", p.Emissive))
	return p.Surface.uniforms(dst)
}

func (p LambertParams) Textures() []TextureSlot {
	return appendSlot(appendSlot(nil, "uAlbedoMap", p.Map), "uEmissiveMap", p.EmissiveMap)
}

type PhongParams struct {
	Surface
	Color       core.Color
	Specular    core.Color
	Emissive    core.Color
	Shininess   float32
	Map         *Texture
	NormalMap   *Texture
	EmissiveMap *Texture
}

func (PhongParams) Kind() Kind { return KindPhong }
func (PhongParams) sealed()    {}

func (p PhongParams) Flags() Flags {
	return p.Surface.flags() |
		mapFlag(p.Map, FlagAlbedoMap) |
		mapFlag(p.NormalMap, FlagNormalMap) |
		mapFlag(p.EmissiveMap, FlagEmissiveMap)
}

func (p PhongParams) AppendUniforms(dst []gpu.Uniform) []gpu.Uniform {
	dst = append(dst,
		colorUniform("uColor", p.Color),
		colorUniform("uSpecular", p.Specular),
		colorUniform("uEmissive", p.Emissive),
		gpu.Uniform{Name: "uShininess", Value: gpu.Float(p.Shininess)},
	)
	return p.Surface.uniforms(dst)
}

func (p PhongParams) Textures() []TextureSlot {
	slots := appendSlot(nil, "uAlbedoMap", p.Map)
	slots = appendSlot(slots, "uNormalMap", p.NormalMap)
	return appendSlot(slots, "uEmissiveMap", p.EmissiveMap)
}

// PBRParams is a metallic-roughness surface.
type PBRParams struct {
	Surface
	BaseColor            core.Color
	Metallic             float32
	Roughness            float32
	Emissive             core.Color
	BaseColorMap         *Texture
	NormalMap            *Texture
	MetallicRoughnessMap *Texture
	EmissiveMap          *Texture
}

func (PBRParams) Kind() Kind { return KindPBR }
func (PBRParams) sealed()    {}

func (p PBRParams) Flags() Flags {
	return p.Surface.flags() |
		mapFlag(p.BaseColorMap, FlagAlbedoMap) |
		mapFlag(p.NormalMap, FlagNormalMap) |
		mapFlag(p.MetallicRoughnessMap, FlagMetallicRoughnessMap) |
		mapFlag(p.EmissiveMap, FlagEmissiveMap)
}

func (p PBRParams) AppendUniforms(dst []gpu.Uniform) []gpu.Uniform {
	dst = append(dst,
		colorUniform("uColor", p.BaseColor),
		colorUniform("uEmissive", p.Emissive),
		gpu.Uniform{Name: "uMetallic", Value: gpu.Float(p.Metallic)},
		gpu.Uniform{Name: "uRoughness", Value: gpu.Float(p.Roughness)},
	)
	return p.Surface.uniforms(dst)
}

func (p PBRParams) Textures() []TextureSlot {
	slots := appendSlot(nil, "uAlbedoMap", p.BaseColorMap)
	slots = appendSlot(slots, "uNormalMap", p.NormalMap)
	slots = appendSlot(slots, "uMetallicRoughnessMap", p.MetallicRoughnessMap)
	return appendSlot(slots, "uEmissiveMap", p.EmissiveMap)
}

type LineParams struct {
	Color        core.Color
	VertexColors bool
}

func (LineParams) Kind() Kind { return KindLine }
func (LineParams) sealed()    {}

func (p LineParams) Flags() Flags {
	if p.VertexColors {
		return FlagVertexColor
	}
	return 0
}

func (p LineParams) AppendUniforms(dst []gpu.Uniform) []gpu.Uniform {
	return append(dst, colorUniform("uColor", p.Color))
}

func (LineParams) Textures() []TextureSlot { return nil }

type PointParams struct {
	Surface
	Color core.Color
	Size  float32
	// SizeAttenuation shrinks points with distance.
	SizeAttenuation bool
	Map             *Texture
}

func (PointParams) Kind() Kind { return KindPoint }
func (PointParams) sealed()    {}

func (p PointParams) Flags() Flags {
	return p.Surface.flags() | mapFlag(p.Map, FlagAlbedoMap)
}

func (p PointParams) AppendUniforms(dst []gpu.Uniform) []gpu.Uniform {
	dst = append(dst,
		colorUniform("uColor", p.Color),
		gpu.Uniform{Name: "uPointSize", Value: gpu.Float(p.Size)},
		gpu.Uniform{Name: "uSizeAttenuation", Value: gpu.Bool(p.SizeAttenuation)},
	)
	return p.Surface.uniforms(dst)
}

func (p PointParams) Textures() []TextureSlot {
	return appendSlot(nil, "uAlbedoMap", p.Map)
}

// SpriteParams draws a camera-facing quad.
type SpriteParams struct {
	Surface
	Color    core.Color
	Map      *Texture
	Rotation float32
}

func (SpriteParams) Kind() Kind { return KindSprite }
func (SpriteParams) sealed()    {}

func (p SpriteParams) Flags() Flags {
	return p.Surface.flags() | mapFlag(p.Map, FlagAlbedoMap)
}

func (p SpriteParams) AppendUniforms(dst []gpu.Uniform) []gpu.Uniform {
	dst = append(dst,
		colorUniform("uColor", p.Color),
		gpu.Uniform{Name: "uRotation", Value: gpu.Float(p.Rotation)},
	)
	return p.Surface.uniforms(dst)
}

func (p SpriteParams) Textures() []TextureSlot {
	return appendSlot(nil, "uAlbedoMap", p.Map)
}

// CustomShader is user-supplied GLSL. Programs are cached by the pointer,
// so share one CustomShader between materials that should share a program.
type CustomShader struct {
	Name     string
	Vertex   string
	Fragment string
}

type CustomParams struct {
	Shader   *CustomShader
	Values   []gpu.Uniform
	Samplers []TextureSlot
}

func (CustomParams) Kind() Kind   { return KindCustom }
func (CustomParams) Flags() Flags { return 0 }
func (CustomParams) sealed()      {}

func (p CustomParams) AppendUniforms(dst []gpu.Uniform) []gpu.Uniform {
	return append(dst, p.Values...)
}

func (p CustomParams) Textures() []TextureSlot { return p.Samplers }

// Material is what a renderable is drawn with: a kind-specific payload plus
// the fixed-function state it requests. The renderer treats it as read-only.
type Material struct {
	Name   string
	State  gpu.RenderState
	Params Params
}

// NewMaterial returns an opaque material.
func NewMaterial(name string, params Params) *Material {
	return &Material{Name: name, State: gpu.OpaqueState(), Params: params}
}

// NewTransparentMaterial returns an alpha-blended material.
func NewTransparentMaterial(name string, params Params) *Material {
	return &Material{Name: name, State: gpu.TransparentState(), Params: params}
}

// NewAdditiveMaterial returns an additively blended material.
func NewAdditiveMaterial(name string, params Params) *Material {
	return &Material{Name: name, State: gpu.AdditiveState(), Params: params}
}

// DefaultMaterial returns a plain white matte Lambert material.
func DefaultMaterial() *Material {
	return NewMaterial("Default", LambertParams{Color: core.ColorWhite})
}

func (m *Material) Kind() Kind {
	if m.Params == nil {
		return KindUnlit
	}
	return m.Params.Kind()
}

func (m *Material) Flags() Flags {
	if m.Params == nil {
		return 0
	}
	return m.Params.Flags()
}

func (m *Material) Transparent() bool {
	return m.State.Transparent()
}

// Custom returns the custom shader, or nil for built-in kinds.
func (m *Material) Custom() *CustomShader {
	if p, ok := m.Params.(CustomParams); ok {
		return p.Shader
	}
	return nil
}

// AlphaCutoff returns the material's alpha-test threshold, or 0.
func (m *Material) AlphaCutoff() float32 {
	switch p := m.Params.(type) {
	case UnlitParams:
		return p.AlphaCutoff
	case LambertParams:
		return p.AlphaCutoff
	case PhongParams:
		return p.AlphaCutoff
	case PBRParams:
		return p.AlphaCutoff
	case PointParams:
		return p.AlphaCutoff
	case SpriteParams:
		return p.AlphaCutoff
	}
	return 0
}

// AlbedoMap returns the base color texture, used by alpha-tested shadow casters.
func (m *Material) AlbedoMap() *Texture {
	if m.Params == nil {
		return nil
	}
	for _, s := range m.Params.Textures() {
		if s.Sampler == "uAlbedoMap" {
			return s.Texture
		}
	}
	return nil
}

// BaseColor returns the material color as a vector for depth passes.
func (m *Material) BaseColor() math.Vec4 {
	switch p := m.Params.(type) {
	case UnlitParams:
		return p.Color.Vec4()
	case LambertParams:
		return p.Color.Vec4()
	case PhongParams:
		return p.Color.Vec4()
	case PBRParams:
		return p.BaseColor.Vec4()
	case PointParams:
		return p.Color.Vec4()
	case SpriteParams:
		return p.Color.Vec4()
	case LineParams:
		return p.Color.Vec4()
	}
	return math.Vec4{X: 1, Y: 1, Z: 1, W: 1}
}
