// Package gpu defines the explicit graphics context every rendering component
// is handed. Nothing in the renderer reaches for a global GL context; the
// OpenGL backend lives in internal/opengl and tests use gpu/gputest.
package gpu

import "scene-renderer/core"

// Handle types. Zero is never a valid resource; Target(0) is the screen.
type (
	Mesh    uint32
	Texture uint32
	Program uint32
	Target  uint32
)

// Screen is the default framebuffer.
const Screen Target = 0

// MaxTextureUnits is the number of sampler units the tracker manages.
const MaxTextureUnits = 16

// Primitive is the topology used by a draw.
type Primitive uint8

const (
	Triangles Primitive = iota
	TriangleStrip
	Lines
	LineStrip
	Points
)

// Device is the low-level graphics API. Resource calls allocate or free GPU
// objects and never disturb the current bindings. State calls mutate the
// bound state and are issued only by the render state tracker.
type Device interface {
	CreateMesh(data MeshData) (Mesh, error)
	// UpdateMesh overwrites the contents of a mesh whose layout and sizes
	// are unchanged.
	UpdateMesh(m Mesh, data MeshData) error
	DeleteMesh(m Mesh)

	CreateTexture(desc TextureDesc, pixels []byte) (Texture, error)
	UpdateTexture(t Texture, desc TextureDesc, pixels []byte) error
	DeleteTexture(t Texture)

	CreateTarget(desc TargetDesc) (Target, Attachments, error)
	DeleteTarget(t Target)

	CompileProgram(label, vertexSrc, fragmentSrc string) (Program, error)
	DeleteProgram(p Program)
	UniformLocation(p Program, name string) int32

	UseProgram(p Program)
	BindTexture(unit int, t Texture)
	SetBlend(b BlendState)
	SetDepth(d DepthState)
	SetCull(c CullMode)
	SetStencil(s StencilState)
	SetPolygonOffset(p PolygonOffset)
	BindTarget(t Target)
	SetViewport(r core.Rect)
	SetUniform(location int32, v Value)
	Clear(opts ClearOptions)
	Draw(m Mesh, prim Primitive, count int32)

	// Status reports ErrContextLost once the context is gone.
	Status() error
}

// Attachments are the sampleable textures owned by a render target.
type Attachments struct {
	Color Texture
	Depth Texture
}

type ClearOptions struct {
	Color        core.Color
	Depth        float32
	Stencil      int32
	ClearColor   bool
	ClearDepth   bool
	ClearStencil bool
}
