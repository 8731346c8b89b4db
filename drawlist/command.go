// Package drawlist turns a scene graph into the ordered draw commands of
// one camera (or one shadow view) and executes them through a state
// tracker.
package drawlist

import (
	"scene-renderer/gpu"
	"scene-renderer/math"
	"scene-renderer/scene"
	"scene-renderer/shader"
)

// Pass selects which variant of the list is built.
type Pass uint8

const (
	// PassMain draws with each material's own program and state.
	PassMain Pass = iota
	// PassDepth draws shadow casters with depth-only programs.
	PassDepth
)

func (p Pass) String() string {
	if p == PassDepth {
		return "depth"
	}
	return "main"
}

// TransparentPolicy decides how blended materials take part in a depth pass.
type TransparentPolicy uint8

const (
	// TransparentSkip leaves blended casters out of depth passes.
	TransparentSkip TransparentPolicy = iota
	// TransparentAlphaTest renders blended casters with an alpha-tested
	// depth program.
	TransparentAlphaTest
)

// DefaultAlphaCutoff is used for alpha-tested casters whose material has
// no cutoff of its own.
const DefaultAlphaCutoff = 0.5

// TextureBinding is a texture bound to a unit for one draw.
type TextureBinding struct {
	Unit    int
	Texture gpu.Texture
}

// Command is one resolved draw. Commands are immutable once built and only
// live for the frame.
type Command struct {
	Node      *scene.Node
	Mesh      gpu.Mesh
	Program   *shader.Program
	Textures  []TextureBinding
	Uniforms  []gpu.Uniform
	State     gpu.RenderState
	Primitive gpu.Primitive
	Count     int32
	// Depth is the distance from the eye to the world bounds centre.
	Depth float32
}

// Frame is the data every command of a list shares: camera matrices,
// lights and shadow maps. It is sent once per program, not per draw.
type Frame struct {
	View       math.Mat4
	Projection math.Mat4
	Eye        math.Vec3
	Uniforms   []gpu.Uniform
	Textures   []TextureBinding
}

// Failure is a renderable dropped because one of its resources could not
// be created.
type Failure struct {
	Node *scene.Node
	Err  error
}

// List is the output of Build.
type List struct {
	Pass        Pass
	Frame       Frame
	Opaque      []Command
	Transparent []Command
	// Lights are collected during the same traversal that finds the
	// renderables.
	Lights []scene.WorldLight

	Culled   int
	Skipped  int
	Failures []Failure
}

// Commands returns the draw order: opaque front-to-back grouped by program
// and mesh, then transparent back-to-front.
func (l *List) Commands() []Command {
	out := make([]Command, 0, len(l.Opaque)+len(l.Transparent))
	out = append(out, l.Opaque...)
	return append(out, l.Transparent...)
}

// Len is the number of commands.
func (l *List) Len() int { return len(l.Opaque) + len(l.Transparent) }
