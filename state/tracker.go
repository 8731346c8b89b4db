// Package state shadows the GPU's bound state and emits a device call only
// when the requested value differs from what is already bound. Every
// state-mutating device call in the renderer goes through a Tracker.
package state

import (
	"errors"

	"scene-renderer/core"
	"scene-renderer/gpu"
)

// ErrNoProgram is returned when a uniform is set before a program is bound.
var ErrNoProgram = errors.New("state: uniform set with no program bound")

// Counters count the device calls a tracker emitted and skipped.
type Counters struct {
	ProgramBinds   uint64
	TextureBinds   uint64
	TargetBinds    uint64
	StateChanges   uint64
	UniformUploads uint64
	UniformSkips   uint64
	Clears         uint64
	Draws          uint64
	Triangles      uint64
}

func (c Counters) Sub(earlier Counters) Counters {
	return Counters{
		ProgramBinds:   c.ProgramBinds - earlier.ProgramBinds,
		TextureBinds:   c.TextureBinds - earlier.TextureBinds,
		TargetBinds:    c.TargetBinds - earlier.TargetBinds,
		StateChanges:   c.StateChanges - earlier.StateChanges,
		UniformUploads: c.UniformUploads - earlier.UniformUploads,
		UniformSkips:   c.UniformSkips - earlier.UniformSkips,
		Clears:         c.Clears - earlier.Clears,
		Draws:          c.Draws - earlier.Draws,
		Triangles:      c.Triangles - earlier.Triangles,
	}
}

// Snapshot is the tracker's belief about what is bound.
type Snapshot struct {
	Program  gpu.Program
	Textures [gpu.MaxTextureUnits]gpu.Texture
	Render   gpu.RenderState
	Target   gpu.Target
	Viewport core.Rect
}

// axis is one tracked value plus whether it is known at all. An unknown
// axis always emits on the next request.
type axis[T comparable] struct {
	value T
	known bool
}

// set reports whether v must be sent to the device and records it.
func (a *axis[T]) set(v T) bool {
	if a.known && a.value == v {
		return false
	}
	a.value = v
	a.known = true
	return true
}

type Tracker struct {
	dev gpu.Device

	program  axis[gpu.Program]
	textures [gpu.MaxTextureUnits]axis[gpu.Texture]
	blend    axis[gpu.BlendState]
	depth    axis[gpu.DepthState]
	cull     axis[gpu.CullMode]
	stencil  axis[gpu.StencilState]
	offset   axis[gpu.PolygonOffset]
	target   axis[gpu.Target]
	viewport axis[core.Rect]

	// uniforms holds the last value sent per location, per program. GL keeps
	// uniform values in the program object, so they survive rebinding.
	uniforms map[gpu.Program]map[int32]gpu.Value

	counters Counters
}

// New returns a tracker with every axis unknown.
func New(dev gpu.Device) *Tracker {
	return &Tracker{dev: dev, uniforms: make(map[gpu.Program]map[int32]gpu.Value)}
}

// Reset forgets everything the tracker believes, so the next request on
// every axis reaches the device. Used after context loss or an abandoned
// frame.
func (t *Tracker) Reset() {
	t.program = axis[gpu.Program]{}
	t.textures = [gpu.MaxTextureUnits]axis[gpu.Texture]{}
	t.blend = axis[gpu.BlendState]{}
	t.depth = axis[gpu.DepthState]{}
	t.cull = axis[gpu.CullMode]{}
	t.stencil = axis[gpu.StencilState]{}
	t.offset = axis[gpu.PolygonOffset]{}
	t.target = axis[gpu.Target]{}
	t.viewport = axis[core.Rect]{}
	clear(t.uniforms)
}

// Apply brings blend, depth, cull, stencil and polygon offset to rs.
func (t *Tracker) Apply(rs gpu.RenderState) {
	if t.blend.set(rs.Blend) {
		t.dev.SetBlend(rs.Blend)
		t.counters.StateChanges++
	}
	t.setDepth(rs.Depth)
	if t.cull.set(rs.Cull) {
		t.dev.SetCull(rs.Cull)
		t.counters.StateChanges++
	}
	if t.stencil.set(rs.Stencil) {
		t.dev.SetStencil(rs.Stencil)
		t.counters.StateChanges++
	}
	if t.offset.set(rs.PolygonOffset) {
		t.dev.SetPolygonOffset(rs.PolygonOffset)
		t.counters.StateChanges++
	}
}

func (t *Tracker) setDepth(d gpu.DepthState) {
	if t.depth.set(d) {
		t.dev.SetDepth(d)
		t.counters.StateChanges++
	}
}

func (t *Tracker) UseProgram(p gpu.Program) {
	if t.program.set(p) {
		t.dev.UseProgram(p)
		t.counters.ProgramBinds++
	}
}

func (t *Tracker) BindTexture(unit int, tex gpu.Texture) {
	if unit < 0 || unit >= gpu.MaxTextureUnits {
		return
	}
	if t.textures[unit].set(tex) {
		t.dev.BindTexture(unit, tex)
		t.counters.TextureBinds++
	}
}

func (t *Tracker) BindTarget(target gpu.Target) {
	if t.target.set(target) {
		t.dev.BindTarget(target)
		t.counters.TargetBinds++
	}
}

func (t *Tracker) SetViewport(r core.Rect) {
	if t.viewport.set(r) {
		t.dev.SetViewport(r)
		t.counters.StateChanges++
	}
}

// SetUniform sets a uniform of the bound program. Negative locations are
// ignored, matching GL.
func (t *Tracker) SetUniform(location int32, v gpu.Value) error {
	if !t.program.known || t.program.value == 0 {
		return ErrNoProgram
	}
	if location < 0 {
		return nil
	}
	p := t.program.value
	values, ok := t.uniforms[p]
	if !ok {
		values = make(map[int32]gpu.Value)
		t.uniforms[p] = values
	}
	if old, ok := values[location]; ok && old == v {
		t.counters.UniformSkips++
		return nil
	}
	values[location] = v
	t.dev.SetUniform(location, v)
	t.counters.UniformUploads++
	return nil
}

// ForgetProgram drops the cached uniform values of a deleted program.
func (t *Tracker) ForgetProgram(p gpu.Program) {
	delete(t.uniforms, p)
	if t.program.known && t.program.value == p {
		t.program = axis[gpu.Program]{}
	}
}

// Clear clears the bound target. Depth clears honour the depth write mask,
// so writes are switched on first when needed.
func (t *Tracker) Clear(opts gpu.ClearOptions) {
	if opts.ClearDepth && !(t.depth.known && t.depth.value.Write) {
		d := t.depth.value
		if !t.depth.known {
			d = gpu.DepthState{Test: true, Func: gpu.CompareLess}
		}
		d.Write = true
		t.setDepth(d)
	}
	t.dev.Clear(opts)
	t.counters.Clears++
}

func (t *Tracker) Draw(m gpu.Mesh, prim gpu.Primitive, count int32) {
	t.dev.Draw(m, prim, count)
	t.counters.Draws++
	t.counters.Triangles += triangles(prim, count)
}

func triangles(prim gpu.Primitive, count int32) uint64 {
	switch prim {
	case gpu.Triangles:
		return uint64(count / 3)
	case gpu.TriangleStrip:
		if count >= 3 {
			return uint64(count - 2)
		}
	}
	return 0
}

func (t *Tracker) Counters() Counters { return t.counters }

// Snapshot returns the believed state. Unknown axes report zero values.
func (t *Tracker) Snapshot() Snapshot {
	s := Snapshot{
		Program:  t.program.value,
		Target:   t.target.value,
		Viewport: t.viewport.value,
		Render: gpu.RenderState{
			Blend:         t.blend.value,
			Depth:         t.depth.value,
			Cull:          t.cull.value,
			Stencil:       t.stencil.value,
			PolygonOffset: t.offset.value,
		},
	}
	for i := range t.textures {
		s.Textures[i] = t.textures[i].value
	}
	return s
}
