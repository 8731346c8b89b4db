// Package gputest provides a recording gpu.Device for tests. It tracks every
// call, mirrors the state actually bound on the "GPU" and supports injected
// allocation failures, compile failures and context loss.
package gputest

import (
	"fmt"

	"scene-renderer/core"
	"scene-renderer/gpu"
)

// Operation names recorded in Device.Calls.
const (
	OpCreateMesh       = "CreateMesh"
	OpUpdateMesh       = "UpdateMesh"
	OpDeleteMesh       = "DeleteMesh"
	OpCreateTexture    = "CreateTexture"
	OpUpdateTexture    = "UpdateTexture"
	OpDeleteTexture    = "DeleteTexture"
	OpCreateTarget     = "CreateTarget"
	OpDeleteTarget     = "DeleteTarget"
	OpCompileProgram   = "CompileProgram"
	OpDeleteProgram    = "DeleteProgram"
	OpUseProgram       = "UseProgram"
	OpBindTexture      = "BindTexture"
	OpSetBlend         = "SetBlend"
	OpSetDepth         = "SetDepth"
	OpSetCull          = "SetCull"
	OpSetStencil       = "SetStencil"
	OpSetPolygonOffset = "SetPolygonOffset"
	OpBindTarget       = "BindTarget"
	OpSetViewport      = "SetViewport"
	OpSetUniform       = "SetUniform"
	OpClear            = "Clear"
	OpDraw             = "Draw"
)

type Call struct {
	Op   string
	Args []any
}

// State is what is actually bound on the fake GPU.
type State struct {
	Program  gpu.Program
	Textures [gpu.MaxTextureUnits]gpu.Texture
	Render   gpu.RenderState
	Target   gpu.Target
	Viewport core.Rect
}

// DrawRecord captures everything bound when Draw was issued.
type DrawRecord struct {
	Mesh      gpu.Mesh
	Primitive gpu.Primitive
	Count     int32
	State     State
	Uniforms  map[string]gpu.Value
}

type ProgramSource struct {
	Label    string
	Vertex   string
	Fragment string
}

type Device struct {
	Calls []Call
	Draws []DrawRecord
	State State

	// InvalidUses counts state calls and draws that referenced a handle
	// the device does not know, such as one from before a context loss.
	InvalidUses int

	// FailAlloc, when set, fails mesh/texture/target allocations whose
	// label it returns true for.
	FailAlloc func(label string) bool
	// FailCompile, when set, fails program compilation for matching labels.
	FailCompile func(label string) bool

	next      uint32
	lost      bool
	meshes    map[gpu.Mesh]gpu.MeshData
	textures  map[gpu.Texture]gpu.TextureDesc
	pixels    map[gpu.Texture][]byte
	targets   map[gpu.Target]gpu.Attachments
	programs  map[gpu.Program]ProgramSource
	locations map[gpu.Program]map[string]int32
	uniforms  map[gpu.Program]map[int32]gpu.Value
}

func New() *Device {
	d := &Device{}
	d.clearResources()
	return d
}

var _ gpu.Device = (*Device)(nil)

func (d *Device) clearResources() {
	d.meshes = make(map[gpu.Mesh]gpu.MeshData)
	d.textures = make(map[gpu.Texture]gpu.TextureDesc)
	d.pixels = make(map[gpu.Texture][]byte)
	d.targets = make(map[gpu.Target]gpu.Attachments)
	d.programs = make(map[gpu.Program]ProgramSource)
	d.locations = make(map[gpu.Program]map[string]int32)
	d.uniforms = make(map[gpu.Program]map[int32]gpu.Value)
	d.State = State{}
}

func (d *Device) record(op string, args ...any) {
	d.Calls = append(d.Calls, Call{Op: op, Args: args})
}

func (d *Device) handle() uint32 {
	d.next++
	return d.next
}

// Count returns how many times op was called since the last ResetCalls.
func (d *Device) Count(op string) int {
	n := 0
	for _, c := range d.Calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// ResetCalls forgets recorded calls and draws but keeps resources and state.
func (d *Device) ResetCalls() {
	d.Calls = nil
	d.Draws = nil
}

// Lose simulates a context loss. Every handle becomes invalid and all calls
// fail or do nothing until Restore.
func (d *Device) Lose() {
	d.lost = true
}

// Restore brings up a fresh context with no resources and default state.
func (d *Device) Restore() {
	d.lost = false
	d.clearResources()
}

func (d *Device) Lost() bool { return d.lost }

func (d *Device) Status() error {
	if d.lost {
		return gpu.ErrContextLost
	}
	return nil
}

func (d *Device) allocError(label string) error {
	if d.lost {
		return gpu.ErrContextLost
	}
	if d.FailAlloc != nil && d.FailAlloc(label) {
		return fmt.Errorf("%w: %s", gpu.ErrOutOfMemory, label)
	}
	return nil
}

func (d *Device) CreateMesh(data gpu.MeshData) (gpu.Mesh, error) {
	d.record(OpCreateMesh, data.Label)
	if err := d.allocError(data.Label); err != nil {
		return 0, err
	}
	m := gpu.Mesh(d.handle())
	d.meshes[m] = cloneMesh(data)
	return m, nil
}

func (d *Device) UpdateMesh(m gpu.Mesh, data gpu.MeshData) error {
	d.record(OpUpdateMesh, m, data.Label)
	if d.lost {
		return gpu.ErrContextLost
	}
	old, ok := d.meshes[m]
	if !ok {
		return gpu.ErrInvalidHandle
	}
	if old.Signature() != data.Signature() {
		return fmt.Errorf("gputest: UpdateMesh changes mesh size or layout")
	}
	d.meshes[m] = cloneMesh(data)
	return nil
}

func (d *Device) DeleteMesh(m gpu.Mesh) {
	d.record(OpDeleteMesh, m)
	if d.lost {
		return
	}
	if _, ok := d.meshes[m]; !ok {
		d.InvalidUses++
		return
	}
	delete(d.meshes, m)
}

func (d *Device) CreateTexture(desc gpu.TextureDesc, pixels []byte) (gpu.Texture, error) {
	d.record(OpCreateTexture, desc.Label)
	if err := d.allocError(desc.Label); err != nil {
		return 0, err
	}
	t := gpu.Texture(d.handle())
	d.textures[t] = desc
	d.pixels[t] = append([]byte(nil), pixels...)
	return t, nil
}

func (d *Device) UpdateTexture(t gpu.Texture, desc gpu.TextureDesc, pixels []byte) error {
	d.record(OpUpdateTexture, t, desc.Label)
	if d.lost {
		return gpu.ErrContextLost
	}
	old, ok := d.textures[t]
	if !ok {
		return gpu.ErrInvalidHandle
	}
	if !old.SameStorage(desc) {
		return fmt.Errorf("gputest: UpdateTexture changes texture storage")
	}
	d.textures[t] = desc
	d.pixels[t] = append([]byte(nil), pixels...)
	return nil
}

func (d *Device) DeleteTexture(t gpu.Texture) {
	d.record(OpDeleteTexture, t)
	if d.lost {
		return
	}
	if _, ok := d.textures[t]; !ok {
		d.InvalidUses++
		return
	}
	delete(d.textures, t)
	delete(d.pixels, t)
}

func (d *Device) CreateTarget(desc gpu.TargetDesc) (gpu.Target, gpu.Attachments, error) {
	d.record(OpCreateTarget, desc.Label)
	if err := d.allocError(desc.Label); err != nil {
		return 0, gpu.Attachments{}, err
	}
	target := gpu.Target(d.handle())
	var att gpu.Attachments
	if desc.Color != gpu.FormatNone {
		att.Color = gpu.Texture(d.handle())
		d.textures[att.Color] = gpu.TextureDesc{Label: desc.Label + ".color", Width: desc.Width, Height: desc.Height, Format: desc.Color}
	}
	if desc.Depth != gpu.FormatNone {
		att.Depth = gpu.Texture(d.handle())
		d.textures[att.Depth] = gpu.TextureDesc{Label: desc.Label + ".depth", Width: desc.Width, Height: desc.Height, Format: desc.Depth, Compare: desc.Compare}
	}
	d.targets[target] = att
	return target, att, nil
}

func (d *Device) DeleteTarget(t gpu.Target) {
	d.record(OpDeleteTarget, t)
	if d.lost {
		return
	}
	att, ok := d.targets[t]
	if !ok {
		d.InvalidUses++
		return
	}
	delete(d.textures, att.Color)
	delete(d.textures, att.Depth)
	delete(d.targets, t)
}

func (d *Device) CompileProgram(label, vertexSrc, fragmentSrc string) (gpu.Program, error) {
	d.record(OpCompileProgram, label)
	if d.lost {
		return 0, gpu.ErrContextLost
	}
	if d.FailCompile != nil && d.FailCompile(label) {
		return 0, &gpu.CompileError{Stage: "link", Log: "injected failure for " + label}
	}
	p := gpu.Program(d.handle())
	d.programs[p] = ProgramSource{Label: label, Vertex: vertexSrc, Fragment: fragmentSrc}
	d.locations[p] = make(map[string]int32)
	d.uniforms[p] = make(map[int32]gpu.Value)
	return p, nil
}

func (d *Device) DeleteProgram(p gpu.Program) {
	d.record(OpDeleteProgram, p)
	if d.lost {
		return
	}
	if _, ok := d.programs[p]; !ok {
		d.InvalidUses++
		return
	}
	delete(d.programs, p)
	delete(d.locations, p)
	delete(d.uniforms, p)
}

// UniformLocation assigns locations on first lookup, like a driver would
// after linking.
func (d *Device) UniformLocation(p gpu.Program, name string) int32 {
	locs, ok := d.locations[p]
	if !ok || d.lost {
		return -1
	}
	if loc, ok := locs[name]; ok {
		return loc
	}
	loc := int32(len(locs))
	locs[name] = loc
	return loc
}

func (d *Device) UseProgram(p gpu.Program) {
	d.record(OpUseProgram, p)
	if d.lost {
		return
	}
	if _, ok := d.programs[p]; !ok && p != 0 {
		d.InvalidUses++
	}
	d.State.Program = p
}

func (d *Device) BindTexture(unit int, t gpu.Texture) {
	d.record(OpBindTexture, unit, t)
	if d.lost {
		return
	}
	if _, ok := d.textures[t]; !ok && t != 0 {
		d.InvalidUses++
	}
	d.State.Textures[unit] = t
}

func (d *Device) SetBlend(b gpu.BlendState) {
	d.record(OpSetBlend, b)
	d.State.Render.Blend = b
}

func (d *Device) SetDepth(s gpu.DepthState) {
	d.record(OpSetDepth, s)
	d.State.Render.Depth = s
}

func (d *Device) SetCull(c gpu.CullMode) {
	d.record(OpSetCull, c)
	d.State.Render.Cull = c
}

func (d *Device) SetStencil(s gpu.StencilState) {
	d.record(OpSetStencil, s)
	d.State.Render.Stencil = s
}

func (d *Device) SetPolygonOffset(p gpu.PolygonOffset) {
	d.record(OpSetPolygonOffset, p)
	d.State.Render.PolygonOffset = p
}

func (d *Device) BindTarget(t gpu.Target) {
	d.record(OpBindTarget, t)
	if d.lost {
		return
	}
	if _, ok := d.targets[t]; !ok && t != gpu.Screen {
		d.InvalidUses++
	}
	d.State.Target = t
}

func (d *Device) SetViewport(r core.Rect) {
	d.record(OpSetViewport, r)
	d.State.Viewport = r
}

func (d *Device) SetUniform(location int32, v gpu.Value) {
	d.record(OpSetUniform, location, v)
	if d.lost || location < 0 {
		return
	}
	u, ok := d.uniforms[d.State.Program]
	if !ok {
		d.InvalidUses++
		return
	}
	u[location] = v
}

func (d *Device) Clear(opts gpu.ClearOptions) {
	d.record(OpClear, opts)
}

func (d *Device) Draw(m gpu.Mesh, prim gpu.Primitive, count int32) {
	d.record(OpDraw, m, count)
	if d.lost {
		return
	}
	_, meshOK := d.meshes[m]
	_, progOK := d.programs[d.State.Program]
	if !meshOK || !progOK {
		d.InvalidUses++
	}
	d.Draws = append(d.Draws, DrawRecord{
		Mesh:      m,
		Primitive: prim,
		Count:     count,
		State:     d.State,
		Uniforms:  d.namedUniforms(d.State.Program),
	})
}

func (d *Device) namedUniforms(p gpu.Program) map[string]gpu.Value {
	out := make(map[string]gpu.Value)
	for name, loc := range d.locations[p] {
		if v, ok := d.uniforms[p][loc]; ok {
			out[name] = v
		}
	}
	return out
}

// Mesh returns the data currently stored in m.
func (d *Device) Mesh(m gpu.Mesh) (gpu.MeshData, bool) {
	data, ok := d.meshes[m]
	return data, ok
}

// Texture returns the description and pixels currently stored in t.
func (d *Device) Texture(t gpu.Texture) (gpu.TextureDesc, []byte, bool) {
	desc, ok := d.textures[t]
	return desc, d.pixels[t], ok
}

func (d *Device) ProgramSource(p gpu.Program) (ProgramSource, bool) {
	src, ok := d.programs[p]
	return src, ok
}

// Uniform returns the value last set for name on program p.
func (d *Device) Uniform(p gpu.Program, name string) (gpu.Value, bool) {
	loc, ok := d.locations[p][name]
	if !ok {
		return gpu.Value{}, false
	}
	v, ok := d.uniforms[p][loc]
	return v, ok
}

// Live returns the number of live meshes, textures, programs and targets.
// Target attachments are counted as textures.
func (d *Device) Live() (meshes, textures, programs, targets int) {
	return len(d.meshes), len(d.textures), len(d.programs), len(d.targets)
}

func cloneMesh(data gpu.MeshData) gpu.MeshData {
	data.Vertices = append([]float32(nil), data.Vertices...)
	data.Indices = append([]uint32(nil), data.Indices...)
	return data
}
