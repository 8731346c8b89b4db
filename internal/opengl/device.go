// Package opengl implements gpu.Device on an OpenGL 4.1 core context. Every
// method must be called on the thread the context is current on.
package opengl

import (
	"fmt"
	"log/slog"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"scene-renderer/core"
	"scene-renderer/gpu"
	"scene-renderer/internal/logging"
)

// scratchUnit is the texture unit resource uploads bind through. It sits
// past the units the state tracker manages so uploads never disturb them.
const scratchUnit = gpu.MaxTextureUnits

type glMesh struct {
	vao, vbo, ebo uint32
	indexed       bool
}

// Device is the OpenGL backend.
type Device struct {
	log *slog.Logger

	meshes  map[gpu.Mesh]*glMesh
	targets map[gpu.Target]gpu.Attachments

	// units and target hold what the state calls last asked for. GL drops a
	// binding when its object is deleted and recycles names, so a new object
	// that reuses a requested name is bound again on creation. That keeps GL
	// in step with the state tracker, which only knows about handles.
	units  [scratchUnit]gpu.Texture
	target gpu.Target
	lost   bool
}

var _ gpu.Device = (*Device)(nil)

// New loads the GL function pointers. The window's context must be current.
func New(log *slog.Logger) (*Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	d := &Device{log: logging.Component(log, "opengl")}
	d.reset()

	var units int32
	gl.GetIntegerv(gl.MAX_COMBINED_TEXTURE_IMAGE_UNITS, &units)
	if units <= scratchUnit {
		return nil, fmt.Errorf("opengl: %d texture units, need %d", units, scratchUnit+1)
	}
	gl.Enable(gl.PROGRAM_POINT_SIZE)

	d.log.Info("OpenGL ready",
		slog.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		slog.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
		slog.Int("texture_units", int(units)))
	return d, nil
}

func (d *Device) reset() {
	d.meshes = make(map[gpu.Mesh]*glMesh)
	d.targets = make(map[gpu.Target]gpu.Attachments)
	d.units = [scratchUnit]gpu.Texture{}
	d.target = gpu.Screen
}

// MarkLost records that the context is gone. OpenGL 4.1 has no robustness
// query, so the host reports loss, typically when it has to recreate the
// window.
func (d *Device) MarkLost() { d.lost = true }

// Restore forgets every handle of the old context. Call it once a new
// context is current.
func (d *Device) Restore() {
	d.reset()
	d.lost = false
	gl.Enable(gl.PROGRAM_POINT_SIZE)
	d.log.Info("OpenGL context restored")
}

func (d *Device) Status() error {
	if d.lost {
		return gpu.ErrContextLost
	}
	return nil
}

// check drains the GL error queue and maps allocation failures.
func (d *Device) check(what string) error {
	var first uint32
	for e := gl.GetError(); e != gl.NO_ERROR; e = gl.GetError() {
		if first == 0 {
			first = e
		}
	}
	switch first {
	case 0:
		return nil
	case gl.OUT_OF_MEMORY:
		return fmt.Errorf("%w: %s", gpu.ErrOutOfMemory, what)
	default:
		return fmt.Errorf("opengl: %s: error 0x%X", what, first)
	}
}

func (d *Device) UseProgram(p gpu.Program) { gl.UseProgram(uint32(p)) }

func (d *Device) BindTexture(unit int, t gpu.Texture) {
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
	gl.BindTexture(gl.TEXTURE_2D, uint32(t))
	if unit < len(d.units) {
		d.units[unit] = t
	}
}

// rebind restores t on every unit that asked for its name.
func (d *Device) rebind(t gpu.Texture) {
	for unit, want := range d.units {
		if want == t {
			gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
			gl.BindTexture(gl.TEXTURE_2D, uint32(t))
		}
	}
}

func (d *Device) BindTarget(t gpu.Target) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, uint32(t))
	d.target = t
}

func (d *Device) SetViewport(r core.Rect) {
	gl.Viewport(r.X, r.Y, r.Width, r.Height)
}

func (d *Device) SetUniform(loc int32, v gpu.Value) {
	switch v.Kind {
	case gpu.ValueInt:
		gl.Uniform1i(loc, v.I)
	case gpu.ValueFloat:
		gl.Uniform1f(loc, v.F[0])
	case gpu.ValueVec2:
		gl.Uniform2f(loc, v.F[0], v.F[1])
	case gpu.ValueVec3:
		gl.Uniform3f(loc, v.F[0], v.F[1], v.F[2])
	case gpu.ValueVec4:
		gl.Uniform4f(loc, v.F[0], v.F[1], v.F[2], v.F[3])
	case gpu.ValueMat4:
		// Row-major storage of row-vector matrices is the column-major
		// layout GLSL expects for column vectors.
		gl.UniformMatrix4fv(loc, 1, false, &v.F[0])
	}
}

func (d *Device) Clear(opts gpu.ClearOptions) {
	var mask uint32
	if opts.ClearColor {
		c := opts.Color
		gl.ClearColor(c.R, c.G, c.B, c.A)
		mask |= gl.COLOR_BUFFER_BIT
	}
	if opts.ClearDepth {
		gl.ClearDepth(float64(opts.Depth))
		mask |= gl.DEPTH_BUFFER_BIT
	}
	if opts.ClearStencil {
		gl.ClearStencil(opts.Stencil)
		mask |= gl.STENCIL_BUFFER_BIT
	}
	if mask != 0 {
		gl.Clear(mask)
	}
}

func (d *Device) Draw(m gpu.Mesh, prim gpu.Primitive, count int32) {
	mesh, ok := d.meshes[m]
	if !ok || count <= 0 {
		return
	}
	gl.BindVertexArray(mesh.vao)
	if mesh.indexed {
		gl.DrawElements(primitive(prim), count, gl.UNSIGNED_INT, nil)
	} else {
		gl.DrawArrays(primitive(prim), 0, count)
	}
	gl.BindVertexArray(0)
}

func primitive(p gpu.Primitive) uint32 {
	switch p {
	case gpu.TriangleStrip:
		return gl.TRIANGLE_STRIP
	case gpu.Lines:
		return gl.LINES
	case gpu.LineStrip:
		return gl.LINE_STRIP
	case gpu.Points:
		return gl.POINTS
	}
	return gl.TRIANGLES
}
