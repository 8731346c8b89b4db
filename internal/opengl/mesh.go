package opengl

import (
	"fmt"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"scene-renderer/gpu"
)

func (d *Device) CreateMesh(data gpu.MeshData) (gpu.Mesh, error) {
	if d.lost {
		return 0, gpu.ErrContextLost
	}
	if len(data.Vertices) == 0 {
		return 0, fmt.Errorf("opengl: mesh %q has no vertices", data.Label)
	}
	m := &glMesh{indexed: len(data.Indices) > 0}

	gl.GenVertexArrays(1, &m.vao)
	gl.GenBuffers(1, &m.vbo)
	gl.BindVertexArray(m.vao)

	gl.BindBuffer(gl.ARRAY_BUFFER, m.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(data.Vertices)*4, gl.Ptr(data.Vertices), gl.STATIC_DRAW)

	stride := data.Layout.Stride() * 4
	for _, a := range data.Layout.Attributes() {
		loc := a.Location()
		gl.EnableVertexAttribArray(loc)
		gl.VertexAttribPointerWithOffset(loc, a.Size(), gl.FLOAT, false, stride, uintptr(data.Layout.Offset(a)*4))
	}

	if m.indexed {
		gl.GenBuffers(1, &m.ebo)
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, m.ebo)
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(data.Indices)*4, gl.Ptr(data.Indices), gl.STATIC_DRAW)
	}
	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)

	if err := d.check("create mesh " + data.Label); err != nil {
		d.deleteMesh(m)
		return 0, err
	}
	h := gpu.Mesh(m.vao)
	d.meshes[h] = m
	return h, nil
}

// UpdateMesh rewrites the buffers in place; the caller guarantees the
// signature is unchanged.
func (d *Device) UpdateMesh(h gpu.Mesh, data gpu.MeshData) error {
	if d.lost {
		return gpu.ErrContextLost
	}
	m, ok := d.meshes[h]
	if !ok {
		return gpu.ErrInvalidHandle
	}
	if m.indexed != (len(data.Indices) > 0) {
		return fmt.Errorf("opengl: mesh %q changed between indexed and non-indexed", data.Label)
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, m.vbo)
	gl.BufferSubData(gl.ARRAY_BUFFER, 0, len(data.Vertices)*4, gl.Ptr(data.Vertices))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	if m.indexed {
		// The element buffer binding is VAO state.
		gl.BindVertexArray(m.vao)
		gl.BufferSubData(gl.ELEMENT_ARRAY_BUFFER, 0, len(data.Indices)*4, gl.Ptr(data.Indices))
		gl.BindVertexArray(0)
	}
	return d.check("update mesh " + data.Label)
}

func (d *Device) DeleteMesh(h gpu.Mesh) {
	m, ok := d.meshes[h]
	if !ok {
		return
	}
	delete(d.meshes, h)
	if !d.lost {
		d.deleteMesh(m)
	}
}

func (d *Device) deleteMesh(m *glMesh) {
	if m.ebo != 0 {
		gl.DeleteBuffers(1, &m.ebo)
	}
	if m.vbo != 0 {
		gl.DeleteBuffers(1, &m.vbo)
	}
	if m.vao != 0 {
		gl.DeleteVertexArrays(1, &m.vao)
	}
}
