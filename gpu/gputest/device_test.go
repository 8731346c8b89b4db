package gputest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scene-renderer/gpu"
)

func TestHandlesAreUniqueAcrossRestore(t *testing.T) {
	d := New()
	m1, err := d.CreateMesh(gpu.MeshData{Label: "a"})
	require.NoError(t, err)

	d.Lose()
	_, err = d.CreateMesh(gpu.MeshData{Label: "b"})
	assert.ErrorIs(t, err, gpu.ErrContextLost)
	assert.ErrorIs(t, d.Status(), gpu.ErrContextLost)

	d.Restore()
	require.NoError(t, d.Status())
	m2, err := d.CreateMesh(gpu.MeshData{Label: "b"})
	require.NoError(t, err)
	assert.NotEqual(t, m1, m2)

	_, ok := d.Mesh(m1)
	assert.False(t, ok, "mesh from the lost context should be gone")
}

func TestFailAllocInjection(t *testing.T) {
	d := New()
	d.FailAlloc = func(label string) bool { return label == "huge" }

	_, err := d.CreateTexture(gpu.TextureDesc{Label: "huge"}, nil)
	assert.True(t, errors.Is(err, gpu.ErrOutOfMemory))

	_, err = d.CreateTexture(gpu.TextureDesc{Label: "small"}, nil)
	assert.NoError(t, err)
}

func TestFailCompileInjection(t *testing.T) {
	d := New()
	d.FailCompile = func(string) bool { return true }

	_, err := d.CompileProgram("x", "", "")
	var ce *gpu.CompileError
	assert.ErrorAs(t, err, &ce)
}

func TestDrawCapturesBoundState(t *testing.T) {
	d := New()
	p, _ := d.CompileProgram("p", "v", "f")
	m, _ := d.CreateMesh(gpu.MeshData{Label: "m"})

	d.UseProgram(p)
	d.SetUniform(d.UniformLocation(p, "uColor"), gpu.Float(2))
	d.Draw(m, gpu.Triangles, 3)

	require.Len(t, d.Draws, 1)
	assert.Equal(t, p, d.Draws[0].State.Program)
	assert.Equal(t, gpu.Float(2), d.Draws[0].Uniforms["uColor"])
	assert.Zero(t, d.InvalidUses)
	assert.Equal(t, 1, d.Count(OpDraw))
}

func TestStaleHandlesAreCounted(t *testing.T) {
	d := New()
	m, _ := d.CreateMesh(gpu.MeshData{Label: "m"})
	d.Lose()
	d.Restore()

	d.Draw(m, gpu.Triangles, 3)
	assert.Equal(t, 1, d.InvalidUses)
}

func TestUpdateMeshRejectsResize(t *testing.T) {
	d := New()
	layout := gpu.Layout(gpu.AttrPosition)
	m, _ := d.CreateMesh(gpu.MeshData{Layout: layout, Vertices: make([]float32, 3)})

	assert.NoError(t, d.UpdateMesh(m, gpu.MeshData{Layout: layout, Vertices: []float32{1, 2, 3}}))
	assert.Error(t, d.UpdateMesh(m, gpu.MeshData{Layout: layout, Vertices: make([]float32, 6)}))

	data, _ := d.Mesh(m)
	assert.Equal(t, []float32{1, 2, 3}, data.Vertices)
}

func TestCreateTargetAllocatesAttachments(t *testing.T) {
	d := New()
	target, att, err := d.CreateTarget(gpu.TargetDesc{Label: "shadow", Width: 4, Height: 4, Depth: gpu.FormatDepth24})
	require.NoError(t, err)
	assert.NotZero(t, target)
	assert.Zero(t, att.Color)
	assert.NotZero(t, att.Depth)

	_, textures, _, targets := d.Live()
	assert.Equal(t, 1, textures)
	assert.Equal(t, 1, targets)

	d.DeleteTarget(target)
	_, textures, _, targets = d.Live()
	assert.Zero(t, textures)
	assert.Zero(t, targets)
}
