package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"scene-renderer/core"
	"scene-renderer/gpu"
	"scene-renderer/math"
)

func triangle() *Geometry {
	return NewGeometry("tri").SetPositions([]math.Vec3{{X: 0}, {X: 1}, {Y: 1}})
}

func TestGeometrySettersBumpVersion(t *testing.T) {
	g := triangle()
	v := g.Version()

	g.SetNormals([]math.Vec3{math.Vec3Front, math.Vec3Front, math.Vec3Front})
	assert.Greater(t, g.Version(), v)

	v = g.Version()
	g.Positions()[0].X = -1
	g.MarkModified()
	assert.Greater(t, g.Version(), v)
	assert.Equal(t, float32(-1), g.Bounds().Min.X)
}

func TestGeometryLayoutOnlyIncludesCompleteAttributes(t *testing.T) {
	g := triangle()
	assert.Equal(t, gpu.Layout(gpu.AttrPosition), g.Layout())

	g.SetUVs([]math.Vec2{{}, {}})
	assert.False(t, g.Layout().Has(gpu.AttrUV), "partial UVs must be ignored")

	g.SetColors([]core.Color{core.ColorWhite, core.ColorWhite, core.ColorWhite})
	assert.True(t, g.Layout().Has(gpu.AttrColor))
}

func TestGeometryMeshDataInterleaves(t *testing.T) {
	g := triangle().SetColors([]core.Color{{R: 1, A: 1}, {G: 1, A: 1}, {B: 1, A: 1}})
	data := g.MeshData()

	assert.Equal(t, int32(7), data.Layout.Stride())
	assert.Equal(t, 3, data.VertexCount())
	assert.Equal(t, []float32{1, 0, 0, 0, 1, 0, 1, 0, 1}, data.Vertices[7:16])
}

func TestGeometryDegenerate(t *testing.T) {
	assert.True(t, NewGeometry("empty").Degenerate())

	line := NewGeometry("line").SetPositions([]math.Vec3{{X: 0}, {X: 1}, {X: 2}})
	assert.True(t, line.Degenerate(), "colinear triangles have no area")

	twoVerts := NewGeometry("short").SetPositions([]math.Vec3{{X: 0}, {Y: 1}})
	assert.True(t, twoVerts.Degenerate())

	twoVerts.Mode = gpu.Lines
	assert.False(t, twoVerts.Degenerate())

	assert.False(t, triangle().Degenerate())
	assert.False(t, CreateBox(1, 1, 1).Degenerate())
}

func TestGeometryPrimitives(t *testing.T) {
	box := CreateBox(1, 2, 3)
	assert.Equal(t, 12, box.Primitives())
	assert.Equal(t, int32(36), box.DrawCount())
	assert.Equal(t, math.NewVec3(1, 2, 3), box.Bounds().Size())

	grid := CreateGrid(10, 4)
	assert.Equal(t, gpu.Lines, grid.Mode)
	assert.Equal(t, 10, grid.Primitives())
}

func TestTextureReadiness(t *testing.T) {
	pending := NewPendingTexture("later")
	assert.False(t, pending.Ready())
	v := pending.Version()

	pending.SetPixels(1, 1, []byte{1, 2, 3, 4})
	assert.True(t, pending.Ready())
	assert.Greater(t, pending.Version(), v)

	bad := NewTexture("short", 2, 2, []byte{1, 2, 3, 4})
	assert.False(t, bad.Ready())

	// 32768*32768*4 wraps to zero in 32 bits.
	huge := NewTexture("huge", 32768, 32768, nil)
	assert.False(t, huge.Ready())
}
