package scene

import (
	"scene-renderer/core"
	"scene-renderer/gpu"
	"scene-renderer/math"
)

// Geometry is a CPU-side vertex and index description. Every setter bumps
// the version so the resource cache knows to re-upload; code that edits the
// returned slices in place must call MarkModified.
type Geometry struct {
	Name string
	Mode gpu.Primitive

	positions []math.Vec3
	normals   []math.Vec3
	uvs       []math.Vec2
	colors    []core.Color
	joints    [][4]float32
	weights   [][4]float32
	indices   []uint32

	version uint64
	bounds  AABB
}

func NewGeometry(name string) *Geometry {
	return &Geometry{Name: name, Mode: gpu.Triangles, version: 1}
}

func (g *Geometry) Version() uint64 { return g.version }

// MarkModified records an in-place edit of the vertex data.
func (g *Geometry) MarkModified() {
	g.version++
	g.bounds = computeBounds(g.positions)
}

func (g *Geometry) Positions() []math.Vec3 { return g.positions }
func (g *Geometry) Normals() []math.Vec3   { return g.normals }
func (g *Geometry) UVs() []math.Vec2       { return g.uvs }
func (g *Geometry) Colors() []core.Color   { return g.colors }
func (g *Geometry) Joints() [][4]float32   { return g.joints }
func (g *Geometry) Weights() [][4]float32  { return g.weights }
func (g *Geometry) Indices() []uint32      { return g.indices }
func (g *Geometry) Bounds() AABB           { return g.bounds }
func (g *Geometry) VertexCount() int       { return len(g.positions) }
func (g *Geometry) Indexed() bool          { return len(g.indices) > 0 }

func (g *Geometry) SetPositions(p []math.Vec3) *Geometry {
	g.positions = p
	g.MarkModified()
	return g
}

func (g *Geometry) SetNormals(n []math.Vec3) *Geometry {
	g.normals = n
	g.version++
	return g
}

func (g *Geometry) SetUVs(uv []math.Vec2) *Geometry {
	g.uvs = uv
	g.version++
	return g
}

func (g *Geometry) SetColors(c []core.Color) *Geometry {
	g.colors = c
	g.version++
	return g
}

// SetSkinning sets per-vertex joint indices and weights.
func (g *Geometry) SetSkinning(joints, weights [][4]float32) *Geometry {
	g.joints = joints
	g.weights = weights
	g.version++
	return g
}

func (g *Geometry) SetIndices(idx []uint32) *Geometry {
	g.indices = idx
	g.version++
	return g
}

// Layout returns the attributes present for every vertex.
func (g *Geometry) Layout() gpu.Layout {
	n := len(g.positions)
	if n == 0 {
		return 0
	}
	l := gpu.Layout(gpu.AttrPosition)
	if len(g.normals) == n {
		l |= gpu.Layout(gpu.AttrNormal)
	}
	if len(g.uvs) == n {
		l |= gpu.Layout(gpu.AttrUV)
	}
	if len(g.colors) == n {
		l |= gpu.Layout(gpu.AttrColor)
	}
	if len(g.joints) == n && len(g.weights) == n {
		l |= gpu.Layout(gpu.AttrJoints) | gpu.Layout(gpu.AttrWeights)
	}
	return l
}

// HasSkinning reports whether joint data is present for every vertex.
func (g *Geometry) HasSkinning() bool {
	return g.Layout().Has(gpu.AttrJoints)
}

// DrawCount is the number of elements a draw of this geometry submits.
func (g *Geometry) DrawCount() int32 {
	if g.Indexed() {
		return int32(len(g.indices))
	}
	return int32(len(g.positions))
}

// Primitives returns the number of triangles, lines or points drawn.
func (g *Geometry) Primitives() int {
	n := int(g.DrawCount())
	switch g.Mode {
	case gpu.Triangles:
		return n / 3
	case gpu.TriangleStrip:
		return max(n-2, 0)
	case gpu.Lines:
		return n / 2
	case gpu.LineStrip:
		return max(n-1, 0)
	}
	return n
}

// Degenerate reports geometry that cannot produce a visible primitive:
// nothing to draw, too few elements for the mode, or triangles with no area.
func (g *Geometry) Degenerate() bool {
	if len(g.positions) == 0 {
		return true
	}
	if g.Primitives() == 0 {
		return true
	}
	if g.Mode == gpu.Triangles || g.Mode == gpu.TriangleStrip {
		size := g.bounds.Size()
		flat := 0
		for _, s := range [3]float32{size.X, size.Y, size.Z} {
			if s == 0 {
				flat++
			}
		}
		return flat >= 2
	}
	return false
}

// MeshData interleaves the vertex attributes in Layout order.
func (g *Geometry) MeshData() gpu.MeshData {
	layout := g.Layout()
	stride := int(layout.Stride())
	verts := make([]float32, 0, stride*len(g.positions))
	for i, p := range g.positions {
		verts = append(verts, p.X, p.Y, p.Z)
		if layout.Has(gpu.AttrNormal) {
			n := g.normals[i]
			verts = append(verts, n.X, n.Y, n.Z)
		}
		if layout.Has(gpu.AttrUV) {
			uv := g.uvs[i]
			verts = append(verts, uv.X, uv.Y)
		}
		if layout.Has(gpu.AttrColor) {
			c := g.colors[i]
			verts = append(verts, c.R, c.G, c.B, c.A)
		}
		if layout.Has(gpu.AttrJoints) {
			verts = append(verts, g.joints[i][:]...)
			verts = append(verts, g.weights[i][:]...)
		}
	}
	return gpu.MeshData{
		Label:    g.Name,
		Layout:   layout,
		Vertices: verts,
		Indices:  g.indices,
	}
}

func computeBounds(positions []math.Vec3) AABB {
	if len(positions) == 0 {
		return AABB{}
	}
	box := AABB{Min: positions[0], Max: positions[0]}
	for _, p := range positions[1:] {
		box.Min = box.Min.Min(p)
		box.Max = box.Max.Max(p)
	}
	return box
}
