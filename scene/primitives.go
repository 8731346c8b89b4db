package scene

import (
	"github.com/chewxy/math32"

	"scene-renderer/gpu"
	"scene-renderer/math"
)

type meshBuilder struct {
	positions []math.Vec3
	normals   []math.Vec3
	uvs       []math.Vec2
	indices   []uint32
}

func (b *meshBuilder) vertex(p, n math.Vec3, uv math.Vec2) uint32 {
	b.positions = append(b.positions, p)
	b.normals = append(b.normals, n)
	b.uvs = append(b.uvs, uv)
	return uint32(len(b.positions) - 1)
}

func (b *meshBuilder) build(name string) *Geometry {
	return NewGeometry(name).
		SetPositions(b.positions).
		SetNormals(b.normals).
		SetUVs(b.uvs).
		SetIndices(b.indices)
}

// CreateBox generates an axis-aligned box centred on the origin with
// per-face normals.
func CreateBox(width, height, depth float32) *Geometry {
	hw, hh, hd := width/2, height/2, depth/2
	faces := []struct {
		normal, u, v math.Vec3
		du, dv, dn   float32
	}{
		{math.Vec3Front, math.Vec3Right, math.Vec3Up, hw, hh, hd},
		{math.Vec3Back, math.Vec3Left, math.Vec3Up, hw, hh, hd},
		{math.Vec3Right, math.Vec3Back, math.Vec3Up, hd, hh, hw},
		{math.Vec3Left, math.Vec3Front, math.Vec3Up, hd, hh, hw},
		{math.Vec3Up, math.Vec3Right, math.Vec3Back, hw, hd, hh},
		{math.Vec3Down, math.Vec3Right, math.Vec3Front, hw, hd, hh},
	}

	var b meshBuilder
	for _, f := range faces {
		center := f.normal.Mul(f.dn)
		u := f.u.Mul(f.du)
		v := f.v.Mul(f.dv)
		i0 := b.vertex(center.Sub(u).Sub(v), f.normal, math.Vec2{X: 0, Y: 1})
		i1 := b.vertex(center.Add(u).Sub(v), f.normal, math.Vec2{X: 1, Y: 1})
		i2 := b.vertex(center.Add(u).Add(v), f.normal, math.Vec2{X: 1, Y: 0})
		i3 := b.vertex(center.Sub(u).Add(v), f.normal, math.Vec2{X: 0, Y: 0})
		b.indices = append(b.indices, i0, i1, i2, i0, i2, i3)
	}
	return b.build("Box")
}

// CreateSphere generates a UV-sphere mesh
func CreateSphere(radius float32, segments, rings int) *Geometry {
	segments = max(segments, 3)
	rings = max(rings, 2)

	var b meshBuilder
	for ring := 0; ring <= rings; ring++ {
		phi := float32(ring) * math32.Pi / float32(rings)
		sinPhi, cosPhi := math32.Sincos(phi)

		for seg := 0; seg <= segments; seg++ {
			theta := float32(seg) * 2 * math32.Pi / float32(segments)
			sinTheta, cosTheta := math32.Sincos(theta)

			normal := math.Vec3{X: sinPhi * cosTheta, Y: cosPhi, Z: sinPhi * sinTheta}
			uv := math.Vec2{X: float32(seg) / float32(segments), Y: float32(ring) / float32(rings)}
			b.vertex(normal.Mul(radius), normal, uv)
		}
	}

	for ring := 0; ring < rings; ring++ {
		for seg := 0; seg < segments; seg++ {
			current := uint32(ring*(segments+1) + seg)
			next := current + uint32(segments+1)
			b.indices = append(b.indices, current, current+1, next)
			b.indices = append(b.indices, current+1, next+1, next)
		}
	}
	return b.build("Sphere")
}

// CreatePlane generates a flat plane in XZ facing +Y
func CreatePlane(width, depth float32, subdivisions int) *Geometry {
	subdivisions = max(subdivisions, 1)
	halfW, halfD := width/2, depth/2

	var b meshBuilder
	for z := 0; z <= subdivisions; z++ {
		for x := 0; x <= subdivisions; x++ {
			u := float32(x) / float32(subdivisions)
			v := float32(z) / float32(subdivisions)
			p := math.Vec3{X: -halfW + u*width, Z: -halfD + v*depth}
			b.vertex(p, math.Vec3Up, math.Vec2{X: u, Y: v})
		}
	}

	for z := 0; z < subdivisions; z++ {
		for x := 0; x < subdivisions; x++ {
			topLeft := uint32(z*(subdivisions+1) + x)
			topRight := topLeft + 1
			bottomLeft := topLeft + uint32(subdivisions+1)
			bottomRight := bottomLeft + 1
			b.indices = append(b.indices, topLeft, bottomLeft, topRight)
			b.indices = append(b.indices, topRight, bottomLeft, bottomRight)
		}
	}
	return b.build("Plane")
}

// CreateQuad generates a unit quad in XY facing +Z, used for sprites.
func CreateQuad(width, height float32) *Geometry {
	hw, hh := width/2, height/2
	var b meshBuilder
	b.vertex(math.Vec3{X: -hw, Y: -hh}, math.Vec3Front, math.Vec2{X: 0, Y: 1})
	b.vertex(math.Vec3{X: hw, Y: -hh}, math.Vec3Front, math.Vec2{X: 1, Y: 1})
	b.vertex(math.Vec3{X: hw, Y: hh}, math.Vec3Front, math.Vec2{X: 1, Y: 0})
	b.vertex(math.Vec3{X: -hw, Y: hh}, math.Vec3Front, math.Vec2{X: 0, Y: 0})
	b.indices = []uint32{0, 1, 2, 0, 2, 3}
	return b.build("Quad")
}

// CreatePoints returns a point-cloud geometry.
func CreatePoints(name string, positions []math.Vec3) *Geometry {
	g := NewGeometry(name).SetPositions(positions)
	g.Mode = gpu.Points
	return g
}
