package scene

import (
	"github.com/chewxy/math32"

	"scene-renderer/gpu"
	"scene-renderer/math"
)

// Ray is a half-line in world space. Direction is unit length.
type Ray struct {
	Origin    math.Vec3
	Direction math.Vec3
}

func (r Ray) At(t float32) math.Vec3 { return r.Origin.Add(r.Direction.Mul(t)) }

// Hit is the closest triangle a ray struck.
type Hit struct {
	Node     *Node
	Distance float32
	Point    math.Vec3
	Normal   math.Vec3
	Triangle int
}

// ScreenRay returns the ray through pixel (x, y) of a width by height
// viewport, with y growing downwards.
func ScreenRay(v Viewer, x, y, width, height float32) Ray {
	ndcX := 2*x/width - 1
	ndcY := 1 - 2*y/height
	inv := v.ViewMatrix().Mul(v.ProjectionMatrix()).Inverse()
	near := inv.MulVec3(math.Vec3{X: ndcX, Y: ndcY, Z: -1})
	far := inv.MulVec3(math.Vec3{X: ndcX, Y: ndcY, Z: 1})
	return Ray{Origin: near, Direction: far.Sub(near).Normalize()}
}

// Raycast returns the closest visible triangle geometry under root hit by
// ray. Lines and points are never hit.
func Raycast(root *Node, ray Ray) (Hit, bool) {
	best := Hit{Distance: math32.MaxFloat32}
	found := false
	root.Traverse(func(n *Node) bool {
		if !n.Visible {
			return false
		}
		if n.Renderable == nil || n.Renderable.Geometry == nil {
			return true
		}
		g := n.Renderable.Geometry
		if g.Mode != gpu.Triangles || g.Degenerate() {
			return true
		}
		world := n.WorldMatrix()
		if t, ok := ray.intersectAABB(WorldBounds(g, world)); !ok || t > best.Distance {
			return true
		}
		if h, ok := ray.intersectGeometry(g, world); ok && h.Distance < best.Distance {
			h.Node = n
			best = h
			found = true
		}
		return true
	})
	return best, found
}

// intersectAABB is the slab test. It returns the entry distance, or zero
// when the origin is inside the box.
func (r Ray) intersectAABB(box AABB) (float32, bool) {
	tmin, tmax := float32(0), float32(math32.MaxFloat32)
	o := [3]float32{r.Origin.X, r.Origin.Y, r.Origin.Z}
	d := [3]float32{r.Direction.X, r.Direction.Y, r.Direction.Z}
	lo := [3]float32{box.Min.X, box.Min.Y, box.Min.Z}
	hi := [3]float32{box.Max.X, box.Max.Y, box.Max.Z}
	for i := range 3 {
		if d[i] == 0 {
			if o[i] < lo[i] || o[i] > hi[i] {
				return 0, false
			}
			continue
		}
		t1 := (lo[i] - o[i]) / d[i]
		t2 := (hi[i] - o[i]) / d[i]
		tmin = max(tmin, min(t1, t2))
		tmax = min(tmax, max(t1, t2))
		if tmin > tmax {
			return 0, false
		}
	}
	return tmin, true
}

func (r Ray) intersectGeometry(g *Geometry, world math.Mat4) (Hit, bool) {
	pos := g.Positions()
	idx := g.Indices()
	count := len(pos)
	if len(idx) > 0 {
		count = len(idx)
	}
	vertex := func(i int) math.Vec3 {
		if len(idx) > 0 {
			return world.MulVec3(pos[idx[i]])
		}
		return world.MulVec3(pos[i])
	}

	best := Hit{Distance: math32.MaxFloat32}
	found := false
	for i := 0; i+2 < count; i += 3 {
		v0, v1, v2 := vertex(i), vertex(i+1), vertex(i+2)
		t, ok := r.intersectTriangle(v0, v1, v2)
		if !ok || t >= best.Distance {
			continue
		}
		best = Hit{
			Distance: t,
			Point:    r.At(t),
			Normal:   v1.Sub(v0).Cross(v2.Sub(v0)).Normalize(),
			Triangle: i / 3,
		}
		found = true
	}
	return best, found
}

// intersectTriangle is the Möller-Trumbore test; both faces are hit.
func (r Ray) intersectTriangle(v0, v1, v2 math.Vec3) (float32, bool) {
	const eps = 1e-7
	e1 := v1.Sub(v0)
	e2 := v2.Sub(v0)
	h := r.Direction.Cross(e2)
	a := e1.Dot(h)
	if a > -eps && a < eps {
		return 0, false
	}
	f := 1 / a
	s := r.Origin.Sub(v0)
	u := f * s.Dot(h)
	if u < 0 || u > 1 {
		return 0, false
	}
	q := s.Cross(e1)
	v := f * r.Direction.Dot(q)
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t := f * e2.Dot(q)
	return t, t > eps
}
