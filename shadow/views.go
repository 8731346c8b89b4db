package shadow

import (
	"github.com/chewxy/math32"

	"scene-renderer/math"
	"scene-renderer/scene"
)

// lightView is the camera a shadow face is rendered from. It satisfies
// scene.Viewer so the draw list builder can cull and sort against it.
type lightView struct {
	view, proj math.Mat4
	eye        math.Vec3
	near, far  float32
}

func (v lightView) ViewMatrix() math.Mat4         { return v.view }
func (v lightView) ProjectionMatrix() math.Mat4   { return v.proj }
func (v lightView) EyePosition() math.Vec3        { return v.eye }
func (v lightView) ClipRange() (float32, float32) { return v.near, v.far }
func (v lightView) matrix() math.Mat4             { return v.view.Mul(v.proj) }

var _ scene.Viewer = lightView{}

// cubeFaces are the point light face directions and up vectors in the
// order the lighting shader selects them.
var cubeFaces = [6]struct{ dir, up math.Vec3 }{
	{math.Vec3Right, math.Vec3Down},
	{math.Vec3Left, math.Vec3Down},
	{math.Vec3Up, math.Vec3Front},
	{math.Vec3Down, math.Vec3Back},
	{math.Vec3Front, math.Vec3Down},
	{math.Vec3Back, math.Vec3Down},
}

const (
	minNear = 0.05
	// minSpotFOV keeps a zero-width cone from producing an infinite
	// projection.
	minSpotFOV = 0.01
	// depthMargin pads the fitted directional volume so casters just
	// outside the receivers' bounds still land in the map.
	depthMargin = 1
	// defaultRange bounds point and spot maps for lights without a range.
	defaultRange = 100
)

// directionalView fits an orthographic volume around bounds as seen along
// dir.
func directionalView(dir math.Vec3, bounds scene.AABB) lightView {
	center := bounds.Center()
	radius := bounds.Size().Length()/2 + depthMargin
	eye := center.Sub(dir.Mul(radius))
	view := math.Mat4LookAt(eye, center, math.Vec3Up)

	first := true
	var lo, hi math.Vec3
	for _, c := range bounds.Corners() {
		p := view.MulVec3(c)
		if first {
			lo, hi = p, p
			first = false
			continue
		}
		lo = lo.Min(p)
		hi = hi.Max(p)
	}
	// View space looks down -Z: the nearest corner has the largest z.
	near := -hi.Z - depthMargin
	far := -lo.Z + depthMargin
	return lightView{
		view: view,
		proj: math.Mat4Orthographic(lo.X, hi.X, lo.Y, hi.Y, near, far),
		eye:  eye,
		near: near,
		far:  far,
	}
}

func fallbackBounds(center math.Vec3, halfExtent float32) scene.AABB {
	h := math.Vec3{X: halfExtent, Y: halfExtent, Z: halfExtent}
	return scene.AABB{Min: center.Sub(h), Max: center.Add(h)}
}

func lightFar(l *scene.Light) float32 {
	if l.Range > 0 {
		return l.Range
	}
	return defaultRange
}

// spotView covers the outer cone with a small margin.
func spotView(pos, dir math.Vec3, l *scene.Light) lightView {
	fov := math32.Max(math32.Min(2*l.OuterCone*1.05, math32.Pi*0.95), minSpotFOV)
	far := lightFar(l)
	return lightView{
		view: math.Mat4LookAt(pos, pos.Add(dir), math.Vec3Up),
		proj: math.Mat4Perspective(fov, 1, minNear, far),
		eye:  pos,
		near: minNear,
		far:  far,
	}
}

func pointView(pos math.Vec3, face int, l *scene.Light) lightView {
	f := cubeFaces[face]
	far := lightFar(l)
	return lightView{
		view: math.Mat4LookAt(pos, pos.Add(f.dir), f.up),
		proj: math.Mat4Perspective(math32.Pi/2, 1, minNear, far),
		eye:  pos,
		near: minNear,
		far:  far,
	}
}
