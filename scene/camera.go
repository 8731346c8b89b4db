package scene

import (
	"github.com/chewxy/math32"

	"scene-renderer/math"
)

// Viewer is what the renderer needs from a camera. It is read once per frame.
type Viewer interface {
	ViewMatrix() math.Mat4
	ProjectionMatrix() math.Mat4
	EyePosition() math.Vec3
	ClipRange() (near, far float32)
}

// Camera is a perspective camera looking down its local -Z axis.
type Camera struct {
	Position    math.Vec3
	Rotation    math.Quaternion
	FOV         float32
	AspectRatio float32
	NearPlane   float32
	FarPlane    float32

	viewMatrix       math.Mat4
	projectionMatrix math.Mat4
	dirty            bool
}

var _ Viewer = (*Camera)(nil)

func NewCamera(fov, aspectRatio, nearPlane, farPlane float32) *Camera {
	return &Camera{
		Position:    math.Vec3Zero,
		Rotation:    math.QuaternionIdentity(),
		FOV:         fov,
		AspectRatio: aspectRatio,
		NearPlane:   nearPlane,
		FarPlane:    farPlane,
		dirty:       true,
	}
}

func (c *Camera) UpdateAspectRatio(width, height float32) {
	if height > 0 {
		c.AspectRatio = width / height
		c.dirty = true
	}
}

func (c *Camera) SetPosition(pos math.Vec3) {
	c.Position = pos
	c.dirty = true
}

func (c *Camera) SetRotation(rot math.Quaternion) {
	c.Rotation = rot
	c.dirty = true
}

func (c *Camera) LookAt(target, up math.Vec3) {
	c.Rotation = lookRotation(c.Position, target, up)
	c.dirty = true
}

func (c *Camera) ViewMatrix() math.Mat4 {
	if c.dirty {
		c.updateMatrices()
	}
	return c.viewMatrix
}

func (c *Camera) ProjectionMatrix() math.Mat4 {
	if c.dirty {
		c.updateMatrices()
	}
	return c.projectionMatrix
}

func (c *Camera) EyePosition() math.Vec3 { return c.Position }

func (c *Camera) ClipRange() (float32, float32) { return c.NearPlane, c.FarPlane }

func (c *Camera) Forward() math.Vec3 {
	return c.Rotation.RotateVector(math.Vec3Back)
}

func (c *Camera) updateMatrices() {
	// The view is the inverse of the camera's rigid transform.
	c.viewMatrix = math.Mat4Translation(c.Position.Negate()).Mul(c.Rotation.Conjugate().ToMat4())
	c.projectionMatrix = math.Mat4Perspective(c.FOV, c.AspectRatio, c.NearPlane, c.FarPlane)
	c.dirty = false
}

// OrthoCamera is an orthographic camera with an explicit view volume.
type OrthoCamera struct {
	Position                 math.Vec3
	Rotation                 math.Quaternion
	Left, Right, Bottom, Top float32
	NearPlane, FarPlane      float32
}

var _ Viewer = (*OrthoCamera)(nil)

func NewOrthoCamera(halfWidth, halfHeight, near, far float32) *OrthoCamera {
	return &OrthoCamera{
		Rotation:  math.QuaternionIdentity(),
		Left:      -halfWidth,
		Right:     halfWidth,
		Bottom:    -halfHeight,
		Top:       halfHeight,
		NearPlane: near,
		FarPlane:  far,
	}
}

func (c *OrthoCamera) LookAt(target, up math.Vec3) {
	c.Rotation = lookRotation(c.Position, target, up)
}

func (c *OrthoCamera) ViewMatrix() math.Mat4 {
	return math.Mat4Translation(c.Position.Negate()).Mul(c.Rotation.Conjugate().ToMat4())
}

func (c *OrthoCamera) ProjectionMatrix() math.Mat4 {
	return math.Mat4Orthographic(c.Left, c.Right, c.Bottom, c.Top, c.NearPlane, c.FarPlane)
}

func (c *OrthoCamera) EyePosition() math.Vec3 { return c.Position }

func (c *OrthoCamera) ClipRange() (float32, float32) { return c.NearPlane, c.FarPlane }

// OrbitCamera circles a target at a fixed distance.
type OrbitCamera struct {
	Camera
	Target   math.Vec3
	Distance float32
	Yaw      float32
	Pitch    float32
}

func NewOrbitCamera(target math.Vec3, distance, fov, aspectRatio float32) *OrbitCamera {
	c := &OrbitCamera{
		Camera:   *NewCamera(fov, aspectRatio, 0.1, 1000.0),
		Target:   target,
		Distance: distance,
		Pitch:    0.3,
	}
	c.UpdatePosition()
	return c
}

func (c *OrbitCamera) UpdatePosition() {
	c.Pitch = math32.Max(-1.5, math32.Min(1.5, c.Pitch))

	sinPitch, cosPitch := math32.Sincos(c.Pitch)
	sinYaw, cosYaw := math32.Sincos(c.Yaw)
	offset := math.Vec3{
		X: c.Distance * cosPitch * sinYaw,
		Y: c.Distance * sinPitch,
		Z: c.Distance * cosPitch * cosYaw,
	}

	c.SetPosition(c.Target.Add(offset))
	c.LookAt(c.Target, math.Vec3Up)
}

func (c *OrbitCamera) Orbit(deltaYaw, deltaPitch float32) {
	c.Yaw += deltaYaw
	c.Pitch += deltaPitch
	c.UpdatePosition()
}

func (c *OrbitCamera) Zoom(delta float32) {
	c.Distance = math32.Max(0.1, c.Distance+delta)
	c.UpdatePosition()
}
