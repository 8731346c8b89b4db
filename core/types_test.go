package core

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"

	"scene-renderer/math"
)

func TestTransformMatrixAppliesScaleRotateTranslate(t *testing.T) {
	tr := NewTransform()
	tr.Position = math.NewVec3(0, 5, 0)
	tr.Rotation = math.QuaternionFromAxisAngle(math.Vec3Front, math32.Pi/2)
	tr.Scale = math.NewVec3(3, 3, 3)

	got := tr.GetMatrix().MulVec3(math.Vec3Right)
	assert.InDelta(t, 0, got.X, 1e-4)
	assert.InDelta(t, 8, got.Y, 1e-4)
	assert.InDelta(t, 0, got.Z, 1e-4)
}

func TestTransformDirections(t *testing.T) {
	tr := NewTransform()
	assert.Equal(t, math.Vec3Back, tr.GetForward())
	assert.Equal(t, math.Vec3Up, tr.GetUp())
	assert.Equal(t, math.Vec3Right, tr.GetRight())
}

func TestColorVectors(t *testing.T) {
	c := Color{R: 0.1, G: 0.2, B: 0.3, A: 0.4}
	assert.Equal(t, math.NewVec3(0.1, 0.2, 0.3), c.Vec3())
	assert.Equal(t, math.NewVec4(0.1, 0.2, 0.3, 0.4), c.Vec4())
}
