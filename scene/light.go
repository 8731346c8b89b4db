package scene

import (
	"github.com/chewxy/math32"

	"scene-renderer/core"
	"scene-renderer/math"
)

type LightType uint8

const (
	LightDirectional LightType = iota
	LightPoint
	LightSpot
)

func (t LightType) String() string {
	switch t {
	case LightDirectional:
		return "directional"
	case LightPoint:
		return "point"
	case LightSpot:
		return "spot"
	}
	return "unknown"
}

// Light is attached to a node; its position and direction come from the
// node's world matrix (the node's -Z axis is the light direction).
type Light struct {
	Type      LightType
	Color     core.Color
	Intensity float32
	// Range is the distance at which point and spot lights fade out. Zero
	// means no cutoff.
	Range float32
	// InnerCone and OuterCone are spot half-angles in radians.
	InnerCone float32
	OuterCone float32

	CastShadow bool
	ShadowBias float32
}

func NewDirectionalLight(color core.Color, intensity float32) *Light {
	return &Light{Type: LightDirectional, Color: color, Intensity: intensity, ShadowBias: 0.005}
}

func NewPointLight(color core.Color, intensity, lightRange float32) *Light {
	return &Light{Type: LightPoint, Color: color, Intensity: intensity, Range: lightRange, ShadowBias: 0.01}
}

func NewSpotLight(color core.Color, intensity, lightRange, inner, outer float32) *Light {
	return &Light{
		Type:       LightSpot,
		Color:      color,
		Intensity:  intensity,
		Range:      lightRange,
		InnerCone:  inner,
		OuterCone:  outer,
		ShadowBias: 0.005,
	}
}

// ShadowFaces is how many depth maps the light needs.
func (l *Light) ShadowFaces() int {
	if l.Type == LightPoint {
		return 6
	}
	return 1
}

// WorldLight is a light resolved against its node for one frame.
type WorldLight struct {
	Light     *Light
	Node      *Node
	Position  math.Vec3
	Direction math.Vec3
}

// Resolve captures the light's world-space position and direction.
func Resolve(n *Node) WorldLight {
	return WorldLight{
		Light:     n.Light,
		Node:      n,
		Position:  n.WorldPosition(),
		Direction: n.WorldForward(),
	}
}

// CosCones returns the cosines of the inner and outer cone angles.
func (l *Light) CosCones() (inner, outer float32) {
	return math32.Cos(l.InnerCone), math32.Cos(l.OuterCone)
}
