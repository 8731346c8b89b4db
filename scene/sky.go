package scene

import (
	"scene-renderer/core"
	"scene-renderer/gpu"
)

// Sky is a procedural gradient drawn behind everything else. It is not part
// of the scene graph; the renderer draws it first in the main pass from the
// environment.
type Sky struct {
	// Zenith is the color straight up, Horizon at eye level and Ground
	// below the horizon.
	Zenith  core.Color
	Horizon core.Color
	Ground  core.Color

	node *Node
}

// The vertex stage drops the view translation so the cube stays centred on
// the eye, and writes w into z so every fragment lands on the far plane.
var skyShader = &CustomShader{
	Name: "sky",
	Vertex: `
layout(location = 0) in vec3 aPosition;
uniform mat4 uView;
uniform mat4 uProjection;
out vec3 vDir;
void main() {
    vDir = aPosition;
    vec4 pos = uProjection * mat4(mat3(uView)) * vec4(aPosition, 1.0);
    gl_Position = pos.xyww;
}
`,
	Fragment: `
in vec3 vDir;
out vec4 outColor;
uniform vec3 uZenith;
uniform vec3 uHorizon;
uniform vec3 uGround;
void main() {
    float t = normalize(vDir).y;
    vec3 color = t >= 0.0
        ? mix(uHorizon, uZenith, pow(t, 0.4))
        : mix(uHorizon, uGround, min(-t * 3.0, 1.0));
    outColor = vec4(color, 1.0);
}
`,
}

// SkyState passes fragments on the cleared far plane without writing depth,
// and draws the inside of the cube.
func SkyState() gpu.RenderState {
	s := gpu.OpaqueState()
	s.Depth = gpu.DepthState{Test: true, Write: false, Func: gpu.CompareLessEqual}
	s.Cull = gpu.CullNone
	return s
}

// NewSky returns a blue sky over a warm brown ground.
func NewSky() *Sky {
	s := &Sky{
		Zenith:  core.Color{R: 0.10, G: 0.30, B: 0.70, A: 1},
		Horizon: core.Color{R: 0.60, G: 0.80, B: 1.00, A: 1},
		Ground:  core.Color{R: 0.30, G: 0.25, B: 0.20, A: 1},
	}
	mat := &Material{Name: "Sky", State: SkyState()}
	s.node = NewMeshNode("sky", CreateBox(2, 2, 2), mat)
	s.node.CastShadow = false
	s.node.ReceiveShadow = false
	return s
}

// Node returns the node the sky is drawn with, its uniforms refreshed from
// the current colors.
func (s *Sky) Node() *Node {
	s.node.Renderable.Material.Params = CustomParams{
		Shader: skyShader,
		Values: []gpu.Uniform{
			{Name: "uZenith", Value: gpu.Vec3(s.Zenith.Vec3())},
			{Name: "uHorizon", Value: gpu.Vec3(s.Horizon.Vec3())},
			{Name: "uGround", Value: gpu.Vec3(s.Ground.Vec3())},
		},
	}
	return s.node
}
