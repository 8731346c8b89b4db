package drawlist

import (
	"scene-renderer/core"
	"scene-renderer/gpu"
	"scene-renderer/math"
	"scene-renderer/scene"
	"scene-renderer/shader"
)

type lightUniformNames struct {
	typ, position, direction, color, rng, cone, shadow string
}

type shadowUniformNames struct {
	matrix, bias, sampler string
}

// Array element names are built once; Build runs every frame.
var (
	lightNames  [shader.MaxLights]lightUniformNames
	shadowNames [shader.MaxShadowMaps]shadowUniformNames
	jointNames  [shader.MaxJoints]string
)

func init() {
	for i := range lightNames {
		lightNames[i] = lightUniformNames{
			typ:       shader.Indexed("uLightType", i),
			position:  shader.Indexed("uLightPosition", i),
			direction: shader.Indexed("uLightDirection", i),
			color:     shader.Indexed("uLightColor", i),
			rng:       shader.Indexed("uLightRange", i),
			cone:      shader.Indexed("uLightCone", i),
			shadow:    shader.Indexed("uLightShadow", i),
		}
	}
	for i := range shadowNames {
		shadowNames[i] = shadowUniformNames{
			matrix:  shader.Indexed("uShadowMatrix", i),
			bias:    shader.Indexed("uShadowBias", i),
			sampler: shader.Indexed("uShadowMap", i),
		}
	}
	for i := range jointNames {
		jointNames[i] = shader.Indexed("uJoints", i)
	}
}

// ShadowMap is one rendered depth map the main pass samples. A point light
// contributes six consecutive maps in +X, -X, +Y, -Y, +Z, -Z order.
type ShadowMap struct {
	Light   *scene.Light
	Matrix  math.Mat4
	Texture gpu.Texture
	Bias    float32
}

func cameraUniforms(dst []gpu.Uniform, view, proj math.Mat4, eye math.Vec3) []gpu.Uniform {
	return append(dst,
		gpu.Uniform{Name: "uView", Value: gpu.Mat4(view)},
		gpu.Uniform{Name: "uProjection", Value: gpu.Mat4(proj)},
		gpu.Uniform{Name: "uCameraPos", Value: gpu.Vec3(eye)},
	)
}

func environmentUniforms(dst []gpu.Uniform, env scene.Environment, viewport core.Rect) []gpu.Uniform {
	return append(dst,
		gpu.Uniform{Name: "uAmbient", Value: gpu.Vec3(env.Ambient.Vec3())},
		gpu.Uniform{Name: "uFogColor", Value: gpu.Vec3(env.FogColor.Vec3())},
		gpu.Uniform{Name: "uFogDensity", Value: gpu.Float(env.FogDensity)},
		gpu.Uniform{Name: "uViewportSize", Value: gpu.Vec2(math.Vec2{X: float32(viewport.Width), Y: float32(viewport.Height)})},
	)
}

// lightUniforms fills the light arrays. slots maps each light to the index
// of its first shadow map, if any.
func lightUniforms(dst []gpu.Uniform, lights []scene.WorldLight, slots map[*scene.Light]int) []gpu.Uniform {
	dst = append(dst, gpu.Uniform{Name: "uLightCount", Value: gpu.Int(int32(len(lights)))})
	for i, wl := range lights {
		l := wl.Light
		names := &lightNames[i]
		inner, outer := l.CosCones()
		slot := int32(-1)
		if s, ok := slots[l]; ok {
			slot = int32(s)
		}
		dst = append(dst,
			gpu.Uniform{Name: names.typ, Value: gpu.Int(lightType(l.Type))},
			gpu.Uniform{Name: names.position, Value: gpu.Vec3(wl.Position)},
			gpu.Uniform{Name: names.direction, Value: gpu.Vec3(wl.Direction)},
			gpu.Uniform{Name: names.color, Value: gpu.Vec3(l.Color.Vec3().Mul(l.Intensity))},
			gpu.Uniform{Name: names.rng, Value: gpu.Float(l.Range)},
			gpu.Uniform{Name: names.cone, Value: gpu.Vec2(math.Vec2{X: inner, Y: outer})},
			gpu.Uniform{Name: names.shadow, Value: gpu.Int(slot)},
		)
	}
	return dst
}

func lightType(t scene.LightType) int32 {
	switch t {
	case scene.LightPoint:
		return shader.LightPoint
	case scene.LightSpot:
		return shader.LightSpot
	}
	return shader.LightDirectional
}

func shadowUniforms(dst []gpu.Uniform, maps []ShadowMap, texel float32) ([]gpu.Uniform, []TextureBinding) {
	if len(maps) == 0 {
		return dst, nil
	}
	dst = append(dst, gpu.Uniform{Name: "uShadowTexel", Value: gpu.Float(texel)})
	binds := make([]TextureBinding, 0, len(maps))
	for i, m := range maps {
		names := &shadowNames[i]
		unit := shader.ShadowUnit(i)
		dst = append(dst,
			gpu.Uniform{Name: names.matrix, Value: gpu.Mat4(m.Matrix)},
			gpu.Uniform{Name: names.bias, Value: gpu.Float(m.Bias)},
			gpu.Uniform{Name: names.sampler, Value: gpu.Int(int32(unit))},
		)
		binds = append(binds, TextureBinding{Unit: unit, Texture: m.Texture})
	}
	return dst, binds
}

func jointUniforms(dst []gpu.Uniform, skin *scene.Skin) []gpu.Uniform {
	for i, m := range skin.Joints {
		if i >= len(jointNames) {
			break
		}
		dst = append(dst, gpu.Uniform{Name: jointNames[i], Value: gpu.Mat4(m)})
	}
	return dst
}
