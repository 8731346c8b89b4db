package shader

import (
	"fmt"
	"strings"

	"scene-renderer/scene"
)

// Limits shared with the code that fills the uniforms.
const (
	MaxLights     = 8
	MaxShadowMaps = 8
	MaxJoints     = scene.MaxJoints
)

// Light type codes as seen by the shaders.
const (
	LightDirectional int32 = 0
	LightPoint       int32 = 1
	LightSpot        int32 = 2
)

const glslVersion = "#version 410 core\n"

// Source is a vertex/fragment pair ready for the device.
type Source struct {
	Vertex   string
	Fragment string
}

// header emits the version line, the limits and one #define per flag.
func header(kind scene.Kind, flags scene.Flags) string {
	var b strings.Builder
	b.WriteString(glslVersion)
	fmt.Fprintf(&b, "#define MAX_LIGHTS %d\n", MaxLights)
	fmt.Fprintf(&b, "#define MAX_SHADOW_MAPS %d\n", MaxShadowMaps)
	fmt.Fprintf(&b, "#define MAX_JOINTS %d\n", MaxJoints)
	fmt.Fprintf(&b, "#define KIND_%s\n", strings.ToUpper(kind.String()))
	for _, d := range flags.Defines() {
		fmt.Fprintf(&b, "#define %s\n", d)
	}
	return b.String()
}

// Synthesize returns the GLSL for a built-in kind with the given features.
func Synthesize(kind scene.Kind, flags scene.Flags) (Source, error) {
	h := header(kind, flags)
	switch kind {
	case scene.KindUnlit, scene.KindLine:
		return Source{Vertex: h + meshVertex, Fragment: h + surfaceFragment + unlitMain}, nil
	case scene.KindLambert, scene.KindPhong, scene.KindPBR:
		return Source{Vertex: h + meshVertex, Fragment: h + surfaceFragment + lightingFragment + litMain}, nil
	case scene.KindPoint:
		return Source{Vertex: h + pointVertex, Fragment: h + surfaceFragment + pointMain}, nil
	case scene.KindSprite:
		return Source{Vertex: h + spriteVertex, Fragment: h + surfaceFragment + unlitMain}, nil
	case scene.KindDepth:
		return Source{Vertex: h + meshVertex, Fragment: h + depthFragment}, nil
	}
	return Source{}, fmt.Errorf("shader: no built-in source for kind %s", kind)
}

// CustomSource prepares user GLSL. A missing #version line is supplied.
func CustomSource(cs *scene.CustomShader) Source {
	return Source{Vertex: withVersion(cs.Vertex), Fragment: withVersion(cs.Fragment)}
}

func withVersion(src string) string {
	if strings.HasPrefix(strings.TrimSpace(src), "#version") {
		return src
	}
	return glslVersion + src
}

const meshVertex = `
layout(location = 0) in vec3 aPosition;
layout(location = 1) in vec3 aNormal;
layout(location = 2) in vec2 aUV;
layout(location = 3) in vec4 aColor;
#ifdef SKINNING
layout(location = 4) in vec4 aJoints;
layout(location = 5) in vec4 aWeights;
uniform mat4 uJoints[MAX_JOINTS];
#endif

uniform mat4 uModel;
uniform mat4 uView;
uniform mat4 uProjection;

out vec3 vWorldPos;
out vec3 vNormal;
out vec2 vUV;
out vec4 vColor;

void main() {
    mat4 model = uModel;
#ifdef SKINNING
    mat4 skin = aWeights.x * uJoints[int(aJoints.x)] +
                aWeights.y * uJoints[int(aJoints.y)] +
                aWeights.z * uJoints[int(aJoints.z)] +
                aWeights.w * uJoints[int(aJoints.w)];
    model = uModel * skin;
#endif
    vec4 world = model * vec4(aPosition, 1.0);
    vWorldPos = world.xyz;
    vNormal   = mat3(model) * aNormal;
    vUV       = aUV;
    vColor    = aColor;
    gl_Position = uProjection * uView * world;
}
`

const pointVertex = `
layout(location = 0) in vec3 aPosition;
layout(location = 3) in vec4 aColor;

uniform mat4  uModel;
uniform mat4  uView;
uniform mat4  uProjection;
uniform vec2  uViewportSize;
uniform float uPointSize;
uniform int   uSizeAttenuation;

out vec3 vWorldPos;
out vec3 vNormal;
out vec2 vUV;
out vec4 vColor;

void main() {
    vec4 world = uModel * vec4(aPosition, 1.0);
    vec4 view  = uView * world;
    vWorldPos = world.xyz;
    vNormal   = vec3(0.0, 0.0, 1.0);
    vUV       = vec2(0.0);
    vColor    = aColor;
    float size = uPointSize;
    if (uSizeAttenuation != 0) {
        size *= uProjection[1][1] * uViewportSize.y * 0.5 / max(-view.z, 0.001);
    }
    gl_PointSize = max(size, 1.0);
    gl_Position  = uProjection * view;
}
`

// spriteVertex expands a unit quad around the node origin in view space so
// the sprite always faces the camera.
const spriteVertex = `
layout(location = 0) in vec3 aPosition;
layout(location = 2) in vec2 aUV;
layout(location = 3) in vec4 aColor;

uniform mat4  uModel;
uniform mat4  uView;
uniform mat4  uProjection;
uniform float uRotation;

out vec3 vWorldPos;
out vec3 vNormal;
out vec2 vUV;
out vec4 vColor;

void main() {
    vec4 origin = uModel * vec4(0.0, 0.0, 0.0, 1.0);
    vec2 scale  = vec2(length(uModel[0].xyz), length(uModel[1].xyz));
    vec2 corner = aPosition.xy * scale;
    float s = sin(uRotation);
    float c = cos(uRotation);
    corner = vec2(c * corner.x - s * corner.y, s * corner.x + c * corner.y);
    vec4 view = uView * origin + vec4(corner, 0.0, 0.0);
    vWorldPos = origin.xyz;
    vNormal   = vec3(0.0, 0.0, 1.0);
    vUV       = aUV;
    vColor    = aColor;
    gl_Position = uProjection * view;
}
`

const surfaceFragment = `
in vec3 vWorldPos;
in vec3 vNormal;
in vec2 vUV;
in vec4 vColor;

out vec4 fragColor;

uniform vec4 uColor;
uniform vec3 uCameraPos;

#ifdef ALBEDO_MAP
uniform sampler2D uAlbedoMap;
#endif
#ifdef ALPHA_TEST
uniform float uAlphaCutoff;
#endif
#ifdef FOG
uniform vec3  uFogColor;
uniform float uFogDensity;
#endif

vec4 baseColor(vec2 uv) {
    vec4 c = uColor;
#ifdef VERTEX_COLOR
    c *= vColor;
#endif
#ifdef ALBEDO_MAP
    c *= texture(uAlbedoMap, uv);
#endif
#ifdef ALPHA_TEST
    if (c.a < uAlphaCutoff) discard;
#endif
    return c;
}

vec3 applyFog(vec3 color) {
#ifdef FOG
    float d = length(vWorldPos - uCameraPos);
    return mix(uFogColor, color, clamp(exp(-uFogDensity * d), 0.0, 1.0));
#else
    return color;
#endif
}
`

const unlitMain = `
void main() {
    vec4 c = baseColor(vUV);
    fragColor = vec4(applyFog(c.rgb), c.a);
}
`

const pointMain = `
void main() {
    vec4 c = baseColor(gl_PointCoord);
    fragColor = vec4(applyFog(c.rgb), c.a);
}
`

const lightingFragment = `
#define LIGHT_DIRECTIONAL 0
#define LIGHT_POINT       1
#define LIGHT_SPOT        2

uniform vec3  uAmbient;
uniform vec4  uEmissive;
uniform int   uLightCount;
uniform int   uLightType[MAX_LIGHTS];
uniform vec3  uLightPosition[MAX_LIGHTS];
uniform vec3  uLightDirection[MAX_LIGHTS];
uniform vec3  uLightColor[MAX_LIGHTS];
uniform float uLightRange[MAX_LIGHTS];
uniform vec2  uLightCone[MAX_LIGHTS];
uniform int   uLightShadow[MAX_LIGHTS];

#ifdef KIND_PHONG
uniform vec4  uSpecular;
uniform float uShininess;
#endif
#ifdef KIND_PBR
uniform float uMetallic;
uniform float uRoughness;
#endif
#ifdef NORMAL_MAP
uniform sampler2D uNormalMap;
#endif
#ifdef METALLIC_ROUGHNESS_MAP
uniform sampler2D uMetallicRoughnessMap;
#endif
#ifdef EMISSIVE_MAP
uniform sampler2D uEmissiveMap;
#endif

#ifdef RECEIVE_SHADOWS
uniform sampler2DShadow uShadowMap[MAX_SHADOW_MAPS];
uniform mat4  uShadowMatrix[MAX_SHADOW_MAPS];
uniform float uShadowBias[MAX_SHADOW_MAPS];
uniform float uShadowTexel;

// Samplers are indexed with constants only.
float shadowTap(int slot, vec3 p) {
    switch (slot) {
    case 0: return texture(uShadowMap[0], p);
    case 1: return texture(uShadowMap[1], p);
    case 2: return texture(uShadowMap[2], p);
    case 3: return texture(uShadowMap[3], p);
    case 4: return texture(uShadowMap[4], p);
    case 5: return texture(uShadowMap[5], p);
    case 6: return texture(uShadowMap[6], p);
    case 7: return texture(uShadowMap[7], p);
    }
    return 1.0;
}

int cubeFace(vec3 d) {
    vec3 a = abs(d);
    if (a.x >= a.y && a.x >= a.z) return d.x > 0.0 ? 0 : 1;
    if (a.y >= a.z) return d.y > 0.0 ? 2 : 3;
    return d.z > 0.0 ? 4 : 5;
}

float shadowFactor(int light, vec3 pos) {
    int slot = uLightShadow[light];
    if (slot < 0) return 1.0;
    if (uLightType[light] == LIGHT_POINT) slot += cubeFace(pos - uLightPosition[light]);
    vec4 ls = uShadowMatrix[slot] * vec4(pos, 1.0);
    vec3 p  = ls.xyz / ls.w * 0.5 + 0.5;
    if (p.z > 1.0) return 1.0;
    float sum = 0.0;
    for (int x = -1; x <= 1; x++) {
        for (int y = -1; y <= 1; y++) {
            vec2 o = vec2(float(x), float(y)) * uShadowTexel;
            sum += shadowTap(slot, vec3(p.xy + o, p.z - uShadowBias[slot]));
        }
    }
    return sum / 9.0;
}
#else
float shadowFactor(int light, vec3 pos) { return 1.0; }
#endif

// lightRadiance returns the incoming radiance of light i at pos and the unit
// vector towards it in L.
vec3 lightRadiance(int i, vec3 pos, out vec3 L) {
    if (uLightType[i] == LIGHT_DIRECTIONAL) {
        L = normalize(-uLightDirection[i]);
        return uLightColor[i];
    }
    vec3  toLight = uLightPosition[i] - pos;
    float dist    = length(toLight);
    L = toLight / max(dist, 0.0001);
    float atten = 1.0;
    if (uLightRange[i] > 0.0) {
        atten = clamp(1.0 - (dist * dist) / (uLightRange[i] * uLightRange[i]), 0.0, 1.0);
        atten *= atten;
    }
    if (uLightType[i] == LIGHT_SPOT) {
        float theta = dot(L, normalize(-uLightDirection[i]));
        atten *= smoothstep(uLightCone[i].y, uLightCone[i].x, theta);
    }
    return uLightColor[i] * atten;
}

vec3 surfaceNormal() {
    vec3 N = normalize(vNormal);
#ifdef NORMAL_MAP
    vec3 dp1 = dFdx(vWorldPos);
    vec3 dp2 = dFdy(vWorldPos);
    vec2 du1 = dFdx(vUV);
    vec2 du2 = dFdy(vUV);
    vec3 T = normalize(dp1 * du2.y - dp2 * du1.y);
    vec3 B = -normalize(cross(N, T));
    vec3 n = texture(uNormalMap, vUV).rgb * 2.0 - 1.0;
    N = normalize(mat3(T, B, N) * n);
#endif
    return N;
}

vec3 emission() {
    vec3 e = uEmissive.rgb;
#ifdef EMISSIVE_MAP
    e *= texture(uEmissiveMap, vUV).rgb;
#endif
    return e;
}

const float PI = 3.14159265359;

float distributionGGX(float NdH, float roughness) {
    float a2 = roughness * roughness * roughness * roughness;
    float d  = NdH * NdH * (a2 - 1.0) + 1.0;
    return a2 / (PI * d * d);
}

float geometrySchlick(float c, float roughness) {
    float r = roughness + 1.0;
    float k = (r * r) / 8.0;
    return c / (c * (1.0 - k) + k);
}

vec3 fresnelSchlick(float c, vec3 F0) {
    return F0 + (1.0 - F0) * pow(clamp(1.0 - c, 0.0, 1.0), 5.0);
}

vec3 shade(vec3 N, vec3 V, vec3 L, vec3 radiance, vec3 albedo) {
    float NdL = max(dot(N, L), 0.0);
    if (NdL <= 0.0) return vec3(0.0);
#if defined(KIND_PBR)
    float metallic  = uMetallic;
    float roughness = uRoughness;
#ifdef METALLIC_ROUGHNESS_MAP
    vec4 mr = texture(uMetallicRoughnessMap, vUV);
    roughness *= mr.g;
    metallic  *= mr.b;
#endif
    roughness = clamp(roughness, 0.04, 1.0);
    vec3  F0  = mix(vec3(0.04), albedo, metallic);
    vec3  H   = normalize(V + L);
    float NdV = max(dot(N, V), 0.0001);
    float D   = distributionGGX(max(dot(N, H), 0.0), roughness);
    float G   = geometrySchlick(NdV, roughness) * geometrySchlick(NdL, roughness);
    vec3  F   = fresnelSchlick(max(dot(H, V), 0.0), F0);
    vec3  kD  = (vec3(1.0) - F) * (1.0 - metallic);
    vec3 specular = D * G * F / max(4.0 * NdV * NdL, 0.001);
    return (kD * albedo / PI + specular) * radiance * NdL;
#elif defined(KIND_PHONG)
    vec3 H = normalize(L + V);
    vec3 specular = uSpecular.rgb * pow(max(dot(N, H), 0.0), uShininess);
    return (albedo * NdL + specular) * radiance;
#else
    return albedo * NdL * radiance;
#endif
}
`

const litMain = `
void main() {
    vec4 base = baseColor(vUV);
    vec3 N = surfaceNormal();
    vec3 V = normalize(uCameraPos - vWorldPos);
    if (!gl_FrontFacing) N = -N;

    vec3 color = uAmbient * base.rgb;
    for (int i = 0; i < uLightCount && i < MAX_LIGHTS; i++) {
        vec3 L;
        vec3 radiance = lightRadiance(i, vWorldPos, L);
        color += shade(N, V, L, radiance * shadowFactor(i, vWorldPos), base.rgb);
    }
    color += emission();
    fragColor = vec4(applyFog(color), base.a);
}
`

// depthFragment writes depth only. Alpha-tested casters discard the same
// fragments their main pass would.
const depthFragment = `
in vec3 vWorldPos;
in vec3 vNormal;
in vec2 vUV;
in vec4 vColor;

#ifdef ALPHA_TEST
uniform vec4  uColor;
uniform float uAlphaCutoff;
#ifdef ALBEDO_MAP
uniform sampler2D uAlbedoMap;
#endif
#endif

void main() {
#ifdef ALPHA_TEST
    float a = uColor.a;
#ifdef ALBEDO_MAP
    a *= texture(uAlbedoMap, vUV).a;
#endif
    if (a < uAlphaCutoff) discard;
#endif
}
`

// errorSource is the magenta program drawn in place of a variant that failed
// to build.
var errorSource = Source{
	Vertex: glslVersion + `
layout(location = 0) in vec3 aPosition;
uniform mat4 uModel;
uniform mat4 uView;
uniform mat4 uProjection;
void main() {
    gl_Position = uProjection * uView * uModel * vec4(aPosition, 1.0);
}
`,
	Fragment: glslVersion + `
out vec4 fragColor;
void main() {
    fragColor = vec4(1.0, 0.0, 1.0, 1.0);
}
`,
}
