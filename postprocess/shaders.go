package postprocess

import "scene-renderer/scene"

// fullscreenVertex draws the oversized triangle from fullscreenGeometry.
const fullscreenVertex = `
layout(location = 0) in vec3 aPosition;
layout(location = 2) in vec2 aUV;
out vec2 vUV;
void main() {
    vUV = aUV;
    gl_Position = vec4(aPosition.xy, 0.0, 1.0);
}
`

func program(name, fragment string) *scene.CustomShader {
	return &scene.CustomShader{Name: "post:" + name, Vertex: fullscreenVertex, Fragment: fragment}
}

var copyProgram = program("copy", `
in vec2 vUV;
out vec4 outColor;
uniform sampler2D uInput;
void main() {
    outColor = texture(uInput, vUV);
}
`)

// Exposure, then Reinhard-style exponential mapping and gamma 2.2.
var tonemapProgram = program("tonemap", `
in vec2 vUV;
out vec4 outColor;
uniform sampler2D uInput;
uniform float uExposure;
uniform float uGamma;
void main() {
    vec4 hdr = texture(uInput, vUV);
    vec3 mapped = vec3(1.0) - exp(-hdr.rgb * uExposure);
    mapped = pow(mapped, vec3(1.0 / uGamma));
    outColor = vec4(mapped, hdr.a);
}
`)

var colorGradeProgram = program("colorgrade", `
in vec2 vUV;
out vec4 outColor;
uniform sampler2D uInput;
uniform float uBrightness;
uniform float uContrast;
uniform float uSaturation;
uniform float uMix;
void main() {
    vec4 src = texture(uInput, vUV);
    vec3 c = src.rgb + uBrightness;
    c = (c - 0.5) * uContrast + 0.5;
    float luma = dot(c, vec3(0.2126, 0.7152, 0.0722));
    c = mix(vec3(luma), c, uSaturation);
    outColor = vec4(mix(src.rgb, c, uMix), src.a);
}
`)

// 9-tap Gaussian along uDirection (one texel step, scaled by uRadius).
var blurProgram = program("blur", `
in vec2 vUV;
out vec4 outColor;
uniform sampler2D uInput;
uniform vec2 uDirection;
uniform float uRadius;
void main() {
    const float w[5] = float[](0.227027, 0.1945946, 0.1216216, 0.054054, 0.016216);
    vec2 step = uDirection * uRadius;
    vec4 result = texture(uInput, vUV) * w[0];
    for (int i = 1; i < 5; i++) {
        result += texture(uInput, vUV + float(i) * step) * w[i];
        result += texture(uInput, vUV - float(i) * step) * w[i];
    }
    outColor = result;
}
`)

var edgeProgram = program("edgedetect", `
in vec2 vUV;
out vec4 outColor;
uniform sampler2D uInput;
uniform vec2 uTexel;
uniform float uStrength;
uniform float uThreshold;
uniform vec3 uEdgeColor;
float luma(vec2 offset) {
    return dot(texture(uInput, vUV + offset * uTexel).rgb, vec3(0.2126, 0.7152, 0.0722));
}
void main() {
    float tl = luma(vec2(-1.0,  1.0));
    float t  = luma(vec2( 0.0,  1.0));
    float tr = luma(vec2( 1.0,  1.0));
    float l  = luma(vec2(-1.0,  0.0));
    float r  = luma(vec2( 1.0,  0.0));
    float bl = luma(vec2(-1.0, -1.0));
    float b  = luma(vec2( 0.0, -1.0));
    float br = luma(vec2( 1.0, -1.0));
    float gx = -tl - 2.0 * l - bl + tr + 2.0 * r + br;
    float gy = -bl - 2.0 * b - br + tl + 2.0 * t + tr;
    float edge = step(uThreshold, length(vec2(gx, gy)));
    vec4 src = texture(uInput, vUV);
    outColor = vec4(mix(src.rgb, uEdgeColor, edge * uStrength), src.a);
}
`)

var brightProgram = program("bloom.bright", `
in vec2 vUV;
out vec4 outColor;
uniform sampler2D uInput;
uniform float uThreshold;
void main() {
    vec3 color = texture(uInput, vUV).rgb;
    float luma = dot(color, vec3(0.2126, 0.7152, 0.0722));
    outColor = vec4(color * step(uThreshold, luma), 1.0);
}
`)

var bloomCompositeProgram = program("bloom.composite", `
in vec2 vUV;
out vec4 outColor;
uniform sampler2D uInput;
uniform sampler2D uBloom;
uniform float uStrength;
void main() {
    vec4 src = texture(uInput, vUV);
    outColor = vec4(src.rgb + texture(uBloom, vUV).rgb * uStrength, src.a);
}
`)

// Hemisphere occlusion from the scene depth. View-space positions are
// rebuilt with the inverse projection and normals from their derivatives.
var ssaoProgram = program("ssao", `
#define KERNEL_SIZE 64
in vec2 vUV;
out vec4 outColor;
uniform sampler2D uDepth;
uniform sampler2D uNoise;
uniform vec3  uKernel[KERNEL_SIZE];
uniform mat4  uProjection;
uniform mat4  uInvProjection;
uniform float uRadius;
uniform float uBias;
uniform vec2  uNoiseScale;

vec3 viewPos(vec2 uv) {
    float d  = texture(uDepth, uv).r * 2.0 - 1.0;
    vec4  vp = uInvProjection * vec4(uv * 2.0 - 1.0, d, 1.0);
    return vp.xyz / vp.w;
}

void main() {
    if (texture(uDepth, vUV).r >= 0.9999) {
        outColor = vec4(1.0);
        return;
    }
    vec3 pos = viewPos(vUV);
    vec3 N = normalize(cross(dFdx(pos), dFdy(pos)));
    if (dot(N, -pos) < 0.0) N = -N;

    vec3 rnd = vec3(texture(uNoise, vUV * uNoiseScale).xy * 2.0 - 1.0, 0.0);
    vec3 T = normalize(rnd - N * dot(rnd, N));
    mat3 TBN = mat3(T, cross(N, T), N);

    float occ = 0.0;
    for (int i = 0; i < KERNEL_SIZE; i++) {
        vec3 s = pos + TBN * uKernel[i] * uRadius;
        vec4 off = uProjection * vec4(s, 1.0);
        vec2 suv = clamp(off.xy / off.w * 0.5 + 0.5, 0.001, 0.999);
        float geoZ = viewPos(suv).z;
        float range = smoothstep(0.0, 1.0, uRadius / max(abs(pos.z - geoZ), 0.0001));
        occ += (geoZ >= s.z + uBias ? 1.0 : 0.0) * range;
    }
    outColor = vec4(vec3(1.0 - occ / float(KERNEL_SIZE)), 1.0);
}
`)

// 5x5 box filter over the raw occlusion.
var ssaoBlurProgram = program("ssao.blur", `
in vec2 vUV;
out vec4 outColor;
uniform sampler2D uInput;
void main() {
    vec2 texel = 1.0 / vec2(textureSize(uInput, 0));
    float sum = 0.0;
    for (int x = -2; x <= 2; x++) {
        for (int y = -2; y <= 2; y++) {
            sum += texture(uInput, vUV + vec2(x, y) * texel).r;
        }
    }
    outColor = vec4(vec3(sum / 25.0), 1.0);
}
`)

var ssaoCompositeProgram = program("ssao.composite", `
in vec2 vUV;
out vec4 outColor;
uniform sampler2D uInput;
uniform sampler2D uOcclusion;
uniform float uStrength;
void main() {
    vec4 src = texture(uInput, vUV);
    float ao = mix(1.0, texture(uOcclusion, vUV).r, uStrength);
    outColor = vec4(src.rgb * ao, src.a);
}
`)
