package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scene-renderer/cache"
	"scene-renderer/gpu"
	"scene-renderer/gpu/gputest"
	"scene-renderer/math"
	"scene-renderer/shader"
	"scene-renderer/state"
)

type harness struct {
	dev   *gputest.Device
	cache *cache.Cache
	tr    *state.Tracker
	pipe  *Pipeline
}

func newHarness(passes ...Pass) *harness {
	dev := gputest.New()
	c := cache.New(dev, nil)
	p := NewPipeline(c, shader.NewCache(dev, nil), Config{Width: 64, Height: 32, HDR: true}, nil)
	p.Add(passes...)
	return &harness{dev: dev, cache: c, tr: state.New(dev), pipe: p}
}

var screen = Output{Target: gpu.Screen, Width: 64, Height: 32}

func (h *harness) run(t *testing.T) (Result, gpu.Target) {
	t.Helper()
	target, err := h.pipe.SceneTarget()
	require.NoError(t, err)
	h.dev.Draws = nil
	res, err := h.pipe.Run(h.tr, screen)
	require.NoError(t, err)
	return res, target
}

func (h *harness) label(d gputest.DrawRecord) string {
	src, _ := h.dev.ProgramSource(d.State.Program)
	return src.Label
}

func (h *harness) labels() []string {
	out := make([]string, len(h.dev.Draws))
	for i, d := range h.dev.Draws {
		out[i] = h.label(d)
	}
	return out
}

func TestPingPongParity(t *testing.T) {
	h := newHarness(NewToneMap(), NewColorGrade(), NewEdgeDetect())
	res, sceneTarget := h.run(t)

	assert.Equal(t, 3, res.Passes)
	require.Len(t, h.dev.Draws, 3)
	assert.Equal(t, []string{"custom:post:tonemap", "custom:post:colorgrade", "custom:post:edgedetect"}, h.labels())

	first, second, last := h.dev.Draws[0], h.dev.Draws[1], h.dev.Draws[2]
	// A -> B -> A -> screen.
	assert.NotEqual(t, sceneTarget, first.State.Target)
	assert.Equal(t, sceneTarget, second.State.Target)
	assert.Equal(t, gpu.Screen, last.State.Target)

	// Each pass samples what the previous one wrote.
	assert.NotEqual(t, first.State.Textures[0], second.State.Textures[0])
	assert.Equal(t, first.State.Textures[0], last.State.Textures[0])
	assert.Zero(t, h.dev.InvalidUses)
}

func TestDisabledPassIsPassthrough(t *testing.T) {
	grade := NewColorGrade()
	grade.Mix = 0
	h := newHarness(NewToneMap(), grade, NewEdgeDetect())

	res, sceneTarget := h.run(t)
	assert.Equal(t, 3, res.Passes)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, []string{"custom:post:tonemap", "custom:post:copy", "custom:post:edgedetect"}, h.labels())
	assert.Equal(t, sceneTarget, h.dev.Draws[1].State.Target)
	assert.Equal(t, gpu.Screen, h.dev.Draws[2].State.Target)
}

func TestDisabledLastPassCopiesToScreen(t *testing.T) {
	blur := NewBlur()
	blur.SetEnabled(false)
	h := newHarness(NewToneMap(), blur)

	res, _ := h.run(t)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, h.dev.Draws, 2)
	assert.Equal(t, "custom:post:copy", h.label(h.dev.Draws[1]))
	assert.Equal(t, gpu.Screen, h.dev.Draws[1].State.Target)
}

func TestEmptyChainCopiesSceneToOutput(t *testing.T) {
	h := newHarness()
	assert.False(t, h.pipe.Active())

	res, _ := h.run(t)
	assert.Equal(t, 1, res.Passes)
	require.Len(t, h.dev.Draws, 1)
	assert.Equal(t, gpu.Screen, h.dev.Draws[0].State.Target)
}

func TestBlurDrawsTwice(t *testing.T) {
	h := newHarness(NewBlur())
	res, sceneTarget := h.run(t)

	assert.Equal(t, 2, res.Draws)
	require.Len(t, h.dev.Draws, 2)
	horizontal, vertical := h.dev.Draws[0], h.dev.Draws[1]
	assert.NotEqual(t, sceneTarget, horizontal.State.Target)
	assert.NotEqual(t, gpu.Screen, horizontal.State.Target)
	assert.Equal(t, gpu.Screen, vertical.State.Target)
	assert.Equal(t, gpu.Vec2(math.Vec2{X: 1.0 / 64}), horizontal.Uniforms["uDirection"])
	assert.Equal(t, gpu.Vec2(math.Vec2{Y: 1.0 / 32}), vertical.Uniforms["uDirection"])
}

func TestBloomUsesHalfResolutionScratch(t *testing.T) {
	bloom := NewBloom()
	require.NoError(t, bloom.Configure(map[string]float64{"passes": 1, "strength": 0.8}))
	h := newHarness(bloom)

	res, _ := h.run(t)
	// Bright pass, one H+V blur, composite.
	assert.Equal(t, 4, res.Draws)
	for _, d := range h.dev.Draws[:3] {
		assert.Equal(t, int32(32), d.State.Viewport.Width)
		assert.Equal(t, int32(16), d.State.Viewport.Height)
	}
	composite := h.dev.Draws[3]
	assert.Equal(t, "custom:post:bloom.composite", h.label(composite))
	assert.Equal(t, gpu.Float(0.8), composite.Uniforms["uStrength"])
	assert.Equal(t, gpu.Int(1), composite.Uniforms["uBloom"])
}

func TestSSAOSamplesSceneDepthIntoScratch(t *testing.T) {
	ssao := NewSSAO()
	require.NoError(t, ssao.Configure(map[string]float64{"Radius": 0.75}))
	h := newHarness(NewToneMap(), ssao)
	proj := math.Mat4Perspective(1, 2, 0.1, 50)
	h.pipe.SetProjection(proj)

	res, sceneTarget := h.run(t)
	assert.Equal(t, 2, res.Passes)
	assert.Equal(t, 4, res.Draws)
	assert.Equal(t, []string{
		"custom:post:tonemap", "custom:post:ssao", "custom:post:ssao.blur", "custom:post:ssao.composite",
	}, h.labels())

	depth := h.pipe.depth
	require.NotZero(t, depth)
	raw, blurred, composite := h.dev.Draws[1], h.dev.Draws[2], h.dev.Draws[3]
	assert.Equal(t, depth, raw.State.Textures[0])
	// Target A owns the depth attachment; the draw reading it must not
	// write there.
	assert.NotEqual(t, sceneTarget, raw.State.Target)
	assert.NotEqual(t, gpu.Screen, raw.State.Target)
	assert.Equal(t, gpu.Mat4(proj), raw.Uniforms["uProjection"])
	assert.Equal(t, gpu.Mat4(proj.Inverse()), raw.Uniforms["uInvProjection"])
	assert.Equal(t, gpu.Float(0.75), raw.Uniforms["uRadius"])
	assert.Contains(t, raw.Uniforms, "uKernel[63]")

	assert.NotEqual(t, raw.State.Target, blurred.State.Target)
	assert.Equal(t, gpu.Screen, composite.State.Target)
	assert.Equal(t, gpu.Int(1), composite.Uniforms["uOcclusion"])
	assert.Zero(t, h.dev.InvalidUses)
}

func TestSSAOKernelStaysInHemisphere(t *testing.T) {
	ssao := NewSSAO()
	require.Len(t, ssao.kernel, ssaoKernelSize)
	for _, u := range ssao.kernel {
		v := math.Vec3{X: u.Value.F[0], Y: u.Value.F[1], Z: u.Value.F[2]}
		assert.GreaterOrEqual(t, v.Z, float32(0), u.Name)
		assert.LessOrEqual(t, v.Length(), float32(1.0001), u.Name)
	}
	assert.True(t, ssao.noise.Ready())

	ssao.Strength = 0
	assert.False(t, ssao.Enabled())
}

func TestFullscreenStateAndSharedPrograms(t *testing.T) {
	h := newHarness(NewToneMap())
	h.run(t)
	h.run(t)

	for _, d := range h.dev.Draws {
		assert.Equal(t, gpu.FullscreenState(), d.State.Render)
	}
	// One compile for the tone map program across frames.
	assert.Equal(t, 1, h.dev.Count(gputest.OpCompileProgram))
	assert.Equal(t, 1, h.dev.Count(gputest.OpCreateMesh))
}

func TestResizeReallocatesTargets(t *testing.T) {
	h := newHarness(NewToneMap())
	h.run(t)
	created := h.dev.Count(gputest.OpCreateTarget)

	h.pipe.Resize(128, 64)
	h.run(t)
	assert.Equal(t, created*2, h.dev.Count(gputest.OpCreateTarget))
	assert.Equal(t, int32(128), h.pipe.input.Width)
}

func TestRunWithoutSceneTarget(t *testing.T) {
	h := newHarness(NewToneMap())
	_, err := h.pipe.Run(h.tr, screen)
	assert.ErrorIs(t, err, ErrNoInput)
}

func TestDestroyReleasesEverything(t *testing.T) {
	h := newHarness(NewBloom(), NewBlur())
	h.cache.BeginFrame()
	h.run(t)
	h.cache.EndFrame()
	_, _, targets := h.cache.Resident()
	assert.Equal(t, 5, targets)

	h.cache.BeginFrame()
	h.pipe.Destroy()
	h.cache.EndFrame()
	meshes, _, targets := h.cache.Resident()
	assert.Zero(t, targets)
	assert.Zero(t, meshes)
}

func TestConfigureAndRegistry(t *testing.T) {
	for _, name := range PassNames() {
		p, err := NewPass(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, p.Name())
	}
	_, err := NewPass("vignette")
	assert.Error(t, err)

	tm := NewToneMap()
	require.NoError(t, tm.Configure(map[string]float64{"Exposure": 2}))
	assert.Equal(t, float32(2), tm.Exposure)
	err = tm.Configure(map[string]float64{"contrast": 1})
	assert.ErrorContains(t, err, "unknown parameter")

	assert.Error(t, NewCopy().Configure(map[string]float64{"x": 1}))
}
