package renderer

import (
	"errors"
	"strings"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scene-renderer/cache"
	"scene-renderer/core"
	"scene-renderer/gpu"
	"scene-renderer/gpu/gputest"
	"scene-renderer/math"
	"scene-renderer/scene"
)

type harness struct {
	dev    *gputest.Device
	r      *Renderer
	root   *scene.Node
	camera *scene.Camera
	box    *scene.Node
	ground *scene.Node
}

func newHarness(t *testing.T, edit func(*Config)) *harness {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Width, cfg.Height = 64, 64
	cfg.ShadowMapSize = 256
	if edit != nil {
		edit(&cfg)
	}
	dev := gputest.New()
	r, err := New(dev, cfg)
	require.NoError(t, err)

	root := scene.NewNode("root")
	mat := scene.NewMaterial("grey", scene.LambertParams{Color: core.Color{R: 0.5, G: 0.5, B: 0.5, A: 1}})
	ground := scene.NewMeshNode("ground", scene.CreatePlane(10, 10, 1), mat)
	box := scene.NewMeshNode("box", scene.CreateBox(1, 1, 1), mat)
	box.SetPosition(math.Vec3{Y: 1})
	root.AddChild(ground)
	root.AddChild(box)

	sun := scene.NewDirectionalLight(core.ColorWhite, 1)
	sun.CastShadow = true
	light := scene.NewLightNode("sun", sun)
	light.SetPosition(math.Vec3{X: 3, Y: 10, Z: 2})
	light.LookAt(math.Vec3{}, math.Vec3Up)
	root.AddChild(light)

	cam := scene.NewCamera(math32.Pi/3, 1, 0.1, 100)
	cam.SetPosition(math.Vec3{Y: 4, Z: 8})
	cam.LookAt(math.Vec3{}, math.Vec3Up)

	return &harness{dev: dev, r: r, root: root, camera: cam, box: box, ground: ground}
}

func (h *harness) frame(t *testing.T) Stats {
	t.Helper()
	stats, err := h.r.RenderFrame(h.root, h.camera)
	require.NoError(t, err)
	return stats
}

func diagnostics(s Stats, kind string) []Diagnostic {
	var out []Diagnostic
	for _, d := range s.Diagnostics {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

func TestContractViolationsTouchNothing(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.r.RenderFrame(nil, h.camera)
	assert.ErrorIs(t, err, ErrNoScene)
	_, err = h.r.RenderFrame(h.root, nil)
	assert.ErrorIs(t, err, ErrNoCamera)
	_, err = h.r.RenderScene(nil)
	assert.ErrorIs(t, err, ErrNoScene)

	assert.Empty(t, h.dev.Calls)
}

func TestFrameStats(t *testing.T) {
	h := newHarness(t, nil)
	stats := h.frame(t)

	assert.Equal(t, uint64(1), stats.Frame)
	assert.Equal(t, 1, stats.ShadowPasses)
	assert.Equal(t, 1, stats.PostPasses)
	// Two casters, two lit meshes, one tone map.
	assert.Equal(t, 5, stats.DrawCalls)
	assert.Equal(t, 5, h.dev.Count(gputest.OpDraw))
	assert.Empty(t, stats.Diagnostics)
	assert.Zero(t, h.dev.InvalidUses)
	assert.Equal(t, stats, h.r.LastStats())

	last := h.dev.Draws[len(h.dev.Draws)-1]
	assert.Equal(t, gpu.Screen, last.State.Target)
	assert.Equal(t, int32(64), last.State.Viewport.Width)
}

func TestSecondFrameUploadsNothing(t *testing.T) {
	h := newHarness(t, nil)
	h.frame(t)
	meshes := h.dev.Count(gputest.OpCreateMesh)
	programs := h.dev.Count(gputest.OpCompileProgram)
	require.Positive(t, meshes)

	stats := h.frame(t)
	assert.Equal(t, meshes, h.dev.Count(gputest.OpCreateMesh))
	assert.Equal(t, programs, h.dev.Count(gputest.OpCompileProgram))
	assert.Zero(t, stats.Cache.Uploads)
	assert.InDelta(t, 1, stats.CacheHitRate, 1e-9)
	assert.Equal(t, uint64(2), stats.Frame)
}

func TestNoPostProcessRendersToScreen(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.PostProcess = nil
		c.Shadows = false
	})
	stats := h.frame(t)

	assert.Zero(t, stats.PostPasses)
	assert.Zero(t, stats.ShadowPasses)
	require.Len(t, h.dev.Draws, 2)
	for _, d := range h.dev.Draws {
		assert.Equal(t, gpu.Screen, d.State.Target)
	}
}

func TestContextLossAtFrameStart(t *testing.T) {
	h := newHarness(t, nil)
	h.frame(t)
	h.dev.ResetCalls()

	h.dev.Lose()
	_, err := h.r.RenderFrame(h.root, h.camera)
	require.ErrorIs(t, err, gpu.ErrContextLost)
	assert.Zero(t, h.dev.Count(gputest.OpDraw))

	h.dev.Restore()
	h.dev.ResetCalls()
	h.dev.InvalidUses = 0
	stats := h.frame(t)

	// Box, ground and the fullscreen triangle come back.
	assert.Equal(t, 3, h.dev.Count(gputest.OpCreateMesh))
	assert.Positive(t, h.dev.Count(gputest.OpCompileProgram))
	assert.Equal(t, 5, stats.DrawCalls)
	assert.Zero(t, h.dev.InvalidUses)
}

func TestContextLossMidFrame(t *testing.T) {
	h := newHarness(t, nil)
	h.frame(t)

	late := scene.NewMeshNode("late", scene.NewGeometry("late").SetPositions([]math.Vec3{{}, {X: 1}, {Y: 1}}),
		scene.NewMaterial("flat", scene.UnlitParams{Color: core.ColorWhite}))
	h.root.AddChild(late)
	h.dev.FailAlloc = func(label string) bool {
		if label == "late" {
			h.dev.Lose()
		}
		return false
	}

	_, err := h.r.RenderFrame(h.root, h.camera)
	require.ErrorIs(t, err, gpu.ErrContextLost)

	h.dev.FailAlloc = nil
	h.dev.Restore()
	h.dev.ResetCalls()
	h.dev.InvalidUses = 0

	stats := h.frame(t)
	assert.Equal(t, 4, h.dev.Count(gputest.OpCreateMesh))
	assert.Zero(t, h.dev.InvalidUses)
	assert.Empty(t, diagnostics(stats, DiagResource))
}

func TestAllocFailureSkip(t *testing.T) {
	h := newHarness(t, nil)
	h.dev.FailAlloc = func(label string) bool { return label == "Box" }

	stats := h.frame(t)
	res := diagnostics(stats, DiagResource)
	require.NotEmpty(t, res)
	for _, d := range res {
		assert.Equal(t, "box", d.Subject)
		assert.ErrorIs(t, d.Err, gpu.ErrOutOfMemory)
	}
	// The ground still casts, is still lit, and the tone map still runs.
	assert.Equal(t, 3, stats.DrawCalls)
}

func TestAllocFailureAbandon(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.AllocFailure = AllocAbandon })
	h.dev.FailAlloc = func(label string) bool { return label == "Box" }

	_, err := h.r.RenderFrame(h.root, h.camera)
	require.Error(t, err)
	var re *cache.ResourceError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "geometry", re.Kind)
	assert.Zero(t, h.dev.Count(gputest.OpDraw))
	assert.Zero(t, h.dev.Count(gputest.OpClear))

	// The next frame is unaffected once memory is back.
	h.dev.FailAlloc = nil
	stats := h.frame(t)
	assert.Equal(t, 5, stats.DrawCalls)
}

func TestShaderFailureIsDiagnostic(t *testing.T) {
	h := newHarness(t, nil)
	h.dev.FailCompile = func(label string) bool { return strings.HasPrefix(label, "lambert") }

	stats := h.frame(t)
	shaders := diagnostics(stats, DiagShader)
	require.Len(t, shaders, 1)
	assert.True(t, strings.HasPrefix(shaders[0].Subject, "lambert["), shaders[0].Subject)
	assert.Equal(t, 5, stats.DrawCalls)

	// Reported once, not every frame.
	stats = h.frame(t)
	assert.Empty(t, diagnostics(stats, DiagShader))
}

func TestUploadQueueHandsOffPixels(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Shadows = false })
	tex := scene.NewPendingTexture("late")
	h.box.Renderable.Material = scene.NewMaterial("mapped", scene.UnlitParams{Color: core.ColorWhite, Map: tex})

	h.frame(t)
	require.False(t, tex.Ready())

	done := make(chan struct{})
	go func() {
		h.r.Uploads().Publish(Upload{Texture: tex, Width: 1, Height: 1, Pixels: []byte{255, 0, 0, 255}})
		close(done)
	}()
	<-done
	assert.Equal(t, 1, h.r.Uploads().Len())

	h.dev.ResetCalls()
	stats := h.frame(t)
	assert.True(t, tex.Ready())
	assert.Zero(t, h.r.Uploads().Len())
	assert.Equal(t, 1, h.dev.Count(gputest.OpCreateTexture))
	assert.Equal(t, uint64(1), stats.Cache.Uploads)
}

func TestFailedUploadIsDiagnostic(t *testing.T) {
	h := newHarness(t, nil)
	tex := scene.NewPendingTexture("broken.png")
	require.True(t, h.r.Uploads().TryPublish(Upload{Texture: tex, Err: errors.New("unexpected EOF")}))

	stats := h.frame(t)
	up := diagnostics(stats, DiagUpload)
	require.Len(t, up, 1)
	assert.Equal(t, "broken.png", up[0].Subject)
	assert.False(t, tex.Ready())
}

func TestTooManyShadowLightsReported(t *testing.T) {
	h := newHarness(t, nil)
	// Each point light takes six slots.
	for i := range 2 {
		l := scene.NewPointLight(core.ColorWhite, 1, 20)
		l.CastShadow = true
		n := scene.NewLightNode("bulb", l)
		n.SetPosition(math.Vec3{X: float32(i*4 - 2), Y: 3})
		h.root.AddChild(n)
	}

	stats := h.frame(t)
	shadows := diagnostics(stats, DiagShadow)
	require.Len(t, shadows, 1)
	assert.ErrorContains(t, shadows[0].Err, "exceed")
	assert.Equal(t, 7, stats.ShadowPasses)
}

func TestDisposeGeometry(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Shadows = false })
	h.frame(t)

	h.root.RemoveChild(h.box)
	assert.True(t, h.r.DisposeGeometry(h.box.Renderable.Geometry))
	h.frame(t)
	assert.Equal(t, 1, h.dev.Count(gputest.OpDeleteMesh))
}

func TestIdleEviction(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.Shadows = false
		c.PostProcess = nil
		c.IdleEvictionFrames = 1
	})
	h.frame(t)
	h.root.RemoveChild(h.box)

	h.frame(t)
	geometries, _, _ := h.r.Resources().Resident()
	assert.Equal(t, 2, geometries)

	h.frame(t)
	geometries, _, _ = h.r.Resources().Resident()
	assert.Equal(t, 1, geometries)
	assert.Equal(t, 1, h.dev.Count(gputest.OpDeleteMesh))
}

func TestResize(t *testing.T) {
	h := newHarness(t, nil)
	h.frame(t)

	h.r.Resize(128, 32)
	h.r.Resize(0, 10)
	h.frame(t)
	last := h.dev.Draws[len(h.dev.Draws)-1]
	assert.Equal(t, core.Rect{Width: 128, Height: 32}, last.State.Viewport)
}

func TestDestroyFreesEverything(t *testing.T) {
	h := newHarness(t, nil)
	h.frame(t)
	h.r.Destroy()

	meshes, textures, programs, targets := h.dev.Live()
	assert.Zero(t, meshes)
	assert.Zero(t, textures)
	assert.Zero(t, programs)
	assert.Zero(t, targets)
}

func TestRenderScene(t *testing.T) {
	h := newHarness(t, nil)
	s := scene.NewScene()
	s.Root = h.root
	s.Camera = h.camera
	s.Environment.Background = core.Color{R: 1, A: 1}

	_, err := h.r.RenderScene(s)
	require.NoError(t, err)
	assert.Equal(t, s.Environment, h.r.Environment())
}

func TestSkyAndSSAO(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.Shadows = false
		c.PostProcess = []PassConfig{{Name: "ssao", Params: map[string]float64{"strength": 0.5}}, {Name: "tonemap"}}
	})
	s := scene.NewScene()
	s.Root = h.root
	s.Camera = h.camera
	s.Environment.Sky = scene.NewSky()

	stats, err := h.r.RenderScene(s)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.PostPasses)

	var labels []string
	var raw gputest.DrawRecord
	for _, d := range h.dev.Draws {
		src, _ := h.dev.ProgramSource(d.State.Program)
		labels = append(labels, src.Label)
		if src.Label == "custom:post:ssao" {
			raw = d
		}
	}
	require.NotEmpty(t, labels)
	assert.Equal(t, "custom:sky", labels[0])
	assert.Equal(t, gpu.Mat4(h.camera.ProjectionMatrix()), raw.Uniforms["uProjection"])
	assert.Equal(t, gpu.Float(0.5), h.dev.Draws[len(h.dev.Draws)-2].Uniforms["uStrength"])

	h.r.Destroy()
	meshes, textures, programs, targets := h.dev.Live()
	assert.Zero(t, meshes+textures+programs+targets)
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllocFailure = "retry"
	_, err := New(gputest.New(), cfg)
	assert.ErrorContains(t, err, "alloc_failure")
}
