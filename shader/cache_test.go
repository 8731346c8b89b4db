package shader

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scene-renderer/core"
	"scene-renderer/gpu"
	"scene-renderer/gpu/gputest"
	"scene-renderer/scene"
)

func TestSameKindAndFlagsShareProgram(t *testing.T) {
	dev := gputest.New()
	c := NewCache(dev, nil)

	red := scene.NewMaterial("red", scene.PBRParams{BaseColor: core.Color{R: 1, A: 1}, Roughness: 0.2})
	blue := scene.NewMaterial("blue", scene.PBRParams{BaseColor: core.Color{B: 1, A: 1}, Metallic: 1})

	p1, err := c.GetFor(red, 0)
	require.NoError(t, err)
	p2, err := c.GetFor(blue, 0)
	require.NoError(t, err)

	assert.Same(t, p1, p2)
	assert.Equal(t, p1.Handle, p2.Handle)
	assert.Equal(t, 1, dev.Count(gputest.OpCompileProgram))
}

func TestDifferentFlagsCompileSeparately(t *testing.T) {
	dev := gputest.New()
	c := NewCache(dev, nil)

	plain := scene.NewMaterial("plain", scene.LambertParams{Color: core.ColorWhite})
	mapped := scene.NewMaterial("mapped", scene.LambertParams{Color: core.ColorWhite, Map: scene.NewSolidTexture("t", 255, 255, 255, 255)})

	p1, err := c.GetFor(plain, 0)
	require.NoError(t, err)
	p2, err := c.GetFor(mapped, 0)
	require.NoError(t, err)
	p3, err := c.GetFor(plain, scene.FlagReceiveShadows)
	require.NoError(t, err)

	assert.NotEqual(t, p1.Handle, p2.Handle)
	assert.NotEqual(t, p1.Handle, p3.Handle)
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, 3, dev.Count(gputest.OpCompileProgram))
}

func TestSourceCarriesFlagDefines(t *testing.T) {
	dev := gputest.New()
	c := NewCache(dev, nil)

	p, err := c.Get(Key{Kind: scene.KindPBR, Flags: scene.FlagNormalMap | scene.FlagFog})
	require.NoError(t, err)

	src, ok := dev.ProgramSource(p.Handle)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(src.Vertex, "#version 410 core"))
	assert.Contains(t, src.Fragment, "#define NORMAL_MAP\n")
	assert.Contains(t, src.Fragment, "#define FOG\n")
	assert.Contains(t, src.Fragment, "#define KIND_PBR\n")
	assert.NotContains(t, src.Fragment, "#define ALBEDO_MAP")
	assert.Equal(t, "pbr[NORMAL_MAP|FOG]", src.Label)
}

func TestCompileFailureFallsBackToErrorProgram(t *testing.T) {
	dev := gputest.New()
	dev.FailCompile = func(label string) bool { return strings.HasPrefix(label, "phong") }
	c := NewCache(dev, nil)

	p, err := c.Get(Key{Kind: scene.KindPhong})
	require.NoError(t, err)
	assert.True(t, p.Fallback)

	src, ok := dev.ProgramSource(p.Handle)
	require.True(t, ok)
	assert.Equal(t, "error", src.Label)
	assert.Contains(t, src.Fragment, "vec4(1.0, 0.0, 1.0, 1.0)")

	diags := c.TakeDiagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, scene.KindPhong, diags[0].Key.Kind)
	var ce *gpu.CompileError
	assert.ErrorAs(t, diags[0].Err, &ce)
	assert.Empty(t, c.TakeDiagnostics())

	// The failed variant is not retried every frame.
	before := dev.Count(gputest.OpCompileProgram)
	again, err := c.Get(Key{Kind: scene.KindPhong})
	require.NoError(t, err)
	assert.Same(t, p, again)
	assert.Equal(t, before, dev.Count(gputest.OpCompileProgram))

	// A second failing variant reuses the error program.
	other, err := c.Get(Key{Kind: scene.KindPhong, Flags: scene.FlagFog})
	require.NoError(t, err)
	assert.Equal(t, p.Handle, other.Handle)
}

func TestErrorProgramFailureIsReported(t *testing.T) {
	dev := gputest.New()
	dev.FailCompile = func(string) bool { return true }
	c := NewCache(dev, nil)

	_, err := c.Get(Key{Kind: scene.KindUnlit})
	assert.ErrorIs(t, err, ErrNoFallback)
}

func TestContextLossIsNotMaskedByFallback(t *testing.T) {
	dev := gputest.New()
	c := NewCache(dev, nil)
	dev.Lose()

	_, err := c.Get(Key{Kind: scene.KindUnlit})
	assert.ErrorIs(t, err, gpu.ErrContextLost)
	assert.Zero(t, c.Len())
	assert.Empty(t, c.TakeDiagnostics())
}

func TestInvalidateAllRecompiles(t *testing.T) {
	dev := gputest.New()
	c := NewCache(dev, nil)
	key := Key{Kind: scene.KindLambert}

	_, err := c.Get(key)
	require.NoError(t, err)

	dev.Lose()
	c.InvalidateAll()
	dev.Restore()
	dev.ResetCalls()

	p, err := c.Get(key)
	require.NoError(t, err)
	assert.Equal(t, 1, dev.Count(gputest.OpCompileProgram))
	assert.Zero(t, dev.Count(gputest.OpDeleteProgram))
	_, ok := dev.ProgramSource(p.Handle)
	assert.True(t, ok)
}

func TestCustomShaderKeyedByIdentity(t *testing.T) {
	dev := gputest.New()
	c := NewCache(dev, nil)

	cs := &scene.CustomShader{Name: "wave", Vertex: "void main() {}", Fragment: "#version 330 core\nvoid main() {}"}
	m1 := scene.NewMaterial("a", scene.CustomParams{Shader: cs})
	m2 := scene.NewMaterial("b", scene.CustomParams{Shader: cs, Values: []gpu.Uniform{{Name: "uTime", Value: gpu.Float(1)}}})

	p1, err := c.GetFor(m1, scene.FlagSkinning)
	require.NoError(t, err)
	p2, err := c.GetFor(m2, 0)
	require.NoError(t, err)
	assert.Same(t, p1, p2)

	src, _ := dev.ProgramSource(p1.Handle)
	assert.True(t, strings.HasPrefix(src.Vertex, "#version 410 core"))
	assert.True(t, strings.HasPrefix(src.Fragment, "#version 330 core"))
	assert.Equal(t, "custom:wave", src.Label)
}

func TestLocationsAreCached(t *testing.T) {
	dev := gputest.New()
	c := NewCache(dev, nil)
	p, err := c.Get(Key{Kind: scene.KindUnlit})
	require.NoError(t, err)

	a := p.Location("uColor")
	b := p.Location("uModel")
	assert.Equal(t, a, p.Location("uColor"))
	assert.NotEqual(t, a, b)
	assert.Len(t, p.locations, 2)
}

func TestDestroyDeletesEachProgramOnce(t *testing.T) {
	dev := gputest.New()
	dev.FailCompile = func(label string) bool { return strings.HasPrefix(label, "sprite") }
	c := NewCache(dev, nil)

	for _, k := range []Key{{Kind: scene.KindUnlit}, {Kind: scene.KindSprite}, {Kind: scene.KindSprite, Flags: scene.FlagFog}} {
		_, err := c.Get(k)
		require.NoError(t, err)
	}
	c.Destroy()

	assert.Equal(t, 2, dev.Count(gputest.OpDeleteProgram))
	assert.Zero(t, dev.InvalidUses)
	_, _, programs, _ := dev.Live()
	assert.Zero(t, programs)
}

func TestSynthesizeEveryBuiltinKind(t *testing.T) {
	for _, kind := range []scene.Kind{
		scene.KindUnlit, scene.KindLambert, scene.KindPhong, scene.KindPBR,
		scene.KindLine, scene.KindPoint, scene.KindSprite, scene.KindDepth,
	} {
		src, err := Synthesize(kind, scene.FlagAlbedoMap|scene.FlagAlphaTest)
		require.NoError(t, err, kind)
		assert.Contains(t, src.Vertex, "void main()", kind)
		assert.Contains(t, src.Fragment, "void main()", kind)
	}
	_, err := Synthesize(scene.KindCustom, 0)
	assert.Error(t, err)
}

func TestMaterialUnits(t *testing.T) {
	tex := scene.NewSolidTexture("t", 255, 255, 255, 255)
	units := MaterialUnits([]scene.TextureSlot{
		{Sampler: "uNormalMap", Texture: tex},
		{Sampler: "uAlbedoMap", Texture: tex},
		{Sampler: "uNoise", Texture: tex},
	})
	assert.Equal(t, []int{UnitNormal, UnitAlbedo, UnitNormal + 1}, units)
	assert.Equal(t, 9, ShadowUnit(1))
	assert.Equal(t, "uLightColor[3]", Indexed("uLightColor", 3))
}
