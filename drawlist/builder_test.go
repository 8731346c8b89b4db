package drawlist

import (
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
	"scene-renderer/shader"
	"scene-renderer/state"
)

type harness struct {
	dev     *gputest.Device
	cache   *cache.Cache
	shaders *shader.Cache
	builder *Builder
	camera  *scene.Camera
	root    *scene.Node
}

func newHarness() *harness {
	dev := gputest.New()
	c := cache.New(dev, nil)
	s := shader.NewCache(dev, nil)
	cam := scene.NewCamera(math32.Pi/3, 1, 0.1, 100)
	return &harness{
		dev:     dev,
		cache:   c,
		shaders: s,
		builder: NewBuilder(c, s, nil),
		camera:  cam,
		root:    scene.NewNode("root"),
	}
}

func (h *harness) add(name string, g *scene.Geometry, m *scene.Material, pos math.Vec3) *scene.Node {
	n := scene.NewMeshNode(name, g, m)
	n.SetPosition(pos)
	h.root.AddChild(n)
	return n
}

func (h *harness) build(t *testing.T, opts Options) *List {
	t.Helper()
	list, err := h.builder.Build(h.root, h.camera, opts)
	require.NoError(t, err)
	return list
}

func names(cmds []Command) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.Node.Name
	}
	return out
}

func at(z float32) math.Vec3 { return math.Vec3{Z: -z} }

func TestTransparentBackToFront(t *testing.T) {
	h := newHarness()
	box := scene.CreateBox(0.1, 0.1, 0.1)
	glass := scene.NewTransparentMaterial("glass", scene.UnlitParams{Color: core.Color{R: 1, A: 0.5}})
	h.add("d5", box, glass, at(5))
	h.add("d1", box, glass, at(1))
	h.add("d3", box, glass, at(3))

	list := h.build(t, Options{})
	assert.Empty(t, list.Opaque)
	assert.Equal(t, []string{"d5", "d3", "d1"}, names(list.Transparent))
	assert.InDelta(t, 5, list.Transparent[0].Depth, 1e-4)
}

func TestTransparentDepthBeatsProgramGrouping(t *testing.T) {
	h := newHarness()
	box := scene.CreateBox(0.1, 0.1, 0.1)
	a := scene.NewTransparentMaterial("a", scene.UnlitParams{Color: core.ColorWhite})
	b := scene.NewTransparentMaterial("b", scene.LambertParams{Color: core.ColorWhite})
	h.add("a4", box, a, at(4))
	h.add("b3", box, b, at(3))
	h.add("a2", box, a, at(2))

	list := h.build(t, Options{})
	assert.Equal(t, []string{"a4", "b3", "a2"}, names(list.Transparent))
}

func TestOpaqueGroupedByProgramThenMeshThenDepth(t *testing.T) {
	h := newHarness()
	boxA := scene.CreateBox(0.1, 0.1, 0.1)
	boxB := scene.CreateBox(0.2, 0.2, 0.2)
	lambert := scene.NewMaterial("l", scene.LambertParams{Color: core.ColorWhite})
	unlit := scene.NewMaterial("u", scene.UnlitParams{Color: core.ColorWhite})

	h.add("l-a-far", boxA, lambert, at(9))
	h.add("u-b", boxB, unlit, at(2))
	h.add("l-b", boxB, lambert, at(1))
	h.add("l-a-near", boxA, lambert, at(3))

	list := h.build(t, Options{})
	require.Len(t, list.Opaque, 4)

	seen := map[gpu.Program]bool{}
	var last gpu.Program
	for _, c := range list.Opaque {
		if c.Program.Handle != last {
			assert.False(t, seen[c.Program.Handle], "program groups must be contiguous")
			seen[c.Program.Handle] = true
			last = c.Program.Handle
		}
	}
	idx := map[string]int{}
	for i, n := range names(list.Opaque) {
		idx[n] = i
	}
	assert.Less(t, idx["l-a-near"], idx["l-a-far"])
	assert.Equal(t, 1, abs(idx["l-a-near"]-idx["l-a-far"]))
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func TestOpaqueOrderIndependentOfTraversalOrder(t *testing.T) {
	build := func(order []int) []string {
		h := newHarness()
		box := scene.CreateBox(0.1, 0.1, 0.1)
		mats := []*scene.Material{
			scene.NewMaterial("u", scene.UnlitParams{Color: core.ColorWhite}),
			scene.NewMaterial("l", scene.LambertParams{Color: core.ColorWhite}),
		}
		// Warm the caches in a fixed order so handles do not depend on the
		// traversal order under test.
		_, err := h.cache.AcquireGeometry(box)
		require.NoError(t, err)
		for _, m := range mats {
			_, err := h.shaders.GetFor(m, 0)
			require.NoError(t, err)
		}
		for _, i := range order {
			h.add(string(rune('a'+i)), box, mats[i%2], at(float32(i+1)))
		}
		list := h.build(t, Options{})
		return names(list.Commands())
	}
	want := build([]int{0, 1, 2, 3, 4})
	assert.Equal(t, want, build([]int{4, 2, 0, 3, 1}))
	assert.Equal(t, want, build([]int{3, 4, 1, 0, 2}))
}

func TestDegenerateGeometrySkipped(t *testing.T) {
	h := newHarness()
	m := scene.NewMaterial("m", scene.UnlitParams{Color: core.ColorWhite})
	h.add("empty", scene.NewGeometry("empty"), m, at(2))
	flat := scene.NewGeometry("line-of-triangles").
		SetPositions([]math.Vec3{{X: 0}, {X: 1}, {X: 2}})
	h.add("flat", flat, m, at(2))
	h.add("nil", nil, m, at(2))
	h.add("ok", scene.CreateBox(1, 1, 1), m, at(2))

	list := h.build(t, Options{})
	assert.Equal(t, 3, list.Skipped)
	assert.Equal(t, []string{"ok"}, names(list.Commands()))
	assert.Equal(t, 1, h.dev.Count(gputest.OpCreateMesh))
}

func TestFrustumCulling(t *testing.T) {
	h := newHarness()
	m := scene.NewMaterial("m", scene.UnlitParams{Color: core.ColorWhite})
	box := scene.CreateBox(1, 1, 1)
	h.add("front", box, m, at(5))
	h.add("behind", box, m, math.Vec3{Z: 10})
	h.add("far", box, m, at(500))

	list := h.build(t, Options{Cull: true})
	assert.Equal(t, 2, list.Culled)
	assert.Equal(t, []string{"front"}, names(list.Commands()))

	list = h.build(t, Options{Cull: false})
	assert.Zero(t, list.Culled)
	assert.Equal(t, 3, list.Len())
}

func TestInvisibleSubtreeIgnored(t *testing.T) {
	h := newHarness()
	m := scene.NewMaterial("m", scene.UnlitParams{Color: core.ColorWhite})
	group := scene.NewNode("group")
	group.Visible = false
	h.root.AddChild(group)
	group.AddChild(scene.NewMeshNode("child", scene.CreateBox(1, 1, 1), m))
	group.AddChild(scene.NewLightNode("lamp", scene.NewPointLight(core.ColorWhite, 1, 10)))

	list := h.build(t, Options{})
	assert.Zero(t, list.Len())
	assert.Empty(t, list.Lights)
}

func TestLightsCollectedOnceAndShared(t *testing.T) {
	h := newHarness()
	m := scene.NewMaterial("m", scene.LambertParams{Color: core.ColorWhite})
	h.add("a", scene.CreateBox(1, 1, 1), m, at(3))
	h.add("b", scene.CreateBox(1, 1, 1), m, at(4))
	sun := scene.NewLightNode("sun", scene.NewDirectionalLight(core.ColorWhite, 2))
	h.root.AddChild(sun)
	lamp := scene.NewLightNode("lamp", scene.NewPointLight(core.Color{R: 1, A: 1}, 1, 10))
	lamp.SetPosition(math.Vec3{Y: 3})
	h.add("c", scene.CreateBox(1, 1, 1), m, at(5)).AddChild(lamp)

	list := h.build(t, Options{})
	require.Len(t, list.Lights, 2)
	assert.Same(t, sun, list.Lights[0].Node)

	tr := state.New(h.dev)
	require.NoError(t, Execute(tr, list))
	require.Len(t, h.dev.Draws, 3)
	for _, d := range h.dev.Draws {
		assert.Equal(t, gpu.Int(2), d.Uniforms["uLightCount"])
		assert.Equal(t, gpu.Int(shader.LightPoint), d.Uniforms["uLightType[1]"])
		assert.Equal(t, gpu.Vec3(math.Vec3{X: 2, Y: 2, Z: 2}), d.Uniforms["uLightColor[0]"])
		assert.Equal(t, gpu.Int(-1), d.Uniforms["uLightShadow[0]"])
	}
	// The point light sits 3 above the box at z=-5.
	assert.Equal(t, gpu.Vec3(math.Vec3{Y: 3, Z: -5}), h.dev.Draws[0].Uniforms["uLightPosition[1]"])
}

func TestExecuteSharedBindingsOnce(t *testing.T) {
	h := newHarness()
	tex := scene.NewSolidTexture("white", 255, 255, 255, 255)
	m := scene.NewMaterial("m", scene.UnlitParams{Color: core.ColorWhite, Map: tex})
	box := scene.CreateBox(1, 1, 1)
	const n = 8
	for i := 0; i < n; i++ {
		h.add("box", box, m, at(float32(i+2)))
	}

	list := h.build(t, Options{})
	h.dev.ResetCalls()
	tr := state.New(h.dev)
	require.NoError(t, Execute(tr, list))

	assert.Equal(t, 1, h.dev.Count(gputest.OpUseProgram))
	assert.Equal(t, 1, h.dev.Count(gputest.OpBindTexture))
	assert.Equal(t, n, h.dev.Count(gputest.OpDraw))
	assert.Zero(t, h.dev.InvalidUses)

	// Per-object model matrices still reach every draw.
	for i, d := range h.dev.Draws {
		model := d.Uniforms["uModel"]
		assert.InDelta(t, -float32(i+2), model.F[14], 1e-5)
	}
}

func TestMaterialUniformsAndSamplers(t *testing.T) {
	h := newHarness()
	tex := scene.NewSolidTexture("n", 128, 128, 255, 255)
	m := scene.NewMaterial("pbr", scene.PBRParams{BaseColor: core.ColorWhite, Metallic: 0.25, Roughness: 0.5, NormalMap: tex})
	h.add("a", scene.CreateBox(1, 1, 1), m, at(3))

	list := h.build(t, Options{})
	require.Equal(t, 1, list.Len())
	cmd := list.Opaque[0]
	assert.Equal(t, scene.FlagNormalMap, cmd.Program.Key.Flags)
	require.Len(t, cmd.Textures, 1)
	assert.Equal(t, shader.UnitNormal, cmd.Textures[0].Unit)

	tr := state.New(h.dev)
	require.NoError(t, Execute(tr, list))
	d := h.dev.Draws[0]
	assert.Equal(t, gpu.Float(0.25), d.Uniforms["uMetallic"])
	assert.Equal(t, gpu.Int(shader.UnitNormal), d.Uniforms["uNormalMap"])
	assert.Equal(t, cmd.Textures[0].Texture, d.State.Textures[shader.UnitNormal])
}

func TestVertexColorDroppedWithoutColors(t *testing.T) {
	h := newHarness()
	m := scene.NewMaterial("vc", scene.UnlitParams{Color: core.ColorWhite, Surface: scene.Surface{VertexColors: true}})
	h.add("plain", scene.CreateBox(1, 1, 1), m, at(2))
	grid := scene.NewGridNode(4, 4)
	grid.Name = "grid"
	grid.SetPosition(at(3))
	h.root.AddChild(grid)

	list := h.build(t, Options{})
	byName := map[string]Command{}
	for _, c := range list.Commands() {
		byName[c.Node.Name] = c
	}
	assert.False(t, byName["plain"].Program.Key.Flags.Has(scene.FlagVertexColor))
	assert.True(t, byName["grid"].Program.Key.Flags.Has(scene.FlagVertexColor))
}

func TestSkinnedDrawsUploadJoints(t *testing.T) {
	h := newHarness()
	box := scene.CreateBox(1, 1, 1)
	joints := make([][4]float32, box.VertexCount())
	weights := make([][4]float32, box.VertexCount())
	for i := range weights {
		weights[i] = [4]float32{1, 0, 0, 0}
	}
	box.SetSkinning(joints, weights)
	n := h.add("skinned", box, scene.DefaultMaterial(), at(3))
	n.Skin = &scene.Skin{Joints: []math.Mat4{math.Mat4Identity(), math.Mat4Translation(math.Vec3{X: 1})}}

	list := h.build(t, Options{})
	cmd := list.Opaque[0]
	assert.True(t, cmd.Program.Key.Flags.Has(scene.FlagSkinning))
	var found int
	for _, u := range cmd.Uniforms {
		if u.Name == "uJoints[0]" || u.Name == "uJoints[1]" {
			found++
		}
	}
	assert.Equal(t, 2, found)
}

func TestReceiveShadowsOnlyWithShadowMaps(t *testing.T) {
	h := newHarness()
	lit := scene.NewMaterial("l", scene.LambertParams{Color: core.ColorWhite})
	unlit := scene.NewMaterial("u", scene.UnlitParams{Color: core.ColorWhite})
	h.add("lit", scene.CreateBox(1, 1, 1), lit, at(2))
	h.add("unlit", scene.CreateBox(1, 1, 1), unlit, at(3))
	shy := h.add("shy", scene.CreateBox(1, 1, 1), lit, at(4))
	shy.ReceiveShadow = false
	sun := scene.NewDirectionalLight(core.ColorWhite, 1)
	h.root.AddChild(scene.NewLightNode("sun", sun))

	list := h.build(t, Options{})
	for _, c := range list.Commands() {
		assert.False(t, c.Program.Key.Flags.Has(scene.FlagReceiveShadows))
	}

	shadowTex, err := h.dev.CreateTexture(gpu.TextureDesc{Label: "shadow", Width: 4, Height: 4, Format: gpu.FormatDepth24}, nil)
	require.NoError(t, err)
	list = h.build(t, Options{
		Shadows:     []ShadowMap{{Light: sun, Matrix: math.Mat4Identity(), Texture: shadowTex, Bias: 0.01}},
		ShadowTexel: 0.25,
	})
	got := map[string]bool{}
	for _, c := range list.Commands() {
		got[c.Node.Name] = c.Program.Key.Flags.Has(scene.FlagReceiveShadows)
	}
	assert.Equal(t, map[string]bool{"lit": true, "unlit": false, "shy": false}, got)
	require.Len(t, list.Frame.Textures, 1)
	assert.Equal(t, TextureBinding{Unit: shader.ShadowUnit(0), Texture: shadowTex}, list.Frame.Textures[0])

	h.dev.ResetCalls()
	tr := state.New(h.dev)
	require.NoError(t, Execute(tr, list))
	for _, d := range h.dev.Draws {
		if u, ok := d.Uniforms["uLightShadow[0]"]; ok {
			assert.Equal(t, gpu.Int(0), u)
		}
		assert.Equal(t, shadowTex, d.State.Textures[shader.ShadowUnit(0)])
	}

	// No texture or uniform reaches the device before a program is bound.
	for _, c := range h.dev.Calls {
		if c.Op == gputest.OpUseProgram {
			break
		}
		assert.NotContains(t, []string{gputest.OpBindTexture, gputest.OpSetUniform, gputest.OpDraw}, c.Op)
	}
}

func TestDepthPassPolicies(t *testing.T) {
	h := newHarness()
	box := scene.CreateBox(1, 1, 1)
	h.add("solid", box, scene.DefaultMaterial(), at(2))
	tex := scene.NewSolidTexture("leaf", 0, 255, 0, 128)
	glass := scene.NewTransparentMaterial("glass", scene.UnlitParams{Color: core.ColorWhite, Map: tex})
	h.add("glass", box, glass, at(3))
	hidden := h.add("noshadow", box, scene.DefaultMaterial(), at(4))
	hidden.CastShadow = false
	h.add("points", scene.CreatePoints("pts", []math.Vec3{{}, {X: 1}}), scene.NewMaterial("p", scene.PointParams{Size: 2}), at(2))

	shadowState := gpu.OpaqueState()
	shadowState.PolygonOffset = gpu.PolygonOffset{Enabled: true, Factor: 2, Units: 4}

	list := h.build(t, Options{Pass: PassDepth, State: &shadowState})
	assert.Equal(t, []string{"solid"}, names(list.Commands()))
	assert.Empty(t, list.Transparent)
	assert.Equal(t, scene.KindDepth, list.Opaque[0].Program.Key.Kind)
	assert.Equal(t, shadowState, list.Opaque[0].State)

	list = h.build(t, Options{Pass: PassDepth, Transparent: TransparentAlphaTest, State: &shadowState})
	require.Equal(t, 2, list.Len())
	assert.Empty(t, list.Transparent, "depth lists have no blended bucket")
	var glassCmd Command
	for _, c := range list.Commands() {
		if c.Node.Name == "glass" {
			glassCmd = c
		}
	}
	require.NotNil(t, glassCmd.Program)
	assert.Equal(t, scene.FlagAlphaTest|scene.FlagAlbedoMap, glassCmd.Program.Key.Flags)
	assert.Contains(t, glassCmd.Uniforms, gpu.Uniform{Name: "uAlphaCutoff", Value: gpu.Float(DefaultAlphaCutoff)})
}

func TestAllocationFailurePolicies(t *testing.T) {
	h := newHarness()
	m := scene.NewMaterial("m", scene.UnlitParams{Color: core.ColorWhite})
	bad := scene.CreateBox(1, 1, 1)
	bad.Name = "huge"
	h.add("ok", scene.CreateBox(1, 1, 1), m, at(2))
	h.add("bad", bad, m, at(3))
	h.dev.FailAlloc = func(label string) bool { return label == "huge" }

	list := h.build(t, Options{})
	assert.Equal(t, []string{"ok"}, names(list.Commands()))
	require.Len(t, list.Failures, 1)
	assert.Equal(t, "bad", list.Failures[0].Node.Name)
	assert.ErrorIs(t, list.Failures[0].Err, gpu.ErrOutOfMemory)

	_, err := h.builder.Build(h.root, h.camera, Options{AbandonOnFailure: true})
	var re *cache.ResourceError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "huge", re.Name)
}

func TestContextLossFailsBuild(t *testing.T) {
	h := newHarness()
	h.add("a", scene.CreateBox(1, 1, 1), scene.DefaultMaterial(), at(2))
	h.dev.Lose()

	_, err := h.builder.Build(h.root, h.camera, Options{})
	assert.ErrorIs(t, err, gpu.ErrContextLost)
}

func TestTooManyLightsTruncated(t *testing.T) {
	h := newHarness()
	for i := 0; i < shader.MaxLights+3; i++ {
		h.root.AddChild(scene.NewLightNode("l", scene.NewPointLight(core.ColorWhite, 1, 5)))
	}
	list := h.build(t, Options{})
	assert.Len(t, list.Lights, shader.MaxLights)
}

func TestSkyDrawsFirstAndIsNeverCulled(t *testing.T) {
	h := newHarness()
	box := scene.CreateBox(1, 1, 1)
	h.add("near", box, scene.DefaultMaterial(), at(2))
	h.add("far", box, scene.DefaultMaterial(), at(8))
	h.camera.SetPosition(math.Vec3{X: 500})
	h.camera.LookAt(math.Vec3{X: 500, Z: -10}, math.Vec3Up)
	h.root.Find("near").SetPosition(math.Vec3{X: 500, Z: -2})
	h.root.Find("far").SetPosition(math.Vec3{X: 500, Z: -8})

	sky := scene.NewSky()
	sky.Zenith = core.Color{B: 1, A: 1}
	env := scene.DefaultEnvironment()
	env.Sky = sky

	list := h.build(t, Options{Cull: true, Environment: env})
	require.Equal(t, []string{"sky", "near", "far"}, names(list.Opaque))
	assert.Zero(t, list.Culled)
	cmd := list.Opaque[0]
	assert.Equal(t, scene.KindCustom, cmd.Program.Key.Kind)
	assert.Equal(t, scene.SkyState(), cmd.State)

	tr := state.New(h.dev)
	require.NoError(t, Execute(tr, list))
	first := h.dev.Draws[0]
	assert.Equal(t, gpu.Vec3(math.Vec3{Z: 1}), first.Uniforms["uZenith"])
	assert.Contains(t, first.Uniforms, "uView")
	assert.False(t, first.State.Render.Depth.Write)

	depth := h.build(t, Options{Pass: PassDepth, Environment: env})
	assert.Equal(t, []string{"near", "far"}, names(depth.Commands()))
}
