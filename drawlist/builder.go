package drawlist

import (
	"cmp"
	"errors"
	"log/slog"
	"slices"

	"scene-renderer/cache"
	"scene-renderer/core"
	"scene-renderer/gpu"
	"scene-renderer/internal/logging"
	"scene-renderer/math"
	"scene-renderer/scene"
	"scene-renderer/shader"
)

// Options configure one Build.
type Options struct {
	Pass Pass
	// Cull drops renderables whose world bounds are outside the view
	// frustum.
	Cull bool
	// AbandonOnFailure makes a resource failure fail the whole Build
	// instead of dropping the affected renderable.
	AbandonOnFailure bool
	Viewport         core.Rect

	// Main pass inputs.
	Environment scene.Environment
	Shadows     []ShadowMap
	ShadowTexel float32

	// Depth pass inputs.
	Transparent TransparentPolicy
	// State replaces every command's render state when set.
	State *gpu.RenderState
}

// Builder keeps scratch buffers between frames. It is not safe for
// concurrent use.
type Builder struct {
	resources *cache.Cache
	shaders   *shader.Cache
	log       *slog.Logger

	items []item
}

type item struct {
	node     *scene.Node
	geometry *scene.Geometry
	material *scene.Material
	world    math.Mat4
	depth    float32
	// cutoff > 0 selects an alpha-tested depth program.
	cutoff float32
}

func NewBuilder(resources *cache.Cache, shaders *shader.Cache, log *slog.Logger) *Builder {
	return &Builder{resources: resources, shaders: shaders, log: logging.Component(log, "drawlist")}
}

var defaultMaterial = scene.DefaultMaterial()

// Build traverses the graph under root and returns the sorted commands for
// view. Context loss, and resource failures when AbandonOnFailure is set,
// are returned as errors; everything else degrades into counters.
func (b *Builder) Build(root *scene.Node, view scene.Viewer, opts Options) (*List, error) {
	viewM := view.ViewMatrix()
	projM := view.ProjectionMatrix()
	eye := view.EyePosition()
	list := &List{
		Pass:  opts.Pass,
		Frame: Frame{View: viewM, Projection: projM, Eye: eye},
	}

	var frustum scene.Frustum
	if opts.Cull {
		frustum = scene.FrustumFromVP(viewM.Mul(projM))
	}

	b.items = b.items[:0]
	root.Traverse(func(n *scene.Node) bool {
		if !n.Visible {
			return false
		}
		if n.Light != nil && opts.Pass == PassMain {
			list.Lights = append(list.Lights, scene.Resolve(n))
		}
		if n.Renderable == nil {
			return true
		}
		b.collect(list, n, eye, &frustum, opts)
		return true
	})

	if len(list.Lights) > shader.MaxLights {
		b.log.Warn("too many lights, extra lights ignored",
			slog.Int("lights", len(list.Lights)),
			slog.Int("max", shader.MaxLights))
		list.Lights = list.Lights[:shader.MaxLights]
	}
	b.frameUniforms(list, opts)

	for i := range b.items {
		cmd, err := b.resolve(&b.items[i], opts)
		if err != nil {
			if errors.Is(err, gpu.ErrContextLost) || opts.AbandonOnFailure {
				return nil, err
			}
			b.log.Warn("dropping renderable",
				slog.String("node", b.items[i].node.Name),
				slog.String("error", err.Error()))
			list.Failures = append(list.Failures, Failure{Node: b.items[i].node, Err: err})
			continue
		}
		if cmd.State.Transparent() && opts.Pass == PassMain {
			list.Transparent = append(list.Transparent, cmd)
		} else {
			list.Opaque = append(list.Opaque, cmd)
		}
	}

	sortOpaque(list.Opaque)
	sortTransparent(list.Transparent)

	if sky := opts.Environment.Sky; sky != nil && opts.Pass == PassMain {
		if err := b.addSky(list, sky, opts); err != nil {
			return nil, err
		}
	}

	if list.Skipped > 0 {
		b.log.Debug("skipped degenerate geometry", slog.Int("count", list.Skipped))
	}
	return list, nil
}

// addSky puts the sky in front of every other command. It follows the
// camera in the shader, so it is never culled.
func (b *Builder) addSky(list *List, sky *scene.Sky, opts Options) error {
	n := sky.Node()
	it := item{node: n, geometry: n.Renderable.Geometry, material: n.Renderable.Material, world: math.Mat4Identity()}
	cmd, err := b.resolve(&it, opts)
	if err != nil {
		if errors.Is(err, gpu.ErrContextLost) || opts.AbandonOnFailure {
			return err
		}
		list.Failures = append(list.Failures, Failure{Node: n, Err: err})
		return nil
	}
	list.Opaque = slices.Insert(list.Opaque, 0, cmd)
	return nil
}

func (b *Builder) collect(list *List, n *scene.Node, eye math.Vec3, frustum *scene.Frustum, opts Options) {
	g := n.Renderable.Geometry
	if g == nil || g.Degenerate() {
		list.Skipped++
		return
	}
	m := n.Renderable.Material
	if m == nil {
		m = defaultMaterial
	}

	it := item{node: n, geometry: g, material: m}
	if opts.Pass == PassDepth {
		if !n.CastShadow || !castsShadow(m.Kind()) {
			return
		}
		it.cutoff = m.AlphaCutoff()
		if m.Transparent() {
			if opts.Transparent == TransparentSkip {
				return
			}
			if it.cutoff <= 0 {
				it.cutoff = DefaultAlphaCutoff
			}
		}
	}

	it.world = n.WorldMatrix()
	bounds := scene.WorldBounds(g, it.world)
	if opts.Cull && !bounds.IntersectsFrustum(frustum) {
		list.Culled++
		return
	}
	it.depth = bounds.Center().Distance(eye)
	b.items = append(b.items, it)
}

// castsShadow excludes kinds whose depth variant would not match what the
// main pass draws.
func castsShadow(k scene.Kind) bool {
	switch k {
	case scene.KindLine, scene.KindPoint, scene.KindSprite, scene.KindCustom:
		return false
	}
	return true
}

func (b *Builder) frameUniforms(list *List, opts Options) {
	f := &list.Frame
	f.Uniforms = cameraUniforms(f.Uniforms, f.View, f.Projection, f.Eye)
	if opts.Pass == PassDepth {
		return
	}
	f.Uniforms = environmentUniforms(f.Uniforms, opts.Environment, opts.Viewport)

	shadows := opts.Shadows
	if len(shadows) > shader.MaxShadowMaps {
		shadows = shadows[:shader.MaxShadowMaps]
	}
	slots := make(map[*scene.Light]int, len(shadows))
	for i, s := range shadows {
		if _, ok := slots[s.Light]; !ok {
			slots[s.Light] = i
		}
	}
	f.Uniforms = lightUniforms(f.Uniforms, list.Lights, slots)
	f.Uniforms, f.Textures = shadowUniforms(f.Uniforms, shadows, opts.ShadowTexel)
}

func (b *Builder) resolve(it *item, opts Options) (Command, error) {
	g, m, n := it.geometry, it.material, it.node

	mesh, err := b.resources.AcquireGeometry(g)
	if err != nil {
		return Command{}, err
	}

	var key shader.Key
	var slots []scene.TextureSlot
	cmd := Command{
		Node:      n,
		Mesh:      mesh,
		Primitive: g.Mode,
		Count:     g.DrawCount(),
		Depth:     it.depth,
		State:     m.State,
	}
	cmd.Uniforms = append(cmd.Uniforms, gpu.Uniform{Name: "uModel", Value: gpu.Mat4(it.world)})

	skinned := n.Skin != nil && g.HasSkinning()
	if opts.Pass == PassDepth {
		key = shader.Key{Kind: scene.KindDepth}
		if it.cutoff > 0 {
			key.Flags |= scene.FlagAlphaTest
			cmd.Uniforms = append(cmd.Uniforms,
				gpu.Uniform{Name: "uColor", Value: gpu.Vec4(m.BaseColor())},
				gpu.Uniform{Name: "uAlphaCutoff", Value: gpu.Float(it.cutoff)},
			)
			if albedo := m.AlbedoMap(); albedo != nil {
				key.Flags |= scene.FlagAlbedoMap
				slots = []scene.TextureSlot{{Sampler: "uAlbedoMap", Texture: albedo}}
			}
		}
	} else {
		var extra scene.Flags
		if n.ReceiveShadow && m.Kind().Lit() && len(opts.Shadows) > 0 {
			extra |= scene.FlagReceiveShadows
		}
		key = shader.KeyFor(m, extra)
		if key.Kind != scene.KindCustom && !g.Layout().Has(gpu.AttrColor) {
			// Missing attributes read as black; drop the feature instead.
			key.Flags &^= scene.FlagVertexColor
		}
		if m.Params != nil {
			cmd.Uniforms = m.Params.AppendUniforms(cmd.Uniforms)
			slots = m.Params.Textures()
		}
	}
	if skinned && key.Kind != scene.KindCustom {
		key.Flags |= scene.FlagSkinning
		cmd.Uniforms = jointUniforms(cmd.Uniforms, n.Skin)
	}
	if opts.State != nil {
		cmd.State = *opts.State
	}

	units := shader.MaterialUnits(slots)
	for i, s := range slots {
		tex, err := b.resources.AcquireTexture(s.Texture)
		if err != nil {
			return Command{}, err
		}
		cmd.Textures = append(cmd.Textures, TextureBinding{Unit: units[i], Texture: tex})
		cmd.Uniforms = append(cmd.Uniforms, gpu.Uniform{Name: s.Sampler, Value: gpu.Int(int32(units[i]))})
	}

	prog, err := b.shaders.Get(key)
	if err != nil {
		return Command{}, err
	}
	cmd.Program = prog
	return cmd, nil
}

// sortOpaque groups by program then mesh to keep binds down, nearest first
// within a group.
func sortOpaque(cmds []Command) {
	slices.SortStableFunc(cmds, func(a, b Command) int {
		if c := cmp.Compare(a.Program.Handle, b.Program.Handle); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Mesh, b.Mesh); c != 0 {
			return c
		}
		return cmp.Compare(a.Depth, b.Depth)
	})
}

// sortTransparent is strictly back to front. Program and mesh only break
// exact depth ties.
func sortTransparent(cmds []Command) {
	slices.SortStableFunc(cmds, func(a, b Command) int {
		if c := cmp.Compare(b.Depth, a.Depth); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Program.Handle, b.Program.Handle); c != 0 {
			return c
		}
		return cmp.Compare(a.Mesh, b.Mesh)
	})
}
