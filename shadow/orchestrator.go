// Package shadow renders one depth map per shadow-casting light (six for
// point lights) before the main pass samples them.
package shadow

import (
	"fmt"
	"log/slog"

	"scene-renderer/cache"
	"scene-renderer/core"
	"scene-renderer/drawlist"
	"scene-renderer/gpu"
	"scene-renderer/internal/logging"
	"scene-renderer/math"
	"scene-renderer/scene"
	"scene-renderer/shader"
	"scene-renderer/state"
)

// MaxShadowSlots is the number of depth maps the main pass can sample in one
// frame.
const MaxShadowSlots = shader.MaxShadowMaps

// Defaults follow the usual directional shadow setup.
const (
	DefaultMapSize    int32   = 2048
	DefaultHalfExtent float32 = 40
)

type Config struct {
	MapSize int32
	// HalfExtent sizes the directional volume around the camera when the
	// scene has no shadow casters.
	HalfExtent float32
	// Bias is used for lights whose ShadowBias is zero.
	Bias        float32
	Transparent drawlist.TransparentPolicy
	Cull        bool
	// AbandonOnFailure propagates resource failures instead of dropping
	// the affected caster.
	AbandonOnFailure bool
}

func DefaultConfig() Config {
	return Config{MapSize: DefaultMapSize, HalfExtent: DefaultHalfExtent, Cull: true}
}

// Phase is the state of one light's shadow job.
type Phase uint8

const (
	Idle Phase = iota
	Rendering
	Complete
)

func (p Phase) String() string {
	switch p {
	case Rendering:
		return "rendering"
	case Complete:
		return "complete"
	}
	return "idle"
}

// Job tracks one light through Idle -> Rendering(face) -> Complete. Point
// lights pass through six faces, every other light through one.
type Job struct {
	Light scene.WorldLight
	Phase Phase
	Face  int
	Faces int
	// FirstSlot is the index of the job's first map in Result.Maps.
	FirstSlot int

	views   []lightView
	targets []gpu.Target
	lists   []*drawlist.List
}

// advance moves the job one step and reports whether a face is to be
// rendered.
func (j *Job) advance() bool {
	switch j.Phase {
	case Idle:
		j.Phase = Rendering
		j.Face = 0
		return true
	case Rendering:
		j.Face++
		if j.Face < j.Faces {
			return true
		}
		j.Phase = Complete
	}
	return false
}

// Result is what the main pass needs from the shadow passes.
type Result struct {
	Maps  []drawlist.ShadowMap
	Texel float32
	// Passes counts rendered faces.
	Passes int
	// Dropped counts shadow-casting lights that found no free slot.
	Dropped  int
	Culled   int
	Failures []drawlist.Failure
}

// Orchestrator owns the depth targets of every shadow-casting light and
// re-renders them every frame.
type Orchestrator struct {
	cfg       Config
	resources *cache.Cache
	builder   *drawlist.Builder
	log       *slog.Logger

	targets map[*scene.Light][]*cache.Target
	jobs    []*Job
	state   gpu.RenderState
}

func New(resources *cache.Cache, builder *drawlist.Builder, cfg Config, log *slog.Logger) *Orchestrator {
	if cfg.MapSize <= 0 {
		cfg.MapSize = DefaultMapSize
	}
	if cfg.HalfExtent <= 0 {
		cfg.HalfExtent = DefaultHalfExtent
	}
	st := gpu.OpaqueState()
	st.PolygonOffset = gpu.PolygonOffset{Enabled: true, Factor: 2, Units: 4}
	return &Orchestrator{
		cfg:       cfg,
		resources: resources,
		builder:   builder,
		log:       logging.Component(log, "shadow"),
		targets:   make(map[*scene.Light][]*cache.Target),
		state:     st,
	}
}

// Jobs returns the jobs of the last Prepare, in slot order.
func (o *Orchestrator) Jobs() []*Job { return o.jobs }

// SetMapSize changes the resolution; targets reallocate on next use.
func (o *Orchestrator) SetMapSize(size int32) {
	if size <= 0 || size == o.cfg.MapSize {
		return
	}
	o.cfg.MapSize = size
	for _, ts := range o.targets {
		for _, t := range ts {
			t.Resize(size, size)
		}
	}
}

// Render prepares and draws the depth maps of every shadow-casting light
// in lights. Every map is complete when it returns.
func (o *Orchestrator) Render(tr *state.Tracker, root *scene.Node, lights []scene.WorldLight, camera scene.Viewer) (Result, error) {
	plan, err := o.Prepare(root, lights, camera)
	if err != nil {
		return Result{}, err
	}
	return plan.Execute(tr)
}

// Plan holds the resolved depth lists of one frame. Nothing has been drawn
// yet; Maps already name the textures the faces will be drawn into.
type Plan struct {
	Result
	jobs []*Job
	size int32
}

// Prepare resolves the targets and depth draw lists of every face without
// issuing a draw, so a resource failure can abandon the frame before any
// GPU work is done.
func (o *Orchestrator) Prepare(root *scene.Node, lights []scene.WorldLight, camera scene.Viewer) (*Plan, error) {
	plan := &Plan{Result: Result{Texel: 1 / float32(o.cfg.MapSize)}, size: o.cfg.MapSize}
	o.jobs = o.jobs[:0]
	seen := make(map[*scene.Light]bool)

	slots := 0
	var casters *scene.AABB
	for _, wl := range lights {
		l := wl.Light
		if !l.CastShadow {
			continue
		}
		faces := l.ShadowFaces()
		if slots+faces > MaxShadowSlots {
			plan.Dropped++
			o.log.Warn("no free shadow slot, light casts no shadow",
				slog.String("light", lightName(wl)),
				slog.Int("faces", faces))
			continue
		}
		job := &Job{Light: wl, Faces: faces, FirstSlot: slots}
		switch l.Type {
		case scene.LightDirectional:
			if casters == nil {
				b := o.casterBounds(root, camera)
				casters = &b
			}
			job.views = []lightView{directionalView(wl.Direction.Normalize(), *casters)}
		case scene.LightSpot:
			job.views = []lightView{spotView(wl.Position, wl.Direction.Normalize(), l)}
		case scene.LightPoint:
			for f := range cubeFaces {
				job.views = append(job.views, pointView(wl.Position, f, l))
			}
		}
		slots += faces
		seen[l] = true
		o.jobs = append(o.jobs, job)
	}
	plan.jobs = o.jobs

	for _, job := range plan.jobs {
		if err := o.prepareJob(root, job, &plan.Result); err != nil {
			return nil, err
		}
	}
	o.releaseUnused(seen)
	return plan, nil
}

func (o *Orchestrator) prepareJob(root *scene.Node, job *Job, res *Result) error {
	targets := o.targetsFor(job)
	job.targets = make([]gpu.Target, job.Faces)
	job.lists = make([]*drawlist.List, job.Faces)
	for face, view := range job.views {
		h, att, err := o.resources.AcquireTarget(targets[face])
		if err != nil {
			return err
		}
		list, err := o.builder.Build(root, view, drawlist.Options{
			Pass:             drawlist.PassDepth,
			Cull:             o.cfg.Cull,
			AbandonOnFailure: o.cfg.AbandonOnFailure,
			Transparent:      o.cfg.Transparent,
			State:            &o.state,
		})
		if err != nil {
			return err
		}
		res.Culled += list.Culled
		res.Failures = append(res.Failures, list.Failures...)
		job.targets[face] = h
		job.lists[face] = list
		res.Maps = append(res.Maps, drawlist.ShadowMap{
			Light:   job.Light.Light,
			Matrix:  view.matrix(),
			Texture: att.Depth,
			Bias:    o.bias(job.Light.Light),
		})
	}
	return nil
}

// Execute draws every face of every job in slot order, moving each job
// from Idle through Rendering(face) to Complete.
func (p *Plan) Execute(tr *state.Tracker) (Result, error) {
	for _, job := range p.jobs {
		for job.advance() {
			tr.BindTarget(job.targets[job.Face])
			tr.SetViewport(core.Rect{Width: p.size, Height: p.size})
			tr.Clear(gpu.ClearOptions{ClearDepth: true, Depth: 1})
			if err := drawlist.Execute(tr, job.lists[job.Face]); err != nil {
				return p.Result, fmt.Errorf("shadow %s face %d: %w", lightName(job.Light), job.Face, err)
			}
			p.Passes++
		}
		job.lists = nil
	}
	return p.Result, nil
}

func (o *Orchestrator) bias(l *scene.Light) float32 {
	if l.ShadowBias != 0 {
		return l.ShadowBias
	}
	return o.cfg.Bias
}

func (o *Orchestrator) targetsFor(job *Job) []*cache.Target {
	l := job.Light.Light
	ts := o.targets[l]
	if len(ts) == job.Faces {
		return ts
	}
	o.releaseTargets(ts)
	ts = make([]*cache.Target, job.Faces)
	for i := range ts {
		ts[i] = cache.NewTarget(gpu.TargetDesc{
			Label:   fmt.Sprintf("shadow:%s:%d", lightName(job.Light), i),
			Width:   o.cfg.MapSize,
			Height:  o.cfg.MapSize,
			Depth:   gpu.FormatDepth24,
			Filter:  gpu.FilterLinear,
			Compare: true,
		})
	}
	o.targets[l] = ts
	return ts
}

func (o *Orchestrator) releaseTargets(ts []*cache.Target) {
	for _, t := range ts {
		o.resources.ReleaseTarget(t)
	}
}

// releaseUnused hands back the targets of lights that no longer cast
// shadows. The cache destroys them at the end of the frame.
func (o *Orchestrator) releaseUnused(seen map[*scene.Light]bool) {
	for l, ts := range o.targets {
		if !seen[l] {
			o.releaseTargets(ts)
			delete(o.targets, l)
		}
	}
}

func lightName(wl scene.WorldLight) string {
	if wl.Node != nil {
		return wl.Node.Name
	}
	return wl.Light.Type.String()
}

// Destroy releases every shadow target.
func (o *Orchestrator) Destroy() {
	o.releaseUnused(nil)
}

// casterBounds is the world bounds of every visible shadow caster, or a cube
// around the camera when there is none.
func (o *Orchestrator) casterBounds(root *scene.Node, camera scene.Viewer) scene.AABB {
	var box scene.AABB
	found := false
	root.Traverse(func(n *scene.Node) bool {
		if !n.Visible {
			return false
		}
		r := n.Renderable
		if r == nil || !n.CastShadow || r.Geometry == nil || r.Geometry.Degenerate() {
			return true
		}
		if r.Material != nil && r.Material.Transparent() && o.cfg.Transparent == drawlist.TransparentSkip {
			return true
		}
		b := scene.WorldBounds(r.Geometry, n.WorldMatrix())
		if found {
			box = box.Union(b)
		} else {
			box = b
			found = true
		}
		return true
	})
	if !found {
		return fallbackBounds(camera.EyePosition(), o.cfg.HalfExtent)
	}
	return box
}

// LightMatrix returns the world to clip matrix of face of the light, as
// computed by the last Prepare. It is used by debugging overlays.
func (o *Orchestrator) LightMatrix(l *scene.Light, face int) (math.Mat4, bool) {
	for _, j := range o.jobs {
		if j.Light.Light == l && face < len(j.views) {
			return j.views[face].matrix(), true
		}
	}
	return math.Mat4{}, false
}
