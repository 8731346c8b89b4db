// Package renderer drives one frame: shadow passes, the main draw list, and
// the post-process chain, all through a single resource cache and state
// tracker.
package renderer

import (
	"errors"
	"fmt"
	"log/slog"

	"scene-renderer/cache"
	"scene-renderer/core"
	"scene-renderer/drawlist"
	"scene-renderer/gpu"
	"scene-renderer/internal/logging"
	"scene-renderer/postprocess"
	"scene-renderer/scene"
	"scene-renderer/shader"
	"scene-renderer/shadow"
	"scene-renderer/state"
)

var (
	ErrNoScene  = errors.New("renderer: no scene root")
	ErrNoCamera = errors.New("renderer: no camera")
)

type Option func(*Renderer)

// WithLogger sets the logger every component logs through.
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) { r.log = l }
}

// WithEnvironment sets the ambient, fog and background used by RenderFrame.
func WithEnvironment(env scene.Environment) Option {
	return func(r *Renderer) { r.env = env }
}

// WithUploadQueue replaces the default upload queue.
func WithUploadQueue(q *UploadQueue) Option {
	return func(r *Renderer) { r.uploads = q }
}

// Renderer owns the GPU-side state of one context. It must be used from the
// thread that owns the context.
type Renderer struct {
	dev gpu.Device
	cfg Config
	log *slog.Logger

	resources *cache.Cache
	shaders   *shader.Cache
	tracker   *state.Tracker
	builder   *drawlist.Builder
	shadows   *shadow.Orchestrator
	post      *postprocess.Pipeline
	uploads   *UploadQueue

	env           scene.Environment
	width, height int32
	frame         uint64
	// lost is set when a frame hit context loss; the next frame starts
	// from scratch.
	lost bool
	last Stats
}

func New(dev gpu.Device, cfg Config, opts ...Option) (*Renderer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	env := scene.DefaultEnvironment()
	env.Background = cfg.ClearColor
	r := &Renderer{dev: dev, cfg: cfg, env: env, width: cfg.Width, height: cfg.Height}
	for _, opt := range opts {
		opt(r)
	}
	r.log = logging.Component(r.log, "renderer")
	if r.uploads == nil {
		r.uploads = NewUploadQueue(256)
	}

	r.resources = cache.New(dev, r.log)
	r.shaders = shader.NewCache(dev, r.log)
	r.tracker = state.New(dev)
	r.builder = drawlist.NewBuilder(r.resources, r.shaders, r.log)
	r.shadows = shadow.New(r.resources, r.builder, shadow.Config{
		MapSize:          cfg.ShadowMapSize,
		HalfExtent:       cfg.ShadowHalfExtent,
		Bias:             cfg.ShadowBias,
		Transparent:      cfg.transparentPolicy(),
		Cull:             cfg.FrustumCulling,
		AbandonOnFailure: cfg.AllocFailure == AllocAbandon,
	}, r.log)
	r.post = postprocess.NewPipeline(r.resources, r.shaders, postprocess.Config{
		Width:  cfg.Width,
		Height: cfg.Height,
		HDR:    cfg.HDR,
	}, r.log)
	passes, err := cfg.passes()
	if err != nil {
		return nil, err
	}
	r.post.Add(passes...)

	r.log.Info("renderer ready",
		slog.Int("width", int(cfg.Width)),
		slog.Int("height", int(cfg.Height)),
		slog.Int("post_passes", len(passes)))
	return r, nil
}

func (r *Renderer) Config() Config                       { return r.cfg }
func (r *Renderer) Uploads() *UploadQueue                { return r.uploads }
func (r *Renderer) Resources() *cache.Cache              { return r.resources }
func (r *Renderer) Shaders() *shader.Cache               { return r.shaders }
func (r *Renderer) Tracker() *state.Tracker              { return r.tracker }
func (r *Renderer) PostProcess() *postprocess.Pipeline   { return r.post }
func (r *Renderer) Environment() scene.Environment       { return r.env }
func (r *Renderer) SetEnvironment(env scene.Environment) { r.env = env }

// LastStats returns the statistics of the most recent frame.
func (r *Renderer) LastStats() Stats { return r.last }

// RenderScene renders s with its own camera and environment.
func (r *Renderer) RenderScene(s *scene.Scene) (Stats, error) {
	if s == nil {
		return Stats{}, ErrNoScene
	}
	r.env = s.Environment
	return r.RenderFrame(s.Root, s.Camera)
}

// RenderFrame renders the graph under root as seen by camera. Contract
// violations fail before any GPU call. Context loss abandons the frame and
// invalidates every cached resource; the next frame rebuilds them.
func (r *Renderer) RenderFrame(root *scene.Node, camera scene.Viewer) (Stats, error) {
	if root == nil {
		return Stats{}, ErrNoScene
	}
	if camera == nil {
		return Stats{}, ErrNoCamera
	}

	r.frame++
	stats := Stats{Frame: r.frame}

	if err := r.dev.Status(); err != nil {
		r.contextLost(err)
		return stats, fmt.Errorf("frame %d: %w", r.frame, err)
	}
	if r.lost {
		r.restore()
	}

	r.resources.BeginFrame()
	defer r.resources.EndFrame()
	cacheBefore := r.resources.Stats()
	trBefore := r.tracker.Counters()

	r.drainUploads(&stats)
	err := r.render(root, camera, &stats)
	if err == nil {
		err = r.dev.Status()
	}

	for _, d := range r.shaders.TakeDiagnostics() {
		stats.Diagnostics = append(stats.Diagnostics, Diagnostic{Kind: DiagShader, Subject: d.Key.String(), Err: d.Err})
	}
	stats.fill(r.resources.Stats().Sub(cacheBefore), r.tracker.Counters().Sub(trBefore))

	if err != nil {
		if errors.Is(err, gpu.ErrContextLost) {
			r.contextLost(err)
		} else {
			// An abandoned frame leaves the device in a state the tracker
			// may not have recorded.
			r.tracker.Reset()
			r.log.Warn("frame abandoned", slog.Uint64("frame", r.frame), slog.String("error", err.Error()))
		}
		r.last = stats
		return stats, fmt.Errorf("frame %d: %w", r.frame, err)
	}

	if r.cfg.IdleEvictionFrames > 0 {
		r.resources.EvictIdle(r.cfg.IdleEvictionFrames)
	}
	r.last = stats
	return stats, nil
}

// render resolves every list before the first draw, so a failure under
// the abandon policy leaves nothing half drawn.
func (r *Renderer) render(root *scene.Node, camera scene.Viewer, stats *Stats) error {
	var plan *shadow.Plan
	var shadows shadow.Result
	if r.cfg.Shadows {
		var err error
		plan, err = r.shadows.Prepare(root, collectLights(root), camera)
		if err != nil {
			return fmt.Errorf("shadow pass: %w", err)
		}
		shadows = plan.Result
		stats.Culled += shadows.Culled
		for _, f := range shadows.Failures {
			stats.Diagnostics = append(stats.Diagnostics, Diagnostic{Kind: DiagResource, Subject: f.Node.Name, Err: f.Err})
		}
		if shadows.Dropped > 0 {
			stats.Diagnostics = append(stats.Diagnostics, Diagnostic{
				Kind:    DiagShadow,
				Subject: "lights",
				Err:     fmt.Errorf("%d shadow-casting lights exceed %d shadow slots", shadows.Dropped, shadow.MaxShadowSlots),
			})
		}
	}

	viewport := core.Rect{Width: r.width, Height: r.height}
	list, err := r.builder.Build(root, camera, drawlist.Options{
		Pass:             drawlist.PassMain,
		Cull:             r.cfg.FrustumCulling,
		AbandonOnFailure: r.cfg.AllocFailure == AllocAbandon,
		Viewport:         viewport,
		Environment:      r.env,
		Shadows:          shadows.Maps,
		ShadowTexel:      shadows.Texel,
	})
	if err != nil {
		return fmt.Errorf("build draw list: %w", err)
	}
	stats.Culled += list.Culled
	stats.Skipped = list.Skipped
	for _, f := range list.Failures {
		stats.Diagnostics = append(stats.Diagnostics, Diagnostic{Kind: DiagResource, Subject: f.Node.Name, Err: f.Err})
	}

	target := gpu.Screen
	if r.post.Active() {
		r.post.SetProjection(camera.ProjectionMatrix())
		target, err = r.post.SceneTarget()
		if err != nil {
			return fmt.Errorf("scene target: %w", err)
		}
	}

	if plan != nil {
		res, err := plan.Execute(r.tracker)
		if err != nil {
			return err
		}
		stats.ShadowPasses = res.Passes
	}

	r.tracker.BindTarget(target)
	r.tracker.SetViewport(viewport)
	r.tracker.Clear(gpu.ClearOptions{
		Color:      r.env.Background,
		Depth:      1,
		ClearColor: true,
		ClearDepth: true,
	})
	if err := drawlist.Execute(r.tracker, list); err != nil {
		return err
	}

	if r.post.Active() {
		res, err := r.post.Run(r.tracker, postprocess.Output{Target: gpu.Screen, Width: r.width, Height: r.height})
		if err != nil {
			return err
		}
		stats.PostPasses = res.Passes
	}
	return nil
}

// collectLights resolves the lights of visible nodes in traversal order,
// the same order the draw list assigns light slots in.
func collectLights(root *scene.Node) []scene.WorldLight {
	var lights []scene.WorldLight
	root.Traverse(func(n *scene.Node) bool {
		if !n.Visible {
			return false
		}
		if n.Light != nil && len(lights) < shader.MaxLights {
			lights = append(lights, scene.Resolve(n))
		}
		return true
	})
	return lights
}

func (r *Renderer) drainUploads(stats *Stats) {
	n := r.uploads.drain(func(u Upload) {
		if u.Err != nil {
			name := ""
			if u.Texture != nil {
				name = u.Texture.Name
			}
			stats.Diagnostics = append(stats.Diagnostics, Diagnostic{Kind: DiagUpload, Subject: name, Err: u.Err})
			return
		}
		u.Texture.SetPixels(u.Width, u.Height, u.Pixels)
	})
	if n > 0 {
		r.log.Debug("applied uploads", slog.Int("count", n))
	}
}

func (r *Renderer) contextLost(err error) {
	if !r.lost {
		r.log.Warn("GPU context lost", slog.Uint64("frame", r.frame), slog.String("error", err.Error()))
	}
	r.lost = true
	r.resources.InvalidateAll()
	r.shaders.InvalidateAll()
	r.tracker.Reset()
}

// restore runs on the first frame after the context came back.
func (r *Renderer) restore() {
	r.resources.InvalidateAll()
	r.shaders.InvalidateAll()
	r.tracker.Reset()
	r.lost = false
	r.log.Info("GPU context restored, rebuilding resources lazily", slog.Uint64("frame", r.frame))
}

// Resize changes the output size. Cameras are owned by the caller and need
// their own aspect update.
func (r *Renderer) Resize(width, height int32) {
	if width <= 0 || height <= 0 {
		return
	}
	r.width, r.height = width, height
	r.post.Resize(width, height)
}

// SetShadowMapSize changes the shadow map resolution.
func (r *Renderer) SetShadowMapSize(size int32) {
	r.cfg.ShadowMapSize = size
	r.shadows.SetMapSize(size)
}

// DisposeGeometry tells the renderer g is gone for good. Its GPU copy is
// freed at the end of the current frame unless something acquires it again.
func (r *Renderer) DisposeGeometry(g *scene.Geometry) bool { return r.resources.ReleaseGeometry(g) }

// DisposeTexture is DisposeGeometry for textures.
func (r *Renderer) DisposeTexture(t *scene.Texture) bool { return r.resources.ReleaseTexture(t) }

// Destroy frees every GPU resource the renderer created.
func (r *Renderer) Destroy() {
	r.shadows.Destroy()
	r.post.Destroy()
	r.resources.EndFrame()
	r.resources.Destroy()
	r.shaders.Destroy()
	r.tracker.Reset()
}
