package postprocess

import (
	"errors"
	"fmt"
	"log/slog"

	"scene-renderer/cache"
	"scene-renderer/gpu"
	"scene-renderer/internal/logging"
	"scene-renderer/math"
	"scene-renderer/scene"
	"scene-renderer/shader"
	"scene-renderer/state"
)

// ErrNoInput is returned by Run before the scene target was acquired.
var ErrNoInput = errors.New("postprocess: scene target not acquired this frame")

type Config struct {
	Width  int32
	Height int32
	// HDR selects a half-float color format for the ping-pong targets.
	HDR bool
}

// Result counts the work done by one Run.
type Result struct {
	// Passes is the number of chain entries run, passthroughs included.
	Passes int
	// Skipped counts disabled passes replaced by a copy.
	Skipped int
	Draws   int
}

// Pipeline owns the ping-pong targets A and B. The scene renders into A;
// pass i reads the target written last and writes the other one. The last
// pass writes to the final output instead.
type Pipeline struct {
	resources *cache.Cache
	shaders   *shader.Cache
	log       *slog.Logger

	passes []Pass
	ping   [2]*cache.Target
	quad   *scene.Geometry
	copy   *Copy

	input      Input
	depth      gpu.Texture
	projection math.Mat4
	hasInput   bool
}

func NewPipeline(resources *cache.Cache, shaders *shader.Cache, cfg Config, log *slog.Logger) *Pipeline {
	color := gpu.FormatRGBA8
	if cfg.HDR {
		color = gpu.FormatRGBA16F
	}
	p := &Pipeline{
		resources:  resources,
		shaders:    shaders,
		log:        logging.Component(log, "postprocess"),
		quad:       fullscreenGeometry(),
		copy:       NewCopy(),
		projection: math.Mat4Identity(),
	}
	for i, name := range [2]string{"post:a", "post:b"} {
		p.ping[i] = cache.NewTarget(gpu.TargetDesc{
			Label:  name,
			Width:  max(cfg.Width, 1),
			Height: max(cfg.Height, 1),
			Color:  color,
			Depth:  gpu.FormatDepth24,
			Filter: gpu.FilterLinear,
		})
	}
	return p
}

// fullscreenGeometry is one triangle covering clip space, with UVs running
// 0..1 across the visible part.
func fullscreenGeometry() *scene.Geometry {
	return scene.NewGeometry("post:fullscreen").
		SetPositions([]math.Vec3{{X: -1, Y: -1}, {X: 3, Y: -1}, {X: -1, Y: 3}}).
		SetUVs([]math.Vec2{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 0, Y: 2}})
}

// Add appends passes to the chain.
func (p *Pipeline) Add(passes ...Pass) { p.passes = append(p.passes, passes...) }

func (p *Pipeline) Passes() []Pass { return p.passes }

// Active reports whether the chain has any pass. An empty chain renders
// the scene straight to the final output.
func (p *Pipeline) Active() bool { return len(p.passes) > 0 }

// Resize changes the ping-pong target size; attachments reallocate on the
// next frame.
func (p *Pipeline) Resize(width, height int32) {
	for _, t := range p.ping {
		t.Resize(max(width, 1), max(height, 1))
	}
}

// SceneTarget returns target A for the main pass to render into.
func (p *Pipeline) SceneTarget() (gpu.Target, error) {
	h, att, err := p.resources.AcquireTarget(p.ping[0])
	if err != nil {
		p.hasInput = false
		return 0, err
	}
	d := p.ping[0].Desc()
	p.input = Input{Texture: att.Color, Width: d.Width, Height: d.Height}
	p.depth = att.Depth
	p.hasInput = true
	return h, nil
}

// SetProjection records the projection the scene target was rendered
// with, for passes that reconstruct positions from depth.
func (p *Pipeline) SetProjection(m math.Mat4) { p.projection = m }

// Run executes the chain over the scene target and writes the result to
// final.
func (p *Pipeline) Run(tr *state.Tracker, final Output) (Result, error) {
	var res Result
	if !p.hasInput {
		return res, ErrNoInput
	}
	p.hasInput = false

	quad, err := p.resources.AcquireGeometry(p.quad)
	if err != nil {
		return res, err
	}
	ctx := &Context{
		tr:        tr,
		resources: p.resources,
		shaders:   p.shaders,
		quad:      quad,
		count:     p.quad.DrawCount(),
		scene:     SceneView{Depth: p.depth, Projection: p.projection},
	}

	chain := p.passes
	if len(chain) == 0 {
		chain = []Pass{p.copy}
	}

	in := p.input
	read := 0
	for i, pass := range chain {
		out := final
		var next Input
		if i < len(chain)-1 {
			h, att, err := p.resources.AcquireTarget(p.ping[1-read])
			if err != nil {
				return res, err
			}
			d := p.ping[1-read].Desc()
			out = Output{Target: h, Width: d.Width, Height: d.Height}
			next = Input{Texture: att.Color, Width: d.Width, Height: d.Height}
		}

		run := pass
		if !pass.Enabled() {
			run = p.copy
			res.Skipped++
		}
		if err := run.Render(ctx, in, out); err != nil {
			return res, fmt.Errorf("pass %s: %w", pass.Name(), err)
		}
		res.Passes++

		in = next
		read = 1 - read
	}
	res.Draws = ctx.draws
	return res, nil
}

// Destroy releases the ping-pong targets, pass scratch targets and the
// fullscreen triangle.
func (p *Pipeline) Destroy() {
	for _, t := range p.ping {
		p.resources.ReleaseTarget(t)
	}
	for _, pass := range p.passes {
		if r, ok := pass.(Releaser); ok {
			r.Release(p.resources)
		}
	}
	p.resources.ReleaseGeometry(p.quad)
}
