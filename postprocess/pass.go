// Package postprocess runs an ordered chain of full-screen passes over the
// rendered scene, ping-ponging between two off-screen targets.
package postprocess

import (
	"fmt"
	"slices"
	"strings"

	"scene-renderer/cache"
	"scene-renderer/core"
	"scene-renderer/gpu"
	"scene-renderer/math"
	"scene-renderer/scene"
	"scene-renderer/shader"
	"scene-renderer/state"
)

// Input is the color texture a pass reads.
type Input struct {
	Texture gpu.Texture
	Width   int32
	Height  int32
}

// Texel returns the size of one input pixel in UV units.
func (in Input) Texel() math.Vec2 {
	return math.Vec2{X: 1 / float32(max(in.Width, 1)), Y: 1 / float32(max(in.Height, 1))}
}

// Output is where a pass writes: a ping-pong target, a pass-owned scratch
// target, the screen or a caller target.
type Output struct {
	Target gpu.Target
	Width  int32
	Height int32
}

// Sampler binds a texture to a sampler uniform of a pass program.
type Sampler struct {
	Name    string
	Texture gpu.Texture
}

// Pass is one full-screen image operation.
type Pass interface {
	Name() string
	// Configure applies named parameters. Unknown names are an error.
	Configure(params map[string]float64) error
	// Enabled reports whether the pass has any effect. A disabled pass is
	// replaced by a copy so the chain keeps its shape.
	Enabled() bool
	SetEnabled(bool)
	Render(ctx *Context, in Input, out Output) error
}

// Releaser is implemented by passes that own scratch targets.
type Releaser interface {
	Release(resources *cache.Cache)
}

// SceneView is what the main pass left behind for passes that need more
// than color.
type SceneView struct {
	// Depth is the scene target's depth attachment. It stays attached to
	// target A, so sample it only while drawing into a scratch target.
	Depth      gpu.Texture
	Projection math.Mat4
}

// Context is what a pass draws with. Every call goes through the tracker.
type Context struct {
	tr        *state.Tracker
	resources *cache.Cache
	shaders   *shader.Cache
	quad      gpu.Mesh
	count     int32
	draws     int
	scene     SceneView
}

func (c *Context) Scene() SceneView { return c.scene }

// Texture uploads t through the resource cache.
func (c *Context) Texture(t *scene.Texture) (gpu.Texture, error) {
	return c.resources.AcquireTexture(t)
}

// Draw runs prog over out with the given samplers and uniforms.
func (c *Context) Draw(out Output, prog *scene.CustomShader, samplers []Sampler, uniforms ...gpu.Uniform) error {
	p, err := c.shaders.Get(shader.Key{Kind: scene.KindCustom, Custom: prog})
	if err != nil {
		return fmt.Errorf("post-process %s: %w", prog.Name, err)
	}
	c.tr.BindTarget(out.Target)
	c.tr.SetViewport(core.Rect{Width: out.Width, Height: out.Height})
	c.tr.Apply(gpu.FullscreenState())
	c.tr.UseProgram(p.Handle)
	for i, s := range samplers {
		c.tr.BindTexture(i, s.Texture)
		if err := c.tr.SetUniform(p.Location(s.Name), gpu.Int(int32(i))); err != nil {
			return err
		}
	}
	for _, u := range uniforms {
		if err := c.tr.SetUniform(p.Location(u.Name), u.Value); err != nil {
			return err
		}
	}
	c.tr.Draw(c.quad, gpu.Triangles, c.count)
	c.draws++
	return nil
}

// Scratch resizes t and returns it as an output plus the color attachment
// to read it back.
func (c *Context) Scratch(t *cache.Target, width, height int32) (Output, Input, error) {
	t.Resize(max(width, 1), max(height, 1))
	h, att, err := c.resources.AcquireTarget(t)
	if err != nil {
		return Output{}, Input{}, err
	}
	d := t.Desc()
	return Output{Target: h, Width: d.Width, Height: d.Height},
		Input{Texture: att.Color, Width: d.Width, Height: d.Height}, nil
}

// Copy writes in to out unchanged.
func (c *Context) Copy(in Input, out Output) error {
	return c.Draw(out, copyProgram, []Sampler{{"uInput", in.Texture}})
}

func scratchTarget(label string) *cache.Target {
	return cache.NewTarget(gpu.TargetDesc{Label: label, Width: 1, Height: 1, Color: gpu.FormatRGBA16F, Filter: gpu.FilterLinear})
}

// toggle holds the enabled switch shared by every pass.
type toggle struct{ disabled bool }

func (t *toggle) SetEnabled(on bool) { t.disabled = !on }

// configure assigns params to the named fields.
func configure(pass string, params map[string]float64, fields map[string]*float32) error {
	for k, v := range params {
		f, ok := fields[strings.ToLower(k)]
		if !ok {
			known := make([]string, 0, len(fields))
			for name := range fields {
				known = append(known, name)
			}
			slices.Sort(known)
			return fmt.Errorf("%s: unknown parameter %q (have %s)", pass, k, strings.Join(known, ", "))
		}
		*f = float32(v)
	}
	return nil
}

var registry = map[string]func() Pass{
	"copy":       func() Pass { return NewCopy() },
	"tonemap":    func() Pass { return NewToneMap() },
	"colorgrade": func() Pass { return NewColorGrade() },
	"blur":       func() Pass { return NewBlur() },
	"edgedetect": func() Pass { return NewEdgeDetect() },
	"bloom":      func() Pass { return NewBloom() },
	"ssao":       func() Pass { return NewSSAO() },
}

// NewPass returns a pass with default parameters by name.
func NewPass(name string) (Pass, error) {
	ctor, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown post-process pass %q", name)
	}
	return ctor(), nil
}

// PassNames lists the registered pass names, sorted.
func PassNames() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
