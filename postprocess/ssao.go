package postprocess

import (
	"fmt"
	"math/rand"

	"scene-renderer/cache"
	"scene-renderer/gpu"
	"scene-renderer/math"
	"scene-renderer/scene"
)

const (
	ssaoKernelSize = 64
	ssaoNoiseSize  = 4
)

// SSAO darkens creases and contact points by sampling a hemisphere of scene
// depth around every pixel. The raw occlusion and its blur go to scratch
// targets; only the composite writes the chain output.
type SSAO struct {
	toggle
	// Radius is the hemisphere radius in view-space units.
	Radius float32
	// Bias keeps flat surfaces from occluding themselves.
	Bias float32
	// Strength blends between no occlusion (0) and full occlusion (1).
	Strength float32

	kernel  []gpu.Uniform
	noise   *scene.Texture
	scratch [2]*cache.Target
}

func NewSSAO() *SSAO {
	return &SSAO{
		Radius:   0.5,
		Bias:     0.025,
		Strength: 1,
		kernel:   ssaoKernel(rand.New(rand.NewSource(42))),
		noise:    ssaoNoise(rand.New(rand.NewSource(123))),
		scratch:  [2]*cache.Target{scratchTarget("post:ssao.raw"), scratchTarget("post:ssao.blur")},
	}
}

// ssaoKernel spreads samples over the +Z hemisphere, denser near the
// origin.
func ssaoKernel(rng *rand.Rand) []gpu.Uniform {
	out := make([]gpu.Uniform, ssaoKernelSize)
	for i := range out {
		v := math.Vec3{
			X: rng.Float32()*2 - 1,
			Y: rng.Float32()*2 - 1,
			Z: rng.Float32(),
		}.Normalize()
		t := float32(i) / ssaoKernelSize
		out[i] = gpu.Uniform{Name: fmt.Sprintf("uKernel[%d]", i), Value: gpu.Vec3(v.Mul(0.1 + 0.9*t*t))}
	}
	return out
}

// ssaoNoise is a tiling texture of random XY rotations packed into 0..255.
func ssaoNoise(rng *rand.Rand) *scene.Texture {
	pixels := make([]byte, ssaoNoiseSize*ssaoNoiseSize*4)
	for i := 0; i < len(pixels); i += 4 {
		pixels[i] = byte(rng.Intn(256))
		pixels[i+1] = byte(rng.Intn(256))
		pixels[i+3] = 255
	}
	t := scene.NewTexture("post:ssao.noise", ssaoNoiseSize, ssaoNoiseSize, pixels)
	t.Filter = gpu.FilterNearest
	t.Wrap = gpu.WrapRepeat
	t.Mipmaps = false
	return t
}

func (p *SSAO) Name() string  { return "ssao" }
func (p *SSAO) Enabled() bool { return !p.disabled && p.Strength > 0 && p.Radius > 0 }

func (p *SSAO) Configure(params map[string]float64) error {
	return configure(p.Name(), params, map[string]*float32{
		"radius":   &p.Radius,
		"bias":     &p.Bias,
		"strength": &p.Strength,
	})
}

func (p *SSAO) Render(ctx *Context, in Input, out Output) error {
	sv := ctx.Scene()
	if sv.Depth == 0 {
		return ctx.Copy(in, out)
	}
	noise, err := ctx.Texture(p.noise)
	if err != nil {
		return err
	}
	rawOut, rawIn, err := ctx.Scratch(p.scratch[0], in.Width, in.Height)
	if err != nil {
		return err
	}
	blurOut, blurIn, err := ctx.Scratch(p.scratch[1], in.Width, in.Height)
	if err != nil {
		return err
	}

	uniforms := append([]gpu.Uniform{
		{Name: "uProjection", Value: gpu.Mat4(sv.Projection)},
		{Name: "uInvProjection", Value: gpu.Mat4(sv.Projection.Inverse())},
		{Name: "uRadius", Value: gpu.Float(p.Radius)},
		{Name: "uBias", Value: gpu.Float(p.Bias)},
		{Name: "uNoiseScale", Value: gpu.Vec2(math.Vec2{
			X: float32(in.Width) / ssaoNoiseSize,
			Y: float32(in.Height) / ssaoNoiseSize,
		})},
	}, p.kernel...)
	err = ctx.Draw(rawOut, ssaoProgram, []Sampler{{"uDepth", sv.Depth}, {"uNoise", noise}}, uniforms...)
	if err != nil {
		return err
	}
	if err := ctx.Draw(blurOut, ssaoBlurProgram, []Sampler{{"uInput", rawIn.Texture}}); err != nil {
		return err
	}
	return ctx.Draw(out, ssaoCompositeProgram,
		[]Sampler{{"uInput", in.Texture}, {"uOcclusion", blurIn.Texture}},
		gpu.Uniform{Name: "uStrength", Value: gpu.Float(min(p.Strength, 1))})
}

func (p *SSAO) Release(resources *cache.Cache) {
	for _, t := range p.scratch {
		resources.ReleaseTarget(t)
	}
	resources.ReleaseTexture(p.noise)
}
