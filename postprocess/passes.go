package postprocess

import (
	"scene-renderer/cache"
	"scene-renderer/gpu"
	"scene-renderer/math"
)

// Copy passes its input through unchanged. The pipeline also uses it in
// place of disabled passes.
type Copy struct{ toggle }

func NewCopy() *Copy { return &Copy{} }

func (p *Copy) Name() string                                    { return "copy" }
func (p *Copy) Enabled() bool                                   { return !p.disabled }
func (p *Copy) Configure(params map[string]float64) error       { return configure(p.Name(), params, nil) }
func (p *Copy) Render(ctx *Context, in Input, out Output) error { return ctx.Copy(in, out) }

// ToneMap maps HDR color into display range.
type ToneMap struct {
	toggle
	Exposure float32
	Gamma    float32
}

func NewToneMap() *ToneMap { return &ToneMap{Exposure: 1, Gamma: 2.2} }

func (p *ToneMap) Name() string  { return "tonemap" }
func (p *ToneMap) Enabled() bool { return !p.disabled }

func (p *ToneMap) Configure(params map[string]float64) error {
	return configure(p.Name(), params, map[string]*float32{"exposure": &p.Exposure, "gamma": &p.Gamma})
}

func (p *ToneMap) Render(ctx *Context, in Input, out Output) error {
	return ctx.Draw(out, tonemapProgram, []Sampler{{"uInput", in.Texture}},
		gpu.Uniform{Name: "uExposure", Value: gpu.Float(p.Exposure)},
		gpu.Uniform{Name: "uGamma", Value: gpu.Float(max(p.Gamma, 0.01))},
	)
}

// ColorGrade adjusts brightness, contrast and saturation. Mix blends the
// graded result with the input; zero disables the pass.
type ColorGrade struct {
	toggle
	Brightness float32
	Contrast   float32
	Saturation float32
	Mix        float32
}

func NewColorGrade() *ColorGrade {
	return &ColorGrade{Contrast: 1, Saturation: 1, Mix: 1}
}

func (p *ColorGrade) Name() string  { return "colorgrade" }
func (p *ColorGrade) Enabled() bool { return !p.disabled && p.Mix > 0 }

func (p *ColorGrade) Configure(params map[string]float64) error {
	return configure(p.Name(), params, map[string]*float32{
		"brightness": &p.Brightness,
		"contrast":   &p.Contrast,
		"saturation": &p.Saturation,
		"mix":        &p.Mix,
	})
}

func (p *ColorGrade) Render(ctx *Context, in Input, out Output) error {
	return ctx.Draw(out, colorGradeProgram, []Sampler{{"uInput", in.Texture}},
		gpu.Uniform{Name: "uBrightness", Value: gpu.Float(p.Brightness)},
		gpu.Uniform{Name: "uContrast", Value: gpu.Float(p.Contrast)},
		gpu.Uniform{Name: "uSaturation", Value: gpu.Float(p.Saturation)},
		gpu.Uniform{Name: "uMix", Value: gpu.Float(min(max(p.Mix, 0), 1))},
	)
}

// Blur is a separable Gaussian: a horizontal draw into a scratch target
// then a vertical draw into the output.
type Blur struct {
	toggle
	// Radius scales the tap spacing in texels; zero disables the pass.
	Radius float32

	scratch *cache.Target
}

func NewBlur() *Blur {
	return &Blur{Radius: 1, scratch: scratchTarget("post:blur")}
}

func (p *Blur) Name() string  { return "blur" }
func (p *Blur) Enabled() bool { return !p.disabled && p.Radius > 0 }

func (p *Blur) Configure(params map[string]float64) error {
	return configure(p.Name(), params, map[string]*float32{"radius": &p.Radius})
}

func (p *Blur) Render(ctx *Context, in Input, out Output) error {
	mid, midIn, err := ctx.Scratch(p.scratch, in.Width, in.Height)
	if err != nil {
		return err
	}
	return blur(ctx, in, mid, midIn, out, p.Radius)
}

func (p *Blur) Release(resources *cache.Cache) { resources.ReleaseTarget(p.scratch) }

func blur(ctx *Context, in Input, mid Output, midIn Input, out Output, radius float32) error {
	texel := in.Texel()
	err := ctx.Draw(mid, blurProgram, []Sampler{{"uInput", in.Texture}},
		gpu.Uniform{Name: "uDirection", Value: gpu.Vec2(math.Vec2{X: texel.X})},
		gpu.Uniform{Name: "uRadius", Value: gpu.Float(radius)},
	)
	if err != nil {
		return err
	}
	return ctx.Draw(out, blurProgram, []Sampler{{"uInput", midIn.Texture}},
		gpu.Uniform{Name: "uDirection", Value: gpu.Vec2(math.Vec2{Y: midIn.Texel().Y})},
		gpu.Uniform{Name: "uRadius", Value: gpu.Float(radius)},
	)
}

// EdgeDetect darkens Sobel edges of the input's luminance.
type EdgeDetect struct {
	toggle
	Strength  float32
	Threshold float32
	Color     math.Vec3
}

func NewEdgeDetect() *EdgeDetect { return &EdgeDetect{Strength: 1, Threshold: 0.2} }

func (p *EdgeDetect) Name() string  { return "edgedetect" }
func (p *EdgeDetect) Enabled() bool { return !p.disabled && p.Strength > 0 }

func (p *EdgeDetect) Configure(params map[string]float64) error {
	return configure(p.Name(), params, map[string]*float32{
		"strength":  &p.Strength,
		"threshold": &p.Threshold,
		"r":         &p.Color.X,
		"g":         &p.Color.Y,
		"b":         &p.Color.Z,
	})
}

func (p *EdgeDetect) Render(ctx *Context, in Input, out Output) error {
	return ctx.Draw(out, edgeProgram, []Sampler{{"uInput", in.Texture}},
		gpu.Uniform{Name: "uTexel", Value: gpu.Vec2(in.Texel())},
		gpu.Uniform{Name: "uStrength", Value: gpu.Float(min(p.Strength, 1))},
		gpu.Uniform{Name: "uThreshold", Value: gpu.Float(p.Threshold)},
		gpu.Uniform{Name: "uEdgeColor", Value: gpu.Vec3(p.Color)},
	)
}

// Bloom extracts pixels brighter than Threshold into a half resolution
// target, blurs them Passes times and adds them back scaled by Strength.
type Bloom struct {
	toggle
	Threshold float32
	Strength  float32
	Passes    float32

	scratch [2]*cache.Target
}

func NewBloom() *Bloom {
	return &Bloom{
		Threshold: 1,
		Strength:  0.5,
		Passes:    2,
		scratch:   [2]*cache.Target{scratchTarget("post:bloom.a"), scratchTarget("post:bloom.b")},
	}
}

func (p *Bloom) Name() string  { return "bloom" }
func (p *Bloom) Enabled() bool { return !p.disabled && p.Strength > 0 }

func (p *Bloom) Configure(params map[string]float64) error {
	return configure(p.Name(), params, map[string]*float32{
		"threshold": &p.Threshold,
		"strength":  &p.Strength,
		"passes":    &p.Passes,
	})
}

func (p *Bloom) Render(ctx *Context, in Input, out Output) error {
	w, h := in.Width/2, in.Height/2
	aOut, aIn, err := ctx.Scratch(p.scratch[0], w, h)
	if err != nil {
		return err
	}
	bOut, bIn, err := ctx.Scratch(p.scratch[1], w, h)
	if err != nil {
		return err
	}

	err = ctx.Draw(aOut, brightProgram, []Sampler{{"uInput", in.Texture}},
		gpu.Uniform{Name: "uThreshold", Value: gpu.Float(p.Threshold)})
	if err != nil {
		return err
	}
	for range max(int(p.Passes), 1) {
		if err := blur(ctx, aIn, bOut, bIn, aOut, 1); err != nil {
			return err
		}
	}

	return ctx.Draw(out, bloomCompositeProgram,
		[]Sampler{{"uInput", in.Texture}, {"uBloom", aIn.Texture}},
		gpu.Uniform{Name: "uStrength", Value: gpu.Float(p.Strength)})
}

func (p *Bloom) Release(resources *cache.Cache) {
	for _, t := range p.scratch {
		resources.ReleaseTarget(t)
	}
}
