package main

import (
	"fmt"

	"github.com/chewxy/math32"

	"scene-renderer/core"
	"scene-renderer/math"
	"scene-renderer/scene"
)

// dayPalette is the sky and light state at one key time of day.
type dayPalette struct {
	t            float32 // 0..1, wraps
	sky          core.Color
	fogColor     core.Color
	fogDensity   float32
	sunColor     core.Color
	sunIntensity float32
	ambient      core.Color
}

var palettes = []dayPalette{
	{ // noon
		t:            0.00,
		sky:          core.Color{R: 0.58, G: 0.75, B: 0.95, A: 1},
		fogColor:     core.Color{R: 0.62, G: 0.78, B: 0.95, A: 1},
		fogDensity:   0.011,
		sunColor:     core.Color{R: 1.00, G: 0.98, B: 0.92, A: 1},
		sunIntensity: 1.20,
		ambient:      core.Color{R: 0.16, G: 0.18, B: 0.26, A: 1},
	},
	{ // golden hour
		t:            0.22,
		sky:          core.Color{R: 0.90, G: 0.52, B: 0.18, A: 1},
		fogColor:     core.Color{R: 0.85, G: 0.55, B: 0.25, A: 1},
		fogDensity:   0.018,
		sunColor:     core.Color{R: 1.00, G: 0.65, B: 0.25, A: 1},
		sunIntensity: 0.90,
		ambient:      core.Color{R: 0.10, G: 0.12, B: 0.20, A: 1},
	},
	{ // dusk
		t:            0.30,
		sky:          core.Color{R: 0.50, G: 0.22, B: 0.28, A: 1},
		fogColor:     core.Color{R: 0.35, G: 0.18, B: 0.22, A: 1},
		fogDensity:   0.020,
		sunColor:     core.Color{R: 0.70, G: 0.40, B: 0.55, A: 1},
		sunIntensity: 0.25,
		ambient:      core.Color{R: 0.06, G: 0.07, B: 0.14, A: 1},
	},
	{ // midnight, lit by the moon
		t:            0.50,
		sky:          core.Color{R: 0.04, G: 0.04, B: 0.08, A: 1},
		fogColor:     core.Color{R: 0.03, G: 0.03, B: 0.06, A: 1},
		fogDensity:   0.010,
		sunColor:     core.Color{R: 0.40, G: 0.45, B: 0.65, A: 1},
		sunIntensity: 0.12,
		ambient:      core.Color{R: 0.03, G: 0.04, B: 0.09, A: 1},
	},
	{ // dawn
		t:            0.78,
		sky:          core.Color{R: 0.88, G: 0.45, B: 0.22, A: 1},
		fogColor:     core.Color{R: 0.75, G: 0.40, B: 0.20, A: 1},
		fogDensity:   0.015,
		sunColor:     core.Color{R: 1.00, G: 0.60, B: 0.28, A: 1},
		sunIntensity: 0.70,
		ambient:      core.Color{R: 0.09, G: 0.10, B: 0.17, A: 1},
	},
}

// DayNight drives the sun and environment through a day.
type DayNight struct {
	Time   float32 // 0 noon, 0.25 sunset, 0.5 midnight, 0.75 sunrise
	Period float32 // seconds per full cycle
	Active bool
}

func NewDayNight(period float32) *DayNight {
	return &DayNight{Period: period, Active: period > 0}
}

func (dn *DayNight) Update(dt float32) {
	if !dn.Active {
		return
	}
	dn.Time += dt / dn.Period
	dn.Time -= math32.Floor(dn.Time)
}

func lerpColor(a, b core.Color, t float32) core.Color {
	return core.Color{
		R: a.R + (b.R-a.R)*t,
		G: a.G + (b.G-a.G)*t,
		B: a.B + (b.B-a.B)*t,
		A: 1,
	}
}

// samplePalette interpolates between the keys around t, wrapping from the
// last key back to the first.
func samplePalette(t float32) dayPalette {
	n := len(palettes)
	i := n - 1
	for k := 0; k < n; k++ {
		if palettes[k].t > t {
			break
		}
		i = k
	}
	a, b := palettes[i], palettes[(i+1)%n]
	span := b.t - a.t
	local := t - a.t
	if span <= 0 {
		span += 1
	}
	if local < 0 {
		local += 1
	}
	f := local / span

	return dayPalette{
		t:            t,
		sky:          lerpColor(a.sky, b.sky, f),
		fogColor:     lerpColor(a.fogColor, b.fogColor, f),
		fogDensity:   a.fogDensity + (b.fogDensity-a.fogDensity)*f,
		sunColor:     lerpColor(a.sunColor, b.sunColor, f),
		sunIntensity: a.sunIntensity + (b.sunIntensity-a.sunIntensity)*f,
		ambient:      lerpColor(a.ambient, b.ambient, f),
	}
}

// Apply aims the sun node and returns the environment for the current time.
// The sun circles in the XY plane, tilted along Z.
func (dn *DayNight) Apply(env scene.Environment, sun *scene.Node) scene.Environment {
	p := samplePalette(dn.Time)

	angle := dn.Time * 2 * math32.Pi
	toSun := math.Vec3{X: math32.Sin(angle), Y: math32.Cos(angle), Z: 0.35}.Normalize()
	if toSun.Y < 0 {
		// Below the horizon the moon takes over from the opposite side.
		toSun = toSun.Negate()
	}
	if sun != nil && sun.Light != nil {
		sun.SetPosition(toSun.Mul(30))
		sun.LookAt(math.Vec3Zero, math.Vec3Up)
		sun.Light.Color = p.sunColor
		sun.Light.Intensity = p.sunIntensity
	}

	env.Ambient = p.ambient
	env.Background = p.sky
	env.FogColor = p.fogColor
	env.FogDensity = p.fogDensity
	if env.Sky != nil {
		// The horizon matches the fog so distant geometry fades into it.
		env.Sky.Zenith = lerpColor(core.Color{}, p.sky, 0.6)
		env.Sky.Horizon = p.fogColor
		env.Sky.Ground = lerpColor(p.ambient, p.fogColor, 0.3)
	}
	return env
}

// Clock returns the time of day as a 12-hour clock reading, noon at Time 0.
func (dn *DayNight) Clock() string {
	hours := math32.Mod(dn.Time*24+12, 24)
	h := int(hours)
	m := int((hours - float32(h)) * 60)
	period := "AM"
	if h >= 12 {
		period = "PM"
	}
	display := h % 12
	if display == 0 {
		display = 12
	}
	return fmt.Sprintf("%02d:%02d %s", display, m, period)
}
