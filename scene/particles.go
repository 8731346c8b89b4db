package scene

import (
	"math/rand"

	"github.com/chewxy/math32"

	"scene-renderer/core"
	"scene-renderer/gpu"
	"scene-renderer/math"
)

// Particle is a single live particle, in the emitter node's local space.
type Particle struct {
	Position math.Vec3
	Velocity math.Vec3
	Life     float32 // remaining seconds
	MaxLife  float32
	Color    core.Color
}

// Emitter simulates CPU particles and mirrors them into a point geometry
// carried by Node. Every Update bumps the geometry version, so the renderer
// re-uploads the points on the next frame.
type Emitter struct {
	Node *Node

	// Direction is the mean emission direction; Spread is the cone
	// half-angle in radians.
	Direction math.Vec3
	Spread    float32

	Rate               int // particles per second
	MinLife, MaxLife   float32
	MinSpeed, MaxSpeed float32

	StartColor core.Color
	EndColor   core.Color
	Gravity    math.Vec3

	// Active stops spawning when false; live particles run out.
	Active bool

	Particles []Particle

	geometry   *Geometry
	pool       int
	spawnAccum float32
	rng        *rand.Rand

	positions []math.Vec3
	colors    []core.Color
}

// NewEmitter returns an emitter drawing additive points of the given size.
func NewEmitter(name string, maxParticles int, size float32, seed int64) *Emitter {
	g := CreatePoints(name, nil)
	mat := NewAdditiveMaterial(name, PointParams{
		Surface:         Surface{VertexColors: true},
		Color:           core.ColorWhite,
		Size:            size,
		SizeAttenuation: true,
	})
	n := NewMeshNode(name, g, mat)
	n.CastShadow = false
	n.ReceiveShadow = false

	return &Emitter{
		Node:       n,
		Direction:  math.Vec3Up,
		Spread:     0.4,
		Rate:       80,
		MinLife:    0.6,
		MaxLife:    1.8,
		MinSpeed:   2.0,
		MaxSpeed:   5.0,
		StartColor: core.Color{R: 1.0, G: 0.7, B: 0.15, A: 1.0},
		EndColor:   core.Color{R: 0.8, G: 0.05, B: 0.0, A: 0.0},
		Gravity:    math.Vec3{Y: 0.3},
		Active:     true,
		Particles:  make([]Particle, 0, maxParticles),
		geometry:   g,
		pool:       maxParticles,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// NewSmokeEmitter returns a slow rising alpha-blended emitter.
func NewSmokeEmitter(name string, maxParticles int, seed int64) *Emitter {
	e := NewEmitter(name, maxParticles, 0.4, seed)
	e.Node.Renderable.Material.State = gpu.TransparentState()
	e.Spread = 0.5
	e.Rate = 20
	e.MinLife, e.MaxLife = 2.0, 4.0
	e.MinSpeed, e.MaxSpeed = 0.5, 1.5
	e.StartColor = core.Color{R: 0.3, G: 0.3, B: 0.3, A: 0.4}
	e.EndColor = core.Color{R: 0.6, G: 0.6, B: 0.6, A: 0.0}
	e.Gravity = math.Vec3{Y: 0.1}
	return e
}

// Geometry returns the point cloud the emitter writes.
func (e *Emitter) Geometry() *Geometry { return e.geometry }

// Update advances the simulation by dt seconds and rewrites the geometry.
func (e *Emitter) Update(dt float32) {
	if e.Active {
		e.spawnAccum += float32(e.Rate) * dt
		for e.spawnAccum >= 1.0 && len(e.Particles) < e.pool {
			e.spawn()
			e.spawnAccum -= 1.0
		}
		if len(e.Particles) == e.pool {
			e.spawnAccum = 0
		}
	}

	live := e.Particles[:0]
	for _, p := range e.Particles {
		p.Life -= dt
		if p.Life <= 0 {
			continue
		}
		p.Velocity = p.Velocity.Add(e.Gravity.Mul(dt))
		p.Position = p.Position.Add(p.Velocity.Mul(dt))
		p.Color = lerpColor(e.StartColor, e.EndColor, 1-p.Life/p.MaxLife)
		live = append(live, p)
	}
	e.Particles = live
	e.sync()
}

// Count returns the number of live particles.
func (e *Emitter) Count() int { return len(e.Particles) }

func (e *Emitter) sync() {
	e.positions = e.positions[:0]
	e.colors = e.colors[:0]
	for _, p := range e.Particles {
		e.positions = append(e.positions, p.Position)
		e.colors = append(e.colors, p.Color)
	}
	// The geometry keeps the slices, so hand it copies it can own.
	e.geometry.SetColors(append([]core.Color(nil), e.colors...))
	e.geometry.SetPositions(append([]math.Vec3(nil), e.positions...))
}

func (e *Emitter) spawn() {
	life := e.MinLife + e.rng.Float32()*(e.MaxLife-e.MinLife)
	speed := e.MinSpeed + e.rng.Float32()*(e.MaxSpeed-e.MinSpeed)
	e.Particles = append(e.Particles, Particle{
		Velocity: randomInCone(e.Direction, e.Spread, e.rng).Mul(speed),
		Life:     life,
		MaxLife:  life,
		Color:    e.StartColor,
	})
}

// randomInCone returns a unit vector uniformly distributed over the
// spherical cap of half-angle spread around axis.
func randomInCone(axis math.Vec3, spread float32, rng *rand.Rand) math.Vec3 {
	axis = axis.Normalize()
	phi := rng.Float32() * 2 * math32.Pi
	cosMin := math32.Cos(spread)
	cosTheta := cosMin + rng.Float32()*(1-cosMin)
	sinTheta := math32.Sqrt(1 - cosTheta*cosTheta)

	up := math.Vec3Up
	if math32.Abs(axis.Dot(up)) > 0.99 {
		up = math.Vec3{X: 1}
	}
	right := axis.Cross(up).Normalize()
	up = right.Cross(axis).Normalize()

	return axis.Mul(cosTheta).
		Add(right.Mul(sinTheta * math32.Cos(phi))).
		Add(up.Mul(sinTheta * math32.Sin(phi))).
		Normalize()
}

func lerpColor(a, b core.Color, t float32) core.Color {
	return core.Color{
		R: a.R + (b.R-a.R)*t,
		G: a.G + (b.G-a.G)*t,
		B: a.B + (b.B-a.B)*t,
		A: a.A + (b.A-a.A)*t,
	}
}
