package renderer

import (
	"math/rand/v2"

	"github.com/chewxy/math32"

	"vizgpu/core"
	"vizgpu/math"
)

// Particle is a single live particle.
type Particle struct {
	Position math.Vec2
	Velocity math.Vec2
	Life     float32 // remaining lifetime in seconds
	MaxLife  float32
	Color    core.Color
}

// VelocityField advects particles in addition to their own velocity.
type VelocityField func(p math.Vec2) math.Vec2

// Swirl is a rigid rotation about center with the given angular speed in
// radians per second.
func Swirl(center math.Vec2, speed float32) VelocityField {
	return func(p math.Vec2) math.Vec2 {
		d := p.Sub(center)
		return math.NewVec2(-d.Y*speed, d.X*speed)
	}
}

// ParticleEmitter spawns particles on the CPU and moves them through a
// velocity field. Markers draw them.
type ParticleEmitter struct {
	Position  math.Vec2
	Direction float32 // mean emission angle in radians
	Spread    float32 // half-angle of the emission cone

	Rate int // particles per second

	MinLife, MaxLife   float32
	MinSpeed, MaxSpeed float32

	// Color over lifetime, from birth to death.
	StartColor core.Color
	EndColor   core.Color

	Gravity math.Vec2
	Field   VelocityField

	// Active stops spawning when false; live particles finish out.
	Active bool

	Particles []Particle

	pool       int
	spawnAccum float32
	rng        *rand.Rand
}

// NewParticleEmitter returns an emitter holding at most maxParticles,
// spraying upward.
func NewParticleEmitter(maxParticles int, seed uint64) *ParticleEmitter {
	return &ParticleEmitter{
		Direction:  math32.Pi / 2,
		Spread:     0.4,
		Rate:       80,
		MinLife:    0.6,
		MaxLife:    1.8,
		MinSpeed:   0.2,
		MaxSpeed:   0.5,
		StartColor: core.Color{R: 1.0, G: 0.7, B: 0.15, A: 1.0},
		EndColor:   core.Color{R: 0.8, G: 0.05, B: 0.0, A: 1.0},
		Active:     true,
		Particles:  make([]Particle, 0, maxParticles),
		pool:       maxParticles,
		rng:        rand.New(rand.NewPCG(seed, seed^0x5deece66d)),
	}
}

// Update advances the simulation by dt seconds.
func (e *ParticleEmitter) Update(dt float32) {
	if e.Active {
		e.spawnAccum += float32(e.Rate) * dt
		for e.spawnAccum >= 1.0 && len(e.Particles) < e.pool {
			e.spawn()
			e.spawnAccum -= 1.0
		}
		if len(e.Particles) >= e.pool {
			e.spawnAccum = 0
		}
	}

	// integrate and compact in place
	write := 0
	for i := range e.Particles {
		p := e.Particles[i]
		p.Life -= dt
		if p.Life <= 0 {
			continue
		}
		p.Velocity = p.Velocity.Add(e.Gravity.Mul(dt))
		v := p.Velocity
		if e.Field != nil {
			v = v.Add(e.Field(p.Position))
		}
		p.Position = p.Position.Add(v.Mul(dt))
		p.Color = e.StartColor.Lerp(e.EndColor, 1-p.Life/p.MaxLife)
		e.Particles[write] = p
		write++
	}
	e.Particles = e.Particles[:write]
}

func (e *ParticleEmitter) Count() int { return len(e.Particles) }

func (e *ParticleEmitter) spawn() {
	life := e.MinLife + e.rng.Float32()*(e.MaxLife-e.MinLife)
	speed := e.MinSpeed + e.rng.Float32()*(e.MaxSpeed-e.MinSpeed)
	angle := e.Direction + (e.rng.Float32()*2-1)*e.Spread
	e.Particles = append(e.Particles, Particle{
		Position: e.Position,
		Velocity: math.Polar(speed, angle),
		Life:     life,
		MaxLife:  life,
		Color:    e.StartColor,
	})
}

// Points appends the xy position of every live particle to dst.
func (e *ParticleEmitter) Points(dst []float32) []float32 {
	for _, p := range e.Particles {
		dst = append(dst, p.Position.X, p.Position.Y)
	}
	return dst
}

// Colors appends the color of every live particle to dst.
func (e *ParticleEmitter) Colors(dst []core.Color) []core.Color {
	for _, p := range e.Particles {
		dst = append(dst, p.Color)
	}
	return dst
}
