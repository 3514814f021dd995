package renderer

import (
	"fmt"
	"math/rand/v2"

	"vizgpu/core"
	"vizgpu/driver"
	"vizgpu/gpu"
	"vizgpu/mesh"
	"vizgpu/shader"
)

// Diffusion is a heat field advanced on the GPU by ping-ponging two float
// surfaces through a Laplacian step.
type Diffusion struct {
	Width, Height int

	pp   *gpu.PingPong
	job  *gpu.Job
	quad *mesh.Mesh
	a, b *gpu.Surface
}

// NewDiffusion creates a width×height field. initial holds one value per
// cell, row 0 at the bottom; nil starts cold.
func NewDiffusion(width, height int, rate, decay float32, initial []float32) (*Diffusion, error) {
	if initial != nil && len(initial) != width*height {
		return nil, fmt.Errorf("diffusion: %d initial values for a %dx%d field", len(initial), width, height)
	}
	texels := make([]float32, width*height*4)
	for i, v := range initial {
		texels[i*4] = v
		texels[i*4+3] = 1
	}
	a := gpu.NewFloatSurface(width, height, nil, driver.FilterNearest)
	b := gpu.NewFloatSurface(width, height, texels, driver.FilterNearest)

	prog, err := gpu.NewProgram(quadVertexShader, diffusionFragmentShader)
	if err != nil {
		return nil, fmt.Errorf("diffusion program: %w", err)
	}
	quad := mesh.FullscreenQuad()
	job, err := gpu.NewJob(prog, quad.Bind(gpu.Bindings{
		"u_state": b,
		"u_rate":  gpu.NewUniform(shader.Float, rate),
		"u_decay": gpu.NewUniform(shader.Float, decay),
	}, "a_pos", "a_uv"), quad.Shape())
	if err != nil {
		return nil, fmt.Errorf("diffusion job: %w", err)
	}
	pp, err := gpu.NewPingPong(job, "u_state", a, b)
	if err != nil {
		return nil, err
	}
	pp.Clear = &core.ColorTransparent
	return &Diffusion{Width: width, Height: height, pp: pp, job: job, quad: quad, a: a, b: b}, nil
}

// Init seeds the field from the initial values. The seeding draw is
// itself one diffusion step.
func (d *Diffusion) Init(s *gpu.Session) error {
	if err := d.pp.Init(s); err != nil {
		return fmt.Errorf("diffusion init: %w", err)
	}
	return nil
}

// Step advances the field n steps.
func (d *Diffusion) Step(s *gpu.Session, n int) error {
	for i := 0; i < n; i++ {
		if err := d.pp.Step(s, nil); err != nil {
			return err
		}
	}
	return nil
}

// SetCoefficients changes rate and decay, effective from the next step.
func (d *Diffusion) SetCoefficients(s *gpu.Session, rate, decay float32) error {
	if err := d.job.UpdateUniform(s, "u_rate", rate); err != nil {
		return err
	}
	return d.job.UpdateUniform(s, "u_decay", decay)
}

// Reset replaces the field contents and seeds the field again.
func (d *Diffusion) Reset(s *gpu.Session, values []float32) error {
	if len(values) != d.Width*d.Height {
		return fmt.Errorf("diffusion: %d values for a %dx%d field", len(values), d.Width, d.Height)
	}
	texels := make([]float32, len(values)*4)
	for i, v := range values {
		texels[i*4] = v
		texels[i*4+3] = 1
	}
	if err := d.b.UpdateFloat(s, d.Width, d.Height, texels); err != nil {
		return err
	}
	return d.Init(s)
}

// Field is the most recently written surface. Only the red channel is
// meaningful.
func (d *Diffusion) Field() *gpu.Surface { return d.pp.Current() }

func (d *Diffusion) PingPong() *gpu.PingPong { return d.pp }

// Values reads the field back, one value per cell.
func (d *Diffusion) Values(s *gpu.Session) ([]float32, error) {
	texels, err := s.ReadSurface(d.Field())
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(texels)/4)
	for i := range out {
		out[i] = texels[i*4]
	}
	return out, nil
}

// Release frees the field's surfaces and geometry in s.
func (d *Diffusion) Release(s *gpu.Session) {
	d.job.Release(s)
	d.quad.Release(s)
	s.Release(d.a)
	s.Release(d.b)
}

// Hotspots returns a width×height field of n disc-shaped hot regions at
// positions drawn from seed.
func Hotspots(width, height, n int, seed int64) []float32 {
	rng := rand.New(rand.NewPCG(uint64(seed), 0x9e3779b97f4a7c15))
	field := make([]float32, width*height)
	radius := max(min(width, height)/16, 1)
	for k := 0; k < n; k++ {
		cx, cy := rng.IntN(width), rng.IntN(height)
		for y := max(cy-radius, 0); y < min(cy+radius+1, height); y++ {
			for x := max(cx-radius, 0); x < min(cx+radius+1, width); x++ {
				dx, dy := x-cx, y-cy
				if dx*dx+dy*dy <= radius*radius {
					field[y*width+x] = 1
				}
			}
		}
	}
	return field
}
