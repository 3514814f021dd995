package renderer

import (
	"fmt"

	"vizgpu/core"
	"vizgpu/gpu"
	"vizgpu/mesh"
	"vizgpu/shader"
)

// Colorize draws a scalar field over the display through a two-color
// ramp.
type Colorize struct {
	job  *gpu.Job
	quad *mesh.Mesh
}

// NewColorize maps field values in [lo, hi] from low to high.
func NewColorize(field *gpu.Surface, low, high core.Color, lo, hi float32) (*Colorize, error) {
	if hi <= lo {
		return nil, fmt.Errorf("colorize: empty range [%g, %g]", lo, hi)
	}
	prog, err := gpu.NewProgram(quadVertexShader, colorizeFragmentShader)
	if err != nil {
		return nil, fmt.Errorf("colorize program: %w", err)
	}
	quad := mesh.FullscreenQuad()
	job, err := gpu.NewJob(prog, quad.Bind(gpu.Bindings{
		"u_field": field,
		"u_low":   gpu.NewUniform(shader.Vec4, low.Slice()...),
		"u_high":  gpu.NewUniform(shader.Vec4, high.Slice()...),
		"u_range": gpu.NewUniform(shader.Vec2, lo, hi),
	}, "a_pos", "a_uv"), quad.Shape())
	if err != nil {
		return nil, fmt.Errorf("colorize job: %w", err)
	}
	return &Colorize{job: job, quad: quad}, nil
}

func (c *Colorize) Job() *gpu.Job { return c.job }

// SetField points the ramp at another surface.
func (c *Colorize) SetField(field *gpu.Surface) error {
	return c.job.Rebind("u_field", field)
}

func (c *Colorize) SetRamp(s *gpu.Session, low, high core.Color) error {
	if err := c.job.UpdateUniform(s, "u_low", low.Slice()...); err != nil {
		return err
	}
	return c.job.UpdateUniform(s, "u_high", high.Slice()...)
}

func (c *Colorize) SetRange(s *gpu.Session, lo, hi float32) error {
	if hi <= lo {
		return fmt.Errorf("colorize: empty range [%g, %g]", lo, hi)
	}
	return c.job.UpdateUniform(s, "u_range", lo, hi)
}

func (c *Colorize) Draw(s *gpu.Session, opts gpu.DrawOptions) error {
	return drawJob(s, c.job, opts)
}

func (c *Colorize) Release(s *gpu.Session) {
	c.job.Release(s)
	c.quad.Release(s)
}

func drawJob(s *gpu.Session, job *gpu.Job, opts gpu.DrawOptions) error {
	if err := job.Upload(s); err != nil {
		return err
	}
	if err := job.Bind(s); err != nil {
		return err
	}
	return job.Draw(s, opts)
}
