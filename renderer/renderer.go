// Package renderer drives per-frame drawing on top of the engine: a frame
// loop, an ordered list of passes, and built-in programs for field
// simulation, colorization and instanced markers.
package renderer

import (
	"fmt"

	"vizgpu/core"
	"vizgpu/gpu"
	"vizgpu/mesh"
	"vizgpu/shader"
)

// Pass draws once per frame.
type Pass interface {
	Draw(s *gpu.Session, opts gpu.DrawOptions) error
	Job() *gpu.Job
}

// instanceCounter is implemented by passes whose instance count differs
// from their job's shape, such as an empty marker field.
type instanceCounter interface {
	Count() int
}

// Stats describe the last rendered frame.
type Stats struct {
	Passes    int
	Vertices  int
	Instances int
}

func (s Stats) String() string {
	return fmt.Sprintf("%d passes, %d vertices, %d instances", s.Passes, s.Vertices, s.Instances)
}

// Renderer draws its passes to the display in order. The first pass
// clears to Background.
type Renderer struct {
	Background core.Color

	session *gpu.Session
	passes  []Pass
	last    Stats
}

func NewRenderer(s *gpu.Session) *Renderer {
	return &Renderer{Background: core.ColorBlack, session: s}
}

func (r *Renderer) Session() *gpu.Session { return r.session }

// Add appends a pass. Passes draw in the order they were added.
func (r *Renderer) Add(p Pass) { r.passes = append(r.passes, p) }

// Render draws every pass. It stops at the first failing pass.
func (r *Renderer) Render() error {
	var st Stats
	bg := r.Background
	for i, p := range r.passes {
		opts := gpu.DrawOptions{}
		if i == 0 {
			opts.Clear = &bg
		}
		if err := p.Draw(r.session, opts); err != nil {
			return fmt.Errorf("pass %d (%s): %w", i, p.Job(), err)
		}
		shape := p.Job().Shape()
		instances := 1
		if shape.Instanced() {
			instances = shape.Instances()
			if c, ok := p.(instanceCounter); ok {
				instances = c.Count()
			}
			st.Instances += instances
		}
		st.Passes++
		st.Vertices += shape.VertexCount() * instances
	}
	r.last = st
	return nil
}

func (r *Renderer) Stats() Stats { return r.last }

// Solid draws a mesh in one color, for overlays such as grids.
type Solid struct {
	mesh *mesh.Mesh
	job  *gpu.Job
}

func NewSolid(m *mesh.Mesh, c core.Color) (*Solid, error) {
	prog, err := gpu.NewProgram(solidVertexShader, solidFragmentShader)
	if err != nil {
		return nil, fmt.Errorf("solid program: %w", err)
	}
	job, err := gpu.NewJob(prog, m.Bind(gpu.Bindings{
		"u_color": gpu.NewUniform(shader.Vec4, c.Slice()...),
	}, "a_pos", ""), m.Shape())
	if err != nil {
		return nil, fmt.Errorf("solid job: %w", err)
	}
	return &Solid{mesh: m, job: job}, nil
}

func (p *Solid) Job() *gpu.Job { return p.job }

func (p *Solid) SetColor(s *gpu.Session, c core.Color) error {
	return p.job.UpdateUniform(s, "u_color", c.Slice()...)
}

func (p *Solid) Draw(s *gpu.Session, opts gpu.DrawOptions) error {
	return drawJob(s, p.job, opts)
}
