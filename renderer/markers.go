package renderer

import (
	"fmt"

	"vizgpu/core"
	"vizgpu/gpu"
	"vizgpu/math"
	"vizgpu/mesh"
	"vizgpu/shader"
)

// Markers draws one copy of a base shape per point, in a single instanced
// draw. Consecutive groups of GroupSize points share a color.
type Markers struct {
	GroupSize int

	shape   *mesh.Mesh
	job     *gpu.Job
	offsets *gpu.Attribute
	colors  *gpu.Attribute
	count   int
}

// NewMarkers places shape at every xy pair of points, which are in the
// coordinate system of bounds. colors holds one color per group of
// groupSize points. size scales shape in clip units. points may be empty.
func NewMarkers(shape *mesh.Mesh, points []float32, colors []core.Color, groupSize int, bounds math.Rect, size float32) (*Markers, error) {
	if groupSize < 1 {
		return nil, fmt.Errorf("markers: group size %d", groupSize)
	}
	if len(points)%2 != 0 {
		return nil, fmt.Errorf("markers: odd point coordinate count %d", len(points))
	}
	if bounds.Empty() {
		return nil, fmt.Errorf("markers: empty bounds")
	}
	count := len(points) / 2
	if groups := (count + groupSize - 1) / groupSize; len(colors) < groups {
		return nil, fmt.Errorf("markers: %d colors for %d groups: %w", len(colors), groups, gpu.ErrInvalidShape)
	}
	prog, err := gpu.NewProgram(markerVertexShader, markerFragmentShader)
	if err != nil {
		return nil, fmt.Errorf("markers program: %w", err)
	}
	// an empty field keeps one placeholder instance that is never drawn
	if count == 0 {
		points = []float32{0, 0}
	}
	if len(colors) == 0 {
		colors = []core.Color{core.ColorWhite}
	}
	offsets := gpu.NewInstancedAttribute(shader.Vec2, points, 1, true)
	palette := gpu.NewInstancedAttribute(shader.Vec4, flattenColors(colors), groupSize, true)
	job, err := gpu.NewJob(prog, shape.Bind(gpu.Bindings{
		"a_offset": offsets,
		"a_color":  palette,
		"u_proj":   gpu.NewUniform(shader.Mat4, math.Mat4DataToClip(bounds).Elems()...),
		"u_size":   gpu.NewUniform(shader.Float, size),
	}, "a_pos", ""), shape.InstancedShape(max(count, 1)))
	if err != nil {
		return nil, fmt.Errorf("markers job: %w", err)
	}
	return &Markers{GroupSize: groupSize, shape: shape, job: job, offsets: offsets, colors: palette, count: count}, nil
}

func flattenColors(colors []core.Color) []float32 {
	out := make([]float32, 0, len(colors)*4)
	for _, c := range colors {
		out = append(out, c.Slice()...)
	}
	return out
}

func (m *Markers) Job() *gpu.Job { return m.job }
func (m *Markers) Count() int    { return m.count }

// Move replaces the marker positions. The number of markers may change
// as long as the colors still cover every group.
func (m *Markers) Move(s *gpu.Session, points []float32) error {
	return m.Update(s, points, nil)
}

// Recolor replaces the group colors. It must keep at least as many
// colors as there are groups.
func (m *Markers) Recolor(s *gpu.Session, colors []core.Color) error {
	if groups := m.groups(m.count); len(colors) < groups {
		return fmt.Errorf("markers: %d colors for %d groups: %w", len(colors), groups, gpu.ErrInvalidShape)
	}
	if len(colors) == 0 {
		return nil
	}
	return m.colors.Update(s, flattenColors(colors))
}

// Update replaces positions and, unless colors is nil, the group colors.
func (m *Markers) Update(s *gpu.Session, points []float32, colors []core.Color) error {
	if len(points)%2 != 0 {
		return fmt.Errorf("markers: odd point coordinate count %d", len(points))
	}
	n := len(points) / 2
	have := m.colors.Len()
	if colors != nil {
		have = len(colors)
	}
	if groups := m.groups(n); groups > have {
		return fmt.Errorf("markers: %d points need %d colors, have %d: %w", n, groups, have, gpu.ErrInvalidShape)
	}
	if n == 0 {
		m.count = 0
		return nil
	}
	if colors != nil {
		if err := m.colors.Update(s, flattenColors(colors)); err != nil {
			return err
		}
	}
	if err := m.offsets.Update(s, points); err != nil {
		return err
	}
	if n != m.job.Shape().Instances() {
		if err := m.job.SetShape(m.shape.InstancedShape(n)); err != nil {
			return err
		}
	}
	m.count = n
	return nil
}

func (m *Markers) groups(n int) int { return (n + m.GroupSize - 1) / m.GroupSize }

// SetBounds changes the data rectangle mapped onto clip space.
func (m *Markers) SetBounds(s *gpu.Session, bounds math.Rect) error {
	if bounds.Empty() {
		return fmt.Errorf("markers: empty bounds")
	}
	return m.job.UpdateUniform(s, "u_proj", math.Mat4DataToClip(bounds).Elems()...)
}

func (m *Markers) SetSize(s *gpu.Session, size float32) error {
	return m.job.UpdateUniform(s, "u_size", size)
}

// Draw does nothing while there are no markers.
func (m *Markers) Draw(s *gpu.Session, opts gpu.DrawOptions) error {
	if m.count == 0 {
		return nil
	}
	return drawJob(s, m.job, opts)
}

// Release frees the per-marker attributes and the job's layout. The base
// shape may be shared and is left alone.
func (m *Markers) Release(s *gpu.Session) {
	m.job.Release(s)
	s.Release(m.offsets)
	s.Release(m.colors)
}
