// Package mesh builds 2D geometry and turns it into engine resources.
package mesh

import (
	"fmt"

	"vizgpu/driver"
	"vizgpu/gpu"
	"vizgpu/shader"
)

// Mesh holds 2D geometry on the CPU. Positions and UVs are interleaved
// x, y pairs. Indices may be empty for non-indexed geometry.
type Mesh struct {
	Name      string
	Mode      driver.DrawMode
	Positions []float32
	UVs       []float32
	Indices   []uint32

	positions *gpu.Attribute
	uvs       *gpu.Attribute
	indices   *gpu.IndexList
}

// CreateMeshFromData wraps existing slices without copying.
func CreateMeshFromData(name string, mode driver.DrawMode, positions []float32, indices []uint32) *Mesh {
	return &Mesh{Name: name, Mode: mode, Positions: positions, Indices: indices}
}

func (m *Mesh) VertexCount() int { return len(m.Positions) / 2 }

func (m *Mesh) String() string {
	return fmt.Sprintf("mesh %q (%d vertices, %d indices, %s)", m.Name, m.VertexCount(), len(m.Indices), m.Mode)
}

// PositionAttribute returns the vec2 position resource. The same resource
// is returned on every call so uploads are shared.
func (m *Mesh) PositionAttribute() *gpu.Attribute {
	if m.positions == nil {
		m.positions = gpu.NewAttribute(shader.Vec2, m.Positions, false)
	}
	return m.positions
}

// UVAttribute returns the vec2 texture coordinate resource, or nil when
// the mesh has none.
func (m *Mesh) UVAttribute() *gpu.Attribute {
	if len(m.UVs) == 0 {
		return nil
	}
	if m.uvs == nil {
		m.uvs = gpu.NewAttribute(shader.Vec2, m.UVs, false)
	}
	return m.uvs
}

// IndexList returns the index resource, or nil for non-indexed meshes.
func (m *Mesh) IndexList() *gpu.IndexList {
	if len(m.Indices) == 0 {
		return nil
	}
	if m.indices == nil {
		m.indices = gpu.NewIndexList(m.Indices)
	}
	return m.indices
}

// Shape is the draw shape for one copy of the mesh.
func (m *Mesh) Shape() gpu.DrawShape {
	if idx := m.IndexList(); idx != nil {
		return gpu.Indexed(m.Mode, idx)
	}
	return gpu.Plain(m.Mode, m.VertexCount())
}

// InstancedShape draws the mesh instances times.
func (m *Mesh) InstancedShape(instances int) gpu.DrawShape {
	if idx := m.IndexList(); idx != nil {
		return gpu.InstancedIndexed(m.Mode, idx, instances)
	}
	return gpu.InstancedPlain(m.Mode, m.VertexCount(), instances)
}

// Bind adds the mesh's attributes to b under the given names. An empty
// uvName skips texture coordinates.
func (m *Mesh) Bind(b gpu.Bindings, posName, uvName string) gpu.Bindings {
	if b == nil {
		b = make(gpu.Bindings)
	}
	b[posName] = m.PositionAttribute()
	if uv := m.UVAttribute(); uvName != "" && uv != nil {
		b[uvName] = uv
	}
	return b
}

// Release frees the mesh's resources in s.
func (m *Mesh) Release(s *gpu.Session) {
	if m.positions != nil {
		s.Release(m.positions)
	}
	if m.uvs != nil {
		s.Release(m.uvs)
	}
	if m.indices != nil {
		s.Release(m.indices)
	}
}
