package gpu

import (
	"fmt"

	"vizgpu/driver"
)

// ShapeKind tags the variants of DrawShape.
type ShapeKind uint8

const (
	ShapePlain ShapeKind = iota
	ShapeIndexed
	ShapeInstancedPlain
	ShapeInstancedIndexed
)

func (k ShapeKind) String() string {
	switch k {
	case ShapePlain:
		return "plain"
	case ShapeIndexed:
		return "indexed"
	case ShapeInstancedPlain:
		return "instanced"
	case ShapeInstancedIndexed:
		return "instanced-indexed"
	}
	return "unknown"
}

// DrawShape describes one draw call: primitive mode, vertex count or
// index list, and instance count. Construct it with Plain, Indexed,
// InstancedPlain or InstancedIndexed.
type DrawShape struct {
	kind      ShapeKind
	mode      driver.DrawMode
	count     int
	indices   *IndexList
	instances int
}

// Plain draws count consecutive vertices.
func Plain(mode driver.DrawMode, count int) DrawShape {
	return DrawShape{kind: ShapePlain, mode: mode, count: count, instances: 1}
}

// Indexed visits vertices in the order of idx.
func Indexed(mode driver.DrawMode, idx *IndexList) DrawShape {
	return DrawShape{kind: ShapeIndexed, mode: mode, indices: idx, instances: 1}
}

// InstancedPlain repeats a plain draw instances times.
func InstancedPlain(mode driver.DrawMode, count, instances int) DrawShape {
	return DrawShape{kind: ShapeInstancedPlain, mode: mode, count: count, instances: instances}
}

// InstancedIndexed repeats an indexed draw instances times.
func InstancedIndexed(mode driver.DrawMode, idx *IndexList, instances int) DrawShape {
	return DrawShape{kind: ShapeInstancedIndexed, mode: mode, indices: idx, instances: instances}
}

func (d DrawShape) Kind() ShapeKind       { return d.kind }
func (d DrawShape) Mode() driver.DrawMode { return d.mode }
func (d DrawShape) Indices() *IndexList   { return d.indices }
func (d DrawShape) Instances() int        { return d.instances }

func (d DrawShape) Indexed() bool {
	return d.kind == ShapeIndexed || d.kind == ShapeInstancedIndexed
}

func (d DrawShape) Instanced() bool {
	return d.kind == ShapeInstancedPlain || d.kind == ShapeInstancedIndexed
}

// VertexCount is the number of vertices one instance visits.
func (d DrawShape) VertexCount() int {
	if d.Indexed() {
		if d.indices == nil {
			return 0
		}
		return d.indices.Len()
	}
	return d.count
}

// WithInstances returns a copy of an instanced shape with a new instance
// count.
func (d DrawShape) WithInstances(n int) DrawShape {
	d.instances = n
	return d
}

func (d DrawShape) String() string {
	if d.Instanced() {
		return fmt.Sprintf("%s %s×%d ×%d", d.kind, d.mode, d.VertexCount(), d.instances)
	}
	return fmt.Sprintf("%s %s×%d", d.kind, d.mode, d.VertexCount())
}

// check validates the shape on its own, before attributes are considered.
func (d DrawShape) check() error {
	switch {
	case d.Indexed() && d.indices == nil:
		return fmt.Errorf("%w: %s draw without an index list", ErrInvalidShape, d.kind)
	case d.VertexCount() <= 0:
		return fmt.Errorf("%w: %s draw of no vertices", ErrInvalidShape, d.kind)
	case d.instances <= 0:
		return fmt.Errorf("%w: %d instances", ErrInvalidShape, d.instances)
	}
	return nil
}

// vertexSpan is the number of per-vertex elements the draw reads.
func (d DrawShape) vertexSpan() int {
	if d.Indexed() {
		return d.indices.Max() + 1
	}
	return d.count
}

// issue dispatches the draw call on the shape's tag.
func (d DrawShape) issue(dev driver.Device) {
	switch d.kind {
	case ShapePlain:
		dev.DrawArrays(d.mode, 0, d.count)
	case ShapeIndexed:
		dev.DrawElements(d.mode, 0, d.indices.Len())
	case ShapeInstancedPlain:
		dev.DrawArraysInstanced(d.mode, 0, d.count, d.instances)
	case ShapeInstancedIndexed:
		dev.DrawElementsInstanced(d.mode, 0, d.indices.Len(), d.instances)
	}
}
