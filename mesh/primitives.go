package mesh

import (
	"github.com/chewxy/math32"

	"vizgpu/driver"
	"vizgpu/math"
)

// FullscreenQuad covers clip space with a 4-vertex triangle strip whose
// UVs run from (0, 0) at the bottom left to (1, 1) at the top right.
func FullscreenQuad() *Mesh {
	m := CreateMeshFromData("FullscreenQuad", driver.DrawModeTriangleStrip,
		[]float32{-1, -1, 1, -1, -1, 1, 1, 1}, nil)
	m.UVs = []float32{0, 0, 1, 0, 0, 1, 1, 1}
	return m
}

// CreatePolygon builds a regular polygon of radius r centered at the
// origin as an indexed triangle list. The first vertex is the center.
func CreatePolygon(sides int, r float32) *Mesh {
	if sides < 3 {
		sides = 3
	}
	positions := []float32{0, 0}
	uvs := []float32{0.5, 0.5}
	var indices []uint32
	for i := 0; i < sides; i++ {
		angle := float32(i) * 2 * math32.Pi / float32(sides)
		p := math.Polar(r, angle)
		positions = append(positions, p.X, p.Y)
		uv := math.Polar(0.5, angle).Add(math.NewVec2(0.5, 0.5))
		uvs = append(uvs, uv.X, uv.Y)
		next := uint32((i+1)%sides) + 1
		indices = append(indices, 0, uint32(i)+1, next)
	}
	m := CreateMeshFromData("Polygon", driver.DrawModeTriangles, positions, indices)
	m.UVs = uvs
	return m
}

// CreateCircle approximates a disc with segments sides.
func CreateCircle(r float32, segments int) *Mesh {
	m := CreatePolygon(segments, r)
	m.Name = "Circle"
	return m
}

// CreateGrid builds line geometry dividing clip space into divisions
// cells along each axis.
func CreateGrid(divisions int) *Mesh {
	if divisions < 1 {
		divisions = 1
	}
	step := 2 / float32(divisions)

	var positions []float32
	var indices []uint32
	addLine := func(a, b math.Vec2) {
		base := uint32(len(positions) / 2)
		positions = append(positions, a.X, a.Y, b.X, b.Y)
		indices = append(indices, base, base+1)
	}
	for i := 0; i <= divisions; i++ {
		v := -1 + float32(i)*step
		addLine(math.NewVec2(v, -1), math.NewVec2(v, 1))
		addLine(math.NewVec2(-1, v), math.NewVec2(1, v))
	}
	return CreateMeshFromData("Grid", driver.DrawModeLines, positions, indices)
}

// QuadIndices returns triangle-list indices for n quads stored as
// consecutive groups of 4 vertices in strip order.
func QuadIndices(n int) []uint32 {
	indices := make([]uint32, 0, n*6)
	for i := 0; i < n; i++ {
		b := uint32(i * 4)
		indices = append(indices, b, b+1, b+2, b+2, b+1, b+3)
	}
	return indices
}
