package softgpu

import (
	"fmt"
	"math"

	"vizgpu/driver"
)

type shadedVertex struct {
	win      [3]float32 // window x, y and w
	varyings []float32
}

func (d *Device) DrawArrays(mode driver.DrawMode, off, count int) {
	d.DrawArraysInstanced(mode, off, count, 1)
}

func (d *Device) DrawElements(mode driver.DrawMode, off, count int) {
	d.DrawElementsInstanced(mode, off, count, 1)
}

func (d *Device) DrawArraysInstanced(mode driver.DrawMode, off, count, instances int) {
	ids := make([]int, count)
	for i := range ids {
		ids[i] = off + i
	}
	d.draw(mode, ids, instances)
}

func (d *Device) DrawElementsInstanced(mode driver.DrawMode, off, count, instances int) {
	if d.vao == nil || d.vao.indices == nil {
		panic("softgpu: indexed draw without an index buffer")
	}
	ids := make([]int, count)
	for i := range ids {
		ids[i] = d.vao.indices.index(off + i)
	}
	d.draw(mode, ids, instances)
}

func (d *Device) draw(mode driver.DrawMode, ids []int, instances int) {
	if d.program == nil || d.vao == nil {
		panic("softgpu: draw without a program and vertex array")
	}
	d.stats.Draws++
	for inst := 0; inst < instances; inst++ {
		verts := make([]shadedVertex, len(ids))
		for i, id := range ids {
			verts[i] = d.shadeVertex(id, inst)
		}
		d.assemble(mode, verts, inst)
	}
}

func (d *Device) shadeVertex(id, instance int) shadedVertex {
	env := &Env{VertexID: id, InstanceID: instance, prog: d.program, attribs: make(map[int][]float32)}
	for loc, a := range d.vao.attribs {
		env.attribs[loc] = a.fetch(id, instance)
	}
	pos, vary := d.program.shaders.Vertex(env)
	w := pos[3]
	if w == 0 {
		w = 1
	}
	vp := d.viewport
	nx, ny := pos[0]/w, pos[1]/w
	return shadedVertex{
		win: [3]float32{
			float32(vp.Min.X) + (nx+1)*0.5*float32(vp.Dx()),
			float32(vp.Min.Y) + (ny+1)*0.5*float32(vp.Dy()),
			w,
		},
		varyings: vary,
	}
}

func (d *Device) assemble(mode driver.DrawMode, v []shadedVertex, inst int) {
	switch mode {
	case driver.DrawModeTriangles:
		for i := 0; i+2 < len(v); i += 3 {
			d.triangle(v[i], v[i+1], v[i+2], inst)
		}
	case driver.DrawModeTriangleStrip:
		for i := 0; i+2 < len(v); i++ {
			d.triangle(v[i], v[i+1], v[i+2], inst)
		}
	case driver.DrawModeTriangleFan:
		for i := 1; i+1 < len(v); i++ {
			d.triangle(v[0], v[i], v[i+1], inst)
		}
	case driver.DrawModeLines:
		for i := 0; i+1 < len(v); i += 2 {
			d.line(v[i], v[i+1], inst)
		}
	case driver.DrawModeLineStrip:
		for i := 0; i+1 < len(v); i++ {
			d.line(v[i], v[i+1], inst)
		}
	case driver.DrawModePoints:
		for _, p := range v {
			d.fragment(int(math.Floor(float64(p.win[0]))), int(math.Floor(float64(p.win[1]))), p.varyings, inst)
		}
	default:
		panic(fmt.Sprintf("softgpu: unsupported draw mode %v", mode))
	}
}

func edge(ax, ay, bx, by, px, py float32) float32 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

// triangle covers pixel centers inside or on the edge of the triangle, in
// either winding. There is no blending so shared edges may be drawn twice.
func (d *Device) triangle(a, b, c shadedVertex, inst int) {
	area := edge(a.win[0], a.win[1], b.win[0], b.win[1], c.win[0], c.win[1])
	if area == 0 {
		return
	}
	clip := d.clipRect()
	minX := int(math.Floor(float64(min(a.win[0], b.win[0], c.win[0]))))
	maxX := int(math.Ceil(float64(max(a.win[0], b.win[0], c.win[0]))))
	minY := int(math.Floor(float64(min(a.win[1], b.win[1], c.win[1]))))
	maxY := int(math.Ceil(float64(max(a.win[1], b.win[1], c.win[1]))))
	minX, maxX = max(minX, clip[0]), min(maxX, clip[2]-1)
	minY, maxY = max(minY, clip[1]), min(maxY, clip[3]-1)

	vary := make([]float32, len(a.varyings))
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			px, py := float32(x)+0.5, float32(y)+0.5
			w0 := edge(b.win[0], b.win[1], c.win[0], c.win[1], px, py) / area
			w1 := edge(c.win[0], c.win[1], a.win[0], a.win[1], px, py) / area
			w2 := edge(a.win[0], a.win[1], b.win[0], b.win[1], px, py) / area
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			for k := range vary {
				vary[k] = w0*a.varyings[k] + w1*at(b.varyings, k) + w2*at(c.varyings, k)
			}
			d.fragment(x, y, vary, inst)
		}
	}
}

func at(s []float32, i int) float32 {
	if i < len(s) {
		return s[i]
	}
	return 0
}

func (d *Device) line(a, b shadedVertex, inst int) {
	dx, dy := b.win[0]-a.win[0], b.win[1]-a.win[1]
	steps := int(math.Ceil(math.Max(math.Abs(float64(dx)), math.Abs(float64(dy)))))
	if steps == 0 {
		steps = 1
	}
	vary := make([]float32, len(a.varyings))
	for i := 0; i < steps; i++ {
		t := (float32(i) + 0.5) / float32(steps)
		for k := range vary {
			vary[k] = a.varyings[k]*(1-t) + at(b.varyings, k)*t
		}
		x := int(math.Floor(float64(a.win[0] + dx*t)))
		y := int(math.Floor(float64(a.win[1] + dy*t)))
		d.fragment(x, y, vary, inst)
	}
}

// clipRect is the viewport intersected with the target, as x0, y0, x1, y1.
func (d *Device) clipRect() [4]int {
	t := d.target()
	vp := d.viewport
	return [4]int{max(vp.Min.X, 0), max(vp.Min.Y, 0), min(vp.Max.X, t.size.X), min(vp.Max.Y, t.size.Y)}
}

func (d *Device) fragment(x, y int, vary []float32, inst int) {
	clip := d.clipRect()
	if x < clip[0] || y < clip[1] || x >= clip[2] || y >= clip[3] {
		return
	}
	env := &Env{InstanceID: inst, FragCoord: [2]float32{float32(x) + 0.5, float32(y) + 0.5}, prog: d.program}
	c := d.program.shaders.Fragment(env, vary)
	d.target().store(x, y, c)
}
