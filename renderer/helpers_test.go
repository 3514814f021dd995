package renderer

import (
	"testing"

	"vizgpu/gpu"
	"vizgpu/internal/softgpu"
)

// newDevice returns a CPU device that runs the built-in programs as Go
// functions.
func newDevice(t *testing.T, w, h int) (*softgpu.Device, *gpu.Session) {
	t.Helper()
	dev := softgpu.New(w, h)
	dev.Register(quadVertexShader, diffusionFragmentShader, softgpu.Shaders{
		Vertex: quadVertex,
		Fragment: func(e *softgpu.Env, _ []float32) [4]float32 {
			x, y := int(e.FragCoord[0]), int(e.FragCoord[1])
			at := func(dx, dy int) float32 { return e.Texel("u_state", x+dx, y+dy)[0] }
			c := at(0, 0)
			lap := at(1, 0) + at(-1, 0) + at(0, 1) + at(0, -1) - 4*c
			return [4]float32{(c + e.Float("u_rate")*lap) * e.Float("u_decay"), 0, 0, 1}
		},
	})
	dev.Register(quadVertexShader, colorizeFragmentShader, softgpu.Shaders{
		Vertex: quadVertex,
		Fragment: func(e *softgpu.Env, uv []float32) [4]float32 {
			v := e.Sample("u_field", uv[0], uv[1])[0]
			r := e.Uniform("u_range")
			k := min(max((v-r[0])/(r[1]-r[0]), 0), 1)
			lo, hi := e.Uniform("u_low"), e.Uniform("u_high")
			var out [4]float32
			for i := range out {
				out[i] = lo[i] + (hi[i]-lo[i])*k
			}
			return out
		},
	})
	dev.Register(markerVertexShader, markerFragmentShader, softgpu.Shaders{
		Vertex: func(e *softgpu.Env) ([4]float32, []float32) {
			p, off := e.Attrib("a_pos"), e.Attrib("a_offset")
			m, size := e.Uniform("u_proj"), e.Float("u_size")
			v := [4]float32{off[0], off[1], 0, 1}
			var c [4]float32
			for row := 0; row < 4; row++ {
				for col := 0; col < 4; col++ {
					c[row] += m[col*4+row] * v[col]
				}
			}
			return [4]float32{c[0] + p[0]*size, c[1] + p[1]*size, 0, 1}, e.Attrib("a_color")
		},
		Fragment: func(_ *softgpu.Env, color []float32) [4]float32 {
			return [4]float32{color[0], color[1], color[2], color[3]}
		},
	})
	s := gpu.NewSession(dev)
	s.SetDisplaySize(w, h)
	t.Cleanup(s.Close)
	return dev, s
}

func quadVertex(e *softgpu.Env) ([4]float32, []float32) {
	p := e.Attrib("a_pos")
	return [4]float32{p[0], p[1], 0, 1}, e.Attrib("a_uv")
}

// pixel returns the RGBA8 pixel at x, y of a bottom-first readback.
func pixel(pixels []byte, w, x, y int) [4]byte {
	i := (y*w + x) * 4
	return [4]byte{pixels[i], pixels[i+1], pixels[i+2], pixels[i+3]}
}
