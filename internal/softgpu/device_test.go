package softgpu

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vizgpu/driver"
	"vizgpu/shader"
)

const quadVS = "attribute vec2 a_pos;\nvoid main() { gl_Position = vec4(a_pos, 0.0, 1.0); }"
const quadFS = "uniform vec4 u_color;\nvoid main() { gl_FragColor = u_color; }"

func readRGBA(t *testing.T, d *Device, w, h int) []byte {
	t.Helper()
	px := make([]byte, w*h*4)
	require.NoError(t, d.ReadPixels(image.Rect(0, 0, w, h), driver.TextureFormatRGBA8, px))
	return px
}

func TestFullscreenQuad(t *testing.T) {
	d := New(4, 4)
	p, err := d.NewProgram(quadVS, quadFS)
	require.NoError(t, err)
	assert.Equal(t, 0, p.AttribLocation("a_pos"))
	assert.Equal(t, 0, p.UniformLocation("u_color"))
	assert.Equal(t, -1, p.UniformLocation("u_missing"))

	verts := []float32{-1, -1, 1, -1, -1, 1, 1, 1}
	buf, err := d.NewBuffer(driver.BufferBindingVertices, driver.BytesView(verts), false)
	require.NoError(t, err)
	vao, err := d.NewVertexArray()
	require.NoError(t, err)
	vao.Attrib(0, buf, 2, 0, 0, 0)

	d.BindProgram(p)
	d.BindVertexArray(vao)
	d.SetUniform(0, shader.Vec4, 1, []float32{1, 0, 0, 1})
	d.Clear(0, 0, 0, 1)
	d.DrawArrays(driver.DrawModeTriangleStrip, 0, 4)

	px := readRGBA(t, d, 4, 4)
	for i := 0; i < len(px); i += 4 {
		assert.Equal(t, []byte{255, 0, 0, 255}, px[i:i+4], "pixel %d", i/4)
	}
	assert.Equal(t, 1, d.Stats().Draws)
	assert.Equal(t, buf.Handle(), d.DebugState().ArrayBuffer)
}

func TestInstancedDivisor(t *testing.T) {
	d := New(8, 1)
	vs := "attribute vec2 a_pos;\nattribute float a_shade;\nvoid main() {}"
	fs := "void main() {}"
	var seen []float32
	d.Register(vs, fs, Shaders{
		Vertex: func(e *Env) ([4]float32, []float32) {
			if e.VertexID == 0 {
				seen = append(seen, e.Attrib("a_shade")[0])
			}
			p := e.Attrib("a_pos")
			return [4]float32{p[0], p[1], 0, 1}, nil
		},
		Fragment: func(*Env, []float32) [4]float32 { return [4]float32{1, 1, 1, 1} },
	})
	p, err := d.NewProgram(vs, fs)
	require.NoError(t, err)

	pos, _ := d.NewBuffer(driver.BufferBindingVertices, driver.BytesView([]float32{0, 0}), false)
	shade, _ := d.NewBuffer(driver.BufferBindingVertices, driver.BytesView([]float32{10, 20, 30}), false)
	vao, _ := d.NewVertexArray()
	vao.Attrib(p.AttribLocation("a_pos"), pos, 2, 0, 0, 0)
	vao.Attrib(p.AttribLocation("a_shade"), shade, 1, 0, 0, 2)
	d.BindProgram(p)
	d.BindVertexArray(vao)
	d.DrawArraysInstanced(driver.DrawModePoints, 0, 1, 6)

	assert.Equal(t, []float32{10, 10, 20, 20, 30, 30}, seen)
}

func TestFloatTargets(t *testing.T) {
	d := New(2, 2, WithFloatRenderTargets(false))
	assert.False(t, d.Caps().Features.Has(driver.FeatureFloatRenderTargets))
	tex, err := d.NewTexture(driver.TextureFormatFloat, 2, 2, driver.FilterNearest, nil)
	require.NoError(t, err)
	_, err = d.NewFramebuffer(tex)
	assert.ErrorIs(t, err, driver.ErrIncompleteFramebuffer)

	d = New(2, 2)
	tex, err = d.NewTexture(driver.TextureFormatFloat, 2, 2, driver.FilterNearest, nil)
	require.NoError(t, err)
	fb, err := d.NewFramebuffer(tex)
	require.NoError(t, err)
	d.BindFramebuffer(fb)
	d.Clear(2.5, -1, 0, 1)
	out := make([]byte, 2*2*16)
	require.NoError(t, d.ReadPixels(image.Rect(0, 0, 2, 2), driver.TextureFormatFloat, out))
	assert.Equal(t, []float32{2.5, -1, 0, 1}, driver.Float32View(out)[:4])
}

func TestShaderErrors(t *testing.T) {
	d := New(1, 1)
	_, err := d.NewProgram("void nomain() {}", "void main() {}")
	var serr *driver.ShaderError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, shader.StageVertex, serr.Stage)

	d.FailNextLink("varying mismatch")
	_, err = d.NewProgram("void main() {}", "void main() {}")
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, shader.Stage(0), serr.Stage)
	assert.Equal(t, "link failed: varying mismatch", serr.Error())
}

func TestTextureSampling(t *testing.T) {
	d := New(1, 1)
	pixels := []byte{
		0, 0, 0, 255, 255, 0, 0, 255,
		0, 255, 0, 255, 0, 0, 255, 255,
	}
	tex, err := d.NewTexture(driver.TextureFormatRGBA8, 2, 2, driver.FilterNearest, pixels)
	require.NoError(t, err)
	tt := tex.(*texture)
	assert.Equal(t, [4]float32{1, 0, 0, 1}, tt.sample(0.75, 0.25))
	assert.Equal(t, [4]float32{0, 1, 0, 1}, tt.sample(0.25, 0.75))
	assert.Equal(t, [4]float32{0, 0, 1, 1}, tt.sample(2, 2))
}
