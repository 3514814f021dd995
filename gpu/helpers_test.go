package gpu

import (
	"testing"

	"github.com/stretchr/testify/require"

	"vizgpu/driver"
	"vizgpu/internal/softgpu"
	"vizgpu/shader"
)

const triangleVS = `
#version 410 core
layout(location = 0) in vec2 a_pos;
uniform float u_scale;
void main() {
    gl_Position = vec4(a_pos * u_scale, 0.0, 1.0);
}
`

const triangleFS = `
#version 410 core
out vec4 outColor;
void main() {
    outColor = vec4(1.0);
}
`

const feedbackVS = `
#version 410 core
layout(location = 0) in vec2 a_pos;
void main() {
    gl_Position = vec4(a_pos, 0.0, 1.0);
}
`

// feedbackFS writes state * u_gain + 1.
const feedbackFS = `
#version 410 core
uniform sampler2D u_state;
uniform float u_gain;
out vec4 outColor;
void main() {
    outColor = texelFetch(u_state, ivec2(gl_FragCoord.xy), 0) * u_gain + 1.0;
}
`

const displayFS = `
#version 410 core
uniform sampler2D u_field;
out vec4 outColor;
void main() {
    outColor = texelFetch(u_field, ivec2(gl_FragCoord.xy), 0);
}
`

const instancedVS = `
#version 410 core
layout(location = 0) in vec2 a_pos;
layout(location = 1) in float a_value;
void main() {
    gl_Position = vec4(a_pos, a_value, 1.0);
}
`

var fullscreenQuad = []float32{-1, -1, 1, -1, -1, 1, 1, 1}

func newDevice(t *testing.T, w, h int, opts ...softgpu.Option) (*softgpu.Device, *Session) {
	t.Helper()
	dev := softgpu.New(w, h, opts...)
	dev.Register(triangleVS, triangleFS, softgpu.Shaders{
		Vertex: func(e *softgpu.Env) ([4]float32, []float32) {
			p, k := e.Attrib("a_pos"), e.Float("u_scale")
			return [4]float32{p[0] * k, p[1] * k, 0, 1}, nil
		},
		Fragment: func(*softgpu.Env, []float32) [4]float32 { return [4]float32{1, 1, 1, 1} },
	})
	dev.Register(feedbackVS, feedbackFS, softgpu.Shaders{
		Vertex: positionOnly,
		Fragment: func(e *softgpu.Env, _ []float32) [4]float32 {
			c := e.Texel("u_state", int(e.FragCoord[0]), int(e.FragCoord[1]))
			k := e.Float("u_gain")
			return [4]float32{c[0]*k + 1, c[1]*k + 1, c[2]*k + 1, c[3]*k + 1}
		},
	})
	dev.Register(feedbackVS, displayFS, softgpu.Shaders{
		Vertex: positionOnly,
		Fragment: func(e *softgpu.Env, _ []float32) [4]float32 {
			return e.Texel("u_field", int(e.FragCoord[0]), int(e.FragCoord[1]))
		},
	})
	s := NewSession(dev)
	s.SetDisplaySize(w, h)
	return dev, s
}

func positionOnly(e *softgpu.Env) ([4]float32, []float32) {
	p := e.Attrib("a_pos")
	return [4]float32{p[0], p[1], 0, 1}, nil
}

func triangleJob(t *testing.T) *Job {
	t.Helper()
	p, err := NewProgram(triangleVS, triangleFS)
	require.NoError(t, err)
	job, err := NewJob(p, Bindings{
		"a_pos":   NewAttribute(shader.Vec2, []float32{-0.5, -0.5, 0.5, -0.5, 0, 0.5}, false),
		"u_scale": NewUniform(shader.Float, 1),
	}, Plain(driver.DrawModeTriangles, 3))
	require.NoError(t, err)
	return job
}

// feedbackJob draws a fullscreen quad whose output is its input * u_gain + 1.
func feedbackJob(t *testing.T, state *Surface) *Job {
	t.Helper()
	p, err := NewProgram(feedbackVS, feedbackFS)
	require.NoError(t, err)
	job, err := NewJob(p, Bindings{
		"a_pos":   NewAttribute(shader.Vec2, fullscreenQuad, false),
		"u_state": state,
		"u_gain":  NewUniform(shader.Float, 2),
	}, Plain(driver.DrawModeTriangleStrip, 4))
	require.NoError(t, err)
	return job
}

func uniformValue(t *testing.T, texels []float32, want float32) {
	t.Helper()
	for i, v := range texels {
		require.Equalf(t, want, v, "texel component %d", i)
	}
}
