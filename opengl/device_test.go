package opengl

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vizgpu/core"
	"vizgpu/driver"
	"vizgpu/gpu"
	"vizgpu/shader"
)

const (
	quadVS = `#version 410 core
layout(location = 0) in vec2 a_pos;
void main() { gl_Position = vec4(a_pos, 0.0, 1.0); }
`
	stepFS = `#version 410 core
uniform sampler2D u_state;
out vec4 outColor;
void main() { outColor = texelFetch(u_state, ivec2(gl_FragCoord.xy), 0) * 2.0 + 1.0; }
`
	badFS = `#version 410 core
out vec4 outColor;
void main() { outColor = undefined_thing; }
`
)

func headless(t *testing.T, w, h int) (*Headless, *gpu.Session) {
	t.Helper()
	runtime.LockOSThread()
	t.Cleanup(runtime.UnlockOSThread)
	dev, err := NewHeadless(w, h)
	if err != nil {
		t.Skipf("no OpenGL context: %v", err)
	}
	t.Cleanup(dev.Close)
	s := gpu.NewSession(dev)
	s.SetDisplaySize(w, h)
	t.Cleanup(s.Close)
	return dev, s
}

func TestHeadlessPingPong(t *testing.T) {
	_, s := headless(t, 4, 4)
	if !s.Supports(driver.FeatureFloatRenderTargets) {
		t.Skip("no float render targets")
	}
	a := gpu.NewFloatSurface(4, 4, nil, driver.FilterNearest)
	b := gpu.NewFloatSurface(4, 4, nil, driver.FilterNearest)
	job, err := gpu.NewJob(gpu.MustProgram(quadVS, stepFS), gpu.Bindings{
		"a_pos":   gpu.NewAttribute(shader.Vec2, []float32{-1, -1, 1, -1, -1, 1, 1, 1}, false),
		"u_state": a,
	}, gpu.Plain(driver.DrawModeTriangleStrip, 4))
	require.NoError(t, err)
	pp, err := gpu.NewPingPong(job, "u_state", a, b)
	require.NoError(t, err)
	pp.Clear = &core.ColorTransparent

	require.NoError(t, pp.Init(s))
	got, err := s.ReadSurface(a)
	require.NoError(t, err)
	for _, v := range got {
		require.Equal(t, float32(1), v)
	}

	require.NoError(t, pp.Step(s, nil))
	got, err = s.ReadSurface(b)
	require.NoError(t, err)
	for _, v := range got {
		require.Equal(t, float32(3), v)
	}
}

func TestHeadlessCompileError(t *testing.T) {
	_, s := headless(t, 4, 4)
	p := gpu.MustProgram(quadVS, badFS)
	err := s.EnsureUploaded(p)
	var ce *gpu.CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, shader.StageFragment, ce.Stage)
	assert.NotEmpty(t, ce.Log)
}

func TestCursorClip(t *testing.T) {
	x, y := cursorClip(0, 0, 200, 100)
	assert.Equal(t, [2]float32{-1, 1}, [2]float32{x, y})
	x, y = cursorClip(150, 75, 200, 100)
	assert.Equal(t, [2]float32{0.5, -0.5}, [2]float32{x, y})
	x, y = cursorClip(10, 10, 0, 0)
	assert.Zero(t, x)
	assert.Zero(t, y)
}

func TestHeadlessCaps(t *testing.T) {
	dev, s := headless(t, 4, 4)
	caps := s.Caps()
	assert.True(t, caps.Features.Has(driver.FeatureInstancing))
	assert.Positive(t, caps.MaxTextureUnits)
	assert.NotEmpty(t, dev.Info().Version)
	for _, ext := range caps.Extensions {
		assert.True(t, s.HasExtension(ext))
	}
}
