package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vizgpu/driver"
	"vizgpu/internal/softgpu"
	"vizgpu/shader"
)

func newPingPong(t *testing.T, s *Session) (*PingPong, *Surface, *Surface) {
	t.Helper()
	a := NewFloatSurface(4, 4, nil, driver.FilterNearest)
	b := NewFloatSurface(4, 4, nil, driver.FilterNearest)
	pp, err := NewPingPong(feedbackJob(t, a), "u_state", a, b)
	require.NoError(t, err)
	return pp, a, b
}

func TestPingPongScenario(t *testing.T) {
	_, s := newDevice(t, 4, 4)
	pp, a, b := newPingPong(t, s)
	assert.Equal(t, Uninitialized, pp.State())
	assert.ErrorIs(t, pp.Step(s, nil), ErrNotPrimed)

	require.NoError(t, pp.Init(s))
	assert.Equal(t, Primed, pp.State())
	got, err := s.ReadSurface(a)
	require.NoError(t, err)
	uniformValue(t, got, 1)

	require.NoError(t, pp.Step(s, nil))
	assert.Equal(t, Steady, pp.State())
	got, err = s.ReadSurface(b)
	require.NoError(t, err)
	// 1*2 + 1; a step that read zeroes would give 1
	uniformValue(t, got, 3)
	assert.Same(t, b, pp.Current())
}

func TestPingPongAlternates(t *testing.T) {
	_, s := newDevice(t, 4, 4)
	pp, a, b := newPingPong(t, s)
	require.NoError(t, pp.Init(s))

	want := float32(1)
	var lastWrite *Surface = a
	for step := 1; step <= 6; step++ {
		read, write := pp.Read(), pp.Write()
		require.NotSame(t, read, write)
		assert.Same(t, lastWrite, read, "step %d reads what the previous step wrote", step)

		require.NoError(t, pp.Step(s, nil))
		assert.Same(t, read, pp.Job().Binding("u_state"))
		want = want*2 + 1
		got, err := s.ReadSurface(write)
		require.NoError(t, err)
		uniformValue(t, got, want)

		lastWrite = write
		assert.Equal(t, step, pp.Steps())
		assert.Equal(t, step%2, pp.Parity())
	}
	assert.Same(t, a, pp.Read())
	assert.Same(t, b, pp.Write())
}

func TestPingPongParams(t *testing.T) {
	_, s := newDevice(t, 4, 4)
	pp, _, b := newPingPong(t, s)
	require.NoError(t, pp.Init(s))

	require.NoError(t, pp.Step(s, Params{"u_gain": {0}}))
	got, err := s.ReadSurface(b)
	require.NoError(t, err)
	uniformValue(t, got, 1)

	var unknown *UnknownBindingError
	require.ErrorAs(t, pp.Step(s, Params{"u_nope": {1}}), &unknown)
	assert.Equal(t, 1, pp.Steps())
}

func TestPingPongFloatUnsupported(t *testing.T) {
	dev, s := newDevice(t, 4, 4, softgpu.WithFloatRenderTargets(false))
	pp, _, _ := newPingPong(t, s)

	assert.ErrorIs(t, pp.Init(s), ErrCapabilityUnsupported)
	assert.Equal(t, Uninitialized, pp.State())
	assert.Zero(t, dev.Stats().Draws)
}

func TestPingPongInitWith(t *testing.T) {
	_, s := newDevice(t, 4, 4)
	pp, a, _ := newPingPong(t, s)

	seedProg := MustProgram(feedbackVS, "uniform vec4 u_color;\nvoid main() {}\n")
	seed, err := NewJob(seedProg, Bindings{
		"a_pos":   NewAttribute(shader.Vec2, fullscreenQuad, false),
		"u_color": NewUniform(shader.Vec4, 5, 5, 5, 5),
	}, Plain(driver.DrawModeTriangleStrip, 4))
	require.NoError(t, err)

	require.NoError(t, pp.InitWith(s, seed))
	got, err := s.ReadSurface(a)
	require.NoError(t, err)
	uniformValue(t, got, 5)

	require.NoError(t, pp.Step(s, nil))
	got, err = s.ReadSurface(pp.Current())
	require.NoError(t, err)
	uniformValue(t, got, 11)
}

func TestPingPongDisplay(t *testing.T) {
	_, s := newDevice(t, 4, 4)
	pp, a, _ := newPingPong(t, s)

	p := MustProgram(feedbackVS, displayFS)
	display, err := NewJob(p, Bindings{
		"a_pos":   NewAttribute(shader.Vec2, fullscreenQuad, false),
		"u_field": a,
	}, Plain(driver.DrawModeTriangleStrip, 4))
	require.NoError(t, err)
	require.NoError(t, pp.SetDisplay(display, "u_field", DrawOptions{}))
	assert.Error(t, pp.SetDisplay(display, "a_pos", DrawOptions{}))

	require.NoError(t, pp.Init(s))
	require.NoError(t, pp.Step(s, Params{"u_gain": {0}}))
	assert.Same(t, pp.Current(), display.Binding("u_field"))

	// the display is RGBA8, so the step value of 1 saturates to 255
	pixels, err := s.ReadPixels(4, 4)
	require.NoError(t, err)
	for _, v := range pixels {
		assert.Equal(t, byte(255), v)
	}
}

func TestNewPingPongChecks(t *testing.T) {
	a := NewFloatSurface(4, 4, nil, driver.FilterNearest)
	job := feedbackJob(t, a)

	_, err := NewPingPong(job, "u_state", a, a)
	assert.Error(t, err)
	_, err = NewPingPong(job, "u_state", a, NewFloatSurface(8, 8, nil, driver.FilterNearest))
	assert.Error(t, err)
	_, err = NewPingPong(job, "u_state", a, NewSurface(4, 4, nil, driver.FilterNearest))
	assert.Error(t, err)

	var bt *BindingTypeError
	_, err = NewPingPong(job, "u_gain", a, NewFloatSurface(4, 4, nil, driver.FilterNearest))
	require.ErrorAs(t, err, &bt)
	var unknown *UnknownBindingError
	_, err = NewPingPong(job, "u_nope", a, NewFloatSurface(4, 4, nil, driver.FilterNearest))
	require.ErrorAs(t, err, &unknown)
}
