package renderer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vizgpu/core"
	"vizgpu/driver"
	"vizgpu/gpu"
	"vizgpu/math"
	"vizgpu/mesh"
)

func sum(values []float32) float32 {
	var total float32
	for _, v := range values {
		total += v
	}
	return total
}

func TestDiffusionSpreadsAndConserves(t *testing.T) {
	const n = 9
	_, s := newDevice(t, n, n)
	initial := make([]float32, n*n)
	initial[4*n+4] = 1
	d, err := NewDiffusion(n, n, 0.2, 1, initial)
	require.NoError(t, err)

	require.NoError(t, d.Init(s))
	v, err := d.Values(s)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, v[4*n+4], 1e-6)
	for _, i := range []int{4*n + 5, 4*n + 3, 5*n + 4, 3*n + 4} {
		assert.InDelta(t, 0.2, v[i], 1e-6)
	}
	assert.Zero(t, v[0])

	require.NoError(t, d.Step(s, 5))
	assert.Equal(t, 5, d.PingPong().Steps())
	v, err = d.Values(s)
	require.NoError(t, err)
	assert.InDelta(t, 1, sum(v), 1e-4)
	// symmetric about the hot cell
	assert.InDelta(t, v[4*n+2], v[4*n+6], 1e-6)
	assert.InDelta(t, v[2*n+4], v[6*n+4], 1e-6)
	assert.Greater(t, v[4*n+4], v[4*n+6])
}

func TestDiffusionDecay(t *testing.T) {
	_, s := newDevice(t, 4, 4)
	initial := make([]float32, 16)
	for i := range initial {
		initial[i] = 1
	}
	d, err := NewDiffusion(4, 4, 0.25, 0.5, initial)
	require.NoError(t, err)
	require.NoError(t, d.Init(s))
	require.NoError(t, d.Step(s, 1))
	v, err := d.Values(s)
	require.NoError(t, err)
	for _, x := range v {
		require.InDelta(t, 0.25, x, 1e-6)
	}

	require.NoError(t, d.SetCoefficients(s, 0, 1))
	require.NoError(t, d.Step(s, 3))
	v, err = d.Values(s)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, v[5], 1e-6)
}

func TestDiffusionReset(t *testing.T) {
	_, s := newDevice(t, 4, 4)
	d, err := NewDiffusion(4, 4, 0, 1, nil)
	require.NoError(t, err)
	require.NoError(t, d.Init(s))
	require.NoError(t, d.Step(s, 3))

	values := make([]float32, 16)
	values[0] = 0.5
	require.NoError(t, d.Reset(s, values))
	assert.Equal(t, gpu.Primed, d.PingPong().State())
	v, err := d.Values(s)
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), v[0])
	assert.Zero(t, v[15])

	assert.Error(t, d.Reset(s, values[:3]))
}

func TestDiffusionRejectsBadInitial(t *testing.T) {
	_, err := NewDiffusion(4, 4, 0.1, 1, make([]float32, 3))
	assert.Error(t, err)
}

func TestHotspots(t *testing.T) {
	a := Hotspots(32, 32, 4, 7)
	assert.Equal(t, a, Hotspots(32, 32, 4, 7))
	assert.Len(t, a, 32*32)
	assert.Positive(t, sum(a))
	for _, v := range a {
		require.True(t, v == 0 || v == 1)
	}
	assert.Zero(t, sum(Hotspots(32, 32, 0, 7)))
}

func TestColorize(t *testing.T) {
	_, s := newDevice(t, 2, 2)
	field := gpu.NewFloatSurface(2, 2, []float32{
		0, 0, 0, 1, 1, 0, 0, 1,
		0.5, 0, 0, 1, 2, 0, 0, 1,
	}, driver.FilterNearest)
	c, err := NewColorize(field, core.ColorBlack, core.ColorWhite, 0, 1)
	require.NoError(t, err)
	require.NoError(t, c.Draw(s, gpu.DrawOptions{}))

	px, err := s.ReadPixels(2, 2)
	require.NoError(t, err)
	assert.Equal(t, [4]byte{0, 0, 0, 255}, pixel(px, 2, 0, 0))
	assert.Equal(t, [4]byte{255, 255, 255, 255}, pixel(px, 2, 1, 0))
	assert.Equal(t, [4]byte{128, 128, 128, 255}, pixel(px, 2, 0, 1))
	// above the range clamps to high
	assert.Equal(t, [4]byte{255, 255, 255, 255}, pixel(px, 2, 1, 1))

	require.NoError(t, c.SetRamp(s, core.ColorBlack, core.ColorRed))
	require.NoError(t, c.SetRange(s, 0, 2))
	require.NoError(t, c.Draw(s, gpu.DrawOptions{}))
	px, err = s.ReadPixels(2, 2)
	require.NoError(t, err)
	assert.Equal(t, [4]byte{255, 0, 0, 255}, pixel(px, 2, 1, 1))
	assert.Equal(t, [4]byte{128, 0, 0, 255}, pixel(px, 2, 1, 0))

	assert.Error(t, c.SetRange(s, 1, 1))
	_, err = NewColorize(field, core.ColorBlack, core.ColorWhite, 1, 0)
	assert.Error(t, err)
}

func TestColorizeFollowsDiffusion(t *testing.T) {
	_, s := newDevice(t, 4, 4)
	initial := make([]float32, 16)
	for i := range initial {
		initial[i] = 1
	}
	d, err := NewDiffusion(4, 4, 0, 1, initial)
	require.NoError(t, err)
	require.NoError(t, d.Init(s))
	c, err := NewColorize(d.Field(), core.ColorBlack, core.ColorGreen, 0, 1)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, d.Step(s, 1))
		require.NoError(t, c.SetField(d.Field()))
		require.NoError(t, c.Draw(s, gpu.DrawOptions{}))
		px, err := s.ReadPixels(4, 4)
		require.NoError(t, err)
		require.Equal(t, [4]byte{0, 255, 0, 255}, pixel(px, 4, 2, 2))
	}
}

func markerField(t *testing.T, s *gpu.Session, points []float32, colors []core.Color, group int) *Markers {
	t.Helper()
	bounds := math.Rect{Min: math.NewVec2(-10, -10), Max: math.NewVec2(10, 10)}
	m, err := NewMarkers(mesh.CreatePolygon(4, 1), points, colors, group, bounds, 0.5)
	require.NoError(t, err)
	return m
}

func TestMarkersGroupColors(t *testing.T) {
	dev, s := newDevice(t, 8, 8)
	m := markerField(t, s, []float32{-5, -5, 5, -5, -5, 5, 5, 5},
		[]core.Color{core.ColorRed, core.ColorGreen}, 2)
	assert.Equal(t, 4, m.Count())
	require.NoError(t, m.Draw(s, gpu.DrawOptions{Clear: &core.ColorBlack}))
	assert.Equal(t, 1, dev.Stats().Draws)

	px, err := s.ReadPixels(8, 8)
	require.NoError(t, err)
	red, green := [4]byte{255, 0, 0, 255}, [4]byte{0, 255, 0, 255}
	assert.Equal(t, red, pixel(px, 8, 2, 2))
	assert.Equal(t, red, pixel(px, 8, 5, 2))
	assert.Equal(t, green, pixel(px, 8, 2, 5))
	assert.Equal(t, green, pixel(px, 8, 5, 5))
	assert.Equal(t, [4]byte{0, 0, 0, 255}, pixel(px, 8, 0, 7))
}

func TestMarkersMove(t *testing.T) {
	_, s := newDevice(t, 8, 8)
	m := markerField(t, s, []float32{-5, -5}, []core.Color{core.ColorRed, core.ColorBlue}, 1)
	require.NoError(t, m.Draw(s, gpu.DrawOptions{}))

	require.NoError(t, m.Move(s, []float32{5, 5, -5, 5}))
	assert.Equal(t, 2, m.Count())
	require.NoError(t, m.Draw(s, gpu.DrawOptions{Clear: &core.ColorBlack}))
	px, err := s.ReadPixels(8, 8)
	require.NoError(t, err)
	assert.Equal(t, [4]byte{255, 0, 0, 255}, pixel(px, 8, 5, 5))
	assert.Equal(t, [4]byte{0, 0, 255, 255}, pixel(px, 8, 2, 5))
	assert.Equal(t, [4]byte{0, 0, 0, 255}, pixel(px, 8, 2, 2))

	err = m.Move(s, []float32{0, 0, 1, 1, 2, 2})
	assert.ErrorIs(t, err, gpu.ErrInvalidShape)
	assert.Equal(t, 2, m.Count())
	assert.ErrorIs(t, m.Recolor(s, []core.Color{core.ColorRed}), gpu.ErrInvalidShape)
	assert.Error(t, m.Move(s, []float32{1}))
}

func TestMarkersBounds(t *testing.T) {
	_, s := newDevice(t, 8, 8)
	m := markerField(t, s, []float32{-5, -5}, []core.Color{core.ColorWhite}, 4)
	// the same point in wider bounds moves toward the center
	require.NoError(t, m.SetBounds(s, math.Rect{Min: math.NewVec2(-20, -20), Max: math.NewVec2(20, 20)}))
	require.NoError(t, m.Draw(s, gpu.DrawOptions{Clear: &core.ColorBlack}))
	px, err := s.ReadPixels(8, 8)
	require.NoError(t, err)
	assert.Equal(t, [4]byte{255, 255, 255, 255}, pixel(px, 8, 3, 3))
	assert.Equal(t, [4]byte{0, 0, 0, 255}, pixel(px, 8, 0, 0))

	assert.Error(t, m.SetBounds(s, math.Rect{}))
	_, err = NewMarkers(mesh.CreatePolygon(4, 1), []float32{0, 0}, nil, 0, math.Rect{Max: math.NewVec2(1, 1)}, 1)
	assert.Error(t, err)
}

func TestRendererStats(t *testing.T) {
	_, s := newDevice(t, 8, 8)
	field := gpu.NewFloatSurface(8, 8, nil, driver.FilterNearest)
	c, err := NewColorize(field, core.ColorBlack, core.ColorWhite, 0, 1)
	require.NoError(t, err)
	m := markerField(t, s, []float32{-5, -5, 5, -5, -5, 5, 5, 5}, []core.Color{core.ColorRed}, 4)

	r := NewRenderer(s)
	r.Add(c)
	r.Add(m)
	require.NoError(t, r.Render())
	st := r.Stats()
	assert.Equal(t, 2, st.Passes)
	assert.Equal(t, 4, st.Instances)
	assert.Equal(t, 4+12*4, st.Vertices)
	assert.Equal(t, "2 passes, 52 vertices, 4 instances", st.String())
}

func TestRendererClearsToBackground(t *testing.T) {
	_, s := newDevice(t, 8, 8)
	tri := mesh.CreateMeshFromData("tri", driver.DrawModeTriangles, []float32{-1, -1, 0, -1, -1, 0}, nil)
	solid, err := NewSolid(tri, core.ColorGreen)
	require.NoError(t, err)

	r := NewRenderer(s)
	r.Background = core.ColorBlue
	r.Add(solid)
	require.NoError(t, r.Render())
	px, err := s.ReadPixels(8, 8)
	require.NoError(t, err)
	assert.Equal(t, [4]byte{0, 255, 0, 255}, pixel(px, 8, 0, 0))
	assert.Equal(t, [4]byte{0, 0, 255, 255}, pixel(px, 8, 7, 7))

	require.NoError(t, solid.SetColor(s, core.ColorRed))
	require.NoError(t, r.Render())
	px, err = s.ReadPixels(8, 8)
	require.NoError(t, err)
	assert.Equal(t, [4]byte{255, 0, 0, 255}, pixel(px, 8, 0, 0))
}

type fakeWindow struct {
	closeAfter int
	polls      int
	swaps      int
}

func (w *fakeWindow) ShouldClose() bool           { return w.closeAfter > 0 && w.swaps >= w.closeAfter }
func (w *fakeWindow) PollEvents()                 { w.polls++ }
func (w *fakeWindow) SwapBuffers()                { w.swaps++ }
func (w *fakeWindow) FramebufferSize() (int, int) { return 6, 4 }

// stepClock advances by step on every call.
func stepClock(step time.Duration) func() time.Time {
	t := time.Unix(0, 0)
	return func() time.Time {
		t = t.Add(step)
		return t
	}
}

func TestLoopRunsUntilWindowCloses(t *testing.T) {
	_, s := newDevice(t, 2, 2)
	w := &fakeWindow{closeAfter: 3}
	var frames []Frame
	l := &Loop{Window: w, Session: s, Tick: func(_ context.Context, f Frame) error {
		frames = append(frames, f)
		return nil
	}}
	require.NoError(t, l.Run(context.Background()))
	assert.Len(t, frames, 3)
	assert.Equal(t, 3, w.polls)
	assert.Equal(t, 2, frames[2].Index)
	w2, h2 := s.DisplaySize()
	assert.Equal(t, [2]int{6, 4}, [2]int{w2, h2})
	assert.Equal(t, 3, l.Stats().Frames)
}

func TestLoopTiming(t *testing.T) {
	var frames []Frame
	var reported []FrameStats
	l := &Loop{
		Window:    &fakeWindow{},
		MaxFrames: 2,
		MaxDelta:  time.Second,
		Tick: func(_ context.Context, f Frame) error {
			frames = append(frames, f)
			return nil
		},
		OnStats: func(st FrameStats) { reported = append(reported, st) },
		now:     stepClock(250 * time.Millisecond),
	}
	require.NoError(t, l.Run(context.Background()))
	require.Len(t, frames, 2)
	assert.Equal(t, 250*time.Millisecond, frames[0].Delta)
	assert.Equal(t, 500*time.Millisecond, frames[1].Delta)
	assert.Equal(t, 750*time.Millisecond, frames[1].Time)
	assert.InDelta(t, 0.5, frames[1].Dt(), 1e-6)
	require.Len(t, reported, 1)
	assert.InDelta(t, 2.0, reported[0].FPS, 1e-9)
	assert.Equal(t, 250*time.Millisecond, l.Stats().Last)
}

func TestLoopCapsDelta(t *testing.T) {
	var last Frame
	l := &Loop{
		Window:    &fakeWindow{},
		MaxFrames: 2,
		Tick:      func(_ context.Context, f Frame) error { last = f; return nil },
		now:       stepClock(time.Second),
	}
	require.NoError(t, l.Run(context.Background()))
	assert.Equal(t, 50*time.Millisecond, last.Delta)
}

func TestLoopStops(t *testing.T) {
	boom := errors.New("boom")
	l := &Loop{Window: &fakeWindow{}, Tick: func(_ context.Context, f Frame) error {
		if f.Index == 4 {
			return boom
		}
		return nil
	}}
	assert.ErrorIs(t, l.Run(context.Background()), boom)
	assert.Equal(t, 4, l.Stats().Frames)

	ctx, cancel := context.WithCancel(context.Background())
	l = &Loop{Window: &fakeWindow{}, Tick: func(_ context.Context, f Frame) error {
		if f.Index == 1 {
			cancel()
		}
		return nil
	}}
	assert.ErrorIs(t, l.Run(ctx), context.Canceled)
	assert.Equal(t, 2, l.Stats().Frames)
}
