package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"vizgpu/config"
	"vizgpu/core"
)

func TestPaletteCycleWraps(t *testing.T) {
	pc := NewPaletteCycle(10)
	low, high := pc.Ramp()
	assert.Equal(t, rampKeys[0].low, low)
	assert.Equal(t, rampKeys[0].high, high)

	pc.Update(9.5)
	assert.InDelta(t, 0.95, pc.Time, 1e-6)
	low, _ = pc.Ramp()
	// three quarters of the way from the last key back to the first
	want := rampKeys[len(rampKeys)-1].low.Lerp(rampKeys[0].low, 0.75)
	assert.InDelta(t, want.R, low.R, 1e-5)
	assert.InDelta(t, want.B, low.B, 1e-5)

	pc.Update(1)
	assert.InDelta(t, 0.05, pc.Time, 1e-5)

	fixed := NewPaletteCycle(0)
	fixed.Update(100)
	assert.Zero(t, fixed.Time)
}

func TestGroupColors(t *testing.T) {
	c := groupColors(3, core.ColorBlack, core.ColorWhite)
	assert.Equal(t, []core.Color{core.ColorBlack, {0.5, 0.5, 0.5, 1}, core.ColorWhite}, c)
	assert.Equal(t, []core.Color{core.ColorBlack}, groupColors(1, core.ColorBlack, core.ColorWhite))
}

func TestRingPoints(t *testing.T) {
	pts := ringPoints(4, 0)
	assert.Len(t, pts, 8)
	assert.InDelta(t, 0.6, pts[0], 1e-6)
	assert.InDelta(t, 0, pts[1], 1e-6)
	for i := 0; i < len(pts); i += 2 {
		assert.LessOrEqual(t, pts[i]*pts[i]+pts[i+1]*pts[i+1], float32(1))
	}
}

func TestStatusLineAndLatch(t *testing.T) {
	var sl StatusLine
	sl.Add("%d fps", 60)
	sl.Add("paused")
	assert.Equal(t, "60 fps | paused", sl.String())
	sl.Clear()
	assert.Empty(t, sl.String())

	var k keyLatch
	down := true
	isDown := func(int) bool { return down }
	assert.True(t, k.pressed(isDown, 1))
	assert.False(t, k.pressed(isDown, 1))
	down = false
	assert.False(t, k.pressed(isDown, 1))
	down = true
	assert.True(t, k.pressed(isDown, 1))
}

func TestInitialFieldAddsBase(t *testing.T) {
	sim := config.Simulation{Width: 4, Height: 4}
	base := make([]float32, 16)
	base[5] = 0.25
	field := initialField(sim, base, 1)
	assert.Equal(t, float32(0.25), field[5])
	assert.Zero(t, field[0])
}
