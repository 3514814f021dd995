package main

import (
	"vizgpu/core"
)

// rampKey is the colorize ramp at one point of the palette cycle.
type rampKey struct {
	t         float32 // 0..1
	low, high core.Color
}

// rampKeys are ordered by t and wrap from the last back to the first.
var rampKeys = []rampKey{
	{t: 0.00, low: core.Color{R: 0.03, G: 0.08, B: 0.18, A: 1}, high: core.Color{R: 1.00, G: 0.70, B: 0.28, A: 1}},  // ember
	{t: 0.30, low: core.Color{R: 0.02, G: 0.02, B: 0.06, A: 1}, high: core.Color{R: 0.55, G: 0.90, B: 1.00, A: 1}},  // ice
	{t: 0.55, low: core.Color{R: 0.10, G: 0.02, B: 0.12, A: 1}, high: core.Color{R: 0.95, G: 0.35, B: 0.60, A: 1}},  // magenta
	{t: 0.80, low: core.Color{R: 0.00, G: 0.10, B: 0.05, A: 1}, high: core.Color{R: 0.80, G: 1.00, B: 0.40, A: 1}},  // moss
}

// PaletteCycle animates the colorize ramp through rampKeys.
type PaletteCycle struct {
	Time   float32 // 0..1
	Period float32 // seconds per full cycle
	Active bool
}

func NewPaletteCycle(period float32) *PaletteCycle {
	return &PaletteCycle{Period: period, Active: period > 0}
}

func (pc *PaletteCycle) Update(dt float32) {
	if !pc.Active || pc.Period <= 0 {
		return
	}
	pc.Time += dt / pc.Period
	for pc.Time >= 1 {
		pc.Time--
	}
}

// Ramp returns the interpolated ramp ends at the current time.
func (pc *PaletteCycle) Ramp() (low, high core.Color) {
	a, b, local := surrounding(pc.Time)
	return a.low.Lerp(b.low, local), a.high.Lerp(b.high, local)
}

// surrounding finds the keys around t and the position between them.
func surrounding(t float32) (a, b rampKey, local float32) {
	n := len(rampKeys)
	for i := 0; i < n; i++ {
		next := (i + 1) % n
		ta, tb := rampKeys[i].t, rampKeys[next].t
		if next == 0 {
			// wrap segment: last key to first key one cycle later
			tb++
			if t < ta {
				t++
			}
			if t >= ta && t < tb {
				return rampKeys[i], rampKeys[next], (t - ta) / (tb - ta)
			}
			continue
		}
		if t >= ta && t < tb {
			return rampKeys[i], rampKeys[next], (t - ta) / (tb - ta)
		}
	}
	return rampKeys[0], rampKeys[0], 0
}

// groupColors spreads n colors evenly along the ramp.
func groupColors(n int, low, high core.Color) []core.Color {
	out := make([]core.Color, n)
	for i := range out {
		var k float32
		if n > 1 {
			k = float32(i) / float32(n-1)
		}
		out[i] = low.Lerp(high, k)
	}
	return out
}
