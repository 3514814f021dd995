package renderer

import (
	"context"
	"time"

	"vizgpu/gpu"
)

// Window is the part of a window the frame loop needs.
type Window interface {
	ShouldClose() bool
	PollEvents()
	SwapBuffers()
	FramebufferSize() (width, height int)
}

// Frame is passed to the tick callback.
type Frame struct {
	Index  int
	Time   time.Duration // since the loop started
	Delta  time.Duration // since the previous frame, capped at MaxDelta
	Width  int
	Height int
}

// Dt is Delta in seconds.
func (f Frame) Dt() float32 { return float32(f.Delta.Seconds()) }

// FrameStats are updated once per second of loop time.
type FrameStats struct {
	Frames int
	FPS    float64
	Last   time.Duration // duration of the most recent frame
}

// Loop polls events, runs Tick and swaps buffers until the window asks to
// close, the context ends, Tick fails or MaxFrames frames have run.
type Loop struct {
	Window  Window
	Session *gpu.Session
	Tick    func(ctx context.Context, f Frame) error

	MaxFrames int           // 0 runs until the window closes
	MaxDelta  time.Duration // caps Frame.Delta after hitches; 0 means 50ms

	// OnStats, if set, is called whenever Stats changes.
	OnStats func(FrameStats)

	now   func() time.Time
	stats FrameStats
}

func (l *Loop) Stats() FrameStats { return l.stats }

// Run blocks on the calling thread, which must own the GL context.
func (l *Loop) Run(ctx context.Context) error {
	now := l.now
	if now == nil {
		now = time.Now
	}
	maxDelta := l.MaxDelta
	if maxDelta <= 0 {
		maxDelta = 50 * time.Millisecond
	}

	start := now()
	last := start
	windowStart, windowFrames := start, 0
	for i := 0; l.MaxFrames == 0 || i < l.MaxFrames; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if l.Window.ShouldClose() {
			return nil
		}
		l.Window.PollEvents()

		t := now()
		f := Frame{Index: i, Time: t.Sub(start), Delta: min(t.Sub(last), maxDelta)}
		f.Width, f.Height = l.Window.FramebufferSize()
		if l.Session != nil {
			l.Session.SetDisplaySize(f.Width, f.Height)
		}
		if l.Tick != nil {
			if err := l.Tick(ctx, f); err != nil {
				return err
			}
		}
		l.Window.SwapBuffers()

		end := now()
		l.stats.Frames++
		l.stats.Last = end.Sub(t)
		last = t
		windowFrames++
		if span := end.Sub(windowStart); span >= time.Second {
			l.stats.FPS = float64(windowFrames) / span.Seconds()
			windowStart, windowFrames = end, 0
			gpu.Logger().Debug("frame stats", "frames", l.stats.Frames, "fps", l.stats.FPS)
			if l.OnStats != nil {
				l.OnStats(l.stats)
			}
		}
	}
	return nil
}
