// Command demo runs a heat diffusion field on the GPU, colorizes it and
// draws a ring of instanced markers over it.
//
// Keys: Space pauses the simulation, R reseeds it, P toggles the palette
// cycle, S saves a snapshot, Escape quits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/chewxy/math32"

	"vizgpu/config"
	"vizgpu/core"
	"vizgpu/driver"
	"vizgpu/gpu"
	"vizgpu/math"
	"vizgpu/mesh"
	"vizgpu/opengl"
	"vizgpu/renderer"
)

var errQuit = errors.New("quit")

func main() {
	cfgPath := flag.String("config", "", "TOML configuration file")
	frames := flag.Int("frames", 0, "exit after this many frames (0 runs until closed)")
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}
	level, _ := cfg.Level()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	gpu.SetLogger(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, cfg, *frames, log); err != nil && !errors.Is(err, errQuit) && !errors.Is(err, context.Canceled) {
		log.Error("demo failed", "err", err)
		os.Exit(1)
	}
}

// ringPoints lays n markers on a wobbling ring inside [-1, 1]².
func ringPoints(n int, phase float32) []float32 {
	out := make([]float32, 0, n*2)
	for i := 0; i < n; i++ {
		angle := float32(i)*2*math32.Pi/float32(n) + phase*0.5
		r := 0.6 + 0.25*math32.Sin(3*angle+phase)
		p := math.Polar(r, angle)
		out = append(out, p.X, p.Y)
	}
	return out
}

func markerShape(cfg config.Markers) (*mesh.Mesh, error) {
	var (
		meshes []*mesh.Mesh
		err    error
	)
	switch strings.ToLower(filepath.Ext(cfg.Shape)) {
	case "":
		return mesh.CreatePolygon(cfg.Sides, 1), nil
	case ".obj":
		meshes, err = mesh.LoadOBJ(cfg.Shape)
	default:
		meshes, err = mesh.LoadGLTF(cfg.Shape)
	}
	if err != nil {
		return nil, err
	}
	return meshes[0], nil
}

// initialField returns the seed image luminance, if any, plus hotspots.
func initialField(sim config.Simulation, base []float32, seed int64) []float32 {
	field := renderer.Hotspots(sim.Width, sim.Height, sim.Hotspots, seed)
	for i, v := range base {
		field[i] = min(field[i]+v, 1)
	}
	return field
}

func run(ctx context.Context, cfg config.Config, maxFrames int, log *slog.Logger) error {
	window, err := opengl.NewWindow(opengl.WindowConfig{
		Width:     cfg.Window.Width,
		Height:    cfg.Window.Height,
		Title:     cfg.Window.Title,
		Resizable: true,
		VSync:     cfg.Window.VSync,
		Hidden:    cfg.Window.Hidden,
	})
	if err != nil {
		return err
	}
	defer window.Destroy()

	dev, err := opengl.NewDevice()
	if err != nil {
		return err
	}
	defer dev.Release()
	s := gpu.NewSession(dev)
	defer s.Close()
	log.Info("device ready", "info", dev.Info().String(), "features", s.Caps().Features.String())
	if !s.Supports(driver.FeatureFloatRenderTargets) {
		return fmt.Errorf("diffusion needs float render targets: %w", gpu.ErrCapabilityUnsupported)
	}

	sim := cfg.Simulation
	seed := sim.Seed
	var base []float32
	if sim.Image != "" {
		img, err := mesh.DecodeImage(sim.Image)
		if err != nil {
			return err
		}
		base = mesh.FieldFromImage(img, sim.Width, sim.Height)
	}
	diffusion, err := renderer.NewDiffusion(sim.Width, sim.Height, sim.Rate, sim.Decay,
		initialField(sim, base, seed))
	if err != nil {
		return err
	}
	if err := diffusion.Init(s); err != nil {
		return err
	}

	low, high := cfg.Colorize.LowColor(), cfg.Colorize.HighColor()
	colorize, err := renderer.NewColorize(diffusion.Field(), low, high, cfg.Colorize.Min, cfg.Colorize.Max)
	if err != nil {
		return err
	}
	grid, err := renderer.NewSolid(mesh.CreateGrid(8), core.Color{R: 0.25, G: 0.25, B: 0.3, A: 1})
	if err != nil {
		return err
	}

	shape, err := markerShape(cfg.Markers)
	if err != nil {
		return err
	}
	groups := (cfg.Markers.Count + cfg.Markers.GroupSize - 1) / cfg.Markers.GroupSize
	bounds := math.Rect{Min: math.NewVec2(-1, -1), Max: math.NewVec2(1, 1)}
	markers, err := renderer.NewMarkers(shape, ringPoints(cfg.Markers.Count, 0),
		groupColors(max(groups, 1), high, low), cfg.Markers.GroupSize, bounds, cfg.Markers.Size)
	if err != nil {
		return err
	}

	r := renderer.NewRenderer(s)
	r.Add(colorize)
	r.Add(grid)
	r.Add(markers)

	var (
		emitter   *renderer.ParticleEmitter
		sparks    *renderer.Markers
		sparkPts  []float32
		sparkCols []core.Color
	)
	if pc := cfg.Particles; pc.Max > 0 {
		emitter = renderer.NewParticleEmitter(pc.Max, uint64(seed))
		emitter.Rate = pc.Rate
		emitter.Field = renderer.Swirl(math.Vec2{}, pc.Swirl)
		emitter.StartColor, emitter.EndColor = core.ColorWhite, high
		sparks, err = renderer.NewMarkers(mesh.CreatePolygon(4, 1), nil, nil, 1, bounds, pc.Size)
		if err != nil {
			return err
		}
		r.Add(sparks)
	}

	cycle := NewPaletteCycle(cfg.Colorize.CycleSeconds)
	var (
		keys     keyLatch
		paused   bool
		snapshot int
		status   StatusLine
	)

	loop := &renderer.Loop{
		Window:    window,
		Session:   s,
		MaxFrames: maxFrames,
		OnStats: func(st renderer.FrameStats) {
			status.Clear()
			status.Add("%s", cfg.Window.Title)
			status.Add("%.0f fps", st.FPS)
			status.Add("step %d", diffusion.PingPong().Steps())
			status.Add("%s", r.Stats())
			if paused {
				status.Add("paused")
			}
			window.SetTitle(status.String())
		},
	}
	loop.Tick = func(_ context.Context, f renderer.Frame) error {
		switch {
		case keys.pressed(window.IsKeyPressed, opengl.KeyEscape):
			return errQuit
		case keys.pressed(window.IsKeyPressed, opengl.KeySpace):
			paused = !paused
		case keys.pressed(window.IsKeyPressed, opengl.KeyR):
			seed++
			if err := diffusion.Reset(s, initialField(sim, base, seed)); err != nil {
				return err
			}
		case keys.pressed(window.IsKeyPressed, opengl.KeyP):
			cycle.Active = !cycle.Active && cycle.Period > 0
		}

		if !paused {
			if err := diffusion.Step(s, sim.StepsPerFrame); err != nil {
				return err
			}
		}
		if err := colorize.SetField(diffusion.Field()); err != nil {
			return err
		}
		if cycle.Active {
			cycle.Update(f.Dt())
			lo, hi := cycle.Ramp()
			if err := colorize.SetRamp(s, lo, hi); err != nil {
				return err
			}
			if err := markers.Recolor(s, groupColors(max(groups, 1), hi, lo)); err != nil {
				return err
			}
		}
		if err := markers.Move(s, ringPoints(cfg.Markers.Count, float32(f.Time.Seconds()))); err != nil {
			return err
		}
		if emitter != nil {
			if window.IsMouseButtonPressed(opengl.MouseLeft) {
				x, y := window.Cursor()
				emitter.Position = math.NewVec2(x, y)
			}
			if !paused {
				emitter.Update(f.Dt())
			}
			sparkPts, sparkCols = emitter.Points(sparkPts[:0]), emitter.Colors(sparkCols[:0])
			if err := sparks.Update(s, sparkPts, sparkCols); err != nil {
				return err
			}
		}
		if err := r.Render(); err != nil {
			return err
		}

		if keys.pressed(window.IsKeyPressed, opengl.KeyS) {
			snapshot++
			path := fmt.Sprintf("snapshot-%03d.png", snapshot)
			if err := saveSnapshot(s, f.Width, f.Height, path); err != nil {
				log.Warn("snapshot failed", "err", err)
			} else {
				log.Info("snapshot saved", "path", path)
			}
		}
		return nil
	}
	return loop.Run(ctx)
}

func saveSnapshot(s *gpu.Session, width, height int, path string) error {
	img, err := s.Snapshot(width, height)
	if err != nil {
		return err
	}
	return writePNG(path, img)
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
