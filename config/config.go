// Package config loads the demo configuration from TOML.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"vizgpu/core"
)

type Config struct {
	LogLevel   string     `toml:"log_level"`
	Window     Window     `toml:"window"`
	Simulation Simulation `toml:"simulation"`
	Colorize   Colorize   `toml:"colorize"`
	Markers    Markers    `toml:"markers"`
	Particles  Particles  `toml:"particles"`
}

type Window struct {
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	Title  string `toml:"title"`
	VSync  bool   `toml:"vsync"`
	Hidden bool   `toml:"hidden"`
}

// Simulation configures the diffusion field.
type Simulation struct {
	Width         int     `toml:"width"`
	Height        int     `toml:"height"`
	Rate          float32 `toml:"rate"`  // diffusion per step, at most 0.25 for stability
	Decay         float32 `toml:"decay"` // multiplier applied after diffusion
	StepsPerFrame int     `toml:"steps_per_frame"`
	Hotspots      int     `toml:"hotspots"`
	Seed          int64   `toml:"seed"`
	// Image seeds the field with the luminance of a PNG or JPEG file,
	// scaled to the field size. Hotspots are added on top.
	Image string `toml:"image"`
}

// Colorize maps field values in [Min, Max] onto a ramp from Low to High.
type Colorize struct {
	Low  string  `toml:"low"`
	High string  `toml:"high"`
	Min  float32 `toml:"min"`
	Max  float32 `toml:"max"`
	// CycleSeconds animates the ramp through the built-in palettes; 0 keeps
	// Low and High fixed.
	CycleSeconds float32 `toml:"cycle_seconds"`
}

type Markers struct {
	Count     int     `toml:"count"`
	Sides     int     `toml:"sides"`
	Size      float32 `toml:"size"`
	GroupSize int     `toml:"group_size"` // instances sharing one color
	Shape     string  `toml:"shape"`      // optional .gltf, .glb or .obj file replacing the polygon
}

// Particles configures the emitter swirling around the field center. Max
// 0 disables it.
type Particles struct {
	Max   int     `toml:"max"`
	Rate  int     `toml:"rate"`  // per second
	Swirl float32 `toml:"swirl"` // radians per second
	Size  float32 `toml:"size"`
}

func Default() Config {
	return Config{
		LogLevel: "info",
		Window: Window{
			Width:  1024,
			Height: 768,
			Title:  "vizgpu",
			VSync:  true,
		},
		Simulation: Simulation{
			Width:         256,
			Height:        256,
			Rate:          0.2,
			Decay:         0.999,
			StepsPerFrame: 4,
			Hotspots:      6,
			Seed:          1,
		},
		Colorize: Colorize{
			Low:  "#08142e",
			High: "#ffb347",
			Min:  0,
			Max:  1,
		},
		Markers: Markers{
			Count:     64,
			Sides:     6,
			Size:      0.02,
			GroupSize: 8,
		},
		Particles: Particles{
			Max:   256,
			Rate:  60,
			Swirl: 0.8,
			Size:  0.008,
		},
	}
}

// Load reads path over the defaults. Unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(&cfg); err != nil {
		var sme *toml.StrictMissingError
		if errors.As(err, &sme) {
			return cfg, fmt.Errorf("config %s: %s", path, sme.String())
		}
		var de *toml.DecodeError
		if errors.As(err, &de) {
			row, col := de.Position()
			return cfg, fmt.Errorf("config %s:%d:%d: %w", path, row, col, err)
		}
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	check(c.Window.Width > 0 && c.Window.Height > 0, "window size %dx%d", c.Window.Width, c.Window.Height)
	check(c.Simulation.Width > 0 && c.Simulation.Height > 0, "simulation size %dx%d", c.Simulation.Width, c.Simulation.Height)
	check(c.Simulation.Rate >= 0 && c.Simulation.Rate <= 0.25, "simulation rate %g outside [0, 0.25]", c.Simulation.Rate)
	check(c.Simulation.Decay > 0 && c.Simulation.Decay <= 1, "simulation decay %g outside (0, 1]", c.Simulation.Decay)
	check(c.Simulation.StepsPerFrame >= 0, "negative steps_per_frame")
	check(c.Simulation.Hotspots >= 0, "negative hotspots")
	check(c.Colorize.Max > c.Colorize.Min, "colorize range [%g, %g] is empty", c.Colorize.Min, c.Colorize.Max)
	check(c.Colorize.CycleSeconds >= 0, "negative cycle_seconds")
	for _, hex := range []string{c.Colorize.Low, c.Colorize.High} {
		if _, err := core.ColorFromHex(hex); err != nil {
			errs = append(errs, fmt.Errorf("colorize: %w", err))
		}
	}
	check(c.Markers.Count > 0, "marker count must be positive")
	check(c.Markers.Sides >= 3 || c.Markers.Shape != "", "markers need at least 3 sides, got %d", c.Markers.Sides)
	check(c.Markers.GroupSize > 0, "marker group_size must be positive")
	check(c.Markers.Size > 0, "marker size must be positive")
	check(c.Particles.Max >= 0 && c.Particles.Rate >= 0, "negative particle max or rate")
	check(c.Particles.Max == 0 || c.Particles.Size > 0, "particle size must be positive")
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("log_level %q: %w", c.LogLevel, err)
	}
	return l, nil
}

// LowColor and HighColor return the parsed ramp ends. They assume
// Validate passed.
func (c Colorize) LowColor() core.Color  { return mustColor(c.Low) }
func (c Colorize) HighColor() core.Color { return mustColor(c.High) }

func mustColor(hex string) core.Color {
	col, err := core.ColorFromHex(hex)
	if err != nil {
		return core.ColorBlack
	}
	return col
}
