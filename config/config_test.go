package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "demo.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
log_level = "debug"

[window]
width = 640
hidden = true

[simulation]
rate = 0.1
steps_per_frame = 2

[colorize]
low = "#000000"
high = "#ffffff"

[particles]
max = 0
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 640, cfg.Window.Width)
	assert.Equal(t, 768, cfg.Window.Height)
	assert.True(t, cfg.Window.Hidden)
	assert.InDelta(t, 0.1, cfg.Simulation.Rate, 1e-6)
	assert.Equal(t, 2, cfg.Simulation.StepsPerFrame)
	assert.Equal(t, 256, cfg.Simulation.Width)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
	assert.Equal(t, float32(1), cfg.Colorize.HighColor().R)
	assert.Zero(t, cfg.Particles.Max)
	assert.Equal(t, 60, cfg.Particles.Rate)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
[window]
widht = 640
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "widht")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidateReportsEverything(t *testing.T) {
	cfg := Default()
	cfg.Simulation.Rate = 0.5
	cfg.Colorize.Min, cfg.Colorize.Max = 1, 1
	cfg.Colorize.Low = "blue"
	cfg.Markers.GroupSize = 0
	cfg.LogLevel = "loud"
	cfg.Particles.Size = 0

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"rate", "colorize range", "blue", "group_size", "loud", "particle size"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestShapeReplacesSides(t *testing.T) {
	cfg := Default()
	cfg.Markers.Sides = 0
	assert.Error(t, cfg.Validate())
	cfg.Markers.Shape = "arrow.glb"
	assert.NoError(t, cfg.Validate())
}
