// Package opengl acquires OpenGL devices for the engine: over a context
// the caller made current, or over a hidden window for tools and tests.
package opengl

import (
	"fmt"

	glimpl "vizgpu/internal/opengl"
)

// NewDevice wraps the OpenGL 4.1 context current on the calling thread.
func NewDevice() (*glimpl.Device, error) {
	return glimpl.NewDevice()
}

// Headless is a device over a hidden window. Its default framebuffer is
// width×height.
type Headless struct {
	*glimpl.Device
	Window *Window
}

// NewHeadless opens a hidden window of the given size and returns a
// device over its context. Close destroys both.
func NewHeadless(width, height int) (*Headless, error) {
	cfg := DefaultWindowConfig()
	cfg.Width, cfg.Height = width, height
	cfg.Hidden = true
	cfg.Resizable = false
	cfg.VSync = false
	w, err := NewWindow(cfg)
	if err != nil {
		return nil, err
	}
	dev, err := glimpl.NewDevice()
	if err != nil {
		w.Destroy()
		return nil, fmt.Errorf("headless device: %w", err)
	}
	return &Headless{Device: dev, Window: w}, nil
}

func (h *Headless) Close() {
	h.Device.Release()
	h.Window.Destroy()
}
