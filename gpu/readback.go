package gpu

import (
	"fmt"
	"image"

	"vizgpu/driver"
)

// ReadPixels returns the RGBA8 pixels of the current draw destination,
// rows bottom first. It is valid right after a draw to that destination
// and may stall until the device finishes rendering.
func (s *Session) ReadPixels(width, height int) ([]byte, error) {
	pixels := make([]byte, width*height*4)
	if err := s.dev.ReadPixels(image.Rect(0, 0, width, height), driver.TextureFormatRGBA8, pixels); err != nil {
		return nil, fmt.Errorf("gpu: read pixels: %w", err)
	}
	return pixels, nil
}

// ReadFloatPixels is like ReadPixels but returns 4 floats per pixel.
func (s *Session) ReadFloatPixels(width, height int) ([]float32, error) {
	raw := make([]byte, width*height*16)
	if err := s.dev.ReadPixels(image.Rect(0, 0, width, height), driver.TextureFormatFloat, raw); err != nil {
		return nil, fmt.Errorf("gpu: read pixels: %w", err)
	}
	return driver.Float32View(raw), nil
}

// ReadSurface returns the device contents of a surface as 4 floats per
// texel, rows bottom first. RGBA8 values are normalized to [0, 1]. The
// surface becomes the draw destination.
func (s *Session) ReadSurface(t *Surface) ([]float32, error) {
	if !s.IsUploaded(t) {
		return nil, fmt.Errorf("gpu: read %s: %w", t, ErrUnboundResource)
	}
	if t.format == driver.TextureFormatFloat && !s.Supports(driver.FeatureFloatRenderTargets) {
		return nil, fmt.Errorf("gpu: read %s: %w", t, ErrCapabilityUnsupported)
	}
	fbo, err := s.framebuffer(t)
	if err != nil {
		return nil, err
	}
	s.dev.BindFramebuffer(fbo)
	return s.ReadFloatPixels(t.width, t.height)
}

// Snapshot reads the current destination into an image with the usual
// top-left origin.
func (s *Session) Snapshot(width, height int) (*image.RGBA, error) {
	pixels, err := s.ReadPixels(width, height)
	if err != nil {
		return nil, err
	}
	img := &image.RGBA{Pix: pixels, Stride: width * 4, Rect: image.Rect(0, 0, width, height)}
	if s.Caps().BottomLeftOrigin {
		driver.FlipImageY(width*4, height, img.Pix)
	}
	return img, nil
}
