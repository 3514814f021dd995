package opengl

import (
	"fmt"
	"image"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"vizgpu/driver"
)

// textureTriple is the internal format, format and type of a texture.
type textureTriple struct {
	internalFormat int32
	format         uint32
	typ            uint32
}

func tripleFor(f driver.TextureFormat) textureTriple {
	if f == driver.TextureFormatFloat {
		return textureTriple{gl.RGBA32F, gl.RGBA, gl.FLOAT}
	}
	return textureTriple{gl.RGBA8, gl.RGBA, gl.UNSIGNED_BYTE}
}

type texture struct {
	dev    *Device
	id     uint32
	format driver.TextureFormat
	size   image.Point
}

// NewTexture uploads pixels, which may be nil for an uninitialized
// texture. Textures clamp at the edges and are not mipmapped.
func (d *Device) NewTexture(format driver.TextureFormat, width, height int, filter driver.TextureFilter, pixels []byte) (driver.Texture, error) {
	if limit := d.maxTextureSize; width <= 0 || height <= 0 || width > limit || height > limit {
		return nil, fmt.Errorf("opengl: invalid texture size %dx%d", width, height)
	}
	t := &texture{dev: d, format: format, size: image.Pt(width, height)}
	gl.GenTextures(1, &t.id)
	d.bindScratchTexture(t.id)

	f := int32(gl.NEAREST)
	if filter == driver.FilterLinear {
		f = gl.LINEAR
	}
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, f)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, f)

	tr := tripleFor(format)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexImage2D(gl.TEXTURE_2D, 0, tr.internalFormat, int32(width), int32(height), 0, tr.format, tr.typ, ptr(pixels))
	d.restoreScratchTexture()
	if err := glError("texture"); err != nil {
		gl.DeleteTextures(1, &t.id)
		return nil, err
	}
	return t, nil
}

func (t *texture) Upload(pixels []byte) {
	if len(pixels) == 0 {
		return
	}
	t.dev.bindScratchTexture(t.id)
	tr := tripleFor(t.format)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, int32(t.size.X), int32(t.size.Y), tr.format, tr.typ, ptr(pixels))
	t.dev.restoreScratchTexture()
}

func (t *texture) Size() image.Point            { return t.size }
func (t *texture) Format() driver.TextureFormat { return t.format }
func (t *texture) Handle() uint32               { return t.id }

func (t *texture) Release() {
	for unit, bound := range t.dev.units {
		if bound == t {
			delete(t.dev.units, unit)
		}
	}
	gl.DeleteTextures(1, &t.id)
	t.id = 0
}

// ── Framebuffers ──────────────────────────────────────────────────────────────

type framebuffer struct {
	dev *Device
	id  uint32
	tex *texture
}

func (d *Device) NewFramebuffer(tex driver.Texture) (driver.Framebuffer, error) {
	t := tex.(*texture)
	f := &framebuffer{dev: d, tex: t}
	gl.GenFramebuffers(1, &f.id)
	gl.BindFramebuffer(gl.FRAMEBUFFER, f.id)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, t.id, 0)
	st := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	d.restoreFramebuffer()
	if st != gl.FRAMEBUFFER_COMPLETE {
		gl.DeleteFramebuffers(1, &f.id)
		return nil, fmt.Errorf("opengl: %s framebuffer status 0x%x: %w", t.format, st, driver.ErrIncompleteFramebuffer)
	}
	return f, nil
}

func (f *framebuffer) Texture() driver.Texture { return f.tex }
func (f *framebuffer) Handle() uint32          { return f.id }

func (f *framebuffer) Release() {
	if f.dev.fbo == f {
		f.dev.BindFramebuffer(nil)
	}
	gl.DeleteFramebuffers(1, &f.id)
	f.id = 0
}

// probeFloatTargets reports whether an RGBA32F texture can be a complete
// draw destination.
func (d *Device) probeFloatTargets() bool {
	tex, err := d.NewTexture(driver.TextureFormatFloat, 2, 2, driver.FilterNearest, nil)
	if err != nil {
		return false
	}
	defer tex.Release()
	fbo, err := d.NewFramebuffer(tex)
	if err != nil {
		return false
	}
	fbo.Release()
	return true
}
