// Package opengl implements driver.Device on an OpenGL 4.1 core context.
package opengl

import (
	"fmt"
	"image"
	"unsafe"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"vizgpu/driver"
	"vizgpu/shader"
)

// Device renders through the OpenGL context current on the calling
// thread.
type Device struct {
	info           driver.Info
	maxTextureSize int
	caps           *driver.Caps

	prog  *program
	vao   *vertexArray
	fbo   *framebuffer
	units map[int]*texture
}

var _ driver.Device = (*Device)(nil)

// NewDevice loads the OpenGL entry points. The context must be current.
func NewDevice() (*Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	d := &Device{
		info: driver.Info{
			Vendor:   gl.GoStr(gl.GetString(gl.VENDOR)),
			Renderer: gl.GoStr(gl.GetString(gl.RENDERER)),
			Version:  gl.GoStr(gl.GetString(gl.VERSION)),
		},
		maxTextureSize: getInt(gl.MAX_TEXTURE_SIZE),
		units:          make(map[int]*texture),
	}
	gl.Disable(gl.DEPTH_TEST)
	gl.Disable(gl.BLEND)
	return d, nil
}

func (d *Device) Info() driver.Info { return d.info }

// Caps queries the context once; later calls return the same value.
func (d *Device) Caps() driver.Caps {
	if d.caps != nil {
		return *d.caps
	}
	c := driver.Caps{
		BottomLeftOrigin: true,
		Features:         driver.FeatureInstancing,
		MaxTextureSize:   d.maxTextureSize,
		MaxTextureUnits:  getInt(gl.MAX_TEXTURE_IMAGE_UNITS),
		MaxVertexAttribs: getInt(gl.MAX_VERTEX_ATTRIBS),
	}
	n := getInt(gl.NUM_EXTENSIONS)
	for i := 0; i < n; i++ {
		c.Extensions = append(c.Extensions, gl.GoStr(gl.GetStringi(gl.EXTENSIONS, uint32(i))))
	}
	if d.probeFloatTargets() {
		c.Features |= driver.FeatureFloatRenderTargets
	}
	d.caps = &c
	return c
}

// ── State ─────────────────────────────────────────────────────────────────────

func (d *Device) BindProgram(p driver.Program) {
	if p == nil {
		d.prog = nil
		gl.UseProgram(0)
		return
	}
	d.prog = p.(*program)
	gl.UseProgram(d.prog.id)
}

func (d *Device) BindVertexArray(v driver.VertexArray) {
	if v == nil {
		d.vao = nil
	} else {
		d.vao = v.(*vertexArray)
	}
	d.restoreVertexArray()
}

func (d *Device) restoreVertexArray() {
	if d.vao == nil {
		gl.BindVertexArray(0)
		return
	}
	gl.BindVertexArray(d.vao.id)
}

func (d *Device) BindFramebuffer(f driver.Framebuffer) {
	if f == nil {
		d.fbo = nil
	} else {
		d.fbo = f.(*framebuffer)
	}
	d.restoreFramebuffer()
}

func (d *Device) restoreFramebuffer() {
	if d.fbo == nil {
		gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
		return
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, d.fbo.id)
}

func (d *Device) BindTexture(unit int, t driver.Texture) {
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
	if t == nil {
		delete(d.units, unit)
		gl.BindTexture(gl.TEXTURE_2D, 0)
		return
	}
	d.units[unit] = t.(*texture)
	gl.BindTexture(gl.TEXTURE_2D, d.units[unit].id)
}

// bindScratchTexture binds id on unit 0 for setup calls;
// restoreScratchTexture puts back what the engine bound there.
func (d *Device) bindScratchTexture(id uint32) {
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, id)
}

func (d *Device) restoreScratchTexture() {
	var id uint32
	if t, ok := d.units[0]; ok {
		id = t.id
	}
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, id)
}

func (d *Device) SetUniform(loc int, typ shader.Type, count int, values []float32) {
	if loc < 0 || len(values) == 0 {
		return
	}
	l, n, v := int32(loc), int32(count), &values[0]
	switch typ {
	case shader.Float:
		gl.Uniform1fv(l, n, v)
	case shader.Vec2:
		gl.Uniform2fv(l, n, v)
	case shader.Vec3:
		gl.Uniform3fv(l, n, v)
	case shader.Vec4:
		gl.Uniform4fv(l, n, v)
	case shader.Mat2:
		gl.UniformMatrix2fv(l, n, false, v)
	case shader.Mat3:
		gl.UniformMatrix3fv(l, n, false, v)
	case shader.Mat4:
		gl.UniformMatrix4fv(l, n, false, v)
	default:
		ints := make([]int32, len(values))
		for i, f := range values {
			ints[i] = int32(f)
		}
		switch typ.Components() {
		case 2:
			gl.Uniform2iv(l, n, &ints[0])
		case 3:
			gl.Uniform3iv(l, n, &ints[0])
		case 4:
			gl.Uniform4iv(l, n, &ints[0])
		default:
			gl.Uniform1iv(l, n, &ints[0])
		}
	}
}

func (d *Device) Viewport(x, y, width, height int) {
	gl.Viewport(int32(x), int32(y), int32(width), int32(height))
}

func (d *Device) Clear(r, g, b, a float32) {
	gl.ClearColor(r, g, b, a)
	gl.Clear(gl.COLOR_BUFFER_BIT)
}

// ── Draws ─────────────────────────────────────────────────────────────────────

func glMode(m driver.DrawMode) uint32 {
	switch m {
	case driver.DrawModeTriangleStrip:
		return gl.TRIANGLE_STRIP
	case driver.DrawModeTriangleFan:
		return gl.TRIANGLE_FAN
	case driver.DrawModeLines:
		return gl.LINES
	case driver.DrawModeLineStrip:
		return gl.LINE_STRIP
	case driver.DrawModePoints:
		return gl.POINTS
	}
	return gl.TRIANGLES
}

func (d *Device) DrawArrays(mode driver.DrawMode, off, count int) {
	gl.DrawArrays(glMode(mode), int32(off), int32(count))
}

// DrawElements reads 32-bit indices starting at index off.
func (d *Device) DrawElements(mode driver.DrawMode, off, count int) {
	gl.DrawElements(glMode(mode), int32(count), gl.UNSIGNED_INT, gl.PtrOffset(off*4))
}

func (d *Device) DrawArraysInstanced(mode driver.DrawMode, off, count, instances int) {
	gl.DrawArraysInstanced(glMode(mode), int32(off), int32(count), int32(instances))
}

func (d *Device) DrawElementsInstanced(mode driver.DrawMode, off, count, instances int) {
	gl.DrawElementsInstanced(glMode(mode), int32(count), gl.UNSIGNED_INT, gl.PtrOffset(off*4), int32(instances))
}

// ── Readback and debug ────────────────────────────────────────────────────────

func (d *Device) ReadPixels(r image.Rectangle, format driver.TextureFormat, pixels []byte) error {
	if want := r.Dx() * r.Dy() * format.BytesPerPixel(); len(pixels) < want {
		return fmt.Errorf("opengl: read of %v needs %d bytes, have %d", r, want, len(pixels))
	}
	if r.Empty() {
		return nil
	}
	tr := tripleFor(format)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(int32(r.Min.X), int32(r.Min.Y), int32(r.Dx()), int32(r.Dy()), tr.format, tr.typ, gl.Ptr(&pixels[0]))
	return glError("read pixels")
}

func (d *Device) DebugState() driver.DebugState {
	var vp [4]int32
	gl.GetIntegerv(gl.VIEWPORT, &vp[0])
	return driver.DebugState{
		Program:     uint32(getInt(gl.CURRENT_PROGRAM)),
		VertexArray: uint32(getInt(gl.VERTEX_ARRAY_BINDING)),
		ArrayBuffer: uint32(getInt(gl.ARRAY_BUFFER_BINDING)),
		IndexBuffer: uint32(getInt(gl.ELEMENT_ARRAY_BUFFER_BINDING)),
		Framebuffer: uint32(getInt(gl.DRAW_FRAMEBUFFER_BINDING)),
		Viewport:    image.Rect(int(vp[0]), int(vp[1]), int(vp[0]+vp[2]), int(vp[1]+vp[3])),
	}
}

// Release unbinds everything. Objects are owned by their creators.
func (d *Device) Release() {
	d.BindProgram(nil)
	d.BindVertexArray(nil)
	d.BindFramebuffer(nil)
	for unit := range d.units {
		d.BindTexture(unit, nil)
	}
}

func getInt(pname uint32) int {
	var v int32
	gl.GetIntegerv(pname, &v)
	return int(v)
}

func glError(op string) error {
	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("opengl: %s: error 0x%x", op, code)
	}
	return nil
}

// ptr returns a pointer to the first byte of b, or nil when b is empty.
func ptr(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Pointer(&b[0])
}
