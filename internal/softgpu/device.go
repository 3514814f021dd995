// Package softgpu is a CPU implementation of driver.Device. It rasterizes
// triangles, lines and points with Go shader functions and counts every
// device allocation, which makes it the reference device for tests.
package softgpu

import (
	"fmt"
	"image"
	"math"

	"vizgpu/driver"
	"vizgpu/shader"
)

// Stats counts device-side work.
type Stats struct {
	Buffers        int // NewBuffer calls
	BufferUploads  int // Buffer.Upload calls
	Textures       int
	TextureUploads int
	Framebuffers   int
	Programs       int
	VertexArrays   int
	Draws          int
	Released       int
}

// Option configures a Device.
type Option func(*Device)

// WithFloatRenderTargets controls whether float textures can be draw
// destinations.
func WithFloatRenderTargets(ok bool) Option {
	return func(d *Device) { d.floatTargets = ok }
}

// WithInstancing controls whether the device reports instanced drawing.
func WithInstancing(ok bool) Option {
	return func(d *Device) { d.noInstancing = !ok }
}

// WithExtensions sets the extension list reported by Caps.
func WithExtensions(exts ...string) Option {
	return func(d *Device) { d.extensions = exts }
}

// Device is a CPU rendering context with a default framebuffer of a fixed
// size.
type Device struct {
	floatTargets bool
	noInstancing bool
	extensions   []string

	nextHandle uint32
	stats      Stats
	registered map[[2]string]Shaders
	failLink   string

	screen *texture

	program  *program
	vao      *vertexArray
	fbo      *framebuffer
	lastVBO  uint32
	units    map[int]*texture
	viewport image.Rectangle
}

var _ driver.Device = (*Device)(nil)

// New returns a device whose default framebuffer is width×height RGBA8.
func New(width, height int, opts ...Option) *Device {
	d := &Device{
		floatTargets: true,
		registered:   make(map[[2]string]Shaders),
		units:        make(map[int]*texture),
		viewport:     image.Rect(0, 0, width, height),
	}
	for _, o := range opts {
		o(d)
	}
	d.screen = &texture{dev: d, format: driver.TextureFormatRGBA8, size: image.Pt(width, height)}
	d.screen.data = make([]float32, width*height*4)
	return d
}

func (d *Device) handle() uint32 {
	d.nextHandle++
	return d.nextHandle
}

// Stats returns the allocation and upload counters.
func (d *Device) Stats() Stats { return d.stats }

// FailNextLink makes the next NewProgram call fail to link with log.
func (d *Device) FailNextLink(log string) { d.failLink = log }

func (d *Device) Caps() driver.Caps {
	var feats driver.Features
	if !d.noInstancing {
		feats |= driver.FeatureInstancing
	}
	if d.floatTargets {
		feats |= driver.FeatureFloatRenderTargets
	}
	return driver.Caps{
		BottomLeftOrigin: true,
		Features:         feats,
		MaxTextureSize:   4096,
		MaxTextureUnits:  16,
		MaxVertexAttribs: 16,
		Extensions:       append([]string(nil), d.extensions...),
	}
}

func (d *Device) Info() driver.Info {
	return driver.Info{Vendor: "vizgpu", Renderer: "softgpu", Version: "1.0"}
}

// ── Buffers ──────────────────────────────────────────────────────────────────

type buffer struct {
	dev     *Device
	handle  uint32
	binding driver.BufferBinding
	data    []byte
}

func (d *Device) NewBuffer(binding driver.BufferBinding, data []byte, dynamic bool) (driver.Buffer, error) {
	d.stats.Buffers++
	return &buffer{dev: d, handle: d.handle(), binding: binding, data: append([]byte(nil), data...)}, nil
}

func (b *buffer) Upload(data []byte) {
	b.dev.stats.BufferUploads++
	b.data = append(b.data[:0], data...)
}

func (b *buffer) Size() int      { return len(b.data) }
func (b *buffer) Handle() uint32 { return b.handle }

func (b *buffer) Release() {
	b.dev.stats.Released++
	b.data = nil
}

func (b *buffer) float(off int) float32 {
	return math.Float32frombits(uint32(b.data[off]) | uint32(b.data[off+1])<<8 | uint32(b.data[off+2])<<16 | uint32(b.data[off+3])<<24)
}

func (b *buffer) index(i int) int {
	off := i * 4
	return int(uint32(b.data[off]) | uint32(b.data[off+1])<<8 | uint32(b.data[off+2])<<16 | uint32(b.data[off+3])<<24)
}

// ── Textures ─────────────────────────────────────────────────────────────────

// texture stores every format as 4 floats per texel, row 0 at the bottom.
// RGBA8 values are quantized on write.
type texture struct {
	dev    *Device
	handle uint32
	format driver.TextureFormat
	filter driver.TextureFilter
	size   image.Point
	data   []float32
}

func (d *Device) NewTexture(format driver.TextureFormat, width, height int, filter driver.TextureFilter, pixels []byte) (driver.Texture, error) {
	if width <= 0 || height <= 0 || width > 4096 || height > 4096 {
		return nil, fmt.Errorf("softgpu: invalid texture size %dx%d", width, height)
	}
	d.stats.Textures++
	t := &texture{dev: d, handle: d.handle(), format: format, filter: filter, size: image.Pt(width, height)}
	t.data = make([]float32, width*height*4)
	if pixels != nil {
		t.load(pixels)
	}
	return t, nil
}

func (t *texture) load(pixels []byte) {
	n := t.size.X * t.size.Y * 4
	if want := t.size.X * t.size.Y * t.format.BytesPerPixel(); len(pixels) != want {
		panic(fmt.Sprintf("softgpu: texture upload of %d bytes, want %d", len(pixels), want))
	}
	if t.format == driver.TextureFormatFloat {
		copy(t.data, driver.Float32View(pixels)[:n])
		return
	}
	for i := 0; i < n; i++ {
		t.data[i] = float32(pixels[i]) / 255
	}
}

func (t *texture) Upload(pixels []byte) {
	t.dev.stats.TextureUploads++
	t.load(pixels)
}

func (t *texture) Size() image.Point            { return t.size }
func (t *texture) Format() driver.TextureFormat { return t.format }
func (t *texture) Handle() uint32               { return t.handle }

func (t *texture) Release() {
	t.dev.stats.Released++
	t.data = nil
}

func (t *texture) store(x, y int, c [4]float32) {
	i := (y*t.size.X + x) * 4
	for k := 0; k < 4; k++ {
		v := c[k]
		if t.format == driver.TextureFormatRGBA8 {
			v = quantize(v)
		}
		t.data[i+k] = v
	}
}

func (t *texture) texel(x, y int) [4]float32 {
	x = clampInt(x, 0, t.size.X-1)
	y = clampInt(y, 0, t.size.Y-1)
	i := (y*t.size.X + x) * 4
	return [4]float32{t.data[i], t.data[i+1], t.data[i+2], t.data[i+3]}
}

// sample reads at normalized coordinates with clamp-to-edge wrapping.
func (t *texture) sample(u, v float32) [4]float32 {
	fx := u*float32(t.size.X) - 0.5
	fy := v*float32(t.size.Y) - 0.5
	if t.filter == driver.FilterNearest {
		return t.texel(int(math.Floor(float64(fx+0.5))), int(math.Floor(float64(fy+0.5))))
	}
	x0, y0 := int(math.Floor(float64(fx))), int(math.Floor(float64(fy)))
	ax, ay := fx-float32(x0), fy-float32(y0)
	a, b := t.texel(x0, y0), t.texel(x0+1, y0)
	c, e := t.texel(x0, y0+1), t.texel(x0+1, y0+1)
	var out [4]float32
	for k := range out {
		top := a[k]*(1-ax) + b[k]*ax
		bot := c[k]*(1-ax) + e[k]*ax
		out[k] = top*(1-ay) + bot*ay
	}
	return out
}

func quantize(v float32) float32 {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	return float32(math.Round(float64(v)*255)) / 255
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ── Framebuffers ─────────────────────────────────────────────────────────────

type framebuffer struct {
	dev    *Device
	handle uint32
	tex    *texture
}

func (d *Device) NewFramebuffer(tex driver.Texture) (driver.Framebuffer, error) {
	t, ok := tex.(*texture)
	if !ok || t.dev != d {
		return nil, fmt.Errorf("softgpu: foreign texture %T", tex)
	}
	if t.format == driver.TextureFormatFloat && !d.floatTargets {
		return nil, fmt.Errorf("softgpu: %s color attachment: %w", t.format, driver.ErrIncompleteFramebuffer)
	}
	d.stats.Framebuffers++
	return &framebuffer{dev: d, handle: d.handle(), tex: t}, nil
}

func (f *framebuffer) Texture() driver.Texture { return f.tex }
func (f *framebuffer) Handle() uint32          { return f.handle }
func (f *framebuffer) Release()                { f.dev.stats.Released++ }

func (d *Device) target() *texture {
	if d.fbo != nil {
		return d.fbo.tex
	}
	return d.screen
}

// ── Vertex arrays ────────────────────────────────────────────────────────────

type attribBinding struct {
	buf                           *buffer
	size, stride, offset, divisor int
}

type vertexArray struct {
	dev     *Device
	handle  uint32
	attribs map[int]attribBinding
	indices *buffer
}

func (d *Device) NewVertexArray() (driver.VertexArray, error) {
	d.stats.VertexArrays++
	return &vertexArray{dev: d, handle: d.handle(), attribs: make(map[int]attribBinding)}, nil
}

func (v *vertexArray) Attrib(loc int, buf driver.Buffer, size, stride, offset, divisor int) {
	b := buf.(*buffer)
	if stride == 0 {
		stride = size * 4
	}
	v.attribs[loc] = attribBinding{buf: b, size: size, stride: stride, offset: offset, divisor: divisor}
	v.dev.lastVBO = b.handle
}

func (v *vertexArray) Indices(buf driver.Buffer) { v.indices = buf.(*buffer) }
func (v *vertexArray) Handle() uint32            { return v.handle }
func (v *vertexArray) Release()                  { v.dev.stats.Released++ }

// fetch reads the element of binding a used by vertex/instance.
func (a attribBinding) fetch(vertex, instance int) []float32 {
	e := vertex
	if a.divisor > 0 {
		e = instance / a.divisor
	}
	off := a.offset + e*a.stride
	if off+a.size*4 > len(a.buf.data) {
		panic(fmt.Sprintf("softgpu: attribute read of element %d past end of %d-byte buffer", e, len(a.buf.data)))
	}
	out := make([]float32, a.size)
	for i := range out {
		out[i] = a.buf.float(off + i*4)
	}
	return out
}

// ── State ────────────────────────────────────────────────────────────────────

func (d *Device) BindProgram(p driver.Program) {
	if p == nil {
		d.program = nil
		return
	}
	d.program = p.(*program)
}

func (d *Device) BindVertexArray(v driver.VertexArray) {
	if v == nil {
		d.vao = nil
		return
	}
	d.vao = v.(*vertexArray)
}

func (d *Device) BindFramebuffer(f driver.Framebuffer) {
	if f == nil {
		d.fbo = nil
		return
	}
	d.fbo = f.(*framebuffer)
}

func (d *Device) BindTexture(unit int, t driver.Texture) {
	if t == nil {
		delete(d.units, unit)
		return
	}
	d.units[unit] = t.(*texture)
}

func (d *Device) SetUniform(loc int, typ shader.Type, count int, values []float32) {
	if d.program == nil || loc < 0 {
		return
	}
	n := typ.Components() * count
	if len(values) < n {
		panic(fmt.Sprintf("softgpu: uniform %d: %d values for %d×%s", loc, len(values), count, typ))
	}
	d.program.uniforms[loc] = append([]float32(nil), values[:n]...)
}

func (d *Device) Viewport(x, y, width, height int) {
	d.viewport = image.Rect(x, y, x+width, y+height)
}

func (d *Device) Clear(r, g, b, a float32) {
	t := d.target()
	for y := 0; y < t.size.Y; y++ {
		for x := 0; x < t.size.X; x++ {
			t.store(x, y, [4]float32{r, g, b, a})
		}
	}
}

func (d *Device) ReadPixels(r image.Rectangle, format driver.TextureFormat, pixels []byte) error {
	t := d.target()
	if !r.In(image.Rectangle{Max: t.size}) {
		return fmt.Errorf("softgpu: read %v outside %v target", r, t.size)
	}
	if want := r.Dx() * r.Dy() * format.BytesPerPixel(); len(pixels) < want {
		return fmt.Errorf("softgpu: read buffer of %d bytes, want %d", len(pixels), want)
	}
	var floats []float32
	if format == driver.TextureFormatFloat {
		floats = driver.Float32View(pixels)
	}
	i := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c := t.texel(x, y)
			for k := 0; k < 4; k++ {
				if floats != nil {
					floats[i] = c[k]
				} else {
					pixels[i] = uint8(math.Round(float64(quantize(c[k])) * 255))
				}
				i++
			}
		}
	}
	return nil
}

func (d *Device) DebugState() driver.DebugState {
	var s driver.DebugState
	if d.program != nil {
		s.Program = d.program.handle
	}
	if d.vao != nil {
		s.VertexArray = d.vao.handle
		if d.vao.indices != nil {
			s.IndexBuffer = d.vao.indices.handle
		}
	}
	if d.fbo != nil {
		s.Framebuffer = d.fbo.handle
	}
	s.ArrayBuffer = d.lastVBO
	s.Viewport = d.viewport
	return s
}

// Release drops the default framebuffer. Objects created by the device
// stay valid until released individually.
func (d *Device) Release() {
	d.screen.data = nil
}
