// Package driver defines the device abstraction the engine renders through.
// A Device wraps a current rendering context; the engine never creates or
// destroys one. Implementations live in opengl (GPU) and internal/softgpu
// (CPU reference).
package driver

import (
	"errors"
	"fmt"
	"image"
	"unsafe"

	"vizgpu/shader"
)

// Device is a rendering context. All methods must be called from the
// goroutine that owns the context.
type Device interface {
	Caps() Caps
	Info() Info

	NewBuffer(binding BufferBinding, data []byte, dynamic bool) (Buffer, error)
	NewTexture(format TextureFormat, width, height int, filter TextureFilter, pixels []byte) (Texture, error)
	// NewFramebuffer makes tex a draw destination. It fails when the
	// device cannot render to the texture's format.
	NewFramebuffer(tex Texture) (Framebuffer, error)
	// NewProgram compiles and links a vertex/fragment pair. Failures are
	// reported as *ShaderError.
	NewProgram(vertex, fragment string) (Program, error)
	NewVertexArray() (VertexArray, error)

	BindProgram(p Program)
	BindVertexArray(v VertexArray)
	// BindFramebuffer selects the draw destination; nil selects the
	// default (display) framebuffer.
	BindFramebuffer(f Framebuffer)
	BindTexture(unit int, t Texture)
	// SetUniform assigns count values of typ to location loc of the bound
	// program. Integer, boolean and sampler types are converted from the
	// float payload.
	SetUniform(loc int, typ shader.Type, count int, values []float32)

	Viewport(x, y, width, height int)
	Clear(r, g, b, a float32)
	DrawArrays(mode DrawMode, off, count int)
	DrawElements(mode DrawMode, off, count int)
	DrawArraysInstanced(mode DrawMode, off, count, instances int)
	DrawElementsInstanced(mode DrawMode, off, count, instances int)

	// ReadPixels copies a rectangle of the bound draw destination into
	// pixels. RGBA8 reads 4 bytes per pixel; Float reads 16.
	ReadPixels(r image.Rectangle, format TextureFormat, pixels []byte) error

	DebugState() DebugState
	Release()
}

type Buffer interface {
	// Upload replaces the buffer contents. The device object is kept
	// even when the size changes.
	Upload(data []byte)
	Size() int
	Handle() uint32
	Release()
}

type Texture interface {
	Upload(pixels []byte)
	Size() image.Point
	Format() TextureFormat
	Handle() uint32
	Release()
}

type Framebuffer interface {
	Texture() Texture
	Handle() uint32
	Release()
}

type Program interface {
	// AttribLocation and UniformLocation return -1 for names the linked
	// program does not use.
	AttribLocation(name string) int
	UniformLocation(name string) int
	Handle() uint32
	Release()
}

// VertexArray is a vertex layout: which buffer feeds which attribute
// location, and the index buffer.
type VertexArray interface {
	// Attrib feeds location loc from buf with size floats per element.
	// Stride and offset are in bytes. A divisor > 0 advances the element
	// once per divisor instances instead of once per vertex.
	Attrib(loc int, buf Buffer, size, stride, offset, divisor int)
	Indices(buf Buffer)
	Handle() uint32
	Release()
}

// Info identifies the implementation behind a Device.
type Info struct {
	Vendor   string
	Renderer string
	Version  string
}

func (i Info) String() string {
	return fmt.Sprintf("%s %s (%s)", i.Vendor, i.Renderer, i.Version)
}

type Caps struct {
	// BottomLeftOrigin is true if row 0 of a readback is the bottom row.
	BottomLeftOrigin bool
	Features         Features
	MaxTextureSize   int
	MaxTextureUnits  int
	MaxVertexAttribs int
	Extensions       []string
}

// DebugState is a read-only snapshot of the device bindings.
type DebugState struct {
	Program     uint32
	VertexArray uint32
	ArrayBuffer uint32
	IndexBuffer uint32
	Framebuffer uint32
	Viewport    image.Rectangle
}

func (d DebugState) String() string {
	return fmt.Sprintf("program=%d vao=%d array=%d index=%d fbo=%d viewport=%v",
		d.Program, d.VertexArray, d.ArrayBuffer, d.IndexBuffer, d.Framebuffer, d.Viewport)
}

// ShaderError is a compile or link failure. Stage is zero for link
// failures.
type ShaderError struct {
	Stage shader.Stage
	Log   string
}

func (e *ShaderError) Error() string {
	if e.Stage == 0 {
		return "link failed: " + e.Log
	}
	return fmt.Sprintf("%s: compile failed: %s", e.Stage, e.Log)
}

type (
	BufferBinding uint8
	TextureFormat uint8
	TextureFilter uint8
	DrawMode      uint8
	Features      uint
)

const (
	BufferBindingVertices BufferBinding = iota
	BufferBindingIndices
)

const (
	TextureFormatRGBA8 TextureFormat = iota
	TextureFormatFloat
)

const (
	FilterNearest TextureFilter = iota
	FilterLinear
)

const (
	DrawModeTriangles DrawMode = iota
	DrawModeTriangleStrip
	DrawModeTriangleFan
	DrawModeLines
	DrawModeLineStrip
	DrawModePoints
)

const (
	FeatureFloatRenderTargets Features = 1 << iota
	FeatureInstancing
)

var ErrIncompleteFramebuffer = errors.New("incomplete framebuffer")

func (f Features) Has(feats Features) bool {
	return f&feats == feats
}

func (f Features) String() string {
	s := ""
	if f.Has(FeatureFloatRenderTargets) {
		s += "float-render-targets "
	}
	if f.Has(FeatureInstancing) {
		s += "instancing "
	}
	if s == "" {
		return "none"
	}
	return s[:len(s)-1]
}

func (f TextureFormat) String() string {
	switch f {
	case TextureFormatRGBA8:
		return "rgba8"
	case TextureFormatFloat:
		return "rgba32f"
	}
	return "unknown"
}

// BytesPerPixel is the size of one texel of f.
func (f TextureFormat) BytesPerPixel() int {
	if f == TextureFormatFloat {
		return 16
	}
	return 4
}

func (m DrawMode) String() string {
	switch m {
	case DrawModeTriangles:
		return "triangles"
	case DrawModeTriangleStrip:
		return "triangle-strip"
	case DrawModeTriangleFan:
		return "triangle-fan"
	case DrawModeLines:
		return "lines"
	case DrawModeLineStrip:
		return "line-strip"
	case DrawModePoints:
		return "points"
	}
	return "unknown"
}

// BytesView returns the bytes backing a slice of fixed-size values.
func BytesView[T ~float32 | ~uint32 | ~int32 | ~uint8](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(zero)))
}

// Float32View reinterprets a byte slice filled by a float readback.
func Float32View(b []byte) []float32 {
	if len(b) < 4 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), len(b)/4)
}

// FlipImageY flips rows in place. OpenGL's origin is the lower left
// corner.
func FlipImageY(stride, height int, pixels []byte) {
	row := make([]uint8, stride)
	for y := 0; y < height/2; y++ {
		y1 := height - y - 1
		dest := y1 * stride
		src := y * stride
		copy(row, pixels[dest:])
		copy(pixels[dest:], pixels[src:src+len(row)])
		copy(pixels[src:], row)
	}
}
