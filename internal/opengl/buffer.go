package opengl

import (
	gl "github.com/go-gl/gl/v4.1-core/gl"

	"vizgpu/driver"
)

type buffer struct {
	dev     *Device
	id      uint32
	binding driver.BufferBinding
	usage   uint32
	size    int
	// capacity is the allocated size in bytes.
	capacity int
}

func (d *Device) NewBuffer(binding driver.BufferBinding, data []byte, dynamic bool) (driver.Buffer, error) {
	b := &buffer{dev: d, binding: binding, usage: gl.STATIC_DRAW}
	if dynamic {
		b.usage = gl.DYNAMIC_DRAW
	}
	gl.GenBuffers(1, &b.id)
	b.Upload(data)
	return b, nil
}

// Upload reallocates the store when data outgrows it and otherwise
// overwrites it in place. Uploads go through the copy-write target so the
// bound vertex array is left alone.
func (b *buffer) Upload(data []byte) {
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, b.id)
	switch {
	case len(data) > b.capacity || b.capacity == 0:
		gl.BufferData(gl.COPY_WRITE_BUFFER, len(data), ptr(data), b.usage)
		b.capacity = len(data)
	case len(data) > 0:
		gl.BufferSubData(gl.COPY_WRITE_BUFFER, 0, len(data), ptr(data))
	}
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, 0)
	b.size = len(data)
}

func (b *buffer) Size() int      { return b.size }
func (b *buffer) Handle() uint32 { return b.id }

func (b *buffer) Release() {
	gl.DeleteBuffers(1, &b.id)
	b.id = 0
}

// ── Vertex arrays ─────────────────────────────────────────────────────────────

type vertexArray struct {
	dev *Device
	id  uint32
}

func (d *Device) NewVertexArray() (driver.VertexArray, error) {
	v := &vertexArray{dev: d}
	gl.GenVertexArrays(1, &v.id)
	return v, nil
}

func (v *vertexArray) Attrib(loc int, buf driver.Buffer, size, stride, offset, divisor int) {
	gl.BindVertexArray(v.id)
	gl.BindBuffer(gl.ARRAY_BUFFER, buf.Handle())
	gl.EnableVertexAttribArray(uint32(loc))
	gl.VertexAttribPointer(uint32(loc), int32(size), gl.FLOAT, false, int32(stride), gl.PtrOffset(offset))
	gl.VertexAttribDivisor(uint32(loc), uint32(divisor))
	v.dev.restoreVertexArray()
}

func (v *vertexArray) Indices(buf driver.Buffer) {
	gl.BindVertexArray(v.id)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, buf.Handle())
	v.dev.restoreVertexArray()
}

func (v *vertexArray) Handle() uint32 { return v.id }

func (v *vertexArray) Release() {
	if v.dev.vao == v {
		v.dev.BindVertexArray(nil)
	}
	gl.DeleteVertexArrays(1, &v.id)
	v.id = 0
}
