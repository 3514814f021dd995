package gpu

import (
	"fmt"
	"sync/atomic"

	"vizgpu/driver"
	"vizgpu/shader"
)

// ID identifies a resource or program for the lifetime of the process.
// IDs are assigned at construction and never reused.
type ID uint64

var lastID atomic.Uint64

func nextID() ID { return ID(lastID.Add(1)) }

type Kind int

const (
	KindAttribute Kind = iota
	KindUniform
	KindSurface
	KindIndexList
)

func (k Kind) String() string {
	switch k {
	case KindAttribute:
		return "attribute"
	case KindUniform:
		return "uniform"
	case KindSurface:
		return "surface"
	case KindIndexList:
		return "index list"
	}
	return "unknown"
}

// Uploadable is anything a Session can upload: resources and programs.
type Uploadable interface {
	ID() ID
	String() string
	upload(s *Session, e *entry) error
}

// Resource is CPU-owned data paired with at most one device allocation per
// session. The payload is kept so the resource can be uploaded again into
// a new session.
type Resource interface {
	Uploadable
	Kind() Kind
}

// ── Attribute ─────────────────────────────────────────────────────────────────

// Attribute is a vertex attribute stream of float vectors or matrices.
type Attribute struct {
	id      ID
	typ     shader.Type
	data    []float32
	repeat  int
	dynamic bool
}

// NewAttribute creates a per-vertex attribute. data holds len/Components
// elements of typ. changesOften selects a dynamic usage hint.
func NewAttribute(typ shader.Type, data []float32, changesOften bool) *Attribute {
	return &Attribute{id: nextID(), typ: typ, data: append([]float32(nil), data...), dynamic: changesOften}
}

// NewInstancedAttribute creates a per-instance attribute whose elements
// are each held for repeatFactor consecutive instances. A repeatFactor
// below 1 is treated as 1.
func NewInstancedAttribute(typ shader.Type, data []float32, repeatFactor int, changesOften bool) *Attribute {
	a := NewAttribute(typ, data, changesOften)
	a.repeat = max(repeatFactor, 1)
	return a
}

func (a *Attribute) ID() ID             { return a.id }
func (a *Attribute) Kind() Kind         { return KindAttribute }
func (a *Attribute) Type() shader.Type  { return a.typ }
func (a *Attribute) ChangesOften() bool { return a.dynamic }

// RepeatFactor is 0 for per-vertex attributes.
func (a *Attribute) RepeatFactor() int { return a.repeat }
func (a *Attribute) Instanced() bool   { return a.repeat > 0 }

// Len is the number of elements.
func (a *Attribute) Len() int {
	if c := a.typ.Components(); c > 0 {
		return len(a.data) / c
	}
	return 0
}

// Data returns the CPU payload. It must not be modified.
func (a *Attribute) Data() []float32 { return a.data }

func (a *Attribute) String() string {
	if a.repeat > 0 {
		return fmt.Sprintf("attribute#%d(%s×%d, repeat %d)", a.id, a.typ, a.Len(), a.repeat)
	}
	return fmt.Sprintf("attribute#%d(%s×%d)", a.id, a.typ, a.Len())
}

func (a *Attribute) upload(s *Session, e *entry) error {
	buf, err := s.dev.NewBuffer(driver.BufferBindingVertices, driver.BytesView(a.data), a.dynamic)
	if err != nil {
		return err
	}
	e.buf = buf
	return nil
}

// Update replaces the payload and pushes it into the existing buffer when
// the attribute is uploaded in s. The element count may change; the
// buffer object is reused.
func (a *Attribute) Update(s *Session, data []float32) error {
	if c := a.typ.Components(); c == 0 || len(data)%c != 0 {
		return &IncompatibleUpdateError{Resource: a, Reason: fmt.Sprintf("%d values is not a whole number of %s elements", len(data), a.typ)}
	}
	a.data = append(a.data[:0], data...)
	if e := s.lookup(a); e != nil {
		e.buf.Upload(driver.BytesView(a.data))
		Logger().Debug("attribute updated", "resource", a.String(), "buffer", e.buf.Handle())
	}
	return nil
}

// ── Uniform ───────────────────────────────────────────────────────────────────

// Uniform is a shader-visible scalar, vector or matrix value, or a fixed
// length array of them. Integer and boolean values are carried as floats.
type Uniform struct {
	id     ID
	typ    shader.Type
	count  int
	values []float32
}

// NewUniform creates a single value of typ.
func NewUniform(typ shader.Type, values ...float32) *Uniform {
	return &Uniform{id: nextID(), typ: typ, values: append([]float32(nil), values...)}
}

// NewUniformArray creates an array of n values of typ.
func NewUniformArray(typ shader.Type, n int, values []float32) *Uniform {
	u := NewUniform(typ, values...)
	u.count = n
	return u
}

func (u *Uniform) ID() ID            { return u.id }
func (u *Uniform) Kind() Kind        { return KindUniform }
func (u *Uniform) Type() shader.Type { return u.typ }

// ArrayLen is 0 for non-arrays.
func (u *Uniform) ArrayLen() int { return u.count }

func (u *Uniform) Values() []float32 { return u.values }

func (u *Uniform) String() string {
	if u.count > 0 {
		return fmt.Sprintf("uniform#%d(%s[%d])", u.id, u.typ, u.count)
	}
	return fmt.Sprintf("uniform#%d(%s)", u.id, u.typ)
}

// Uniform values live in program state, so upload only records the entry.
func (u *Uniform) upload(*Session, *entry) error { return nil }

func (u *Uniform) elements() int {
	if u.count > 0 {
		return u.count
	}
	return 1
}

// Update replaces the values. The value count cannot change.
func (u *Uniform) Update(s *Session, values ...float32) error {
	if len(values) != len(u.values) {
		return &IncompatibleUpdateError{Resource: u, Reason: fmt.Sprintf("%d values, want %d", len(values), len(u.values))}
	}
	copy(u.values, values)
	return nil
}

// ── Surface ───────────────────────────────────────────────────────────────────

// Surface is a 2D texture that jobs sample and, for renderable formats,
// draw into. Row 0 of the payload is the bottom row.
type Surface struct {
	id     ID
	format driver.TextureFormat
	width  int
	height int
	filter driver.TextureFilter
	pixels []byte
}

// NewSurface creates an 8-bit RGBA surface. A nil pixels payload means
// all zeroes.
func NewSurface(width, height int, pixels []byte, filter driver.TextureFilter) *Surface {
	return &Surface{id: nextID(), format: driver.TextureFormatRGBA8, width: width, height: height, filter: filter, pixels: append([]byte(nil), pixels...)}
}

// NewFloatSurface creates a 32-bit float RGBA surface holding 4 floats
// per texel.
func NewFloatSurface(width, height int, texels []float32, filter driver.TextureFilter) *Surface {
	return &Surface{id: nextID(), format: driver.TextureFormatFloat, width: width, height: height, filter: filter, pixels: append([]byte(nil), driver.BytesView(texels)...)}
}

func (t *Surface) ID() ID                       { return t.id }
func (t *Surface) Kind() Kind                   { return KindSurface }
func (t *Surface) Format() driver.TextureFormat { return t.format }
func (t *Surface) Size() (width, height int)    { return t.width, t.height }
func (t *Surface) Filter() driver.TextureFilter { return t.filter }

func (t *Surface) String() string {
	return fmt.Sprintf("surface#%d(%dx%d %s)", t.id, t.width, t.height, t.format)
}

func (t *Surface) payload() []byte {
	if len(t.pixels) == 0 {
		return nil
	}
	return t.pixels
}

func (t *Surface) checkPayload(n int) error {
	if want := t.width * t.height * t.format.BytesPerPixel(); n != 0 && n != want {
		return fmt.Errorf("%s: payload of %d bytes, want %d", t, n, want)
	}
	return nil
}

func (t *Surface) upload(s *Session, e *entry) error {
	if t.width <= 0 || t.height <= 0 {
		return fmt.Errorf("%s: empty surface", t)
	}
	if err := t.checkPayload(len(t.pixels)); err != nil {
		return err
	}
	tex, err := s.dev.NewTexture(t.format, t.width, t.height, t.filter, t.payload())
	if err != nil {
		return err
	}
	e.tex = tex
	return nil
}

// Update replaces the pixels of an RGBA8 surface. Changing the dimensions
// requires a new surface and fails with *IncompatibleUpdateError.
func (t *Surface) Update(s *Session, width, height int, pixels []byte) error {
	return t.update(s, driver.TextureFormatRGBA8, width, height, pixels)
}

// UpdateFloat replaces the texels of a float surface.
func (t *Surface) UpdateFloat(s *Session, width, height int, texels []float32) error {
	return t.update(s, driver.TextureFormatFloat, width, height, driver.BytesView(texels))
}

func (t *Surface) update(s *Session, format driver.TextureFormat, width, height int, pixels []byte) error {
	switch {
	case format != t.format:
		return &IncompatibleUpdateError{Resource: t, Reason: fmt.Sprintf("format %s, want %s", format, t.format)}
	case width != t.width || height != t.height:
		return &IncompatibleUpdateError{Resource: t, Reason: fmt.Sprintf("size %dx%d, want %dx%d", width, height, t.width, t.height)}
	case len(pixels) != width*height*format.BytesPerPixel():
		return &IncompatibleUpdateError{Resource: t, Reason: fmt.Sprintf("payload of %d bytes", len(pixels))}
	}
	t.pixels = append(t.pixels[:0], pixels...)
	if e := s.lookup(t); e != nil {
		e.tex.Upload(t.pixels)
		Logger().Debug("surface updated", "resource", t.String(), "texture", e.tex.Handle())
	}
	return nil
}

// ── IndexList ─────────────────────────────────────────────────────────────────

// IndexList is a list of vertex indices for indexed draws.
type IndexList struct {
	id      ID
	indices []uint32
	max     uint32
}

func NewIndexList(indices []uint32) *IndexList {
	l := &IndexList{id: nextID()}
	l.set(indices)
	return l
}

func (l *IndexList) set(indices []uint32) {
	l.indices = append(l.indices[:0], indices...)
	l.max = 0
	for _, i := range l.indices {
		l.max = max(l.max, i)
	}
}

func (l *IndexList) ID() ID     { return l.id }
func (l *IndexList) Kind() Kind { return KindIndexList }
func (l *IndexList) Len() int   { return len(l.indices) }

// Max is the largest index, or 0 for an empty list.
func (l *IndexList) Max() int { return int(l.max) }

func (l *IndexList) Indices() []uint32 { return l.indices }

func (l *IndexList) String() string {
	return fmt.Sprintf("indices#%d(%d)", l.id, len(l.indices))
}

func (l *IndexList) upload(s *Session, e *entry) error {
	buf, err := s.dev.NewBuffer(driver.BufferBindingIndices, driver.BytesView(l.indices), false)
	if err != nil {
		return err
	}
	e.buf = buf
	return nil
}

// Update replaces the indices, reusing the index buffer.
func (l *IndexList) Update(s *Session, indices []uint32) error {
	l.set(indices)
	if e := s.lookup(l); e != nil {
		e.buf.Upload(driver.BytesView(l.indices))
	}
	return nil
}
