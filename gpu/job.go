package gpu

import (
	"fmt"
	"image"
	"maps"
	"slices"

	"vizgpu/core"
	"vizgpu/driver"
	"vizgpu/shader"
)

// Bindings maps program input names to resources. Attributes take
// *Attribute, uniforms *Uniform and samplers *Surface. Extra names are
// allowed and uploaded with the job.
type Bindings map[string]Resource

// DrawOptions selects the destination of a draw. The zero value draws to
// the display without clearing.
type DrawOptions struct {
	// Clear, if set, clears the destination before drawing.
	Clear *core.Color
	// Target, if set, is the surface drawn into instead of the display.
	Target *Surface
	// Viewport defaults to the whole target, or to the session's display
	// size when drawing to the display.
	Viewport *image.Rectangle
}

// Job is a program with a validated set of bindings and a draw shape.
type Job struct {
	prog     *Program
	bindings Bindings
	shape    DrawShape

	layouts map[*Session]*layout
}

// layout is a job's vertex array in one session, with the upload
// generations of the objects it was built from. A nil gens means the
// job changed since the last Bind.
type layout struct {
	vao  driver.VertexArray
	gens map[ID]uint64
}

// current reports whether every object in objs still has the upload l
// was bound against.
func (l *layout) current(s *Session, objs []Uploadable) bool {
	if l == nil || l.gens == nil {
		return false
	}
	for _, obj := range objs {
		if g, ok := l.gens[obj.ID()]; !ok || g != s.generation(obj) {
			return false
		}
	}
	return true
}

// NewJob checks that bindings satisfy every input of p and that shape
// fits the bound attributes. Missing or wrongly kinded inputs are all
// reported in one *MissingBindingError.
func NewJob(p *Program, bindings Bindings, shape DrawShape) (*Job, error) {
	j := &Job{prog: p, bindings: maps.Clone(bindings), shape: shape}
	if j.bindings == nil {
		j.bindings = make(Bindings)
	}
	if err := j.validate(); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *Job) Program() *Program  { return j.prog }
func (j *Job) Shape() DrawShape   { return j.shape }
func (j *Job) Bindings() Bindings { return maps.Clone(j.bindings) }

// Binding returns the resource bound to name, or nil.
func (j *Job) Binding(name string) Resource { return j.bindings[name] }

func (j *Job) String() string {
	return fmt.Sprintf("job(%s, %s)", j.prog, j.shape)
}

// ── Validation ────────────────────────────────────────────────────────────────

func (j *Job) validate() error {
	sig := j.prog.sig
	var missing []string
	for _, name := range sig.Names() {
		_, class, _ := sig.Lookup(name)
		if !satisfies(class, j.bindings[name]) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &MissingBindingError{Names: missing}
	}
	for _, name := range sig.Names() {
		d, class, _ := sig.Lookup(name)
		if err := checkBinding(d, class, j.bindings[name]); err != nil {
			return err
		}
	}
	return j.checkShape(j.shape)
}

func satisfies(class shader.Class, r Resource) bool {
	switch class {
	case shader.ClassAttribute:
		a, ok := r.(*Attribute)
		return ok && a != nil
	case shader.ClassUniform:
		u, ok := r.(*Uniform)
		return ok && u != nil
	case shader.ClassSampler:
		t, ok := r.(*Surface)
		return ok && t != nil
	}
	return false
}

func declString(d shader.Decl) string {
	if d.ArrayLen > 0 {
		return fmt.Sprintf("%s[%d]", d.Type, d.ArrayLen)
	}
	return d.Type.String()
}

func checkBinding(d shader.Decl, class shader.Class, r Resource) error {
	switch class {
	case shader.ClassAttribute:
		a := r.(*Attribute)
		switch {
		case a.typ.Components() == 0 || a.typ.IsSampler() || a.typ.IsInteger():
			return &BindingTypeError{Name: d.Name, Want: declString(d), Got: a.typ.String()}
		case a.typ.IsMatrix() || d.Type.IsMatrix():
			if a.typ != d.Type {
				return &BindingTypeError{Name: d.Name, Want: declString(d), Got: a.typ.String()}
			}
		case a.typ.Components() > d.Type.Components():
			return &BindingTypeError{Name: d.Name, Want: declString(d), Got: a.typ.String()}
		}
		if len(a.data)%a.typ.Components() != 0 {
			return fmt.Errorf("%w: %q holds %d values, not a whole number of %s", ErrInvalidShape, d.Name, len(a.data), a.typ)
		}
	case shader.ClassUniform:
		u := r.(*Uniform)
		got := u.typ.String()
		if u.count > 0 {
			got = fmt.Sprintf("%s[%d]", u.typ, u.count)
		}
		if u.typ != d.Type || u.elements() != d.Count() {
			return &BindingTypeError{Name: d.Name, Want: declString(d), Got: got}
		}
		if want := d.Type.Components() * d.Count(); len(u.values) != want {
			return &BindingTypeError{Name: d.Name, Want: fmt.Sprintf("%d values", want), Got: fmt.Sprintf("%d values", len(u.values))}
		}
	case shader.ClassSampler:
		if d.Type != shader.Sampler2D || d.ArrayLen > 0 {
			return &BindingTypeError{Name: d.Name, Want: declString(d), Got: "2D surface"}
		}
	}
	return nil
}

// checkShape verifies that every attribute holds enough elements for the
// vertices and instances shape visits.
func (j *Job) checkShape(shape DrawShape) error {
	if err := shape.check(); err != nil {
		return err
	}
	for _, d := range j.prog.sig.Attributes {
		a := j.bindings[d.Name].(*Attribute)
		if a.Instanced() {
			need := (shape.instances + a.repeat - 1) / a.repeat
			if a.Len() < need {
				return fmt.Errorf("%w: %q holds %d elements, %d instances at repeat %d read %d",
					ErrInvalidShape, d.Name, a.Len(), shape.instances, a.repeat, need)
			}
			continue
		}
		if need := shape.vertexSpan(); a.Len() < need {
			return fmt.Errorf("%w: %q holds %d elements, %s reads %d", ErrInvalidShape, d.Name, a.Len(), shape, need)
		}
	}
	return nil
}

func (j *Job) usesInstancing() bool {
	if j.shape.Instanced() {
		return true
	}
	for _, d := range j.prog.sig.Attributes {
		if j.bindings[d.Name].(*Attribute).Instanced() {
			return true
		}
	}
	return false
}

// ── Upload and bind ───────────────────────────────────────────────────────────

func (j *Job) resources() []Uploadable {
	objs := []Uploadable{j.prog}
	for _, name := range slices.Sorted(maps.Keys(j.bindings)) {
		objs = append(objs, j.bindings[name])
	}
	if j.shape.Indexed() {
		objs = append(objs, j.shape.indices)
	}
	return objs
}

// Upload ensures the program and every bound resource are uploaded in s.
func (j *Job) Upload(s *Session) error {
	for _, obj := range j.resources() {
		if err := s.EnsureUploaded(obj); err != nil {
			return err
		}
	}
	return nil
}

func (j *Job) uploadedIn(s *Session) error {
	for _, obj := range j.resources() {
		if !s.IsUploaded(obj) {
			return fmt.Errorf("%s: %s: %w", j, obj, ErrUnboundResource)
		}
	}
	return nil
}

// Bind builds the job's vertex layout and activates its program and
// inputs. It must be called after Upload and again after Rebind or
// SetShape.
func (j *Job) Bind(s *Session) error {
	if err := j.uploadedIn(s); err != nil {
		return err
	}
	if j.usesInstancing() && !s.Supports(driver.FeatureInstancing) {
		return fmt.Errorf("%s: instancing: %w", j, ErrCapabilityUnsupported)
	}
	if units := s.Caps().MaxTextureUnits; units > 0 && len(j.prog.sig.Samplers) > units {
		return fmt.Errorf("%s: %d samplers, device has %d units: %w", j, len(j.prog.sig.Samplers), units, ErrCapabilityUnsupported)
	}
	l := j.layouts[s]
	if l == nil {
		vao, err := s.dev.NewVertexArray()
		if err != nil {
			return fmt.Errorf("%s: vertex layout: %w", j, err)
		}
		l = &layout{vao: vao}
		if j.layouts == nil {
			j.layouts = make(map[*Session]*layout)
		}
		j.layouts[s] = l
	}

	for _, d := range j.prog.sig.Attributes {
		loc, err := s.LocationOf(j.prog, d.Name)
		if err != nil {
			return err
		}
		if loc < 0 {
			// removed by the linker
			continue
		}
		a := j.bindings[d.Name].(*Attribute)
		buf := s.lookup(a).buf
		stride := a.typ.Components() * 4
		size := a.typ.ColumnSize()
		for c := 0; c < a.typ.Columns(); c++ {
			l.vao.Attrib(loc+c, buf, size, stride, c*size*4, a.repeat)
		}
	}
	if j.shape.Indexed() {
		l.vao.Indices(s.lookup(j.shape.indices).buf)
	}
	objs := j.resources()
	l.gens = make(map[ID]uint64, len(objs))
	for _, obj := range objs {
		l.gens[obj.ID()] = s.generation(obj)
	}
	Logger().Debug("bound", "job", j.String(), "vao", l.vao.Handle())
	return j.activate(s, l)
}

// activate makes the job's program, layout, uniforms and textures current.
func (j *Job) activate(s *Session, l *layout) error {
	dev := s.dev
	dev.BindProgram(s.lookup(j.prog).prog)
	dev.BindVertexArray(l.vao)
	for _, d := range j.prog.sig.Uniforms {
		loc, err := s.LocationOf(j.prog, d.Name)
		if err != nil {
			return err
		}
		if loc < 0 {
			continue
		}
		dev.SetUniform(loc, d.Type, d.Count(), j.bindings[d.Name].(*Uniform).values)
	}
	for unit, d := range j.prog.sig.Samplers {
		loc, err := s.LocationOf(j.prog, d.Name)
		if err != nil {
			return err
		}
		dev.BindTexture(unit, s.lookup(j.bindings[d.Name]).tex)
		if loc >= 0 {
			dev.SetUniform(loc, d.Type, 1, []float32{float32(unit)})
		}
	}
	return nil
}

// Release frees the job's vertex layout in s. Resources stay uploaded.
func (j *Job) Release(s *Session) {
	if l := j.layouts[s]; l != nil {
		l.vao.Release()
		delete(j.layouts, s)
	}
}

// invalidate forces a Bind in every session before the next draw.
func (j *Job) invalidate() {
	for _, l := range j.layouts {
		l.gens = nil
	}
}

// ── Draw ──────────────────────────────────────────────────────────────────────

// Draw selects the destination, optionally clears it and issues the draw.
func (j *Job) Draw(s *Session, opts DrawOptions) error {
	if err := j.uploadedIn(s); err != nil {
		return err
	}
	l := j.layouts[s]
	if !l.current(s, j.resources()) {
		return fmt.Errorf("%s: draw before bind: %w", j, ErrUnboundResource)
	}
	if err := j.checkShape(j.shape); err != nil {
		return fmt.Errorf("%s: %w", j, err)
	}

	w, h := s.DisplaySize()
	if t := opts.Target; t != nil {
		for _, d := range j.prog.sig.Samplers {
			if in, ok := j.bindings[d.Name].(*Surface); ok && in == t {
				return fmt.Errorf("%s: %q reads %s: %w", j, d.Name, t, ErrFeedbackLoop)
			}
		}
		fbo, err := s.framebuffer(t)
		if err != nil {
			return fmt.Errorf("%s: %w", j, err)
		}
		s.dev.BindFramebuffer(fbo)
		w, h = t.Size()
	} else {
		s.dev.BindFramebuffer(nil)
	}
	switch {
	case opts.Viewport != nil:
		vp := *opts.Viewport
		s.dev.Viewport(vp.Min.X, vp.Min.Y, vp.Dx(), vp.Dy())
	case w > 0 && h > 0:
		s.dev.Viewport(0, 0, w, h)
	}
	if c := opts.Clear; c != nil {
		s.dev.Clear(c.R, c.G, c.B, c.A)
	}
	if err := j.activate(s, l); err != nil {
		return err
	}
	j.shape.issue(s.dev)
	return nil
}

// ── Updates ───────────────────────────────────────────────────────────────────

func (j *Job) binding(name string, kind Kind) (Resource, error) {
	r, ok := j.bindings[name]
	if !ok {
		return nil, &UnknownBindingError{Name: name}
	}
	if r.Kind() != kind {
		return nil, &BindingTypeError{Name: name, Want: kind.String(), Got: r.Kind().String()}
	}
	return r, nil
}

// UpdateAttribute replaces the payload of the attribute bound to name.
func (j *Job) UpdateAttribute(s *Session, name string, data []float32) error {
	r, err := j.binding(name, KindAttribute)
	if err != nil {
		return err
	}
	return r.(*Attribute).Update(s, data)
}

// UpdateUniform replaces the values of the uniform bound to name.
func (j *Job) UpdateUniform(s *Session, name string, values ...float32) error {
	r, err := j.binding(name, KindUniform)
	if err != nil {
		return err
	}
	return r.(*Uniform).Update(s, values...)
}

// UpdateSurface replaces the pixels of the RGBA8 surface bound to name.
func (j *Job) UpdateSurface(s *Session, name string, width, height int, pixels []byte) error {
	r, err := j.binding(name, KindSurface)
	if err != nil {
		return err
	}
	return r.(*Surface).Update(s, width, height, pixels)
}

// UpdateFloatSurface replaces the texels of the float surface bound to
// name.
func (j *Job) UpdateFloatSurface(s *Session, name string, width, height int, texels []float32) error {
	r, err := j.binding(name, KindSurface)
	if err != nil {
		return err
	}
	return r.(*Surface).UpdateFloat(s, width, height, texels)
}

// UpdateIndices replaces the index list of an indexed job.
func (j *Job) UpdateIndices(s *Session, indices []uint32) error {
	if !j.shape.Indexed() {
		return fmt.Errorf("%s: %w: not indexed", j, ErrInvalidShape)
	}
	return j.shape.indices.Update(s, indices)
}

// Rebind replaces the resource bound to an existing name with another of
// the same kind. The job must be bound again before the next draw.
func (j *Job) Rebind(name string, r Resource) error {
	old, ok := j.bindings[name]
	if !ok {
		return &UnknownBindingError{Name: name}
	}
	if r == nil || r.Kind() != old.Kind() {
		got := "nil"
		if r != nil {
			got = r.Kind().String()
		}
		return &BindingTypeError{Name: name, Want: old.Kind().String(), Got: got}
	}
	if d, class, ok := j.prog.sig.Lookup(name); ok {
		if !satisfies(class, r) {
			return &BindingTypeError{Name: name, Want: class.String(), Got: r.Kind().String()}
		}
		if err := checkBinding(d, class, r); err != nil {
			return err
		}
	}
	j.bindings[name] = r
	if r.Kind() == KindAttribute {
		if err := j.checkShape(j.shape); err != nil {
			j.bindings[name] = old
			return err
		}
	}
	if old != r {
		j.invalidate()
	}
	return nil
}

// SetShape replaces the draw shape. It is validated like the shape given
// to NewJob. The job must be bound again before the next draw.
func (j *Job) SetShape(shape DrawShape) error {
	if err := j.checkShape(shape); err != nil {
		return err
	}
	j.shape = shape
	j.invalidate()
	return nil
}
