package gpu

import (
	"fmt"
	"slices"

	"vizgpu/driver"
	"vizgpu/shader"
)

// entry is the session's record of one uploaded object. Exactly one of
// the handle fields is set, except for uniforms which hold none.
type entry struct {
	obj  Uploadable
	buf  driver.Buffer
	tex  driver.Texture
	fbo  driver.Framebuffer
	prog driver.Program
	locs map[string]int
	// gen is unique per upload, so a later upload of the same object is
	// distinguishable from the one a vertex layout was built against.
	gen uint64
	// err is a permanent upload failure.
	err error
}

func (e *entry) release() {
	if e.fbo != nil {
		e.fbo.Release()
	}
	if e.buf != nil {
		e.buf.Release()
	}
	if e.tex != nil {
		e.tex.Release()
	}
	if e.prog != nil {
		e.prog.Release()
	}
}

// SessionStats counts uploads and releases performed by a session.
type SessionStats struct {
	Uploads  int
	Failures int
	Releases int
	Live     int
}

// Session is the upload cache for one device. It owns every device object
// created through it, keyed by resource ID; Release frees one and Close
// frees all. A Session must only be used from the goroutine that owns the
// device.
type Session struct {
	dev     driver.Device
	entries map[ID]*entry
	stats   SessionStats
	gen     uint64

	caps    *driver.Caps
	exts    map[string]bool
	display [2]int
}

// NewSession wraps a device. The device must outlive the session.
func NewSession(dev driver.Device) *Session {
	s := &Session{dev: dev, entries: make(map[ID]*entry)}
	Logger().Info("session created", "device", dev.Info().String())
	return s
}

func (s *Session) Device() driver.Device { return s.dev }

// EnsureUploaded uploads obj unless this session already has. A failed
// program upload is remembered and returned again; it is never retried.
func (s *Session) EnsureUploaded(obj Uploadable) error {
	if e, ok := s.entries[obj.ID()]; ok {
		return e.err
	}
	e := &entry{obj: obj}
	if err := obj.upload(s, e); err != nil {
		err = fmt.Errorf("gpu: upload %s: %w", obj, err)
		s.stats.Failures++
		if _, isProgram := obj.(*Program); isProgram {
			e.err = err
			s.entries[obj.ID()] = e
		}
		return err
	}
	s.gen++
	e.gen = s.gen
	s.entries[obj.ID()] = e
	s.stats.Uploads++
	s.stats.Live++
	Logger().Debug("uploaded", "object", obj.String())
	return nil
}

// IsUploaded reports whether obj has a valid upload in this session.
func (s *Session) IsUploaded(obj Uploadable) bool {
	return s.lookup(obj) != nil
}

// generation returns the upload generation of obj, or 0 if it has no
// valid upload.
func (s *Session) generation(obj Uploadable) uint64 {
	if e := s.lookup(obj); e != nil {
		return e.gen
	}
	return 0
}

func (s *Session) lookup(obj Uploadable) *entry {
	if s == nil {
		return nil
	}
	e, ok := s.entries[obj.ID()]
	if !ok || e.err != nil {
		return nil
	}
	return e
}

// Release frees the device objects of obj and forgets its upload. Jobs
// that still reference obj fail with ErrUnboundResource until it is
// uploaded again. Releasing an object that is not uploaded is a no-op.
func (s *Session) Release(obj Uploadable) {
	e, ok := s.entries[obj.ID()]
	if !ok {
		return
	}
	delete(s.entries, obj.ID())
	if e.err != nil {
		return
	}
	e.release()
	s.stats.Releases++
	s.stats.Live--
	Logger().Debug("released", "object", obj.String())
}

// Close releases every object the session uploaded.
func (s *Session) Close() {
	for _, e := range s.entries {
		s.Release(e.obj)
	}
}

func (s *Session) Stats() SessionStats { return s.stats }

// ── Capabilities ──────────────────────────────────────────────────────────────

// Caps returns the device capabilities. They are queried once per session.
func (s *Session) Caps() driver.Caps {
	if s.caps == nil {
		c := s.dev.Caps()
		s.caps = &c
		s.exts = make(map[string]bool, len(c.Extensions))
		for _, ext := range c.Extensions {
			s.exts[ext] = true
		}
	}
	return *s.caps
}

// Supports reports whether the device has every feature in f.
func (s *Session) Supports(f driver.Features) bool {
	return s.Caps().Features.Has(f)
}

// HasExtension reports whether the device advertises the named extension.
func (s *Session) HasExtension(name string) bool {
	s.Caps()
	return s.exts[name]
}

// Extensions returns the advertised extensions, sorted.
func (s *Session) Extensions() []string {
	exts := slices.Clone(s.Caps().Extensions)
	slices.Sort(exts)
	return exts
}

// Debug returns a snapshot of the device bindings. It does not change any
// state.
func (s *Session) Debug() driver.DebugState {
	return s.dev.DebugState()
}

// SetDisplaySize records the size of the default framebuffer. Draws to the
// display use it as their viewport when none is given.
func (s *Session) SetDisplaySize(width, height int) {
	s.display = [2]int{width, height}
}

func (s *Session) DisplaySize() (width, height int) {
	return s.display[0], s.display[1]
}

// ── Lookups ───────────────────────────────────────────────────────────────────

// LocationOf resolves the device slot of a program input. Results are
// memoized per session. It returns -1 for inputs the linked program does
// not use.
func (s *Session) LocationOf(p *Program, name string) (int, error) {
	e := s.lookup(p)
	if e == nil {
		return 0, fmt.Errorf("%s location of %q: %w", p, name, ErrUnboundResource)
	}
	if loc, ok := e.locs[name]; ok {
		return loc, nil
	}
	_, class, ok := p.sig.Lookup(name)
	if !ok {
		return 0, &UnknownBindingError{Name: name}
	}
	var loc int
	if class == shader.ClassAttribute {
		loc = e.prog.AttribLocation(name)
	} else {
		loc = e.prog.UniformLocation(name)
	}
	e.locs[name] = loc
	return loc, nil
}

// framebuffer returns the draw destination for a surface, creating it on
// first use.
func (s *Session) framebuffer(t *Surface) (driver.Framebuffer, error) {
	if t.format == driver.TextureFormatFloat && !s.Supports(driver.FeatureFloatRenderTargets) {
		return nil, fmt.Errorf("%s as draw target: %w", t, ErrCapabilityUnsupported)
	}
	if err := s.EnsureUploaded(t); err != nil {
		return nil, err
	}
	e := s.lookup(t)
	if e.fbo == nil {
		fbo, err := s.dev.NewFramebuffer(e.tex)
		if err != nil {
			return nil, fmt.Errorf("%s as draw target: %w", t, err)
		}
		e.fbo = fbo
	}
	return e.fbo, nil
}
