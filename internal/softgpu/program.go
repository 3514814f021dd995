package softgpu

import (
	"strings"

	"vizgpu/driver"
	"vizgpu/shader"
)

// VertexFunc runs once per vertex and instance. It returns the clip-space
// position and the varyings to interpolate.
type VertexFunc func(e *Env) (pos [4]float32, varyings []float32)

// FragmentFunc returns the color of one covered pixel.
type FragmentFunc func(e *Env, varyings []float32) [4]float32

// Shaders is the Go behavior of a GLSL source pair.
type Shaders struct {
	Vertex   VertexFunc
	Fragment FragmentFunc
}

// Register binds Go shader functions to a source pair. Programs compiled
// from unregistered sources place the first attribute at its xy position
// and output u_color, or white when the program has no u_color.
func (d *Device) Register(vertex, fragment string, s Shaders) {
	d.registered[[2]string{vertex, fragment}] = s
}

type program struct {
	dev      *Device
	handle   uint32
	shaders  Shaders
	attribs  map[string]int
	uniforms map[int][]float32
	ulocs    map[string]int
	decls    map[string]shader.Decl
}

func (d *Device) NewProgram(vertex, fragment string) (driver.Program, error) {
	for _, st := range []struct {
		stage shader.Stage
		src   string
	}{{shader.StageVertex, vertex}, {shader.StageFragment, fragment}} {
		if !strings.Contains(st.src, "void main") {
			return nil, &driver.ShaderError{Stage: st.stage, Log: "0:1: error: missing entry point main"}
		}
	}
	if d.failLink != "" {
		log := d.failLink
		d.failLink = ""
		return nil, &driver.ShaderError{Log: log}
	}
	sig, err := shader.Parse(vertex, fragment)
	if err != nil {
		return nil, &driver.ShaderError{Stage: shader.StageVertex, Log: err.Error()}
	}

	d.stats.Programs++
	p := &program{
		dev:      d,
		handle:   d.handle(),
		attribs:  make(map[string]int),
		uniforms: make(map[int][]float32),
		ulocs:    make(map[string]int),
		decls:    make(map[string]shader.Decl),
	}
	loc := 0
	for _, a := range sig.Attributes {
		p.attribs[a.Name] = loc
		p.decls[a.Name] = a
		loc += a.Type.Columns()
	}
	for i, u := range append(append([]shader.Decl(nil), sig.Uniforms...), sig.Samplers...) {
		p.ulocs[u.Name] = i
		p.decls[u.Name] = u
	}
	if s, ok := d.registered[[2]string{vertex, fragment}]; ok {
		p.shaders = s
	} else {
		p.shaders = defaultShaders(sig)
	}
	return p, nil
}

func (p *program) AttribLocation(name string) int {
	if loc, ok := p.attribs[name]; ok {
		return loc
	}
	return -1
}

func (p *program) UniformLocation(name string) int {
	if loc, ok := p.ulocs[name]; ok {
		return loc
	}
	return -1
}

func (p *program) Handle() uint32 { return p.handle }
func (p *program) Release()       { p.dev.stats.Released++ }

func defaultShaders(sig shader.Signature) Shaders {
	var posName string
	if len(sig.Attributes) > 0 {
		posName = sig.Attributes[0].Name
	}
	return Shaders{
		Vertex: func(e *Env) ([4]float32, []float32) {
			pos := [4]float32{0, 0, 0, 1}
			copy(pos[:], e.Attrib(posName))
			return pos, nil
		},
		Fragment: func(e *Env, _ []float32) [4]float32 {
			if c := e.Uniform("u_color"); len(c) == 4 {
				return [4]float32{c[0], c[1], c[2], c[3]}
			}
			return [4]float32{1, 1, 1, 1}
		},
	}
}

// Env gives shader functions access to program inputs.
type Env struct {
	VertexID   int
	InstanceID int
	// FragCoord is the window position of the pixel center in fragment
	// functions.
	FragCoord [2]float32

	prog    *program
	attribs map[int][]float32
}

// Attrib returns the current value of a vertex attribute. Matrix
// attributes are returned column by column.
func (e *Env) Attrib(name string) []float32 {
	d, ok := e.prog.decls[name]
	if !ok || e.attribs == nil {
		return nil
	}
	loc := e.prog.attribs[name]
	var out []float32
	for c := 0; c < d.Type.Columns(); c++ {
		out = append(out, e.attribs[loc+c]...)
	}
	return out
}

// Uniform returns the values last set for a uniform.
func (e *Env) Uniform(name string) []float32 {
	loc, ok := e.prog.ulocs[name]
	if !ok {
		return nil
	}
	return e.prog.uniforms[loc]
}

// Float returns the first value of a uniform, or 0.
func (e *Env) Float(name string) float32 {
	if v := e.Uniform(name); len(v) > 0 {
		return v[0]
	}
	return 0
}

// Sample reads the texture bound to the unit a sampler uniform selects.
func (e *Env) Sample(name string, u, v float32) [4]float32 {
	unit := int(e.Float(name))
	t, ok := e.prog.dev.units[unit]
	if !ok || t.data == nil {
		return [4]float32{0, 0, 0, 1}
	}
	return t.sample(u, v)
}

// Texel reads the texel at integer coordinates of a sampler's texture.
func (e *Env) Texel(name string, x, y int) [4]float32 {
	unit := int(e.Float(name))
	t, ok := e.prog.dev.units[unit]
	if !ok || t.data == nil {
		return [4]float32{0, 0, 0, 1}
	}
	return t.texel(x, y)
}
