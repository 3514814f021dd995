package gpu

import (
	"errors"
	"fmt"

	"vizgpu/driver"
	"vizgpu/shader"
)

// Program is a vertex/fragment source pair and the inputs it declares.
// The signature is derived once, at construction.
type Program struct {
	id       ID
	vertex   string
	fragment string
	sig      shader.Signature
}

// NewProgram derives the input signature of a source pair. Sources the
// declaration scanner cannot interpret exactly are rejected with a
// *shader.ParseError. Precision lint findings are logged as warnings and
// kept in Signature().Warnings.
func NewProgram(vertex, fragment string) (*Program, error) {
	sig, err := shader.Parse(vertex, fragment)
	if err != nil {
		return nil, fmt.Errorf("gpu: program inputs: %w", err)
	}
	p := &Program{id: nextID(), vertex: vertex, fragment: fragment, sig: sig}
	for _, w := range sig.Warnings {
		Logger().Warn("shader lint", "program", p.String(), "warning", w)
	}
	return p, nil
}

// MustProgram is like NewProgram but panics on error. It is meant for
// programs built from constant sources.
func MustProgram(vertex, fragment string) *Program {
	p, err := NewProgram(vertex, fragment)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Program) ID() ID                      { return p.id }
func (p *Program) Signature() shader.Signature { return p.sig }
func (p *Program) VertexSource() string        { return p.vertex }
func (p *Program) FragmentSource() string      { return p.fragment }

func (p *Program) String() string {
	return fmt.Sprintf("program#%d", p.id)
}

func (p *Program) upload(s *Session, e *entry) error {
	prog, err := s.dev.NewProgram(p.vertex, p.fragment)
	if err != nil {
		var serr *driver.ShaderError
		if !errors.As(err, &serr) {
			return err
		}
		switch serr.Stage {
		case shader.StageVertex:
			return &CompileError{Stage: serr.Stage, Log: serr.Log, Source: p.vertex}
		case shader.StageFragment:
			return &CompileError{Stage: serr.Stage, Log: serr.Log, Source: p.fragment}
		}
		return &LinkError{Log: serr.Log, VertexSource: p.vertex, FragmentSource: p.fragment}
	}
	e.prog = prog
	e.locs = make(map[string]int)
	return nil
}
