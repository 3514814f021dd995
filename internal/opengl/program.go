package opengl

import (
	"strings"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"vizgpu/driver"
	"vizgpu/shader"
)

type program struct {
	dev *Device
	id  uint32
}

func (d *Device) NewProgram(vertex, fragment string) (driver.Program, error) {
	id, err := newProgram(vertex, fragment)
	if err != nil {
		return nil, err
	}
	return &program{dev: d, id: id}, nil
}

func (p *program) AttribLocation(name string) int {
	return int(gl.GetAttribLocation(p.id, gl.Str(name+"\x00")))
}

func (p *program) UniformLocation(name string) int {
	return int(gl.GetUniformLocation(p.id, gl.Str(name+"\x00")))
}

func (p *program) Handle() uint32 { return p.id }

func (p *program) Release() {
	if p.dev.prog == p {
		p.dev.BindProgram(nil)
	}
	gl.DeleteProgram(p.id)
	p.id = 0
}

// ── Shader helpers ────────────────────────────────────────────────────────────

func newProgram(vertSrc, fragSrc string) (uint32, error) {
	vert, err := compileShader(vertSrc, gl.VERTEX_SHADER, shader.StageVertex)
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(vert)
	frag, err := compileShader(fragSrc, gl.FRAGMENT_SHADER, shader.StageFragment)
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(frag)

	prog := gl.CreateProgram()
	gl.AttachShader(prog, vert)
	gl.AttachShader(prog, frag)
	gl.LinkProgram(prog)

	var status int32
	gl.GetProgramiv(prog, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetProgramiv(prog, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetProgramInfoLog(prog, logLen, nil, gl.Str(log))
		gl.DeleteProgram(prog)
		return 0, &driver.ShaderError{Log: trimLog(log)}
	}
	gl.DetachShader(prog, vert)
	gl.DetachShader(prog, frag)
	return prog, nil
}

func compileShader(src string, shaderType uint32, stage shader.Stage) (uint32, error) {
	sh := gl.CreateShader(shaderType)
	csrc, free := gl.Strs(src + "\x00")
	gl.ShaderSource(sh, 1, csrc, nil)
	free()
	gl.CompileShader(sh)

	var status int32
	gl.GetShaderiv(sh, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(sh, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetShaderInfoLog(sh, logLen, nil, gl.Str(log))
		gl.DeleteShader(sh)
		return 0, &driver.ShaderError{Stage: stage, Log: trimLog(log)}
	}
	return sh, nil
}

func trimLog(log string) string {
	return strings.TrimSpace(strings.TrimRight(log, "\x00"))
}
