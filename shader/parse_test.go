package shader

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const triangleVS = `
#version 410 core
layout(location = 0) in vec2 a_pos;
uniform float u_scale; // scales the clip-space position
out vec2 v_uv;

void main() {
    v_uv = a_pos * 0.5 + 0.5;
    gl_Position = vec4(a_pos * u_scale, 0.0, 1.0);
}
` + "\x00"

const triangleFS = `
#version 410 core
in vec2 v_uv;
uniform sampler2D u_tex;
uniform float u_scale;
out vec4 outColor;

void main() {
    outColor = texture(u_tex, v_uv) * u_scale;
}
` + "\x00"

func names(ds []Decl) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Name
	}
	return out
}

func TestParseTriangle(t *testing.T) {
	sig, err := Parse(triangleVS, triangleFS)
	require.NoError(t, err)

	assert.Equal(t, []string{"a_pos"}, names(sig.Attributes))
	assert.Equal(t, []string{"u_scale"}, names(sig.Uniforms))
	assert.Equal(t, []string{"u_tex"}, names(sig.Samplers))
	assert.Equal(t, []string{"a_pos", "u_scale", "u_tex"}, sig.Names())
	assert.Empty(t, sig.Warnings)

	d, class, ok := sig.Lookup("u_scale")
	require.True(t, ok)
	assert.Equal(t, ClassUniform, class)
	assert.Equal(t, Float, d.Type)
	assert.Equal(t, StageVertex|StageFragment, d.Stage)
}

func TestParseLegacySyntax(t *testing.T) {
	vs := `
attribute vec2 a_pos;
attribute mat4 a_model;
attribute float a_offset, a_size;
uniform mat4 u_matrix;
varying vec2 v_pos;
void main() { v_pos = a_pos; gl_Position = u_matrix * a_model * vec4(a_pos, a_offset, a_size); }
`
	fs := `
precision mediump float;
varying vec2 v_pos;
uniform vec4 u_colors[4];
void main() { gl_FragColor = u_colors[0]; }
`
	sig, err := Parse(vs, fs)
	require.NoError(t, err)
	assert.Equal(t, []string{"a_pos", "a_model", "a_offset", "a_size"}, names(sig.Attributes))
	assert.Equal(t, Mat4, sig.Attributes[1].Type)
	assert.Equal(t, []string{"u_matrix", "u_colors"}, names(sig.Uniforms))
	assert.Equal(t, 4, sig.Uniforms[1].ArrayLen)
	require.Len(t, sig.Warnings, 1)
	assert.Contains(t, sig.Warnings[0], "fragment stage only")
}

func TestParseMacroArraySize(t *testing.T) {
	vs := `
#define N_STOPS 8
#define RAMP(x) (x * 2.0)
in vec2 a_pos;
uniform float u_stops[N_STOPS];
uniform vec3 u_ramp[N_STOPS], u_tint;
void main() { gl_Position = vec4(a_pos, 0.0, 1.0); }
`
	sig, err := Parse(vs, "void main() {}")
	require.NoError(t, err)
	require.Len(t, sig.Uniforms, 3)
	assert.Equal(t, 8, sig.Uniforms[0].ArrayLen)
	assert.Equal(t, 8, sig.Uniforms[1].ArrayLen)
	assert.Equal(t, 0, sig.Uniforms[2].ArrayLen)
	assert.Equal(t, Vec3, sig.Uniforms[2].Type)
}

func TestParseIgnoresNonInputs(t *testing.T) {
	vs := `
#version 410 core
/* uniform float u_commented;
   still a comment */
struct Light { vec3 dir; float power; };
const float PI = 3.14159;
float helper(in float x);
layout(location = 0) in vec2 a_pos;
out VS_OUT { vec2 uv; } vs_out;
float helper(in float x) {
    float uniformish = x;
    return uniformish;
}
void main() {
    const vec2 pos[3] = vec2[3](vec2(-1.0), vec2(3.0, -1.0), vec2(-1.0, 3.0));
    vs_out.uv = a_pos;
    gl_Position = vec4(pos[gl_VertexID], 0.0, 1.0);
}
`
	sig, err := Parse(vs, "#version 410 core\nin VS_OUT { vec2 uv; } fs_in;\nout vec4 c;\nvoid main() { c = vec4(1.0); }")
	require.NoError(t, err)
	assert.Equal(t, []string{"a_pos"}, sig.Names())
}

func TestParseUniformInitializer(t *testing.T) {
	sig, err := Parse("uniform vec2 u_off = vec2(0.0, 1.0), u_size;\nvoid main(){}", "void main(){}")
	require.NoError(t, err)
	assert.Equal(t, []string{"u_off", "u_size"}, names(sig.Uniforms))
}

func TestParsePrecisionMismatch(t *testing.T) {
	vs := "precision highp float;\nattribute vec2 a_pos;\nvoid main(){}"
	fs := "precision mediump float;\nvoid main(){}"
	sig, err := Parse(vs, fs)
	require.NoError(t, err)
	require.Len(t, sig.Warnings, 1)
	assert.Contains(t, sig.Warnings[0], "differs between stages")
}

func TestParseQualifierPrecisionWarning(t *testing.T) {
	sig, err := Parse("attribute highp vec2 a_pos;\nvoid main(){}", "void main(){}")
	require.NoError(t, err)
	require.Len(t, sig.Warnings, 1)
	assert.Contains(t, sig.Warnings[0], "vertex stage only")
	assert.Equal(t, "highp", sig.Attributes[0].Precision)
}

func TestParseAmbiguities(t *testing.T) {
	tests := []struct {
		name     string
		vs, fs   string
		contains string
	}{
		{
			name:     "include",
			vs:       "#include \"common.glsl\"\nvoid main(){}",
			contains: "#include",
		},
		{
			name:     "conditional declaration",
			vs:       "#ifdef USE_SCALE\nuniform float u_scale;\n#endif\nvoid main(){}",
			contains: "conditional block",
		},
		{
			name:     "unterminated conditional",
			vs:       "#if 1\nvoid main(){}",
			contains: "unterminated",
		},
		{
			name:     "uniform block",
			vs:       "uniform Params { float k; };\nvoid main(){}",
			contains: "uniform block",
		},
		{
			name:     "macro type",
			vs:       "#define REAL float\nuniform REAL u_k;\nvoid main(){}",
			contains: "macro",
		},
		{
			name:     "unknown type",
			vs:       "uniform dvec2 u_k;\nvoid main(){}",
			contains: "unknown type",
		},
		{
			name:     "struct uniform",
			vs:       "struct L { float k; };\nuniform L u_light;\nvoid main(){}",
			contains: "struct type",
		},
		{
			name:     "unknown array size",
			vs:       "uniform float u_k[COUNT];\nvoid main(){}",
			contains: "not a known constant",
		},
		{
			name:     "conflicting redeclaration",
			vs:       "uniform float u_k;\nvoid main(){}",
			fs:       "uniform vec2 u_k;\nvoid main(){}",
			contains: "redeclared",
		},
		{
			name:     "attribute in fragment",
			fs:       "attribute vec2 a_pos;\nvoid main(){}",
			contains: "outside the vertex stage",
		},
		{
			name:     "unbalanced",
			vs:       "void main() {",
			contains: "unbalanced",
		},
		{
			name:     "unterminated",
			vs:       "uniform float u_k",
			contains: "unterminated",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.vs, tt.fs)
			require.Error(t, err)
			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Contains(t, perr.Msg, tt.contains)
		})
	}
}

func TestParseErrorLine(t *testing.T) {
	_, err := Parse("\n\n// comment\nuniform dvec3 u_bad;\n", "")
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, StageVertex, perr.Stage)
	assert.Equal(t, 4, perr.Line)
	assert.Equal(t, `shader: vertex:4: unknown type "dvec3"`, perr.Error())
}

func TestTypeShape(t *testing.T) {
	assert.Equal(t, 16, Mat4.Components())
	assert.Equal(t, 4, Mat4.Columns())
	assert.Equal(t, 4, Mat4.ColumnSize())
	assert.Equal(t, 3, Mat3.ColumnSize())
	assert.Equal(t, 3, Vec3.ColumnSize())
	assert.Equal(t, 1, Vec3.Columns())
	assert.True(t, Sampler2D.IsSampler())
	assert.True(t, Bool.IsInteger())
	assert.Equal(t, "vec4", Vec4.String())
}
