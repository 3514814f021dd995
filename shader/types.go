package shader

// Type is a GLSL value type that can appear as a program input.
type Type int

const (
	TypeInvalid Type = iota
	Float
	Vec2
	Vec3
	Vec4
	Int
	IVec2
	IVec3
	IVec4
	Bool
	Mat2
	Mat3
	Mat4
	Sampler2D
	SamplerCube
)

var typeNames = map[string]Type{
	"float":       Float,
	"vec2":        Vec2,
	"vec3":        Vec3,
	"vec4":        Vec4,
	"int":         Int,
	"ivec2":       IVec2,
	"ivec3":       IVec3,
	"ivec4":       IVec4,
	"bool":        Bool,
	"mat2":        Mat2,
	"mat3":        Mat3,
	"mat4":        Mat4,
	"sampler2D":   Sampler2D,
	"samplerCube": SamplerCube,
}

// LookupType returns the Type for a GLSL type keyword.
func LookupType(name string) (Type, bool) {
	t, ok := typeNames[name]
	return t, ok
}

func (t Type) String() string {
	for name, v := range typeNames {
		if v == t {
			return name
		}
	}
	return "invalid"
}

// Components is the number of scalars in one value of t.
func (t Type) Components() int {
	switch t {
	case Float, Int, Bool, Sampler2D, SamplerCube:
		return 1
	case Vec2, IVec2:
		return 2
	case Vec3, IVec3:
		return 3
	case Vec4, IVec4, Mat2:
		return 4
	case Mat3:
		return 9
	case Mat4:
		return 16
	}
	return 0
}

// Columns is the number of attribute locations a value of t occupies.
// Matrices take one location per column.
func (t Type) Columns() int {
	switch t {
	case Mat2:
		return 2
	case Mat3:
		return 3
	case Mat4:
		return 4
	case TypeInvalid:
		return 0
	}
	return 1
}

// ColumnSize is the number of scalars in one attribute location of t.
func (t Type) ColumnSize() int {
	if c := t.Columns(); c > 0 {
		return t.Components() / c
	}
	return 0
}

func (t Type) IsSampler() bool { return t == Sampler2D || t == SamplerCube }

func (t Type) IsMatrix() bool { return t == Mat2 || t == Mat3 || t == Mat4 }

// IsInteger reports whether values of t are set through integer uniform calls.
func (t Type) IsInteger() bool {
	switch t {
	case Int, IVec2, IVec3, IVec4, Bool:
		return true
	}
	return false
}

// Stage identifies a shader stage. Merged declarations carry both bits.
type Stage uint8

const (
	StageVertex Stage = 1 << iota
	StageFragment
)

func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	case StageVertex | StageFragment:
		return "vertex+fragment"
	}
	return "unknown"
}

// Class is the kind of input a declaration binds to.
type Class int

const (
	ClassAttribute Class = iota
	ClassUniform
	ClassSampler
)

func (c Class) String() string {
	switch c {
	case ClassAttribute:
		return "attribute"
	case ClassUniform:
		return "uniform"
	case ClassSampler:
		return "sampler"
	}
	return "unknown"
}

// Decl is one named program input.
type Decl struct {
	Name      string
	Type      Type
	ArrayLen  int // 0 for non-arrays
	Precision string
	Stage     Stage
	Line      int
}

// Count is the number of elements the declaration holds.
func (d Decl) Count() int {
	if d.ArrayLen > 0 {
		return d.ArrayLen
	}
	return 1
}

// Signature is the set of inputs a program statically requires, in
// declaration order.
type Signature struct {
	Attributes []Decl
	Uniforms   []Decl
	Samplers   []Decl
	Warnings   []string
}

// Names returns every input name: attributes, then uniforms, then samplers.
func (s Signature) Names() []string {
	names := make([]string, 0, s.Len())
	for _, group := range [][]Decl{s.Attributes, s.Uniforms, s.Samplers} {
		for _, d := range group {
			names = append(names, d.Name)
		}
	}
	return names
}

func (s Signature) Len() int {
	return len(s.Attributes) + len(s.Uniforms) + len(s.Samplers)
}

// Lookup finds a declaration by name.
func (s Signature) Lookup(name string) (Decl, Class, bool) {
	for i, group := range [][]Decl{s.Attributes, s.Uniforms, s.Samplers} {
		for _, d := range group {
			if d.Name == name {
				return d, Class(i), true
			}
		}
	}
	return Decl{}, 0, false
}
