package math

import "github.com/chewxy/math32"

// Mat4 is a 4x4 matrix stored as four columns, the layout shader
// uniforms expect.
type Mat4 [4][4]float32

func Mat4Identity() Mat4 {
	return Mat4{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

func (m Mat4) Mul(other Mat4) Mat4 {
	var result Mat4
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			for k := 0; k < 4; k++ {
				result[i][j] += m[i][k] * other[k][j]
			}
		}
	}
	return result
}

func (m Mat4) MulVec(v Vec4) Vec4 {
	return v.MulMat(m)
}

// Apply transforms a 2D point, z = 0 and w = 1.
func (m Mat4) Apply(p Vec2) Vec2 {
	r := m.MulVec(Vec4{X: p.X, Y: p.Y, W: 1})
	return Vec2{X: r.X, Y: r.Y}
}

// Elems returns the matrix column by column as a uniform payload.
func (m Mat4) Elems() []float32 {
	out := make([]float32, 0, 16)
	for _, col := range m {
		out = append(out, col[:]...)
	}
	return out
}

func Mat4Translation(translation Vec3) Mat4 {
	m := Mat4Identity()
	m[3][0] = translation.X
	m[3][1] = translation.Y
	m[3][2] = translation.Z
	return m
}

func Mat4Scale(scale Vec3) Mat4 {
	m := Mat4Identity()
	m[0][0] = scale.X
	m[1][1] = scale.Y
	m[2][2] = scale.Z
	return m
}

func Mat4RotationZ(angle float32) Mat4 {
	s, c := math32.Sincos(angle)
	return Mat4{
		{c, s, 0, 0},
		{-s, c, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

func Mat4Orthographic(left, right, bottom, top, near, far float32) Mat4 {
	m := Mat4Identity()
	m[0][0] = 2 / (right - left)
	m[1][1] = 2 / (top - bottom)
	m[2][2] = -2 / (far - near)
	m[3][0] = -(right + left) / (right - left)
	m[3][1] = -(top + bottom) / (top - bottom)
	m[3][2] = -(far + near) / (far - near)
	return m
}

// Mat4DataToClip maps the data rectangle r onto clip space [-1, 1]².
func Mat4DataToClip(r Rect) Mat4 {
	return Mat4Orthographic(r.Min.X, r.Max.X, r.Min.Y, r.Max.Y, -1, 1)
}

// Mat4TRS2D scales, rotates about z, then translates a 2D point.
func Mat4TRS2D(translation Vec2, angle float32, scale Vec2) Mat4 {
	return Mat4Scale(Vec3{scale.X, scale.Y, 1}).
		Mul(Mat4RotationZ(angle)).
		Mul(Mat4Translation(Vec3{translation.X, translation.Y, 0}))
}
