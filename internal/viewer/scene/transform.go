package scene

import (
	"github.com/go-gl/mathgl/mgl64"
)

// ============================================================
// Transform
// ============================================================

// Transform хранит положение, поворот (углы Эйлера в радианах, порядок XYZ) и масштаб узла.
type Transform struct {
	Position mgl64.Vec3
	Rotation mgl64.Vec3
	Scale    mgl64.Vec3
}

// Identity возвращает нейтральную трансформацию.
func Identity() Transform {
	return Transform{Scale: mgl64.Vec3{1, 1, 1}}
}

// Matrix собирает локальную матрицу T * R * S.
func (t Transform) Matrix() mgl64.Mat4 {
	translate := mgl64.Translate3D(t.Position[0], t.Position[1], t.Position[2])
	rotate := mgl64.AnglesToQuat(t.Rotation[0], t.Rotation[1], t.Rotation[2], mgl64.XYZ).Mat4()
	scale := mgl64.Scale3D(t.Scale[0], t.Scale[1], t.Scale[2])
	return translate.Mul4(rotate).Mul4(scale)
}

// ============================================================
// Box3
// ============================================================

// Box3: axis-aligned bounding box. Нулевое значение считается пустым.
type Box3 struct {
	Min, Max mgl64.Vec3
	valid    bool
}

// NewBox3 строит box по двум углам.
func NewBox3(min, max mgl64.Vec3) Box3 {
	b := Box3{}
	b = b.Expand(min)
	return b.Expand(max)
}

func (b Box3) Empty() bool {
	return !b.valid
}

// Expand расширяет box так, чтобы он содержал точку p.
func (b Box3) Expand(p mgl64.Vec3) Box3 {
	if !b.valid {
		return Box3{Min: p, Max: p, valid: true}
	}
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] {
			b.Min[i] = p[i]
		}
		if p[i] > b.Max[i] {
			b.Max[i] = p[i]
		}
	}
	return b
}

func (b Box3) Union(o Box3) Box3 {
	if !o.valid {
		return b
	}
	return b.Expand(o.Min).Expand(o.Max)
}

func (b Box3) Size() mgl64.Vec3 {
	if !b.valid {
		return mgl64.Vec3{}
	}
	return b.Max.Sub(b.Min)
}

func (b Box3) Center() mgl64.Vec3 {
	if !b.valid {
		return mgl64.Vec3{}
	}
	return b.Min.Add(b.Max).Mul(0.5)
}

// MaxDimension возвращает наибольшую сторону box.
func (b Box3) MaxDimension() float64 {
	size := b.Size()
	longest := size[0]
	if size[1] > longest {
		longest = size[1]
	}
	if size[2] > longest {
		longest = size[2]
	}
	return longest
}

// Apply переводит box в другую систему координат (по восьми углам).
func (b Box3) Apply(m mgl64.Mat4) Box3 {
	if !b.valid {
		return b
	}
	out := Box3{}
	for i := 0; i < 8; i++ {
		corner := mgl64.Vec3{b.Min[0], b.Min[1], b.Min[2]}
		if i&1 != 0 {
			corner[0] = b.Max[0]
		}
		if i&2 != 0 {
			corner[1] = b.Max[1]
		}
		if i&4 != 0 {
			corner[2] = b.Max[2]
		}
		out = out.Expand(m.Mul4x1(corner.Vec4(1)).Vec3())
	}
	return out
}
