package scene

import (
	"errors"

	"github.com/go-gl/mathgl/mgl64"
)

// ErrDegenerateAsset: у модели нулевой или пустой bounding box.
var ErrDegenerateAsset = errors.New("asset has empty bounds")

// Normalized: результат нормализации загруженной модели.
type Normalized struct {
	// Node: обёртка с равномерным масштабом; модель лежит в ней дочерним узлом.
	Node        *Node
	ScaleFactor float64
	// Center: центр исходного bounding box модели.
	Center mgl64.Vec3
	Size   mgl64.Vec3
}

// Normalize переносит начало координат модели в центр её bounding box и
// приводит наибольшую сторону к единице. Модель становится ребёнком новой
// обёртки с масштабом 1/max(size); собственный масштаб мебели применяется
// потом поверх обёртки.
func Normalize(model *Node) (Normalized, error) {
	box := model.Bounds().Apply(model.Transform.Matrix())
	if box.Empty() {
		return Normalized{}, ErrDegenerateAsset
	}
	longest := box.MaxDimension()
	if longest <= 0 {
		return Normalized{}, ErrDegenerateAsset
	}

	center := box.Center()
	model.Transform.Position = model.Transform.Position.Sub(center)

	factor := 1 / longest
	wrapper := NewNode("asset")
	wrapper.Transform.Scale = mgl64.Vec3{factor, factor, factor}
	wrapper.Add(model)

	return Normalized{
		Node:        wrapper,
		ScaleFactor: factor,
		Center:      center,
		Size:        box.Size(),
	}, nil
}
