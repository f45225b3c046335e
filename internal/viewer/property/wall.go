package property

import (
	"github.com/go-gl/mathgl/mgl64"

	"property-viewer/internal/viewer/scene"
)

// ============================================================
// Wall
// ============================================================

const (
	DefaultWallHeight = 2.5
	WallThickness     = 0.1
)

// Wall: стена комнаты. Геометрия общая для всех стен (единичный куб из пула),
// у экземпляра только своя трансформация.
type Wall struct {
	width, height, depth float64
	node                 *scene.Node
}

// NewWall создаёт стену заданных размеров.
func NewWall(pool *scene.Pool, width, height, depth float64) (*Wall, error) {
	res, err := pool.Get(scene.KindWallBox)
	if err != nil {
		return nil, err
	}
	return newWall(res, width, height, depth), nil
}

func newWall(res *scene.Resource, width, height, depth float64) *Wall {
	node := scene.NewMesh("wall", res)
	node.Transform.Scale = mgl64.Vec3{width, height, depth}
	return &Wall{width: width, height: height, depth: depth, node: node}
}

func (w *Wall) Width() float64  { return w.width }
func (w *Wall) Height() float64 { return w.height }
func (w *Wall) Depth() float64  { return w.depth }

func (w *Wall) Kind() Kind { return KindWall }

func (w *Wall) Root() *scene.Node { return w.node }

// ResourceHandle возвращает общий ресурс стены.
func (w *Wall) ResourceHandle() *scene.Resource { return w.node.Resource }

func (w *Wall) Clone() *Wall {
	return &Wall{width: w.width, height: w.height, depth: w.depth, node: w.node.Clone()}
}

func (w *Wall) CloneEntity() Entity { return w.Clone() }

// Dispose ничего не освобождает: ресурс стены принадлежит пулу.
func (w *Wall) Dispose() {}

func (w *Wall) sealed() {}
