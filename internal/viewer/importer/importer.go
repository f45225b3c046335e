package importer

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"

	"property-viewer/internal/viewer/scene"
)

const (
	KindOpening scene.Kind = "import.opening-box"
	KindFloor   scene.Kind = "import.floor"

	defaultWallHeight    = 300.0
	defaultWallThickness = 10.0
	defaultHoleWidth     = 80.0
	defaultItemSize      = 100.0
	floorThickness       = 0.02
)

var ErrEmptyScene = errors.New("planner scene has no geometry")

// ============================================================
// Imported
// ============================================================

// Stats описывает, что удалось построить из сцены.
type Stats struct {
	Walls    int      `json:"walls"`
	Openings int      `json:"openings"`
	Floors   int      `json:"floors"`
	Items    int      `json:"items"`
	Skipped  []string `json:"skipped,omitempty"`
}

// Imported: готовое визуальное дерево без мастеров и клонов.
// Владеет геометрией полов; общие ресурсы пула не трогает.
type Imported struct {
	Layer string
	Stats Stats

	root     *scene.Node
	disposed atomic.Bool
}

var _ scene.Viewable = (*Imported)(nil)

func (im *Imported) Root() *scene.Node { return im.root }

func (im *Imported) Dispose() {
	if !im.disposed.CompareAndSwap(false, true) {
		return
	}
	im.root.ReleaseResources()
	im.root.Detach()
}

func (im *Imported) Disposed() bool { return im.disposed.Load() }

// ============================================================
// Builder
// ============================================================

// Importer строит 3D-дерево из плоской сцены планировщика.
type Importer struct {
	pool *scene.Pool
}

func New(pool *scene.Pool) *Importer {
	pool.Register(KindOpening, func() (*scene.Resource, error) {
		return scene.NewResource(KindOpening, scene.UnitBox(), &scene.Material{Name: "opening", Color: [4]float32{0.55, 0.75, 0.95, 0.6}}), nil
	})
	return &Importer{pool: pool}
}

// Import собирает выбранный слой сцены. Единицы переводятся в метры,
// ось Y плана становится осью Z сцены.
func (i *Importer) Import(s *Scene) (*Imported, error) {
	layer, err := pickLayer(s)
	if err != nil {
		return nil, err
	}
	unit, err := unitScale(s.Unit)
	if err != nil {
		return nil, err
	}

	b := &build{pool: i.pool, unit: unit, layer: layer}
	name := layer.Name
	if name == "" {
		name = layer.ID
	}
	root := scene.NewNode(name)
	root.Transform.Position = mgl64.Vec3{0, layer.Altitude * unit, 0}

	walls := scene.NewNode("walls")
	openings := scene.NewNode("openings")
	floors := scene.NewNode("floors")
	items := scene.NewNode("items")

	if err := b.walls(walls, openings); err != nil {
		return nil, err
	}
	b.floors(floors)
	if err := b.items(items); err != nil {
		floors.ReleaseResources()
		return nil, err
	}

	if b.stats.Walls+b.stats.Floors+b.stats.Items == 0 {
		return nil, fmt.Errorf("%w: layer %s", ErrEmptyScene, layer.ID)
	}
	root.Add(walls, openings, floors, items)

	log.Printf("[IMPORT] layer %s: %d walls, %d openings, %d floors, %d items, %d skipped",
		layer.ID, b.stats.Walls, b.stats.Openings, b.stats.Floors, b.stats.Items, len(b.stats.Skipped))
	return &Imported{Layer: layer.ID, Stats: b.stats, root: root}, nil
}

type build struct {
	pool  *scene.Pool
	unit  float64
	layer Layer
	stats Stats
}

func (b *build) skip(format string, args ...any) {
	b.stats.Skipped = append(b.stats.Skipped, fmt.Sprintf(format, args...))
}

// point переводит точку плана в плоскость XZ сцены.
func (b *build) point(v Vertex) mgl64.Vec3 {
	return mgl64.Vec3{v.X * b.unit, 0, v.Y * b.unit}
}

func (b *build) endpoints(line Line) (mgl64.Vec3, mgl64.Vec3, bool) {
	if len(line.Vertices) < 2 {
		return mgl64.Vec3{}, mgl64.Vec3{}, false
	}
	v1, ok1 := b.layer.Vertices[line.Vertices[0]]
	v2, ok2 := b.layer.Vertices[line.Vertices[1]]
	if !ok1 || !ok2 {
		return mgl64.Vec3{}, mgl64.Vec3{}, false
	}
	return b.point(v1), b.point(v2), true
}

// ============================================================
// Walls and openings
// ============================================================

func (b *build) walls(walls, openings *scene.Node) error {
	if len(b.layer.Lines) == 0 {
		return nil
	}
	wallRes, err := b.pool.Get(scene.KindWallBox)
	if err != nil {
		return err
	}

	for _, id := range sortedKeys(b.layer.Lines) {
		line := b.layer.Lines[id]
		a, c, ok := b.endpoints(line)
		if !ok {
			b.skip("line %s: missing vertices", id)
			continue
		}
		dir := c.Sub(a)
		length := dir.Len()
		if length == 0 {
			b.skip("line %s: zero length", id)
			continue
		}

		height := lengthFromProperties(line.Properties, "height", defaultWallHeight) * b.unit
		thickness := lengthFromProperties(line.Properties, "thickness", defaultWallThickness) * b.unit
		angle := -math.Atan2(dir[2], dir[0])

		wall := scene.NewMesh("wall:"+id, wallRes)
		mid := a.Add(dir.Mul(0.5))
		wall.Transform.Position = mgl64.Vec3{mid[0], height / 2, mid[2]}
		wall.Transform.Rotation = mgl64.Vec3{0, angle, 0}
		wall.Transform.Scale = mgl64.Vec3{length, height, thickness}
		walls.Add(wall)
		b.stats.Walls++
	}

	if len(b.layer.Holes) == 0 {
		return nil
	}
	openingRes, err := b.pool.Get(KindOpening)
	if err != nil {
		return err
	}
	for _, id := range sortedKeys(b.layer.Holes) {
		hole := b.layer.Holes[id]
		line, ok := b.layer.Lines[hole.Line]
		if !ok {
			b.skip("hole %s: unknown line %q", id, hole.Line)
			continue
		}
		a, c, ok := b.endpoints(line)
		if !ok || a == c {
			b.skip("hole %s: line %s has no geometry", id, hole.Line)
			continue
		}

		dir := c.Sub(a)
		at := a.Add(dir.Mul(clamp(hole.Offset, 0, 1)))
		width := lengthFromProperties(hole.Properties, "width", defaultHoleWidth) * b.unit
		height := lengthFromProperties(hole.Properties, "height", holeHeight(hole.Type)) * b.unit
		altitude := lengthFromProperties(hole.Properties, "altitude", holeAltitude(hole.Type)) * b.unit
		wallThickness := lengthFromProperties(line.Properties, "thickness", defaultWallThickness)
		thickness := lengthFromProperties(hole.Properties, "thickness", wallThickness) * b.unit

		name := hole.Type
		if name == "" {
			name = "hole"
		}
		n := scene.NewMesh(name+":"+id, openingRes)
		n.Transform.Position = mgl64.Vec3{at[0], altitude + height/2, at[2]}
		n.Transform.Rotation = mgl64.Vec3{0, -math.Atan2(dir[2], dir[0]), 0}
		// чуть толще стены, чтобы проём был виден с обеих сторон
		n.Transform.Scale = mgl64.Vec3{width, height, thickness * 1.1}
		openings.Add(n)
		b.stats.Openings++
	}
	return nil
}

func holeHeight(kind string) float64 {
	if kind == "door" {
		return 215
	}
	return 100
}

func holeAltitude(kind string) float64 {
	if kind == "door" {
		return 0
	}
	return 90
}

// ============================================================
// Floors
// ============================================================

func (b *build) floors(floors *scene.Node) {
	for _, id := range sortedKeys(b.layer.Areas) {
		area := b.layer.Areas[id]
		points := b.collectAreaPoints(area)
		if len(points) < 3 {
			b.skip("area %s: fewer than 3 vertices", id)
			continue
		}

		res := scene.NewResource(KindFloor, floorGeometry(points), &scene.Material{Name: "floor", Color: [4]float32{0.8, 0.72, 0.6, 1}})
		name := area.Name
		if name == "" {
			name = id
		}
		floors.Add(scene.NewMesh("floor:"+name, res))
		b.stats.Floors++
	}
}

// collectAreaPoints отбрасывает неизвестные вершины и замыкающий дубликат.
func (b *build) collectAreaPoints(area Area) []mgl64.Vec3 {
	var points []mgl64.Vec3
	for _, id := range area.Vertices {
		if v, ok := b.layer.Vertices[id]; ok {
			points = append(points, b.point(v))
		}
	}
	if len(points) > 1 && points[0] == points[len(points)-1] {
		points = points[:len(points)-1]
	}
	return points
}

// floorGeometry: веер треугольников от первой вершины, верх пола на y=0.
// Для вогнутых контуров веер может выйти за границу.
func floorGeometry(points []mgl64.Vec3) *scene.Geometry {
	n := len(points)
	geom := &scene.Geometry{Positions: make([]mgl64.Vec3, 0, n*2)}
	for _, p := range points {
		geom.Positions = append(geom.Positions, mgl64.Vec3{p[0], 0, p[2]})
	}
	for _, p := range points {
		geom.Positions = append(geom.Positions, mgl64.Vec3{p[0], -floorThickness, p[2]})
	}
	for k := 1; k+1 < n; k++ {
		geom.Indices = append(geom.Indices, 0, uint32(k), uint32(k+1))
		geom.Indices = append(geom.Indices, uint32(n), uint32(n+k+1), uint32(n+k))
	}
	return geom
}

// ============================================================
// Items
// ============================================================

func (b *build) items(items *scene.Node) error {
	if len(b.layer.Items) == 0 {
		return nil
	}
	res, err := b.pool.Get(scene.KindPlaceholderBox)
	if err != nil {
		return err
	}
	for _, id := range sortedKeys(b.layer.Items) {
		item := b.layer.Items[id]
		width := lengthFromProperties(item.Properties, "width", defaultItemSize) * b.unit
		depth := lengthFromProperties(item.Properties, "depth", defaultItemSize) * b.unit
		height := lengthFromProperties(item.Properties, "height", defaultItemSize) * b.unit

		name := item.Type
		if name == "" {
			name = "item"
		}
		n := scene.NewMesh(name+":"+id, res)
		n.Transform.Position = mgl64.Vec3{item.X * b.unit, height / 2, item.Y * b.unit}
		n.Transform.Rotation = mgl64.Vec3{0, -mgl64.DegToRad(item.Rotation), 0}
		n.Transform.Scale = mgl64.Vec3{width, height, depth}
		items.Add(n)
		b.stats.Items++
	}
	return nil
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
