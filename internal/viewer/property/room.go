package property

import (
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"property-viewer/internal/viewer/models"
	"property-viewer/internal/viewer/scene"
)

// ============================================================
// Room
// ============================================================

// DefaultRoomSize: ширина и глубина комнаты, если в описании их нет.
const DefaultRoomSize = 5.0

// Room: группа из четырёх стен и мебели. Стены всегда строятся заново
// из размеров комнаты, мебель копируется.
type Room struct {
	name                 string
	width, depth, height float64

	node      *scene.Node
	walls     []*Wall
	furniture []*Furniture
	pool      *scene.Pool
	disposed  bool
}

// HydrateRoom строит комнату из описания вместе с мебелью.
func HydrateRoom(pool *scene.Pool, desc models.RoomDescription) (*Room, error) {
	if strings.TrimSpace(desc.Name) == "" {
		return nil, malformed("room", "name", "")
	}

	width, err := dimension(desc.Name, "width", desc.Width, DefaultRoomSize)
	if err != nil {
		return nil, err
	}
	depth, err := dimension(desc.Name, "depth", desc.Depth, DefaultRoomSize)
	if err != nil {
		return nil, err
	}
	height, err := dimension(desc.Name, "height", desc.Height, DefaultWallHeight)
	if err != nil {
		return nil, err
	}

	node := scene.NewNode(desc.Name)
	if desc.Position != nil {
		node.Transform.Position = vec(*desc.Position)
	}

	r := &Room{
		name:   desc.Name,
		width:  width,
		depth:  depth,
		height: height,
		node:   node,
		pool:   pool,
	}
	if err := r.buildWalls(); err != nil {
		return nil, err
	}

	for _, fd := range desc.Furniture {
		f, err := HydrateFurniture(pool, fd)
		if err != nil {
			return nil, err
		}
		r.AddFurniture(f)
	}
	return r, nil
}

func dimension(room, field string, value *float64, def float64) (float64, error) {
	if value == nil {
		return def, nil
	}
	if *value <= 0 {
		return 0, malformed("room", room+"."+field, "must be positive")
	}
	return *value, nil
}

// buildWalls ставит четыре стены по периметру: север, юг, запад, восток.
func (r *Room) buildWalls() error {
	res, err := r.pool.Get(scene.KindWallBox)
	if err != nil {
		return err
	}

	h := r.height
	specs := []struct {
		w, d float64
		pos  mgl64.Vec3
	}{
		{r.width, WallThickness, mgl64.Vec3{0, h / 2, -r.depth / 2}},
		{r.width, WallThickness, mgl64.Vec3{0, h / 2, r.depth / 2}},
		{WallThickness, r.depth, mgl64.Vec3{-r.width / 2, h / 2, 0}},
		{WallThickness, r.depth, mgl64.Vec3{r.width / 2, h / 2, 0}},
	}

	r.walls = make([]*Wall, 0, len(specs))
	for _, s := range specs {
		wall := newWall(res, s.w, h, s.d)
		wall.node.Transform.Position = s.pos
		r.walls = append(r.walls, wall)
		r.node.Add(wall.node)
	}
	return nil
}

func (r *Room) Name() string      { return r.name }
func (r *Room) Width() float64    { return r.width }
func (r *Room) Depth() float64    { return r.depth }
func (r *Room) Height() float64   { return r.height }
func (r *Room) Kind() Kind        { return KindRoom }
func (r *Room) Root() *scene.Node { return r.node }

func (r *Room) Walls() []*Wall {
	out := make([]*Wall, len(r.walls))
	copy(out, r.walls)
	return out
}

func (r *Room) Furniture() []*Furniture {
	out := make([]*Furniture, len(r.furniture))
	copy(out, r.furniture)
	return out
}

// FurnitureAt возвращает мебель по индексу или nil.
func (r *Room) FurnitureAt(i int) *Furniture {
	if i < 0 || i >= len(r.furniture) {
		return nil
	}
	return r.furniture[i]
}

func (r *Room) AddFurniture(f *Furniture) {
	r.furniture = append(r.furniture, f)
	r.node.Add(f.root)
}

// Clone строит стены заново по размерам комнаты и копирует мебель.
// Ошибка пула здесь фатальна.
func (r *Room) Clone() *Room {
	node := scene.NewNode(r.node.Name)
	node.Transform = r.node.Transform

	cp := &Room{
		name:   r.name,
		width:  r.width,
		depth:  r.depth,
		height: r.height,
		node:   node,
		pool:   r.pool,
	}
	if err := cp.buildWalls(); err != nil {
		panic(err)
	}
	for _, f := range r.furniture {
		cp.AddFurniture(f.Clone())
	}
	return cp
}

func (r *Room) CloneEntity() Entity { return r.Clone() }

func (r *Room) Dispose() {
	if r.disposed {
		return
	}
	r.disposed = true
	for _, f := range r.furniture {
		f.Dispose()
	}
	for _, w := range r.walls {
		w.Dispose()
	}
}

func (r *Room) sealed() {}
