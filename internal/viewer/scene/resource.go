package scene

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"
)

// ============================================================
// Shared resources
// ============================================================

// Kind: ключ ресурса в пуле.
type Kind string

const (
	KindWallBox        Kind = "wall.unit-box"
	KindPlaceholderBox Kind = "furniture.placeholder-box"
)

// ErrResourcePool: не удалось создать общий ресурс. Ошибка фатальная.
var ErrResourcePool = errors.New("resource pool failure")

// PoolError описывает сбой фабрики конкретного вида ресурса.
type PoolError struct {
	Kind Kind
	Err  error
}

func (e *PoolError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("resource pool: %s", e.Kind)
	}
	return fmt.Sprintf("resource pool: %s: %v", e.Kind, e.Err)
}

func (e *PoolError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrResourcePool}
	}
	return []error{ErrResourcePool, e.Err}
}

// Geometry: буфер вершин и индексов треугольников.
type Geometry struct {
	Positions []mgl64.Vec3
	Indices   []uint32
}

// Bounds считает AABB по всем вершинам.
func (g *Geometry) Bounds() Box3 {
	box := Box3{}
	if g == nil {
		return box
	}
	for _, p := range g.Positions {
		box = box.Expand(p)
	}
	return box
}

type Material struct {
	Name  string
	Color [4]float32
}

// Resource: тяжёлый буфер (геометрия + материал). Узлы держат на него
// невладеющую ссылку; ресурсы пула не освобождаются никогда, загруженные
// ресурсы освобождаются, когда счётчик ссылок падает до нуля.
type Resource struct {
	Kind     Kind
	Geometry *Geometry
	Material *Material

	pooled   bool
	refs     atomic.Int64
	released atomic.Bool
}

// NewResource создаёт ресурс с одной ссылкой, принадлежащей вызывающему.
func NewResource(kind Kind, geom *Geometry, mat *Material) *Resource {
	r := &Resource{Kind: kind, Geometry: geom, Material: mat}
	r.refs.Store(1)
	return r
}

func (r *Resource) Pooled() bool {
	return r.pooled
}

func (r *Resource) Refs() int64 {
	return r.refs.Load()
}

func (r *Resource) Released() bool {
	return r.released.Load()
}

// Retain добавляет ссылку. Для ресурсов пула ничего не делает.
func (r *Resource) Retain() *Resource {
	if r == nil || r.pooled {
		return r
	}
	r.refs.Add(1)
	return r
}

// Release снимает ссылку и возвращает true, если буферы были освобождены.
func (r *Resource) Release() bool {
	if r == nil || r.pooled || r.released.Load() {
		return false
	}
	if r.refs.Add(-1) > 0 {
		return false
	}
	if !r.released.CompareAndSwap(false, true) {
		return false
	}
	r.Geometry = nil
	r.Material = nil
	return true
}

// ============================================================
// Pool
// ============================================================

// Factory создаёт ресурс определённого вида.
type Factory func() (*Resource, error)

// Pool хранит общие ресурсы по видам. Каждый вид создаётся один раз
// при первом запросе, дальше отдаётся одна и та же ссылка.
type Pool struct {
	mu        sync.Mutex
	factories map[Kind]Factory
	resources map[Kind]*Resource
}

// NewPool возвращает пул с фабриками стен и заглушки мебели.
func NewPool() *Pool {
	p := &Pool{
		factories: make(map[Kind]Factory),
		resources: make(map[Kind]*Resource),
	}
	p.Register(KindWallBox, func() (*Resource, error) {
		return NewResource(KindWallBox, UnitBox(), &Material{Name: "wall", Color: [4]float32{0.92, 0.92, 0.9, 1}}), nil
	})
	p.Register(KindPlaceholderBox, func() (*Resource, error) {
		return NewResource(KindPlaceholderBox, UnitBox(), &Material{Name: "placeholder", Color: [4]float32{0.6, 0.6, 0.65, 1}}), nil
	})
	return p
}

// Register задаёт (или заменяет) фабрику. Уже созданный ресурс не трогается.
func (p *Pool) Register(kind Kind, f Factory) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.factories[kind] = f
}

// Get возвращает общий ресурс вида kind, создавая его при первом обращении.
func (p *Pool) Get(kind Kind) (*Resource, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if res, ok := p.resources[kind]; ok {
		return res, nil
	}
	factory, ok := p.factories[kind]
	if !ok {
		return nil, &PoolError{Kind: kind, Err: errors.New("no factory registered")}
	}
	res, err := factory()
	if err != nil {
		return nil, &PoolError{Kind: kind, Err: err}
	}
	if res == nil || res.Geometry == nil {
		return nil, &PoolError{Kind: kind, Err: errors.New("factory returned empty resource")}
	}
	res.pooled = true
	p.resources[kind] = res
	return res, nil
}

// MustGet работает как Get, но паникует с *PoolError. Используется при клонировании,
// где вид ресурса уже гарантированно создан.
func (p *Pool) MustGet(kind Kind) *Resource {
	res, err := p.Get(kind)
	if err != nil {
		panic(err)
	}
	return res
}

// Len возвращает число уже созданных ресурсов.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.resources)
}

// UnitBox: куб 1x1x1 с центром в начале координат.
func UnitBox() *Geometry {
	positions := make([]mgl64.Vec3, 0, 8)
	for i := 0; i < 8; i++ {
		p := mgl64.Vec3{-0.5, -0.5, -0.5}
		if i&1 != 0 {
			p[0] = 0.5
		}
		if i&2 != 0 {
			p[1] = 0.5
		}
		if i&4 != 0 {
			p[2] = 0.5
		}
		positions = append(positions, p)
	}
	return &Geometry{
		Positions: positions,
		Indices: []uint32{
			0, 2, 1, 1, 2, 3, // -z
			4, 5, 6, 5, 7, 6, // +z
			0, 1, 4, 1, 5, 4, // -y
			2, 6, 3, 3, 6, 7, // +y
			0, 4, 2, 2, 4, 6, // -x
			1, 3, 5, 3, 7, 5, // +x
		},
	}
}
