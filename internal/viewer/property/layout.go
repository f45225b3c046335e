package property

import (
	"errors"
	"io"
	"strings"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"

	"property-viewer/internal/viewer/models"
	"property-viewer/internal/viewer/scene"
)

// ============================================================
// Layout
// ============================================================

// CameraView: точка обзора по умолчанию. Копируется по значению.
type CameraView struct {
	Position mgl64.Vec3 `json:"position"`
	LookAt   mgl64.Vec3 `json:"lookAt"`
}

// Layout: планировка целиком: единица гидратации, загрузки моделей и клонирования.
type Layout struct {
	ID          string
	Name        string
	Description string

	camera   *CameraView
	rooms    []*Room
	node     *scene.Node
	pool     *scene.Pool
	master   atomic.Bool
	disposed atomic.Bool
}

// HydrateLayout строит планировку из описания. Корневой узел получает
// идентификатор описания: он называет шаблон, а не экземпляр.
func HydrateLayout(pool *scene.Pool, desc *models.LayoutDescription) (*Layout, error) {
	if desc == nil {
		return nil, malformed("layout", "", "empty description")
	}
	if strings.TrimSpace(desc.ID) == "" {
		return nil, malformed("layout", "id", "")
	}
	if desc.Rooms == nil {
		return nil, malformed("layout", "rooms", "")
	}

	name := desc.Name
	if name == "" {
		name = desc.ID
	}
	l := &Layout{
		ID:          desc.ID,
		Name:        name,
		Description: desc.Description,
		node:        scene.NewNodeWithID(desc.ID, name),
		pool:        pool,
	}
	if desc.CameraView != nil {
		l.camera = &CameraView{
			Position: vec(desc.CameraView.Position),
			LookAt:   vec(desc.CameraView.LookAt),
		}
	}

	for _, rd := range desc.Rooms {
		room, err := HydrateRoom(pool, rd)
		if err != nil {
			l.Dispose()
			return nil, err
		}
		l.addRoom(room)
	}
	return l, nil
}

// DecodeLayout читает JSON-описание и гидратирует планировку.
func DecodeLayout(pool *scene.Pool, r io.Reader) (*Layout, error) {
	desc, err := models.Decode(r)
	if err != nil {
		return nil, errors.Join(ErrMalformedDescription, err)
	}
	return HydrateLayout(pool, desc)
}

func (l *Layout) addRoom(room *Room) {
	l.rooms = append(l.rooms, room)
	l.node.Add(room.node)
}

func (l *Layout) Kind() Kind        { return KindLayout }
func (l *Layout) Root() *scene.Node { return l.node }

// CameraView возвращает копию точки обзора.
func (l *Layout) CameraView() (CameraView, bool) {
	if l.camera == nil {
		return CameraView{}, false
	}
	return *l.camera, true
}

// IsMaster истинно только для экземпляра, зарегистрированного в реестре.
func (l *Layout) IsMaster() bool { return l.master.Load() }

func (l *Layout) Rooms() []*Room {
	out := make([]*Room, len(l.rooms))
	copy(out, l.rooms)
	return out
}

// Room возвращает комнату по индексу или nil.
func (l *Layout) Room(i int) *Room {
	if i < 0 || i >= len(l.rooms) {
		return nil
	}
	return l.rooms[i]
}

// Furniture перечисляет мебель всех комнат в порядке обхода.
func (l *Layout) Furniture() []*Furniture {
	var out []*Furniture
	for _, room := range l.rooms {
		out = append(out, room.furniture...)
	}
	return out
}

// Clone возвращает независимую сессионную копию. Идентификатор корня
// наследуется, флаг мастера всегда сброшен.
func (l *Layout) Clone() *Layout {
	node := scene.NewNodeWithID(l.node.ID, l.node.Name)
	node.Transform = l.node.Transform

	cp := &Layout{
		ID:          l.ID,
		Name:        l.Name,
		Description: l.Description,
		node:        node,
		pool:        l.pool,
	}
	if l.camera != nil {
		camera := *l.camera
		cp.camera = &camera
	}
	for _, room := range l.rooms {
		cp.addRoom(room.Clone())
	}
	return cp
}

func (l *Layout) CloneEntity() Entity { return l.Clone() }

// Dispose освобождает загруженные модели этого экземпляра. Повторный вызов ничего не делает.
func (l *Layout) Dispose() {
	if !l.disposed.CompareAndSwap(false, true) {
		return
	}
	for _, room := range l.rooms {
		room.Dispose()
	}
}

func (l *Layout) Disposed() bool { return l.disposed.Load() }

func (l *Layout) sealed() {}
