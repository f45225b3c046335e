package property

import (
	"property-viewer/internal/viewer/scene"
)

// Kind различает варианты сущностей.
type Kind int

const (
	KindWall Kind = iota
	KindFurniture
	KindRoom
	KindLayout
)

func (k Kind) String() string {
	switch k {
	case KindWall:
		return "wall"
	case KindFurniture:
		return "furniture"
	case KindRoom:
		return "room"
	case KindLayout:
		return "layout"
	}
	return "unknown"
}

// Entity: общий контракт стен, мебели, комнат и планировок.
// Набор реализаций закрыт: реализовать его вне пакета нельзя.
type Entity interface {
	Kind() Kind
	Root() *scene.Node
	// CloneEntity возвращает независимую глубокую копию.
	CloneEntity() Entity
	// Dispose идемпотентно освобождает ресурсы, которыми сущность владеет.
	Dispose()

	sealed()
}

var (
	_ Entity = (*Wall)(nil)
	_ Entity = (*Furniture)(nil)
	_ Entity = (*Room)(nil)
	_ Entity = (*Layout)(nil)

	_ scene.Viewable = (*Layout)(nil)
)
