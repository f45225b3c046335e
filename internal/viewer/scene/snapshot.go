package scene

import (
	"github.com/go-gl/mathgl/mgl64"
)

// NodeSnapshot: только читаемое JSON-представление дерева для слоя отрисовки.
type NodeSnapshot struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Position mgl64.Vec3     `json:"position"`
	Rotation mgl64.Vec3     `json:"rotation"`
	Scale    mgl64.Vec3     `json:"scale"`
	Resource string         `json:"resource,omitempty"`
	Children []NodeSnapshot `json:"children,omitempty"`
}

// Snapshot копирует поддерево в NodeSnapshot.
func Snapshot(n *Node) NodeSnapshot {
	snap := NodeSnapshot{
		ID:       n.ID,
		Name:     n.Name,
		Position: n.Transform.Position,
		Rotation: n.Transform.Rotation,
		Scale:    n.Transform.Scale,
	}
	if n.Resource != nil {
		snap.Resource = string(n.Resource.Kind)
	}
	if len(n.children) > 0 {
		snap.Children = make([]NodeSnapshot, 0, len(n.children))
		for _, c := range n.children {
			snap.Children = append(snap.Children, Snapshot(c))
		}
	}
	return snap
}
