package scene

import (
	"github.com/google/uuid"
)

// ============================================================
// Visual Node
// ============================================================

// Node: именованный узел дерева с трансформацией и необязательной
// ссылкой на общий ресурс. Порядок детей значим.
type Node struct {
	ID        string
	Name      string
	Transform Transform
	Resource  *Resource

	parent   *Node
	children []*Node
}

// NewNode создаёт узел со свежим идентификатором.
func NewNode(name string) *Node {
	return NewNodeWithID(uuid.NewString(), name)
}

// NewNodeWithID создаёт узел с заданным идентификатором.
func NewNodeWithID(id, name string) *Node {
	return &Node{
		ID:        id,
		Name:      name,
		Transform: Identity(),
	}
}

// NewMesh создаёт узел, ссылающийся на ресурс.
func NewMesh(name string, res *Resource) *Node {
	n := NewNode(name)
	n.Resource = res
	return n
}

func (n *Node) Parent() *Node {
	return n.parent
}

// Children возвращает копию списка детей.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

func (n *Node) NumChildren() int {
	return len(n.children)
}

func (n *Node) Child(i int) *Node {
	if i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i]
}

// Add добавляет детей в конец, отцепляя их от прежнего родителя.
func (n *Node) Add(children ...*Node) {
	for _, child := range children {
		if child == nil || child == n {
			continue
		}
		if child.parent != nil {
			child.parent.Remove(child)
		}
		child.parent = n
		n.children = append(n.children, child)
	}
}

// Remove убирает ребёнка, сохраняя порядок остальных.
func (n *Node) Remove(child *Node) bool {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			child.parent = nil
			return true
		}
	}
	return false
}

// Detach снимает всех детей и возвращает их.
func (n *Node) Detach() []*Node {
	out := n.children
	n.children = nil
	for _, c := range out {
		c.parent = nil
	}
	return out
}

// Walk обходит поддерево в прямом порядке. Если fn возвращает false,
// потомки текущего узла пропускаются.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.children {
		c.Walk(fn)
	}
}

// Clone копирует поддерево: новые идентификаторы на каждом уровне,
// независимые трансформации, ресурсы разделяются по ссылке.
func (n *Node) Clone() *Node {
	cp := NewNode(n.Name)
	cp.Transform = n.Transform
	cp.Resource = n.Resource.Retain()
	for _, c := range n.children {
		cp.Add(c.Clone())
	}
	return cp
}

// ReleaseResources снимает ссылки на ресурсы поддерева (ресурсы пула
// не затрагиваются) и возвращает число освобождённых буферов.
func (n *Node) ReleaseResources() int {
	freed := 0
	n.Walk(func(node *Node) bool {
		if node.Resource != nil && node.Resource.Release() {
			freed++
		}
		return true
	})
	return freed
}

// Bounds возвращает AABB поддерева в системе координат узла
// (собственная трансформация узла не применяется).
func (n *Node) Bounds() Box3 {
	box := Box3{}
	if n.Resource != nil {
		box = box.Union(n.Resource.Geometry.Bounds())
	}
	for _, c := range n.children {
		box = box.Union(c.Bounds().Apply(c.Transform.Matrix()))
	}
	return box
}

// Count возвращает число узлов в поддереве.
func (n *Node) Count() int {
	total := 0
	n.Walk(func(*Node) bool {
		total++
		return true
	})
	return total
}

// Viewable: контракт для слоя отрисовки: корневой узел и освобождение ресурсов.
type Viewable interface {
	Root() *Node
	Dispose()
}
