package property

import (
	"errors"
	"sort"
	"sync"
)

// ============================================================
// Registry
// ============================================================

// Registry хранит мастер-планировки по идентификатору и выдаёт сессионные копии.
// Порядок "загрузка моделей -> регистрация" реестр не проверяет.
type Registry struct {
	mu      sync.RWMutex
	masters map[string]*Layout
}

func NewRegistry() *Registry {
	return &Registry{masters: make(map[string]*Layout)}
}

// RegisterMaster сохраняет планировку как мастер для id. Прежний мастер
// перезаписывается и освобождается; уже выданные сессии остаются рабочими.
func (r *Registry) RegisterMaster(id string, layout *Layout) error {
	if id == "" {
		return errors.New("register master: empty id")
	}
	if layout == nil {
		return errors.New("register master: nil layout")
	}

	r.mu.Lock()
	old := r.masters[id]
	r.masters[id] = layout
	layout.master.Store(true)
	stillUsed := false
	if old != nil && old != layout {
		for _, m := range r.masters {
			if m == old {
				stillUsed = true
				break
			}
		}
	}
	r.mu.Unlock()

	if old != nil && old != layout && !stillUsed {
		old.master.Store(false)
		old.Dispose()
	}
	return nil
}

// Master возвращает зарегистрированный мастер без копирования.
func (r *Registry) Master(id string) (*Layout, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.masters[id]
	return l, ok
}

// SessionClone возвращает новую независимую копию мастера.
func (r *Registry) SessionClone(id string) (*Layout, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	master, ok := r.masters[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	return master.Clone(), nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.masters)
}

func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.masters))
	for id := range r.masters {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Close освобождает все мастера и очищает реестр.
func (r *Registry) Close() {
	r.mu.Lock()
	masters := r.masters
	r.masters = make(map[string]*Layout)
	r.mu.Unlock()

	for _, m := range masters {
		m.master.Store(false)
		m.Dispose()
	}
}
