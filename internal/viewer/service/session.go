package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"property-viewer/internal/viewer/metrics"
	"property-viewer/internal/viewer/property"
	"property-viewer/internal/viewer/scene"
)

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrFurnitureNotFound = errors.New("furniture not found")
	ErrInvalidTransform  = errors.New("invalid transform")
)

// LayoutSource выдаёт сессионные копии по id планировки.
type LayoutSource interface {
	Session(ctx context.Context, id string) (*property.Layout, error)
}

// Session: открытая сессия просмотра. Все изменения идут под mu.
type Session struct {
	Token    string
	LayoutID string
	OpenedAt time.Time

	mu     sync.Mutex
	layout *property.Layout
}

// View вызывает fn под блокировкой сессии.
func (s *Session) View(fn func(*property.Layout)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.layout)
}

func (s *Session) Snapshot() scene.NodeSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return scene.Snapshot(s.layout.Root())
}

// TransformPatch: частичное изменение трансформации; nil-поля не меняются.
type TransformPatch struct {
	Position *mgl64.Vec3 `json:"position,omitempty"`
	Rotation *mgl64.Vec3 `json:"rotation,omitempty"`
	Scale    *mgl64.Vec3 `json:"scale,omitempty"`
}

// ============================================================
// Session Manager
// ============================================================

type SessionManager struct {
	source  LayoutSource
	metrics *metrics.Metrics

	mu       sync.Mutex
	sessions map[string]*Session // token -> session
}

func NewSessionManager(source LayoutSource, m *metrics.Metrics) *SessionManager {
	return &SessionManager{
		source:   source,
		metrics:  m,
		sessions: make(map[string]*Session),
	}
}

// Open клонирует мастер и выдаёт токен новой сессии.
func (m *SessionManager) Open(ctx context.Context, layoutID string) (*Session, error) {
	layout, err := m.source.Session(ctx, layoutID)
	if err != nil {
		return nil, err
	}

	s := &Session{
		Token:    uuid.NewString(),
		LayoutID: layoutID,
		OpenedAt: time.Now().UTC(),
		layout:   layout,
	}
	m.mu.Lock()
	m.sessions[s.Token] = s
	m.mu.Unlock()

	m.metrics.SessionOpened()
	log.Printf("[SESSIONS] opened %s for layout %s", s.Token, layoutID)
	return s, nil
}

func (m *SessionManager) Get(token string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	return s, ok
}

// MoveFurniture меняет трансформацию мебели только в этой сессии.
func (m *SessionManager) MoveFurniture(token string, room, index int, patch TransformPatch) (scene.Transform, error) {
	s, ok := m.Get(token)
	if !ok {
		return scene.Transform{}, fmt.Errorf("%s: %w", token, ErrSessionNotFound)
	}
	if patch.Scale != nil {
		sc := *patch.Scale
		if sc[0] <= 0 || sc[1] <= 0 || sc[2] <= 0 {
			return scene.Transform{}, fmt.Errorf("%w: scale must be positive", ErrInvalidTransform)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.layout.Room(room)
	if r == nil {
		return scene.Transform{}, fmt.Errorf("room %d: %w", room, ErrFurnitureNotFound)
	}
	f := r.FurnitureAt(index)
	if f == nil {
		return scene.Transform{}, fmt.Errorf("room %d furniture %d: %w", room, index, ErrFurnitureNotFound)
	}

	t := f.Transform()
	if patch.Position != nil {
		t.Position = *patch.Position
	}
	if patch.Rotation != nil {
		t.Rotation = *patch.Rotation
	}
	if patch.Scale != nil {
		t.Scale = *patch.Scale
	}
	f.SetTransform(t)
	return t, nil
}

// Close освобождает сессию ровно один раз.
func (m *SessionManager) Close(token string) bool {
	m.mu.Lock()
	s, ok := m.sessions[token]
	delete(m.sessions, token)
	m.mu.Unlock()
	if !ok {
		return false
	}

	s.mu.Lock()
	s.layout.Dispose()
	s.mu.Unlock()

	m.metrics.SessionClosed()
	log.Printf("[SESSIONS] closed %s", token)
	return true
}

// CloseAll закрывает все сессии и возвращает их число.
func (m *SessionManager) CloseAll() int {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.mu.Lock()
		s.layout.Dispose()
		s.mu.Unlock()
		m.metrics.SessionClosed()
	}
	return len(sessions)
}

func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
