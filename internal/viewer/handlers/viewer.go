package handlers

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"property-viewer/internal/viewer/importer"
	"property-viewer/internal/viewer/models"
	"property-viewer/internal/viewer/property"
	"property-viewer/internal/viewer/scene"
	"property-viewer/internal/viewer/service"
)

// ============================================================
// Viewer Handler
// ============================================================

type ViewerHandler struct {
	catalog  *service.Catalog
	sessions *service.SessionManager
	importer *importer.Importer
	pool     *scene.Pool
}

func NewViewerHandler(catalog *service.Catalog, sessions *service.SessionManager, imp *importer.Importer, pool *scene.Pool) *ViewerHandler {
	return &ViewerHandler{
		catalog:  catalog,
		sessions: sessions,
		importer: imp,
		pool:     pool,
	}
}

type cameraPayload struct {
	Position [3]float64 `json:"position"`
	LookAt   [3]float64 `json:"lookAt"`
}

type layoutPayload struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Camera      *cameraPayload     `json:"cameraView,omitempty"`
	Tree        scene.NodeSnapshot `json:"tree"`
}

func newLayoutPayload(l *property.Layout) layoutPayload {
	p := layoutPayload{
		ID:          l.ID,
		Name:        l.Name,
		Description: l.Description,
		Tree:        scene.Snapshot(l.Root()),
	}
	if cam, ok := l.CameraView(); ok {
		p.Camera = &cameraPayload{Position: cam.Position, LookAt: cam.LookAt}
	}
	return p
}

// ============================================================
// Layouts
// ============================================================

// ListLayouts отдаёт сохранённые описания.
func (h *ViewerHandler) ListLayouts(c fiber.Ctx) error {
	items, err := h.catalog.Store().List(c.Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"layouts": items,
		"masters": h.catalog.Registry().IDs(),
	})
}

// PutLayout сохраняет описание. Перед записью описание гидрируется,
// чтобы неполные описания не попадали в хранилище.
func (h *ViewerHandler) PutLayout(c fiber.Ctx) error {
	id := c.Params("id")
	log.Printf("[LAYOUTS] put %s", id)

	if len(c.Body()) == 0 {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "empty body"})
	}
	desc, err := models.Decode(bytes.NewReader(c.Body()))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid json"})
	}
	if desc.ID == "" {
		desc.ID = id
	}
	if desc.ID != id {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "id does not match path"})
	}

	probe, err := property.HydrateLayout(h.pool, desc)
	if err != nil {
		return writeError(c, err)
	}
	rooms := len(probe.Rooms())
	probe.Dispose()

	if err := h.catalog.Store().Put(c.Context(), desc); err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"id":        desc.ID,
		"rooms":     rooms,
		"furniture": desc.FurnitureCount(),
	})
}

// ReloadLayout перечитывает описание и заменяет мастер.
func (h *ViewerHandler) ReloadLayout(c fiber.Ctx) error {
	master, err := h.catalog.Reload(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	report, _ := h.catalog.Report(master.ID)
	return c.JSON(fiber.Map{
		"id":     master.ID,
		"assets": report,
	})
}

// GetMaster отдаёт снимок дерева мастера (только чтение).
func (h *ViewerHandler) GetMaster(c fiber.Ctx) error {
	master, err := h.catalog.Master(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	report, _ := h.catalog.Report(master.ID)
	return c.JSON(fiber.Map{
		"layout": newLayoutPayload(master),
		"assets": report,
	})
}

// ============================================================
// Sessions
// ============================================================

// OpenSession клонирует мастер в новую сессию.
func (h *ViewerHandler) OpenSession(c fiber.Ctx) error {
	id := c.Params("id")
	s, err := h.sessions.Open(c.Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	c.Locals("session", s.Token)

	var payload layoutPayload
	s.View(func(l *property.Layout) { payload = newLayoutPayload(l) })
	report, _ := h.catalog.Report(id)

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"token":  s.Token,
		"layout": payload,
		"assets": report,
	})
}

func (h *ViewerHandler) GetSession(c fiber.Ctx) error {
	token := c.Params("token")
	c.Locals("session", token)
	s, ok := h.sessions.Get(token)
	if !ok {
		return writeError(c, service.ErrSessionNotFound)
	}

	var payload layoutPayload
	s.View(func(l *property.Layout) { payload = newLayoutPayload(l) })
	return c.JSON(fiber.Map{
		"token":    s.Token,
		"layoutId": s.LayoutID,
		"openedAt": s.OpenedAt,
		"layout":   payload,
	})
}

// MoveFurniture меняет трансформацию мебели в сессии.
func (h *ViewerHandler) MoveFurniture(c fiber.Ctx) error {
	token := c.Params("token")
	c.Locals("session", token)

	room, err := strconv.Atoi(c.Params("room"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid room index"})
	}
	index, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid furniture index"})
	}

	var patch service.TransformPatch
	if err := json.Unmarshal(c.Body(), &patch); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid json"})
	}

	t, err := h.sessions.MoveFurniture(token, room, index, patch)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"position": t.Position,
		"rotation": t.Rotation,
		"scale":    t.Scale,
	})
}

func (h *ViewerHandler) CloseSession(c fiber.Ctx) error {
	token := c.Params("token")
	c.Locals("session", token)
	if !h.sessions.Close(token) {
		return writeError(c, service.ErrSessionNotFound)
	}
	return c.SendStatus(http.StatusNoContent)
}

// ============================================================
// Import
// ============================================================

// Import строит дерево из сцены планировщика и сразу его освобождает:
// клиенту нужен только снимок.
func (h *ViewerHandler) Import(c fiber.Ctx) error {
	log.Printf("[IMPORT] Import request")

	if len(c.Body()) == 0 {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "empty body"})
	}
	s, err := importer.DecodeScene(bytes.NewReader(c.Body()))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid json"})
	}

	imported, err := h.importer.Import(s)
	if err != nil {
		return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}
	defer imported.Dispose()

	return c.JSON(fiber.Map{
		"layer": imported.Layer,
		"stats": imported.Stats,
		"tree":  scene.Snapshot(imported.Root()),
	})
}
