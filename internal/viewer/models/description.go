package models

import (
	"encoding/json"
	"fmt"
	"io"
)

// ============================================================
// Layout description (JSON)
// ============================================================

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type CameraView struct {
	Position Vec3 `json:"position"`
	LookAt   Vec3 `json:"lookAt"`
}

type FurnitureDescription struct {
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	ModelURL *string `json:"modelUrl,omitempty"`
	Position *Vec3   `json:"position,omitempty"`
	Rotation *Vec3   `json:"rotation,omitempty"`
	Scale    *Vec3   `json:"scale,omitempty"`
}

type RoomDescription struct {
	Name      string                 `json:"name"`
	Width     *float64               `json:"width,omitempty"`
	Depth     *float64               `json:"depth,omitempty"`
	Height    *float64               `json:"height,omitempty"`
	Position  *Vec3                  `json:"position,omitempty"`
	Furniture []FurnitureDescription `json:"furniture,omitempty"`
}

// LayoutDescription: запись, которую отдаёт хранилище описаний.
// Rooms == nil означает, что поле отсутствует в JSON.
type LayoutDescription struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	CameraView  *CameraView       `json:"cameraView,omitempty"`
	Rooms       []RoomDescription `json:"rooms"`
}

// Decode читает описание из JSON.
func Decode(r io.Reader) (*LayoutDescription, error) {
	var desc LayoutDescription
	if err := json.NewDecoder(r).Decode(&desc); err != nil {
		return nil, fmt.Errorf("decode layout description: %w", err)
	}
	return &desc, nil
}

// Encode сериализует описание для хранения.
func (d *LayoutDescription) Encode() ([]byte, error) {
	return json.Marshal(d)
}

// FurnitureCount считает мебель во всех комнатах.
func (d *LayoutDescription) FurnitureCount() int {
	total := 0
	for _, room := range d.Rooms {
		total += len(room.Furniture)
	}
	return total
}
