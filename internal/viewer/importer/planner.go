package importer

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// ============================================================
// Planner scene (JSON)
// ============================================================

type Vertex struct {
	ID    string   `json:"id"`
	X     float64  `json:"x"`
	Y     float64  `json:"y"`
	Lines []string `json:"lines,omitempty"`
}

type Line struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Vertices   []string       `json:"vertices"`
	Holes      []string       `json:"holes,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

type Hole struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Type       string         `json:"type"` // door, window
	Offset     float64        `json:"offset"`
	Line       string         `json:"line"`
	Properties map[string]any `json:"properties,omitempty"`
}

type Area struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Vertices   []string       `json:"vertices"`
	Properties map[string]any `json:"properties,omitempty"`
}

type Item struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	X          float64        `json:"x"`
	Y          float64        `json:"y"`
	Rotation   float64        `json:"rotation"`
	Properties map[string]any `json:"properties,omitempty"`
}

type Layer struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Altitude float64           `json:"altitude"`
	Visible  bool              `json:"visible"`
	Vertices map[string]Vertex `json:"vertices"`
	Lines    map[string]Line   `json:"lines"`
	Holes    map[string]Hole   `json:"holes"`
	Areas    map[string]Area   `json:"areas"`
	Items    map[string]Item   `json:"items"`
}

type Scene struct {
	Unit          string           `json:"unit"`
	Layers        map[string]Layer `json:"layers"`
	SelectedLayer string           `json:"selectedLayer"`
	Width         float64          `json:"width"`
	Height        float64          `json:"height"`
}

// DecodeScene читает сцену планировщика.
func DecodeScene(r io.Reader) (*Scene, error) {
	var s Scene
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode planner scene: %w", err)
	}
	return &s, nil
}

// pickLayer берёт выбранный слой, иначе первый по id.
func pickLayer(s *Scene) (Layer, error) {
	if len(s.Layers) == 0 {
		return Layer{}, fmt.Errorf("scene has no layers")
	}
	if s.SelectedLayer != "" {
		if layer, ok := s.Layers[s.SelectedLayer]; ok {
			return layer, nil
		}
	}
	ids := make([]string, 0, len(s.Layers))
	for id := range s.Layers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return s.Layers[ids[0]], nil
}

// unitScale переводит единицы сцены в метры.
func unitScale(unit string) (float64, error) {
	switch unit {
	case "", "cm":
		return 0.01, nil
	case "mm":
		return 0.001, nil
	case "m":
		return 1, nil
	case "in":
		return 0.0254, nil
	case "ft":
		return 0.3048, nil
	}
	return 0, fmt.Errorf("unknown unit %q", unit)
}

// lengthFromProperties понимает и число, и {"length": n}.
func lengthFromProperties(props map[string]any, key string, def float64) float64 {
	if props == nil {
		return def
	}
	switch v := props[key].(type) {
	case float64:
		return v
	case map[string]any:
		if f, ok := v["length"].(float64); ok {
			return f
		}
	}
	return def
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
