package property

import (
	"errors"
	"fmt"

	"property-viewer/internal/viewer/scene"
)

// ============================================================
// Errors
// ============================================================

var (
	ErrMalformedDescription = errors.New("malformed description")
	ErrAssetFetch           = errors.New("asset fetch failed")
	ErrNotFound             = errors.New("layout not found")
	ErrResourcePool         = scene.ErrResourcePool
)

// MalformedDescriptionError: в описании нет обязательного поля или оно некорректно.
type MalformedDescriptionError struct {
	Entity string
	Field  string
	Reason string
}

func (e *MalformedDescriptionError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "required"
	}
	return fmt.Sprintf("malformed %s description: %s: %s", e.Entity, e.Field, reason)
}

func (e *MalformedDescriptionError) Unwrap() error {
	return ErrMalformedDescription
}

func malformed(entity, field, reason string) error {
	return &MalformedDescriptionError{Entity: entity, Field: field, Reason: reason}
}

// AssetFetchError: не удалось получить или нормализовать модель мебели.
type AssetFetchError struct {
	Furniture string
	Ref       string
	Err       error
}

func (e *AssetFetchError) Error() string {
	return fmt.Sprintf("asset %q for %q: %v", e.Ref, e.Furniture, e.Err)
}

func (e *AssetFetchError) Unwrap() []error {
	return []error{ErrAssetFetch, e.Err}
}

// NotFoundError: в реестре нет мастера с таким идентификатором.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("layout %s not found", e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}
