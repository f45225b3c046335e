package property

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"property-viewer/internal/viewer/models"
	"property-viewer/internal/viewer/scene"
)

// ============================================================
// Furniture
// ============================================================

// Asset: загруженная, ещё не нормализованная модель.
type Asset struct {
	Model  *scene.Node
	Digest string
	Size   int64
}

// AssetLoader получает и декодирует внешнюю 3D-модель по ссылке.
type AssetLoader interface {
	LoadAsset(ctx context.Context, ref string) (*Asset, error)
}

// Furniture: предмет мебели. Корневой узел сначала содержит заглушку
// (общий куб из пула), после загрузки модели нормализованное поддерево.
type Furniture struct {
	name     string
	typ      string
	modelURL string
	root     *scene.Node

	assetLoaded bool
	assetScale  float64
	assetDigest string
	disposed    bool
}

// HydrateFurniture строит мебель из описания.
func HydrateFurniture(pool *scene.Pool, desc models.FurnitureDescription) (*Furniture, error) {
	if strings.TrimSpace(desc.Name) == "" {
		return nil, malformed("furniture", "name", "")
	}
	if strings.TrimSpace(desc.Type) == "" {
		return nil, malformed("furniture", desc.Name+".type", "")
	}

	placeholder, err := pool.Get(scene.KindPlaceholderBox)
	if err != nil {
		return nil, err
	}

	root := scene.NewNode(desc.Name)
	if desc.Position != nil {
		root.Transform.Position = vec(*desc.Position)
	}
	if desc.Rotation != nil {
		root.Transform.Rotation = vec(*desc.Rotation)
	}
	if desc.Scale != nil {
		scale := vec(*desc.Scale)
		if scale[0] <= 0 || scale[1] <= 0 || scale[2] <= 0 {
			return nil, malformed("furniture", desc.Name+".scale", "must be positive")
		}
		root.Transform.Scale = scale
	}
	root.Add(scene.NewMesh("placeholder", placeholder))

	f := &Furniture{
		name: desc.Name,
		typ:  desc.Type,
		root: root,
	}
	if desc.ModelURL != nil {
		f.modelURL = strings.TrimSpace(*desc.ModelURL)
	}
	return f, nil
}

func (f *Furniture) Name() string { return f.name }
func (f *Furniture) Type() string { return f.typ }

// ModelURL возвращает ссылку на модель, если она задана.
func (f *Furniture) ModelURL() (string, bool) {
	return f.modelURL, f.modelURL != ""
}

func (f *Furniture) Kind() Kind { return KindFurniture }

func (f *Furniture) Root() *scene.Node { return f.root }

// AssetLoaded сообщает, заменена ли заглушка загруженной моделью.
func (f *Furniture) AssetLoaded() bool { return f.assetLoaded }

// AssetScale: коэффициент нормализации модели (0, пока модель не загружена).
func (f *Furniture) AssetScale() float64 { return f.assetScale }

func (f *Furniture) AssetDigest() string { return f.assetDigest }

func (f *Furniture) Transform() scene.Transform { return f.root.Transform }

func (f *Furniture) SetTransform(t scene.Transform) { f.root.Transform = t }

func (f *Furniture) SetPosition(p mgl64.Vec3) { f.root.Transform.Position = p }

func (f *Furniture) SetRotation(r mgl64.Vec3) { f.root.Transform.Rotation = r }

// HydrateAsset загружает модель, нормализует её и подменяет заглушку.
// Корневой узел и его трансформация сохраняются. При ошибке заглушка
// остаётся на месте, ошибка имеет тип *AssetFetchError.
func (f *Furniture) HydrateAsset(ctx context.Context, loader AssetLoader) (*Asset, scene.Normalized, error) {
	if f.modelURL == "" {
		return nil, scene.Normalized{}, nil
	}
	if loader == nil {
		return nil, scene.Normalized{}, f.fetchError(errors.New("no asset loader configured"))
	}

	asset, err := loader.LoadAsset(ctx, f.modelURL)
	if err != nil {
		return nil, scene.Normalized{}, f.fetchError(err)
	}
	if asset == nil || asset.Model == nil {
		return nil, scene.Normalized{}, f.fetchError(errors.New("loader returned no model"))
	}

	norm, err := scene.Normalize(asset.Model)
	if err != nil {
		asset.Model.ReleaseResources()
		return nil, scene.Normalized{}, f.fetchError(fmt.Errorf("normalize: %w", err))
	}

	for _, old := range f.root.Detach() {
		old.ReleaseResources()
	}
	f.root.Add(norm.Node)
	f.assetLoaded = true
	f.assetScale = norm.ScaleFactor
	f.assetDigest = asset.Digest
	return asset, norm, nil
}

func (f *Furniture) fetchError(err error) error {
	return &AssetFetchError{Furniture: f.name, Ref: f.modelURL, Err: err}
}

// Clone копирует мебель вместе с текущим поддеревом (заглушкой или моделью).
func (f *Furniture) Clone() *Furniture {
	return &Furniture{
		name:        f.name,
		typ:         f.typ,
		modelURL:    f.modelURL,
		root:        f.root.Clone(),
		assetLoaded: f.assetLoaded,
		assetScale:  f.assetScale,
		assetDigest: f.assetDigest,
	}
}

func (f *Furniture) CloneEntity() Entity { return f.Clone() }

// Dispose снимает ссылки на буферы загруженной модели.
func (f *Furniture) Dispose() {
	if f.disposed {
		return
	}
	f.disposed = true
	f.root.ReleaseResources()
}

func (f *Furniture) sealed() {}

func vec(v models.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}
