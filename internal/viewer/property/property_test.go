package property

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"property-viewer/internal/viewer/models"
	"property-viewer/internal/viewer/scene"
)

type fakeLoader struct {
	mu     sync.Mutex
	models map[string]scene.Box3
	calls  []string
	block  map[string]bool
}

func (f *fakeLoader) LoadAsset(ctx context.Context, ref string) (*Asset, error) {
	f.mu.Lock()
	f.calls = append(f.calls, ref)
	box, ok := f.models[ref]
	blocked := f.block[ref]
	f.mu.Unlock()

	if blocked {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if !ok {
		return nil, errors.New("404 not found")
	}
	geom := &scene.Geometry{Positions: []mgl64.Vec3{box.Min, box.Max}}
	res := scene.NewResource("model", geom, &scene.Material{Name: ref})
	return &Asset{Model: scene.NewMesh("model", res), Digest: "digest-" + ref, Size: 42}, nil
}

func strPtr(s string) *string { return &s }

func singleFurnitureDesc(id string, modelURL *string) *models.LayoutDescription {
	return &models.LayoutDescription{
		ID:   id,
		Name: "Test flat",
		CameraView: &models.CameraView{
			Position: models.Vec3{X: 5, Y: 5, Z: 5},
		},
		Rooms: []models.RoomDescription{{
			Name: "Living",
			Furniture: []models.FurnitureDescription{{
				Name:     "Sofa",
				Type:     "sofa",
				ModelURL: modelURL,
				Position: &models.Vec3{},
			}},
		}},
	}
}

func mustHydrate(t *testing.T, pool *scene.Pool, desc *models.LayoutDescription) *Layout {
	t.Helper()
	l, err := HydrateLayout(pool, desc)
	require.NoError(t, err)
	return l
}

func TestSessionMutationDoesNotLeakIntoMaster(t *testing.T) {
	pool := scene.NewPool()
	reg := NewRegistry()
	require.NoError(t, reg.RegisterMaster("layout-101", mustHydrate(t, pool, singleFurnitureDesc("layout-101", nil))))

	s1, err := reg.SessionClone("layout-101")
	require.NoError(t, err)
	s1.Room(0).FurnitureAt(0).SetPosition(mgl64.Vec3{1, 0, 1})

	master, ok := reg.Master("layout-101")
	require.True(t, ok)
	assert.Equal(t, mgl64.Vec3{0, 0, 0}, master.Room(0).FurnitureAt(0).Transform().Position)
	assert.Equal(t, mgl64.Vec3{1, 0, 1}, s1.Room(0).FurnitureAt(0).Transform().Position)

	master.Room(0).FurnitureAt(0).SetPosition(mgl64.Vec3{3, 0, 3})
	assert.Equal(t, mgl64.Vec3{1, 0, 1}, s1.Room(0).FurnitureAt(0).Transform().Position)
}

func TestSessionCloneMissing(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.SessionClone("missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing", nf.ID)
	assert.Equal(t, 0, reg.Len())
}

func TestLoadAssetsWithoutModelKeepsPlaceholder(t *testing.T) {
	pool := scene.NewPool()
	layout := mustHydrate(t, pool, singleFurnitureDesc("l", nil))
	loader := &fakeLoader{}

	report := layout.LoadAssets(context.Background(), loader, LoadOptions{})
	assert.Empty(t, report.Results)
	assert.Empty(t, loader.calls)

	sofa := layout.Room(0).FurnitureAt(0)
	assert.False(t, sofa.AssetLoaded())
	require.Equal(t, 1, sofa.Root().NumChildren())
	placeholder := sofa.Root().Child(0)
	assert.Equal(t, "placeholder", placeholder.Name)
	assert.Equal(t, pool.MustGet(scene.KindPlaceholderBox), placeholder.Resource)
}

func TestClonesShareWallResources(t *testing.T) {
	pool := scene.NewPool()
	reg := NewRegistry()
	require.NoError(t, reg.RegisterMaster("l", mustHydrate(t, pool, singleFurnitureDesc("l", nil))))

	s1, err := reg.SessionClone("l")
	require.NoError(t, err)
	s2, err := reg.SessionClone("l")
	require.NoError(t, err)

	w1 := s1.Room(0).Walls()[0]
	w2 := s2.Room(0).Walls()[0]
	assert.Same(t, w1.ResourceHandle(), w2.ResourceHandle())
	assert.NotEqual(t, w1.Root().ID, w2.Root().ID)
	assert.NotSame(t, s1, s2)
}

func TestFurnitureAssetNormalization(t *testing.T) {
	pool := scene.NewPool()
	f, err := HydrateFurniture(pool, models.FurnitureDescription{
		Name:     "Table",
		Type:     "table",
		ModelURL: strPtr("table.obj"),
		Position: &models.Vec3{X: 2},
		Scale:    &models.Vec3{X: 2, Y: 2, Z: 2},
	})
	require.NoError(t, err)
	rootID := f.Root().ID

	loader := &fakeLoader{models: map[string]scene.Box3{
		"table.obj": scene.NewBox3(mgl64.Vec3{1, 0, 0}, mgl64.Vec3{5, 2, 3}),
	}}
	asset, norm, err := f.HydrateAsset(context.Background(), loader)
	require.NoError(t, err)
	require.NotNil(t, asset)

	assert.InDelta(t, 0.25, norm.ScaleFactor, 1e-12)
	assert.InDelta(t, 0.25, f.AssetScale(), 1e-12)
	assert.True(t, norm.Center.ApproxEqual(mgl64.Vec3{3, 1, 1.5}))

	assert.Equal(t, rootID, f.Root().ID)
	assert.Equal(t, mgl64.Vec3{2, 0, 0}, f.Transform().Position)
	assert.Equal(t, mgl64.Vec3{2, 2, 2}, f.Transform().Scale)

	wrapper := f.Root().Child(0)
	require.NotNil(t, wrapper)
	assert.Equal(t, 1, f.Root().NumChildren())
	box := wrapper.Bounds()
	assert.True(t, box.Center().ApproxEqualThreshold(mgl64.Vec3{}, 1e-9))
}

func TestLoadAssetsBestEffort(t *testing.T) {
	pool := scene.NewPool()
	desc := &models.LayoutDescription{
		ID: "mixed",
		Rooms: []models.RoomDescription{{
			Name: "Kitchen",
			Furniture: []models.FurnitureDescription{
				{Name: "Broken", Type: "chair", ModelURL: strPtr("missing.obj")},
				{Name: "Fridge", Type: "fridge", ModelURL: strPtr("fridge.obj")},
				{Name: "Box", Type: "box"},
			},
		}},
	}
	layout := mustHydrate(t, pool, desc)
	loader := &fakeLoader{models: map[string]scene.Box3{
		"fridge.obj": scene.NewBox3(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 2, 1}),
	}}

	var seen []string
	report := layout.LoadAssets(context.Background(), loader, LoadOptions{
		Concurrency: 2,
		OnResult:    func(r AssetResult) { seen = append(seen, r.Furniture) },
	})
	require.Len(t, report.Results, 2)
	assert.Equal(t, 1, report.Loaded())
	assert.Equal(t, 1, report.Failed())
	assert.ErrorIs(t, report.Err(), ErrAssetFetch)
	assert.Equal(t, []string{"Broken", "Fridge"}, seen)

	failure := report.Failures()[0]
	assert.Equal(t, "Broken", failure.Furniture)
	var fetchErr *AssetFetchError
	require.ErrorAs(t, failure.Err, &fetchErr)
	assert.Equal(t, "missing.obj", fetchErr.Ref)

	broken := layout.Room(0).FurnitureAt(0)
	assert.False(t, broken.AssetLoaded())
	assert.Equal(t, "placeholder", broken.Root().Child(0).Name)

	fridge := layout.Room(0).FurnitureAt(1)
	assert.True(t, fridge.AssetLoaded())
	assert.Equal(t, "asset", fridge.Root().Child(0).Name)
	assert.InDelta(t, 0.5, fridge.AssetScale(), 1e-12)
	assert.Equal(t, "digest-fridge.obj", report.Results[1].Digest)
}

func TestLoadAssetsPerTaskTimeout(t *testing.T) {
	pool := scene.NewPool()
	desc := &models.LayoutDescription{
		ID: "slow",
		Rooms: []models.RoomDescription{{
			Name: "Hall",
			Furniture: []models.FurnitureDescription{
				{Name: "Stuck", Type: "lamp", ModelURL: strPtr("stuck.obj")},
				{Name: "Fast", Type: "lamp", ModelURL: strPtr("fast.obj")},
			},
		}},
	}
	layout := mustHydrate(t, pool, desc)
	loader := &fakeLoader{
		models: map[string]scene.Box3{"fast.obj": scene.NewBox3(mgl64.Vec3{}, mgl64.Vec3{1, 1, 1})},
		block:  map[string]bool{"stuck.obj": true},
	}

	report := layout.LoadAssets(context.Background(), loader, LoadOptions{Timeout: 50 * time.Millisecond})
	require.Len(t, report.Results, 2)
	assert.ErrorIs(t, report.Results[0].Err, context.DeadlineExceeded)
	assert.NoError(t, report.Results[1].Err)
}

func TestLoadAssetsNilLoaderFailsEachItem(t *testing.T) {
	layout := mustHydrate(t, scene.NewPool(), singleFurnitureDesc("l", strPtr("sofa.obj")))
	report := layout.LoadAssets(context.Background(), nil, LoadOptions{})
	require.Len(t, report.Results, 1)
	assert.ErrorIs(t, report.Results[0].Err, ErrAssetFetch)
}

func TestCloneFreshIDsEverywhereExceptLayoutRoot(t *testing.T) {
	pool := scene.NewPool()
	master := mustHydrate(t, pool, singleFurnitureDesc("layout-7", nil))
	clone := master.Clone()

	assert.Equal(t, master.Root().ID, clone.Root().ID)
	assert.Equal(t, "layout-7", clone.Root().ID)

	ids := map[string]bool{}
	for _, room := range master.Rooms() {
		room.Root().Walk(func(n *scene.Node) bool {
			ids[n.ID] = true
			return true
		})
	}
	for _, room := range clone.Rooms() {
		room.Root().Walk(func(n *scene.Node) bool {
			assert.False(t, ids[n.ID], "node %s reused id", n.Name)
			return true
		})
	}
	assert.Equal(t, master.Root().Count(), clone.Root().Count())
}

func TestCloneResetsMasterFlagAndCopiesCamera(t *testing.T) {
	pool := scene.NewPool()
	reg := NewRegistry()
	master := mustHydrate(t, pool, singleFurnitureDesc("l", nil))
	require.NoError(t, reg.RegisterMaster("l", master))
	assert.True(t, master.IsMaster())

	clone, err := reg.SessionClone("l")
	require.NoError(t, err)
	assert.False(t, clone.IsMaster())

	cam, ok := clone.CameraView()
	require.True(t, ok)
	assert.Equal(t, mgl64.Vec3{5, 5, 5}, cam.Position)
	cam.Position = mgl64.Vec3{}
	again, _ := clone.CameraView()
	assert.Equal(t, mgl64.Vec3{5, 5, 5}, again.Position)

	assert.False(t, clone.Clone().IsMaster())
}

func TestRoomCloneRegeneratesWalls(t *testing.T) {
	pool := scene.NewPool()
	room, err := HydrateRoom(pool, models.RoomDescription{
		Name:   "Bedroom",
		Width:  ptr(4.0),
		Depth:  ptr(3.0),
		Height: ptr(2.7),
	})
	require.NoError(t, err)

	room.walls[0].node.Transform.Scale = mgl64.Vec3{9, 9, 9}
	room.walls = room.walls[:2]

	cp := room.Clone()
	walls := cp.Walls()
	require.Len(t, walls, 4)

	expected := [][3]float64{
		{4, 2.7, WallThickness},
		{4, 2.7, WallThickness},
		{WallThickness, 2.7, 3},
		{WallThickness, 2.7, 3},
	}
	for i, w := range walls {
		assert.Equal(t, expected[i], [3]float64{w.Width(), w.Height(), w.Depth()})
		assert.Equal(t, mgl64.Vec3{w.Width(), w.Height(), w.Depth()}, w.Root().Transform.Scale)
	}
	assert.Equal(t, mgl64.Vec3{0, 1.35, -1.5}, walls[0].Root().Transform.Position)
	assert.Equal(t, mgl64.Vec3{2, 1.35, 0}, walls[3].Root().Transform.Position)
}

func TestRoomDefaults(t *testing.T) {
	room, err := HydrateRoom(scene.NewPool(), models.RoomDescription{Name: "Hall"})
	require.NoError(t, err)
	assert.Equal(t, DefaultRoomSize, room.Width())
	assert.Equal(t, DefaultRoomSize, room.Depth())
	assert.Equal(t, DefaultWallHeight, room.Height())
	assert.Len(t, room.Walls(), 4)
	assert.Empty(t, room.Furniture())
}

func ptr(v float64) *float64 { return &v }

func TestHydrateMalformed(t *testing.T) {
	pool := scene.NewPool()
	tests := []struct {
		name  string
		desc  *models.LayoutDescription
		field string
	}{
		{"missing id", &models.LayoutDescription{Rooms: []models.RoomDescription{}}, "id"},
		{"missing rooms", &models.LayoutDescription{ID: "x"}, "rooms"},
		{"room without name", &models.LayoutDescription{ID: "x", Rooms: []models.RoomDescription{{}}}, "name"},
		{"negative width", &models.LayoutDescription{ID: "x", Rooms: []models.RoomDescription{{Name: "A", Width: ptr(-1)}}}, "A.width"},
		{"furniture without type", &models.LayoutDescription{ID: "x", Rooms: []models.RoomDescription{{
			Name:      "A",
			Furniture: []models.FurnitureDescription{{Name: "Chair"}},
		}}}, "Chair.type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := HydrateLayout(pool, tt.desc)
			require.Error(t, err)
			assert.Nil(t, l)
			assert.ErrorIs(t, err, ErrMalformedDescription)
			var me *MalformedDescriptionError
			require.ErrorAs(t, err, &me)
			assert.Equal(t, tt.field, me.Field)
		})
	}
}

func TestDecodeLayout(t *testing.T) {
	payload := `{
		"id": "layout-101",
		"name": "Two rooms",
		"cameraView": {"position": {"x": 1, "y": 2, "z": 3}, "lookAt": {"x": 0, "y": 0, "z": 0}},
		"rooms": [
			{"name": "Living", "width": 6, "depth": 4, "furniture": [
				{"name": "Sofa", "type": "sofa", "modelUrl": null, "rotation": {"x": 0, "y": 1.57, "z": 0}}
			]},
			{"name": "Bath"}
		]
	}`
	l, err := DecodeLayout(scene.NewPool(), strings.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, "layout-101", l.ID)
	assert.Len(t, l.Rooms(), 2)
	assert.Len(t, l.Furniture(), 1)

	sofa := l.Furniture()[0]
	_, hasModel := sofa.ModelURL()
	assert.False(t, hasModel)
	assert.Equal(t, mgl64.Vec3{0, 1.57, 0}, sofa.Transform().Rotation)
	assert.Equal(t, mgl64.Vec3{1, 1, 1}, sofa.Transform().Scale)

	_, err = DecodeLayout(scene.NewPool(), strings.NewReader(`{"id":`))
	assert.ErrorIs(t, err, ErrMalformedDescription)
}

func TestDisposeReleasesOnlyOwnedBuffers(t *testing.T) {
	pool := scene.NewPool()
	reg := NewRegistry()
	master := mustHydrate(t, pool, singleFurnitureDesc("l", strPtr("sofa.obj")))
	loader := &fakeLoader{models: map[string]scene.Box3{
		"sofa.obj": scene.NewBox3(mgl64.Vec3{}, mgl64.Vec3{2, 1, 1}),
	}}
	report := master.LoadAssets(context.Background(), loader, LoadOptions{})
	require.NoError(t, report.Err())
	require.NoError(t, reg.RegisterMaster("l", master))

	var loaded *scene.Resource
	master.Furniture()[0].Root().Walk(func(n *scene.Node) bool {
		if n.Resource != nil && !n.Resource.Pooled() {
			loaded = n.Resource
		}
		return true
	})
	require.NotNil(t, loaded)

	session, err := reg.SessionClone("l")
	require.NoError(t, err)
	assert.Equal(t, int64(2), loaded.Refs())

	session.Dispose()
	session.Dispose()
	assert.True(t, session.Disposed())
	assert.False(t, loaded.Released())
	assert.Equal(t, int64(1), loaded.Refs())

	wall := pool.MustGet(scene.KindWallBox)
	assert.False(t, wall.Released())
	assert.NotNil(t, wall.Geometry)
}

func TestRegistryOverwriteKeepsSessionsAlive(t *testing.T) {
	pool := scene.NewPool()
	reg := NewRegistry()
	loader := &fakeLoader{models: map[string]scene.Box3{
		"sofa.obj": scene.NewBox3(mgl64.Vec3{}, mgl64.Vec3{1, 1, 1}),
	}}

	first := mustHydrate(t, pool, singleFurnitureDesc("l", strPtr("sofa.obj")))
	first.LoadAssets(context.Background(), loader, LoadOptions{})
	require.NoError(t, reg.RegisterMaster("l", first))
	session, err := reg.SessionClone("l")
	require.NoError(t, err)

	second := mustHydrate(t, pool, singleFurnitureDesc("l", nil))
	require.NoError(t, reg.RegisterMaster("l", second))

	assert.Equal(t, 1, reg.Len())
	assert.False(t, first.IsMaster())
	assert.True(t, first.Disposed())
	assert.True(t, second.IsMaster())

	var alive int
	session.Root().Walk(func(n *scene.Node) bool {
		if n.Resource != nil && !n.Resource.Pooled() {
			assert.False(t, n.Resource.Released())
			assert.NotNil(t, n.Resource.Geometry)
			alive++
		}
		return true
	})
	assert.Equal(t, 1, alive)

	current, ok := reg.Master("l")
	require.True(t, ok)
	assert.Same(t, second, current)
}

func TestRegistryConcurrentClones(t *testing.T) {
	pool := scene.NewPool()
	reg := NewRegistry()
	require.NoError(t, reg.RegisterMaster("l", mustHydrate(t, pool, singleFurnitureDesc("l", nil))))

	const n = 16
	clones := make([]*Layout, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := reg.SessionClone("l")
			if err == nil {
				c.Room(0).FurnitureAt(0).SetPosition(mgl64.Vec3{float64(i), 0, 0})
			}
			clones[i] = c
		}(i)
	}
	wg.Wait()

	for i, c := range clones {
		require.NotNil(t, c)
		assert.Equal(t, mgl64.Vec3{float64(i), 0, 0}, c.Room(0).FurnitureAt(0).Transform().Position)
	}
	assert.Equal(t, []string{"l"}, reg.IDs())
}

func TestRegisterMasterValidation(t *testing.T) {
	reg := NewRegistry()
	assert.Error(t, reg.RegisterMaster("", mustHydrate(t, scene.NewPool(), singleFurnitureDesc("l", nil))))
	assert.Error(t, reg.RegisterMaster("l", nil))
	assert.Equal(t, 0, reg.Len())
}

func TestPoolFailureIsFatal(t *testing.T) {
	pool := scene.NewPool()
	pool.Register(scene.KindPlaceholderBox, func() (*scene.Resource, error) {
		return nil, errors.New("gpu lost")
	})
	_, err := HydrateLayout(pool, singleFurnitureDesc("l", nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResourcePool)
}

func TestEntityKinds(t *testing.T) {
	layout := mustHydrate(t, scene.NewPool(), singleFurnitureDesc("l", nil))
	entities := []Entity{layout, layout.Room(0), layout.Room(0).Walls()[0], layout.Furniture()[0]}
	kinds := []Kind{KindLayout, KindRoom, KindWall, KindFurniture}
	for i, e := range entities {
		assert.Equal(t, kinds[i], e.Kind())
		cp := e.CloneEntity()
		assert.Equal(t, e.Kind(), cp.Kind())
		assert.NotSame(t, e.Root(), cp.Root())
		cp.Dispose()
	}
	assert.Equal(t, "furniture", KindFurniture.String())
}
