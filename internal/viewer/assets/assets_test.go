package assets

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"property-viewer/internal/viewer/blob"
	"property-viewer/internal/viewer/models"
	"property-viewer/internal/viewer/property"
	"property-viewer/internal/viewer/scene"
)

const cubeOBJ = `# 4x2x2 box
o body
v 0 0 0
v 4 0 0
v 4 2 0
v 0 2 0
v 0 0 2
v 4 0 2
v 4 2 2
v 0 2 2
usemtl oak
f 1 2 3 4
f 5/1 6/2 7/3 8/4
g legs
f -8//1 -7//1 -3//1
`

func zstdBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close()
	return enc.EncodeAll(data, nil)
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDecodeOBJ(t *testing.T) {
	root, err := DecodeOBJ("models/box.obj", strings.NewReader(cubeOBJ))
	require.NoError(t, err)
	assert.Equal(t, "box.obj", root.Name)
	require.Equal(t, 2, root.NumChildren())

	body := root.Child(0)
	assert.Equal(t, "body", body.Name)
	assert.Equal(t, KindModel, body.Resource.Kind)
	assert.Equal(t, "oak", body.Resource.Material.Name)
	assert.Len(t, body.Resource.Geometry.Indices, 12)

	legs := root.Child(1)
	assert.Equal(t, "legs", legs.Name)
	assert.Equal(t, []uint32{0, 1, 2}, legs.Resource.Geometry.Indices)
	assert.Equal(t, []mgl64.Vec3{{0, 0, 0}, {4, 0, 0}, {4, 0, 2}}, legs.Resource.Geometry.Positions)

	box := root.Bounds()
	assert.Equal(t, mgl64.Vec3{4, 2, 2}, box.Size())
}

func TestDecodeOBJErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"no vertices", "o empty\n"},
		{"short vertex", "v 1 2\n"},
		{"bad number", "v 1 x 3\n"},
		{"index out of range", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 9\n"},
		{"short face", "v 0 0 0\nv 1 0 0\nf 1 2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeOBJ("x.obj", strings.NewReader(tt.src))
			assert.Error(t, err)
		})
	}
}

func TestDecompress(t *testing.T) {
	raw := []byte(cubeOBJ)

	name, out, err := Decompress("chair.obj.zst", zstdBytes(t, raw), 0)
	require.NoError(t, err)
	assert.Equal(t, "chair.obj", name)
	assert.Equal(t, raw, out)

	name, out, err = Decompress("chair.obj.gz", gzipBytes(t, raw), 0)
	require.NoError(t, err)
	assert.Equal(t, "chair.obj", name)
	assert.Equal(t, raw, out)

	name, out, err = Decompress("chair.obj", raw, 0)
	require.NoError(t, err)
	assert.Equal(t, "chair.obj", name)
	assert.Equal(t, raw, out)
}

func TestDecompressRespectsLimit(t *testing.T) {
	raw := []byte(cubeOBJ)
	limit := int64(len(raw) - 1)

	_, _, err := Decompress("chair.obj.zst", zstdBytes(t, raw), limit)
	assert.ErrorIs(t, err, ErrTooLarge)

	_, _, err = Decompress("chair.obj.gz", gzipBytes(t, raw), limit)
	assert.ErrorIs(t, err, ErrTooLarge)

	_, out, err := Decompress("chair.obj.zst", zstdBytes(t, raw), int64(len(raw)))
	require.NoError(t, err)
	assert.Equal(t, raw, out)
}

// Маленький сжатый файл не должен раскрываться сверх лимита загрузчика.
func TestLoaderRejectsOversizedDecompression(t *testing.T) {
	ctx := context.Background()
	big := []byte(strings.Repeat("v 0 0 0\n", 1<<17))
	store := blob.NewMemory()
	for key, data := range map[string][]byte{
		"catalog/big.obj.zst": zstdBytes(t, big),
		"catalog/big.obj.gz":  gzipBytes(t, big),
	} {
		require.Less(t, len(data), 4096, key)
		_, err := store.Put(ctx, key, bytes.NewReader(data), blob.PutOptions{})
		require.NoError(t, err)
	}

	loader := NewLoader(&Router{Blob: &BlobFetcher{Store: store, MaxBytes: 4096}}, 0)
	loader.MaxBytes = 4096
	for _, ref := range []string{"blob://catalog/big.obj.zst", "blob://catalog/big.obj.gz"} {
		_, err := loader.LoadAsset(ctx, ref)
		assert.ErrorIs(t, err, ErrTooLarge, ref)
	}
}

func TestDecodeOBJGroupBounds(t *testing.T) {
	src := "v 0 0 0\nv 1 0 0\nv 0 1 0\nv 10 10 10\nv 11 10 10\nv 10 11 10\n" +
		"o near\nf 1 2 3\no far\nf 4 5 6\n"
	root, err := DecodeOBJ("pair.obj", strings.NewReader(src))
	require.NoError(t, err)
	require.Equal(t, 2, root.NumChildren())

	near := root.Child(0).Resource.Geometry.Bounds()
	assert.Equal(t, mgl64.Vec3{0, 0, 0}, near.Min)
	assert.Equal(t, mgl64.Vec3{1, 1, 0}, near.Max)

	far := root.Child(1).Resource.Geometry.Bounds()
	assert.Equal(t, mgl64.Vec3{10, 10, 10}, far.Min)
	assert.Equal(t, mgl64.Vec3{11, 11, 10}, far.Max)

	assert.Equal(t, mgl64.Vec3{11, 11, 10}, root.Bounds().Size())
}

func TestDecodeRejectsUnknownFormat(t *testing.T) {
	_, err := Decode("chair.fbx", []byte("binary"))
	assert.ErrorIs(t, err, ErrUnsupportedRef)
}

func TestHTTPFetcher(t *testing.T) {
	compressed := zstdBytes(t, []byte(cubeOBJ))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/models/box.obj":
			w.Header().Set("Content-Type", "model/obj")
			_, _ = io.WriteString(w, cubeOBJ)
		case "/models/box.obj.zst":
			_, _ = w.Write(compressed)
		case "/slow.obj":
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := &HTTPFetcher{Client: srv.Client()}
	p, err := f.Fetch(context.Background(), srv.URL+"/models/box.obj?v=2")
	require.NoError(t, err)
	assert.Equal(t, "/models/box.obj", p.Name)
	assert.Equal(t, "model/obj", p.ContentType)
	assert.Equal(t, cubeOBJ, string(p.Data))

	_, err = f.Fetch(context.Background(), srv.URL+"/missing.obj")
	assert.ErrorContains(t, err, "404")

	small := &HTTPFetcher{Client: srv.Client(), MaxBytes: 10}
	_, err = small.Fetch(context.Background(), srv.URL+"/models/box.obj")
	assert.ErrorIs(t, err, ErrTooLarge)

	loader := NewLoader(&Router{HTTP: f}, 50*time.Millisecond)
	_, err = loader.LoadAsset(context.Background(), srv.URL+"/slow.obj")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	asset, err := loader.LoadAsset(context.Background(), srv.URL+"/models/box.obj.zst")
	require.NoError(t, err)
	assert.Equal(t, 2, asset.Model.NumChildren())
	assert.Len(t, asset.Digest, 64)
}

func TestBlobFetcherAndRouter(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	_, err := store.Put(ctx, "catalog/box.obj.gz", bytes.NewReader(gzipBytes(t, []byte(cubeOBJ))), blob.PutOptions{})
	require.NoError(t, err)

	loader := NewLoader(&Router{Blob: &BlobFetcher{Store: store}}, 0)

	for _, ref := range []string{"blob://catalog/box.obj.gz", "catalog/box.obj.gz"} {
		asset, err := loader.LoadAsset(ctx, ref)
		require.NoError(t, err, ref)
		assert.Equal(t, "box.obj", asset.Model.Name)
		assert.Positive(t, asset.Size)
	}

	_, err = loader.LoadAsset(ctx, "blob://catalog/missing.obj")
	assert.ErrorIs(t, err, blob.ErrNotFound)

	_, err = loader.LoadAsset(ctx, "ftp://host/box.obj")
	assert.ErrorIs(t, err, ErrUnsupportedRef)

	_, err = loader.LoadAsset(ctx, "https://example.com/box.obj")
	assert.ErrorIs(t, err, ErrUnsupportedRef)
}

type s3Only struct {
	blob.S3API
	objects map[string]string
}

func (s *s3Only) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := s.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("access denied")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(data))}, nil
}

func TestS3Fetcher(t *testing.T) {
	client := &s3Only{objects: map[string]string{"furniture/sofa/model.obj": cubeOBJ}}
	f := &S3Fetcher{Store: blob.NewS3WithClient(client, "assets")}

	p, err := f.Fetch(context.Background(), "s3://furniture/sofa/model.obj")
	require.NoError(t, err)
	assert.Equal(t, "sofa/model.obj", p.Name)

	_, err = f.Fetch(context.Background(), "s3://furniture/")
	assert.ErrorIs(t, err, ErrUnsupportedRef)

	_, err = (&S3Fetcher{}).Fetch(context.Background(), "s3://furniture/sofa/model.obj")
	assert.ErrorIs(t, err, ErrUnsupportedRef)
}

func TestLoaderHydratesLayout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/box.obj" {
			_, _ = io.WriteString(w, cubeOBJ)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	good := srv.URL + "/box.obj"
	bad := srv.URL + "/gone.obj"
	desc := &models.LayoutDescription{
		ID: "layout-101",
		Rooms: []models.RoomDescription{{
			Name: "Living",
			Furniture: []models.FurnitureDescription{
				{Name: "Sofa", Type: "sofa", ModelURL: &good},
				{Name: "Lamp", Type: "lamp", ModelURL: &bad},
			},
		}},
	}
	layout, err := property.HydrateLayout(scene.NewPool(), desc)
	require.NoError(t, err)

	loader := NewLoader(&Router{HTTP: &HTTPFetcher{Client: srv.Client()}}, time.Second)
	report := layout.LoadAssets(context.Background(), loader, property.LoadOptions{Concurrency: 2})
	assert.Equal(t, 1, report.Loaded())
	assert.Equal(t, 1, report.Failed())

	sofa := layout.Furniture()[0]
	assert.True(t, sofa.AssetLoaded())
	assert.InDelta(t, 0.25, sofa.AssetScale(), 1e-12)
	assert.False(t, layout.Furniture()[1].AssetLoaded())
}
