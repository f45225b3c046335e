// Package assets загружает внешние 3D-модели мебели: HTTP, blob-хранилище, S3.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"property-viewer/internal/viewer/blob"
)

// DefaultMaxBytes ограничивает размер одной модели.
const DefaultMaxBytes = 64 << 20

var (
	ErrUnsupportedRef = errors.New("unsupported asset reference")
	ErrTooLarge       = errors.New("asset exceeds size limit")
)

// Payload: сырые байты модели.
type Payload struct {
	Ref         string
	Name        string
	ContentType string
	Data        []byte
}

// Fetcher получает сырые байты по ссылке.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) (*Payload, error)
}

// ============================================================
// HTTP
// ============================================================

// HTTPFetcher скачивает модели по http(s).
type HTTPFetcher struct {
	Client   *http.Client
	MaxBytes int64
}

func (f *HTTPFetcher) Fetch(ctx context.Context, ref string) (*Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", ref, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %s: unexpected status %d", ref, resp.StatusCode)
	}

	data, err := readLimited(resp.Body, f.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ref, err)
	}

	name := ref
	if u, err := url.Parse(ref); err == nil {
		name = u.Path
	}
	return &Payload{
		Ref:         ref,
		Name:        name,
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// ============================================================
// Blob store
// ============================================================

// BlobFetcher читает модели из blob-хранилища по ключу (blob://key или просто key).
type BlobFetcher struct {
	Store    blob.Store
	MaxBytes int64
}

func (f *BlobFetcher) Fetch(ctx context.Context, ref string) (*Payload, error) {
	if f.Store == nil {
		return nil, fmt.Errorf("%w: no blob store for %s", ErrUnsupportedRef, ref)
	}
	key := strings.TrimPrefix(ref, "blob://")
	return fetchBlob(ctx, f.Store, ref, key, f.MaxBytes)
}

// S3Fetcher читает s3://bucket/key через клиента S3-хранилища.
type S3Fetcher struct {
	Store    *blob.S3Store
	MaxBytes int64
}

func (f *S3Fetcher) Fetch(ctx context.Context, ref string) (*Payload, error) {
	if f.Store == nil {
		return nil, fmt.Errorf("%w: s3 is not configured for %s", ErrUnsupportedRef, ref)
	}
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", ref, err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRef, ref)
	}
	return fetchBlob(ctx, f.Store.WithBucket(u.Host), ref, key, f.MaxBytes)
}

func fetchBlob(ctx context.Context, store blob.Store, ref, key string, limit int64) (*Payload, error) {
	info, rc, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := readLimited(rc, limit)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ref, err)
	}
	return &Payload{Ref: ref, Name: key, ContentType: info.ContentType, Data: data}, nil
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrTooLarge
	}
	return data, nil
}

// ============================================================
// Router
// ============================================================

// Router выбирает Fetcher по схеме ссылки. Ссылка без схемы считается ключом blob-хранилища.
type Router struct {
	HTTP Fetcher
	Blob Fetcher
	S3   Fetcher
}

func (r *Router) Fetch(ctx context.Context, ref string) (*Payload, error) {
	next, err := r.route(ref)
	if err != nil {
		return nil, err
	}
	return next.Fetch(ctx, ref)
}

func (r *Router) route(ref string) (Fetcher, error) {
	scheme := ""
	if i := strings.Index(ref, "://"); i > 0 {
		scheme = strings.ToLower(ref[:i])
	}

	var next Fetcher
	switch scheme {
	case "http", "https":
		next = r.HTTP
	case "s3":
		next = r.S3
	case "blob", "":
		next = r.Blob
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRef, ref)
	}
	if next == nil {
		log.Printf("[ASSETS] warn: no fetcher for scheme %q", scheme)
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRef, ref)
	}
	return next, nil
}
