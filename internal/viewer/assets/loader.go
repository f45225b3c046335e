package assets

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"github.com/zeebo/blake3"

	"property-viewer/internal/viewer/property"
)

// Loader реализует property.AssetLoader: скачивание, распаковка, разбор.
type Loader struct {
	Fetcher Fetcher
	// FetchTimeout ограничивает одно скачивание (0 = без ограничения).
	FetchTimeout time.Duration
	// MaxBytes ограничивает распакованную модель (0 = DefaultMaxBytes).
	MaxBytes int64
}

var _ property.AssetLoader = (*Loader)(nil)

func NewLoader(f Fetcher, fetchTimeout time.Duration) *Loader {
	return &Loader{Fetcher: f, FetchTimeout: fetchTimeout}
}

func (l *Loader) LoadAsset(ctx context.Context, ref string) (*property.Asset, error) {
	if l.Fetcher == nil {
		return nil, fmt.Errorf("%w: no fetcher configured", ErrUnsupportedRef)
	}

	fetchCtx := ctx
	if l.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, l.FetchTimeout)
		defer cancel()
	}

	started := time.Now()
	payload, err := l.Fetcher.Fetch(fetchCtx, ref)
	if err != nil {
		return nil, err
	}

	name, data, err := Decompress(payload.Name, payload.Data, l.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", ref, err)
	}
	model, err := Decode(name, data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", ref, err)
	}

	digest := Digest(payload.Data)
	log.Printf("[ASSETS] loaded %s (%d bytes, %s) in %s", ref, len(payload.Data), digest[:12], time.Since(started))
	return &property.Asset{Model: model, Digest: digest, Size: int64(len(payload.Data))}, nil
}

// Digest: blake3 исходных (ещё сжатых) байтов модели.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
