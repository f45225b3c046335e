package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"property-viewer/internal/viewer/metrics"
	"property-viewer/internal/viewer/property"
	"property-viewer/internal/viewer/repository"
	"property-viewer/internal/viewer/scene"
)

// ============================================================
// Catalog
// ============================================================

// CatalogOptions настраивают загрузку мастеров.
type CatalogOptions struct {
	AssetConcurrency int
	AssetTimeout     time.Duration
	Metrics          *metrics.Metrics
}

// Catalog загружает мастер-планировки в порядке
// хранилище -> гидратация -> загрузка моделей -> регистрация.
// Параллельные запросы одного id ждут одну загрузку.
type Catalog struct {
	store    repository.Store
	registry *property.Registry
	pool     *scene.Pool
	loader   property.AssetLoader
	opts     CatalogOptions

	group   singleflight.Group
	mu      sync.RWMutex
	reports map[string]*property.AssetReport
	// gens растёт при каждом Reload; загрузка регистрирует мастер,
	// только если поколение не изменилось с её начала.
	gens map[string]uint64
}

func NewCatalog(store repository.Store, registry *property.Registry, pool *scene.Pool, loader property.AssetLoader, opts CatalogOptions) *Catalog {
	return &Catalog{
		store:    store,
		registry: registry,
		pool:     pool,
		loader:   loader,
		opts:     opts,
		reports:  make(map[string]*property.AssetReport),
		gens:     make(map[string]uint64),
	}
}

func (c *Catalog) Store() repository.Store { return c.store }

func (c *Catalog) Registry() *property.Registry { return c.registry }

// Master возвращает зарегистрированный мастер или загружает его.
func (c *Catalog) Master(ctx context.Context, id string) (*property.Layout, error) {
	if master, ok := c.registry.Master(id); ok {
		return master, nil
	}
	return c.load(ctx, "master:"+id, id, false)
}

// Reload заново читает описание и перезаписывает мастер.
func (c *Catalog) Reload(ctx context.Context, id string) (*property.Layout, error) {
	return c.load(ctx, "reload:"+id, id, true)
}

// Session возвращает независимую сессионную копию мастера.
func (c *Catalog) Session(ctx context.Context, id string) (*property.Layout, error) {
	if _, err := c.Master(ctx, id); err != nil {
		return nil, err
	}
	started := time.Now()
	session, err := c.registry.SessionClone(id)
	if err != nil {
		return nil, err
	}
	c.opts.Metrics.ObserveClone(time.Since(started))
	return session, nil
}

// Report возвращает отчёт последней загрузки моделей мастера.
func (c *Catalog) Report(id string) (*property.AssetReport, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.reports[id]
	return r, ok
}

// Close освобождает все мастера.
func (c *Catalog) Close() {
	c.registry.Close()
}

func (c *Catalog) load(ctx context.Context, key, id string, force bool) (*property.Layout, error) {
	ch := c.group.DoChan(key, func() (any, error) {
		flightCtx := context.WithoutCancel(ctx)
		if force {
			return c.hydrate(flightCtx, id, c.nextGeneration(id))
		}
		if master, ok := c.registry.Master(id); ok {
			return master, nil
		}
		return c.hydrate(flightCtx, id, c.generation(id))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*property.Layout), nil
	}
}

func (c *Catalog) generation(id string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gens[id]
}

func (c *Catalog) nextGeneration(id string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[id]++
	return c.gens[id]
}

func (c *Catalog) hydrate(ctx context.Context, id string, gen uint64) (layout *property.Layout, err error) {
	started := time.Now()
	defer func() {
		c.opts.Metrics.ObserveMaster(err == nil, time.Since(started))
	}()

	desc, err := c.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &property.NotFoundError{ID: id}
		}
		return nil, fmt.Errorf("read layout %s: %w", id, err)
	}

	layout, err = property.HydrateLayout(c.pool, desc)
	if err != nil {
		log.Printf("[CATALOG] hydrate %s failed: %v", id, err)
		return nil, err
	}

	report := layout.LoadAssets(ctx, c.loader, property.LoadOptions{
		Concurrency: c.opts.AssetConcurrency,
		Timeout:     c.opts.AssetTimeout,
		OnResult: func(r property.AssetResult) {
			c.opts.Metrics.ObserveAsset(r.OK(), r.Duration)
			if !r.OK() {
				log.Printf("[ASSETS] warn: %s/%s: %v (placeholder kept)", r.Room, r.Furniture, r.Err)
			}
		},
	})

	// Проверка поколения и регистрация идут под одной блокировкой
	c.mu.Lock()
	if c.gens[id] != gen {
		c.mu.Unlock()
		layout.Dispose()
		log.Printf("[CATALOG] master %s was reloaded during load, dropping stale copy", id)
		if master, ok := c.registry.Master(id); ok {
			return master, nil
		}
		return c.load(ctx, "reload:"+id, id, true)
	}
	if err := c.registry.RegisterMaster(id, layout); err != nil {
		c.mu.Unlock()
		layout.Dispose()
		return nil, err
	}
	c.reports[id] = report
	c.mu.Unlock()

	log.Printf("[CATALOG] master %s registered: %d rooms, %d/%d assets loaded in %s",
		id, len(layout.Rooms()), report.Loaded(), len(report.Results), time.Since(started))
	return layout, nil
}
