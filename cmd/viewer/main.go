package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"property-viewer/internal/common/config"
	"property-viewer/internal/common/middleware"
	"property-viewer/internal/viewer/assets"
	"property-viewer/internal/viewer/blob"
	"property-viewer/internal/viewer/handlers"
	"property-viewer/internal/viewer/importer"
	"property-viewer/internal/viewer/metrics"
	"property-viewer/internal/viewer/property"
	"property-viewer/internal/viewer/repository"
	"property-viewer/internal/viewer/scene"
	"property-viewer/internal/viewer/service"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
)

// ============================================================
// Property Viewer Service
// ============================================================

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	ctx := context.Background()

	// ============================================================
	// Storage
	// ============================================================

	store, err := repository.Open(ctx, repository.Options{
		Driver:      cfg.DB.Driver,
		SQLitePath:  cfg.DB.Path,
		PostgresDSN: cfg.DB.PostgresDSN,
	})
	if err != nil {
		log.Fatalf("Failed to open layout storage: %v", err)
	}
	defer store.Close()

	blobs, err := blob.Open(ctx, blob.Options{
		Driver: cfg.Blob.Driver,
		FSRoot: cfg.Blob.FSRoot,
		S3: blob.S3Config{
			Bucket:    cfg.Blob.S3Bucket,
			Region:    cfg.Blob.S3Region,
			Endpoint:  cfg.Blob.S3Endpoint,
			PathStyle: cfg.Blob.S3PathStyle,
		},
	})
	if err != nil {
		log.Fatalf("Failed to open asset storage: %v", err)
	}

	// ============================================================
	// Viewer core
	// ============================================================

	router := &assets.Router{
		HTTP: &assets.HTTPFetcher{Client: &http.Client{}},
		Blob: &assets.BlobFetcher{Store: blobs},
	}
	if s3store, ok := blobs.(*blob.S3Store); ok {
		router.S3 = &assets.S3Fetcher{Store: s3store}
	}
	loader := assets.NewLoader(router, time.Duration(cfg.Asset.FetchTimeout)*time.Second)

	m := metrics.New()
	pool := scene.NewPool()
	catalog := service.NewCatalog(store, property.NewRegistry(), pool, loader, service.CatalogOptions{
		AssetConcurrency: cfg.Asset.Concurrency,
		AssetTimeout:     time.Duration(cfg.Asset.Timeout) * time.Second,
		Metrics:          m,
	})
	sessions := service.NewSessionManager(catalog, m)
	viewer := handlers.NewViewerHandler(catalog, sessions, importer.New(pool), pool)

	// ============================================================
	// HTTP
	// ============================================================

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		AppName:      "Property Viewer",
	})

	app.Use(recover.New())
	app.Use(middleware.Logger(cfg.Environment))
	app.Use(middleware.CORS(cfg.CORSOrigins))

	handlers.Register(app, viewer, store, m.Handler())

	// ============================================================
	// Server Start
	// ============================================================

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Printf("[VIEWER] shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("[VIEWER] shutdown: %v", err)
		}
	}()

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("Starting Property Viewer on %s (env: %s, db: %s, blob: %s)", addr, cfg.Environment, cfg.DB.Driver, blobs.Driver())

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	closed := sessions.CloseAll()
	catalog.Close()
	log.Printf("[VIEWER] closed %d sessions, released masters", closed)
}
