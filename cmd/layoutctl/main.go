package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/pflag"

	"property-viewer/internal/common/config"
	"property-viewer/internal/viewer/assets"
	"property-viewer/internal/viewer/blob"
	"property-viewer/internal/viewer/importer"
	"property-viewer/internal/viewer/models"
	"property-viewer/internal/viewer/property"
	"property-viewer/internal/viewer/repository"
	"property-viewer/internal/viewer/scene"
)

// ============================================================
// layoutctl
// ============================================================

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		printUsage()
		return nil
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	switch args[0] {
	case "seed":
		return runSeed(cfg, args[1:])
	case "list":
		return runList(cfg)
	case "inspect":
		return runInspect(cfg, args[1:])
	case "import":
		return runImport(args[1:])
	case "help", "-h", "--help":
		printUsage()
		return nil
	}
	return fmt.Errorf("unknown command %q", args[0])
}

func printUsage() {
	fmt.Fprint(os.Stderr, `layoutctl: manage stored layout descriptions.

Usage:
  layoutctl seed --file layout.json      store a description (validated first)
  layoutctl list                         list stored descriptions
  layoutctl inspect --id layout-101      hydrate, load assets, print report and clone timing
  layoutctl import --file scene.json     build a planner scene and print its stats

Storage is selected with the same environment as the viewer service
(DB_DRIVER, DB_PATH, POSTGRES_DSN, BLOB_DRIVER, ...).
`)
}

func ignoreHelp(err error) error {
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	return err
}

func openStore(cfg *config.Config) (repository.Store, error) {
	return repository.Open(context.Background(), repository.Options{
		Driver:      cfg.DB.Driver,
		SQLitePath:  cfg.DB.Path,
		PostgresDSN: cfg.DB.PostgresDSN,
	})
}

func runSeed(cfg *config.Config, args []string) error {
	var file string
	flagSet := pflag.NewFlagSet("seed", pflag.ContinueOnError)
	flagSet.StringVarP(&file, "file", "f", "", "layout description JSON")
	if err := flagSet.Parse(args); err != nil {
		return ignoreHelp(err)
	}
	if file == "" {
		return errors.New("--file is required")
	}

	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	desc, err := models.Decode(f)
	if err != nil {
		return err
	}

	probe, err := property.HydrateLayout(scene.NewPool(), desc)
	if err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}
	probe.Dispose()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Put(context.Background(), desc); err != nil {
		return err
	}
	fmt.Printf("stored %s: %d rooms, %d furniture\n", desc.ID, len(desc.Rooms), desc.FurnitureCount())
	return nil
}

func runList(cfg *config.Config) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	items, err := store.List(context.Background())
	if err != nil {
		return err
	}
	for _, item := range items {
		fmt.Printf("%-24s %-32s %s\n", item.ID, item.Name, item.UpdatedAt.Format(time.RFC3339))
	}
	return nil
}

func runInspect(cfg *config.Config, args []string) error {
	var (
		id     string
		clones int
	)
	flagSet := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
	flagSet.StringVar(&id, "id", "", "layout id")
	flagSet.IntVar(&clones, "clones", 100, "session clones to time")
	if err := flagSet.Parse(args); err != nil {
		return ignoreHelp(err)
	}
	if id == "" {
		return errors.New("--id is required")
	}
	ctx := context.Background()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	desc, err := store.Get(ctx, id)
	if err != nil {
		return err
	}

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
		return err
	}
	router := &assets.Router{
		HTTP: &assets.HTTPFetcher{Client: &http.Client{}},
		Blob: &assets.BlobFetcher{Store: blobs},
	}
	if s3store, ok := blobs.(*blob.S3Store); ok {
		router.S3 = &assets.S3Fetcher{Store: s3store}
	}

	layout, err := property.HydrateLayout(scene.NewPool(), desc)
	if err != nil {
		return err
	}
	report := layout.LoadAssets(ctx, assets.NewLoader(router, time.Duration(cfg.Asset.FetchTimeout)*time.Second), property.LoadOptions{
		Concurrency: cfg.Asset.Concurrency,
		Timeout:     time.Duration(cfg.Asset.Timeout) * time.Second,
	})

	registry := property.NewRegistry()
	defer registry.Close()
	if err := registry.RegisterMaster(id, layout); err != nil {
		return err
	}

	var elapsed time.Duration
	for i := 0; i < clones; i++ {
		started := time.Now()
		session, err := registry.SessionClone(id)
		if err != nil {
			return err
		}
		elapsed += time.Since(started)
		session.Dispose()
	}

	out := map[string]any{
		"id":     id,
		"rooms":  len(layout.Rooms()),
		"nodes":  layout.Root().Count(),
		"loaded": report.Loaded(),
		"failed": report.Failed(),
		"assets": report,
	}
	if clones > 0 {
		out["cloneAvg"] = (elapsed / time.Duration(clones)).String()
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func runImport(args []string) error {
	var file string
	flagSet := pflag.NewFlagSet("import", pflag.ContinueOnError)
	flagSet.StringVarP(&file, "file", "f", "", "planner scene JSON")
	if err := flagSet.Parse(args); err != nil {
		return ignoreHelp(err)
	}
	if file == "" {
		return errors.New("--file is required")
	}

	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	s, err := importer.DecodeScene(f)
	if err != nil {
		return err
	}
	imported, err := importer.New(scene.NewPool()).Import(s)
	if err != nil {
		return err
	}
	defer imported.Dispose()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"layer": imported.Layer,
		"nodes": imported.Root().Count(),
		"stats": imported.Stats,
	})
}
