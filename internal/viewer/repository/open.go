package repository

import (
	"context"
	"fmt"
)

// Options выбирают драйвер хранилища описаний.
type Options struct {
	Driver      string
	SQLitePath  string
	PostgresDSN string
}

// Open создаёт хранилище: sqlite (по умолчанию), postgres или memory.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", "sqlite":
		path := opts.SQLitePath
		if path == "" {
			path = "data/db/layouts.db"
		}
		return OpenSQLite(ctx, path)
	case "postgres":
		return OpenPostgres(ctx, opts.PostgresDSN)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown db driver %s", opts.Driver)
	}
}
