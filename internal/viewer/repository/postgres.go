package repository

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const defaultPostgresDSN = "postgres://localhost/property_viewer?sslmode=disable"

// OpenPostgres подключается через pgx (database/sql) и применяет миграцию.
func OpenPostgres(ctx context.Context, dsn string) (*Repository, error) {
	if dsn == "" {
		dsn = defaultPostgresDSN
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	repo := newRepository(db, dialectPostgres)
	if err := repo.Init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}
