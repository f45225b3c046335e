package repository

import (
	"bytes"
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"property-viewer/internal/viewer/models"
)

// ErrNotFound: описания с таким id нет.
var ErrNotFound = errors.New("layout description not found")

//go:embed migrations/*.sql
var migrations embed.FS

// Summary: строка списка описаний.
type Summary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store отдаёт описания планировок по идентификатору.
type Store interface {
	Get(ctx context.Context, id string) (*models.LayoutDescription, error)
	Put(ctx context.Context, desc *models.LayoutDescription) error
	List(ctx context.Context) ([]Summary, error)
	Delete(ctx context.Context, id string) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}

// ============================================================
// SQL Repository
// ============================================================

type dialect string

const (
	dialectSQLite   dialect = "sqlite"
	dialectPostgres dialect = "postgres"
)

// Repository хранит описания в таблице layouts (sqlite или postgres).
type Repository struct {
	db      *sql.DB
	dialect dialect
}

var _ Store = (*Repository)(nil)

func newRepository(db *sql.DB, d dialect) *Repository {
	return &Repository{db: db, dialect: d}
}

// Init применяет встроенную миграцию для своего диалекта.
func (r *Repository) Init(ctx context.Context) error {
	data, err := migrations.ReadFile("migrations/" + string(r.dialect) + ".sql")
	if err != nil {
		return fmt.Errorf("read migration: %w", err)
	}
	for _, stmt := range strings.Split(string(data), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}

func (r *Repository) DB() *sql.DB { return r.db }

func (r *Repository) Get(ctx context.Context, id string) (*models.LayoutDescription, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`
        SELECT payload
        FROM layouts
        WHERE id = ?
    `), id)

	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	desc, err := models.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("stored layout %s: %w", id, err)
	}
	return desc, nil
}

func (r *Repository) Put(ctx context.Context, desc *models.LayoutDescription) error {
	if desc == nil || strings.TrimSpace(desc.ID) == "" {
		return errors.New("put layout: empty id")
	}
	payload, err := desc.Encode()
	if err != nil {
		return fmt.Errorf("encode layout: %w", err)
	}

	_, err = r.db.ExecContext(ctx, r.rebind(`
        INSERT INTO layouts (id, name, payload, updated_at)
        VALUES (?, ?, ?, ?)
        ON CONFLICT (id) DO UPDATE SET
            name = excluded.name,
            payload = excluded.payload,
            updated_at = excluded.updated_at
    `), desc.ID, desc.Name, string(payload), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert layout %s: %w", desc.ID, err)
	}
	return nil
}

func (r *Repository) List(ctx context.Context) ([]Summary, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, name, updated_at
        FROM layouts
        ORDER BY id
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		var updated string
		if err := rows.Scan(&s.ID, &s.Name, &updated); err != nil {
			return nil, err
		}
		s.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM layouts WHERE id = ?`), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// rebind заменяет "?" на "$n" для postgres.
func (r *Repository) rebind(query string) string {
	if r.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}
