package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var ErrNotFound = errors.New("project not found")

// ============================================================
// SQLite Project Store
// ============================================================

// Project is a stored blob with its bookkeeping columns.
type Project struct {
	ID        string
	UpdatedAt string
	Size      int
}

type Repository struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Init applies the schema migration.
func (r *Repository) Init(ctx context.Context, migrationsPath string) error {
	if err := r.runMigrations(ctx, migrationsPath); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	return nil
}

// LoadBlob returns the stored project blob or ErrNotFound.
func (r *Repository) LoadBlob(ctx context.Context, id string) ([]byte, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT data
        FROM projects
        WHERE id = ?
    `, id)

	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// SaveBlob inserts or replaces the project blob.
func (r *Repository) SaveBlob(ctx context.Context, id string, blob []byte) error {
	if id == "" {
		return fmt.Errorf("save project: empty id")
	}
	stamp := r.now().UTC().Format(time.RFC3339Nano)
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO projects (id, data, created_at, updated_at)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
    `, id, blob, stamp, stamp)
	if err != nil {
		return fmt.Errorf("save project %s: %w", id, err)
	}
	return nil
}

// Delete removes a project. Deleting an unknown id reports ErrNotFound.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns stored projects, most recently updated first.
func (r *Repository) List(ctx context.Context) ([]Project, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, updated_at, length(data)
        FROM projects
        ORDER BY updated_at DESC, id
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Project{}
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.UpdatedAt, &p.Size); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ============================================================
// Migrations
// ============================================================

func (r *Repository) runMigrations(ctx context.Context, migrationsPath string) error {
	data, err := os.ReadFile(migrationsPath)
	if err != nil {
		return fmt.Errorf("read migration: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, string(data)); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	return nil
}

// OpenSQLite opens the sqlite database at dbPath, creating its directory.
func OpenSQLite(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}
