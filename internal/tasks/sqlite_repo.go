package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/s1natex/tasks-file-api/internal/store"
)

// searchColumns maps filter fields onto columns. Fields outside this set
// never match, same as the file store.
var searchColumns = map[string]string{
	"title":       "title",
	"description": "description",
}

const taskColumns = `id, title, description, created_at, updated_at, completed_at`

// SQLiteRepo is an alternative Repository with the same list order (insertion)
// and search semantics (case-sensitive, any field) as FileRepo.
type SQLiteRepo struct {
	db *sql.DB
}

func NewSQLiteRepo(dsn string) (*SQLiteRepo, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// Reasonable pragmas for an app server
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA synchronous=NORMAL;
		PRAGMA foreign_keys=ON;
	`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteRepo{db: db}, nil
}

func (r *SQLiteRepo) Close() error { return r.db.Close() }

// ApplyMigrations ensures schema exists
func (r *SQLiteRepo) ApplyMigrations(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS tasks (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	title TEXT,
	description TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT,
	completed_at TEXT
);
	`)
	return err
}

func (r *SQLiteRepo) List(ctx context.Context, filter map[string]string) ([]Task, error) {
	ctx, span := startSpan(ctx, "sqlite.select")
	defer span.End()

	query := `SELECT ` + taskColumns + ` FROM tasks`
	var args []any
	if len(filter) > 0 {
		var conds []string
		for field, pattern := range filter {
			col, ok := searchColumns[field]
			if !ok {
				continue
			}
			conds = append(conds, "instr("+col+", ?) > 0")
			args = append(args, pattern)
		}
		if len(conds) == 0 {
			return []Task{}, nil
		}
		query += ` WHERE ` + strings.Join(conds, " OR ")
	}
	query += ` ORDER BY seq ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, recordErr(span, err)
	}
	defer rows.Close()

	out := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, recordErr(span, err)
		}
		out = append(out, t)
	}
	span.SetAttributes(attribute.Int("store.rows", len(out)))
	return out, recordErr(span, rows.Err())
}

func (r *SQLiteRepo) Get(ctx context.Context, id string) (Task, bool, error) {
	ctx, span := startSpan(ctx, "sqlite.find_one", attribute.String("task.id", id))
	defer span.End()

	row := r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, false, nil
	}
	if err != nil {
		return Task{}, false, recordErr(span, err)
	}
	return t, true, nil
}

func (r *SQLiteRepo) Insert(ctx context.Context, t Task) error {
	ctx, span := startSpan(ctx, "sqlite.insert", attribute.String("task.id", t.ID))
	defer span.End()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`, t.ID, nullString(t.Title), nullString(t.Description),
		t.CreatedAt.Format(time.RFC3339Nano), nullTime(t.UpdatedAt), nullTime(t.CompletedAt))
	if isUniqueViolation(err) {
		err = fmt.Errorf("table %q: %w: %s", Table, store.ErrDuplicateID, t.ID)
	}
	return recordErr(span, err)
}

// Update replaces every mutable column. created_at is never rewritten.
func (r *SQLiteRepo) Update(ctx context.Context, id string, t Task) error {
	ctx, span := startSpan(ctx, "sqlite.update", attribute.String("task.id", id))
	defer span.End()

	_, err := r.db.ExecContext(ctx, `
		UPDATE tasks
		SET title = ?, description = ?, updated_at = ?, completed_at = ?
		WHERE id = ?
	`, nullString(t.Title), nullString(t.Description), nullTime(t.UpdatedAt), nullTime(t.CompletedAt), id)
	return recordErr(span, err)
}

func (r *SQLiteRepo) Delete(ctx context.Context, id string) error {
	ctx, span := startSpan(ctx, "sqlite.delete", attribute.String("task.id", id))
	defer span.End()

	_, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	return recordErr(span, err)
}

type scanner interface {
	Scan(dest ...any) error
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

func scanTask(s scanner) (Task, error) {
	var (
		t                  Task
		title, desc        sql.NullString
		created            string
		updated, completed sql.NullString
	)
	if err := s.Scan(&t.ID, &title, &desc, &created, &updated, &completed); err != nil {
		return Task{}, err
	}
	if title.Valid {
		t.Title = strPtr(title.String)
	}
	if desc.Valid {
		t.Description = strPtr(desc.String)
	}
	ts, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return Task{}, fmt.Errorf("task %s: created_at: %w", t.ID, err)
	}
	t.CreatedAt = ts
	if t.UpdatedAt, err = parseNullTime(updated); err != nil {
		return Task{}, fmt.Errorf("task %s: updated_at: %w", t.ID, err)
	}
	if t.CompletedAt, err = parseNullTime(completed); err != nil {
		return Task{}, fmt.Errorf("task %s: completed_at: %w", t.ID, err)
	}
	return t, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339Nano), Valid: true}
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

// Helper to build DSN like: file:/absolute/path?_pragma=busy_timeout(5000)
func SQLiteFileDSN(path string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return "file:" + filepath.ToSlash(abs) + "?_pragma=busy_timeout(5000)", nil
}
