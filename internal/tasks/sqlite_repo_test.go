package tasks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/s1natex/tasks-file-api/internal/store"
)

func newTempDB(t *testing.T) *SQLiteRepo {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	dsn, err := SQLiteFileDSN(dbPath)
	if err != nil {
		t.Fatalf("dsn error: %v", err)
	}
	repo, err := NewSQLiteRepo(dsn)
	if err != nil {
		t.Fatalf("open error: %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
		_ = os.RemoveAll(dir)
	})
	if err := repo.ApplyMigrations(context.Background()); err != nil {
		t.Fatalf("migrate error: %v", err)
	}
	return repo
}

func TestSQLiteRepo_InsertAndList(t *testing.T) {
	repo := newTempDB(t)
	ctx := context.Background()

	created := time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)
	for _, task := range []Task{
		{ID: "b", Title: strPtr("buy milk"), Description: strPtr("store"), CreatedAt: created},
		{ID: "a", Title: strPtr("walk"), Description: strPtr("buy treats"), CreatedAt: created},
		{ID: "c", Title: strPtr("Buy bread"), CreatedAt: created},
	} {
		if err := repo.Insert(ctx, task); err != nil {
			t.Fatalf("insert %s: %v", task.ID, err)
		}
	}

	err := repo.Insert(ctx, Task{ID: "a", CreatedAt: created})
	if !errors.Is(err, store.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}

	list, err := repo.List(ctx, nil)
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if len(list) != 3 || list[0].ID != "b" || list[1].ID != "a" || list[2].ID != "c" {
		t.Fatalf("expected insertion order b,a,c got %+v", list)
	}
	if !list[0].CreatedAt.Equal(created) {
		t.Fatalf("created_at round trip: got %v", list[0].CreatedAt)
	}
	if list[2].Description != nil {
		t.Fatalf("absent description must stay absent, got %q", *list[2].Description)
	}

	list, err = repo.List(ctx, map[string]string{"title": "buy", "description": "buy"})
	if err != nil {
		t.Fatalf("search error: %v", err)
	}
	if len(list) != 2 || list[0].ID != "b" || list[1].ID != "a" {
		t.Fatalf("expected b,a for OR search, got %+v", list)
	}

	list, err = repo.List(ctx, map[string]string{"color": "red"})
	if err != nil {
		t.Fatalf("search error: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("unknown field must not match, got %+v", list)
	}
}

func TestSQLiteRepo_UpdateAndDelete(t *testing.T) {
	repo := newTempDB(t)
	ctx := context.Background()

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := repo.Insert(ctx, Task{ID: "a", Title: strPtr("T"), CreatedAt: created}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if _, ok, err := repo.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing task, ok=%v err=%v", ok, err)
	}

	task, ok, err := repo.Get(ctx, "a")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if task.UpdatedAt != nil || task.CompletedAt != nil {
		t.Fatalf("fresh task should have null timestamps: %+v", task)
	}

	done := created.Add(time.Hour)
	task.CompletedAt = &done
	task.UpdatedAt = &done
	task.CreatedAt = done
	if err := repo.Update(ctx, "a", task); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, _, err := repo.Get(ctx, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(done) {
		t.Fatalf("expected completed_at %v, got %v", done, got.CompletedAt)
	}
	if !got.CreatedAt.Equal(created) {
		t.Fatalf("created_at must never change, got %v", got.CreatedAt)
	}

	if err := repo.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := repo.Get(ctx, "a"); ok {
		t.Fatalf("expected task to be deleted")
	}
}
