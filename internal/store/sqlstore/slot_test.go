package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/suPer8Hu/pantry-assistant/internal/store"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T, path string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open(path), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func TestRepo_PutGetDelete(t *testing.T) {
	repo, err := NewRepo(openTestDB(t, filepath.Join(t.TempDir(), "state.db")))
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}
	ctx := context.Background()

	if _, err := repo.Get(ctx, "pantry_identity"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := repo.Put(ctx, "pantry_identity", "v1"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := repo.Put(ctx, "pantry_identity", "v2"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err := repo.Get(ctx, "pantry_identity")
	if err != nil || got != "v2" {
		t.Fatalf("get = %q, %v; want v2", got, err)
	}

	if err := repo.Delete(ctx, "pantry_identity"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, "pantry_identity"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	// deleting again is not an error
	if err := repo.Delete(ctx, "pantry_identity"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestRepo_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	first, err := NewRepo(openTestDB(t, path))
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}
	if err := first.Put(ctx, "k", "persisted"); err != nil {
		t.Fatalf("put: %v", err)
	}

	second, err := NewRepo(openTestDB(t, path))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := second.Get(ctx, "k")
	if err != nil || got != "persisted" {
		t.Fatalf("get after reopen = %q, %v", got, err)
	}
}
