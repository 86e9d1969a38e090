package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// exerciseStore runs the common contract against any driver
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for missing key, got %v", err)
	}

	if err := s.Set(ctx, "save", `{"a":1}`); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := s.Get(ctx, "save")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != `{"a":1}` {
		t.Errorf("Expected stored value, got %q", got)
	}

	// Whole-value overwrite
	if err := s.Set(ctx, "save", `{"b":2}`); err != nil {
		t.Fatalf("Overwrite failed: %v", err)
	}
	if got, _ := s.Get(ctx, "save"); got != `{"b":2}` {
		t.Errorf("Expected overwritten value, got %q", got)
	}

	if err := s.Delete(ctx, "save"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, "save"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	if err := s.Delete(ctx, "save"); err != nil {
		t.Errorf("Deleting a missing key should succeed, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	s, err := New(DriverMemory)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestFileStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "saves")
	s, err := New(DriverFile, WithDir(dir))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestFileStore_NoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	if err := s.Set(context.Background(), "story_app_save_v1", "{}"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "story_app_save_v1.json" {
		t.Errorf("Unexpected directory contents: %v", entries)
	}
}

func TestFileStore_RejectsPathKeys(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	for _, key := range []string{"", "../escape", "a/b", ".."} {
		if err := s.Set(context.Background(), key, "x"); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Expected ErrInvalidKey for %q, got %v", key, err)
		}
	}
}

func TestSQLiteStore(t *testing.T) {
	s, err := New(DriverSQLite, WithSQLitePath(filepath.Join(t.TempDir(), "saves.db")))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saves.db")
	ctx := context.Background()

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	if err := s.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer reopened.Close()

	if got, err := reopened.Get(ctx, "k"); err != nil || got != "v" {
		t.Errorf("Expected persisted value, got %q (%v)", got, err)
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TALEFORGE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TALEFORGE_TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	s, err := New(DriverRedis, WithRedisClient(client), WithTTL(time.Minute))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		driver Driver
		opts   []Option
		want   error
	}{
		{"unknown driver", Driver("etcd"), nil, ErrInvalidDriver},
		{"file without dir", DriverFile, nil, ErrInvalidConfig},
		{"redis without client", DriverRedis, nil, ErrInvalidConfig},
		{"sqlite without path", DriverSQLite, nil, ErrInvalidConfig},
		{"supabase without key", DriverSupabase, []Option{WithSupabase("https://x.supabase.co", "", "saves")}, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.driver, tt.opts...); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}
