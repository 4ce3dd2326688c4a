package backend

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"budgeteer/internal/config"
)

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:    "redis",
		RedisAddr:      "cache:6379",
		RedisDB:        3,
		RedisKeyPrefix: "bt:",
		DataDir:        "/var/lib/budgeteer",
	})
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if cfg.Type != RedisBackend || cfg.RedisAddr != "cache:6379" || cfg.RedisDB != 3 ||
		cfg.RedisKeyPrefix != "bt:" || cfg.DataDirectory != "/var/lib/budgeteer" {
		t.Errorf("unexpected backend config %+v", cfg)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{"memory without dir", Config{Type: MemoryBackend}, ""},
		{"unknown", Config{Type: "sheets"}, "invalid backend type"},
		{"sqlite without path", Config{Type: SQLiteBackend}, "SQLite database path is required"},
		{"file without dir", Config{Type: FileBackend}, "data directory is required"},
		{"redis without addr", Config{Type: RedisBackend}, "Redis address is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCreateStore(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(nil)
	dir := t.TempDir()

	tests := []struct {
		name       string
		config     Config
		wantSQLite bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"memory seeded", Config{Type: MemoryBackend, DataDirectory: dir}, false},
		{"file", Config{Type: FileBackend, DataDirectory: filepath.Join(dir, "kv")}, false},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(dir, "db", "b.db")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.CreateStore(ctx, tt.config)
			if err != nil {
				t.Fatalf("CreateStore: %v", err)
			}
			defer res.Cleanup()

			if (res.SQLite != nil) != tt.wantSQLite {
				t.Errorf("SQLite set = %v, want %v", res.SQLite != nil, tt.wantSQLite)
			}
			if _, err := res.Store.ListExpenses(ctx); err != nil {
				t.Errorf("ListExpenses on fresh store: %v", err)
			}
		})
	}

	if _, err := f.CreateStore(ctx, Config{Type: "bogus"}); err == nil {
		t.Fatal("expected error for invalid type")
	}
}

func TestCreateStore_MemorySeedError(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "budgets.json"), []byte("["), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := NewFactory(nil).CreateStore(context.Background(), Config{Type: MemoryBackend, DataDirectory: dir})
	if err == nil {
		t.Fatal("expected seed error")
	}
}

func TestCreateSheet_Memory(t *testing.T) {
	s, err := NewFactory(nil).CreateSheet(context.Background(), Config{})
	if err != nil {
		t.Fatalf("CreateSheet: %v", err)
	}
	if s.Remote || s.Exporter == nil || s.Remover == nil || s.Alerts == nil {
		t.Fatalf("expected in-memory sheet with all ports, got %+v", s)
	}
}
