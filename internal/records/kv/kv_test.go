package kv

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"budgeteer/internal/records/recordstest"
)

// mapKV is an in-memory KV for tests.
type mapKV struct {
	mu     sync.Mutex
	data   map[string][]byte
	locks  map[string]*sync.Mutex
	closed bool
}

func newMapKV() *mapKV {
	return &mapKV{data: make(map[string][]byte), locks: make(map[string]*sync.Mutex)}
}

func (m *mapKV) Lock(_ context.Context, key string) (func(), error) {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	m.mu.Unlock()
	l.Lock()
	return l.Unlock, nil
}

func (m *mapKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrKeyMissing
	}
	return v, nil
}

func (m *mapKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *mapKV) Close() error {
	m.closed = true
	return nil
}

func TestStoreContract_MapKV(t *testing.T) {
	recordstest.RunStoreContract(t, New(newMapKV()))
}

func TestStoreContract_FileKV(t *testing.T) {
	fkv, err := NewFileKV(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	recordstest.RunStoreContract(t, New(fkv))
}

func TestStore_ConcurrentWriters(t *testing.T) {
	tests := []struct {
		name     string
		newStore func(t *testing.T) (*Store, *Store)
	}{
		{
			name: "file",
			newStore: func(t *testing.T) (*Store, *Store) {
				dir := t.TempDir()
				return New(mustFileKV(t, dir)), New(mustFileKV(t, dir))
			},
		},
		{
			name: "redis",
			newStore: func(t *testing.T) (*Store, *Store) {
				a, b := newRedisKV(t), newRedisKV(t)
				return New(a), New(b)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := tt.newStore(t)
			defer a.Close()
			defer b.Close()
			recordstest.RunConcurrentWriters(t, a, b)
		})
	}
}

func TestStoreContract_Redis(t *testing.T) {
	s := New(newRedisKV(t))
	defer s.Close()
	recordstest.RunStoreContract(t, s)
}

// newRedisKV connects to REDIS_ADDR under a prefix unique to the test and
// clears its keys. It skips the test when REDIS_ADDR is unset.
func newRedisKV(t *testing.T) *RedisKV {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rkv, err := NewRedisKV(context.Background(), RedisOptions{
		Addr:   addr,
		Prefix: "budgeteer_test:" + strings.ReplaceAll(t.Name(), "/", "_") + ":",
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	ctx := context.Background()
	for _, k := range []string{ExpensesKey, BudgetsKey, RecurringRunsKey} {
		rkv.client.Del(ctx, rkv.prefix+k, rkv.prefix+k+":lock")
	}
	return rkv
}

func mustFileKV(t *testing.T, dir string) *FileKV {
	t.Helper()
	f, err := NewFileKV(dir)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestFileKV_Lock(t *testing.T) {
	dir := t.TempDir()
	a, b := mustFileKV(t, dir), mustFileKV(t, dir)
	ctx := context.Background()

	unlock, err := a.Lock(ctx, "k")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	short, cancel := context.WithTimeout(ctx, 60*time.Millisecond)
	defer cancel()
	if _, err := b.Lock(short, "k"); !errors.Is(err, ErrLocked) {
		t.Fatalf("second holder: got %v, want ErrLocked", err)
	}

	unlock()
	unlockB, err := b.Lock(ctx, "k")
	if err != nil {
		t.Fatalf("lock after release: %v", err)
	}
	unlockB()

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected no lock files left, found %v", entries)
	}
}

func TestFileKV_LockTakesOverStaleLock(t *testing.T) {
	dir := t.TempDir()
	f := mustFileKV(t, dir)
	lockPath := filepath.Join(dir, "k.json.lock")
	if err := os.WriteFile(lockPath, []byte("1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-2 * lockStale)
	if err := os.Chtimes(lockPath, old, old); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlock, err := f.Lock(ctx, "k")
	if err != nil {
		t.Fatalf("expected stale lock to be replaced, got %v", err)
	}
	unlock()
}

func TestStore_UsesStorageKeys(t *testing.T) {
	m := newMapKV()
	s := New(m)
	recordstest.RunStoreContract(t, s)

	raw, ok := m.data[ExpensesKey]
	if !ok {
		t.Fatalf("expected data under %s", ExpensesKey)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("expenses are not a JSON array: %v", err)
	}
	if _, ok := m.data[BudgetsKey]; !ok {
		t.Fatalf("expected data under %s", BudgetsKey)
	}

	if err := s.Close(); err != nil || !m.closed {
		t.Fatal("Close should close the underlying KV")
	}
}

func TestUpsert(t *testing.T) {
	list := upsert([]int{1, 2}, 3, func(x int) bool { return x == 3 })
	if list[0] != 3 {
		t.Fatalf("expected prepend, got %v", list)
	}
	list = upsert(list, 2, func(x int) bool { return x == 2 })
	if len(list) != 3 {
		t.Fatalf("expected in-place replace, got %v", list)
	}
}

func TestFileKV(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFileKV(filepath.Join(dir, "nested"))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if _, err := f.Get(ctx, "absent"); !errors.Is(err, ErrKeyMissing) {
		t.Fatalf("expected ErrKeyMissing, got %v", err)
	}
	if err := f.Set(ctx, "k", []byte(`[1]`)); err != nil {
		t.Fatal(err)
	}
	if err := f.Set(ctx, "k", []byte(`[1,2]`)); err != nil {
		t.Fatal(err)
	}
	got, err := f.Get(ctx, "k")
	if err != nil || string(got) != `[1,2]` {
		t.Fatalf("got %s (err=%v)", got, err)
	}

	entries, _ := os.ReadDir(filepath.Join(dir, "nested"))
	if len(entries) != 1 || entries[0].Name() != "k.json" {
		t.Fatalf("expected only k.json, found %v", entries)
	}

	for _, bad := range []string{"", "../x", "a/b"} {
		if err := f.Set(ctx, bad, nil); err == nil {
			t.Errorf("expected error for key %q", bad)
		}
	}
}

func TestStore_CorruptValue(t *testing.T) {
	m := newMapKV()
	m.data[ExpensesKey] = []byte("not json")
	if _, err := New(m).ListExpenses(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}
