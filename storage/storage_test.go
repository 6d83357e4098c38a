package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// exerciseKeyValue runs the behaviour every backend must share
func exerciseKeyValue(t *testing.T, kv KeyValue) {
	t.Helper()
	ctx := context.Background()

	if _, found, err := kv.GetItem(ctx, KeyMedications); err != nil || found {
		t.Fatalf("Expected missing key on empty store, found=%v err=%v", found, err)
	}

	items := map[string][]byte{
		KeyMedications: []byte(`[{"id":"1"}]`),
		KeyLastUpdated: []byte("2024-01-02T03:04:05.000Z"),
	}
	if err := kv.SetItems(ctx, items); err != nil {
		t.Fatalf("SetItems failed: %v", err)
	}

	for key, want := range items {
		got, found, err := kv.GetItem(ctx, key)
		if err != nil {
			t.Fatalf("GetItem(%s) failed: %v", key, err)
		}
		if !found {
			t.Fatalf("GetItem(%s) not found", key)
		}
		if string(got) != string(want) {
			t.Errorf("GetItem(%s) = %s, want %s", key, got, want)
		}
	}

	// Overwrite one key, keep the other
	if err := kv.SetItems(ctx, map[string][]byte{KeyMedications: []byte(`[]`)}); err != nil {
		t.Fatalf("SetItems overwrite failed: %v", err)
	}
	got, _, _ := kv.GetItem(ctx, KeyMedications)
	if string(got) != `[]` {
		t.Errorf("Expected overwritten value [], got %s", got)
	}
	got, _, _ = kv.GetItem(ctx, KeyLastUpdated)
	if string(got) != "2024-01-02T03:04:05.000Z" {
		t.Errorf("Untouched key changed: %s", got)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseKeyValue(t, NewMemoryStore())
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	kv := NewMemoryStore()
	ctx := context.Background()

	value := []byte("abc")
	_ = kv.SetItems(ctx, map[string][]byte{"k": value})
	value[0] = 'x'

	got, _, _ := kv.GetItem(ctx, "k")
	if string(got) != "abc" {
		t.Errorf("Stored value was aliased, got %s", got)
	}
}

func TestMemoryStoreHonorsCancelledContext(t *testing.T) {
	kv := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := kv.SetItems(ctx, map[string][]byte{"k": nil}); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "snapshot.json")
	kv, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	exerciseKeyValue(t, kv)

	// A second store on the same path sees the persisted document
	reopened, _ := NewFileStore(path)
	got, found, err := reopened.GetItem(context.Background(), KeyLastUpdated)
	if err != nil || !found || string(got) != "2024-01-02T03:04:05.000Z" {
		t.Errorf("Reopened store lost data: found=%v err=%v value=%s", found, err, got)
	}
}

func TestFileStoreCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	kv, _ := NewFileStore(path)
	if _, _, err := kv.GetItem(context.Background(), KeyMedications); err == nil {
		t.Error("Expected decode error for corrupt document")
	}

	// The corrupt file must not be replaced by a failed write attempt
	if err := kv.SetItems(context.Background(), map[string][]byte{"k": []byte("v")}); err == nil {
		t.Error("Expected SetItems to refuse overwriting a corrupt document")
	}
	raw, _ := os.ReadFile(path)
	if string(raw) != "{not json" {
		t.Errorf("Corrupt document was overwritten: %s", raw)
	}
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meditempo.db")
	kv, err := NewSQLiteStore(context.Background(), path)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer kv.Close()

	exerciseKeyValue(t, kv)
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("MEDITEMPO_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("MEDITEMPO_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	kv, err := NewPostgresStore(ctx, url)
	if err != nil {
		t.Fatalf("NewPostgresStore failed: %v", err)
	}
	defer kv.Close()

	if _, err := kv.pool.Exec(ctx, `DELETE FROM meditempo_kv`); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	exerciseKeyValue(t, kv)
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), Options{Driver: "redis"}); err == nil {
		t.Error("Expected error for unknown driver")
	}
}

func TestOpenMemoryDriver(t *testing.T) {
	kv, err := Open(context.Background(), Options{Driver: "Memory"})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, ok := kv.(*Breaker); !ok {
		t.Errorf("Expected breaker-wrapped store, got %T", kv)
	}
}

type failingStore struct {
	calls int
}

func (f *failingStore) GetItem(ctx context.Context, key string) ([]byte, bool, error) {
	f.calls++
	return nil, false, errors.New("disk on fire")
}

func (f *failingStore) SetItems(ctx context.Context, items map[string][]byte) error {
	f.calls++
	return errors.New("disk on fire")
}

func (f *failingStore) Close() error { return nil }

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &failingStore{}
	b := NewBreakerWithSettings(inner, "test", BreakerSettings{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		ConsecutiveFails: 3,
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := b.SetItems(ctx, nil); err == nil || errors.Is(err, ErrStorageUnavailable) {
			t.Fatalf("Call %d: expected backend error, got %v", i, err)
		}
	}

	if b.State() != "open" {
		t.Fatalf("Expected open breaker, got %s", b.State())
	}

	if _, _, err := b.GetItem(ctx, "k"); !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("Expected ErrStorageUnavailable, got %v", err)
	}
	if inner.calls != 3 {
		t.Errorf("Open breaker should not reach the backend, calls=%d", inner.calls)
	}
}

func TestBreakerPassesThrough(t *testing.T) {
	b := NewBreaker(NewMemoryStore(), "memory")
	exerciseKeyValue(t, b)

	if b.State() != "closed" {
		t.Errorf("Expected closed breaker, got %s", b.State())
	}
}
