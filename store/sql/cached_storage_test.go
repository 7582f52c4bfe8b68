package sqlstore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

type stubStorage struct {
	mu       sync.Mutex
	values   map[string]json.RawMessage
	getCalls int
	getErr   error
}

func newStubStorage() *stubStorage {
	return &stubStorage{values: make(map[string]json.RawMessage)}
}

func (s *stubStorage) Get(_ context.Context, keys []string) (map[string]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.getErr != nil {
		return nil, s.getErr
	}
	out := make(map[string]json.RawMessage, len(keys))
	for _, key := range keys {
		if value, ok := s.values[key]; ok {
			out[key] = append(json.RawMessage(nil), value...)
		}
	}
	return out, nil
}

func (s *stubStorage) Set(_ context.Context, values map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, value := range values {
		raw, err := json.Marshal(value)
		if err != nil {
			return err
		}
		s.values[key] = raw
	}
	return nil
}

func (s *stubStorage) Delete(_ context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.values, key)
	}
	return nil
}

func (s *stubStorage) reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getCalls
}

func newTestStateCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}

func TestCachedStorage_Get_MissFetchThenHit(t *testing.T) {
	ctx := context.Background()
	base := newStubStorage()
	if err := base.Set(ctx, map[string]any{"rate": "45"}); err != nil {
		t.Fatalf("seed base storage: %v", err)
	}
	baseline := base.reads()

	store, err := NewCachedStorage(base, newTestStateCacheService(t))
	if err != nil {
		t.Fatalf("new cached storage: %v", err)
	}

	first, err := store.Get(ctx, []string{"rate"})
	if err != nil {
		t.Fatalf("first get: %v", err)
	}
	if string(first["rate"]) != `"45"` {
		t.Fatalf("expected cached rate value, got %s", first["rate"])
	}
	if got := base.reads() - baseline; got != 1 {
		t.Fatalf("expected first get to fetch base storage once, got %d", got)
	}

	second, err := store.Get(ctx, []string{"rate"})
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if string(second["rate"]) != `"45"` {
		t.Fatalf("expected cached rate value, got %s", second["rate"])
	}
	if got := base.reads() - baseline; got != 1 {
		t.Fatalf("expected second get to be a cache hit, base reads=%d", got)
	}
}

func TestCachedStorage_SetInvalidatesKey(t *testing.T) {
	ctx := context.Background()
	base := newStubStorage()
	if err := base.Set(ctx, map[string]any{"rate": "45"}); err != nil {
		t.Fatalf("seed base storage: %v", err)
	}

	store, err := NewCachedStorage(base, newTestStateCacheService(t))
	if err != nil {
		t.Fatalf("new cached storage: %v", err)
	}

	if _, err := store.Get(ctx, []string{"rate"}); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	if err := store.Set(ctx, map[string]any{"rate": "90"}); err != nil {
		t.Fatalf("set: %v", err)
	}

	updated, err := store.Get(ctx, []string{"rate"})
	if err != nil {
		t.Fatalf("get after set: %v", err)
	}
	if string(updated["rate"]) != `"90"` {
		t.Fatalf("expected invalidated key to re-read base, got %s", updated["rate"])
	}
}

func TestCachedStorage_DeleteInvalidatesKey(t *testing.T) {
	ctx := context.Background()
	base := newStubStorage()
	if err := base.Set(ctx, map[string]any{"connected": true}); err != nil {
		t.Fatalf("seed base storage: %v", err)
	}

	store, err := NewCachedStorage(base, newTestStateCacheService(t))
	if err != nil {
		t.Fatalf("new cached storage: %v", err)
	}

	if _, err := store.Get(ctx, []string{"connected"}); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	if err := store.Delete(ctx, []string{"connected"}); err != nil {
		t.Fatalf("delete: %v", err)
	}

	after, err := store.Get(ctx, []string{"connected"})
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if _, ok := after["connected"]; ok {
		t.Fatalf("expected deleted key to be absent, got %s", after["connected"])
	}
}

func TestCachedStorage_GetPropagatesBaseError(t *testing.T) {
	base := newStubStorage()
	base.getErr = errors.New("backend down")

	store, err := NewCachedStorage(base, newTestStateCacheService(t))
	if err != nil {
		t.Fatalf("new cached storage: %v", err)
	}

	if _, err := store.Get(context.Background(), []string{"rate"}); err == nil {
		t.Fatalf("expected base error to propagate")
	}
}

func TestStateCacheKey(t *testing.T) {
	key, err := StateCacheKey("grant/one-time")
	if err != nil {
		t.Fatalf("state cache key: %v", err)
	}
	if key != "web-monetization::state::v1::grant%2Fone-time" {
		t.Fatalf("unexpected cache key %q", key)
	}

	if _, err := StateCacheKey("   "); err == nil {
		t.Fatalf("expected error for blank key")
	}
}

func TestNewCachedStorage_RequiresCollaborators(t *testing.T) {
	if _, err := NewCachedStorage(nil, newTestStateCacheService(t)); err == nil {
		t.Fatalf("expected error for nil base storage")
	}
	if _, err := NewCachedStorage(newStubStorage(), nil); err == nil {
		t.Fatalf("expected error for nil cache service")
	}
}
