package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/interledger/web-monetization-go/core"
)

const stateCacheKeyPrefix = "web-monetization::state::v1"

// CachedStorage is a read-through cache in front of a Storage backend.
// Writes and deletes invalidate the affected keys so the next read fetches
// from the backend again.
type CachedStorage struct {
	base  core.Storage
	cache repositorycache.CacheService
}

func NewCachedStorage(base core.Storage, cacheService repositorycache.CacheService) (*CachedStorage, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base storage is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: storage cache service is required")
	}
	return &CachedStorage{base: base, cache: cacheService}, nil
}

// StateCacheKey returns the deterministic cache key contract for state
// reads: web-monetization::state::v1::<key> with the key URL-path escaped.
func StateCacheKey(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", fmt.Errorf("sqlstore: state key is required")
	}
	return stateCacheKeyPrefix + "::" + url.PathEscape(trimmed), nil
}

func (s *CachedStorage) Get(ctx context.Context, keys []string) (map[string]json.RawMessage, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached storage is not configured")
	}

	cleaned := cleanKeys(keys)
	out := make(map[string]json.RawMessage, len(cleaned))
	for _, key := range cleaned {
		cacheKey, err := StateCacheKey(key)
		if err != nil {
			return nil, err
		}
		fetchKey := key
		value, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (json.RawMessage, error) {
			fetched, fetchErr := s.base.Get(ctx, []string{fetchKey})
			if fetchErr != nil {
				return nil, fetchErr
			}
			return append(json.RawMessage(nil), fetched[fetchKey]...), nil
		})
		if err != nil {
			return nil, err
		}
		if len(value) == 0 {
			continue
		}
		out[key] = append(json.RawMessage(nil), value...)
	}
	return out, nil
}

func (s *CachedStorage) Set(ctx context.Context, values map[string]any) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached storage is not configured")
	}
	if err := s.base.Set(ctx, values); err != nil {
		return err
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	return s.invalidate(ctx, keys)
}

func (s *CachedStorage) Delete(ctx context.Context, keys []string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached storage is not configured")
	}
	if err := s.base.Delete(ctx, keys); err != nil {
		return err
	}
	return s.invalidate(ctx, keys)
}

func (s *CachedStorage) invalidate(ctx context.Context, keys []string) error {
	for _, key := range cleanKeys(keys) {
		cacheKey, err := StateCacheKey(key)
		if err != nil {
			return err
		}
		if err := s.cache.Delete(ctx, cacheKey); err != nil {
			return err
		}
	}
	return nil
}

var _ core.Storage = (*CachedStorage)(nil)
