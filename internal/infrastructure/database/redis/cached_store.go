package redis

import (
	"context"
	"time"

	"github.com/turtacn/LightMap-Intelligence/internal/domain/dictionary"
	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/monitoring/logging"
	mappingtypes "github.com/turtacn/LightMap-Intelligence/pkg/types/mapping"
)

const dictKeyPrefix = "dict:key:"

// CachedDictionaryStore layers the redis cache over another dictionary
// store.  Exact-key reads are served from cache under singleflight; writes
// pass through and invalidate the affected key.  The fuzzy and signature
// queries bypass the cache since their result sets depend on windows, not a
// single key.
type CachedDictionaryStore struct {
	inner  dictionary.Store
	cache  Cache
	ttl    time.Duration
	logger logging.Logger
}

var _ dictionary.Store = (*CachedDictionaryStore)(nil)

// NewCachedDictionaryStore wraps inner with the redis cache.
func NewCachedDictionaryStore(inner dictionary.Store, cache Cache, ttl time.Duration, logger logging.Logger) *CachedDictionaryStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &CachedDictionaryStore{inner: inner, cache: cache, ttl: ttl, logger: logger.Named("dict_cache")}
}

// FindByKey serves exact-key entry lists from cache, loading through on miss.
func (s *CachedDictionaryStore) FindByKey(ctx context.Context, sourceKey string) ([]*mappingtypes.Entry, error) {
	var entries []*mappingtypes.Entry
	err := s.cache.GetOrSet(ctx, dictKeyPrefix+sourceKey, &entries, s.ttl, func(ctx context.Context) (interface{}, error) {
		loaded, loadErr := s.inner.FindByKey(ctx, sourceKey)
		if loadErr != nil {
			return nil, loadErr
		}
		if len(loaded) == 0 {
			return nil, nil
		}
		return loaded, nil
	})
	if err == ErrCacheMiss {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *CachedDictionaryStore) FindByLengthWindow(ctx context.Context, minLen, maxLen int) ([]*mappingtypes.Entry, error) {
	return s.inner.FindByLengthWindow(ctx, minLen, maxLen)
}

func (s *CachedDictionaryStore) FindBySignature(ctx context.Context, sourceKind string, minPixels, maxPixels int) ([]*mappingtypes.Entry, error) {
	return s.inner.FindBySignature(ctx, sourceKind, minPixels, maxPixels)
}

// UpsertConfirmation writes through and invalidates the cached key.  Cache
// invalidation failure is logged, not returned; the next TTL expiry will
// self-heal.
func (s *CachedDictionaryStore) UpsertConfirmation(ctx context.Context, entry *mappingtypes.Entry) error {
	if err := s.inner.UpsertConfirmation(ctx, entry); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, dictKeyPrefix+entry.SourceKey); err != nil {
		s.logger.Warn("failed to invalidate dictionary cache",
			logging.String("source_key", entry.SourceKey),
			logging.Err(err),
		)
	}
	return nil
}

func (s *CachedDictionaryStore) Stats(ctx context.Context) (*dictionary.Stats, error) {
	return s.inner.Stats(ctx)
}
