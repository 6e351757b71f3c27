package issues

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	memoryHistoryTTL      = 7 * 24 * time.Hour
	memoryCleanupInterval = time.Hour
)

// MemoryHistoryStore keeps issue history in process memory. Entries expire a
// week after their last update.
type MemoryHistoryStore struct {
	cache *cache.Cache
}

func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{cache: cache.New(memoryHistoryTTL, memoryCleanupInterval)}
}

func (s *MemoryHistoryStore) Load(_ context.Context) (map[string]Record, error) {
	items := s.cache.Items()
	out := make(map[string]Record, len(items))
	for key, item := range items {
		if rec, ok := item.Object.(Record); ok {
			out[key] = rec
		}
	}
	return out, nil
}

func (s *MemoryHistoryStore) Upsert(_ context.Context, recs []Record) error {
	for _, rec := range recs {
		s.cache.Set(rec.Key, rec, cache.DefaultExpiration)
	}
	return nil
}

func (s *MemoryHistoryStore) Delete(_ context.Context, keys []string) error {
	for _, k := range keys {
		s.cache.Delete(k)
	}
	return nil
}
