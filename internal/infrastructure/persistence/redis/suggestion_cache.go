package redis

import (
	"context"
	"errors"
	"time"

	"github.com/skill-ladder/ladder-hub/internal/domain/matching"
	"github.com/skill-ladder/ladder-hub/pkg/circuitbreaker"
)

// SuggestionCache implements matching.SuggestionCache on top of Cache.
//
// Calls go through a circuit breaker. While it is open every read is a miss
// and writes are skipped, so suggestions are recomputed from the store
// instead of waiting on an unreachable Redis.
type SuggestionCache struct {
	cache   *Cache
	ttl     time.Duration
	breaker *circuitbreaker.CircuitBreaker
}

var _ matching.SuggestionCache = (*SuggestionCache)(nil)

// NewSuggestionCache creates a new SuggestionCache. A non-positive ttl falls
// back to TTLSuggestions.
func NewSuggestionCache(cache *Cache, ttl time.Duration, opts ...circuitbreaker.Option) *SuggestionCache {
	if ttl <= 0 {
		ttl = TTLSuggestions
	}
	opts = append([]circuitbreaker.Option{circuitbreaker.WithIsFailure(isConnectionFailure)}, opts...)
	return &SuggestionCache{
		cache:   cache,
		ttl:     ttl,
		breaker: circuitbreaker.New("redis-suggestions", opts...),
	}
}

// isConnectionFailure leaves caller mistakes out of the breaker's count.
func isConnectionFailure(err error) bool {
	return !errors.Is(err, ErrCacheNilValue) &&
		!errors.Is(err, ErrCacheKeyEmpty) &&
		!errors.Is(err, ErrCacheInvalidTTL) &&
		!errors.Is(err, ErrCacheSerialization)
}

// TTL returns the expiry applied to stored suggestions.
func (s *SuggestionCache) TTL() time.Duration {
	return s.ttl
}

// State reports the breaker state.
func (s *SuggestionCache) State() circuitbreaker.State {
	return s.breaker.State()
}

// Get returns the cached suggestions of userID. A miss is not an error.
func (s *SuggestionCache) Get(ctx context.Context, userID string) (*matching.Suggestions, bool, error) {
	var sg matching.Suggestions
	hit := false

	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		err := s.cache.Get(ctx, SuggestionsKey(userID), &sg)
		if errors.Is(err, ErrCacheMiss) {
			return nil
		}
		if err != nil {
			return err
		}
		hit = true
		return nil
	})
	if circuitbreaker.IsRejected(err) {
		return nil, false, nil
	}
	if err != nil || !hit {
		return nil, false, err
	}
	return &sg, true, nil
}

// Set stores sg under its user.
func (s *SuggestionCache) Set(ctx context.Context, sg *matching.Suggestions) error {
	if sg == nil {
		return ErrCacheNilValue
	}
	return s.skipWhenOpen(s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.cache.Set(ctx, SuggestionsKey(sg.UserID), sg, s.ttl)
	}))
}

// Invalidate drops the suggestions of every listed user.
func (s *SuggestionCache) Invalidate(ctx context.Context, userIDs ...string) error {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if id != "" {
			keys = append(keys, SuggestionsKey(id))
		}
	}
	if len(keys) == 0 {
		return nil
	}
	return s.skipWhenOpen(s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.cache.Delete(ctx, keys...)
	}))
}

func (s *SuggestionCache) skipWhenOpen(err error) error {
	if circuitbreaker.IsRejected(err) {
		return nil
	}
	return err
}
