// Package cache keeps derived attendance aggregates in Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	totalsKey = "cousinade:attendance:totals"
	// generationKey is bumped on every invalidation; a Set computed under an older
	// generation is dropped.
	generationKey = "cousinade:attendance:totals:gen"
	// filledField marks a populated hash so that "no attendance yet" is still a hit.
	filledField = "_filled"
)

// setIfGeneration replaces the totals hash only while the generation is unchanged.
// KEYS: totals, generation. ARGV: generation, ttl ms, then field/value pairs.
var setIfGeneration = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[2]) or '0')
if current ~= tonumber(ARGV[1]) then
	return 0
end
redis.call('DEL', KEYS[1])
redis.call('HSET', KEYS[1], unpack(ARGV, 3))
if tonumber(ARGV[2]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 1
`)

// TotalsCache stores the per-slot attendance totals.
//
// Readers take the Generation before counting and pass it to Set; writers call
// Invalidate after committing, which bumps the generation so an in-flight Set of
// pre-commit totals is rejected.
type TotalsCache interface {
	// Get returns the cached totals and whether they were present.
	Get(ctx context.Context) (map[int64]int, bool, error)
	Generation(ctx context.Context) (int64, error)
	// Set stores totals computed under generation. It reports false when the
	// generation moved on in between and nothing was stored.
	Set(ctx context.Context, generation int64, totals map[int64]int) (bool, error)
	Invalidate(ctx context.Context) error
}

// NewTotalsCache returns a Redis-backed cache, or a no-op cache when client is nil.
func NewTotalsCache(client *redis.Client, ttl time.Duration) TotalsCache {
	if client == nil {
		return NoopTotalsCache{}
	}
	return &redisTotalsCache{client: client, ttl: ttl}
}

type redisTotalsCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ TotalsCache = (*redisTotalsCache)(nil)

func (c *redisTotalsCache) Get(ctx context.Context) (map[int64]int, bool, error) {
	fields, err := c.client.HGetAll(ctx, totalsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cached totals: %w", err)
	}
	if _, ok := fields[filledField]; !ok {
		return nil, false, nil
	}

	totals := make(map[int64]int, len(fields)-1)
	for k, v := range fields {
		if k == filledField {
			continue
		}
		slotID, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, false, fmt.Errorf("invalid cached slot id %q: %w", k, err)
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, false, fmt.Errorf("invalid cached total for slot %d: %w", slotID, err)
		}
		totals[slotID] = n
	}
	return totals, true, nil
}

func (c *redisTotalsCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read totals generation: %w", err)
	}
	return gen, nil
}

func (c *redisTotalsCache) Set(ctx context.Context, generation int64, totals map[int64]int) (bool, error) {
	args := make([]any, 0, 2*len(totals)+4)
	args = append(args, generation, c.ttl.Milliseconds(), filledField, 1)
	for slotID, n := range totals {
		args = append(args, strconv.FormatInt(slotID, 10), n)
	}

	stored, err := setIfGeneration.Run(ctx, c.client, []string{totalsKey, generationKey}, args...).Int()
	if err != nil {
		return false, fmt.Errorf("failed to cache totals: %w", err)
	}
	return stored == 1, nil
}

func (c *redisTotalsCache) Invalidate(ctx context.Context) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey)
		pipe.Del(ctx, totalsKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate cached totals: %w", err)
	}
	return nil
}

// NoopTotalsCache never holds anything.
type NoopTotalsCache struct{}

func (NoopTotalsCache) Get(context.Context) (map[int64]int, bool, error) { return nil, false, nil }
func (NoopTotalsCache) Generation(context.Context) (int64, error) { return 0, nil }
func (NoopTotalsCache) Set(context.Context, int64, map[int64]int) (bool, error) { return false, nil }
func (NoopTotalsCache) Invalidate(context.Context) error { return nil }
