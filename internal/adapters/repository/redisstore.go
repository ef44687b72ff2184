package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/calibrate/internal/domain/model"
	"github.com/okian/calibrate/internal/domain/selector"
	"github.com/okian/calibrate/pkg/metrics"
)

// DefaultRedisPrefix namespaces every key written by RedisStore.
const DefaultRedisPrefix = "calibrate"

// updateRatingScript sets a member's score and bumps its game count only if
// the member already exists.
// KEYS: [1]=ratings zset, [2]=item hash. ARGV: [1]=item id, [2]=rating.
var updateRatingScript = redis.NewScript(`
if not redis.call('ZSCORE', KEYS[1], ARGV[1]) then
  return 0
end
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[1])
redis.call('HINCRBY', KEYS[2], 'games', 1)
return 1
`)

// RedisStore keeps each owner's library in a sorted set of ratings plus one
// hash per item for title and game count.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisPrefix overrides DefaultRedisPrefix.
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// NewRedisStore connects to addr and verifies the connection.
func NewRedisStore(ctx context.Context, addr string, db int, opts ...RedisOption) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return NewRedisStoreFromClient(client, opts...), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, prefix: DefaultRedisPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) ratingsKey(owner string) string {
	return s.prefix + ":owner:" + owner + ":ratings"
}

func (s *RedisStore) itemKey(owner, itemID string) string {
	return s.prefix + ":owner:" + owner + ":item:" + itemID
}

// List implements Store.List.
func (s *RedisStore) List(ctx context.Context, owner string) ([]model.RatedItem, error) {
	defer observeQuery(time.Now())

	zs, err := s.client.ZRevRangeWithScores(ctx, s.ratingsKey(owner), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	if len(zs) == 0 {
		return []model.RatedItem{}, nil
	}

	pipe := s.client.Pipeline()
	meta := make([]*redis.MapStringStringCmd, len(zs))
	for i, z := range zs {
		meta[i] = pipe.HGetAll(ctx, s.itemKey(owner, memberID(z)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("list item metadata: %w", err)
	}

	out := make([]model.RatedItem, 0, len(zs))
	for i, z := range zs {
		out = append(out, itemFromHash(memberID(z), z.Score, meta[i].Val()))
	}
	// ZREVRANGE breaks ties by member descending; the store contract is id ascending.
	selector.SortDescending(out)
	return out, nil
}

// Get implements Store.Get.
func (s *RedisStore) Get(ctx context.Context, owner, itemID string) (model.RatedItem, error) {
	defer observeQuery(time.Now())

	var (
		score *redis.FloatCmd
		meta  *redis.MapStringStringCmd
	)
	_, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		score = p.ZScore(ctx, s.ratingsKey(owner), itemID)
		meta = p.HGetAll(ctx, s.itemKey(owner, itemID))
		return nil
	})
	if errors.Is(score.Err(), redis.Nil) {
		return model.RatedItem{}, ErrNotFound
	}
	if err != nil {
		return model.RatedItem{}, fmt.Errorf("get item: %w", err)
	}
	return itemFromHash(itemID, score.Val(), meta.Val()), nil
}

// Upsert implements Store.Upsert.
func (s *RedisStore) Upsert(ctx context.Context, owner string, item model.RatedItem) error {
	defer observeUpdate(time.Now())

	if err := validateItem(owner, item); err != nil {
		return err
	}
	if item.GamesPlayed < 0 {
		item.GamesPlayed = 0
	}
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAdd(ctx, s.ratingsKey(owner), redis.Z{Score: normalize(item.Rating), Member: item.ID})
		p.HSet(ctx, s.itemKey(owner, item.ID), "title", item.Title, "games", item.GamesPlayed)
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert item: %w", err)
	}
	return nil
}

// UpdateRating implements Store.UpdateRating atomically with a Lua script.
func (s *RedisStore) UpdateRating(ctx context.Context, owner, itemID string, rating float64) error {
	defer observeUpdate(time.Now())

	n, err := updateRatingScript.Run(ctx, s.client,
		[]string{s.ratingsKey(owner), s.itemKey(owner, itemID)},
		itemID,
		strconv.FormatFloat(normalize(rating), 'f', -1, 64),
	).Int()
	if err != nil {
		return fmt.Errorf("update rating script failed: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Count implements Store.Count. Connection errors count as zero.
func (s *RedisStore) Count(ctx context.Context, owner string) int {
	n, err := s.client.ZCard(ctx, s.ratingsKey(owner)).Result()
	if err != nil {
		metrics.RecordErrorByEndpoint("repository", "ZCARD", "redis")
		return 0
	}
	return int(n)
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func memberID(z redis.Z) string {
	if id, ok := z.Member.(string); ok {
		return id
	}
	return fmt.Sprint(z.Member)
}

func itemFromHash(id string, score float64, h map[string]string) model.RatedItem {
	games, _ := strconv.Atoi(h["games"])
	return model.RatedItem{
		ID:          id,
		Title:       h["title"],
		Rating:      score,
		GamesPlayed: games,
	}
}
