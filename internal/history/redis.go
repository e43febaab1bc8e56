package history

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "salyqbot:history:"

// appendScript applies Compose server-side so concurrent appends never
// interleave. ARGV[1] is the first-write value, ARGV[2] the "\n"-prefixed turn.
var appendScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
if redis.call('STRLEN', KEYS[1]) == 0 then
	redis.call('SET', KEYS[1], ARGV[1])
else
	redis.call('APPEND', KEYS[1], ARGV[2])
end
return 1
`)

// RedisStore keeps each transcript in a plain string key.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return &RedisStore{rdb: rdb}, nil
}

func redisKey(userID int64) string {
	return redisKeyPrefix + strconv.FormatInt(userID, 10)
}

func (s *RedisStore) EnsureUser(ctx context.Context, userID int64) error {
	if err := s.rdb.SetNX(ctx, redisKey(userID), "", 0).Err(); err != nil {
		return fmt.Errorf("ensure user %d: %w", userID, err)
	}
	return nil
}

func (s *RedisStore) AppendTurn(ctx context.Context, userID int64, text string) error {
	err := appendScript.Run(ctx, s.rdb, []string{redisKey(userID)}, Compose("", text), "\n"+text).Err()
	if err != nil {
		return fmt.Errorf("append turn for %d: %w", userID, err)
	}
	return nil
}

func (s *RedisStore) ReadHistory(ctx context.Context, userID int64) (string, error) {
	blob, err := s.rdb.Get(ctx, redisKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return NoHistory, nil
	}
	if err != nil {
		return "", fmt.Errorf("read history for %d: %w", userID, err)
	}
	if blob == "" {
		return NoHistory, nil
	}
	return blob, nil
}

func (s *RedisStore) ClearHistory(ctx context.Context, userID int64) error {
	ok, err := s.rdb.SetXX(ctx, redisKey(userID), "", redis.KeepTTL).Result()
	if err != nil {
		return fmt.Errorf("clear history for %d: %w", userID, err)
	}
	if !ok {
		return ErrUserNotFound
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
