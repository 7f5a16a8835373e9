package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/itsneelabh/insights-agent/internal/logging"
)

// RedisStore persists threads as Redis lists keyed by thread id, with
// a TTL so abandoned threads expire on their own.
type RedisStore struct {
	client   *redis.Client
	logger   logging.Logger
	maxTurns int
	ttl      time.Duration
}

// NewRedisStore connects to the given URL and verifies the connection
// with a short ping. Connection failures are configuration errors.
func NewRedisStore(redisURL string, maxTurns int, ttl time.Duration, logger logging.Logger) (*RedisStore, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL is required")
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	if maxTurns < 1 {
		maxTurns = 20
	}
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	return &RedisStore{client: client, logger: logger, maxTurns: maxTurns, ttl: ttl}, nil
}

func (s *RedisStore) key(threadID string) string {
	return "chat:thread:" + threadID
}

// Append pushes the turn and trims the list. Failures are logged and
// swallowed; memory is best-effort.
func (s *RedisStore) Append(ctx context.Context, threadID string, msg Message) {
	if threadID == "" {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("Failed to marshal memory message", map[string]interface{}{
			"thread_id": threadID,
			"error":     err.Error(),
		})
		return
	}

	key := s.key(threadID)
	pipe := s.client.Pipeline()
	pipe.RPush(ctx, key, payload)
	pipe.LTrim(ctx, key, int64(-s.maxTurns), -1)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn("Memory append failed", map[string]interface{}{
			"thread_id": threadID,
			"error":     err.Error(),
		})
	}
}

func (s *RedisStore) Read(ctx context.Context, threadID string, maxMessages int) ([]Message, error) {
	if maxMessages < 1 || maxMessages > s.maxTurns {
		maxMessages = s.maxTurns
	}
	raw, err := s.client.LRange(ctx, s.key(threadID), int64(-maxMessages), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading thread %q: %w", threadID, err)
	}
	messages := make([]Message, 0, len(raw))
	for _, item := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			s.logger.Warn("Skipping undecodable memory entry", map[string]interface{}{
				"thread_id": threadID,
				"error":     err.Error(),
			})
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
