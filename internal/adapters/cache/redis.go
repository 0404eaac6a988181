package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mood-coach-backend/internal/domain"
	"mood-coach-backend/internal/infra/metrics"
)

// kv — подмножество команд Redis, нужное кэшу.
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Redis реализует domain.MessageCache поверх Redis.
// Истечение записей логическое: срок хранится внутри записи и проверяется
// при чтении, просроченные записи не удаляются.
type Redis struct {
	client kv
	now    func() time.Time
}

var _ domain.MessageCache = (*Redis)(nil)

// NewRedis создаёт кэш сообщений.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, now: time.Now}
}

type record struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	Author      string    `json:"author,omitempty"`
	Categories  []string  `json:"categories,omitempty"`
	Source      string    `json:"source"`
	GeneratedAt time.Time `json:"generated_at"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Запись валидна строго до срока: now >= expires_at считается промахом.
func (r record) expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

func storageKey(userID int64, key string) string {
	return fmt.Sprintf("user:%d:cache:%s", userID, key)
}

// Get возвращает валидную запись или domain.ErrNotFound.
func (c *Redis) Get(ctx context.Context, userID int64, key string) (domain.Message, error) {
	start := time.Now()
	raw, err := c.client.Get(ctx, storageKey(userID, key)).Bytes()
	metrics.ObserveNetworkRequest("redis", "cache_get", "cache", start, ignoreNil(err))
	if errors.Is(err, redis.Nil) {
		return domain.Message{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Message{}, fmt.Errorf("чтение кэша: %w", err)
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.Message{}, fmt.Errorf("распаковка записи кэша: %w", err)
	}
	if rec.expired(c.now()) {
		return domain.Message{}, domain.ErrNotFound
	}
	return domain.Message{
		ID:          rec.ID,
		Text:        rec.Text,
		Author:      rec.Author,
		Categories:  rec.Categories,
		Source:      domain.MessageSource(rec.Source),
		GeneratedAt: rec.GeneratedAt,
	}, nil
}

// Put перезаписывает запись с новым сроком now + ttl.
func (c *Redis) Put(ctx context.Context, userID int64, key string, msg domain.Message, ttl time.Duration) error {
	now := c.now()
	rec := record{
		ID:          msg.ID,
		Text:        msg.Text,
		Author:      msg.Author,
		Categories:  msg.Categories,
		Source:      string(msg.Source),
		GeneratedAt: msg.GeneratedAt,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("упаковка записи кэша: %w", err)
	}
	start := time.Now()
	err = c.client.Set(ctx, storageKey(userID, key), raw, 0).Err()
	metrics.ObserveNetworkRequest("redis", "cache_set", "cache", start, err)
	if err != nil {
		return fmt.Errorf("запись кэша: %w", err)
	}
	return nil
}

func ignoreNil(err error) error {
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
