package quota

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"mood-coach-backend/internal/domain"
	"mood-coach-backend/internal/infra/metrics"
)

// Срок хранения счётчика: сутки действия плюс запас, чтобы ключ
// не висел в Redis вечно. Сброс квоты происходит сменой ключа в полночь,
// а не удалением.
const counterTTL = 48 * time.Hour

// kv — подмножество команд Redis, нужное трекеру квоты.
type kv interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HIncrBy(ctx context.Context, key, field string, incr int64) *redis.IntCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// Redis реализует domain.QuotaTracker: один счётчик на пользователя и день.
type Redis struct {
	client  kv
	ceiling int
	now     func() time.Time
}

var _ domain.QuotaTracker = (*Redis)(nil)

// NewRedis создаёт трекер с дневным потолком ceiling.
func NewRedis(client *redis.Client, ceiling int) *Redis {
	if ceiling <= 0 {
		ceiling = 5
	}
	return &Redis{client: client, ceiling: ceiling, now: time.Now}
}

func dayKey(userID int64, t time.Time) string {
	return fmt.Sprintf("user:%d:quota:%s", userID, t.UTC().Format("2006-01-02"))
}

// Check сравнивает сегодняшний счётчик с потолком. Отсутствие ключа
// считается нулём. Счётчик здесь не изменяется.
func (q *Redis) Check(ctx context.Context, userID int64) (domain.QuotaStatus, error) {
	start := time.Now()
	raw, err := q.client.HGet(ctx, dayKey(userID, q.now()), "count").Result()
	metrics.ObserveNetworkRequest("redis", "quota_check", "quota", start, ignoreNil(err))
	count := 0
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return domain.QuotaStatus{}, fmt.Errorf("чтение квоты: %w", err)
	default:
		count, err = strconv.Atoi(raw)
		if err != nil {
			return domain.QuotaStatus{}, fmt.Errorf("повреждённый счётчик квоты: %w", err)
		}
	}
	remaining := q.ceiling - count
	if remaining < 0 {
		remaining = 0
	}
	return domain.QuotaStatus{Allowed: count < q.ceiling, Remaining: remaining}, nil
}

// Record увеличивает сегодняшний счётчик ровно на единицу и ставит отметку
// времени. Вызывается только после фактически успешной генерации.
func (q *Redis) Record(ctx context.Context, userID int64) error {
	key := dayKey(userID, q.now())
	start := time.Now()
	if err := q.client.HIncrBy(ctx, key, "count", 1).Err(); err != nil {
		metrics.ObserveNetworkRequest("redis", "quota_record", "quota", start, err)
		return fmt.Errorf("инкремент квоты: %w", err)
	}
	if err := q.client.HSet(ctx, key, "last_updated", q.now().UTC().Format(time.RFC3339)).Err(); err != nil {
		metrics.ObserveNetworkRequest("redis", "quota_record", "quota", start, err)
		return fmt.Errorf("отметка времени квоты: %w", err)
	}
	err := q.client.Expire(ctx, key, counterTTL).Err()
	metrics.ObserveNetworkRequest("redis", "quota_record", "quota", start, err)
	if err != nil {
		return fmt.Errorf("срок хранения счётчика: %w", err)
	}
	return nil
}

func ignoreNil(err error) error {
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
