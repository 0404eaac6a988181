package quota

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type memKV struct {
	data map[string]map[string]string
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string]map[string]string)}
}

func (m *memKV) hash(key string) map[string]string {
	h, ok := m.data[key]
	if !ok {
		h = make(map[string]string)
		m.data[key] = h
	}
	return h
}

func (m *memKV) HGet(ctx context.Context, key, field string) *redis.StringCmd {
	h, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	val, ok := h[field]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(val, nil)
}

func (m *memKV) HIncrBy(ctx context.Context, key, field string, incr int64) *redis.IntCmd {
	h := m.hash(key)
	cur, _ := strconv.ParseInt(h[field], 10, 64)
	cur += incr
	h[field] = strconv.FormatInt(cur, 10)
	return redis.NewIntResult(cur, nil)
}

func (m *memKV) HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	h := m.hash(key)
	for i := 0; i+1 < len(values); i += 2 {
		h[values[i].(string)] = values[i+1].(string)
	}
	return redis.NewIntResult(1, nil)
}

func (m *memKV) Expire(ctx context.Context, key string, _ time.Duration) *redis.BoolCmd {
	return redis.NewBoolResult(true, nil)
}

func newTracker(ceiling int, now time.Time) *Redis {
	return &Redis{client: newMemKV(), ceiling: ceiling, now: func() time.Time { return now }}
}

func TestCheckFresh(t *testing.T) {
	q := newTracker(5, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	status, err := q.Check(context.Background(), 1)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !status.Allowed || status.Remaining != 5 {
		t.Fatalf("ожидали 5 доступных генераций, получили %+v", status)
	}
}

func TestQuotaExhausted(t *testing.T) {
	q := newTracker(5, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	for i := 0; i < 6; i++ {
		if err := q.Record(context.Background(), 1); err != nil {
			t.Fatalf("не ожидали ошибку: %v", err)
		}
	}
	status, err := q.Check(context.Background(), 1)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if status.Allowed || status.Remaining != 0 {
		t.Fatalf("ожидали исчерпанную квоту, получили %+v", status)
	}
}

func TestQuotaDayRollover(t *testing.T) {
	now := time.Date(2025, 3, 10, 23, 59, 0, 0, time.UTC)
	q := newTracker(5, now)
	for i := 0; i < 5; i++ {
		_ = q.Record(context.Background(), 1)
	}
	status, _ := q.Check(context.Background(), 1)
	if status.Allowed {
		t.Fatalf("ожидали исчерпанную квоту")
	}

	// Смена календарного дня меняет ключ: счётчик начинается с нуля
	// без явного сброса.
	q.now = func() time.Time { return now.Add(2 * time.Minute) }
	status, err := q.Check(context.Background(), 1)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !status.Allowed || status.Remaining != 5 {
		t.Fatalf("ожидали свежую квоту после полуночи, получили %+v", status)
	}
}

func TestQuotaPerUser(t *testing.T) {
	q := newTracker(1, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	_ = q.Record(context.Background(), 1)
	status, _ := q.Check(context.Background(), 2)
	if !status.Allowed {
		t.Fatalf("квота одного пользователя не должна влиять на другого")
	}
}
