package budget

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

func (m *memKV) HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd {
	h, ok := m.data[key]
	if !ok {
		h = map[string]string{}
	}
	return redis.NewMapStringStringResult(h, nil)
}

func (m *memKV) HIncrBy(ctx context.Context, key, field string, incr int64) *redis.IntCmd {
	h := m.hash(key)
	cur, _ := strconv.ParseInt(h[field], 10, 64)
	cur += incr
	h[field] = strconv.FormatInt(cur, 10)
	return redis.NewIntResult(cur, nil)
}

func (m *memKV) HIncrByFloat(ctx context.Context, key, field string, incr float64) *redis.FloatCmd {
	h := m.hash(key)
	cur, _ := strconv.ParseFloat(h[field], 64)
	cur += incr
	h[field] = strconv.FormatFloat(cur, 'f', -1, 64)
	return redis.NewFloatResult(cur, nil)
}

func (m *memKV) HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	h := m.hash(key)
	for i := 0; i+1 < len(values); i += 2 {
		h[values[i].(string)] = values[i+1].(string)
	}
	return redis.NewIntResult(1, nil)
}

func newGuard(cap, cost float64, now time.Time) *Redis {
	return &Redis{client: newMemKV(), cap: cap, costPerRequest: cost, now: func() time.Time { return now }}
}

func TestIsOpenFreshMonth(t *testing.T) {
	g := newGuard(20, 0.5, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
	open, err := g.IsOpen(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !open {
		t.Fatalf("пустой месяц должен быть открыт")
	}
}

func TestBudgetCloses(t *testing.T) {
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	g := newGuard(1.0, 0.5, now)

	// Record аддитивен: два вызова добавляют две оценки стоимости.
	_ = g.Record(context.Background())
	open, _ := g.IsOpen(context.Background())
	if !open {
		t.Fatalf("бюджет 0.5 из 1.0 ещё открыт")
	}
	_ = g.Record(context.Background())
	open, err := g.IsOpen(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if open {
		t.Fatalf("накопленный расход достиг потолка, бюджет должен закрыться")
	}

	state, err := g.State(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if state.Requests != 2 {
		t.Fatalf("ожидали 2 запроса, получили %d", state.Requests)
	}
}

func TestBudgetMonthRollover(t *testing.T) {
	now := time.Date(2025, 3, 31, 23, 0, 0, 0, time.UTC)
	g := newGuard(1.0, 1.0, now)
	_ = g.Record(context.Background())
	if open, _ := g.IsOpen(context.Background()); open {
		t.Fatalf("бюджет марта исчерпан")
	}

	// Новый месяц начинается с нуля через смену ключа.
	g.now = func() time.Time { return now.Add(2 * time.Hour) }
	open, err := g.IsOpen(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !open {
		t.Fatalf("апрельский бюджет должен быть открыт")
	}
}
