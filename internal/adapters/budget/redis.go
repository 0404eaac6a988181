package budget

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

// kv — подмножество команд Redis, нужное бюджету.
type kv interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	HIncrBy(ctx context.Context, key, field string, incr int64) *redis.IntCmd
	HIncrByFloat(ctx context.Context, key, field string, incr float64) *redis.FloatCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// Redis реализует domain.BudgetGuard: один документ на календарный месяц,
// общий для всех пользователей. Стоимость — фиксированная оценка на запрос,
// а не фактический расход: бюджет работает как мягкий предохранитель.
type Redis struct {
	client         kv
	cap            float64
	costPerRequest float64
	now            func() time.Time
}

var _ domain.BudgetGuard = (*Redis)(nil)

// NewRedis создаёт ограничитель с месячным потолком cap (в долларах).
func NewRedis(client *redis.Client, cap, costPerRequest float64) *Redis {
	if cap <= 0 {
		cap = 20
	}
	if costPerRequest <= 0 {
		costPerRequest = 0.00002
	}
	return &Redis{client: client, cap: cap, costPerRequest: costPerRequest, now: time.Now}
}

func monthKey(t time.Time) string {
	return "budget:" + t.UTC().Format("2006-01")
}

// IsOpen возвращает true, пока накопленная оценка расходов меньше потолка.
// Отсутствие документа означает нулевой расход: новый месяц начинается
// сменой ключа, без явного обнуления.
func (g *Redis) IsOpen(ctx context.Context) (bool, error) {
	start := time.Now()
	raw, err := g.client.HGet(ctx, monthKey(g.now()), "estimated_cost").Result()
	metrics.ObserveNetworkRequest("redis", "budget_check", "budget", start, ignoreNil(err))
	if errors.Is(err, redis.Nil) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("чтение бюджета: %w", err)
	}
	cost, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return false, fmt.Errorf("повреждённый счётчик бюджета: %w", err)
	}
	return cost < g.cap, nil
}

// Record добавляет оценку стоимости одного запроса и увеличивает счётчик
// запросов. Инкременты полей атомарны на стороне хранилища; стоимость
// пишется первой, чтобы сбой между шагами не занижал расход.
func (g *Redis) Record(ctx context.Context) error {
	key := monthKey(g.now())
	start := time.Now()
	if err := g.client.HIncrByFloat(ctx, key, "estimated_cost", g.costPerRequest).Err(); err != nil {
		metrics.ObserveNetworkRequest("redis", "budget_record", "budget", start, err)
		return fmt.Errorf("учёт стоимости: %w", err)
	}
	if err := g.client.HIncrBy(ctx, key, "requests", 1).Err(); err != nil {
		metrics.ObserveNetworkRequest("redis", "budget_record", "budget", start, err)
		return fmt.Errorf("учёт запроса: %w", err)
	}
	err := g.client.HSet(ctx, key, "last_updated", g.now().UTC().Format(time.RFC3339)).Err()
	metrics.ObserveNetworkRequest("redis", "budget_record", "budget", start, err)
	if err != nil {
		return fmt.Errorf("отметка времени бюджета: %w", err)
	}
	return nil
}

// State возвращает срез текущего месяца для наблюдаемости.
func (g *Redis) State(ctx context.Context) (domain.BudgetState, error) {
	start := time.Now()
	fields, err := g.client.HGetAll(ctx, monthKey(g.now())).Result()
	metrics.ObserveNetworkRequest("redis", "budget_state", "budget", start, err)
	if err != nil {
		return domain.BudgetState{}, fmt.Errorf("чтение бюджета: %w", err)
	}
	var state domain.BudgetState
	if raw, ok := fields["requests"]; ok {
		state.Requests, _ = strconv.ParseInt(raw, 10, 64)
	}
	if raw, ok := fields["estimated_cost"]; ok {
		state.EstimatedCost, _ = strconv.ParseFloat(raw, 64)
	}
	return state, nil
}

func ignoreNil(err error) error {
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
