package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound возвращается хранилищами, если записи нет или она истекла.
var ErrNotFound = errors.New("запись не найдена")

// ErrInvalidRequest возвращается шлюзом на некорректный вход.
// Это единственный жёсткий отказ: все остальные сбои мягкие.
var ErrInvalidRequest = errors.New("некорректный запрос")

// UserRepo читает профили пользователей.
type UserRepo interface {
	GetByID(ctx context.Context, id int64) (User, error)
	ListForNotifyTime(ctx context.Context, hour, minute int) ([]User, error)
}

// MessageCache — TTL-кэш сообщений пользователя.
// Истечение пассивное: просроченная запись считается отсутствующей,
// но не удаляется.
type MessageCache interface {
	Get(ctx context.Context, userID int64, key string) (Message, error)
	Put(ctx context.Context, userID int64, key string, msg Message, ttl time.Duration) error
}

// QuotaTracker ведёт дневную квоту платных генераций пользователя.
type QuotaTracker interface {
	Check(ctx context.Context, userID int64) (QuotaStatus, error)
	Record(ctx context.Context, userID int64) error
}

// BudgetGuard ведёт общий месячный бюджет на генерацию.
type BudgetGuard interface {
	IsOpen(ctx context.Context) (bool, error)
	Record(ctx context.Context) error
}

// Generator — внешний генератор текста.
type Generator interface {
	Motivational(ctx context.Context, mood MoodContext) (string, error)
	Quote(ctx context.Context, tags []string) (Quote, error)
	Reminder(ctx context.Context, tags []string) (string, error)
}

// Pusher доставляет уведомление по непрозрачному токену устройства.
type Pusher interface {
	Send(ctx context.Context, token string, n Notification) error
}
