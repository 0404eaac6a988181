package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mood-coach-backend/internal/domain"
	"mood-coach-backend/internal/infra/metrics"
)

// Postgres реализует domain.UserRepo на основе pgxpool.
// Профили принадлежат сервису идентичности, здесь они только читаются.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ domain.UserRepo = (*Postgres)(nil)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// GetByID возвращает профиль пользователя.
func (p *Postgres) GetByID(ctx context.Context, id int64) (domain.User, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	row := p.pool.QueryRow(ctx, `
SELECT id, push_token, locale, timezone, notify_hour, notify_minute, focus_tags, created_at, updated_at
FROM users
WHERE id = $1
`, id)
	user, err := scanUser(row)
	metrics.ObserveNetworkRequest("postgres", "users_get", "users", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("чтение пользователя: %w", err)
	}
	return user, nil
}

// ListForNotifyTime возвращает пользователей с точным совпадением времени
// уведомления. Совпадение строгое, без окна: пользователь попадает в выборку
// не более одного раза в сутки.
func (p *Postgres) ListForNotifyTime(ctx context.Context, hour, minute int) ([]domain.User, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, push_token, locale, timezone, notify_hour, notify_minute, focus_tags, created_at, updated_at
FROM users
WHERE notify_hour = $1 AND notify_minute = $2
`, hour, minute)
	metrics.ObserveNetworkRequest("postgres", "users_list_notify", "users", start, err)
	if err != nil {
		return nil, fmt.Errorf("выборка пользователей: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("чтение строки пользователя: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("обход выборки: %w", err)
	}
	return users, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		user      domain.User
		pushToken sql.NullString
		locale    sql.NullString
		timezone  sql.NullString
		tags      []string
	)
	err := row.Scan(&user.ID, &pushToken, &locale, &timezone, &user.NotifyHour, &user.NotifyMinute, &tags, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return domain.User{}, err
	}
	user.PushToken = pushToken.String
	user.Locale = locale.String
	user.Timezone = timezone.String
	user.FocusTags = tags
	return user, nil
}
