package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mood-coach-backend/internal/domain"
	"mood-coach-backend/internal/infra/metrics"
)

// Статический текст на случай закрытого бюджета или неудачной генерации.
const fallbackReminder = "Время отметить сегодняшнее настроение ✨"

const notificationTitle = "Mood Coach"

// Service рассылает персональные напоминания. Раз в минуту выбираются
// пользователи с точным совпадением часа и минуты уведомления, и для
// каждого независимо выполняется попытка доставки. Тик никогда не падает
// целиком: сбой одного получателя логируется и поглощается.
type Service struct {
	users      domain.UserRepo
	budget     domain.BudgetGuard
	generator  domain.Generator
	pusher     domain.Pusher
	log        zerolog.Logger
	loc        *time.Location
	genTimeout time.Duration
	maxWords   int
}

// TickReport — агрегированный итог одного тика.
type TickReport struct {
	Matched int
	Skipped int
	Sent    int
	Failed  int
}

// NewService создаёт диспетчер рассылки.
func NewService(users domain.UserRepo, budget domain.BudgetGuard, generator domain.Generator, pusher domain.Pusher, logger zerolog.Logger, loc *time.Location, genTimeout time.Duration, maxWords int) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if genTimeout <= 0 {
		genTimeout = 8 * time.Second
	}
	if maxWords <= 0 {
		maxWords = 12
	}
	return &Service{
		users:      users,
		budget:     budget,
		generator:  generator,
		pusher:     pusher,
		log:        logger,
		loc:        loc,
		genTimeout: genTimeout,
		maxWords:   maxWords,
	}
}

// DispatchTick обрабатывает один минутный тик.
func (s *Service) DispatchTick(ctx context.Context, now time.Time) TickReport {
	started := time.Now()
	defer func() {
		metrics.NotifyTickSeconds.Observe(time.Since(started).Seconds())
	}()

	local := now.In(s.loc)
	hour, minute := local.Hour(), local.Minute()

	users, err := s.users.ListForNotifyTime(ctx, hour, minute)
	if err != nil {
		s.log.Error().Err(err).Msg("рассылка: выборка пользователей не удалась")
		return TickReport{}
	}
	if len(users) == 0 {
		return TickReport{}
	}

	report := TickReport{Matched: len(users)}
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, user := range users {
		if user.PushToken == "" {
			report.Skipped++
			continue
		}
		wg.Add(1)
		go func(user domain.User) {
			defer wg.Done()
			err := s.notifyUser(ctx, user)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				s.log.Error().Err(err).Int64("user", user.ID).Msg("рассылка: доставка не удалась")
				metrics.IncNotification("error")
				return
			}
			report.Sent++
			metrics.IncNotification("sent")
		}(user)
	}
	wg.Wait()

	s.log.Info().
		Int("matched", report.Matched).
		Int("skipped", report.Skipped).
		Int("sent", report.Sent).
		Int("failed", report.Failed).
		Msgf("рассылка: тик %02d:%02d завершён", hour, minute)
	return report
}

// notifyUser выполняет попытку для одного получателя: при открытом бюджете
// пробуем короткую генерацию, иначе или при любом сбое — статический текст.
func (s *Service) notifyUser(ctx context.Context, user domain.User) error {
	body := fallbackReminder
	source := domain.SourceFallback

	open, err := s.budget.IsOpen(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("рассылка: проверка бюджета недоступна")
	}
	if err == nil && open {
		genCtx, cancel := context.WithTimeout(ctx, s.genTimeout)
		text, err := s.generator.Reminder(genCtx, user.FocusTags)
		cancel()
		switch {
		case err != nil:
			s.log.Debug().Err(err).Int64("user", user.ID).Msg("рассылка: генерация не удалась, используем заглушку")
		case wordCount(text) > s.maxWords:
			s.log.Debug().Int64("user", user.ID).Str("text", text).Msg("рассылка: текст длиннее лимита, используем заглушку")
		default:
			body = text
			source = domain.SourceGenerated
		}
	}

	n := domain.Notification{
		Title: notificationTitle,
		Body:  body,
		Data: map[string]string{
			"type":    "daily_reminder",
			"user_id": strconv.FormatInt(user.ID, 10),
			"source":  string(source),
		},
	}
	if err := s.pusher.Send(ctx, user.PushToken, n); err != nil {
		return fmt.Errorf("отправка уведомления: %w", err)
	}
	return nil
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
