package message

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mood-coach-backend/internal/domain"
	"mood-coach-backend/internal/infra/metrics"
)

// Service реализует шлюз генерации: упорядоченный конвейер допусков
// квота → кэш → бюджет → генерация. Порядок шагов фиксирован, первый
// блокирующий шаг завершает обработку.
type Service struct {
	users     domain.UserRepo
	cache     domain.MessageCache
	quota     domain.QuotaTracker
	budget    domain.BudgetGuard
	generator domain.Generator
	log       zerolog.Logger
	dailyTTL  time.Duration
	quoteTTL  time.Duration
	now       func() time.Time
}

// NewService создаёт шлюз.
func NewService(users domain.UserRepo, cache domain.MessageCache, quota domain.QuotaTracker, budget domain.BudgetGuard, generator domain.Generator, logger zerolog.Logger, dailyTTL, quoteTTL time.Duration) *Service {
	if dailyTTL <= 0 {
		dailyTTL = 24 * time.Hour
	}
	if quoteTTL <= 0 {
		quoteTTL = 7 * 24 * time.Hour
	}
	return &Service{
		users:     users,
		cache:     cache,
		quota:     quota,
		budget:    budget,
		generator: generator,
		log:       logger,
		dailyTTL:  dailyTTL,
		quoteTTL:  quoteTTL,
		now:       time.Now,
	}
}

// Motivational строит персональное сообщение дня под эмоциональный контекст.
// Ошибка возвращается только на некорректный вход; все остальные сбои —
// мягкие исходы внутри результата.
func (s *Service) Motivational(ctx context.Context, userID int64, mood domain.MoodContext) (domain.GatewayResult, error) {
	if userID <= 0 || strings.TrimSpace(mood.LongTermState) == "" || strings.TrimSpace(mood.YesterdayMood) == "" {
		return domain.GatewayResult{}, domain.ErrInvalidRequest
	}
	result := s.run(ctx, "motivational", userID, DailyKey(s.now()), s.dailyTTL, func(ctx context.Context) (domain.Message, error) {
		text, err := s.generator.Motivational(ctx, mood)
		if err != nil {
			return domain.Message{}, err
		}
		return s.newMessage(text, "", nil), nil
	})
	return result, nil
}

// Quote возвращает вдохновляющую цитату под теги профиля пользователя.
func (s *Service) Quote(ctx context.Context, userID int64) (domain.GatewayResult, error) {
	if userID <= 0 {
		return domain.GatewayResult{}, domain.ErrInvalidRequest
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		// Недоступность профиля — сбой хранилища, на границе шлюза
		// он неотличим от сбоя генерации.
		s.log.Error().Err(err).Int64("user", userID).Msg("шлюз: не удалось прочитать профиль")
		metrics.IncGeneration("quote", "generation_failed")
		return softFail(domain.ReasonGenerationFailed), nil
	}
	result := s.run(ctx, "quote", userID, QuoteKey(user.FocusTags), s.quoteTTL, func(ctx context.Context) (domain.Message, error) {
		quote, err := s.generator.Quote(ctx, user.FocusTags)
		if err != nil {
			return domain.Message{}, err
		}
		return s.newMessage(quote.Text, quote.Author, quote.Categories), nil
	})
	return result, nil
}

// run — общий конвейер допусков. Запись в кэш предшествует учёту квоты
// и бюджета: сбой между шагами может завысить учёт, но никогда не
// отдаст пользователю незакэшированный ответ.
func (s *Service) run(ctx context.Context, operation string, userID int64, key string, ttl time.Duration, generate func(context.Context) (domain.Message, error)) domain.GatewayResult {
	status, err := s.quota.Check(ctx, userID)
	if err != nil {
		s.log.Error().Err(err).Int64("user", userID).Msg("шлюз: проверка квоты недоступна")
		metrics.IncGeneration(operation, "generation_failed")
		return softFail(domain.ReasonGenerationFailed)
	}
	if !status.Allowed {
		metrics.QuotaRejectedTotal.Inc()
		metrics.IncGeneration(operation, "quota_exceeded")
		return softFail(domain.ReasonQuotaExceeded)
	}

	cached, err := s.cache.Get(ctx, userID, key)
	if err == nil {
		metrics.IncCacheEvent("hit")
		metrics.IncGeneration(operation, "cache_hit")
		cached.Source = domain.SourceCache
		return domain.GatewayResult{Success: true, Message: cached}
	}
	if !errors.Is(err, domain.ErrNotFound) {
		// Недоступный кэш — сбой хранилища, на границе шлюза он
		// неотличим от сбоя генерации.
		s.log.Error().Err(err).Int64("user", userID).Msg("шлюз: кэш недоступен")
		metrics.IncGeneration(operation, "generation_failed")
		return softFail(domain.ReasonGenerationFailed)
	}
	metrics.IncCacheEvent("miss")

	open, err := s.budget.IsOpen(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("шлюз: проверка бюджета недоступна")
		metrics.IncGeneration(operation, "generation_failed")
		return softFail(domain.ReasonGenerationFailed)
	}
	if !open {
		metrics.BudgetRejectedTotal.Inc()
		metrics.IncGeneration(operation, "budget_exceeded")
		return softFail(domain.ReasonBudgetExceeded)
	}

	msg, err := generate(ctx)
	if err != nil {
		s.log.Error().Err(err).Int64("user", userID).Str("operation", operation).Msg("шлюз: генерация не удалась")
		metrics.IncGeneration(operation, "generation_failed")
		return softFail(domain.ReasonGenerationFailed)
	}

	if err := s.cache.Put(ctx, userID, key, msg, ttl); err != nil {
		s.log.Error().Err(err).Int64("user", userID).Msg("шлюз: запись в кэш не удалась")
		metrics.IncGeneration(operation, "generation_failed")
		return softFail(domain.ReasonGenerationFailed)
	}
	if err := s.quota.Record(ctx, userID); err != nil {
		s.log.Warn().Err(err).Int64("user", userID).Msg("шлюз: учёт квоты не удался")
	}
	if err := s.budget.Record(ctx); err != nil {
		s.log.Warn().Err(err).Msg("шлюз: учёт бюджета не удался")
	}

	metrics.IncGeneration(operation, "generated")
	return domain.GatewayResult{Success: true, Message: msg}
}

func (s *Service) newMessage(text, author string, categories []string) domain.Message {
	return domain.Message{
		ID:          uuid.NewString(),
		Text:        text,
		Author:      author,
		Categories:  categories,
		Source:      domain.SourceGenerated,
		GeneratedAt: s.now().UTC(),
	}
}

func softFail(reason domain.FailReason) domain.GatewayResult {
	return domain.GatewayResult{Success: false, Reason: reason}
}
