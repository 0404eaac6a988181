package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"mood-coach-backend/internal/adapters/budget"
	"mood-coach-backend/internal/adapters/cache"
	"mood-coach-backend/internal/adapters/generator"
	"mood-coach-backend/internal/adapters/quota"
	"mood-coach-backend/internal/adapters/repo"
	"mood-coach-backend/internal/domain"
	"mood-coach-backend/internal/infra/config"
	"mood-coach-backend/internal/infra/db"
	httpinfra "mood-coach-backend/internal/infra/http"
	"mood-coach-backend/internal/infra/llm"
	applog "mood-coach-backend/internal/infra/log"
	"mood-coach-backend/internal/infra/metrics"
	messageusecase "mood-coach-backend/internal/usecase/message"
)

func main() {
	cfg := config.Load()
	log := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()

	rdb, err := db.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal().Err(err).Msg("api: нет подключения к Redis")
	}
	defer rdb.Close()

	repoAdapter := repo.NewPostgres(pool)
	cacheAdapter := cache.NewRedis(rdb)
	quotaAdapter := quota.NewRedis(rdb, cfg.Limits.DailyQuota)
	budgetAdapter := budget.NewRedis(rdb, cfg.Limits.BudgetCap, cfg.Limits.CostPerRequest)

	llmClient := llm.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout, cfg.OpenAI.GlobalRPS)
	generatorAdapter := generator.NewOpenAI(llmClient, cfg.OpenAI.Model, cfg.OpenAI.Timeout)

	messageService := messageusecase.NewService(
		repoAdapter,
		cacheAdapter,
		quotaAdapter,
		budgetAdapter,
		generatorAdapter,
		applog.Component(log, "message_gateway"),
		cfg.Cache.DailyTTL,
		cfg.Cache.QuoteTTL,
	)

	srv := httpinfra.NewServer(applog.Component(log, "http"))
	r := srv.Router

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpinfra.WriteJSON(w, map[string]string{"status": "ok"})
	})

	r.Get("/api/v1/ops/budget", func(w http.ResponseWriter, r *http.Request) {
		state, err := budgetAdapter.State(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("api: чтение состояния бюджета")
			httpinfra.WriteError(w, http.StatusInternalServerError, "бюджет недоступен")
			return
		}
		httpinfra.WriteJSON(w, map[string]any{
			"requests":       state.Requests,
			"estimated_cost": state.EstimatedCost,
		})
	})

	r.Group(func(protected chi.Router) {
		protected.Use(httpinfra.AuthMiddleware(cfg.Auth.Secret))

		protected.Post("/api/v1/messages/motivational", func(w http.ResponseWriter, r *http.Request) {
			defer r.Body.Close()
			userID, ok := httpinfra.SubjectID(r)
			if !ok {
				httpinfra.WriteError(w, http.StatusUnauthorized, "пользователь не определён")
				return
			}
			var req motivationalRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				httpinfra.WriteError(w, http.StatusBadRequest, "некорректное тело запроса")
				return
			}
			result, err := messageService.Motivational(r.Context(), userID, domain.MoodContext{
				LongTermState:  req.LongTermState,
				YesterdayMood:  req.YesterdayMood,
				YesterdayNotes: req.YesterdayNotes,
			})
			if err != nil {
				if errors.Is(err, domain.ErrInvalidRequest) {
					httpinfra.WriteError(w, http.StatusBadRequest, "обязательные поля отсутствуют")
					return
				}
				log.Error().Err(err).Msg("api: motivational")
				httpinfra.WriteError(w, http.StatusInternalServerError, "внутренняя ошибка")
				return
			}
			httpinfra.WriteJSON(w, toGatewayResponse(result))
		})

		protected.Post("/api/v1/messages/quote", func(w http.ResponseWriter, r *http.Request) {
			defer r.Body.Close()
			userID, ok := httpinfra.SubjectID(r)
			if !ok {
				httpinfra.WriteError(w, http.StatusUnauthorized, "пользователь не определён")
				return
			}
			result, err := messageService.Quote(r.Context(), userID)
			if err != nil {
				if errors.Is(err, domain.ErrInvalidRequest) {
					httpinfra.WriteError(w, http.StatusBadRequest, "некорректный запрос")
					return
				}
				log.Error().Err(err).Msg("api: quote")
				httpinfra.WriteError(w, http.StatusInternalServerError, "внутренняя ошибка")
				return
			}
			httpinfra.WriteJSON(w, toGatewayResponse(result))
		})
	})

	metrics.StartServer(ctx, applog.Component(log, "metrics"), ":9090")
	go func() {
		log.Info().Int("port", cfg.Port).Msg("api: старт")
		if err := srv.Start(":" + strconv.Itoa(cfg.Port)); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("api: сервер остановлен")
		}
	}()
	<-ctx.Done()
	log.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

type motivationalRequest struct {
	LongTermState  string `json:"long_term_state"`
	YesterdayMood  string `json:"yesterday_mood"`
	YesterdayNotes string `json:"yesterday_notes"`
}

type messagePayload struct {
	ID          string   `json:"id"`
	Text        string   `json:"text"`
	Author      string   `json:"author,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	GeneratedAt string   `json:"generated_at"`
}

// Мягкие отказы отдаются со статусом 200: для клиента это штатный
// исход, по которому он показывает статический контент.
func toGatewayResponse(result domain.GatewayResult) map[string]any {
	if !result.Success {
		return map[string]any{
			"success": false,
			"error":   string(result.Reason),
			"message": reasonText(result.Reason),
		}
	}
	return map[string]any{
		"success": true,
		"source":  string(result.Message.Source),
		"message": messagePayload{
			ID:          result.Message.ID,
			Text:        result.Message.Text,
			Author:      result.Message.Author,
			Categories:  result.Message.Categories,
			GeneratedAt: result.Message.GeneratedAt.Format(time.RFC3339),
		},
	}
}

func reasonText(reason domain.FailReason) string {
	switch reason {
	case domain.ReasonQuotaExceeded:
		return "Дневной лимит запросов исчерпан, попробуйте завтра"
	case domain.ReasonBudgetExceeded:
		return "Генерация временно недоступна"
	default:
		return "Не удалось сгенерировать сообщение, попробуйте позже"
	}
}
