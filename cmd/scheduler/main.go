package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"

	"mood-coach-backend/internal/adapters/budget"
	"mood-coach-backend/internal/adapters/generator"
	"mood-coach-backend/internal/adapters/push"
	"mood-coach-backend/internal/adapters/repo"
	"mood-coach-backend/internal/domain"
	"mood-coach-backend/internal/infra/config"
	"mood-coach-backend/internal/infra/db"
	"mood-coach-backend/internal/infra/llm"
	applog "mood-coach-backend/internal/infra/log"
	"mood-coach-backend/internal/infra/metrics"
	notifyusecase "mood-coach-backend/internal/usecase/notify"
)

func main() {
	cfg := config.Load()
	log := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("scheduler: нет подключения к БД")
	}
	defer pool.Close()

	rdb, err := db.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal().Err(err).Msg("scheduler: нет подключения к Redis")
	}
	defer rdb.Close()

	loc, err := time.LoadLocation(cfg.TZ)
	if err != nil {
		log.Fatal().Err(err).Str("tz", cfg.TZ).Msg("scheduler: неизвестный часовой пояс")
	}

	repoAdapter := repo.NewPostgres(pool)
	budgetAdapter := budget.NewRedis(rdb, cfg.Limits.BudgetCap, cfg.Limits.CostPerRequest)

	llmClient := llm.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout, cfg.OpenAI.GlobalRPS)
	generatorAdapter := generator.NewOpenAI(llmClient, cfg.OpenAI.Model, cfg.OpenAI.Timeout)

	var pusher domain.Pusher
	switch cfg.Push.Provider {
	case "telegram":
		bot, err := tgbotapi.NewBotAPI(cfg.Push.TelegramToken)
		if err != nil {
			log.Fatal().Err(err).Msg("scheduler: не удалось создать Telegram-бота")
		}
		pusher = push.NewTelegram(bot)
	default:
		fcm, err := push.NewFCM(cfg.Push.FCMBaseURL, cfg.Push.FCMProjectID, cfg.Push.FCMToken, cfg.Push.Timeout)
		if err != nil {
			log.Fatal().Err(err).Msg("scheduler: не удалось создать FCM-клиента")
		}
		pusher = fcm
	}

	notifyService := notifyusecase.NewService(
		repoAdapter,
		budgetAdapter,
		generatorAdapter,
		pusher,
		applog.Component(log, "notify"),
		loc,
		cfg.Notify.GenerateTimeout,
		cfg.Limits.ReminderWords,
	)

	metrics.StartServer(ctx, applog.Component(log, "metrics"), ":9090")
	log.Info().Str("tz", cfg.TZ).Msg("scheduler: старт")

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("scheduler: остановка")
			return
		case now := <-ticker.C:
			notifyService.DispatchTick(ctx, now)
		}
	}
}
