package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ" default:"Europe/Amsterdam"`
	Port   int    `envconfig:"PORT" default:"8080"`

	PGDSN     string `envconfig:"PG_DSN"`
	RedisAddr string `envconfig:"REDIS_ADDR"`

	OpenAI struct {
		APIKey    string        `envconfig:"OPENAI_API_KEY"`
		BaseURL   string        `envconfig:"OPENAI_BASE_URL"`
		Model     string        `envconfig:"OPENAI_MODEL" default:"gpt-4.1-mini"`
		Timeout   time.Duration `envconfig:"OPENAI_TIMEOUT" default:"15s"`
		GlobalRPS int           `envconfig:"OPENAI_GLOBAL_RPS" default:"10"`
	} `envconfig:""`

	Push struct {
		Provider      string        `envconfig:"PUSH_PROVIDER" default:"fcm"`
		FCMProjectID  string        `envconfig:"FCM_PROJECT_ID"`
		FCMToken      string        `envconfig:"FCM_ACCESS_TOKEN"`
		FCMBaseURL    string        `envconfig:"FCM_BASE_URL"`
		Timeout       time.Duration `envconfig:"PUSH_TIMEOUT" default:"10s"`
		TelegramToken string        `envconfig:"TG_BOT_TOKEN"`
	} `envconfig:""`

	Auth struct {
		Secret string `envconfig:"AUTH_SECRET"`
	} `envconfig:""`

	Limits struct {
		DailyQuota     int     `envconfig:"DAILY_QUOTA" default:"5"`
		BudgetCap      float64 `envconfig:"BUDGET_CAP_USD" default:"20"`
		CostPerRequest float64 `envconfig:"COST_PER_REQUEST_USD" default:"0.00002"`
		ReminderWords  int     `envconfig:"REMINDER_MAX_WORDS" default:"12"`
	} `envconfig:""`

	Cache struct {
		DailyTTL time.Duration `envconfig:"CACHE_DAILY_TTL" default:"24h"`
		QuoteTTL time.Duration `envconfig:"CACHE_QUOTE_TTL" default:"168h"`
	} `envconfig:""`

	Notify struct {
		GenerateTimeout time.Duration `envconfig:"NOTIFY_GENERATE_TIMEOUT" default:"8s"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
