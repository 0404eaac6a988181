package domain

import "time"

// User описывает профиль пользователя мобильного приложения.
// Ядро читает профили, но никогда их не изменяет.
type User struct {
	ID           int64
	PushToken    string
	Locale       string
	Timezone     string
	NotifyHour   int
	NotifyMinute int
	FocusTags    []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MoodContext описывает эмоциональный контекст запроса на генерацию.
type MoodContext struct {
	LongTermState  string
	YesterdayMood  string
	YesterdayNotes string
}

// MessageSource указывает происхождение сообщения.
type MessageSource string

const (
	// SourceGenerated — свежий ответ генератора.
	SourceGenerated MessageSource = "generated"
	// SourceCache — валидная запись из кэша.
	SourceCache MessageSource = "cache"
	// SourceFallback — статическая заглушка.
	SourceFallback MessageSource = "fallback"
)

// Message — сгенерированное сообщение с провенансом.
type Message struct {
	ID          string
	Text        string
	Author      string
	Categories  []string
	Source      MessageSource
	GeneratedAt time.Time
}

// Quote — разобранный ответ генератора в режиме цитаты.
type Quote struct {
	Text       string
	Author     string
	Categories []string
}

// QuotaStatus — результат проверки дневной квоты.
type QuotaStatus struct {
	Allowed   bool
	Remaining int
}

// BudgetState — срез месячного бюджета генерации.
type BudgetState struct {
	Requests      int64
	EstimatedCost float64
}

// FailReason — код мягкого отказа шлюза генерации.
type FailReason string

const (
	// ReasonQuotaExceeded — исчерпана дневная квота пользователя.
	ReasonQuotaExceeded FailReason = "quota_exceeded"
	// ReasonBudgetExceeded — закрыт общий месячный бюджет.
	ReasonBudgetExceeded FailReason = "budget_exceeded"
	// ReasonGenerationFailed — генерация или хранилище недоступны.
	ReasonGenerationFailed FailReason = "generation_failed"
)

// GatewayResult — структурированный ответ шлюза генерации.
// Мягкие отказы возвращаются результатом, а не ошибкой: клиент
// всегда может показать статический контент.
type GatewayResult struct {
	Success bool
	Message Message
	Reason  FailReason
}

// Notification — пуш-уведомление с заголовком, текстом и метаданными.
type Notification struct {
	Title string
	Body  string
	Data  map[string]string
}
