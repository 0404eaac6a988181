package message

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mood-coach-backend/internal/domain"
)

type fakeUsers struct {
	user domain.User
	err  error
}

func (f *fakeUsers) GetByID(context.Context, int64) (domain.User, error) { return f.user, f.err }
func (f *fakeUsers) ListForNotifyTime(context.Context, int, int) ([]domain.User, error) {
	return nil, nil
}

type cacheEntry struct {
	msg     domain.Message
	expires time.Time
}

type fakeCache struct {
	clock   func() time.Time
	entries map[string]cacheEntry
	getErr  error
	gets    int
	puts    int
	lastKey string
}

func newFakeCache(clock func() time.Time) *fakeCache {
	return &fakeCache{clock: clock, entries: make(map[string]cacheEntry)}
}

func (f *fakeCache) Get(_ context.Context, userID int64, key string) (domain.Message, error) {
	f.gets++
	if f.getErr != nil {
		return domain.Message{}, f.getErr
	}
	entry, ok := f.entries[fmt.Sprintf("%d|%s", userID, key)]
	if !ok || !f.clock().Before(entry.expires) {
		return domain.Message{}, domain.ErrNotFound
	}
	return entry.msg, nil
}

func (f *fakeCache) Put(_ context.Context, userID int64, key string, msg domain.Message, ttl time.Duration) error {
	f.puts++
	f.lastKey = key
	f.entries[fmt.Sprintf("%d|%s", userID, key)] = cacheEntry{msg: msg, expires: f.clock().Add(ttl)}
	return nil
}

type fakeQuota struct {
	count   int
	ceiling int
	checks  int
	records int
}

func (f *fakeQuota) Check(context.Context, int64) (domain.QuotaStatus, error) {
	f.checks++
	remaining := f.ceiling - f.count
	if remaining < 0 {
		remaining = 0
	}
	return domain.QuotaStatus{Allowed: f.count < f.ceiling, Remaining: remaining}, nil
}

func (f *fakeQuota) Record(context.Context, int64) error {
	f.records++
	f.count++
	return nil
}

type fakeBudget struct {
	open    bool
	checks  int
	records int
}

func (f *fakeBudget) IsOpen(context.Context) (bool, error) { f.checks++; return f.open, nil }
func (f *fakeBudget) Record(context.Context) error         { f.records++; return nil }

type fakeGenerator struct {
	text       string
	quote      domain.Quote
	err        error
	motCalls   int
	quoteCalls int
}

func (f *fakeGenerator) Motivational(context.Context, domain.MoodContext) (string, error) {
	f.motCalls++
	return f.text, f.err
}

func (f *fakeGenerator) Quote(context.Context, []string) (domain.Quote, error) {
	f.quoteCalls++
	return f.quote, f.err
}

func (f *fakeGenerator) Reminder(context.Context, []string) (string, error) { return "", nil }

type world struct {
	svc   *Service
	users *fakeUsers
	cache *fakeCache
	quota *fakeQuota
	bud   *fakeBudget
	gen   *fakeGenerator
	now   time.Time
}

func newWorld() *world {
	w := &world{
		users: &fakeUsers{user: domain.User{ID: 1, FocusTags: []string{"сон", "работа"}}},
		quota: &fakeQuota{ceiling: 5},
		bud:   &fakeBudget{open: true},
		gen:   &fakeGenerator{text: "Сегодня будет легче.", quote: domain.Quote{Text: "Дорогу осилит идущий"}},
		now:   time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return w.now }
	w.cache = newFakeCache(clock)
	w.svc = NewService(w.users, w.cache, w.quota, w.bud, w.gen, zerolog.Nop(), 24*time.Hour, 7*24*time.Hour)
	w.svc.now = clock
	return w
}

var mood = domain.MoodContext{LongTermState: "выгорание", YesterdayMood: "плохое"}

func TestQuoteKeyOrderInvariant(t *testing.T) {
	if QuoteKey([]string{"a", "b", "c"}) != QuoteKey([]string{"c", "a", "b"}) {
		t.Fatalf("ключ должен не зависеть от порядка тегов")
	}
	if QuoteKey([]string{" Сон ", "работа"}) != QuoteKey([]string{"работа", "сон"}) {
		t.Fatalf("теги должны нормализоваться")
	}
	if QuoteKey(nil) != "quote:general" {
		t.Fatalf("пустой набор тегов должен давать общий ключ")
	}
}

func TestMotivationalInvalidRequest(t *testing.T) {
	w := newWorld()
	cases := []struct {
		userID int64
		mood   domain.MoodContext
	}{
		{0, mood},
		{1, domain.MoodContext{YesterdayMood: "плохое"}},
		{1, domain.MoodContext{LongTermState: "выгорание"}},
	}
	for _, tc := range cases {
		if _, err := w.svc.Motivational(context.Background(), tc.userID, tc.mood); !errors.Is(err, domain.ErrInvalidRequest) {
			t.Fatalf("ожидали ErrInvalidRequest, получили %v", err)
		}
	}
	if w.quota.checks != 0 || w.cache.gets != 0 {
		t.Fatalf("до валидации не должно быть обращений к хранилищам")
	}
}

func TestMotivationalCacheHitIsFree(t *testing.T) {
	w := newWorld()
	cachedMsg := domain.Message{ID: "m0", Text: "вчерашнее", Source: domain.SourceGenerated}
	_ = w.cache.Put(context.Background(), 1, DailyKey(w.now), cachedMsg, time.Hour)
	w.cache.puts = 0

	res, err := w.svc.Motivational(context.Background(), 1, mood)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !res.Success || res.Message.Source != domain.SourceCache {
		t.Fatalf("ожидали попадание в кэш, получили %+v", res)
	}
	if w.gen.motCalls != 0 {
		t.Fatalf("попадание в кэш не должно дергать генератор")
	}
	if w.quota.records != 0 {
		t.Fatalf("попадание в кэш не должно тратить квоту")
	}
	if w.bud.checks != 0 || w.bud.records != 0 {
		t.Fatalf("попадание в кэш не должно трогать бюджет")
	}
}

func TestMotivationalQuotaExceeded(t *testing.T) {
	w := newWorld()
	w.quota.count = 5

	res, err := w.svc.Motivational(context.Background(), 1, mood)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if res.Success || res.Reason != domain.ReasonQuotaExceeded {
		t.Fatalf("ожидали quota_exceeded, получили %+v", res)
	}
	if w.gen.motCalls != 0 || w.cache.puts != 0 || w.quota.records != 0 || w.bud.records != 0 {
		t.Fatalf("исчерпанная квота не должна приводить к записям")
	}
}

func TestMotivationalBudgetClosed(t *testing.T) {
	w := newWorld()
	w.bud.open = false

	res, err := w.svc.Motivational(context.Background(), 1, mood)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if res.Success || res.Reason != domain.ReasonBudgetExceeded {
		t.Fatalf("ожидали budget_exceeded, получили %+v", res)
	}
	if w.gen.motCalls != 0 || w.quota.records != 0 {
		t.Fatalf("закрытый бюджет не должен запускать генерацию")
	}
}

func TestMotivationalCacheUnavailable(t *testing.T) {
	w := newWorld()
	w.cache.getErr = errors.New("redis недоступен")

	// Сбой хранилища — мягкий исход, генерация не запускается.
	res, err := w.svc.Motivational(context.Background(), 1, mood)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if res.Success || res.Reason != domain.ReasonGenerationFailed {
		t.Fatalf("ожидали generation_failed, получили %+v", res)
	}
	if w.gen.motCalls != 0 || w.quota.records != 0 || w.bud.records != 0 {
		t.Fatalf("недоступный кэш не должен приводить к генерации и учёту")
	}
}

func TestMotivationalGenerationFailed(t *testing.T) {
	w := newWorld()
	w.gen.err = errors.New("таймаут")

	res, err := w.svc.Motivational(context.Background(), 1, mood)
	if err != nil {
		t.Fatalf("мягкий сбой не должен возвращать ошибку: %v", err)
	}
	if res.Success || res.Reason != domain.ReasonGenerationFailed {
		t.Fatalf("ожидали generation_failed, получили %+v", res)
	}
	if w.quota.records != 0 || w.bud.records != 0 || w.cache.puts != 0 {
		t.Fatalf("неудачная генерация не должна оставлять записей")
	}
}

func TestMotivationalEndToEnd(t *testing.T) {
	w := newWorld()
	w.quota.count = 3

	// Промах кэша: генератор вызывается один раз, кэш и учёт заполняются.
	res, err := w.svc.Motivational(context.Background(), 1, mood)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !res.Success || res.Message.Source != domain.SourceGenerated {
		t.Fatalf("ожидали свежую генерацию, получили %+v", res)
	}
	if w.gen.motCalls != 1 || w.quota.count != 4 || w.cache.puts != 1 || w.bud.records != 1 {
		t.Fatalf("после генерации: gen=%d quota=%d puts=%d budget=%d", w.gen.motCalls, w.quota.count, w.cache.puts, w.bud.records)
	}

	// Повторный идентичный запрос отдаёт кэш и не тратит квоту.
	res, err = w.svc.Motivational(context.Background(), 1, mood)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !res.Success || res.Message.Source != domain.SourceCache {
		t.Fatalf("ожидали кэш, получили %+v", res)
	}
	if w.gen.motCalls != 1 || w.quota.count != 4 {
		t.Fatalf("повторный запрос не должен тратить квоту и генератор")
	}

	// После истечения TTL дневного кэша начинается новый цикл.
	w.now = w.now.Add(25 * time.Hour)
	res, _ = w.svc.Motivational(context.Background(), 1, mood)
	if w.gen.motCalls != 2 {
		t.Fatalf("после истечения кэша ожидали новую генерацию")
	}
	if !res.Success {
		t.Fatalf("не ожидали отказ: %+v", res)
	}
}

func TestQuoteUsesSortedProfileTags(t *testing.T) {
	w := newWorld()
	w.users.user.FocusTags = []string{"работа", "сон"}

	res, err := w.svc.Quote(context.Background(), 1)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !res.Success || w.gen.quoteCalls != 1 {
		t.Fatalf("ожидали генерацию цитаты, получили %+v", res)
	}
	if w.cache.lastKey != "quote:работа-сон" {
		t.Fatalf("неожиданный ключ кэша: %q", w.cache.lastKey)
	}

	// Тот же набор тегов в другом порядке попадает в ту же запись.
	w.users.user.FocusTags = []string{"сон", "работа"}
	res, _ = w.svc.Quote(context.Background(), 1)
	if res.Message.Source != domain.SourceCache || w.gen.quoteCalls != 1 {
		t.Fatalf("перестановка тегов должна давать попадание в кэш")
	}
}

func TestQuoteProfileUnavailable(t *testing.T) {
	w := newWorld()
	w.users.err = errors.New("БД недоступна")

	res, err := w.svc.Quote(context.Background(), 1)
	if err != nil {
		t.Fatalf("сбой хранилища — мягкий исход, а не ошибка: %v", err)
	}
	if res.Success || res.Reason != domain.ReasonGenerationFailed {
		t.Fatalf("ожидали generation_failed, получили %+v", res)
	}
}
