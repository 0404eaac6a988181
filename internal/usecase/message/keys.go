package message

import (
	"sort"
	"strings"
	"time"
)

// DailyKey — ключ дневного кэша мотивационных сообщений: одно сообщение
// в день на пользователя.
func DailyKey(t time.Time) string {
	return "daily:" + t.UTC().Format("2006-01-02")
}

// QuoteKey — ключ кэша цитат. Теги нормализуются и сортируются, чтобы
// эквивалентные наборы давали один ключ независимо от порядка.
func QuoteKey(tags []string) string {
	normalized := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		normalized = append(normalized, tag)
	}
	if len(normalized) == 0 {
		return "quote:general"
	}
	sort.Strings(normalized)
	return "quote:" + strings.Join(normalized, "-")
}
