package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"mood-coach-backend/internal/domain"
	"mood-coach-backend/internal/infra/llm"
)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req llm.ChatCompletionRequest) (llm.ChatCompletionResponse, error)
}

// OpenAI реализует domain.Generator через Chat Completions.
type OpenAI struct {
	client  chatClient
	model   string
	timeout time.Duration
}

var _ domain.Generator = (*OpenAI)(nil)

// NewOpenAI создаёт провайдер генерации.
func NewOpenAI(client chatClient, model string, timeout time.Duration) *OpenAI {
	if model == "" {
		model = "gpt-4.1-mini"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &OpenAI{client: client, model: model, timeout: timeout}
}

const motivationalSystem = "Ты тёплый и внимательный собеседник в приложении для отслеживания настроения. Не давай советов, инструкций и диагнозов."

// Motivational строит короткое утреннее сообщение под эмоциональный контекст.
func (g *OpenAI) Motivational(ctx context.Context, mood domain.MoodContext) (string, error) {
	notes := strings.TrimSpace(mood.YesterdayNotes)
	if notes == "" {
		notes = "ничего особенного"
	}
	userPrompt := fmt.Sprintf(`Эмоциональный контекст пользователя:

Долгосрочное состояние: %s
Настроение вчера: %s
Заметки о вчерашнем дне: %s

Задача: напиши короткое мотивационное сообщение на сегодня, которое
с эмпатией учитывает контекст, поддерживает или успокаивает и звучит
лично, а не шаблонно. Не повторяй сырые формулировки контекста.

Ограничения: максимум 5 предложений, без советов, без эмодзи
(допускается максимум один сдержанный).

Выведи только текст сообщения.`, mood.LongTermState, mood.YesterdayMood, notes)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req := llm.ChatCompletionRequest{
		Model:       g.model,
		Temperature: 0.7,
		MaxTokens:   240,
		Messages: []llm.ChatMessage{
			{Role: llm.RoleSystem, Content: motivationalSystem},
			{Role: llm.RoleUser, Content: userPrompt},
		},
	}
	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("генерация сообщения: %w", err)
	}
	text := firstChoice(resp)
	if text == "" {
		return "", fmt.Errorf("генерация сообщения: пустой ответ")
	}
	return text, nil
}

type quotePayload struct {
	Text       string   `json:"text"`
	Author     string   `json:"author"`
	Categories []string `json:"categories"`
}

// Quote просит генератор вернуть цитату строгим JSON-объектом и
// защитно разбирает ответ: кривой JSON — это ошибка генерации.
func (g *OpenAI) Quote(ctx context.Context, tags []string) (domain.Quote, error) {
	focus := strings.Join(tags, ", ")
	if focus == "" {
		focus = "общее благополучие"
	}
	userPrompt := fmt.Sprintf(`Подбери вдохновляющую цитату для человека, которому сейчас важны: %s.
Верни JSON формата {"text": "...", "author": "...", "categories": ["..."]} без пояснений.
Поле author можно оставить пустым, если автор неизвестен.`, focus)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req := llm.ChatCompletionRequest{
		Model:       g.model,
		Temperature: 0.6,
		MaxTokens:   200,
		Messages: []llm.ChatMessage{
			{Role: llm.RoleSystem, Content: "Ты редактор коллекции цитат. Не выдумывай авторство."},
			{Role: llm.RoleUser, Content: userPrompt},
		},
		ResponseFormat: &llm.ChatCompletionResponseFormat{Type: llm.ResponseFormatTypeJSONObject},
	}
	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("генерация цитаты: %w", err)
	}
	content := firstChoice(resp)
	var parsed quotePayload
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return domain.Quote{}, fmt.Errorf("распаковка ответа LLM: %w", err)
	}
	text := strings.TrimSpace(parsed.Text)
	if text == "" {
		return domain.Quote{}, fmt.Errorf("генерация цитаты: пустой текст")
	}
	return domain.Quote{
		Text:       text,
		Author:     strings.TrimSpace(parsed.Author),
		Categories: filterValues(parsed.Categories),
	}, nil
}

// Reminder строит очень короткий текст пуш-напоминания.
func (g *OpenAI) Reminder(ctx context.Context, tags []string) (string, error) {
	focus := strings.Join(tags, ", ")
	if focus == "" {
		focus = "общее благополучие"
	}
	userPrompt := fmt.Sprintf(`Напиши мягкое напоминание отметить сегодняшнее настроение (максимум 10 слов).
Пользователю сейчас важны: %s.
Примеры: "Как сегодня на душе?", "Минутка для себя — отметь настроение".
Выведи только текст, без кавычек и форматирования.`, focus)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req := llm.ChatCompletionRequest{
		Model:       g.model,
		Temperature: 0.8,
		MaxTokens:   40,
		Messages: []llm.ChatMessage{
			{Role: llm.RoleUser, Content: userPrompt},
		},
	}
	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("генерация напоминания: %w", err)
	}
	text := strings.NewReplacer(`"`, "", "'", "", "«", "", "»", "").Replace(firstChoice(resp))
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("генерация напоминания: пустой ответ")
	}
	return text, nil
}

func firstChoice(resp llm.ChatCompletionResponse) string {
	if len(resp.Choices) == 0 {
		return ""
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content)
}

func filterValues(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
