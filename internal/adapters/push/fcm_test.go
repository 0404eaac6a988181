package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mood-coach-backend/internal/domain"
)

func TestFCMSend(t *testing.T) {
	var got map[string]fcmMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/projects/demo/messages:send" {
			t.Fatalf("неожиданный путь: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("не удалось разобрать тело: %v", err)
		}
		_, _ = w.Write([]byte(`{"name":"projects/demo/messages/1"}`))
	}))
	defer srv.Close()

	f, err := NewFCM(srv.URL, "demo", "token", time.Second)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	n := domain.Notification{Title: "Mood Coach", Body: "Как сегодня на душе?", Data: map[string]string{"type": "daily_reminder"}}
	if err := f.Send(context.Background(), "device-token", n); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	msg := got["message"]
	if msg.Token != "device-token" || msg.Notification.Body != n.Body {
		t.Fatalf("неожиданное сообщение: %+v", msg)
	}
}

func TestFCMSendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"UNREGISTERED"}}`, http.StatusNotFound)
	}))
	defer srv.Close()

	f, _ := NewFCM(srv.URL, "demo", "token", time.Second)
	if err := f.Send(context.Background(), "device-token", domain.Notification{}); err == nil {
		t.Fatalf("ошибка доставки должна возвращаться вызывающему")
	}
}

func TestFCMEmptyToken(t *testing.T) {
	f, _ := NewFCM("http://localhost", "demo", "token", time.Second)
	if err := f.Send(context.Background(), "", domain.Notification{}); err == nil {
		t.Fatalf("пустой токен — ошибка")
	}
}
