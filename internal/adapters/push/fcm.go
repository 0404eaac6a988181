package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mood-coach-backend/internal/domain"
	"mood-coach-backend/internal/infra/metrics"
)

const defaultFCMBaseURL = "https://fcm.googleapis.com"

// FCM отправляет пуш-уведомления через HTTP API Firebase Cloud Messaging.
type FCM struct {
	client      *http.Client
	baseURL     string
	projectID   string
	accessToken string
}

var _ domain.Pusher = (*FCM)(nil)

// NewFCM создаёт транспорт доставки.
func NewFCM(baseURL, projectID, accessToken string, timeout time.Duration) (*FCM, error) {
	if projectID == "" {
		return nil, errors.New("fcm: project id is empty")
	}
	if baseURL == "" {
		baseURL = defaultFCMBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &FCM{
		client:      &http.Client{Timeout: timeout},
		baseURL:     baseURL,
		projectID:   projectID,
		accessToken: accessToken,
	}, nil
}

type fcmMessage struct {
	Token        string            `json:"token"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Send доставляет уведомление на устройство по токену.
func (f *FCM) Send(ctx context.Context, token string, n domain.Notification) error {
	if token == "" {
		return errors.New("fcm: device token is empty")
	}
	payload, err := json.Marshal(map[string]any{
		"message": fcmMessage{
			Token:        token,
			Notification: fcmNotification{Title: n.Title, Body: n.Body},
			Data:         n.Data,
		},
	})
	if err != nil {
		return fmt.Errorf("fcm: marshal message: %w", err)
	}
	endpoint := fmt.Sprintf("%s/v1/projects/%s/messages:send", f.baseURL, f.projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("fcm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.accessToken)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		metrics.ObserveNetworkRequest("fcm", "send", "messages", start, err)
		return fmt.Errorf("fcm: do request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err = fmt.Errorf("fcm: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		metrics.ObserveNetworkRequest("fcm", "send", "messages", start, err)
		return err
	}
	metrics.ObserveNetworkRequest("fcm", "send", "messages", start, nil)
	return nil
}
