// Package notify содержит подписчиков на события смены статуса заказа.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/mmeshcher/orderflow/internal/model"
)

// WebhookListener отправляет события смены статуса POST-запросом на внешний адрес
// (сервис рассылки писем, обновление админки).
type WebhookListener struct {
	url    string
	client *retryablehttp.Client
}

// NewWebhookListener создаёт подписчика, отправляющего события на указанный адрес.
func NewWebhookListener(url string, logger *zap.Logger) *WebhookListener {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = 5 * time.Second
	client.Logger = leveledLogger{logger.Sugar()}

	base := strings.TrimRight(url, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	return &WebhookListener{
		url:    base,
		client: client,
	}
}

// Name возвращает имя подписчика.
func (l *WebhookListener) Name() string {
	return "webhook"
}

// Handle отправляет событие. Повторы выполняются на 5xx и сетевых ошибках.
func (l *WebhookListener) Handle(ctx context.Context, evt model.StatusChangedEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, l.url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Id", evt.EventID)

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return nil
}

type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{}) { l.s.Infow(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{}) { l.s.Warnw(msg, kv...) }
