package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/procure-next/internal/cache"
	"github.com/procure-next/internal/config"
	"github.com/procure-next/internal/constants"
	"github.com/procure-next/internal/logger"
	"github.com/procure-next/internal/queue"

	"github.com/hibiken/asynq"
)

// NotificationInput 通知事件参数
type NotificationInput struct {
	Event     string
	Title     string
	Message   string
	Severity  string
	Link      string
	DedupeKey string
}

// NotificationService 业务通知服务。发送是尽力而为：
// 入队失败只记日志，不影响触发它的业务操作。
type NotificationService struct {
	queueClient *queue.Client
	cfg         config.NotifyConfig
	httpClient  *http.Client
}

// NewNotificationService 创建业务通知服务
func NewNotificationService(queueClient *queue.Client, cfg config.NotifyConfig) *NotificationService {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &NotificationService{
		queueClient: queueClient,
		cfg:         cfg,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// Notify 入队一条业务通知，失败时记日志后吞掉
func (s *NotificationService) Notify(input NotificationInput) {
	if s == nil || s.queueClient == nil {
		return
	}
	event := strings.TrimSpace(input.Event)
	if event == "" {
		return
	}
	severity := strings.TrimSpace(input.Severity)
	if severity == "" {
		severity = constants.NotifySeverityInfo
	}
	payload := queue.NotificationDispatchPayload{
		Event:     event,
		Title:     strings.TrimSpace(input.Title),
		Message:   strings.TrimSpace(input.Message),
		Severity:  severity,
		Link:      strings.TrimSpace(input.Link),
		DedupeKey: strings.TrimSpace(input.DedupeKey),
	}
	if err := s.queueClient.EnqueueNotificationDispatch(payload, asynq.MaxRetry(5)); err != nil {
		logger.Warnw("notification_enqueue_failed",
			"event", event,
			"error", err,
		)
	}
}

// Dispatch 处理通知分发任务：去重后投递到 Webhook，未配置则记日志
func (s *NotificationService) Dispatch(ctx context.Context, payload queue.NotificationDispatchPayload) error {
	if s == nil {
		return nil
	}
	if payload.DedupeKey != "" {
		window := time.Duration(s.cfg.DedupeWindowSecond) * time.Second
		if window <= 0 {
			window = 5 * time.Minute
		}
		acquired, err := cache.SetNX(ctx, fmt.Sprintf("notify:dedupe:%s", payload.DedupeKey), payload.Event, window)
		if err != nil {
			logger.Warnw("notification_dedupe_check_failed",
				"event", payload.Event,
				"error", err,
			)
		} else if !acquired {
			return nil
		}
	}

	webhook := strings.TrimSpace(s.cfg.WebhookURL)
	if webhook == "" {
		logger.Infow("notification_dispatched",
			"event", payload.Event,
			"title", payload.Title,
			"severity", payload.Severity,
			"link", payload.Link,
		)
		return nil
	}
	return s.postWebhook(ctx, webhook, payload)
}

func (s *NotificationService) postWebhook(ctx context.Context, webhook string, payload queue.NotificationDispatchPayload) error {
	body, err := json.Marshal(map[string]string{
		"event":    payload.Event,
		"title":    payload.Title,
		"message":  payload.Message,
		"severity": payload.Severity,
		"link":     payload.Link,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification webhook returned status %d", resp.StatusCode)
	}
	return nil
}
