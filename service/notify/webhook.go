/*
 * @module service/notify/webhook
 * @description Webhook通知渠道，将异常通知POST到配置的回调地址
 * @architecture 分层架构 - 协作者层
 * @documentReference dev_docs/requirements.md
 * @stateFlow 序列化通知 -> HTTP POST -> 状态码校验
 * @rules URL为空视为未启用；非2xx响应视为发送失败
 * @dependencies net/http, encoding/json
 * @refs service/notify/notify.go
 */

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookChannel Webhook通知渠道
type WebhookChannel struct {
	URL     string
	Headers map[string]string
	client  *http.Client
}

// NewWebhookChannel 创建Webhook通知渠道
func NewWebhookChannel(url string) *WebhookChannel {
	return &WebhookChannel{
		URL:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send 发送Webhook通知
func (w *WebhookChannel) Send(ctx context.Context, notification *Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("序列化通知数据失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range w.Headers {
		req.Header.Set(key, value)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("发送Webhook请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("Webhook返回非成功状态码: %d", resp.StatusCode)
	}

	return nil
}

// GetChannelType 获取渠道类型
func (w *WebhookChannel) GetChannelType() string {
	return "webhook"
}

// IsEnabled 检查是否启用
func (w *WebhookChannel) IsEnabled() bool {
	return w.URL != ""
}
