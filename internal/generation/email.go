package generation

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// EmailSender 把渲染完成的文档寄给用户。发送失败只影响用户提示，
// 不影响会话状态或已渲染内容。
type EmailSender interface {
	Send(ctx context.Context, req EmailRequest) error
}

// EmailRequest 描述一次投递：HTML 正文和/或 PDF 附件。
type EmailRequest struct {
	Recipient   string       `json:"recipient"`
	Subject     string       `json:"subject"`
	CVHTML      string       `json:"cv_html,omitempty"`
	CLHTML      string       `json:"cl_html,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment 是 base64 编码的附件。
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        string `json:"data"`
}

// NewAttachment 封装二进制附件。
func NewAttachment(filename, contentType string, data []byte) Attachment {
	return Attachment{
		Filename:    filename,
		ContentType: contentType,
		Data:        base64.StdEncoding.EncodeToString(data),
	}
}

// WebhookEmailSender 通过外部邮件 Webhook 投递，实现 EmailSender。
type WebhookEmailSender struct {
	httpClient *http.Client
	emailURL   string
	logger     *slog.Logger
}

// NewWebhookEmailSender 构造邮件 Webhook 客户端。
func NewWebhookEmailSender(emailURL string, timeout time.Duration, logger *slog.Logger) *WebhookEmailSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookEmailSender{
		httpClient: &http.Client{Timeout: timeout},
		emailURL:   strings.TrimSpace(emailURL),
		logger:     logger,
	}
}

// Send 投递一封邮件。非 2xx 响应视为失败。
func (s *WebhookEmailSender) Send(ctx context.Context, req EmailRequest) error {
	if s.emailURL == "" {
		return fmt.Errorf("email webhook url is not configured")
	}
	if strings.TrimSpace(req.Recipient) == "" {
		return fmt.Errorf("email recipient is required")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal email payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.emailURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("call email webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
		return fmt.Errorf("email webhook status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	s.logger.Info("email webhook accepted", slog.String("recipient", req.Recipient))
	return nil
}
