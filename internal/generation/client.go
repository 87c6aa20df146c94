package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cvtailor/internal/render"
)

// Client 封装外部 AI 生成 Webhook 的调用：上传 CV 原文件与职位信息，
// 取回评分、建议以及两份文档的字段数据。本服务不做任何推理，只透传。
type Client struct {
	httpClient  *http.Client
	generateURL string
	logger      *slog.Logger
}

// NewClient 构造生成 Webhook 客户端。
func NewClient(generateURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		generateURL: strings.TrimSpace(generateURL),
		logger:      logger,
	}
}

// Request 描述一次生成调用的输入。
type Request struct {
	SessionKey     string
	Email          string
	TemplateSlug   string
	JobLink        string
	JobDescription string

	// 模式开关，与前端表单一致。
	ScoreCV          bool
	GenerateCV       bool
	GenerateCL       bool
	SendEmailOnReady bool

	// 上传的 CV 原文件，可为 nil（纯职位链接模式）。
	CVFileName string
	CVFile     io.Reader
}

// Result 是 webhook 响应在边界处规整后的形态：缺失评分归零、
// 字符串归空、字段映射转成 Record，HTML 兜底已消毒。
type Result struct {
	Score     int
	Tips      []string
	Notes     string
	CVHTML    string
	CLHTML    string
	CVData    render.Record
	CLData    render.Record
	EmailSent bool
}

// rawResponse 与 webhook 的 JSON 契约一一对应，所有字段均可缺失。
type rawResponse struct {
	Score     *float64       `json:"score"`
	Tips      []string       `json:"tips"`
	Notes     string         `json:"notes"`
	CVHTML    string         `json:"cv_html"`
	CLHTML    string         `json:"cl_html"`
	CVData    map[string]any `json:"cv_data"`
	CLData    map[string]any `json:"cl_data"`
	EmailSent *bool          `json:"email_sent"`
}

// Generate 调用生成 Webhook。网络或解码错误原样返回，
// 由调用方决定如何提示用户；已渲染内容不受影响。
func (c *Client) Generate(ctx context.Context, req Request) (*Result, error) {
	if c.generateURL == "" {
		return nil, fmt.Errorf("generate webhook url is not configured")
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	fields := map[string]string{
		"session_id":      req.SessionKey,
		"email":           req.Email,
		"template":        req.TemplateSlug,
		"job_link":        req.JobLink,
		"job_description": req.JobDescription,
		"score_cv":        strconv.FormatBool(req.ScoreCV),
		"generate_cv":     strconv.FormatBool(req.GenerateCV),
		"generate_cl":     strconv.FormatBool(req.GenerateCL),
		"send_email":      strconv.FormatBool(req.SendEmailOnReady),
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("write form field %q: %w", name, err)
		}
	}

	if req.CVFile != nil {
		part, err := writer.CreateFormFile("cv_file", req.CVFileName)
		if err != nil {
			return nil, fmt.Errorf("create cv file part: %w", err)
		}
		if _, err := io.Copy(part, req.CVFile); err != nil {
			return nil, fmt.Errorf("copy cv file: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.generateURL, body)
	if err != nil {
		return nil, fmt.Errorf("build generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call generate webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
		return nil, fmt.Errorf("generate webhook status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var raw rawResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode generate response: %w", err)
	}

	result := normalize(raw)
	c.logger.Info("generation webhook completed",
		slog.String("session", req.SessionKey),
		slog.Int("score", result.Score),
		slog.Int("cv_fields", len(result.CVData)),
		slog.Int("cl_fields", len(result.CLData)),
	)
	return result, nil
}

// normalize 在边界处一次性做防御兜底，渲染层不再关心缺省值。
func normalize(raw rawResponse) *Result {
	result := &Result{
		Tips:   raw.Tips,
		Notes:  raw.Notes,
		CVHTML: SanitizeDocument(raw.CVHTML),
		CLHTML: SanitizeDocument(raw.CLHTML),
		CVData: render.RecordFromJSONMap(raw.CVData),
		CLData: render.RecordFromJSONMap(raw.CLData),
	}
	if raw.Score != nil {
		result.Score = int(*raw.Score)
	}
	if result.Score < 0 {
		result.Score = 0
	}
	if result.Score > 100 {
		result.Score = 100
	}
	if result.Tips == nil {
		result.Tips = []string{}
	}
	if raw.EmailSent != nil {
		result.EmailSent = *raw.EmailSent
	}
	return result
}
