package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"cvtailor/internal/database"
	"cvtailor/internal/errcode"
	"cvtailor/internal/generation"
	"cvtailor/internal/pdf"
	"cvtailor/internal/render"
	"cvtailor/internal/storage"
	"cvtailor/internal/tasks"
)

// ExportTaskHandler 负责消费 PDF 导出任务：渲染会话文档、
// 转换为 PDF、上传对象存储，并按需寄送邮件。
type ExportTaskHandler struct {
	db          *gorm.DB
	storage     *storage.Client
	redisClient *redis.Client
	store       *render.Store
	emailSender generation.EmailSender
	logger      *slog.Logger
}

// NewExportTaskHandler 创建任务处理器。
func NewExportTaskHandler(
	db *gorm.DB,
	storageClient *storage.Client,
	redisClient *redis.Client,
	store *render.Store,
	emailSender generation.EmailSender,
	logger *slog.Logger,
) *ExportTaskHandler {
	return &ExportTaskHandler{
		db:          db,
		storage:     storageClient,
		redisClient: redisClient,
		store:       store,
		emailSender: emailSender,
		logger:      logger,
	}
}

// ProcessTask 实现 asynq.Handler。
func (h *ExportTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	log := h.logger

	var payload tasks.PDFExportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal task payload failed", slog.Any("error", err))
		return err
	}

	log = log.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.String("session", payload.SessionKey),
		slog.String("doc_type", payload.DocType),
	)
	log.Info("Starting document export task...")

	var session database.Session
	if err := h.db.WithContext(ctx).Where("key = ?", payload.SessionKey).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("session not found, skipping task")
			return nil
		}
		log.Error("query session failed", slog.Any("error", err))
		return err
	}

	defer func() {
		if retErr == nil {
			return
		}
		if !isFinalAsynqAttempt(ctx) {
			return
		}

		notify := ExportNotifyMessage{
			Status:        "error",
			SessionKey:    session.Key,
			DocType:       payload.DocType,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.SystemError,
			ErrorMessage:  strings.TrimSpace(retErr.Error()),
		}
		if err := h.publishExportNotify(ctx, session.Key, notify); err != nil {
			log.Error("publish export error notification failed", slog.Any("error", err))
		}
	}()

	html, headshotMissing := h.renderDocument(ctx, &session, payload.DocType)

	pdfBytes, err := pdf.GeneratePDFFromHTML(html)
	if err != nil {
		log.Error("generate pdf failed", slog.Any("error", err))
		return err
	}

	objectKey := fmt.Sprintf("generated-files/%s/%s.pdf", session.Key, uuid.NewString())
	pdfReader := bytes.NewReader(pdfBytes)
	if _, err := h.storage.UploadFile(ctx, objectKey, pdfReader, int64(len(pdfBytes)), "application/pdf"); err != nil {
		log.Error("upload pdf to minio failed", slog.Any("error", err))
		return err
	}

	if err := h.db.WithContext(ctx).Model(&session).Update("pdf_key", objectKey).Error; err != nil {
		log.Error("update session pdf key failed", slog.Any("error", err))
		return err
	}

	emailSent := false
	if recipient := strings.TrimSpace(payload.EmailTo); recipient != "" {
		emailSent = h.sendExportEmail(ctx, log, recipient, payload.DocType, pdfBytes)
	}

	notify := ExportNotifyMessage{
		Status:        "completed",
		SessionKey:    session.Key,
		DocType:       payload.DocType,
		PdfKey:        objectKey,
		EmailSent:     emailSent,
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.OK,
	}
	if headshotMissing {
		notify.ErrorCode = errcode.ResourceMissing
		notify.ErrorMessage = "headshot image unavailable, document generated without it"
	}
	if err := h.publishExportNotify(ctx, session.Key, notify); err != nil {
		log.Error("publish redis notification failed", slog.Any("error", err))
		return err
	}

	log.Info("document export task completed successfully.")
	return nil
}

// renderDocument 渲染会话文档；头像等对象存储图片先内联为 data URI，
// 这样无头浏览器无需凭证也能加载。头像取不到时继续渲染并上报警告。
func (h *ExportTaskHandler) renderDocument(ctx context.Context, session *database.Session, docType string) (string, bool) {
	var record render.Record
	if docType == string(render.DocCoverLetter) {
		record = render.RecordFromJSONMap(session.CLFields)
	} else {
		record = render.RecordFromJSONMap(session.CVFields)
	}

	headshotMissing := false
	record, err := h.inlineHeadshot(ctx, session.Key, record)
	if err != nil {
		headshotMissing = true
		if storage.IsNoSuchKey(err) {
			h.logger.Info("headshot object missing, rendering without it",
				slog.String("session", session.Key),
			)
		} else {
			h.logger.Warn("inline headshot failed, rendering without it",
				slog.String("session", session.Key),
				slog.Any("error", err),
			)
		}
	}

	if docType == string(render.DocCoverLetter) {
		return h.store.RenderCoverLetter(ctx, session.TemplateSlug, record), headshotMissing
	}
	return h.store.RenderCV(ctx, session.TemplateSlug, record), headshotMissing
}

// inlineHeadshot 把记录里指向本会话对象存储的头像键替换为 data URI。
// 外部 URL 或空值原样保留。
func (h *ExportTaskHandler) inlineHeadshot(ctx context.Context, sessionKey string, record render.Record) (render.Record, error) {
	objectKey := strings.TrimSpace(record.Get("headshot_url"))
	prefix := fmt.Sprintf("headshots/%s/", sessionKey)
	if objectKey == "" || !strings.HasPrefix(objectKey, prefix) || strings.Contains(objectKey, "..") {
		return record, nil
	}

	dataURI, err := inlineObjectAsDataURI(ctx, h.storage, objectKey)
	if err != nil {
		return record, err
	}
	return record.WithField("headshot_url", dataURI), nil
}

func (h *ExportTaskHandler) sendExportEmail(ctx context.Context, log *slog.Logger, recipient, docType string, pdfBytes []byte) bool {
	filename := "cv.pdf"
	subject := "Your tailored CV is ready"
	if docType == string(render.DocCoverLetter) {
		filename = "cover-letter.pdf"
		subject = "Your tailored cover letter is ready"
	}

	req := generation.EmailRequest{
		Recipient:   recipient,
		Subject:     subject,
		Attachments: []generation.Attachment{generation.NewAttachment(filename, "application/pdf", pdfBytes)},
	}
	if err := h.emailSender.Send(ctx, req); err != nil {
		log.Warn("send export email failed", slog.Any("error", err))
		return false
	}
	return true
}

func (h *ExportTaskHandler) publishExportNotify(ctx context.Context, sessionKey string, notify ExportNotifyMessage) error {
	data, err := json.Marshal(notify)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := fmt.Sprintf("session_notify:%s", sessionKey)
	if err := h.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
