package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"cvtailor/internal/api/middleware"
	"cvtailor/internal/generation"
	"cvtailor/internal/render"
	"cvtailor/internal/storage"
	"cvtailor/internal/tasks"
)

// ExportHandler 负责最终导出：排队 PDF 生成任务、提供下载链接、
// 以及把渲染结果寄送到用户邮箱。导出不改变字段记录状态。
type ExportHandler struct {
	db          *gorm.DB
	asynqClient *asynq.Client
	storage     *storage.Client
	store       *render.Store
	emailSender generation.EmailSender
}

// NewExportHandler 构造 ExportHandler。
func NewExportHandler(
	db *gorm.DB,
	asynqClient *asynq.Client,
	storageClient *storage.Client,
	store *render.Store,
	emailSender generation.EmailSender,
) *ExportHandler {
	return &ExportHandler{
		db:          db,
		asynqClient: asynqClient,
		storage:     storageClient,
		store:       store,
		emailSender: emailSender,
	}
}

type exportRequest struct {
	DocType string `json:"doc"`
	EmailTo string `json:"email_to"`
}

// POST /v1/sessions/:key/export
// 排队一个 PDF 导出任务，完成与否通过 WebSocket 通知。
func (h *ExportHandler) ExportPDF(c *gin.Context) {
	sessions := &SessionHandler{db: h.db}
	session, ok := sessions.loadSession(c)
	if !ok {
		return
	}

	var req exportRequest
	_ = c.ShouldBindJSON(&req)
	doc, ok := parseDocType(req.DocType)
	if !ok {
		BadRequest(c, "doc must be cv or cl")
		return
	}

	correlationID := middleware.GetCorrelationID(c)
	task, err := tasks.NewPDFExportTask(session.Key, string(doc), strings.TrimSpace(req.EmailTo), correlationID)
	if err != nil {
		Internal(c, "failed to build export task")
		return
	}
	if _, err := h.asynqClient.EnqueueContext(c.Request.Context(), task); err != nil {
		middleware.LoggerFromContext(c).Error("enqueue export task failed", "error", err)
		Internal(c, "failed to enqueue export task")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":         "queued",
		"correlation_id": correlationID,
	})
}

// GET /v1/sessions/:key/download-link
// 返回最近一次导出 PDF 的限时下载链接。
func (h *ExportHandler) GetDownloadLink(c *gin.Context) {
	sessions := &SessionHandler{db: h.db}
	session, ok := sessions.loadSession(c)
	if !ok {
		return
	}

	if session.PdfKey == "" || !isValidSessionObjectKey(session.Key, session.PdfKey) {
		NotFound(c, "no exported pdf for this session")
		return
	}

	// 链接直接触发下载而不是在浏览器里打开。
	params := map[string]string{
		"response-content-disposition": `attachment; filename="cv.pdf"`,
	}
	url, err := h.storage.GeneratePresignedURLWithParams(c.Request.Context(), session.PdfKey, 15*time.Minute, params)
	if err != nil {
		middleware.LoggerFromContext(c).Error("presign pdf url failed", "error", err)
		Internal(c, "failed to generate url")
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "expires_in_seconds": 900})
}

// GET /v1/sessions/:key/files
// 列出会话名下的对象（上传原件、头像、导出产物）。
func (h *ExportHandler) ListSessionFiles(c *gin.Context) {
	sessions := &SessionHandler{db: h.db}
	session, ok := sessions.loadSession(c)
	if !ok {
		return
	}

	type fileItem struct {
		Key          string `json:"key"`
		Size         int64  `json:"size"`
		LastModified string `json:"last_modified"`
	}

	items := make([]fileItem, 0, 8)
	for _, prefix := range sessionObjectPrefixes(session.Key) {
		metas, err := h.storage.ListObjects(c.Request.Context(), prefix, 50)
		if err != nil {
			middleware.LoggerFromContext(c).Error("list session objects failed", "prefix", prefix, "error", err)
			Internal(c, "failed to list files")
			return
		}
		for _, meta := range metas {
			items = append(items, fileItem{
				Key:          meta.Key,
				Size:         meta.Size,
				LastModified: meta.LastModified.UTC().Format(time.RFC3339),
			})
		}
	}
	c.JSON(http.StatusOK, gin.H{"files": items})
}

type emailRequest struct {
	Recipient string `json:"recipient"`
	IncludeCV bool   `json:"include_cv"`
	IncludeCL bool   `json:"include_cl"`
}

// POST /v1/sessions/:key/email
// 把当前渲染结果寄给用户。投递失败只作为提示返回，
// 不影响会话状态，也不回滚任何内容。
func (h *ExportHandler) SendEmail(c *gin.Context) {
	sessions := &SessionHandler{db: h.db}
	session, ok := sessions.loadSession(c)
	if !ok {
		return
	}

	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	recipient := strings.TrimSpace(req.Recipient)
	if recipient == "" {
		recipient = session.Email
	}
	if recipient == "" {
		BadRequest(c, "recipient is required")
		return
	}
	if !req.IncludeCV && !req.IncludeCL {
		req.IncludeCV = true
	}

	ctx := c.Request.Context()
	mail := generation.EmailRequest{
		Recipient: recipient,
		Subject:   "Your tailored application documents",
	}
	if req.IncludeCV {
		mail.CVHTML = h.store.RenderCV(ctx, session.TemplateSlug, render.RecordFromJSONMap(session.CVFields))
	}
	if req.IncludeCL {
		mail.CLHTML = h.store.RenderCoverLetter(ctx, session.TemplateSlug, render.RecordFromJSONMap(session.CLFields))
	}

	if err := h.emailSender.Send(ctx, mail); err != nil {
		middleware.LoggerFromContext(c).Warn("email send failed", "error", err)
		c.JSON(http.StatusOK, gin.H{"sent": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": true})
}
