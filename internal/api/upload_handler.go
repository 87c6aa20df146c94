package api

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dutchcoders/go-clamd"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"cvtailor/internal/api/middleware"
	"cvtailor/internal/storage"
)

const maxUploadBytes = 10 << 20

// UploadHandler 负责会话内的文件上传：CV 原件与头像图片。
// 所有上传先经 ClamAV 扫描，再落入对象存储。
type UploadHandler struct {
	db        *gorm.DB
	storage   *storage.Client
	clamdAddr string
}

// NewUploadHandler 构造 UploadHandler。ClamdAddr 为空时跳过扫描（本地开发）。
func NewUploadHandler(db *gorm.DB, storageClient *storage.Client, clamdAddr string) *UploadHandler {
	return &UploadHandler{db: db, storage: storageClient, clamdAddr: clamdAddr}
}

var allowedCVExtensions = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".txt":  "text/plain",
}

// POST /v1/sessions/:key/upload
// 上传 CV 原件；对象键写回会话，供后续生成调用转发。
func (h *UploadHandler) UploadCV(c *gin.Context) {
	sessions := &SessionHandler{db: h.db}
	session, ok := sessions.loadSession(c)
	if !ok {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file")
		return
	}
	if file.Size > maxUploadBytes {
		BadRequest(c, "file too large")
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	contentType, ok := allowedCVExtensions[ext]
	if !ok {
		BadRequest(c, "unsupported file type")
		return
	}

	if !h.scanUpload(c, file) {
		return
	}

	objectKey := fmt.Sprintf("cv-uploads/%s/%s%s", session.Key, uuid.NewString(), ext)
	if !h.putObject(c, file, objectKey, contentType) {
		return
	}

	if err := h.db.WithContext(c.Request.Context()).
		Model(session).
		Update("cv_file_key", objectKey).Error; err != nil {
		Internal(c, "failed to record upload")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"objectKey": objectKey})
}

// POST /v1/sessions/:key/headshot
// 上传头像；返回限时预签名 URL，前端写入 headshot_url 字段。
func (h *UploadHandler) UploadHeadshot(c *gin.Context) {
	sessions := &SessionHandler{db: h.db}
	session, ok := sessions.loadSession(c)
	if !ok {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file")
		return
	}
	if file.Size > maxUploadBytes {
		BadRequest(c, "file too large")
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".webp":
	default:
		BadRequest(c, "unsupported image type")
		return
	}

	if !h.scanUpload(c, file) {
		return
	}

	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	objectKey := fmt.Sprintf("headshots/%s/%s%s", session.Key, uuid.NewString(), ext)
	if !h.putObject(c, file, objectKey, contentType) {
		return
	}

	url, err := h.storage.GeneratePresignedURL(c.Request.Context(), objectKey, 7*24*time.Hour)
	if err != nil {
		middleware.LoggerFromContext(c).Error("presign headshot url failed", "error", err)
		Internal(c, "failed to generate url")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"objectKey": objectKey, "url": url})
}

// scanUpload 通过 clamd 扫描上传内容；发现病毒直接拒绝。
// 扫描服务自身故障按系统错误处理，不放行文件。
func (h *UploadHandler) scanUpload(c *gin.Context, file *multipart.FileHeader) bool {
	if strings.TrimSpace(h.clamdAddr) == "" {
		return true
	}

	reader, err := file.Open()
	if err != nil {
		Internal(c, "failed to open file")
		return false
	}

	clamdClient := clamd.NewClamd(h.clamdAddr)
	abortChan := make(chan bool)
	scanChan, err := clamdClient.ScanStream(reader, abortChan)
	reader.Close()
	if err != nil {
		middleware.LoggerFromContext(c).Error("scan file failed", "error", err)
		Internal(c, "failed to scan file")
		return false
	}
	defer close(abortChan)

	for result := range scanChan {
		if result.Status != clamd.RES_OK {
			BadRequest(c, "malicious file detected")
			return false
		}
	}
	return true
}

func (h *UploadHandler) putObject(c *gin.Context, file *multipart.FileHeader, objectKey, contentType string) bool {
	reader, err := file.Open()
	if err != nil {
		Internal(c, "failed to open file")
		return false
	}
	defer reader.Close()

	if _, err := h.storage.UploadFile(c.Request.Context(), objectKey, reader, file.Size, contentType); err != nil {
		log := middleware.LoggerFromContext(c)
		if storage.IsNoSuchBucket(err) {
			log.Error("upload bucket missing, check storage provisioning", "error", err)
		} else {
			log.Error("upload file failed", "error", err)
		}
		Internal(c, "failed to upload file")
		return false
	}
	return true
}

// isValidSessionObjectKey 校验对象键归属于指定会话且形态合法。
func isValidSessionObjectKey(sessionKey, objectKey string) bool {
	if objectKey == "" || !utf8.ValidString(objectKey) {
		return false
	}
	var matched bool
	for _, prefix := range sessionObjectPrefixes(sessionKey) {
		if strings.HasPrefix(objectKey, prefix) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	if strings.Contains(objectKey, "..") || strings.Contains(objectKey, "\\") || strings.Contains(objectKey, "//") {
		return false
	}
	return len(objectKey) <= 200
}
