package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"cvtailor/internal/api/middleware"
	"cvtailor/internal/database"
	"cvtailor/internal/generation"
	"cvtailor/internal/render"
)

const (
	generatePerHourLimit = 10
	generateCounterTTL   = time.Hour
)

// GenerateHandler 负责把上传的 CV 与职位信息转发给外部生成 Webhook，
// 并把返回的字段数据浅合并进会话记录。生成失败不触碰既有记录。
type GenerateHandler struct {
	db          *gorm.DB
	client      *generation.Client
	redisClient *redis.Client
}

// NewGenerateHandler 构造 GenerateHandler。
func NewGenerateHandler(db *gorm.DB, client *generation.Client, redisClient *redis.Client) *GenerateHandler {
	return &GenerateHandler{db: db, client: client, redisClient: redisClient}
}

type generateResponse struct {
	Score     int             `json:"score"`
	Tips      []string        `json:"tips"`
	Notes     string          `json:"notes,omitempty"`
	EmailSent bool            `json:"email_sent"`
	Session   sessionResponse `json:"session"`
}

// POST /v1/sessions/:key/generate (multipart)
// 表单字段：cv_file（可选）、job_link、job_description、score_cv、
// generate_cv、generate_cl、send_email。
func (h *GenerateHandler) Generate(c *gin.Context) {
	sessions := &SessionHandler{db: h.db}
	session, ok := sessions.loadSession(c)
	if !ok {
		return
	}

	log := middleware.LoggerFromContext(c)

	if h.redisClient != nil {
		counterKey := fmt.Sprintf("generate_count:%s", session.Key)
		count, err := incrWithTTL(c.Request.Context(), h.redisClient, counterKey, generateCounterTTL)
		if err != nil {
			log.Warn("generation rate counter unavailable", "error", err)
		} else if count > generatePerHourLimit {
			Error(c, http.StatusTooManyRequests, "generation limit reached, try again later")
			return
		}
	}

	req := generation.Request{
		SessionKey:       session.Key,
		Email:            strings.TrimSpace(c.PostForm("email")),
		TemplateSlug:     session.TemplateSlug,
		JobLink:          strings.TrimSpace(c.PostForm("job_link")),
		JobDescription:   c.PostForm("job_description"),
		ScoreCV:          formBool(c, "score_cv", true),
		GenerateCV:       formBool(c, "generate_cv", true),
		GenerateCL:       formBool(c, "generate_cl", true),
		SendEmailOnReady: formBool(c, "send_email", false),
	}
	if req.Email == "" {
		req.Email = session.Email
	}
	if req.JobLink == "" && strings.TrimSpace(req.JobDescription) == "" {
		BadRequest(c, "job_link or job_description is required")
		return
	}

	if file, err := c.FormFile("cv_file"); err == nil {
		reader, err := file.Open()
		if err != nil {
			Internal(c, "failed to open cv file")
			return
		}
		defer reader.Close()
		req.CVFileName = file.Filename
		req.CVFile = reader
	}

	result, err := h.client.Generate(c.Request.Context(), req)
	if err != nil {
		// 已渲染内容保持原样，只把失败告知用户。
		log.Error("generation webhook failed", "error", err)
		Error(c, http.StatusBadGateway, "generation service unavailable")
		return
	}

	// 收到的字段覆盖旧值，未返回的字段保留（浅合并）。
	mergedCV := datatypes.JSONMap(render.RecordFromJSONMap(session.CVFields).Merge(result.CVData).JSONMap())
	mergedCL := datatypes.JSONMap(render.RecordFromJSONMap(session.CLFields).Merge(result.CLData).JSONMap())

	tips, err := json.Marshal(result.Tips)
	if err != nil {
		tips = []byte("[]")
	}

	updates := map[string]any{
		"status":    database.SessionStatusPopulated,
		"score":     result.Score,
		"notes":     result.Notes,
		"tips":      datatypes.JSON(tips),
		"cv_fields": mergedCV,
		"cl_fields": mergedCL,
	}
	if result.CVHTML != "" {
		updates["cv_html"] = result.CVHTML
	}
	if result.CLHTML != "" {
		updates["cl_html"] = result.CLHTML
	}
	if req.Email != "" && session.Email == "" {
		updates["email"] = req.Email
	}

	if err := h.db.WithContext(c.Request.Context()).Model(session).Updates(updates).Error; err != nil {
		Internal(c, "failed to store generation result")
		return
	}

	session.Status = database.SessionStatusPopulated
	session.Score = result.Score
	session.Notes = result.Notes
	session.Tips = datatypes.JSON(tips)
	session.CVFields = mergedCV
	session.CLFields = mergedCL
	if result.CVHTML != "" {
		session.CVHTML = result.CVHTML
	}
	if result.CLHTML != "" {
		session.CLHTML = result.CLHTML
	}

	c.JSON(http.StatusOK, generateResponse{
		Score:     result.Score,
		Tips:      result.Tips,
		Notes:     result.Notes,
		EmailSent: result.EmailSent,
		Session:   sessionToResponse(session),
	})
}

// formBool 读取布尔表单字段，缺省值由调用方给定。
func formBool(c *gin.Context, name string, fallback bool) bool {
	raw := strings.TrimSpace(c.PostForm(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}
