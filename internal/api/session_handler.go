package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"cvtailor/internal/api/middleware"
	"cvtailor/internal/database"
	"cvtailor/internal/render"
	"cvtailor/internal/storage"
)

// SessionHandler 负责会话与可编辑字段记录的增删改查。
// 字段记录的每次更新都走浅合并/单字段复制，不做原地修改。
type SessionHandler struct {
	db      *gorm.DB
	storage *storage.Client
}

// NewSessionHandler 构造 SessionHandler。
func NewSessionHandler(db *gorm.DB, storageClient *storage.Client) *SessionHandler {
	return &SessionHandler{db: db, storage: storageClient}
}

type createSessionRequest struct {
	Email        string `json:"email"`
	TemplateSlug string `json:"template"`
}

type sessionResponse struct {
	Key          string            `json:"key"`
	Email        string            `json:"email,omitempty"`
	TemplateSlug string            `json:"template"`
	Status       string            `json:"status"`
	Score        int               `json:"score"`
	Notes        string            `json:"notes,omitempty"`
	Tips         datatypes.JSON    `json:"tips,omitempty"`
	CVFields     datatypes.JSONMap `json:"cv_fields"`
	CLFields     datatypes.JSONMap `json:"cl_fields"`
	CVHTML       string            `json:"cv_html,omitempty"`
	CLHTML       string            `json:"cl_html,omitempty"`
	HasUpload    bool              `json:"has_upload"`
	HasPDF       bool              `json:"has_pdf"`
}

func sessionToResponse(s *database.Session) sessionResponse {
	resp := sessionResponse{
		Key:          s.Key,
		Email:        s.Email,
		TemplateSlug: s.TemplateSlug,
		Status:       s.Status,
		Score:        s.Score,
		Notes:        s.Notes,
		Tips:         s.Tips,
		CVFields:     s.CVFields,
		CLFields:     s.CLFields,
		CVHTML:       s.CVHTML,
		CLHTML:       s.CLHTML,
		HasUpload:    s.CVFileKey != "",
		HasPDF:       s.PdfKey != "",
	}
	if resp.CVFields == nil {
		resp.CVFields = datatypes.JSONMap{}
	}
	if resp.CLFields == nil {
		resp.CLFields = datatypes.JSONMap{}
	}
	return resp
}

// POST /v1/sessions
// 创建会话：生成稳定的会话 Key，初始状态为 empty。
func (h *SessionHandler) CreateSession(c *gin.Context) {
	// body 可选（匿名会话），解析失败按空请求处理。
	var req createSessionRequest
	_ = c.ShouldBindJSON(&req)

	model := database.Session{
		Key:          uuid.NewString(),
		Email:        strings.TrimSpace(req.Email),
		TemplateSlug: strings.TrimSpace(req.TemplateSlug),
		Status:       database.SessionStatusEmpty,
		CVFields:     datatypes.JSONMap{},
		CLFields:     datatypes.JSONMap{},
	}
	if model.TemplateSlug == "" {
		model.TemplateSlug = "classic"
	}

	if err := h.db.WithContext(c.Request.Context()).Create(&model).Error; err != nil {
		Internal(c, "failed to create session")
		return
	}
	c.JSON(http.StatusCreated, sessionToResponse(&model))
}

// GET /v1/sessions/:key
func (h *SessionHandler) GetSession(c *gin.Context) {
	model, ok := h.loadSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sessionToResponse(model))
}

type updateSessionRequest struct {
	Email        *string `json:"email"`
	TemplateSlug *string `json:"template"`
}

// PATCH /v1/sessions/:key
// 更新会话元数据（邮箱、选用模板）。模板切换不触碰字段记录，
// 下一次渲染自然使用新模板的缓存资产。
func (h *SessionHandler) UpdateSession(c *gin.Context) {
	model, ok := h.loadSession(c)
	if !ok {
		return
	}

	var req updateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	updates := map[string]any{}
	if req.Email != nil {
		updates["email"] = strings.TrimSpace(*req.Email)
	}
	if req.TemplateSlug != nil {
		slug := strings.TrimSpace(*req.TemplateSlug)
		if slug == "" {
			BadRequest(c, "template slug must not be empty")
			return
		}
		updates["template_slug"] = slug
	}
	if len(updates) == 0 {
		c.JSON(http.StatusOK, sessionToResponse(model))
		return
	}

	if err := h.db.WithContext(c.Request.Context()).Model(model).Updates(updates).Error; err != nil {
		Internal(c, "failed to update session")
		return
	}
	if req.Email != nil {
		model.Email = strings.TrimSpace(*req.Email)
	}
	if req.TemplateSlug != nil {
		model.TemplateSlug = strings.TrimSpace(*req.TemplateSlug)
	}
	c.JSON(http.StatusOK, sessionToResponse(model))
}

// POST /v1/sessions/:key/cv/fields 与 /cl/fields
// 整体浅合并字段记录：请求中出现的字段覆盖旧值，未出现的保留。
func (h *SessionHandler) MergeCVFields(c *gin.Context) { h.mergeFields(c, true) }
func (h *SessionHandler) MergeCLFields(c *gin.Context) { h.mergeFields(c, false) }

func (h *SessionHandler) mergeFields(c *gin.Context, cv bool) {
	model, ok := h.loadSession(c)
	if !ok {
		return
	}

	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		BadRequest(c, err.Error())
		return
	}

	var current render.Record
	if cv {
		current = render.RecordFromJSONMap(model.CVFields)
	} else {
		current = render.RecordFromJSONMap(model.CLFields)
	}
	merged := current.Merge(render.RecordFromJSONMap(patch))

	fields := datatypes.JSONMap(merged.JSONMap())
	status := nextStatus(model.Status)
	updates := map[string]any{"status": status}
	if cv {
		updates["cv_fields"] = fields
	} else {
		updates["cl_fields"] = fields
	}

	if err := h.db.WithContext(c.Request.Context()).Model(model).Updates(updates).Error; err != nil {
		Internal(c, "failed to update fields")
		return
	}
	model.Status = status
	if cv {
		model.CVFields = fields
	} else {
		model.CLFields = fields
	}
	c.JSON(http.StatusOK, sessionToResponse(model))
}

type editFieldRequest struct {
	Value string `json:"value"`
}

// PUT /v1/sessions/:key/cv/fields/:field 与 /cl/fields/:field
// 单字段编辑：复制旧快照、改一个字段、整体写回。
func (h *SessionHandler) EditCVField(c *gin.Context) { h.editField(c, true) }
func (h *SessionHandler) EditCLField(c *gin.Context) { h.editField(c, false) }

func (h *SessionHandler) editField(c *gin.Context, cv bool) {
	model, ok := h.loadSession(c)
	if !ok {
		return
	}

	field := strings.TrimSpace(c.Param("field"))
	if field == "" {
		BadRequest(c, "field name is required")
		return
	}

	var req editFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	var current render.Record
	if cv {
		current = render.RecordFromJSONMap(model.CVFields)
	} else {
		current = render.RecordFromJSONMap(model.CLFields)
	}
	edited := current.WithField(field, req.Value)

	fields := datatypes.JSONMap(edited.JSONMap())
	updates := map[string]any{"status": database.SessionStatusEdited}
	if cv {
		updates["cv_fields"] = fields
	} else {
		updates["cl_fields"] = fields
	}

	if err := h.db.WithContext(c.Request.Context()).Model(model).Updates(updates).Error; err != nil {
		Internal(c, "failed to update field")
		return
	}
	model.Status = database.SessionStatusEdited
	if cv {
		model.CVFields = fields
	} else {
		model.CLFields = fields
	}
	c.JSON(http.StatusOK, sessionToResponse(model))
}

// DELETE /v1/sessions/:key
// 删除会话及其名下的所有对象（上传原件、生成产物）。
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	model, ok := h.loadSession(c)
	if !ok {
		return
	}

	log := middleware.LoggerFromContext(c)
	if h.storage != nil {
		for _, prefix := range sessionObjectPrefixes(model.Key) {
			if err := h.storage.DeletePrefix(c.Request.Context(), prefix); err != nil {
				log.Warn("delete session objects failed", "prefix", prefix, "error", err)
			}
		}
	}

	if err := h.db.WithContext(c.Request.Context()).Delete(model).Error; err != nil {
		Internal(c, "failed to delete session")
		return
	}
	c.Status(http.StatusNoContent)
}

// loadSession 校验 :key 并加载会话；失败时已写好响应。
func (h *SessionHandler) loadSession(c *gin.Context) (*database.Session, bool) {
	key := strings.TrimSpace(c.Param("key"))
	if key == "" || len(key) > 64 {
		BadRequest(c, "invalid session key")
		return nil, false
	}

	var model database.Session
	err := h.db.WithContext(c.Request.Context()).Where("key = ?", key).First(&model).Error
	switch {
	case err == nil:
		return &model, true
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "session not found")
		return nil, false
	default:
		Internal(c, "failed to query session")
		return nil, false
	}
}

// nextStatus 实现记录状态机中合并写入的迁移：
// empty -> populated，其余一律进入 edited。
func nextStatus(current string) string {
	if current == "" || current == database.SessionStatusEmpty {
		return database.SessionStatusPopulated
	}
	return database.SessionStatusEdited
}

func sessionObjectPrefixes(key string) []string {
	return []string{
		"cv-uploads/" + key + "/",
		"headshots/" + key + "/",
		"generated-files/" + key + "/",
	}
}
