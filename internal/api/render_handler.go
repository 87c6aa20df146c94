package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"cvtailor/internal/database"
	"cvtailor/internal/render"
)

// RenderHandler 把模板仓库与字段记录接到 HTTP 层：
// 预览、无状态渲染、以及最终文档下载。渲染本身永不失败，
// 资产缺失时返回的是兜底文档而不是错误。
type RenderHandler struct {
	db    *gorm.DB
	store *render.Store
}

// NewRenderHandler 构造 RenderHandler。
func NewRenderHandler(db *gorm.DB, store *render.Store) *RenderHandler {
	return &RenderHandler{db: db, store: store}
}

// GET /v1/sessions/:key/preview?doc=cv|cl
// 用会话当前的字段记录渲染所选模板，返回完整 HTML。
func (h *RenderHandler) PreviewSession(c *gin.Context) {
	session, doc, ok := h.sessionAndDoc(c)
	if !ok {
		return
	}

	html := h.renderSession(c, session, doc)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

// GET /v1/sessions/:key/document?doc=cv|cl
// 导出最终文档（附件下载）。导出不改变记录状态，可重复执行。
func (h *RenderHandler) DownloadDocument(c *gin.Context) {
	session, doc, ok := h.sessionAndDoc(c)
	if !ok {
		return
	}

	html := h.renderSession(c, session, doc)
	filename := "cover-letter.html"
	if doc == render.DocCV {
		filename = "cv.html"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

type renderRequest struct {
	TemplateSlug string            `json:"template" binding:"required"`
	DocType      string            `json:"doc"`
	Record       map[string]string `json:"record"`
}

// POST /v1/render
// 无状态渲染：前端编辑器每次按键后用本地快照请求重渲染。
// record 缺失的键一律按空串替换。
func (h *RenderHandler) Render(c *gin.Context) {
	var req renderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	doc, ok := parseDocType(req.DocType)
	if !ok {
		BadRequest(c, "doc must be cv or cl")
		return
	}

	record := render.Record(req.Record)
	var html string
	if doc == render.DocCV {
		html = h.store.RenderCV(c.Request.Context(), req.TemplateSlug, record)
	} else {
		html = h.store.RenderCoverLetter(c.Request.Context(), req.TemplateSlug, record)
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

func (h *RenderHandler) renderSession(c *gin.Context, session *database.Session, doc render.DocType) string {
	ctx := c.Request.Context()
	if doc == render.DocCV {
		return h.store.RenderCV(ctx, session.TemplateSlug, render.RecordFromJSONMap(session.CVFields))
	}
	return h.store.RenderCoverLetter(ctx, session.TemplateSlug, render.RecordFromJSONMap(session.CLFields))
}

func (h *RenderHandler) sessionAndDoc(c *gin.Context) (*database.Session, render.DocType, bool) {
	doc, ok := parseDocType(c.DefaultQuery("doc", "cv"))
	if !ok {
		BadRequest(c, "doc must be cv or cl")
		return nil, doc, false
	}
	sessions := &SessionHandler{db: h.db}
	session, ok := sessions.loadSession(c)
	if !ok {
		return nil, doc, false
	}
	return session, doc, true
}

func parseDocType(raw string) (render.DocType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "cv":
		return render.DocCV, true
	case "cl", "cover_letter", "cover-letter":
		return render.DocCoverLetter, true
	default:
		return render.DocCV, false
	}
}
