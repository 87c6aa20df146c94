package api

import (
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"cvtailor/internal/api/middleware"
	"cvtailor/internal/database"
	"cvtailor/internal/render"
)

// TemplateHandler 负责模板目录的查询。
// 托管后端不可用时退回到内置目录，目录按进程缓存。
type TemplateHandler struct {
	db *gorm.DB

	mu      sync.Mutex
	catalog []templateListItem
}

// NewTemplateHandler 构造 TemplateHandler。
func NewTemplateHandler(db *gorm.DB) *TemplateHandler {
	return &TemplateHandler{db: db}
}

type templateListItem struct {
	Slug            string `json:"slug"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	PreviewImageURL string `json:"preview_image_url,omitempty"`
}

// builtinCatalog 是数据库不可达或为空时的兜底目录，
// 与静态文件层的模板目录保持一致。
var builtinCatalog = []templateListItem{
	{Slug: "classic", Name: "Classic", Description: "Traditional professional CV template"},
	{Slug: "modern", Name: "Modern", Description: "Contemporary CV template with modern design"},
	{Slug: "classic_alternative", Name: "Classic Alternative", Description: "Alternative classic design with enhanced layout"},
}

// GET /v1/templates
// 列出启用中的模板；查询失败或结果为空时返回内置目录。
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	h.mu.Lock()
	cached := h.catalog
	h.mu.Unlock()
	if cached != nil {
		c.JSON(http.StatusOK, cached)
		return
	}

	log := middleware.LoggerFromContext(c)

	var templates []database.Template
	err := h.db.WithContext(c.Request.Context()).
		Where("is_active = ?", true).
		Order("name").
		Find(&templates).Error
	if err != nil || len(templates) == 0 {
		if err != nil {
			log.Warn("list templates from backend failed, serving builtin catalog", "error", err)
		}
		c.JSON(http.StatusOK, builtinCatalog)
		return
	}

	items := make([]templateListItem, 0, len(templates))
	for _, t := range templates {
		items = append(items, templateListItem{
			Slug:            t.Slug,
			Name:            displayName(t),
			Description:     t.Description,
			PreviewImageURL: t.PreviewImageURL,
		})
	}

	h.mu.Lock()
	h.catalog = items
	h.mu.Unlock()

	c.JSON(http.StatusOK, items)
}

type templateDetailResponse struct {
	Slug            string   `json:"slug"`
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	PreviewImageURL string   `json:"preview_image_url,omitempty"`
	HasCVMarkup     bool     `json:"has_cv_markup"`
	HasCLMarkup     bool     `json:"has_cl_markup"`
	HasStylesheet   bool     `json:"has_stylesheet"`
	MissingFields   []string `json:"missing_fields,omitempty"`
}

// GET /v1/templates/:slug
// 详情包含资产完备性与 CV 骨架的占位符覆盖检查。
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	slug := strings.TrimSpace(c.Param("slug"))
	if slug == "" {
		BadRequest(c, "invalid template slug")
		return
	}

	var model database.Template
	err := h.db.WithContext(c.Request.Context()).
		Where("slug = ? AND is_active = ?", slug, true).
		First(&model).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "template not found")
		return
	case err != nil:
		Internal(c, "failed to query template")
		return
	}

	resp := templateDetailResponse{
		Slug:            model.Slug,
		Name:            displayName(model),
		Description:     model.Description,
		PreviewImageURL: model.PreviewImageURL,
		HasCVMarkup:     model.CVHTMLTemplate != nil,
		HasCLMarkup:     model.CLHTMLTemplate != nil,
		HasStylesheet:   model.CSSStyles != nil,
	}
	if model.CVHTMLTemplate != nil {
		resp.MissingFields = render.MissingPlaceholders(*model.CVHTMLTemplate, render.RequiredCVFields)
	}
	c.JSON(http.StatusOK, resp)
}

// displayName 在模板名缺失时由 slug 生成展示名（下划线转空格，词首大写）。
func displayName(t database.Template) string {
	if strings.TrimSpace(t.Name) != "" {
		return t.Name
	}
	words := strings.Split(strings.ReplaceAll(t.Slug, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
