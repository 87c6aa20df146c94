package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"cvtailor/internal/database"
)

func TestListTemplates_EmptyBackendServesBuiltinCatalog(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	h := NewTemplateHandler(db)

	c, w := newJSONContext(t, http.MethodGet, "/v1/templates", nil, nil)
	h.ListTemplates(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	var items []templateListItem
	if err := json.Unmarshal(w.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(items) != len(builtinCatalog) {
		t.Fatalf("expected builtin catalog, got %d items", len(items))
	}
	if items[0].Slug != "classic" {
		t.Fatalf("expected classic first got %q", items[0].Slug)
	}
}

func TestListTemplates_BackendRowsAreCached(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	seedTemplate(t, db)
	h := NewTemplateHandler(db)

	c, w := newJSONContext(t, http.MethodGet, "/v1/templates", nil, nil)
	h.ListTemplates(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}

	// 目录缓存后，后端的后续变更不影响返回结果。
	if err := db.Model(&database.Template{}).Where("slug = ?", "classic").
		Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate template: %v", err)
	}

	c, w = newJSONContext(t, http.MethodGet, "/v1/templates", nil, nil)
	h.ListTemplates(c)

	var items []templateListItem
	if err := json.Unmarshal(w.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(items) != 1 || items[0].Slug != "classic" {
		t.Fatalf("expected cached catalog with classic, got %+v", items)
	}
}

func TestGetTemplate_ReportsAssetCompleteness(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)

	cv := `<html><head></head><body>{{name}}</body></html>`
	tpl := database.Template{
		Slug:           "partial",
		CVHTMLTemplate: &cv,
		IsActive:       true,
	}
	if err := db.Create(&tpl).Error; err != nil {
		t.Fatalf("seed template: %v", err)
	}

	h := NewTemplateHandler(db)
	c, w := newJSONContext(t, http.MethodGet, "/v1/templates/partial", nil,
		gin.Params{{Key: "slug", Value: "partial"}})
	h.GetTemplate(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	var resp templateDetailResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.HasCVMarkup || resp.HasCLMarkup || resp.HasStylesheet {
		t.Fatalf("unexpected asset flags: %+v", resp)
	}
	if resp.Name != "Partial" {
		t.Fatalf("expected display name from slug got %q", resp.Name)
	}
	if len(resp.MissingFields) == 0 {
		t.Fatal("expected missing placeholder report for sparse markup")
	}
}

func TestGetTemplate_NotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	h := NewTemplateHandler(db)

	c, w := newJSONContext(t, http.MethodGet, "/v1/templates/nope", nil,
		gin.Params{{Key: "slug", Value: "nope"}})
	h.GetTemplate(c)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", w.Code)
	}
}
