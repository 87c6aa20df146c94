package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"cvtailor/internal/database"
	"cvtailor/internal/render"
)

func seedTemplate(t *testing.T, db *gorm.DB) {
	t.Helper()
	cv := `<html><head><link rel="stylesheet" href="styles.css"></head><body><h1>{{name}}</h1><p>{{summary}}</p></body></html>`
	cl := `<html><head></head><body><p>Dear {{recipient}},</p></body></html>`
	css := `h1 { color: navy; }`
	tpl := database.Template{
		Slug:           "classic",
		Name:           "Classic",
		CVHTMLTemplate: &cv,
		CLHTMLTemplate: &cl,
		CSSStyles:      &css,
		IsActive:       true,
	}
	if err := db.Create(&tpl).Error; err != nil {
		t.Fatalf("seed template: %v", err)
	}
}

func newTestStore(db *gorm.DB) *render.Store {
	return render.NewStore(render.NewGormBackend(db), "", nil)
}

func TestPreviewSession_RendersTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	seedTemplate(t, db)
	h := NewRenderHandler(db, newTestStore(db))

	model := &database.Session{
		Key:      "sess-preview",
		Status:   database.SessionStatusPopulated,
		CVFields: datatypes.JSONMap{"name": "Ada Lovelace"},
	}
	seedSession(t, db, model)

	c, w := newJSONContext(t, http.MethodGet, "/v1/sessions/sess-preview/preview?doc=cv", nil, keyParam("sess-preview"))
	h.PreviewSession(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, "<h1>Ada Lovelace</h1>") {
		t.Fatalf("expected substituted name, got %s", body)
	}
	// 缺失键按空串替换。
	if strings.Contains(body, "{{summary}}") {
		t.Fatalf("expected missing key replaced by empty string, got %s", body)
	}
	if !strings.Contains(body, "<style>h1 { color: navy; }</style>") {
		t.Fatalf("expected inlined stylesheet, got %s", body)
	}
	if strings.Contains(body, "styles.css") {
		t.Fatalf("expected stylesheet link stripped, got %s", body)
	}
}

func TestDownloadDocument_DoesNotChangeStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	seedTemplate(t, db)
	h := NewRenderHandler(db, newTestStore(db))

	model := &database.Session{
		Key:    "sess-download",
		Status: database.SessionStatusEdited,
	}
	seedSession(t, db, model)

	c, w := newJSONContext(t, http.MethodGet, "/v1/sessions/sess-download/document?doc=cl", nil, keyParam("sess-download"))
	h.DownloadDocument(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	if got := w.Header().Get("Content-Disposition"); !strings.Contains(got, "cover-letter.html") {
		t.Fatalf("expected attachment filename, got %q", got)
	}

	var stored database.Session
	if err := db.Where("key = ?", "sess-download").First(&stored).Error; err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if stored.Status != database.SessionStatusEdited {
		t.Fatalf("expected status untouched got %q", stored.Status)
	}
}

func TestRender_Stateless(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	seedTemplate(t, db)
	h := NewRenderHandler(db, newTestStore(db))

	c, w := newJSONContext(t, http.MethodPost, "/v1/render", map[string]any{
		"template": "classic",
		"doc":      "cv",
		"record":   map[string]string{"name": "Grace Hopper", "summary": "Compilers"},
	}, nil)
	h.Render(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, "<h1>Grace Hopper</h1>") || !strings.Contains(body, "<p>Compilers</p>") {
		t.Fatalf("unexpected render output: %s", body)
	}
}

func TestRender_UnknownTemplateFallsBack(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	h := NewRenderHandler(db, newTestStore(db))

	c, w := newJSONContext(t, http.MethodPost, "/v1/render", map[string]any{
		"template": "does-not-exist",
		"doc":      "cv",
	}, nil)
	h.Render(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Template not found") {
		t.Fatalf("expected placeholder document, got %s", w.Body.String())
	}
}

func TestRender_RejectsBadDocType(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	h := NewRenderHandler(db, newTestStore(db))

	c, w := newJSONContext(t, http.MethodPost, "/v1/render", map[string]any{
		"template": "classic",
		"doc":      "resume",
	}, nil)
	h.Render(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", w.Code)
	}
}
