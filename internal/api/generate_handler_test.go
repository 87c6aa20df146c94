package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"cvtailor/internal/database"
	"cvtailor/internal/generation"
)

func newGenerateForm(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			t.Fatalf("write field %q: %v", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func newGenerateContext(t *testing.T, key string, fields map[string]string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	body, contentType := newGenerateForm(t, fields)
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/"+key+"/generate", body)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = keyParam(key)
	return c, w
}

func TestGenerate_MergesWebhookResult(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)

	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse webhook form: %v", err)
		}
		if got := r.FormValue("session_id"); got != "sess-gen" {
			t.Errorf("expected session_id sess-gen got %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"score": 87,
			"tips":  []string{"quantify achievements"},
			"notes": "solid CV",
			"cv_data": map[string]any{
				"title": "Senior Engineer",
			},
			"cl_data": map[string]any{
				"recipient": "Hiring Team",
			},
		})
	}))
	defer webhook.Close()

	model := &database.Session{
		Key:      "sess-gen",
		CVFields: datatypes.JSONMap{"name": "Ada Lovelace", "title": "Engineer"},
	}
	seedSession(t, db, model)

	client := generation.NewClient(webhook.URL, 5*time.Second, nil)
	h := NewGenerateHandler(db, client, nil)

	c, w := newGenerateContext(t, "sess-gen", map[string]string{
		"job_description": "Senior engineer role",
	})
	h.Generate(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	var resp generateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Score != 87 {
		t.Fatalf("expected score 87 got %d", resp.Score)
	}
	if resp.Session.Status != database.SessionStatusPopulated {
		t.Fatalf("expected populated got %q", resp.Session.Status)
	}
	// 返回字段覆盖旧值，缺席字段保留。
	if got := resp.Session.CVFields["title"]; got != "Senior Engineer" {
		t.Fatalf("expected merged title, got %v", got)
	}
	if got := resp.Session.CVFields["name"]; got != "Ada Lovelace" {
		t.Fatalf("expected name preserved, got %v", got)
	}
	if got := resp.Session.CLFields["recipient"]; got != "Hiring Team" {
		t.Fatalf("expected cl fields merged, got %v", got)
	}
}

func TestGenerate_WebhookFailureLeavesSessionUntouched(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)

	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer webhook.Close()

	model := &database.Session{
		Key:      "sess-genfail",
		Status:   database.SessionStatusEdited,
		CVFields: datatypes.JSONMap{"name": "Ada Lovelace"},
	}
	seedSession(t, db, model)

	client := generation.NewClient(webhook.URL, 5*time.Second, nil)
	h := NewGenerateHandler(db, client, nil)

	c, w := newGenerateContext(t, "sess-genfail", map[string]string{
		"job_link": "https://example.com/job/1",
	})
	h.Generate(c)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 got %d body=%s", w.Code, w.Body.String())
	}

	var stored database.Session
	if err := db.Where("key = ?", "sess-genfail").First(&stored).Error; err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if stored.Status != database.SessionStatusEdited {
		t.Fatalf("expected status untouched got %q", stored.Status)
	}
	if got := stored.CVFields["name"]; got != "Ada Lovelace" {
		t.Fatalf("expected fields untouched, got %v", got)
	}
}

func TestGenerate_RequiresJobContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)

	model := &database.Session{Key: "sess-nojob"}
	seedSession(t, db, model)

	client := generation.NewClient("http://127.0.0.1:0", time.Second, nil)
	h := NewGenerateHandler(db, client, nil)

	c, w := newGenerateContext(t, "sess-nojob", map[string]string{})
	h.Generate(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", w.Code)
	}
}
