package render

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

type fakeBackend struct {
	records map[string]*BackendRecord
	calls   int32
}

func (b *fakeBackend) TemplateBySlug(_ context.Context, slug string) (*BackendRecord, error) {
	atomic.AddInt32(&b.calls, 1)
	rec, ok := b.records[slug]
	if !ok {
		return nil, errors.New("record not found")
	}
	return rec, nil
}

func strPtr(s string) *string { return &s }

func TestStoreBackendTierWins(t *testing.T) {
	backend := &fakeBackend{records: map[string]*BackendRecord{
		"modern": {
			CVHTMLTemplate: strPtr("<html><head></head><body>{{name}}</body></html>"),
			CSSStyles:      strPtr("body{color:red}"),
		},
	}}
	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("static content"))
	}))
	defer files.Close()

	store := NewStore(backend, files.URL, nil)

	if got := store.Markup(context.Background(), "modern", DocCV); strings.Contains(got, "static content") {
		t.Fatalf("backend record must win over static file, got %s", got)
	}
	if got := store.Stylesheet(context.Background(), "modern"); got != "body{color:red}" {
		t.Fatalf("unexpected stylesheet: %s", got)
	}
}

func TestStoreFallsBackToStaticFiles(t *testing.T) {
	var fetches int32
	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fetches, 1)
		switch {
		case strings.HasSuffix(r.URL.Path, "/CV.html"):
			_, _ = w.Write([]byte("<html><head></head><body>{{name}}</body></html>"))
		case strings.HasSuffix(r.URL.Path, "/styles.css"):
			_, _ = w.Write([]byte("body{margin:0}"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer files.Close()

	store := NewStore(&fakeBackend{}, files.URL, nil)

	got := store.Markup(context.Background(), "classic", DocCV)
	if !strings.Contains(got, "{{name}}") {
		t.Fatalf("expected static file content, got %s", got)
	}
	if strings.Contains(got, "Template not found") {
		t.Fatal("valid static file must not yield the placeholder document")
	}
}

func TestStoreExhaustedTiersYieldPlaceholder(t *testing.T) {
	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer files.Close()

	store := NewStore(&fakeBackend{}, files.URL, nil)

	got := store.Markup(context.Background(), "legacy", DocCV)
	if !strings.Contains(got, "Template not found") {
		t.Fatalf("exhausted tiers must yield placeholder, got %s", got)
	}
}

func TestStoreExhaustedTiersYieldEmptyStylesheet(t *testing.T) {
	store := NewStore(nil, "", nil)
	if got := store.Stylesheet(context.Background(), "legacy"); got != "" {
		t.Fatalf("exhausted tiers must yield empty stylesheet, got %q", got)
	}
}

func TestStoreCachesAfterFirstResolution(t *testing.T) {
	var fetches int32
	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fetches, 1)
		_, _ = w.Write([]byte("body{margin:0}"))
	}))
	defer files.Close()

	store := NewStore(nil, files.URL, nil)

	first := store.Stylesheet(context.Background(), "modern")
	second := store.Stylesheet(context.Background(), "modern")

	if first != second {
		t.Fatalf("cached value differs: %q vs %q", first, second)
	}
	if n := atomic.LoadInt32(&fetches); n != 1 {
		t.Fatalf("expected exactly one fetch, got %d", n)
	}
}

func TestStoreCachesBackendLookups(t *testing.T) {
	backend := &fakeBackend{records: map[string]*BackendRecord{
		"modern": {CSSStyles: strPtr("body{}")},
	}}
	store := NewStore(backend, "", nil)

	_ = store.Stylesheet(context.Background(), "modern")
	_ = store.Stylesheet(context.Background(), "modern")

	if n := atomic.LoadInt32(&backend.calls); n != 1 {
		t.Fatalf("expected one backend lookup, got %d", n)
	}
}

func TestStoreCachesNegativeResults(t *testing.T) {
	var fetches int32
	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fetches, 1)
		http.NotFound(w, r)
	}))
	defer files.Close()

	store := NewStore(nil, files.URL, nil)

	_ = store.Markup(context.Background(), "legacy", DocCoverLetter)
	_ = store.Markup(context.Background(), "legacy", DocCoverLetter)

	if n := atomic.LoadInt32(&fetches); n != 1 {
		t.Fatalf("placeholder result must be cached too, got %d fetches", n)
	}
}

func TestStoreAssetsAreIndependentPerKind(t *testing.T) {
	backend := &fakeBackend{records: map[string]*BackendRecord{
		"modern": {
			CVHTMLTemplate: strPtr("cv skeleton"),
			// CL 骨架缺失，必须走兜底而不是串用 CV 骨架。
		},
	}}
	store := NewStore(backend, "", nil)

	cv := store.Markup(context.Background(), "modern", DocCV)
	cl := store.Markup(context.Background(), "modern", DocCoverLetter)

	if cv != "cv skeleton" {
		t.Fatalf("unexpected cv markup: %s", cv)
	}
	if !strings.Contains(cl, "Template not found") {
		t.Fatalf("missing cl markup must yield placeholder, got %s", cl)
	}
}

func TestStoreRenderCVEndToEnd(t *testing.T) {
	backend := &fakeBackend{records: map[string]*BackendRecord{
		"modern": {
			CVHTMLTemplate: strPtr("<html><head></head><body>{{name}}</body></html>"),
			CSSStyles:      strPtr("body{color:red}"),
		},
	}}
	store := NewStore(backend, "", nil)

	got := store.RenderCV(context.Background(), "modern", Record{"name": "Ada Lovelace"})
	want := "<html><head><style>body{color:red}</style></head><body>Ada Lovelace</body></html>"
	if got != want {
		t.Fatalf("unexpected render:\n got: %s\nwant: %s", got, want)
	}
}
