package render

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"cvtailor/internal/metrics"
)

// DocType 区分同一模板下的两种文档骨架。
type DocType string

const (
	DocCV          DocType = "CV"
	DocCoverLetter DocType = "CL"
)

// MissingTemplateHTML 是所有解析层级都失效时返回的兜底文档。
// 渲染方拿到的永远是可用的 HTML 文本，而不是错误。
const MissingTemplateHTML = `<html><head></head><body>Template not found</body></html>`

// BackendRecord 是托管后端中一条模板记录的三个资产字段，均可缺失。
type BackendRecord struct {
	CVHTMLTemplate *string
	CLHTMLTemplate *string
	CSSStyles      *string
}

// Backend 是模板解析的首选层级（托管后端）。
// 记录不存在时返回错误即可，Store 会继续走静态文件兜底。
type Backend interface {
	TemplateBySlug(ctx context.Context, slug string) (*BackendRecord, error)
}

// Store 按需解析并缓存模板资产（CV 骨架、CL 骨架、共享样式表）。
// 解析顺序：托管后端记录 -> 静态文件 {base}/{slug}/... -> 兜底常量。
// 缓存按实例持有、按 (slug, 资产) 只写一次；并发下重复抓取是允许的，
// 先写入者生效。
type Store struct {
	backend    Backend
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	mu    sync.Mutex
	cache map[string]*templateAssets
}

type templateAssets struct {
	cv  *string
	cl  *string
	css *string
}

// NewStore 构造模板仓库。backend 可为 nil（只用静态文件层），
// baseURL 为空则跳过静态文件层。
func NewStore(backend Backend, baseURL string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend:    backend,
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		cache:      map[string]*templateAssets{},
	}
}

// Stylesheet 返回模板的共享样式表文本。
// 全部层级失效时缓存并返回空串，渲染继续（无样式而非失败）。
func (s *Store) Stylesheet(ctx context.Context, slug string) string {
	if cached := s.cached(slug, func(a *templateAssets) *string { return a.css }); cached != nil {
		metrics.ObserveTemplateResolution(metrics.TierCache)
		return *cached
	}

	tier := metrics.TierBackend
	value, ok := s.fromBackend(ctx, slug, func(rec *BackendRecord) *string { return rec.CSSStyles })
	if !ok {
		tier = metrics.TierStatic
		value, ok = s.fromStatic(ctx, slug, "styles.css")
	}
	if !ok {
		tier = metrics.TierFallback
		s.logger.Warn("template stylesheet unresolved, rendering unstyled",
			slog.String("template", slug),
		)
		value = ""
	}
	metrics.ObserveTemplateResolution(tier)

	return s.storeOnce(slug, value, func(a *templateAssets) **string { return &a.css })
}

// Markup 返回模板的 CV 或求职信骨架 HTML。
// 全部层级失效时缓存并返回 MissingTemplateHTML，绝不向调用方抛错。
func (s *Store) Markup(ctx context.Context, slug string, doc DocType) string {
	pick := func(a *templateAssets) **string {
		if doc == DocCoverLetter {
			return &a.cl
		}
		return &a.cv
	}
	if cached := s.cached(slug, func(a *templateAssets) *string { return *pick(a) }); cached != nil {
		metrics.ObserveTemplateResolution(metrics.TierCache)
		return *cached
	}

	tier := metrics.TierBackend
	value, ok := s.fromBackend(ctx, slug, func(rec *BackendRecord) *string {
		if doc == DocCoverLetter {
			return rec.CLHTMLTemplate
		}
		return rec.CVHTMLTemplate
	})
	if !ok {
		tier = metrics.TierStatic
		value, ok = s.fromStatic(ctx, slug, string(doc)+".html")
	}
	if !ok {
		tier = metrics.TierFallback
		s.logger.Warn("template markup unresolved, using placeholder document",
			slog.String("template", slug),
			slog.String("doc_type", string(doc)),
		)
		value = MissingTemplateHTML
	}
	metrics.ObserveTemplateResolution(tier)

	return s.storeOnce(slug, value, pick)
}

// RenderCV 解析模板资产并渲染 CV 记录。
func (s *Store) RenderCV(ctx context.Context, slug string, record Record) string {
	return Document(s.Markup(ctx, slug, DocCV), s.Stylesheet(ctx, slug), record)
}

// RenderCoverLetter 解析模板资产并渲染求职信记录。
func (s *Store) RenderCoverLetter(ctx context.Context, slug string, record Record) string {
	return Document(s.Markup(ctx, slug, DocCoverLetter), s.Stylesheet(ctx, slug), record)
}

func (s *Store) cached(slug string, pick func(*templateAssets) *string) *string {
	s.mu.Lock()
	defer s.mu.Unlock()
	assets, ok := s.cache[slug]
	if !ok {
		return nil
	}
	return pick(assets)
}

// storeOnce 写入缓存但不覆盖已有值：并发抓取时先写入者生效，
// 返回的始终是缓存中的最终值。
func (s *Store) storeOnce(slug, value string, pick func(*templateAssets) **string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	assets, ok := s.cache[slug]
	if !ok {
		assets = &templateAssets{}
		s.cache[slug] = assets
	}
	slot := pick(assets)
	if *slot == nil {
		*slot = &value
	}
	return **slot
}

// fromBackend 尝试托管后端层。任何错误（记录缺失、连接失败）都只记日志，
// 视为“资产不存在”交给下一层。
func (s *Store) fromBackend(ctx context.Context, slug string, pick func(*BackendRecord) *string) (string, bool) {
	if s.backend == nil {
		return "", false
	}
	rec, err := s.backend.TemplateBySlug(ctx, slug)
	if err != nil {
		s.logger.Debug("template backend lookup failed",
			slog.String("template", slug),
			slog.Any("error", err),
		)
		return "", false
	}
	if rec == nil {
		return "", false
	}
	field := pick(rec)
	if field == nil {
		return "", false
	}
	return *field, true
}

// fromStatic 尝试静态文件层：GET {base}/{slug}/{name}。
func (s *Store) fromStatic(ctx context.Context, slug, name string) (string, bool) {
	if s.baseURL == "" {
		return "", false
	}
	url := fmt.Sprintf("%s/%s/%s", s.baseURL, slug, name)
	body, err := s.fetch(ctx, url)
	if err != nil {
		s.logger.Debug("static template fetch failed",
			slog.String("url", url),
			slog.Any("error", err),
		)
		return "", false
	}
	return body, true
}

func (s *Store) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build template request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch template asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch template asset: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read template asset: %w", err)
	}
	return string(data), nil
}
