package generation

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	documentPolicyOnce sync.Once
	documentPolicy     *bluemonday.Policy
)

// SanitizeDocument 清洗 webhook 返回的整页 HTML 兜底文档：
// 保留文档骨架与内联样式，剥掉脚本和事件处理器。空串原样返回。
func SanitizeDocument(html string) string {
	if strings.TrimSpace(html) == "" {
		return html
	}
	documentPolicyOnce.Do(func() {
		p := bluemonday.UGCPolicy()
		p.AllowElements("html", "head", "body", "title", "style", "meta", "footer", "header", "section")
		p.AllowAttrs("charset", "name", "content").OnElements("meta")
		p.AllowAttrs("class", "id").Globally()
		p.AllowStyles("color", "background", "background-color", "font-family", "font-size",
			"margin", "padding", "text-align", "width", "height").Globally()
		p.AllowDataURIImages()
		documentPolicy = p
	})
	return documentPolicy.Sanitize(html)
}
