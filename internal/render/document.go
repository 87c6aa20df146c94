package render

import (
	"regexp"
	"strings"
)

var (
	// {{field_name}}，允许紧贴大括号内侧的空格；标识符限定 [A-Za-z0-9_]。
	placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

	// 模板文件里引用外部样式表的 <link> 标签（href 含 styles.css）。
	stylesheetLinkPattern = regexp.MustCompile(`(?i)<link[^>]*styles\.css[^>]*>`)
)

const headCloseTag = "</head>"

// Document 将一份模板骨架与字段记录合成为自包含的 HTML 文档：
// 去掉外部样式表 <link>，替换所有 {{field}} 占位符，再把样式表内联进
// <head>。纯函数，不发起网络请求，也不改写入参。
//
// 样式表文本不参与占位符扫描：替换先于内联执行，CSS 里出现的 {{...}}
// 会原样保留。
func Document(markup, stylesheet string, record Record) string {
	doc := stylesheetLinkPattern.ReplaceAllString(markup, "")
	doc = Substitute(doc, record)
	return inlineStylesheet(doc, stylesheet)
}

// Substitute 把 markup 中每个 {{key}} 替换为 record 里的值；缺失或为空的
// 键替换为空串。替换是一次性的：替换结果不会被再次扫描。不合法的大括号
// 组合（如只有开头的 {{）原样保留。
func Substitute(markup string, record Record) string {
	return placeholderPattern.ReplaceAllStringFunc(markup, func(token string) string {
		sub := placeholderPattern.FindStringSubmatch(token)
		if len(sub) != 2 {
			return token
		}
		return record.Get(sub[1])
	})
}

// inlineStylesheet 在第一个 </head> 之前插入 <style> 块。
// 模板缺少 </head> 时跳过内联（残缺模板按降级处理，绝不报错）。
func inlineStylesheet(markup, stylesheet string) string {
	idx := strings.Index(markup, headCloseTag)
	if idx < 0 {
		return markup
	}
	var b strings.Builder
	b.Grow(len(markup) + len(stylesheet) + len("<style></style>"))
	b.WriteString(markup[:idx])
	b.WriteString("<style>")
	b.WriteString(stylesheet)
	b.WriteString("</style>")
	b.WriteString(markup[idx:])
	return b.String()
}
