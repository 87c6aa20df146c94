package render

import "strings"

// RequiredCVFields 是 CV 骨架应当覆盖的规范字段集合，
// 与外部生成服务返回的 cv_data 字段一一对应。
var RequiredCVFields = []string{
	"name", "target_role", "email", "phone", "website", "summary",
	"skills_csv", "tools_csv",
	"exp1_company", "exp1_title", "exp1_dates", "exp1_bullets",
	"exp2_company", "exp2_title", "exp2_dates", "exp2_bullets",
	"edu1_school", "edu1_degree", "edu1_dates", "edu1_details",
	"edu2_school", "edu2_degree", "edu2_dates", "edu2_details",
}

// MissingPlaceholders 返回 markup 中缺失占位符的字段名（保持原顺序）。
// 为空表示骨架覆盖了全部规范字段。
func MissingPlaceholders(markup string, fields []string) []string {
	lower := strings.ToLower(markup)
	var missing []string
	for _, field := range fields {
		name := strings.ToLower(field)
		if strings.Contains(lower, "{{"+name+"}}") || strings.Contains(lower, "{{ "+name+" }}") {
			continue
		}
		missing = append(missing, field)
	}
	return missing
}
