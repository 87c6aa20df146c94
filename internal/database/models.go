package database

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 会话记录的生命周期状态：空 -> 已填充（AI 返回）-> 已编辑（可重复）。
// 导出不改变状态，记录随会话存续。
const (
	SessionStatusEmpty     = "empty"
	SessionStatusPopulated = "populated"
	SessionStatusEdited    = "edited"
)

// Session 表示一次 CV 优化会话：上传的原始文件、AI 返回的结果以及
// 用户当前可编辑的字段记录（扁平 key/value）。
type Session struct {
	gorm.Model
	Key          string `gorm:"uniqueIndex;size:64"`
	Email        string `gorm:"size:255"`
	TemplateSlug string `gorm:"size:64"`
	Status       string `gorm:"size:32"`

	// AI 生成结果（原样透传，评分与提示不做二次加工）。
	Score int            `gorm:"default:0"`
	Notes string         `gorm:"type:text"`
	Tips  datatypes.JSON `gorm:"type:jsonb"`

	// 可编辑字段记录，扁平 JSONB：field_name -> string。
	CVFields datatypes.JSONMap `gorm:"column:cv_fields;type:jsonb"`
	CLFields datatypes.JSONMap `gorm:"column:cl_fields;type:jsonb"`

	// Webhook 返回的整页 HTML 兜底（已消毒），编辑模式不用它。
	CVHTML string `gorm:"column:cv_html;type:text"`
	CLHTML string `gorm:"column:cl_html;type:text"`

	CVFileKey string `gorm:"column:cv_file_key;size:512"`
	PdfKey    string `gorm:"size:512"`
}

// Template 表示托管后端里的一条模板记录，是模板解析的首选层级。
// 三个资产字段均可为 NULL，缺失时由静态文件兜底补齐。
type Template struct {
	gorm.Model
	Slug            string  `gorm:"uniqueIndex;size:64"`
	Name            string  `gorm:"size:255"`
	Description     string  `gorm:"size:512"`
	PreviewImageURL string  `gorm:"size:512"`
	CVHTMLTemplate  *string `gorm:"column:cv_html_template;type:text"`
	CLHTMLTemplate  *string `gorm:"column:cl_html_template;type:text"`
	CSSStyles       *string `gorm:"column:css_styles;type:text"`
	IsActive        bool    `gorm:"default:true"`
}
