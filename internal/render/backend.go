package render

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"cvtailor/internal/database"
)

// GormBackend 通过 GORM 查询托管模板记录，实现 Backend。
type GormBackend struct {
	db *gorm.DB
}

// NewGormBackend 构造数据库模板后端。
func NewGormBackend(db *gorm.DB) *GormBackend {
	return &GormBackend{db: db}
}

// TemplateBySlug 按 slug 查询启用中的模板记录。
func (b *GormBackend) TemplateBySlug(ctx context.Context, slug string) (*BackendRecord, error) {
	var model database.Template
	if err := b.db.WithContext(ctx).
		Where("slug = ? AND is_active = ?", slug, true).
		First(&model).Error; err != nil {
		return nil, fmt.Errorf("query template %q: %w", slug, err)
	}
	return &BackendRecord{
		CVHTMLTemplate: model.CVHTMLTemplate,
		CLHTMLTemplate: model.CLHTMLTemplate,
		CSSStyles:      model.CSSStyles,
	}, nil
}
