package repository

import (
	"context"
	"fmt"

	"github.com/yuqie6/xpforge/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BadgeRepository 徽章仓储
type BadgeRepository struct {
	db *gorm.DB
}

func NewBadgeRepository(db *gorm.DB) *BadgeRepository {
	return &BadgeRepository{db: db}
}

// ListByProfile 档案已获得的徽章
func (r *BadgeRepository) ListByProfile(ctx context.Context, profileID uint) ([]schema.Badge, error) {
	var out []schema.Badge
	err := r.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Order("earned_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("查询徽章失败: %w", err)
	}
	return out, nil
}

// CreateIfAbsent 插入徽章；(profile_id, type) 唯一索引兜底，已存在时返回 false
func (r *BadgeRepository) CreateIfAbsent(ctx context.Context, b *schema.Badge) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "profile_id"}, {Name: "type"}},
			DoNothing: true,
		}).
		Create(b)
	if res.Error != nil {
		return false, fmt.Errorf("写入徽章失败: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
