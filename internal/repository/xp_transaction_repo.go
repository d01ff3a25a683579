package repository

import (
	"context"
	"fmt"

	"github.com/yuqie6/xpforge/internal/schema"
	"gorm.io/gorm"
)

// XpTransactionRepository 经验流水只读查询；追加只在账本事务内进行
type XpTransactionRepository struct {
	db *gorm.DB
}

func NewXpTransactionRepository(db *gorm.DB) *XpTransactionRepository {
	return &XpTransactionRepository{db: db}
}

// ListByProfile 最近的流水
func (r *XpTransactionRepository) ListByProfile(ctx context.Context, profileID uint, limit int) ([]schema.XpTransaction, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []schema.XpTransaction
	err := r.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Order("timestamp DESC, created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("查询经验流水失败: %w", err)
	}
	return out, nil
}

// CountBySources 按来源统计正向奖励次数
func (r *XpTransactionRepository) CountBySources(ctx context.Context, profileID uint) (map[string]int64, error) {
	type row struct {
		Source string
		N      int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&schema.XpTransaction{}).
		Select("source, COUNT(1) AS n").
		Where("profile_id = ? AND amount > 0", profileID).
		Group("source").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("统计经验来源失败: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Source] = r.N
	}
	return out, nil
}
