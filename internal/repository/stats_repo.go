package repository

import (
	"context"
	"fmt"

	"github.com/yuqie6/xpforge/internal/schema"
	"gorm.io/gorm"
)

// LedgerStats 运行状态用的聚合计数
type LedgerStats struct {
	Profiles           int64
	ActiveProfiles     int64
	Transactions       int64
	TransactionsSince  int64
	PendingSubmissions int64
	Badges             int64
}

// StatsRepository 只读统计
type StatsRepository struct {
	db *gorm.DB
}

func NewStatsRepository(db *gorm.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// Counts 汇总计数，sinceMs 之后的流水单独统计
func (r *StatsRepository) Counts(ctx context.Context, sinceMs int64) (LedgerStats, error) {
	var out LedgerStats
	db := r.db.WithContext(ctx)

	if err := db.Model(&schema.GamificationProfile{}).Count(&out.Profiles).Error; err != nil {
		return out, fmt.Errorf("统计档案失败: %w", err)
	}
	if err := db.Model(&schema.GamificationProfile{}).Where("active = ?", true).Count(&out.ActiveProfiles).Error; err != nil {
		return out, fmt.Errorf("统计活跃档案失败: %w", err)
	}
	if err := db.Model(&schema.XpTransaction{}).Count(&out.Transactions).Error; err != nil {
		return out, fmt.Errorf("统计流水失败: %w", err)
	}
	if err := db.Model(&schema.XpTransaction{}).Where("timestamp >= ?", sinceMs).Count(&out.TransactionsSince).Error; err != nil {
		return out, fmt.Errorf("统计近期流水失败: %w", err)
	}
	open := []schema.SubmissionStatus{schema.SubmissionPending, schema.SubmissionRequiresEvidence}
	if err := db.Model(&schema.ActionSubmission{}).Where("status IN ?", open).Count(&out.PendingSubmissions).Error; err != nil {
		return out, fmt.Errorf("统计待审核提交失败: %w", err)
	}
	if err := db.Model(&schema.Badge{}).Count(&out.Badges).Error; err != nil {
		return out, fmt.Errorf("统计成就失败: %w", err)
	}
	return out, nil
}
