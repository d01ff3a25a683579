package repository

import (
	"context"
	"fmt"

	"github.com/yuqie6/xpforge/internal/schema"
	"gorm.io/gorm"
)

// ProfileRepository 经验档案仓储（只读查询，写入走 LedgerRepository 事务）
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository 创建仓储
func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Get 获取 (user, workspace) 档案，不存在返回 nil
func (r *ProfileRepository) Get(ctx context.Context, userID, workspaceID string) (*schema.GamificationProfile, error) {
	var p schema.GamificationProfile
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND workspace_id = ?", userID, workspaceID).
		First(&p).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("查询档案失败: %w", err)
	}
	return &p, nil
}

// GetTop 获取工作区经验排行
func (r *ProfileRepository) GetTop(ctx context.Context, workspaceID string, limit int) ([]schema.GamificationProfile, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []schema.GamificationProfile
	err := r.db.WithContext(ctx).
		Where("workspace_id = ? AND active = ?", workspaceID, true).
		Order("total_xp DESC, id ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("查询排行失败: %w", err)
	}
	return out, nil
}

// Rank 档案在工作区内按经验的名次（从 1 开始，同分并列）
func (r *ProfileRepository) Rank(ctx context.Context, p *schema.GamificationProfile) (int, error) {
	var ahead int64
	err := r.db.WithContext(ctx).Model(&schema.GamificationProfile{}).
		Where("workspace_id = ? AND active = ? AND total_xp > ?", p.WorkspaceID, true, p.TotalXP).
		Count(&ahead).Error
	if err != nil {
		return 0, fmt.Errorf("统计名次失败: %w", err)
	}
	return int(ahead) + 1, nil
}

// JoinOrder 档案在工作区内的创建顺序（从 1 开始）
func (r *ProfileRepository) JoinOrder(ctx context.Context, p *schema.GamificationProfile) (int, error) {
	var before int64
	err := r.db.WithContext(ctx).Model(&schema.GamificationProfile{}).
		Where("workspace_id = ? AND id < ?", p.WorkspaceID, p.ID).
		Count(&before).Error
	if err != nil {
		return 0, fmt.Errorf("统计加入顺序失败: %w", err)
	}
	return int(before) + 1, nil
}

// DeactivateWorkspace 工作区移除时软删除档案
func (r *ProfileRepository) DeactivateWorkspace(ctx context.Context, workspaceID string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&schema.GamificationProfile{}).
		Where("workspace_id = ? AND active = ?", workspaceID, true).
		Update("active", false)
	if res.Error != nil {
		return 0, fmt.Errorf("停用档案失败: %w", res.Error)
	}
	return res.RowsAffected, nil
}
