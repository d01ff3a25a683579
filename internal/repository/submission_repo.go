package repository

import (
	"context"
	"fmt"

	"github.com/yuqie6/xpforge/internal/schema"
	"gorm.io/gorm"
)

// SubmissionStats 用户提交统计
type SubmissionStats struct {
	Total    int64
	Rejected int64
}

// SubmissionRepository 手动提交仓储
type SubmissionRepository struct {
	db *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

func (r *SubmissionRepository) Create(ctx context.Context, s *schema.ActionSubmission) error {
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		return fmt.Errorf("创建提交失败: %w", err)
	}
	return nil
}

// GetByID 不存在返回 nil
func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*schema.ActionSubmission, error) {
	var s schema.ActionSubmission
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("查询提交失败: %w", err)
	}
	return &s, nil
}

// Transition 仅当当前状态属于 from 时更新，返回是否生效（并发审核只有一个成功）
func (r *SubmissionRepository) Transition(ctx context.Context, id string, from []schema.SubmissionStatus, updates map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).Model(&schema.ActionSubmission{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("更新提交状态失败: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// CountSince 用户自 sinceMs 起的提交数
func (r *SubmissionRepository) CountSince(ctx context.Context, userID string, sinceMs int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&schema.ActionSubmission{}).
		Where("user_id = ? AND submitted_at >= ?", userID, sinceMs).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("统计提交失败: %w", err)
	}
	return n, nil
}

// RecentActions 最近 limit 次提交的动作标识（新到旧）
func (r *SubmissionRepository) RecentActions(ctx context.Context, userID string, limit int) ([]string, error) {
	var actions []string
	err := r.db.WithContext(ctx).Model(&schema.ActionSubmission{}).
		Where("user_id = ?", userID).
		Order("submitted_at DESC").
		Limit(limit).
		Pluck("action", &actions).Error
	if err != nil {
		return nil, fmt.Errorf("查询最近提交失败: %w", err)
	}
	return actions, nil
}

// Stats 用户全量提交与被拒次数
func (r *SubmissionRepository) Stats(ctx context.Context, userID string) (SubmissionStats, error) {
	var out SubmissionStats
	err := r.db.WithContext(ctx).Model(&schema.ActionSubmission{}).
		Select("COUNT(1) AS total, COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS rejected", schema.SubmissionRejected).
		Where("user_id = ?", userID).
		Scan(&out).Error
	if err != nil {
		return SubmissionStats{}, fmt.Errorf("统计提交失败: %w", err)
	}
	return out, nil
}

// ListPending 工作区待审核队列（旧到新）
func (r *SubmissionRepository) ListPending(ctx context.Context, workspaceID string, limit int) ([]schema.ActionSubmission, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []schema.ActionSubmission
	err := r.db.WithContext(ctx).
		Where("workspace_id = ? AND status = ?", workspaceID, schema.SubmissionPending).
		Order("submitted_at ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("查询待审核提交失败: %w", err)
	}
	return out, nil
}
