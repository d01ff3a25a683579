package repository

import (
	"context"
	"fmt"

	"github.com/yuqie6/xpforge/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GuardRepository 冷却与周上限状态
type GuardRepository struct {
	db *gorm.DB
}

func NewGuardRepository(db *gorm.DB) *GuardRepository {
	return &GuardRepository{db: db}
}

// GetCooldown 获取冷却记录，不存在返回 nil
func (r *GuardRepository) GetCooldown(ctx context.Context, userID, action string) (*schema.ActionCooldown, error) {
	var c schema.ActionCooldown
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND action = ?", userID, action).
		First(&c).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("查询冷却失败: %w", err)
	}
	return &c, nil
}

// DeleteExpiredCooldown 删除已过期的冷却（条件删除，不会误删刚续期的记录）
func (r *GuardRepository) DeleteExpiredCooldown(ctx context.Context, userID, action string, nowMs int64) error {
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND action = ? AND expires_at <= ?", userID, action, nowMs).
		Delete(&schema.ActionCooldown{}).Error
	if err != nil {
		return fmt.Errorf("删除过期冷却失败: %w", err)
	}
	return nil
}

// UpsertCooldown 设置/刷新冷却截止时间
func (r *GuardRepository) UpsertCooldown(ctx context.Context, userID, action string, expiresAtMs int64) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "action"}},
		DoUpdates: clause.AssignmentColumns([]string{"expires_at"}),
	}).Create(&schema.ActionCooldown{UserID: userID, Action: action, ExpiresAt: expiresAtMs}).Error
	if err != nil {
		return fmt.Errorf("写入冷却失败: %w", err)
	}
	return nil
}

// GetOrCreateWeeklyCap 获取本周计数行，不存在则惰性创建
func (r *GuardRepository) GetOrCreateWeeklyCap(ctx context.Context, userID, action, weekStart string, maxCount int) (*schema.WeeklyCap, error) {
	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&schema.WeeklyCap{UserID: userID, Action: action, WeekStart: weekStart, MaxCount: maxCount}).Error; err != nil {
		return nil, fmt.Errorf("初始化周上限失败: %w", err)
	}
	var wc schema.WeeklyCap
	if err := db.Where("user_id = ? AND action = ? AND week_start = ?", userID, action, weekStart).
		First(&wc).Error; err != nil {
		return nil, fmt.Errorf("查询周上限失败: %w", err)
	}
	return &wc, nil
}

// IncrementWeeklyCap 未达上限时原子加一
func (r *GuardRepository) IncrementWeeklyCap(ctx context.Context, userID, action, weekStart string, maxCount int) (bool, error) {
	var ok bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ok, err = reserveWeeklyCap(tx, userID, action, weekStart, maxCount)
		return err
	})
	return ok, err
}
