package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/yuqie6/xpforge/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerOps 账本事务内可用的操作集合，全部作用于同一个事务
type LedgerOps interface {
	// LockProfile 读取并锁定档案（不存在则先创建），postgres 下为 SELECT ... FOR UPDATE
	LockProfile(userID, workspaceID string) (*schema.GamificationProfile, error)
	// FindProfileForUpdate 锁定已有档案，不存在返回 nil
	FindProfileForUpdate(userID, workspaceID string) (*schema.GamificationProfile, error)
	// UpdateProfile 按版本号更新档案，版本不符返回 false
	UpdateProfile(p *schema.GamificationProfile, expectedVersion int64) (bool, error)
	AppendTransaction(t *schema.XpTransaction) error
	// CooldownExpiry 当前冷却截止时间（Unix ms），无记录返回 0
	CooldownExpiry(userID, action string) (int64, error)
	// ReserveCooldown 冷却已过期（或不存在）时写入新的截止时间，返回是否成功
	ReserveCooldown(userID, action string, nowMs, expiresAtMs int64) (bool, error)
	// ReserveWeeklyCap 本周计数未达上限时原子加一，返回是否成功
	ReserveWeeklyCap(userID, action, weekStart string, maxCount int) (bool, error)
}

// LedgerRepository 账本事务入口
type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// RunInTx 在单个事务中执行 fn，fn 返回错误则整体回滚
func (r *LedgerRepository) RunInTx(ctx context.Context, fn func(ops LedgerOps) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&ledgerTx{tx: tx})
	})
}

type ledgerTx struct {
	tx *gorm.DB
}

func (l *ledgerTx) LockProfile(userID, workspaceID string) (*schema.GamificationProfile, error) {
	// 并发首次奖励时只有一个插入生效，其余走 DoNothing 后加锁读取
	fresh := schema.NewGamificationProfile(userID, workspaceID)
	if err := l.tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "workspace_id"}},
		DoNothing: true,
	}).Create(fresh).Error; err != nil {
		return nil, fmt.Errorf("创建档案失败: %w", err)
	}

	var p schema.GamificationProfile
	err := l.tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND workspace_id = ?", userID, workspaceID).
		First(&p).Error
	if err != nil {
		return nil, fmt.Errorf("锁定档案失败: %w", err)
	}
	return &p, nil
}

func (l *ledgerTx) FindProfileForUpdate(userID, workspaceID string) (*schema.GamificationProfile, error) {
	var p schema.GamificationProfile
	err := l.tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND workspace_id = ?", userID, workspaceID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("锁定档案失败: %w", err)
	}
	return &p, nil
}

func (l *ledgerTx) UpdateProfile(p *schema.GamificationProfile, expectedVersion int64) (bool, error) {
	res := l.tx.Model(&schema.GamificationProfile{}).
		Where("id = ? AND version = ?", p.ID, expectedVersion).
		Updates(map[string]interface{}{
			"total_xp":       p.TotalXP,
			"level":          p.Level,
			"streak":         p.Streak,
			"last_active_at": p.LastActiveAt,
			"version":        expectedVersion + 1,
		})
	if res.Error != nil {
		return false, fmt.Errorf("更新档案失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	p.Version = expectedVersion + 1
	return true, nil
}

func (l *ledgerTx) AppendTransaction(t *schema.XpTransaction) error {
	if err := l.tx.Create(t).Error; err != nil {
		return fmt.Errorf("写入经验流水失败: %w", err)
	}
	return nil
}

func (l *ledgerTx) CooldownExpiry(userID, action string) (int64, error) {
	var c schema.ActionCooldown
	err := l.tx.Where("user_id = ? AND action = ?", userID, action).Limit(1).Find(&c).Error
	if err != nil {
		return 0, fmt.Errorf("查询冷却失败: %w", err)
	}
	return c.ExpiresAt, nil
}

func (l *ledgerTx) ReserveCooldown(userID, action string, nowMs, expiresAtMs int64) (bool, error) {
	res := l.tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "action"}},
		DoUpdates: clause.AssignmentColumns([]string{"expires_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "action_cooldowns.expires_at <= ?", Vars: []interface{}{nowMs}},
		}},
	}).Create(&schema.ActionCooldown{UserID: userID, Action: action, ExpiresAt: expiresAtMs})
	if res.Error != nil {
		return false, fmt.Errorf("写入冷却失败: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (l *ledgerTx) ReserveWeeklyCap(userID, action, weekStart string, maxCount int) (bool, error) {
	return reserveWeeklyCap(l.tx, userID, action, weekStart, maxCount)
}

// reserveWeeklyCap 先 upsert 占位行，再条件自增；两步都在调用方的连接/事务里
func reserveWeeklyCap(db *gorm.DB, userID, action, weekStart string, maxCount int) (bool, error) {
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&schema.WeeklyCap{UserID: userID, Action: action, WeekStart: weekStart, Count: 0, MaxCount: maxCount}).Error; err != nil {
		return false, fmt.Errorf("初始化周上限失败: %w", err)
	}
	res := db.Model(&schema.WeeklyCap{}).
		Where("user_id = ? AND action = ? AND week_start = ? AND count < ?", userID, action, weekStart, maxCount).
		Updates(map[string]interface{}{
			"count":     gorm.Expr("count + 1"),
			"max_count": maxCount,
		})
	if res.Error != nil {
		return false, fmt.Errorf("更新周上限失败: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
