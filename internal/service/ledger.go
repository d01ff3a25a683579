package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/yuqie6/xpforge/internal/eventbus"
	"github.com/yuqie6/xpforge/internal/repository"
	"github.com/yuqie6/xpforge/internal/rules"
	"github.com/yuqie6/xpforge/internal/schema"
)

// 流水来源类型
const (
	SourceTypeAction     = "action"
	SourceTypeCustom     = "custom"
	SourceTypeSubmission = "submission"
	SourceTypeBadge      = "badge"
	SourceTypeReversal   = "reversal"
)

// 非目录动作的流水来源
const (
	SourceCustom      = "custom"
	SourceBadgeEarned = "badge_earned"
	SourceReversal    = "reversal"
)

// errVersionConflict 版本号不符，整笔事务回滚后重试
var errVersionConflict = errors.New("profile version conflict")

// RoleSource 账本只需要角色判定
type RoleSource interface {
	DetectRole(ctx context.Context, userID string) (schema.Role, error)
}

// AwardRequest 一次加经验请求。Action 为目录动作时走守卫与倍率；
// CustomAmount > 0 时覆盖基础经验（不再乘倍率）。
type AwardRequest struct {
	UserID       string
	WorkspaceID  string
	Action       string
	CustomAmount int64
	Reason       string
	SourceType   string
	SourceID     string

	bypassGuard bool // 仅内部路径（徽章奖励）使用
}

// LedgerService 经验账本写入方，唯一修改档案经验/等级/连续天数的地方
type LedgerService struct {
	store      LedgerStore
	catalog    rules.Catalog
	guard      *AntiGamingGuard
	roles      RoleSource
	events     eventbus.Publisher
	loc        *time.Location
	now        func() time.Time
	maxRetries int
}

func NewLedgerService(store LedgerStore, catalog rules.Catalog, guard *AntiGamingGuard, roles RoleSource, events eventbus.Publisher, settings Settings) *LedgerService {
	s := settings.withDefaults()
	return &LedgerService{
		store:      store,
		catalog:    catalog,
		guard:      guard,
		roles:      roles,
		events:     events,
		loc:        s.Location,
		now:        s.Now,
		maxRetries: s.LedgerMaxRetries,
	}
}

// awardPlan 事务外解析出的奖励参数
type awardPlan struct {
	rule       rules.Rule
	known      bool
	source     string
	amount     int64
	sourceType string
}

func (l *LedgerService) plan(ctx context.Context, req AwardRequest) (*awardPlan, error) {
	if req.UserID == "" {
		return nil, invalidField("user_id", "不能为空")
	}
	if req.WorkspaceID == "" {
		return nil, invalidField("workspace_id", "不能为空")
	}
	if req.CustomAmount < 0 {
		return nil, invalidField("custom_amount", "不能为负数，扣减请使用 SubtractXP")
	}

	action := rules.NormalizeAction(req.Action)
	rule, known := l.catalog.Lookup(action)
	p := &awardPlan{rule: rule, known: known, source: action, sourceType: req.SourceType}

	if req.CustomAmount > 0 {
		p.amount = req.CustomAmount
		if p.source == "" {
			p.source = SourceCustom
		}
		if p.sourceType == "" {
			p.sourceType = SourceTypeCustom
		}
		return p, nil
	}

	if !known || rule.BaseXP <= 0 {
		return nil, invalidAction(req.Action)
	}
	p.amount = rule.BaseXP
	if p.sourceType == "" {
		p.sourceType = SourceTypeAction
	}

	// 角色查询在事务外完成，避免持锁期间访问组织数据
	if rule.Multiplier != rules.MultiplierNone && l.roles != nil {
		role, err := l.roles.DetectRole(ctx, req.UserID)
		if err != nil {
			slog.Warn("角色判定失败，按无倍率处理", "user", req.UserID, "action", action, "error", err)
			role = ""
		}
		p.amount = ApplyMultiplier(role, rule, rule.BaseXP)
	}
	return p, nil
}

// Award 加经验：守卫占位、档案更新、流水追加在同一事务内完成
func (l *LedgerService) Award(ctx context.Context, req AwardRequest) (*ProfileSnapshot, error) {
	p, err := l.plan(ctx, req)
	if err != nil {
		return nil, err
	}

	var (
		profile *schema.GamificationProfile
		txRow   *schema.XpTransaction
		now     time.Time
	)
	err = l.withRetry(ctx, func(ops repository.LedgerOps) error {
		now = l.now()
		if p.known && !req.bypassGuard && l.guard != nil {
			if err := l.guard.reserve(ops, req.UserID, p.rule, now); err != nil {
				return err
			}
		}

		cur, err := ops.LockProfile(req.UserID, req.WorkspaceID)
		if err != nil {
			return err
		}
		expected := cur.Version
		prevXP, prevLevel := cur.TotalXP, cur.Level

		applied := cur.ApplyDelta(p.amount)
		cur.Streak, cur.LastActiveAt = NextStreak(cur.Streak, cur.LastActiveAt, now, l.loc)
		if ok, err := ops.UpdateProfile(cur, expected); err != nil {
			return err
		} else if !ok {
			return errVersionConflict
		}

		row := &schema.XpTransaction{
			ID:            uuid.NewString(),
			ProfileID:     cur.ID,
			UserID:        req.UserID,
			WorkspaceID:   req.WorkspaceID,
			Amount:        applied,
			Requested:     p.amount,
			Source:        p.source,
			Reason:        req.Reason,
			SourceType:    p.sourceType,
			SourceID:      req.SourceID,
			PreviousXP:    prevXP,
			NewXP:         cur.TotalXP,
			PreviousLevel: prevLevel,
			NewLevel:      cur.Level,
			LeveledUp:     cur.Level > prevLevel,
			Timestamp:     now.UnixMilli(),
		}
		if err := ops.AppendTransaction(row); err != nil {
			return err
		}
		profile, txRow = cur, row
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("经验已入账",
		"user", req.UserID,
		"workspace", req.WorkspaceID,
		"source", txRow.Source,
		"amount", txRow.Amount,
		"total_xp", profile.TotalXP,
		"level", profile.Level,
	)
	l.publish(eventbus.TypeXPAwarded, txRow)
	if txRow.LeveledUp {
		slog.Info("等级提升", "user", req.UserID, "workspace", req.WorkspaceID, "from", txRow.PreviousLevel, "to", txRow.NewLevel)
		l.publish(eventbus.TypeLevelUp, txRow)
	}

	snap := newSnapshot(profile, now)
	snap.Applied = txRow.Amount
	snap.LeveledUp = txRow.LeveledUp
	snap.TransactionID = txRow.ID
	return snap, nil
}

// SubtractXP 扣减经验，不会低于 0；流水记录实际扣减量与请求量
func (l *LedgerService) SubtractXP(ctx context.Context, userID, workspaceID string, amount int64, reason string) (*ProfileSnapshot, error) {
	if userID == "" {
		return nil, invalidField("user_id", "不能为空")
	}
	if workspaceID == "" {
		return nil, invalidField("workspace_id", "不能为空")
	}
	if amount <= 0 {
		return nil, invalidField("amount", "必须为正数")
	}

	var (
		profile *schema.GamificationProfile
		txRow   *schema.XpTransaction
		now     time.Time
	)
	err := l.withRetry(ctx, func(ops repository.LedgerOps) error {
		now = l.now()
		cur, err := ops.FindProfileForUpdate(userID, workspaceID)
		if err != nil {
			return err
		}
		if cur == nil {
			return fmt.Errorf("档案 %s/%s: %w", userID, workspaceID, ErrNotFound)
		}
		expected := cur.Version
		prevXP, prevLevel := cur.TotalXP, cur.Level

		applied := cur.ApplyDelta(-amount)
		if ok, err := ops.UpdateProfile(cur, expected); err != nil {
			return err
		} else if !ok {
			return errVersionConflict
		}

		row := &schema.XpTransaction{
			ID:            uuid.NewString(),
			ProfileID:     cur.ID,
			UserID:        userID,
			WorkspaceID:   workspaceID,
			Amount:        applied,
			Requested:     -amount,
			Source:        SourceReversal,
			Reason:        reason,
			SourceType:    SourceTypeReversal,
			PreviousXP:    prevXP,
			NewXP:         cur.TotalXP,
			PreviousLevel: prevLevel,
			NewLevel:      cur.Level,
			Timestamp:     now.UnixMilli(),
		}
		if err := ops.AppendTransaction(row); err != nil {
			return err
		}
		profile, txRow = cur, row
		return nil
	})
	if err != nil {
		return nil, err
	}

	if -txRow.Amount < amount {
		slog.Warn("扣减被截断", "user", userID, "workspace", workspaceID, "requested", amount, "applied", -txRow.Amount)
	} else {
		slog.Info("经验已扣减", "user", userID, "workspace", workspaceID, "amount", amount, "total_xp", profile.TotalXP)
	}
	l.publish(eventbus.TypeXPReversed, txRow)

	snap := newSnapshot(profile, now)
	snap.Applied = txRow.Amount
	snap.TransactionID = txRow.ID
	return snap, nil
}

// withRetry 版本冲突时整笔事务重来，超过次数返回 ErrConcurrencyConflict
func (l *LedgerService) withRetry(ctx context.Context, fn func(ops repository.LedgerOps) error) error {
	for attempt := 1; attempt <= l.maxRetries; attempt++ {
		err := l.store.RunInTx(ctx, fn)
		if !errors.Is(err, errVersionConflict) {
			return err
		}
		slog.Debug("档案版本冲突，重试", "attempt", attempt)
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return fmt.Errorf("重试 %d 次仍冲突: %w", l.maxRetries, ErrConcurrencyConflict)
}

func (l *LedgerService) publish(typ string, row *schema.XpTransaction) {
	if l.events == nil {
		return
	}
	l.events.Publish(eventbus.Event{
		Type:      typ,
		Timestamp: row.Timestamp,
		UserID:    row.UserID,
		Workspace: row.WorkspaceID,
		Data: map[string]any{
			"transaction_id": row.ID,
			"source":         row.Source,
			"amount":         row.Amount,
			"total_xp":       row.NewXP,
			"level":          row.NewLevel,
			"previous_level": row.PreviousLevel,
		},
	})
}
