package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yuqie6/xpforge/internal/eventbus"
	"github.com/yuqie6/xpforge/internal/rolecache"
	"github.com/yuqie6/xpforge/internal/rules"
	"github.com/yuqie6/xpforge/internal/schema"
)

// badgeBonusRounds 徽章奖励可能连锁解锁新徽章，最多评估的轮数
const badgeBonusRounds = 3

// EngineDeps 引擎依赖
type EngineDeps struct {
	Catalog          rules.Catalog
	Ledger           LedgerStore
	Profiles         ProfileRepository
	Transactions     XpTransactionRepository
	Guard            GuardRepository
	Badges           BadgeRepository
	Submissions      SubmissionRepository
	Org              OrgDirectory
	RoleCache        rolecache.Cache // 为空时使用进程内缓存
	Events           eventbus.Publisher
	BadgeDefinitions []BadgeDefinition // 为空时使用 DefaultBadges
	Settings         Settings
}

// Engine 对外的唯一入口，串联账本、守卫、成就与审核流程
type Engine struct {
	catalog     rules.Catalog
	profiles    ProfileRepository
	txs         XpTransactionRepository
	roles       *RoleDetector
	guard       *AntiGamingGuard
	ledger      *LedgerService
	badges      *BadgeService
	submissions *SubmissionService
	now         func() time.Time
	bonusXP     int64
}

func NewEngine(deps EngineDeps) *Engine {
	s := deps.Settings.withDefaults()
	catalog := deps.Catalog
	if catalog == nil {
		catalog = rules.Default()
	}

	e := &Engine{
		catalog:  catalog,
		profiles: deps.Profiles,
		txs:      deps.Transactions,
		now:      s.Now,
		bonusXP:  s.BadgeBonusXP,
	}
	e.roles = NewRoleDetector(deps.Org, deps.RoleCache, deps.Events, s)
	e.guard = NewAntiGamingGuard(catalog, deps.Guard, deps.Submissions, s)
	e.ledger = NewLedgerService(deps.Ledger, catalog, e.guard, e.roles, deps.Events, s)
	e.badges = NewBadgeService(deps.Profiles, deps.Transactions, deps.Badges, deps.Events, deps.BadgeDefinitions, s)
	// 审核通过走引擎入账，保证成就评估一致
	e.submissions = NewSubmissionService(catalog, deps.Submissions, e.guard, e, deps.Events, s)
	return e
}

// Award 入账并评估成就。成就评估失败只记录日志，不影响已提交的经验。
func (e *Engine) Award(ctx context.Context, req AwardRequest) (*ProfileSnapshot, error) {
	snap, err := e.ledger.Award(ctx, req)
	if err != nil {
		return nil, err
	}
	return e.afterAward(ctx, req.UserID, req.WorkspaceID, snap), nil
}

func (e *Engine) afterAward(ctx context.Context, userID, workspaceID string, snap *ProfileSnapshot) *ProfileSnapshot {
	for round := 0; round < badgeBonusRounds; round++ {
		unlocked := e.evaluateBadges(ctx, userID, workspaceID)
		if len(unlocked) == 0 {
			break
		}
		snap.NewBadges = append(snap.NewBadges, unlocked...)
		if e.bonusXP <= 0 {
			break
		}
		for _, b := range unlocked {
			bonus, err := e.ledger.Award(ctx, AwardRequest{
				UserID:       userID,
				WorkspaceID:  workspaceID,
				Action:       SourceBadgeEarned,
				CustomAmount: e.bonusXP,
				Reason:       b.Name,
				SourceType:   SourceTypeBadge,
				SourceID:     b.Type,
				bypassGuard:  true,
			})
			if err != nil {
				slog.Warn("成就奖励经验入账失败", "user", userID, "badge", b.Type, "error", err)
				continue
			}
			snap = mergeBonus(snap, bonus)
		}
	}
	return snap
}

// evaluateBadges 失败时重试一次，仍失败只记录
func (e *Engine) evaluateBadges(ctx context.Context, userID, workspaceID string) []schema.Badge {
	unlocked, err := e.badges.Evaluate(ctx, userID, workspaceID)
	if err == nil {
		return unlocked
	}
	slog.Warn("成就评估失败，重试", "user", userID, "workspace", workspaceID, "error", err)
	more, err := e.badges.Evaluate(ctx, userID, workspaceID)
	if err != nil {
		slog.Warn("成就评估重试失败", "user", userID, "workspace", workspaceID, "error", err)
	}
	return append(unlocked, more...)
}

// mergeBonus 以奖励后的档案为准，保留原始调用的入账信息
func mergeBonus(orig, bonus *ProfileSnapshot) *ProfileSnapshot {
	out := *bonus
	out.Applied = orig.Applied
	out.TransactionID = orig.TransactionID
	out.LeveledUp = orig.LeveledUp || bonus.LeveledUp
	out.NewBadges = orig.NewBadges
	return &out
}

// SubtractXP 扣减经验，已解锁的成就不会撤销
func (e *Engine) SubtractXP(ctx context.Context, userID, workspaceID string, amount int64, reason string) (*ProfileSnapshot, error) {
	return e.ledger.SubtractXP(ctx, userID, workspaceID, amount, reason)
}

// CanSubmit 只读预检查
func (e *Engine) CanSubmit(ctx context.Context, userID, action string) (*Eligibility, error) {
	return e.guard.CanSubmit(ctx, userID, action)
}

func (e *Engine) SubmitManualAction(ctx context.Context, userID, workspaceID, action string, in SubmissionInput) (*SubmissionResult, error) {
	return e.submissions.SubmitManualAction(ctx, userID, workspaceID, action, in)
}

func (e *Engine) ValidateSubmission(ctx context.Context, submissionID, validatorID string, in ValidationInput) (*ValidationResult, error) {
	return e.submissions.ValidateSubmission(ctx, submissionID, validatorID, in)
}

func (e *Engine) ProvideEvidence(ctx context.Context, submissionID, userID, evidence string) (*schema.ActionSubmission, error) {
	return e.submissions.ProvideEvidence(ctx, submissionID, userID, evidence)
}

func (e *Engine) ListPending(ctx context.Context, workspaceID string, limit int) ([]schema.ActionSubmission, error) {
	return e.submissions.ListPending(ctx, workspaceID, limit)
}

// GetProfile 只读档案视图
func (e *Engine) GetProfile(ctx context.Context, userID, workspaceID string) (*ProfileSnapshot, error) {
	p, err := e.profiles.Get(ctx, userID, workspaceID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("档案 %s/%s: %w", userID, workspaceID, ErrNotFound)
	}
	if p.LevelStale() {
		slog.Warn("档案等级与经验不一致", "user", userID, "workspace", workspaceID, "level", p.Level, "total_xp", p.TotalXP)
	}
	return newSnapshot(p, e.now()), nil
}

func (e *Engine) GetBadges(ctx context.Context, userID, workspaceID string) ([]BadgeView, error) {
	return e.badges.GetBadges(ctx, userID, workspaceID)
}

func (e *Engine) DetectRole(ctx context.Context, userID string) (schema.Role, error) {
	return e.roles.DetectRole(ctx, userID)
}

func (e *Engine) InvalidateRole(ctx context.Context, userID string) error {
	return e.roles.InvalidateRole(ctx, userID)
}

func (e *Engine) InvalidateAllRoles(ctx context.Context) error {
	return e.roles.InvalidateAll(ctx)
}

// LeaderboardEntry 排行榜条目
type LeaderboardEntry struct {
	Rank    int         `json:"rank"`
	UserID  string      `json:"user_id"`
	TotalXP int64       `json:"total_xp"`
	Level   int         `json:"level"`
	Streak  int         `json:"streak"`
	Role    schema.Role `json:"role,omitempty"`
}

// Leaderboard 工作区经验排行，同分并列；角色按批判定
func (e *Engine) Leaderboard(ctx context.Context, workspaceID string, limit int) ([]LeaderboardEntry, error) {
	if workspaceID == "" {
		return nil, invalidField("workspace_id", "不能为空")
	}
	top, err := e.profiles.GetTop(ctx, workspaceID, limit)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(top))
	for _, p := range top {
		ids = append(ids, p.UserID)
	}
	roles, err := e.roles.DetectRoles(ctx, ids)
	if err != nil {
		slog.Warn("排行榜角色判定失败", "workspace", workspaceID, "error", err)
	}

	out := make([]LeaderboardEntry, 0, len(top))
	for i, p := range top {
		rank := i + 1
		if i > 0 && p.TotalXP == top[i-1].TotalXP {
			rank = out[i-1].Rank
		}
		out = append(out, LeaderboardEntry{
			Rank:    rank,
			UserID:  p.UserID,
			TotalXP: p.TotalXP,
			Level:   p.Level,
			Streak:  p.Streak,
			Role:    roles[p.UserID],
		})
	}
	return out, nil
}

// GamingReport 刷分嫌疑报告（只读）
func (e *Engine) GamingReport(ctx context.Context, userID string) (*GamingReport, error) {
	if userID == "" {
		return nil, invalidField("user_id", "不能为空")
	}
	return e.guard.DetectGaming(ctx, userID)
}

// History 经验流水（新到旧）
func (e *Engine) History(ctx context.Context, userID, workspaceID string, limit int) ([]schema.XpTransaction, error) {
	p, err := e.profiles.Get(ctx, userID, workspaceID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("档案 %s/%s: %w", userID, workspaceID, ErrNotFound)
	}
	return e.txs.ListByProfile(ctx, p.ID, limit)
}

// DeactivateWorkspace 工作区移除时停用其下所有档案，流水保留
func (e *Engine) DeactivateWorkspace(ctx context.Context, workspaceID string) (int64, error) {
	if workspaceID == "" {
		return 0, invalidField("workspace_id", "不能为空")
	}
	n, err := e.profiles.DeactivateWorkspace(ctx, workspaceID)
	if err != nil {
		return 0, err
	}
	slog.Info("工作区档案已停用", "workspace", workspaceID, "count", n)
	return n, nil
}

// Rules 当前规则目录
func (e *Engine) Rules() []rules.Rule {
	return e.catalog.All()
}

// BadgeDefinitions 当前成就定义
func (e *Engine) BadgeDefinitions() []BadgeDefinition {
	return e.badges.Definitions()
}
