package service

import (
	"context"

	"github.com/yuqie6/xpforge/internal/repository"
	"github.com/yuqie6/xpforge/internal/schema"
)

// 仓储/外部依赖的最小接口集合（ISP）

type ProfileRepository interface {
	Get(ctx context.Context, userID, workspaceID string) (*schema.GamificationProfile, error)
	GetTop(ctx context.Context, workspaceID string, limit int) ([]schema.GamificationProfile, error)
	Rank(ctx context.Context, p *schema.GamificationProfile) (int, error)
	JoinOrder(ctx context.Context, p *schema.GamificationProfile) (int, error)
	DeactivateWorkspace(ctx context.Context, workspaceID string) (int64, error)
}

type XpTransactionRepository interface {
	ListByProfile(ctx context.Context, profileID uint, limit int) ([]schema.XpTransaction, error)
	CountBySources(ctx context.Context, profileID uint) (map[string]int64, error)
}

type GuardRepository interface {
	GetCooldown(ctx context.Context, userID, action string) (*schema.ActionCooldown, error)
	DeleteExpiredCooldown(ctx context.Context, userID, action string, nowMs int64) error
	UpsertCooldown(ctx context.Context, userID, action string, expiresAtMs int64) error
	GetOrCreateWeeklyCap(ctx context.Context, userID, action, weekStart string, maxCount int) (*schema.WeeklyCap, error)
	IncrementWeeklyCap(ctx context.Context, userID, action, weekStart string, maxCount int) (bool, error)
}

type BadgeRepository interface {
	ListByProfile(ctx context.Context, profileID uint) ([]schema.Badge, error)
	CreateIfAbsent(ctx context.Context, b *schema.Badge) (bool, error)
}

type SubmissionRepository interface {
	Create(ctx context.Context, s *schema.ActionSubmission) error
	GetByID(ctx context.Context, id string) (*schema.ActionSubmission, error)
	Transition(ctx context.Context, id string, from []schema.SubmissionStatus, updates map[string]interface{}) (bool, error)
	CountSince(ctx context.Context, userID string, sinceMs int64) (int64, error)
	RecentActions(ctx context.Context, userID string, limit int) ([]string, error)
	Stats(ctx context.Context, userID string) (repository.SubmissionStats, error)
	ListPending(ctx context.Context, workspaceID string, limit int) ([]schema.ActionSubmission, error)
}

// OrgDirectory 组织结构只读来源
type OrgDirectory interface {
	CountSubordinateRules(ctx context.Context, userID string) (int64, error)
	CountTeamRules(ctx context.Context, userID string) (int64, error)
	HasManagerMembership(ctx context.Context, userID string) (bool, error)
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// LedgerStore 账本事务
type LedgerStore interface {
	RunInTx(ctx context.Context, fn func(ops repository.LedgerOps) error) error
}
