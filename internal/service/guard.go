package service

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/yuqie6/xpforge/internal/repository"
	"github.com/yuqie6/xpforge/internal/rules"
	"github.com/yuqie6/xpforge/internal/schema"
)

// Eligibility 提交前检查结果
type Eligibility struct {
	Allowed bool           `json:"allowed"`
	Reasons []DenialReason `json:"reasons,omitempty"`
}

// AntiGamingGuard 冷却、周上限与刷分模式检测
type AntiGamingGuard struct {
	catalog     rules.Catalog
	repo        GuardRepository
	submissions SubmissionRepository
	loc         *time.Location
	now         func() time.Time
	approval    float64
}

// NewAntiGamingGuard 创建守卫；submissions 为空时刷分检测返回空报告
func NewAntiGamingGuard(catalog rules.Catalog, repo GuardRepository, submissions SubmissionRepository, settings Settings) *AntiGamingGuard {
	s := settings.withDefaults()
	return &AntiGamingGuard{
		catalog:     catalog,
		repo:        repo,
		submissions: submissions,
		loc:         s.Location,
		now:         s.Now,
		approval:    s.ApprovalRating,
	}
}

// CanSubmit 只读预检查，报告全部适用的拒绝原因
func (g *AntiGamingGuard) CanSubmit(ctx context.Context, userID, action string) (*Eligibility, error) {
	if userID == "" {
		return nil, invalidField("user_id", "不能为空")
	}
	rule, ok := g.catalog.Lookup(action)
	if !ok {
		return nil, invalidAction(action)
	}
	now := g.now()
	out := &Eligibility{Allowed: true}

	if rule.HasCooldown() {
		c, err := g.repo.GetCooldown(ctx, userID, rule.Action)
		if err != nil {
			return nil, err
		}
		if c != nil {
			if remaining := c.Remaining(now); remaining > 0 {
				out.Reasons = append(out.Reasons, cooldownReason(rule.Action, remaining))
			} else if err := g.repo.DeleteExpiredCooldown(ctx, userID, rule.Action, now.UnixMilli()); err != nil {
				slog.Warn("清理过期冷却失败", "user", userID, "action", rule.Action, "error", err)
			}
		}
	}

	if rule.HasWeeklyCap() {
		wc, err := g.repo.GetOrCreateWeeklyCap(ctx, userID, rule.Action, schema.WeekKey(now, g.loc), rule.WeeklyCap)
		if err != nil {
			return nil, err
		}
		if wc.Count >= rule.WeeklyCap {
			out.Reasons = append(out.Reasons, weeklyCapReason(rule.Action, wc.Count, rule.WeeklyCap))
		}
	}

	out.Allowed = len(out.Reasons) == 0
	return out, nil
}

// ApplyCooldown 设置/刷新冷却：expiresAt = now + cooldownHours
func (g *AntiGamingGuard) ApplyCooldown(ctx context.Context, userID, action string) error {
	rule, ok := g.catalog.Lookup(action)
	if !ok {
		return invalidAction(action)
	}
	if !rule.HasCooldown() {
		return nil
	}
	expires := g.now().Add(time.Duration(rule.CooldownHours) * time.Hour)
	return g.repo.UpsertCooldown(ctx, userID, rule.Action, expires.UnixMilli())
}

// IncrementWeeklyCap 本周计数原子加一，已达上限返回 false
func (g *AntiGamingGuard) IncrementWeeklyCap(ctx context.Context, userID, action string) (bool, error) {
	rule, ok := g.catalog.Lookup(action)
	if !ok {
		return false, invalidAction(action)
	}
	if !rule.HasWeeklyCap() {
		return true, nil
	}
	return g.repo.IncrementWeeklyCap(ctx, userID, rule.Action, schema.WeekKey(g.now(), g.loc), rule.WeeklyCap)
}

// reserve 在账本事务内占用冷却与周额度；两项独立检查，原因叠加
func (g *AntiGamingGuard) reserve(ops repository.LedgerOps, userID string, rule rules.Rule, now time.Time) error {
	var reasons []DenialReason
	nowMs := now.UnixMilli()

	if rule.HasCooldown() {
		expires := now.Add(time.Duration(rule.CooldownHours) * time.Hour).UnixMilli()
		ok, err := ops.ReserveCooldown(userID, rule.Action, nowMs, expires)
		if err != nil {
			return err
		}
		if !ok {
			cur, err := ops.CooldownExpiry(userID, rule.Action)
			if err != nil {
				return err
			}
			remaining := time.UnixMilli(cur).Sub(now)
			reasons = append(reasons, cooldownReason(rule.Action, remaining))
		}
	}

	if rule.HasWeeklyCap() {
		ok, err := ops.ReserveWeeklyCap(userID, rule.Action, schema.WeekKey(now, g.loc), rule.WeeklyCap)
		if err != nil {
			return err
		}
		if !ok {
			reasons = append(reasons, weeklyCapReason(rule.Action, rule.WeeklyCap, rule.WeeklyCap))
		}
	}

	if len(reasons) > 0 {
		return &RateLimitError{Action: rule.Action, Reasons: reasons}
	}
	return nil
}

// 刷分检测阈值
const (
	gamingVelocityWindow    = 24 * time.Hour
	gamingVelocityLimit     = 10
	gamingRecentSample      = 10
	gamingMaxDistinct       = 2
	gamingRejectionMinTotal = 10
	gamingRejectionRate     = 0.5

	// 权重以十分位整数累加，避免浮点比较误差
	weightVelocity   = 3
	weightRepetitive = 4
	weightRejection  = 3
	gamingThreshold  = 6
)

// GamingSignal 触发的单项信号
type GamingSignal string

const (
	SignalHighVelocity  GamingSignal = "high_velocity"
	SignalRepetitive    GamingSignal = "repetitive_actions"
	SignalHighRejection GamingSignal = "high_rejection_rate"
)

// GamingReport 刷分嫌疑报告，仅供人工复核，不阻断提交
type GamingReport struct {
	IsGaming      bool           `json:"is_gaming"`
	Confidence    float64        `json:"confidence"`
	Signals       []GamingSignal `json:"signals,omitempty"`
	Submissions24 int64          `json:"submissions_24h"`
	RejectionRate float64        `json:"rejection_rate"`
}

// DetectGaming 基于提交历史计算刷分嫌疑，不修改任何状态
func (g *AntiGamingGuard) DetectGaming(ctx context.Context, userID string) (*GamingReport, error) {
	report := &GamingReport{}
	if g.submissions == nil {
		return report, nil
	}
	now := g.now()
	score := 0

	recentCount, err := g.submissions.CountSince(ctx, userID, now.Add(-gamingVelocityWindow).UnixMilli())
	if err != nil {
		return nil, err
	}
	report.Submissions24 = recentCount
	if recentCount > gamingVelocityLimit {
		score += weightVelocity
		report.Signals = append(report.Signals, SignalHighVelocity)
	}

	actions, err := g.submissions.RecentActions(ctx, userID, gamingRecentSample)
	if err != nil {
		return nil, err
	}
	if len(actions) >= gamingRecentSample {
		distinct := make(map[string]struct{}, len(actions))
		for _, a := range actions {
			distinct[a] = struct{}{}
		}
		if len(distinct) <= gamingMaxDistinct {
			score += weightRepetitive
			report.Signals = append(report.Signals, SignalRepetitive)
		}
	}

	stats, err := g.submissions.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}
	if stats.Total > 0 {
		report.RejectionRate = float64(stats.Rejected) / float64(stats.Total)
	}
	if stats.Total >= gamingRejectionMinTotal && report.RejectionRate > gamingRejectionRate {
		score += weightRejection
		report.Signals = append(report.Signals, SignalHighRejection)
	}

	report.Confidence = float64(score) / 10
	report.IsGaming = score > gamingThreshold
	return report, nil
}

// 评分范围
const (
	MinRating = 1.0
	MaxRating = 5.0
)

// ValidateRating 评分必须在 [1, 5]
func ValidateRating(rating float64) error {
	if math.IsNaN(rating) || rating < MinRating || rating > MaxRating {
		return invalidField("rating", "评分必须在 1-5 之间")
	}
	return nil
}

// IsApprovedQuality 评分达到通过线（默认 4.0）
func (g *AntiGamingGuard) IsApprovedQuality(rating float64) bool {
	return rating >= g.approval
}
