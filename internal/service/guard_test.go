package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/yuqie6/xpforge/internal/repository"
	"github.com/yuqie6/xpforge/internal/rules"
	"github.com/yuqie6/xpforge/internal/schema"
	"github.com/yuqie6/xpforge/internal/testutil"
	"gorm.io/gorm"
)

func newTestGuard(t *testing.T, now time.Time) (*AntiGamingGuard, *gorm.DB) {
	t.Helper()
	db := testutil.OpenTestDB(t)
	guard := NewAntiGamingGuard(
		rules.Default(),
		repository.NewGuardRepository(db),
		repository.NewSubmissionRepository(db),
		Settings{Location: time.UTC, Now: func() time.Time { return now }},
	)
	return guard, db
}

func TestCanSubmitReportsAllReasons(t *testing.T) {
	now := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	guard, db := newTestGuard(t, now)
	ctx := context.Background()

	rule, _ := rules.Default().Lookup(rules.ActionPeerSupport)
	db.Create(&schema.ActionCooldown{UserID: "u1", Action: rule.Action, ExpiresAt: now.Add(45 * time.Minute).UnixMilli()})
	db.Create(&schema.WeeklyCap{UserID: "u1", Action: rule.Action, WeekStart: schema.WeekKey(now, time.UTC), Count: rule.WeeklyCap, MaxCount: rule.WeeklyCap})

	elig, err := guard.CanSubmit(ctx, "u1", rule.Action)
	if err != nil {
		t.Fatalf("CanSubmit error: %v", err)
	}
	if elig.Allowed || len(elig.Reasons) != 2 {
		t.Fatalf("eligibility=%+v, want two reasons", elig)
	}
	if elig.Reasons[0].Kind != DenialCooldown || elig.Reasons[0].RemainingMinutes != 45 {
		t.Fatalf("cooldown reason=%+v", elig.Reasons[0])
	}
	if elig.Reasons[1].Kind != DenialWeeklyCap || elig.Reasons[1].Count != rule.WeeklyCap || elig.Reasons[1].Max != rule.WeeklyCap {
		t.Fatalf("cap reason=%+v", elig.Reasons[1])
	}
}

func TestCanSubmitDeletesExpiredCooldown(t *testing.T) {
	now := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	guard, db := newTestGuard(t, now)
	ctx := context.Background()

	db.Create(&schema.ActionCooldown{UserID: "u1", Action: rules.ActionFeedbackGiven, ExpiresAt: now.Add(-time.Minute).UnixMilli()})
	elig, err := guard.CanSubmit(ctx, "u1", rules.ActionFeedbackGiven)
	if err != nil {
		t.Fatalf("CanSubmit error: %v", err)
	}
	if !elig.Allowed {
		t.Fatalf("eligibility=%+v, want allowed", elig)
	}
	var n int64
	db.Model(&schema.ActionCooldown{}).Count(&n)
	if n != 0 {
		t.Fatalf("expired cooldown not deleted, rows=%d", n)
	}

	if _, err := guard.CanSubmit(ctx, "u1", "made_up"); !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("err=%v, want ErrInvalidAction", err)
	}
}

func TestApplyCooldownAndIncrementWeeklyCap(t *testing.T) {
	now := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	guard, _ := newTestGuard(t, now)
	ctx := context.Background()

	if err := guard.ApplyCooldown(ctx, "u1", rules.ActionGoalProgress); err != nil {
		t.Fatalf("ApplyCooldown error: %v", err)
	}
	elig, _ := guard.CanSubmit(ctx, "u1", rules.ActionGoalProgress)
	if elig.Allowed || elig.Reasons[0].RemainingMinutes != 12*60 {
		t.Fatalf("eligibility=%+v", elig)
	}

	rule, _ := rules.Default().Lookup(rules.ActionOneOnOne)
	for i := 0; i < rule.WeeklyCap; i++ {
		ok, err := guard.IncrementWeeklyCap(ctx, "u1", rule.Action)
		if err != nil || !ok {
			t.Fatalf("increment %d ok=%v err=%v", i+1, ok, err)
		}
	}
	ok, err := guard.IncrementWeeklyCap(ctx, "u1", rule.Action)
	if err != nil || ok {
		t.Fatalf("increment past cap ok=%v err=%v", ok, err)
	}
}

func seedSubmissions(t *testing.T, db *gorm.DB, userID string, now time.Time, actions []string, status schema.SubmissionStatus) {
	t.Helper()
	for i, a := range actions {
		s := schema.ActionSubmission{
			ID:          fmt.Sprintf("%s-%s-%d-%s", userID, a, i, status),
			UserID:      userID,
			WorkspaceID: "w1",
			Action:      a,
			Status:      status,
			SubmittedAt: now.Add(-time.Duration(i+1) * time.Minute).UnixMilli(),
		}
		if err := db.Create(&s).Error; err != nil {
			t.Fatalf("seed submission: %v", err)
		}
	}
}

func repeat(action string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = action
	}
	return out
}

func TestDetectGamingSignals(t *testing.T) {
	now := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	guard, db := newTestGuard(t, now)
	ctx := context.Background()

	// 24 小时内 12 次、只有一种动作：0.3 + 0.4
	seedSubmissions(t, db, "spammer", now, repeat(rules.ActionFeedbackGiven, 12), schema.SubmissionApproved)
	report, err := guard.DetectGaming(ctx, "spammer")
	if err != nil {
		t.Fatalf("DetectGaming error: %v", err)
	}
	if !report.IsGaming || math.Abs(report.Confidence-0.7) > 1e-9 || len(report.Signals) != 2 {
		t.Fatalf("report=%+v", report)
	}

	// 样本不足 10 条不触发重复信号
	seedSubmissions(t, db, "newbie", now, repeat(rules.ActionFeedbackGiven, 5), schema.SubmissionApproved)
	report, _ = guard.DetectGaming(ctx, "newbie")
	if report.IsGaming || len(report.Signals) != 0 {
		t.Fatalf("report=%+v", report)
	}

	// 拒绝率 60%，动作分散：只有 0.3，不构成刷分
	actions := []string{
		rules.ActionFeedbackGiven, rules.ActionDocumentation, rules.ActionMentoringSession,
		rules.ActionGoalProgress, rules.ActionOneOnOne, rules.ActionPeerSupport,
	}
	seedSubmissions(t, db, "sloppy", now.Add(-48*time.Hour), actions, schema.SubmissionRejected)
	seedSubmissions(t, db, "sloppy", now.Add(-72*time.Hour), actions[:4], schema.SubmissionApproved)
	report, _ = guard.DetectGaming(ctx, "sloppy")
	if report.IsGaming || len(report.Signals) != 1 || report.Signals[0] != SignalHighRejection {
		t.Fatalf("report=%+v", report)
	}
	if math.Abs(report.RejectionRate-0.6) > 1e-9 {
		t.Fatalf("rejection_rate=%v, want 0.6", report.RejectionRate)
	}
}

func TestValidateRating(t *testing.T) {
	guard, _ := newTestGuard(t, time.Now())
	for _, r := range []float64{1, 3.3, 5} {
		if err := ValidateRating(r); err != nil {
			t.Fatalf("rating %v should be valid: %v", r, err)
		}
	}
	for _, r := range []float64{0, 0.99, 5.01, math.NaN()} {
		if err := ValidateRating(r); !errors.Is(err, ErrValidation) {
			t.Fatalf("rating %v should be invalid", r)
		}
	}
	if guard.IsApprovedQuality(3.99) || !guard.IsApprovedQuality(4) {
		t.Fatalf("approval threshold should be 4.0")
	}
}
