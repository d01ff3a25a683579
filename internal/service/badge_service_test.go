package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yuqie6/xpforge/internal/repository"
	"github.com/yuqie6/xpforge/internal/rules"
	"github.com/yuqie6/xpforge/internal/schema"
	"github.com/yuqie6/xpforge/internal/testutil"
)

type fakeProfileRepo struct {
	ProfileRepository
	profile   *schema.GamificationProfile
	rank      int
	joinOrder int
	rankCalls int
	err       error
}

func (f *fakeProfileRepo) Get(ctx context.Context, userID, workspaceID string) (*schema.GamificationProfile, error) {
	return f.profile, nil
}

func (f *fakeProfileRepo) Rank(ctx context.Context, p *schema.GamificationProfile) (int, error) {
	f.rankCalls++
	return f.rank, f.err
}

func (f *fakeProfileRepo) JoinOrder(ctx context.Context, p *schema.GamificationProfile) (int, error) {
	return f.joinOrder, f.err
}

type fakeTxRepo struct {
	XpTransactionRepository
	counts map[string]int64
	calls  int
}

func (f *fakeTxRepo) CountBySources(ctx context.Context, profileID uint) (map[string]int64, error) {
	f.calls++
	return f.counts, nil
}

type unknownCriterion struct{}

func (unknownCriterion) criterion() {}

func TestEvaluateCriterionVariants(t *testing.T) {
	profile := &schema.GamificationProfile{ID: 1, TotalXP: 900, Level: 4, Streak: 7}
	profiles := &fakeProfileRepo{profile: profile, rank: 2, joinOrder: 15}
	txs := &fakeTxRepo{counts: map[string]int64{rules.ActionMentoringSession: 5}}
	facts := &badgeFacts{ctx: context.Background(), profile: profile, profiles: profiles, txs: txs}

	cases := []struct {
		name string
		c    Criterion
		want bool
	}{
		{"streak reached", StreakThreshold{Days: 7}, true},
		{"streak short", StreakThreshold{Days: 30}, false},
		{"milestone reached", MilestoneCount{Source: rules.ActionMentoringSession, Count: 5}, true},
		{"milestone missing source", MilestoneCount{Source: rules.ActionGoalCompleted, Count: 1}, false},
		{"level reached", LevelThreshold{Level: 4}, true},
		{"level short", LevelThreshold{Level: 5}, false},
		{"ranking inside", TeamRanking{TopN: 3, MinXP: 500}, true},
		{"ranking below min xp", TeamRanking{TopN: 3, MinXP: 1000}, false},
		{"first n outside", FirstNUsers{N: 10}, false},
		{"not implemented", NotImplemented{Reason: "no data"}, false},
	}
	for _, tc := range cases {
		got, err := evaluateCriterion(tc.c, facts)
		if err != nil {
			t.Fatalf("%s: error %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}

	// 聚合数据只加载一次
	if txs.calls != 1 || profiles.rankCalls != 1 {
		t.Fatalf("count calls=%d rank calls=%d, want 1/1", txs.calls, profiles.rankCalls)
	}

	if _, err := evaluateCriterion(unknownCriterion{}, facts); err == nil {
		t.Fatalf("unknown criterion should fail")
	}
}

func TestBadgeEvaluateCollectsCriterionErrors(t *testing.T) {
	profile := &schema.GamificationProfile{ID: 1, TotalXP: 900, Level: 4, Streak: 3}
	profiles := &fakeProfileRepo{profile: profile, err: errors.New("db down")}
	db := testutil.OpenTestDB(t)
	svc := NewBadgeService(profiles, &fakeTxRepo{}, repository.NewBadgeRepository(db), nil, []BadgeDefinition{
		{Type: BadgeStreak3, Criterion: StreakThreshold{Days: 3}},
		{Type: BadgeTop3, Criterion: TeamRanking{TopN: 3}},
	}, Settings{})

	unlocked, err := svc.Evaluate(context.Background(), "u1", "w1")
	if err == nil {
		t.Fatalf("ranking failure should be reported")
	}
	if len(unlocked) != 1 || unlocked[0].Type != BadgeStreak3 {
		t.Fatalf("unlocked=%+v", unlocked)
	}
}

func TestBadgeEvaluateIsIdempotent(t *testing.T) {
	db := testutil.OpenTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	p := schema.NewGamificationProfile("u1", "w1")
	p.Streak = 7
	last := now
	p.LastActiveAt = &last
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	svc := NewBadgeService(
		repository.NewProfileRepository(db),
		repository.NewXpTransactionRepository(db),
		repository.NewBadgeRepository(db),
		nil,
		[]BadgeDefinition{
			{Type: BadgeStreak3, Criterion: StreakThreshold{Days: 3}},
			{Type: BadgeStreak7, Criterion: StreakThreshold{Days: 7}},
			{Type: BadgeStreak30, Criterion: StreakThreshold{Days: 30}},
		},
		Settings{Now: func() time.Time { return now }},
	)

	first, err := svc.Evaluate(ctx, "u1", "w1")
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("first run unlocked %d, want 2", len(first))
	}
	second, err := svc.Evaluate(ctx, "u1", "w1")
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("second run unlocked %+v", second)
	}

	var n int64
	db.Model(&schema.Badge{}).Where("profile_id = ? AND type = ?", p.ID, BadgeStreak7).Count(&n)
	if n != 1 {
		t.Fatalf("STREAK_7 rows=%d, want 1", n)
	}

	if _, err := svc.Evaluate(ctx, "ghost", "w1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
}
