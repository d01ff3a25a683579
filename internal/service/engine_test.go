package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yuqie6/xpforge/internal/eventbus"
	"github.com/yuqie6/xpforge/internal/repository"
	"github.com/yuqie6/xpforge/internal/rules"
	"github.com/yuqie6/xpforge/internal/schema"
	"github.com/yuqie6/xpforge/internal/testutil"
	"gorm.io/gorm"
)

// testClock 可手动推进的时钟
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type engineFixture struct {
	db     *gorm.DB
	engine *Engine
	clock  *testClock
	hub    *eventbus.Hub
}

func newEngineFixture(t *testing.T, mutate func(*Settings)) *engineFixture {
	t.Helper()
	db := testutil.OpenTestDB(t)
	// 2026-10-12 是周一
	clock := &testClock{now: time.Date(2026, 10, 12, 8, 0, 0, 0, time.UTC)}
	settings := Settings{Location: time.UTC, Now: clock.Now}
	if mutate != nil {
		mutate(&settings)
	}
	hub := eventbus.NewHub()
	engine := NewEngine(EngineDeps{
		Catalog:      rules.Default(),
		Ledger:       repository.NewLedgerRepository(db),
		Profiles:     repository.NewProfileRepository(db),
		Transactions: repository.NewXpTransactionRepository(db),
		Guard:        repository.NewGuardRepository(db),
		Badges:       repository.NewBadgeRepository(db),
		Submissions:  repository.NewSubmissionRepository(db),
		Org:          repository.NewOrgRepository(db),
		Events:       hub,
		Settings:     settings,
	})
	return &engineFixture{db: db, engine: engine, clock: clock, hub: hub}
}

func (f *engineFixture) countTransactions(t *testing.T) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(&schema.XpTransaction{}).Count(&n).Error; err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	return n
}

func TestAwardConcurrentNoLostUpdates(t *testing.T) {
	f := newEngineFixture(t, nil)
	ctx := context.Background()
	const workers = 20
	const amount = 10

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.Award(ctx, AwardRequest{UserID: "u1", WorkspaceID: "w1", CustomAmount: amount, Reason: "bulk"})
			if err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Award error: %v", err)
	}

	snap, err := f.engine.GetProfile(ctx, "u1", "w1")
	if err != nil {
		t.Fatalf("GetProfile error: %v", err)
	}
	if snap.TotalXP != workers*amount {
		t.Fatalf("total_xp=%d, want %d", snap.TotalXP, workers*amount)
	}
	if snap.Level != schema.LevelForXP(workers*amount) {
		t.Fatalf("level=%d, want %d", snap.Level, schema.LevelForXP(workers*amount))
	}
	if n := f.countTransactions(t); n != workers {
		t.Fatalf("transactions=%d, want %d", n, workers)
	}
}

func TestAwardUnknownActionRejected(t *testing.T) {
	f := newEngineFixture(t, nil)
	ctx := context.Background()

	_, err := f.engine.Award(ctx, AwardRequest{UserID: "u1", WorkspaceID: "w1", Action: "made_up"})
	if !errors.Is(err, ErrInvalidAction) || !errors.Is(err, ErrValidation) {
		t.Fatalf("err=%v, want invalid action", err)
	}
	if _, err := f.engine.GetProfile(ctx, "u1", "w1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("profile should not be created, err=%v", err)
	}

	// 自定义经验可覆盖未知动作
	snap, err := f.engine.Award(ctx, AwardRequest{UserID: "u1", WorkspaceID: "w1", Action: "hackathon", CustomAmount: 70, Reason: "won"})
	if err != nil {
		t.Fatalf("custom award error: %v", err)
	}
	if snap.TotalXP != 70 || snap.Applied != 70 {
		t.Fatalf("snap=%+v", snap)
	}
}

func TestAwardLevelUpSnapshot(t *testing.T) {
	f := newEngineFixture(t, nil)
	ctx := context.Background()

	sub, cancel := context.WithCancel(ctx)
	defer cancel()
	events := f.hub.Subscribe(sub, 64)

	snap, err := f.engine.Award(ctx, AwardRequest{UserID: "u1", WorkspaceID: "w1", CustomAmount: 150})
	if err != nil {
		t.Fatalf("Award error: %v", err)
	}
	if !snap.LeveledUp || snap.Level != 2 {
		t.Fatalf("snap=%+v, want level 2 leveled up", snap)
	}
	// 2 级区间 [100, 400)
	if snap.CurrentXP != 50 || snap.NextLevelXP != 300 || snap.ProgressToNextLevel != 16 {
		t.Fatalf("progress=%d/%d (%d%%)", snap.CurrentXP, snap.NextLevelXP, snap.ProgressToNextLevel)
	}
	if snap.Streak != 1 || snap.StreakStatus != StreakActive {
		t.Fatalf("streak=%d status=%s", snap.Streak, snap.StreakStatus)
	}

	seen := map[string]bool{}
	for len(events) > 0 {
		evt := <-events
		seen[evt.Type] = true
	}
	if !seen[eventbus.TypeXPAwarded] || !seen[eventbus.TypeLevelUp] {
		t.Fatalf("events=%v, want xp_awarded and level_up", seen)
	}
}

func TestAwardCooldownDenied(t *testing.T) {
	f := newEngineFixture(t, nil)
	ctx := context.Background()

	snap, err := f.engine.Award(ctx, AwardRequest{UserID: "u1", WorkspaceID: "w1", Action: rules.ActionPeerSupport})
	if err != nil {
		t.Fatalf("first award error: %v", err)
	}
	// IC 影响力动作 ×1.3
	if snap.TotalXP != 39 {
		t.Fatalf("total_xp=%d, want 39", snap.TotalXP)
	}

	f.clock.Advance(30 * time.Minute)
	_, err = f.engine.Award(ctx, AwardRequest{UserID: "u1", WorkspaceID: "w1", Action: rules.ActionPeerSupport})
	if !errors.Is(err, ErrOnCooldown) {
		t.Fatalf("err=%v, want ErrOnCooldown", err)
	}
	var rl *RateLimitError
	if !errors.As(err, &rl) || len(rl.Reasons) != 1 || rl.Reasons[0].Remaining <= 0 || rl.Reasons[0].RemainingMinutes != 90 {
		t.Fatalf("rate limit detail=%+v", rl)
	}

	elig, err := f.engine.CanSubmit(ctx, "u1", rules.ActionPeerSupport)
	if err != nil {
		t.Fatalf("CanSubmit error: %v", err)
	}
	if elig.Allowed || len(elig.Reasons) != 1 || elig.Reasons[0].Kind != DenialCooldown {
		t.Fatalf("eligibility=%+v", elig)
	}

	got, _ := f.engine.GetProfile(ctx, "u1", "w1")
	if got.TotalXP != 39 {
		t.Fatalf("denied award mutated profile: %d", got.TotalXP)
	}
	if n := f.countTransactions(t); n != 1 {
		t.Fatalf("transactions=%d, want 1", n)
	}

	f.clock.Advance(90 * time.Minute)
	if _, err := f.engine.Award(ctx, AwardRequest{UserID: "u1", WorkspaceID: "w1", Action: rules.ActionPeerSupport}); err != nil {
		t.Fatalf("award after cooldown error: %v", err)
	}
}

func TestAwardWeeklyCapRollsOver(t *testing.T) {
	f := newEngineFixture(t, nil)
	ctx := context.Background()
	rule, _ := rules.Default().Lookup(rules.ActionOneOnOne)

	for i := 0; i < rule.WeeklyCap; i++ {
		if _, err := f.engine.Award(ctx, AwardRequest{UserID: "u1", WorkspaceID: "w1", Action: rule.Action}); err != nil {
			t.Fatalf("award %d error: %v", i+1, err)
		}
		f.clock.Advance(time.Hour)
	}

	_, err := f.engine.Award(ctx, AwardRequest{UserID: "u1", WorkspaceID: "w1", Action: rule.Action})
	if !errors.Is(err, ErrCapExceeded) {
		t.Fatalf("err=%v, want ErrCapExceeded", err)
	}
	var rl *RateLimitError
	if !errors.As(err, &rl) || rl.Reasons[0].Max != rule.WeeklyCap {
		t.Fatalf("rate limit detail=%+v", rl)
	}

	// 跨过周一 00:00
	f.clock.Advance(7 * 24 * time.Hour)
	if _, err := f.engine.Award(ctx, AwardRequest{UserID: "u1", WorkspaceID: "w1", Action: rule.Action}); err != nil {
		t.Fatalf("award next week error: %v", err)
	}
}

func TestAwardStreakTransitions(t *testing.T) {
	f := newEngineFixture(t, nil)
	ctx := context.Background()
	award := func() *ProfileSnapshot {
		t.Helper()
		snap, err := f.engine.Award(ctx, AwardRequest{UserID: "u1", WorkspaceID: "w1", Action: rules.ActionGoalCompleted})
		if err != nil {
			t.Fatalf("Award error: %v", err)
		}
		return snap
	}

	start := f.clock.Now()
	if s := award(); s.Streak != 1 {
		t.Fatalf("streak=%d, want 1", s.Streak)
	}

	f.clock.Advance(12 * time.Hour) // 同一天 20:00
	s := award()
	if s.Streak != 1 || !s.LastActiveAt.Equal(start) {
		t.Fatalf("same day streak=%d last=%v", s.Streak, s.LastActiveAt)
	}

	f.clock.Advance(8 * time.Hour) // 次日 04:00，距上次活跃 20 小时
	if s := award(); s.Streak != 2 {
		t.Fatalf("next day streak=%d, want 2", s.Streak)
	}

	f.clock.Advance(30 * time.Hour)
	if s := award(); s.Streak != 1 {
		t.Fatalf("after gap streak=%d, want 1", s.Streak)
	}
}

func TestAwardManagerMultiplierAfterInvalidate(t *testing.T) {
	f := newEngineFixture(t, nil)
	ctx := context.Background()

	role, err := f.engine.DetectRole(ctx, "lead")
	if err != nil || role != schema.RoleIC {
		t.Fatalf("role=%s err=%v, want IC", role, err)
	}

	if err := f.db.Create(&schema.ReportingRule{ManagerID: "lead", SubordinateID: testutil.StrPtr("dev")}).Error; err != nil {
		t.Fatalf("seed rule: %v", err)
	}
	// 缓存未失效前仍为 IC
	if role, _ := f.engine.DetectRole(ctx, "lead"); role != schema.RoleIC {
		t.Fatalf("cached role=%s, want IC", role)
	}
	if err := f.engine.InvalidateRole(ctx, "lead"); err != nil {
		t.Fatalf("InvalidateRole error: %v", err)
	}
	if role, _ := f.engine.DetectRole(ctx, "lead"); role != schema.RoleManager {
		t.Fatalf("role=%s, want MANAGER", role)
	}

	snap, err := f.engine.Award(ctx, AwardRequest{UserID: "lead", WorkspaceID: "w1", Action: rules.ActionProcessImprovement})
	if err != nil {
		t.Fatalf("Award error: %v", err)
	}
	if snap.Applied != 200 {
		t.Fatalf("applied=%d, want 200", snap.Applied)
	}

	// 管理者做 IC 动作不加成
	snap, err = f.engine.Award(ctx, AwardRequest{UserID: "lead", WorkspaceID: "w1", Action: rules.ActionPeerSupport})
	if err != nil {
		t.Fatalf("Award error: %v", err)
	}
	if snap.Applied != 30 {
		t.Fatalf("applied=%d, want 30", snap.Applied)
	}
}

func TestSubtractXPClampsAtZero(t *testing.T) {
	f := newEngineFixture(t, nil)
	ctx := context.Background()

	if _, err := f.engine.SubtractXP(ctx, "u1", "w1", 10, "oops"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}

	if _, err := f.engine.Award(ctx, AwardRequest{UserID: "u1", WorkspaceID: "w1", CustomAmount: 150}); err != nil {
		t.Fatalf("Award error: %v", err)
	}
	snap, err := f.engine.SubtractXP(ctx, "u1", "w1", 500, "reverted")
	if err != nil {
		t.Fatalf("SubtractXP error: %v", err)
	}
	if snap.TotalXP != 0 || snap.Level != 1 || snap.Applied != -150 {
		t.Fatalf("snap=%+v", snap)
	}

	history, err := f.engine.History(ctx, "u1", "w1", 10)
	if err != nil {
		t.Fatalf("History error: %v", err)
	}
	var reversal *schema.XpTransaction
	for i := range history {
		if history[i].Source == SourceReversal {
			reversal = &history[i]
		}
	}
	if reversal == nil || reversal.Amount != -150 || reversal.Requested != -500 || reversal.NewXP != 0 {
		t.Fatalf("reversal=%+v", reversal)
	}

	if _, err := f.engine.SubtractXP(ctx, "u1", "w1", 0, ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("err=%v, want ErrValidation", err)
	}
}

func TestAwardUnlocksBadgesWithBonus(t *testing.T) {
	f := newEngineFixture(t, func(s *Settings) { s.BadgeBonusXP = 25 })
	ctx := context.Background()

	snap, err := f.engine.Award(ctx, AwardRequest{UserID: "u1", WorkspaceID: "w1", Action: rules.ActionGoalCompleted})
	if err != nil {
		t.Fatalf("Award error: %v", err)
	}
	types := map[string]bool{}
	for _, b := range snap.NewBadges {
		types[b.Type] = true
	}
	if len(types) != 2 || !types[BadgeFirstGoal] || !types[BadgeEarlyAdopter] {
		t.Fatalf("new badges=%v", types)
	}
	// 150 + 两个成就各 25
	if snap.TotalXP != 200 || snap.Applied != 150 {
		t.Fatalf("total=%d applied=%d", snap.TotalXP, snap.Applied)
	}
	if n := f.countTransactions(t); n != 3 {
		t.Fatalf("transactions=%d, want 3", n)
	}

	// 再次入账不会重复解锁
	f.clock.Advance(time.Hour)
	snap, err = f.engine.Award(ctx, AwardRequest{UserID: "u1", WorkspaceID: "w1", CustomAmount: 10})
	if err != nil {
		t.Fatalf("Award error: %v", err)
	}
	if len(snap.NewBadges) != 0 {
		t.Fatalf("unexpected badges %+v", snap.NewBadges)
	}

	views, err := f.engine.GetBadges(ctx, "u1", "w1")
	if err != nil {
		t.Fatalf("GetBadges error: %v", err)
	}
	earned := 0
	for _, v := range views {
		if v.Earned {
			earned++
		}
	}
	if len(views) != len(DefaultBadges()) || earned != 2 {
		t.Fatalf("views=%d earned=%d", len(views), earned)
	}
}

func TestGetBadgesWithoutProfile(t *testing.T) {
	f := newEngineFixture(t, nil)
	views, err := f.engine.GetBadges(context.Background(), "nobody", "w1")
	if err != nil {
		t.Fatalf("GetBadges error: %v", err)
	}
	for _, v := range views {
		if v.Earned {
			t.Fatalf("badge %s should not be earned", v.Type)
		}
	}
}

func TestLeaderboardRanksTiesAndRoles(t *testing.T) {
	f := newEngineFixture(t, nil)
	ctx := context.Background()
	if err := f.db.Create(&schema.OrgUser{ID: "boss", IsAdmin: true}).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	for user, xp := range map[string]int64{"boss": 300, "a": 200, "b": 200, "c": 50} {
		if _, err := f.engine.Award(ctx, AwardRequest{UserID: user, WorkspaceID: "w1", CustomAmount: xp}); err != nil {
			t.Fatalf("Award %s error: %v", user, err)
		}
	}

	board, err := f.engine.Leaderboard(ctx, "w1", 10)
	if err != nil {
		t.Fatalf("Leaderboard error: %v", err)
	}
	if len(board) != 4 {
		t.Fatalf("entries=%d, want 4", len(board))
	}
	wantRanks := []int{1, 2, 2, 4}
	for i, e := range board {
		if e.Rank != wantRanks[i] {
			t.Fatalf("board=%+v", board)
		}
	}
	if board[0].UserID != "boss" || board[0].Role != schema.RoleManager || board[3].Role != schema.RoleIC {
		t.Fatalf("board=%+v", board)
	}

	if n, err := f.engine.DeactivateWorkspace(ctx, "w1"); err != nil || n != 4 {
		t.Fatalf("deactivated=%d err=%v", n, err)
	}
	board, _ = f.engine.Leaderboard(ctx, "w1", 10)
	if len(board) != 0 {
		t.Fatalf("inactive profiles should be hidden, got %d", len(board))
	}
}
