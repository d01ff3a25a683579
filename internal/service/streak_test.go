package service

import (
	"testing"
	"time"
)

func TestNextStreakTransitions(t *testing.T) {
	loc := time.UTC
	base := time.Date(2026, 10, 12, 8, 0, 0, 0, loc)

	streak, last := NextStreak(0, nil, base, loc)
	if streak != 1 || !last.Equal(base) {
		t.Fatalf("first activity streak=%d last=%v", streak, last)
	}

	// 同一自然日：不变，且不更新 lastActiveAt
	s2, last2 := NextStreak(streak, last, base.Add(12*time.Hour), loc)
	if s2 != 1 || !last2.Equal(base) {
		t.Fatalf("same day streak=%d last=%v", s2, last2)
	}

	// 次日且 24 小时内：+1
	next := base.Add(20 * time.Hour)
	s3, last3 := NextStreak(s2, last2, next, loc)
	if s3 != 2 || !last3.Equal(next) {
		t.Fatalf("continuation streak=%d last=%v", s3, last3)
	}

	// 超过 24 小时：重置为 1
	late := base.Add(30 * time.Hour)
	s4, last4 := NextStreak(5, &base, late, loc)
	if s4 != 1 || !last4.Equal(late) {
		t.Fatalf("reset streak=%d last=%v", s4, last4)
	}
}

func TestNextStreakUsesLocationForCalendarDay(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	// UTC 15:00 与 UTC 17:00 在 UTC+8 分属 23:00 与次日 01:00
	first := time.Date(2026, 10, 12, 15, 0, 0, 0, time.UTC)
	second := time.Date(2026, 10, 12, 17, 0, 0, 0, time.UTC)

	streak, _ := NextStreak(3, &first, second, loc)
	if streak != 4 {
		t.Fatalf("streak=%d, want 4 across local midnight", streak)
	}
	streak, _ = NextStreak(3, &first, second, time.UTC)
	if streak != 3 {
		t.Fatalf("streak=%d, want 3 on same UTC day", streak)
	}
}

func TestStatusOf(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	if got := StatusOf(nil, now); got != StreakNone {
		t.Fatalf("status=%s, want none", got)
	}
	recent := now.Add(-23 * time.Hour)
	if got := StatusOf(&recent, now); got != StreakActive {
		t.Fatalf("status=%s, want active", got)
	}
	old := now.Add(-25 * time.Hour)
	if got := StatusOf(&old, now); got != StreakLost {
		t.Fatalf("status=%s, want lost", got)
	}
}
