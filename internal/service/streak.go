package service

import "time"

// StreakStatus 连续活跃的展示状态，读取时计算，不落库
type StreakStatus string

const (
	StreakNone   StreakStatus = "none"
	StreakActive StreakStatus = "active"
	StreakLost   StreakStatus = "lost"
)

// streakWindow 连续活跃允许的最大间隔
const streakWindow = 24 * time.Hour

// NextStreak 计算一次活跃后的连续天数与最后活跃时间：
// 同一自然日不变（lastActiveAt 也不更新），24 小时内 +1，超过 24 小时重置为 1。
func NextStreak(streak int, lastActiveAt *time.Time, now time.Time, loc *time.Location) (int, *time.Time) {
	if lastActiveAt == nil || lastActiveAt.IsZero() {
		t := now
		return 1, &t
	}
	if sameDay(*lastActiveAt, now, loc) {
		if streak < 1 {
			streak = 1
		}
		return streak, lastActiveAt
	}
	t := now
	if now.Sub(*lastActiveAt) <= streakWindow {
		return streak + 1, &t
	}
	return 1, &t
}

// StatusOf 间隔不超过 24 小时为 active，否则 lost
func StatusOf(lastActiveAt *time.Time, now time.Time) StreakStatus {
	if lastActiveAt == nil || lastActiveAt.IsZero() {
		return StreakNone
	}
	if now.Sub(*lastActiveAt) <= streakWindow {
		return StreakActive
	}
	return StreakLost
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.Local
	}
	a, b = a.In(loc), b.In(loc)
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
