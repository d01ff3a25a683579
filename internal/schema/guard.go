package schema

import "time"

// ActionCooldown 某用户某动作的冷却截止时间
type ActionCooldown struct {
	UserID    string `gorm:"primaryKey;size:64"`
	Action    string `gorm:"primaryKey;size:64"`
	ExpiresAt int64  `gorm:"not null;index"` // Unix ms
}

// Remaining 距冷却结束的剩余时间
func (c ActionCooldown) Remaining(now time.Time) time.Duration {
	d := time.UnixMilli(c.ExpiresAt).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

func (ActionCooldown) TableName() string {
	return "action_cooldowns"
}

// WeeklyCap 每 ISO 周每动作一行，WeekStart 变化即视为重置
type WeeklyCap struct {
	UserID    string `gorm:"primaryKey;size:64"`
	Action    string `gorm:"primaryKey;size:64"`
	WeekStart string `gorm:"primaryKey;size:10"` // YYYY-MM-DD（周一）
	Count     int    `gorm:"not null;default:0"`
	MaxCount  int    `gorm:"not null"`
}

func (WeeklyCap) TableName() string {
	return "weekly_caps"
}

// WeekStart 返回 t 所在 ISO 周的周一 00:00（按 loc 对齐）
func WeekStart(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	offset := (int(t.Weekday()) + 6) % 7 // 周一为 0
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return day.AddDate(0, 0, -offset)
}

// WeekKey WeekStart 的存储形式
func WeekKey(t time.Time, loc *time.Location) string {
	return WeekStart(t, loc).Format("2006-01-02")
}
