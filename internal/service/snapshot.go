package service

import (
	"time"

	"github.com/yuqie6/xpforge/internal/schema"
)

// ProfileSnapshot 档案视图（含派生的等级进度与连续状态）
type ProfileSnapshot struct {
	UserID              string         `json:"user_id"`
	WorkspaceID         string         `json:"workspace_id"`
	TotalXP             int64          `json:"total_xp"`
	Level               int            `json:"level"`
	CurrentXP           int64          `json:"current_xp"`
	NextLevelXP         int64          `json:"next_level_xp"`
	ProgressToNextLevel int            `json:"progress_to_next_level"`
	Streak              int            `json:"streak"`
	StreakStatus        StreakStatus   `json:"streak_status"`
	LastActiveAt        *time.Time     `json:"last_active_at,omitempty"`
	Applied             int64          `json:"applied,omitempty"` // 本次调用实际生效的经验
	LeveledUp           bool           `json:"leveled_up,omitempty"`
	TransactionID       string         `json:"transaction_id,omitempty"`
	NewBadges           []schema.Badge `json:"new_badges,omitempty"`
}

func newSnapshot(p *schema.GamificationProfile, now time.Time) *ProfileSnapshot {
	prog := schema.ProgressForXP(p.TotalXP)
	return &ProfileSnapshot{
		UserID:              p.UserID,
		WorkspaceID:         p.WorkspaceID,
		TotalXP:             p.TotalXP,
		Level:               prog.Level,
		CurrentXP:           prog.CurrentXP,
		NextLevelXP:         prog.NextLevelXP,
		ProgressToNextLevel: prog.Progress,
		Streak:              p.Streak,
		StreakStatus:        StatusOf(p.LastActiveAt, now),
		LastActiveAt:        p.LastActiveAt,
	}
}
