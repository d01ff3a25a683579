package schema

import "time"

// GamificationProfile 每个 (user, workspace) 一条的经验档案
// 只有账本写入方可以修改 TotalXP / Level / Streak
type GamificationProfile struct {
	ID           uint       `gorm:"primaryKey;autoIncrement"`
	UserID       string     `gorm:"size:64;not null;uniqueIndex:uniq_profile_user_workspace,priority:1"`
	WorkspaceID  string     `gorm:"size:64;not null;index;uniqueIndex:uniq_profile_user_workspace,priority:2"`
	TotalXP      int64      `gorm:"not null;default:0;index"`
	Level        int        `gorm:"not null;default:1"`
	Streak       int        `gorm:"not null;default:0"`
	LastActiveAt *time.Time `gorm:"index"`
	Version      int64      `gorm:"not null;default:0"` // 乐观锁版本号
	Active       bool       `gorm:"not null;default:true;index"`
	CreatedAt    time.Time  `gorm:"autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (GamificationProfile) TableName() string {
	return "gamification_profiles"
}

// NewGamificationProfile 创建空档案
func NewGamificationProfile(userID, workspaceID string) *GamificationProfile {
	return &GamificationProfile{
		UserID:      userID,
		WorkspaceID: workspaceID,
		TotalXP:     0,
		Level:       1,
		Streak:      0,
		Active:      true,
	}
}

// ApplyDelta 变更经验并重算等级，经验不会低于 0。
// 返回实际生效的变化量（扣减被截断时小于请求值）。
func (p *GamificationProfile) ApplyDelta(delta int64) int64 {
	next := p.TotalXP + delta
	if next < 0 {
		next = 0
	}
	applied := next - p.TotalXP
	p.TotalXP = next
	p.Level = LevelForXP(next)
	return applied
}

// LevelStale 存储的等级是否与经验不一致
func (p *GamificationProfile) LevelStale() bool {
	return p.Level != LevelForXP(p.TotalXP)
}
