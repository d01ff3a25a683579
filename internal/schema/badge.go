package schema

import "time"

// Badge 已解锁的成就，(profile, type) 唯一，永不撤销
type Badge struct {
	ID          string    `gorm:"primaryKey;size:36"`
	ProfileID   uint      `gorm:"not null;uniqueIndex:uniq_badge_profile_type,priority:1"`
	Type        string    `gorm:"size:64;not null;uniqueIndex:uniq_badge_profile_type,priority:2"`
	Category    string    `gorm:"size:32;index"`
	Name        string    `gorm:"size:100"`
	Description string    `gorm:"size:500"`
	EarnedAt    time.Time `gorm:"not null"`
}

func (Badge) TableName() string {
	return "badges"
}
