package schema

import "time"

// XpTransaction 经验流水，只追加、不修改。
// 同时用作审计记录和周上限/冷却的查询依据。
type XpTransaction struct {
	ID            string    `gorm:"primaryKey;size:36"`
	ProfileID     uint      `gorm:"not null;index"`
	UserID        string    `gorm:"size:64;not null;index:idx_xp_tx_user_source,priority:1"`
	WorkspaceID   string    `gorm:"size:64;not null;index"`
	Amount        int64     `gorm:"not null"` // 实际生效的变化量，扣减为负
	Requested     int64     `gorm:"not null"` // 请求的变化量（扣减截断前）
	Source        string    `gorm:"size:64;not null;index:idx_xp_tx_user_source,priority:2"`
	Reason        string    `gorm:"size:500"`
	SourceType    string    `gorm:"size:32"` // goal/activity/submission/badge
	SourceID      string    `gorm:"size:64;index"`
	PreviousXP    int64     `gorm:"not null"`
	NewXP         int64     `gorm:"not null"`
	PreviousLevel int       `gorm:"not null"`
	NewLevel      int       `gorm:"not null"`
	LeveledUp     bool      `gorm:"not null;default:false"`
	Timestamp     int64     `gorm:"not null;index"` // Unix ms
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

func (XpTransaction) TableName() string {
	return "xp_transactions"
}
