package schema

import "time"

// SchemaMeta 记录数据库 schema 版本，升级以版本号为门闸。
// 表内仅维护单行（ID=1）。
type SchemaMeta struct {
	ID            int       `gorm:"primaryKey"`
	SchemaVersion int       `gorm:"not null"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (SchemaMeta) TableName() string {
	return "schema_meta"
}

// AllModels 需要迁移的全部模型
func AllModels() []interface{} {
	return []interface{}{
		&SchemaMeta{},
		&GamificationProfile{},
		&XpTransaction{},
		&ActionCooldown{},
		&WeeklyCap{},
		&ActionSubmission{},
		&Badge{},
		&OrgUser{},
		&TeamMembership{},
		&ReportingRule{},
	}
}
