package schema

// 以下组织结构表由外部团队/工作区服务维护，本系统只读，用于角色判定。

// OrgUser 用户（仅关心管理员标记）
type OrgUser struct {
	ID      string `gorm:"primaryKey;size:64"`
	Email   string `gorm:"size:255"`
	IsAdmin bool   `gorm:"not null;default:false"`
}

func (OrgUser) TableName() string {
	return "org_users"
}

// TeamMembership 团队成员关系
type TeamMembership struct {
	TeamID string `gorm:"primaryKey;size:64"`
	UserID string `gorm:"primaryKey;size:64;index"`
	Role   string `gorm:"size:32;not null"` // member / manager / ...
}

func (TeamMembership) TableName() string {
	return "team_memberships"
}

// TeamRoleManager 团队中的管理者角色
const TeamRoleManager = "manager"

// ReportingRule 汇报关系规则：SubordinateID 非空为直属下级规则，TeamID 非空为团队级规则
type ReportingRule struct {
	ID            uint    `gorm:"primaryKey;autoIncrement"`
	ManagerID     string  `gorm:"size:64;not null;index"`
	SubordinateID *string `gorm:"size:64"`
	TeamID        *string `gorm:"size:64"`
}

func (ReportingRule) TableName() string {
	return "reporting_rules"
}
