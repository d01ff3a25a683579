package service

import "time"

// Settings 引擎运行参数
type Settings struct {
	Location         *time.Location   // 周/自然日对齐的时区
	Now              func() time.Time // 可注入时钟
	RoleCacheTTL     time.Duration
	RoleBatchSize    int
	RoleParallelism  int
	LedgerMaxRetries int
	BadgeBonusXP     int64
	ApprovalRating   float64
}

// DefaultSettings 默认参数
func DefaultSettings() Settings {
	return Settings{
		Location:         time.Local,
		Now:              time.Now,
		RoleCacheTTL:     24 * time.Hour,
		RoleBatchSize:    50,
		RoleParallelism:  4,
		LedgerMaxRetries: 5,
		BadgeBonusXP:     0,
		ApprovalRating:   4.0,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.Location == nil {
		s.Location = d.Location
	}
	if s.Now == nil {
		s.Now = d.Now
	}
	if s.RoleCacheTTL <= 0 {
		s.RoleCacheTTL = d.RoleCacheTTL
	}
	if s.RoleBatchSize <= 0 {
		s.RoleBatchSize = d.RoleBatchSize
	}
	if s.RoleParallelism <= 0 {
		s.RoleParallelism = d.RoleParallelism
	}
	if s.LedgerMaxRetries <= 0 {
		s.LedgerMaxRetries = d.LedgerMaxRetries
	}
	if s.BadgeBonusXP < 0 {
		s.BadgeBonusXP = 0
	}
	if s.ApprovalRating <= 0 {
		s.ApprovalRating = d.ApprovalRating
	}
	return s
}
