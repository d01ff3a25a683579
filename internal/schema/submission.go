package schema

import "time"

// SubmissionStatus 手动提交的审核状态
type SubmissionStatus string

const (
	SubmissionPending          SubmissionStatus = "PENDING"
	SubmissionApproved         SubmissionStatus = "APPROVED"
	SubmissionRejected         SubmissionStatus = "REJECTED"
	SubmissionRequiresEvidence SubmissionStatus = "REQUIRES_EVIDENCE"
)

// Open 是否仍可被审核
func (s SubmissionStatus) Open() bool {
	return s == SubmissionPending || s == SubmissionRequiresEvidence
}

// ActionSubmission 需要证据/审核的手动动作
type ActionSubmission struct {
	ID               string  `gorm:"primaryKey;size:36"`
	UserID           string  `gorm:"size:64;not null;index:idx_submission_user_submitted,priority:1"`
	WorkspaceID      string  `gorm:"size:64;not null;index"`
	Action           string  `gorm:"size:64;not null"`
	Points           int64   `gorm:"not null;default:0"` // 提交时的基础经验
	Description      string  `gorm:"type:text"`
	Evidence         string  `gorm:"type:text"`
	Metadata         JSONMap `gorm:"type:text"`
	Rating           *float64
	Status           SubmissionStatus `gorm:"size:32;not null;index"`
	ValidatorID      string           `gorm:"size:64"`
	Feedback         string           `gorm:"type:text"`
	FlaggedForReview bool             `gorm:"not null;default:false"`
	GamingConfidence float64          `gorm:"not null;default:0"`
	SubmittedAt      int64            `gorm:"not null;index:idx_submission_user_submitted,priority:2"` // Unix ms
	ResolvedAt       *time.Time
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

func (ActionSubmission) TableName() string {
	return "action_submissions"
}
