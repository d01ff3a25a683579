package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yuqie6/xpforge/internal/eventbus"
	"github.com/yuqie6/xpforge/internal/rules"
	"github.com/yuqie6/xpforge/internal/schema"
)

// Awarder 审核通过后的入账入口
type Awarder interface {
	Award(ctx context.Context, req AwardRequest) (*ProfileSnapshot, error)
}

// SubmissionInput 手动提交内容
type SubmissionInput struct {
	Evidence    string
	Metadata    map[string]any
	Description string
}

// SubmissionResult 提交结果；自动通过时 Profile 为入账后的档案
type SubmissionResult struct {
	Submission   *schema.ActionSubmission `json:"submission"`
	AutoApproved bool                     `json:"auto_approved"`
	Profile      *ProfileSnapshot         `json:"profile,omitempty"`
	Gaming       *GamingReport            `json:"gaming,omitempty"`
}

// ValidationInput 审核意见
type ValidationInput struct {
	Rating   float64
	Status   schema.SubmissionStatus
	Feedback string
}

// ValidationResult 审核结果；通过时 Profile 为入账后的档案
type ValidationResult struct {
	Submission *schema.ActionSubmission `json:"submission"`
	Profile    *ProfileSnapshot         `json:"profile,omitempty"`
}

// SubmissionService 需要证据或审核的手动动作流程
type SubmissionService struct {
	catalog rules.Catalog
	repo    SubmissionRepository
	guard   *AntiGamingGuard
	awarder Awarder
	events  eventbus.Publisher
	now     func() time.Time
}

func NewSubmissionService(catalog rules.Catalog, repo SubmissionRepository, guard *AntiGamingGuard, awarder Awarder, events eventbus.Publisher, settings Settings) *SubmissionService {
	s := settings.withDefaults()
	return &SubmissionService{
		catalog: catalog,
		repo:    repo,
		guard:   guard,
		awarder: awarder,
		events:  events,
		now:     s.Now,
	}
}

// SubmitManualAction 创建提交。无需审核的动作直接入账并记为 APPROVED，否则进入 PENDING。
func (s *SubmissionService) SubmitManualAction(ctx context.Context, userID, workspaceID, action string, in SubmissionInput) (*SubmissionResult, error) {
	if userID == "" {
		return nil, invalidField("user_id", "不能为空")
	}
	if workspaceID == "" {
		return nil, invalidField("workspace_id", "不能为空")
	}
	rule, ok := s.catalog.Lookup(action)
	if !ok || rule.BaseXP <= 0 {
		return nil, invalidAction(action)
	}
	evidence := strings.TrimSpace(in.Evidence)
	if rule.RequiresEvidence && evidence == "" {
		return nil, invalidField("evidence", "该动作需要提供证据")
	}

	elig, err := s.guard.CanSubmit(ctx, userID, rule.Action)
	if err != nil {
		return nil, err
	}
	if !elig.Allowed {
		return nil, &RateLimitError{Action: rule.Action, Reasons: elig.Reasons}
	}

	// 刷分检测只做标记，失败不阻断提交
	gaming, err := s.guard.DetectGaming(ctx, userID)
	if err != nil {
		slog.Warn("刷分检测失败", "user", userID, "error", err)
		gaming = &GamingReport{}
	}
	if gaming.IsGaming {
		slog.Warn("提交疑似刷分，标记复核", "user", userID, "action", rule.Action, "confidence", gaming.Confidence, "signals", gaming.Signals)
	}

	now := s.now()
	sub := &schema.ActionSubmission{
		ID:               uuid.NewString(),
		UserID:           userID,
		WorkspaceID:      workspaceID,
		Action:           rule.Action,
		Points:           rule.BaseXP,
		Description:      in.Description,
		Evidence:         evidence,
		Metadata:         schema.JSONMap(in.Metadata),
		Status:           schema.SubmissionPending,
		FlaggedForReview: gaming.IsGaming,
		GamingConfidence: gaming.Confidence,
		SubmittedAt:      now.UnixMilli(),
	}
	result := &SubmissionResult{Submission: sub, Gaming: gaming}

	if !rule.RequiresValidation {
		// 先入账再落提交记录：入账被守卫拒绝时不会留下已通过的提交
		snap, err := s.awarder.Award(ctx, AwardRequest{
			UserID:      userID,
			WorkspaceID: workspaceID,
			Action:      rule.Action,
			Reason:      in.Description,
			SourceType:  SourceTypeSubmission,
			SourceID:    sub.ID,
		})
		if err != nil {
			return nil, err
		}
		resolved := now
		sub.Status = schema.SubmissionApproved
		sub.ResolvedAt = &resolved
		result.AutoApproved = true
		result.Profile = snap
	}

	if err := s.repo.Create(ctx, sub); err != nil {
		if result.AutoApproved {
			slog.Error("经验已入账但提交记录写入失败", "user", userID, "submission", sub.ID, "error", err)
		}
		return nil, err
	}

	slog.Info("收到手动提交", "user", userID, "workspace", workspaceID, "action", rule.Action, "status", sub.Status)
	return result, nil
}

// ValidateSubmission 审核提交。评分必须在 [1,5]，通过需要达到通过线，
// 通过后入账；入账失败时回退审核状态。
func (s *SubmissionService) ValidateSubmission(ctx context.Context, submissionID, validatorID string, in ValidationInput) (*ValidationResult, error) {
	if validatorID == "" {
		return nil, invalidField("validator_id", "不能为空")
	}
	sub, err := s.repo.GetByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, fmt.Errorf("提交 %s: %w", submissionID, ErrNotFound)
	}
	if !sub.Status.Open() {
		return nil, invalidField("status", fmt.Sprintf("提交已处理（%s）", sub.Status))
	}
	if sub.UserID == validatorID {
		return nil, invalidField("validator_id", "不能审核自己的提交")
	}
	if err := ValidateRating(in.Rating); err != nil {
		return nil, err
	}
	switch in.Status {
	case schema.SubmissionApproved:
		if !s.guard.IsApprovedQuality(in.Rating) {
			return nil, invalidField("rating", fmt.Sprintf("评分 %.1f 未达到通过线", in.Rating))
		}
	case schema.SubmissionRejected, schema.SubmissionRequiresEvidence:
	default:
		return nil, invalidField("status", fmt.Sprintf("不支持的审核结果 %q", in.Status))
	}

	prev := sub.Status
	rating := in.Rating
	updates := map[string]interface{}{
		"status":       in.Status,
		"rating":       rating,
		"validator_id": validatorID,
		"feedback":     in.Feedback,
	}
	var resolvedAt *time.Time
	if in.Status != schema.SubmissionRequiresEvidence {
		t := s.now()
		resolvedAt = &t
		updates["resolved_at"] = t
	}
	ok, err := s.repo.Transition(ctx, sub.ID, []schema.SubmissionStatus{prev}, updates)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, invalidField("status", "提交已被其他审核人处理")
	}

	sub.Status = in.Status
	sub.Rating = &rating
	sub.ValidatorID = validatorID
	sub.Feedback = in.Feedback
	sub.ResolvedAt = resolvedAt
	result := &ValidationResult{Submission: sub}

	if in.Status == schema.SubmissionApproved {
		snap, err := s.awarder.Award(ctx, AwardRequest{
			UserID:      sub.UserID,
			WorkspaceID: sub.WorkspaceID,
			Action:      sub.Action,
			Reason:      sub.Description,
			SourceType:  SourceTypeSubmission,
			SourceID:    sub.ID,
		})
		if err != nil {
			s.revert(ctx, sub.ID, prev)
			return nil, err
		}
		result.Profile = snap
	}

	slog.Info("提交已审核", "submission", sub.ID, "validator", validatorID, "status", in.Status, "rating", in.Rating)
	s.publish(sub)
	return result, nil
}

// revert 入账失败时把提交恢复为审核前状态
func (s *SubmissionService) revert(ctx context.Context, id string, prev schema.SubmissionStatus) {
	ok, err := s.repo.Transition(ctx, id, []schema.SubmissionStatus{schema.SubmissionApproved}, map[string]interface{}{
		"status":       prev,
		"rating":       nil,
		"validator_id": "",
		"feedback":     "",
		"resolved_at":  nil,
	})
	if err != nil || !ok {
		slog.Error("回退提交状态失败", "submission", id, "ok", ok, "error", err)
	}
}

// ProvideEvidence 提交人补充证据，REQUIRES_EVIDENCE 回到 PENDING
func (s *SubmissionService) ProvideEvidence(ctx context.Context, submissionID, userID, evidence string) (*schema.ActionSubmission, error) {
	evidence = strings.TrimSpace(evidence)
	if evidence == "" {
		return nil, invalidField("evidence", "不能为空")
	}
	sub, err := s.repo.GetByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, fmt.Errorf("提交 %s: %w", submissionID, ErrNotFound)
	}
	if sub.UserID != userID {
		return nil, invalidField("user_id", "只能为自己的提交补充证据")
	}
	if sub.Status != schema.SubmissionRequiresEvidence {
		return nil, invalidField("status", fmt.Sprintf("当前状态 %s 不需要补充证据", sub.Status))
	}
	ok, err := s.repo.Transition(ctx, sub.ID, []schema.SubmissionStatus{schema.SubmissionRequiresEvidence}, map[string]interface{}{
		"status":   schema.SubmissionPending,
		"evidence": evidence,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, invalidField("status", "提交状态已变化")
	}
	sub.Status = schema.SubmissionPending
	sub.Evidence = evidence
	return sub, nil
}

// ListPending 工作区待审核队列
func (s *SubmissionService) ListPending(ctx context.Context, workspaceID string, limit int) ([]schema.ActionSubmission, error) {
	if workspaceID == "" {
		return nil, invalidField("workspace_id", "不能为空")
	}
	return s.repo.ListPending(ctx, workspaceID, limit)
}

func (s *SubmissionService) publish(sub *schema.ActionSubmission) {
	if s.events == nil {
		return
	}
	s.events.Publish(eventbus.Event{
		Type:      eventbus.TypeSubmission,
		UserID:    sub.UserID,
		Workspace: sub.WorkspaceID,
		Data: map[string]any{
			"submission_id": sub.ID,
			"action":        sub.Action,
			"status":        string(sub.Status),
			"validator_id":  sub.ValidatorID,
		},
	})
}
