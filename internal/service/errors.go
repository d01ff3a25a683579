package service

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrValidation 参数/动作/评分等校验失败，未修改任何状态
	ErrValidation = errors.New("validation failed")
	// ErrInvalidAction 未知动作且未给出自定义经验
	ErrInvalidAction = errors.New("invalid action")
	// ErrOnCooldown 动作仍在冷却中
	ErrOnCooldown = errors.New("action on cooldown")
	// ErrCapExceeded 本周次数已达上限
	ErrCapExceeded = errors.New("weekly cap exceeded")
	// ErrNotFound 档案或提交不存在
	ErrNotFound = errors.New("not found")
	// ErrConcurrencyConflict 档案乐观重试耗尽
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)

// ValidationError 校验错误
type ValidationError struct {
	Field  string
	Reason string
	Err    error // 可选的具体哨兵错误，如 ErrInvalidAction
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "校验失败: " + e.Reason
	}
	return fmt.Sprintf("校验失败 [%s]: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalidAction(action string) error {
	return &ValidationError{Field: "action", Reason: fmt.Sprintf("未知动作 %q", action), Err: ErrInvalidAction}
}

func invalidField(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// DenialKind 拒绝原因类别
type DenialKind string

const (
	DenialCooldown  DenialKind = "cooldown"
	DenialWeeklyCap DenialKind = "weekly_cap"
)

// DenialReason 单条拒绝原因，携带供界面解释的结构化信息
type DenialReason struct {
	Kind             DenialKind    `json:"kind"`
	Action           string        `json:"action"`
	Message          string        `json:"message"`
	Remaining        time.Duration `json:"remaining,omitempty"`
	RemainingMinutes int           `json:"remaining_minutes,omitempty"`
	Count            int           `json:"count,omitempty"`
	Max              int           `json:"max,omitempty"`
}

func cooldownReason(action string, remaining time.Duration) DenialReason {
	minutes := int((remaining + time.Minute - 1) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return DenialReason{
		Kind:             DenialCooldown,
		Action:           action,
		Message:          fmt.Sprintf("动作冷却中，还需 %d 分钟", minutes),
		Remaining:        remaining,
		RemainingMinutes: minutes,
	}
}

func weeklyCapReason(action string, count, max int) DenialReason {
	return DenialReason{
		Kind:    DenialWeeklyCap,
		Action:  action,
		Message: fmt.Sprintf("本周已达上限 %d/%d", count, max),
		Count:   count,
		Max:     max,
	}
}

// RateLimitError 冷却或周上限拒绝，可同时包含多条原因
type RateLimitError struct {
	Action  string
	Reasons []DenialReason
}

func (e *RateLimitError) Error() string {
	msgs := make([]string, 0, len(e.Reasons))
	for _, r := range e.Reasons {
		msgs = append(msgs, r.Message)
	}
	return fmt.Sprintf("动作 %s 被限制: %s", e.Action, strings.Join(msgs, "; "))
}

func (e *RateLimitError) Is(target error) bool {
	switch target {
	case ErrOnCooldown:
		return e.has(DenialCooldown)
	case ErrCapExceeded:
		return e.has(DenialWeeklyCap)
	}
	return false
}

func (e *RateLimitError) has(kind DenialKind) bool {
	for _, r := range e.Reasons {
		if r.Kind == kind {
			return true
		}
	}
	return false
}
