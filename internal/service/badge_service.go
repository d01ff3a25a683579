package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/yuqie6/xpforge/internal/eventbus"
	"github.com/yuqie6/xpforge/internal/schema"
)

// BadgeView 成就视图，已解锁与未解锁都会返回
type BadgeView struct {
	Type        string        `json:"type"`
	Category    BadgeCategory `json:"category"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Earned      bool          `json:"earned"`
	EarnedAt    *time.Time    `json:"earned_at,omitempty"`
}

// BadgeService 成就评估，只读账本，只写徽章表
type BadgeService struct {
	profiles ProfileRepository
	txs      XpTransactionRepository
	badges   BadgeRepository
	events   eventbus.Publisher
	defs     []BadgeDefinition
	now      func() time.Time
}

// NewBadgeService defs 为空时使用 DefaultBadges
func NewBadgeService(profiles ProfileRepository, txs XpTransactionRepository, badges BadgeRepository, events eventbus.Publisher, defs []BadgeDefinition, settings Settings) *BadgeService {
	s := settings.withDefaults()
	if len(defs) == 0 {
		defs = DefaultBadges()
	}
	return &BadgeService{
		profiles: profiles,
		txs:      txs,
		badges:   badges,
		events:   events,
		defs:     defs,
		now:      s.Now,
	}
}

// Definitions 当前生效的成就定义
func (s *BadgeService) Definitions() []BadgeDefinition {
	out := make([]BadgeDefinition, len(s.defs))
	copy(out, s.defs)
	return out
}

// Evaluate 评估未解锁的成就并写入新解锁的徽章，重复执行是幂等的。
// 单个条件出错不影响其他条件，错误汇总返回。
func (s *BadgeService) Evaluate(ctx context.Context, userID, workspaceID string) ([]schema.Badge, error) {
	profile, err := s.profiles.Get(ctx, userID, workspaceID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, fmt.Errorf("档案 %s/%s: %w", userID, workspaceID, ErrNotFound)
	}

	earned, err := s.earnedSet(ctx, profile.ID)
	if err != nil {
		return nil, err
	}

	facts := &badgeFacts{ctx: ctx, profile: profile, profiles: s.profiles, txs: s.txs}
	var (
		unlocked []schema.Badge
		errs     []error
	)
	for _, def := range s.defs {
		if _, ok := earned[def.Type]; ok {
			continue
		}
		ok, err := evaluateCriterion(def.Criterion, facts)
		if err != nil {
			errs = append(errs, fmt.Errorf("成就 %s: %w", def.Type, err))
			continue
		}
		if !ok {
			continue
		}

		b := schema.Badge{
			ID:          uuid.NewString(),
			ProfileID:   profile.ID,
			Type:        def.Type,
			Category:    string(def.Category),
			Name:        def.Name,
			Description: def.Description,
			EarnedAt:    s.now(),
		}
		created, err := s.badges.CreateIfAbsent(ctx, &b)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !created {
			// 并发评估已写入
			continue
		}
		earned[def.Type] = struct{}{}
		unlocked = append(unlocked, b)

		slog.Info("解锁成就", "user", userID, "workspace", workspaceID, "badge", def.Type)
		if s.events != nil {
			s.events.Publish(eventbus.Event{
				Type:      eventbus.TypeBadgeUnlocked,
				UserID:    userID,
				Workspace: workspaceID,
				Data:      map[string]any{"badge": def.Type, "name": def.Name, "category": string(def.Category)},
			})
		}
	}
	return unlocked, errors.Join(errs...)
}

// GetBadges 全部成就及解锁状态；档案不存在时全部为未解锁
func (s *BadgeService) GetBadges(ctx context.Context, userID, workspaceID string) ([]BadgeView, error) {
	profile, err := s.profiles.Get(ctx, userID, workspaceID)
	if err != nil {
		return nil, err
	}
	byType := map[string]schema.Badge{}
	if profile != nil {
		list, err := s.badges.ListByProfile(ctx, profile.ID)
		if err != nil {
			return nil, err
		}
		for _, b := range list {
			byType[b.Type] = b
		}
	}

	out := make([]BadgeView, 0, len(s.defs))
	for _, def := range s.defs {
		v := BadgeView{
			Type:        def.Type,
			Category:    def.Category,
			Name:        def.Name,
			Description: def.Description,
		}
		if b, ok := byType[def.Type]; ok {
			at := b.EarnedAt
			v.Earned = true
			v.EarnedAt = &at
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *BadgeService) earnedSet(ctx context.Context, profileID uint) (map[string]struct{}, error) {
	list, err := s.badges.ListByProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(list))
	for _, b := range list {
		set[b.Type] = struct{}{}
	}
	return set, nil
}
