package service

import (
	"context"
	"fmt"

	"github.com/yuqie6/xpforge/internal/schema"
)

// Criterion 成就解锁条件。封闭集合，只能由本包实现，
// 新增条件时必须同步扩展 evaluateCriterion 的分支。
type Criterion interface {
	criterion()
}

// StreakThreshold 连续活跃天数达到 Days
type StreakThreshold struct {
	Days int
}

// MilestoneCount 某来源的正向奖励次数达到 Count
type MilestoneCount struct {
	Source string
	Count  int64
}

// LevelThreshold 等级达到 Level
type LevelThreshold struct {
	Level int
}

// TeamRanking 工作区排名进入前 TopN，且经验不少于 MinXP
type TeamRanking struct {
	TopN  int
	MinXP int64
}

// FirstNUsers 工作区内前 N 个建立档案的用户
type FirstNUsers struct {
	N int
}

// NotImplemented 数据源尚未接入的条件，永远不会解锁
type NotImplemented struct {
	Reason string
}

func (StreakThreshold) criterion() {}
func (MilestoneCount) criterion()  {}
func (LevelThreshold) criterion()  {}
func (TeamRanking) criterion()     {}
func (FirstNUsers) criterion()     {}
func (NotImplemented) criterion()  {}

// badgeFacts 单次评估的聚合数据，按需加载并缓存
type badgeFacts struct {
	ctx      context.Context
	profile  *schema.GamificationProfile
	profiles ProfileRepository
	txs      XpTransactionRepository

	counts    map[string]int64
	rank      int
	joinOrder int
}

func (f *badgeFacts) sourceCount(source string) (int64, error) {
	if f.counts == nil {
		counts, err := f.txs.CountBySources(f.ctx, f.profile.ID)
		if err != nil {
			return 0, err
		}
		f.counts = counts
	}
	return f.counts[source], nil
}

func (f *badgeFacts) workspaceRank() (int, error) {
	if f.rank == 0 {
		rank, err := f.profiles.Rank(f.ctx, f.profile)
		if err != nil {
			return 0, err
		}
		f.rank = rank
	}
	return f.rank, nil
}

func (f *badgeFacts) workspaceJoinOrder() (int, error) {
	if f.joinOrder == 0 {
		order, err := f.profiles.JoinOrder(f.ctx, f.profile)
		if err != nil {
			return 0, err
		}
		f.joinOrder = order
	}
	return f.joinOrder, nil
}

func evaluateCriterion(c Criterion, f *badgeFacts) (bool, error) {
	switch c := c.(type) {
	case StreakThreshold:
		return f.profile.Streak >= c.Days, nil
	case MilestoneCount:
		n, err := f.sourceCount(c.Source)
		if err != nil {
			return false, err
		}
		return n >= c.Count, nil
	case LevelThreshold:
		return f.profile.Level >= c.Level, nil
	case TeamRanking:
		if f.profile.TotalXP < c.MinXP || f.profile.TotalXP <= 0 {
			return false, nil
		}
		rank, err := f.workspaceRank()
		if err != nil {
			return false, err
		}
		return rank <= c.TopN, nil
	case FirstNUsers:
		order, err := f.workspaceJoinOrder()
		if err != nil {
			return false, err
		}
		return order <= c.N, nil
	case NotImplemented:
		return false, nil
	default:
		return false, fmt.Errorf("未知成就条件类型 %T", c)
	}
}
