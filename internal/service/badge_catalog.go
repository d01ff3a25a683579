package service

import "github.com/yuqie6/xpforge/internal/rules"

// BadgeCategory 成就分类
type BadgeCategory string

const (
	BadgeCategoryStreak      BadgeCategory = "streak"
	BadgeCategoryMilestone   BadgeCategory = "milestone"
	BadgeCategoryLevel       BadgeCategory = "level"
	BadgeCategoryLeaderboard BadgeCategory = "leaderboard"
	BadgeCategorySpecial     BadgeCategory = "special"
)

// BadgeDefinition 成就定义
type BadgeDefinition struct {
	Type        string
	Category    BadgeCategory
	Name        string
	Description string
	Criterion   Criterion
}

// 成就类型
const (
	BadgeStreak3          = "STREAK_3"
	BadgeStreak7          = "STREAK_7"
	BadgeStreak30         = "STREAK_30"
	BadgeFirstGoal        = "FIRST_GOAL"
	BadgeGoalGetter       = "GOAL_GETTER"
	BadgeMentor           = "MENTOR"
	BadgeMasterMentor     = "MASTER_MENTOR"
	BadgeCertified        = "CERTIFIED"
	BadgeOneOnOneRegular  = "ONE_ON_ONE_REGULAR"
	BadgeLevel5           = "LEVEL_5"
	BadgeLevel10          = "LEVEL_10"
	BadgeTop3             = "TOP_3"
	BadgeEarlyAdopter     = "EARLY_ADOPTER"
	BadgeFeedbackChampion = "FEEDBACK_CHAMPION"
)

// DefaultBadges 内置成就列表
func DefaultBadges() []BadgeDefinition {
	return []BadgeDefinition{
		{Type: BadgeStreak3, Category: BadgeCategoryStreak, Name: "Warming Up", Description: "连续活跃 3 天", Criterion: StreakThreshold{Days: 3}},
		{Type: BadgeStreak7, Category: BadgeCategoryStreak, Name: "On Fire", Description: "连续活跃 7 天", Criterion: StreakThreshold{Days: 7}},
		{Type: BadgeStreak30, Category: BadgeCategoryStreak, Name: "Unstoppable", Description: "连续活跃 30 天", Criterion: StreakThreshold{Days: 30}},

		{Type: BadgeFirstGoal, Category: BadgeCategoryMilestone, Name: "First Goal", Description: "完成第一个目标", Criterion: MilestoneCount{Source: rules.ActionGoalCompleted, Count: 1}},
		{Type: BadgeGoalGetter, Category: BadgeCategoryMilestone, Name: "Goal Getter", Description: "完成 10 个目标", Criterion: MilestoneCount{Source: rules.ActionGoalCompleted, Count: 10}},
		{Type: BadgeMentor, Category: BadgeCategoryMilestone, Name: "Mentor", Description: "完成 5 次辅导", Criterion: MilestoneCount{Source: rules.ActionMentoringSession, Count: 5}},
		{Type: BadgeMasterMentor, Category: BadgeCategoryMilestone, Name: "Master Mentor", Description: "完成 25 次辅导", Criterion: MilestoneCount{Source: rules.ActionMentoringSession, Count: 25}},
		{Type: BadgeCertified, Category: BadgeCategoryMilestone, Name: "Certified", Description: "获得一项认证", Criterion: MilestoneCount{Source: rules.ActionCertification, Count: 1}},
		{Type: BadgeOneOnOneRegular, Category: BadgeCategoryMilestone, Name: "1:1 Regular", Description: "完成 10 次一对一", Criterion: MilestoneCount{Source: rules.ActionOneOnOne, Count: 10}},

		{Type: BadgeLevel5, Category: BadgeCategoryLevel, Name: "Rising Star", Description: "达到 5 级", Criterion: LevelThreshold{Level: 5}},
		{Type: BadgeLevel10, Category: BadgeCategoryLevel, Name: "Veteran", Description: "达到 10 级", Criterion: LevelThreshold{Level: 10}},

		{Type: BadgeTop3, Category: BadgeCategoryLeaderboard, Name: "Podium", Description: "工作区经验榜前三（至少 500 经验）", Criterion: TeamRanking{TopN: 3, MinXP: 500}},
		{Type: BadgeEarlyAdopter, Category: BadgeCategorySpecial, Name: "Early Adopter", Description: "工作区前 10 位加入的成员", Criterion: FirstNUsers{N: 10}},
		{Type: BadgeFeedbackChampion, Category: BadgeCategorySpecial, Name: "Feedback Champion", Description: "收到的反馈评分持续优秀", Criterion: NotImplemented{Reason: "反馈评分数据尚未接入"}},
	}
}
