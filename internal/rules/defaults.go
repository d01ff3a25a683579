package rules

// 动作标识
const (
	ActionMentoringSession       = "mentoring_session"
	ActionFeedbackGiven          = "feedback_given"
	ActionDocumentation          = "documentation"
	ActionGoalProgress           = "goal_progress"
	ActionGoalCompleted          = "goal_completed"
	ActionOneOnOne               = "one_on_one"
	ActionCertification          = "certification"
	ActionDailyCheckIn           = "daily_check_in"
	ActionPeerSupport            = "peer_support"
	ActionKnowledgeSharing       = "knowledge_sharing"
	ActionOnboardingSupport      = "onboarding_support"
	ActionCultureBuilding        = "culture_building"
	ActionConflictResolution     = "conflict_resolution"
	ActionProcessImprovement     = "process_improvement"
	ActionTeamGoalContribution   = "team_goal_contribution"
	ActionRetroFacilitation      = "retrospective_facilitation"
	ActionPerformanceImprovement = "performance_improvement_support"
)

// DefaultRules 内置规则表
func DefaultRules() []Rule {
	return []Rule{
		{Action: ActionMentoringSession, Name: "Mentoring session", BaseXP: 50, CooldownHours: 4, WeeklyCap: 10, RequiresEvidence: true},
		{Action: ActionFeedbackGiven, Name: "Feedback given", BaseXP: 20, CooldownHours: 1, WeeklyCap: 15},
		{Action: ActionDocumentation, Name: "Documentation", BaseXP: 40, WeeklyCap: 10, RequiresEvidence: true},
		{Action: ActionGoalProgress, Name: "Goal progress update", BaseXP: 15, CooldownHours: 12, WeeklyCap: 7},
		{Action: ActionGoalCompleted, Name: "Goal completed", BaseXP: 150},
		{Action: ActionOneOnOne, Name: "One-on-one", BaseXP: 30, WeeklyCap: 5},
		{Action: ActionCertification, Name: "Certification earned", BaseXP: 200, RequiresEvidence: true, RequiresValidation: true},
		{Action: ActionDailyCheckIn, Name: "Daily check-in", BaseXP: 5, CooldownHours: 20},

		{Action: ActionPeerSupport, Name: "Peer support", BaseXP: 30, CooldownHours: 2, WeeklyCap: 10, Multiplier: MultiplierIC},
		{Action: ActionKnowledgeSharing, Name: "Knowledge sharing", BaseXP: 40, WeeklyCap: 5, RequiresEvidence: true, RequiresValidation: true, Multiplier: MultiplierIC},
		{Action: ActionOnboardingSupport, Name: "Onboarding support", BaseXP: 60, WeeklyCap: 3, RequiresEvidence: true, Multiplier: MultiplierIC},
		{Action: ActionCultureBuilding, Name: "Culture building", BaseXP: 35, WeeklyCap: 3, RequiresEvidence: true, RequiresValidation: true, Multiplier: MultiplierIC},
		{Action: ActionConflictResolution, Name: "Conflict resolution", BaseXP: 75, WeeklyCap: 2, RequiresEvidence: true, RequiresValidation: true, Multiplier: MultiplierIC},

		{Action: ActionProcessImprovement, Name: "Process improvement", BaseXP: 100, WeeklyCap: 2, RequiresEvidence: true, RequiresValidation: true, Multiplier: MultiplierManager},
		{Action: ActionTeamGoalContribution, Name: "Team goal contribution", BaseXP: 50, WeeklyCap: 5, Multiplier: MultiplierManager},
		{Action: ActionRetroFacilitation, Name: "Retrospective facilitation", BaseXP: 40, CooldownHours: 24, WeeklyCap: 2, Multiplier: MultiplierManager},
		{Action: ActionPerformanceImprovement, Name: "Performance improvement support", BaseXP: 80, WeeklyCap: 2, RequiresEvidence: true, RequiresValidation: true, Multiplier: MultiplierManager},
	}
}

// Default 内置规则目录
func Default() *StaticCatalog {
	return NewStaticCatalog(DefaultRules())
}
