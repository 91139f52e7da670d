package game

import "finchat/internal/core"

// Achievement unlocks at most once per user. The predicate sees the state
// after the triggering event has been applied.
type Achievement struct {
	ID       string
	Name     string
	Unlocked func(st core.GamificationState, ev core.XPEvent) bool
}

// DefaultAchievements is the built-in catalog.
func DefaultAchievements() []Achievement {
	return []Achievement{
		{
			ID:   "first_expense",
			Name: "First expense logged",
			Unlocked: func(_ core.GamificationState, ev core.XPEvent) bool {
				return ev.Action == core.ActionExpenseLogged
			},
		},
		{
			ID:   "goal_getter",
			Name: "Reached a savings goal",
			Unlocked: func(_ core.GamificationState, ev core.XPEvent) bool {
				return ev.Action == core.ActionGoalReached
			},
		},
		{
			ID:   "streak_starter",
			Name: "Kept a logging streak",
			Unlocked: func(_ core.GamificationState, ev core.XPEvent) bool {
				return ev.Action == core.ActionStreakKept
			},
		},
		{
			ID:   "xp_100",
			Name: "Collected 100 XP",
			Unlocked: func(st core.GamificationState, _ core.XPEvent) bool {
				return st.TotalXP >= 100
			},
		},
		{
			ID:   "xp_1000",
			Name: "Collected 1000 XP",
			Unlocked: func(st core.GamificationState, _ core.XPEvent) bool {
				return st.TotalXP >= 1000
			},
		},
		{
			ID:   "level_5",
			Name: "Reached level 5",
			Unlocked: func(st core.GamificationState, _ core.XPEvent) bool {
				return st.Level >= 5
			},
		},
	}
}
