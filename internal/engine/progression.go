package engine

// ApplyCompletion folds a completion draft into the user's ledger and returns
// the finalized completion record. It is the only place TotalXP grows.
func ApplyCompletion(u *User, d CompletionDraft) TaskCompletion {
	before := LevelFor(u.TotalXP).Level
	earned := max(d.XPEarned, 0)
	u.TotalXP += earned
	after := LevelFor(u.TotalXP).Level

	c := TaskCompletion{
		TaskID:      d.TaskID,
		UserID:      u.ID,
		CompletedAt: d.CompletedAt,
		XPEarned:    earned,
		StreakBonus: d.StreakBonus,
		LevelUp:     after > before,
	}
	if c.LevelUp {
		lvl := after
		c.NewLevel = &lvl
	}
	return c
}
