package engine

import "time"

const (
	streakBonusStepPercent = 5
	streakBonusCapPercent  = 50
)

// StreakState is the streak-related slice of a task before a completion.
type StreakState struct {
	Current       int
	Best          int
	LastCompleted *time.Time
}

// StreakResult is the outcome of advancing a streak by one completion.
type StreakResult struct {
	Current      int
	Best         int
	BonusPercent int
	Bonus        int
	Continued    bool
}

// AdvanceStreak applies one completion at the given instant.
//
// A completion continues the streak when the previous completion exists and
// the new instant is no later than two periods after it, so a completion may
// land anywhere in the period following the one it was due in. Anything later
// resets the streak to 1. One-off tasks keep a zero streak and earn no bonus.
func AdvanceStreak(freq Frequency, prev StreakState, baseXP int, at time.Time) StreakResult {
	if !freq.IsRecurring() {
		return StreakResult{Current: 0, Best: prev.Best}
	}

	res := StreakResult{Current: 1}
	if prev.LastCompleted != nil && prev.Current > 0 && !at.After(graceDeadline(freq, *prev.LastCompleted)) {
		res.Current = prev.Current + 1
		res.Continued = true
	}

	res.Best = max(prev.Best, res.Current)
	res.BonusPercent = StreakBonusPercent(res.Current)
	res.Bonus = baseXP * res.BonusPercent / 100
	return res
}

// StreakBonusPercent is 5% per completion beyond the first, capped at 50%.
func StreakBonusPercent(streak int) int {
	if streak <= 1 {
		return 0
	}
	return min((streak-1)*streakBonusStepPercent, streakBonusCapPercent)
}

// graceDeadline is the latest instant that still continues a streak whose
// previous completion happened at last.
func graceDeadline(freq Frequency, last time.Time) time.Time {
	switch freq {
	case FrequencyDaily:
		return last.Add(48 * time.Hour)
	case FrequencyWeekly:
		return last.Add(14 * 24 * time.Hour)
	case FrequencyMonthly:
		return addMonthsClamped(last, 2)
	default:
		return last
	}
}
