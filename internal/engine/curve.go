package engine

import "sort"

// levelThresholds[i] is the cumulative XP required to reach level i+1.
// Beyond the table each level costs a flat 5000 XP.
var levelThresholds = [...]int{
	0, 100, 250, 450, 700, 1000, 1400, 1900, 2500, 3200,
	4000, 5000, 6200, 7600, 9200, 11000, 13000, 15500, 18500, 22000,
}

const tailLevelCost = 5000

// titles maps the lowest level of each band to its title.
var titles = []struct {
	level int
	title string
}{
	{1, "Novice"},
	{5, "Apprentice"},
	{10, "Adventurer"},
	{15, "Veteran"},
	{20, "Master"},
	{25, "Legend"},
}

// LevelInfo is the full progression picture for one XP total.
type LevelInfo struct {
	Level         int    `json:"level"`
	CurrentXP     int    `json:"current_xp"`
	XPToNextLevel int    `json:"xp_to_next_level"`
	TotalXP       int    `json:"total_xp"`
	Title         string `json:"title"`
}

// Threshold returns the cumulative XP needed to reach level. Levels below 1
// are treated as 1.
func Threshold(level int) int {
	if level <= 1 {
		return 0
	}
	if level <= len(levelThresholds) {
		return levelThresholds[level-1]
	}
	last := len(levelThresholds)
	return levelThresholds[last-1] + (level-last)*tailLevelCost
}

// LevelFor returns the largest level whose threshold does not exceed total.
// Negative totals are clamped to zero.
func LevelFor(total int) LevelInfo {
	if total < 0 {
		total = 0
	}

	var level int
	last := len(levelThresholds)
	if total >= levelThresholds[last-1] {
		level = last + (total-levelThresholds[last-1])/tailLevelCost
	} else {
		// First index whose threshold exceeds total; that index is the level.
		level = sort.Search(last, func(i int) bool { return levelThresholds[i] > total })
	}

	floor := Threshold(level)
	return LevelInfo{
		Level:         level,
		CurrentXP:     total - floor,
		XPToNextLevel: Threshold(level+1) - total,
		TotalXP:       total,
		Title:         TitleFor(level),
	}
}

// TitleFor returns the display title for a level.
func TitleFor(level int) string {
	title := titles[0].title
	for _, t := range titles {
		if level < t.level {
			break
		}
		title = t.title
	}
	return title
}
