package scoring

import (
	"time"

	"github.com/dayplanner-app/dayplanner/internal/domain"
)

// Heuristic point values.
const (
	HeuristicBase = 50

	SameCategoryBonus  = 10
	SameCategoryWindow = 2 * time.Hour

	CrowdingPenalty = 15
	CrowdingWindow  = 30 * time.Minute

	LunchPenalty     = 10
	MorningPeakBonus = 8

	unknownCategoryBonus = 5
)

// PriorityBonus maps task priority to points. Unset priority scores as Medium.
var PriorityBonus = map[domain.Priority]int{
	domain.PriorityHigh:   20,
	domain.PriorityMedium: 10,
	domain.PriorityLow:    5,
}

const defaultPriorityBonus = 10

// PreferenceTable maps category × time-of-day to bonus points.
type PreferenceTable map[domain.Category][3]int

// Bonus returns the table entry, or 5 for a category the table lacks.
func (p PreferenceTable) Bonus(c domain.Category, b TimeOfDay) int {
	row, ok := p[c]
	if !ok || b < Morning || b > Evening {
		return unknownCategoryBonus
	}
	return row[b]
}

// DefaultPreferences is indexed [morning, afternoon, evening].
func DefaultPreferences() PreferenceTable {
	return PreferenceTable{
		domain.CategoryHealth:    {15, 5, 10},
		domain.CategoryAcademics: {20, 15, 5},
		domain.CategoryFun:       {5, 10, 15},
		domain.CategoryChores:    {10, 15, 10},
		domain.CategoryOther:     {10, 10, 10},
	}
}

// Heuristic is the default additive slot scorer.
type Heuristic struct {
	Preferences PreferenceTable
}

// NewHeuristic returns a Heuristic with the default preference table.
func NewHeuristic() *Heuristic {
	return &Heuristic{Preferences: DefaultPreferences()}
}

// Name implements Strategy.
func (h *Heuristic) Name() string { return NameHeuristic }

// UsesHistory implements Strategy.
func (h *Heuristic) UsesHistory() bool { return false }

// Score implements Strategy.
func (h *Heuristic) Score(slots []domain.Slot, in Input) []domain.Slot {
	loc := locationOf(in)
	out := cloneSlots(slots)
	for i := range out {
		out[i].Score = h.scoreOne(out[i], in, loc)
	}
	sortByScore(out)
	return out
}

func (h *Heuristic) scoreOne(slot domain.Slot, in Input, loc *time.Location) int {
	score := HeuristicBase

	if bonus, ok := PriorityBonus[in.Task.Priority]; ok {
		score += bonus
	} else {
		score += defaultPriorityBonus
	}

	hour := hourIn(slot.Start, loc)
	score += h.Preferences.Bonus(in.Task.Category, BucketOf(hour))

	for _, existing := range in.Existing {
		diff := slot.Start.Sub(existing.StartTime)
		if diff < 0 {
			diff = -diff
		}
		if existing.Category == in.Task.Category && diff <= SameCategoryWindow {
			score += SameCategoryBonus
		}
		if diff < CrowdingWindow {
			score -= CrowdingPenalty
		}
	}

	// Bucket-level adjustments: applied once per slot, whatever its length.
	if hour == 12 || hour == 13 {
		score -= LunchPenalty
	}
	if hour >= 8 && hour <= 10 {
		score += MorningPeakBonus
	}
	return score
}
