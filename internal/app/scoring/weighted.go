package scoring

import (
	"slices"
	"time"

	"github.com/dayplanner-app/dayplanner/internal/domain"
)

// Weighted point values.
const (
	WeightedBase       = 100
	ProductivityWeight = 10 // per completion historically started in the slot's hour
	PreferredHourBonus = 25
	DayOffsetPenalty   = 10 // per day ahead
	HistoryLimit       = 20 // completions consulted
)

// WeightedPriorityBonus maps task priority to points.
var WeightedPriorityBonus = map[domain.Priority]int{
	domain.PriorityHigh:   30,
	domain.PriorityMedium: 15,
	domain.PriorityLow:    0,
}

// DefaultPreferredHours lists the hours each category works best in.
func DefaultPreferredHours() map[domain.Category][]int {
	return map[domain.Category][]int{
		domain.CategoryHealth:    {6, 7, 8, 17, 18, 19},
		domain.CategoryAcademics: {9, 10, 11, 14, 15, 16},
		domain.CategoryFun:       {19, 20, 21},
		domain.CategoryChores:    {8, 9, 16, 17},
		domain.CategoryOther:     {10, 11, 14, 15},
	}
}

// Weighted scores slots from the user's productivity histogram and the
// category's preferred hours.
type Weighted struct {
	PreferredHours map[domain.Category][]int
}

// NewWeighted returns a Weighted strategy with the default preferred hours.
func NewWeighted() *Weighted {
	return &Weighted{PreferredHours: DefaultPreferredHours()}
}

// Name implements Strategy.
func (w *Weighted) Name() string { return NameWeighted }

// UsesHistory implements Strategy.
func (w *Weighted) UsesHistory() bool { return true }

// Score implements Strategy.
func (w *Weighted) Score(slots []domain.Slot, in Input) []domain.Slot {
	loc := locationOf(in)
	hist := Histogram(in.History, loc)

	preferred, ok := w.PreferredHours[in.Task.Category]
	if !ok {
		preferred = w.PreferredHours[domain.CategoryOther]
	}

	out := cloneSlots(slots)
	for i := range out {
		hour := hourIn(out[i].Start, loc)
		score := WeightedBase
		score += hist[hour] * ProductivityWeight
		if slices.Contains(preferred, hour) {
			score += PreferredHourBonus
		}
		score += WeightedPriorityBonus[in.Task.Priority]
		score -= in.DayOffset * DayOffsetPenalty
		out[i].Score = score
	}
	sortByScore(out)
	return out
}

// Histogram counts how many records originally started in each hour of day.
// Records without an original start are ignored.
func Histogram(records []domain.ProgressRecord, loc *time.Location) [24]int {
	if loc == nil {
		loc = time.Local
	}
	var h [24]int
	for _, r := range records {
		if r.OriginalStart.IsZero() {
			continue
		}
		h[r.OriginalStart.In(loc).Hour()]++
	}
	return h
}
