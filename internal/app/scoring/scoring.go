// Package scoring ranks candidate slots for a task being placed.
//
// Two strategies share one interface:
//   - Heuristic: additive points for priority, category × time of day,
//     batching with same-category tasks, and penalties for crowding/lunch.
//   - Weighted: favours the hours the user historically completes tasks in
//     and the category's preferred hours, decaying with days ahead.
//
// Scoring is pure: identical input always yields the identical order.
package scoring

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/dayplanner-app/dayplanner/internal/domain"
)

// Input is everything a strategy may consult besides the slots.
type Input struct {
	Task      domain.Task
	Existing  []domain.Task           // the target day's Pending/Completed tasks
	History   []domain.ProgressRecord // recent completions, newest first
	DayOffset int                     // 0 = today
	Location  *time.Location          // hours are read in this zone
}

// Strategy scores and orders candidate slots.
type Strategy interface {
	Name() string
	// UsesHistory reports whether Score reads Input.History, so callers
	// can skip loading it.
	UsesHistory() bool
	// Score returns a copy of slots with Score set, sorted descending.
	// Ties keep the input order.
	Score(slots []domain.Slot, in Input) []domain.Slot
}

// Strategy names accepted by Lookup.
const (
	NameHeuristic = "heuristic"
	NameWeighted  = "weighted"
)

// Lookup returns the strategy registered under name.
func Lookup(name string) (Strategy, error) {
	switch name {
	case "", NameHeuristic:
		return NewHeuristic(), nil
	case NameWeighted:
		return NewWeighted(), nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownStrategy, name)
	}
}

// Names lists the available strategies.
func Names() []string {
	return []string{NameHeuristic, NameWeighted}
}

// ─── Time of Day ────────────────────────────────────────────────────────────

// TimeOfDay buckets an hour for the preference table.
type TimeOfDay int

const (
	Morning   TimeOfDay = iota // hour < 12
	Afternoon                  // 12 ≤ hour < 17
	Evening                    // hour ≥ 17
)

// String returns the bucket name.
func (b TimeOfDay) String() string {
	switch b {
	case Morning:
		return "morning"
	case Afternoon:
		return "afternoon"
	case Evening:
		return "evening"
	default:
		return "unknown"
	}
}

// BucketOf maps an hour of day to its bucket.
func BucketOf(hour int) TimeOfDay {
	switch {
	case hour < 12:
		return Morning
	case hour < 17:
		return Afternoon
	default:
		return Evening
	}
}

// sortByScore orders slots descending by score; equal scores keep input order.
func sortByScore(slots []domain.Slot) {
	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].Score > slots[j].Score
	})
}

func locationOf(in Input) *time.Location {
	if in.Location == nil {
		return time.Local
	}
	return in.Location
}

func hourIn(t time.Time, loc *time.Location) int {
	return t.In(loc).Hour()
}

func cloneSlots(slots []domain.Slot) []domain.Slot {
	return slices.Clone(slots)
}
