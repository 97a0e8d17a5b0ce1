package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dayplanner-app/dayplanner/internal/domain"
)

var day = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(hour, min int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

func slot(hour, min int, d time.Duration) domain.Slot {
	return domain.Slot{Start: at(hour, min), End: at(hour, min).Add(d)}
}

func input(category domain.Category, priority domain.Priority, existing ...domain.Task) Input {
	return Input{
		Task:     domain.Task{Name: "t", Category: category, Priority: priority},
		Existing: existing,
		Location: time.UTC,
	}
}

func TestBucketOf(t *testing.T) {
	tests := []struct {
		hour int
		want TimeOfDay
	}{
		{6, Morning}, {11, Morning}, {12, Afternoon}, {16, Afternoon}, {17, Evening}, {22, Evening},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BucketOf(tt.hour), "hour %d", tt.hour)
	}
}

func TestPreferenceTable_Bonus(t *testing.T) {
	p := DefaultPreferences()
	assert.Equal(t, 20, p.Bonus(domain.CategoryAcademics, Morning))
	assert.Equal(t, 5, p.Bonus(domain.CategoryAcademics, Evening))
	assert.Equal(t, 15, p.Bonus(domain.CategoryFun, Evening))
	assert.Equal(t, 5, p.Bonus(domain.CategoryFun, Morning))
	assert.Equal(t, 5, p.Bonus("", Afternoon), "missing category falls back to 5")

	for _, c := range domain.Categories() {
		_, ok := p[c]
		assert.True(t, ok, "table covers %s", c)
	}
}

// ─── Heuristic ──────────────────────────────────────────────────────────────

func TestHeuristic_LunchPenaltyOncePerSlot(t *testing.T) {
	h := NewHeuristic()
	for _, d := range []time.Duration{30 * time.Minute, 2 * time.Hour, 4 * time.Hour} {
		got := h.Score([]domain.Slot{slot(12, 30, d)}, input(domain.CategoryOther, domain.PriorityMedium))
		require.Len(t, got, 1)
		// 50 base + 10 medium + 10 other/afternoon − 10 lunch
		assert.Equal(t, 60, got[0].Score, "duration %s", d)
	}
}

func TestHeuristic_PriorityBonus(t *testing.T) {
	h := NewHeuristic()
	s := []domain.Slot{slot(15, 0, time.Hour)}
	score := func(p domain.Priority) int {
		return h.Score(s, input(domain.CategoryOther, p))[0].Score
	}
	assert.Equal(t, 80, score(domain.PriorityHigh))
	assert.Equal(t, 70, score(domain.PriorityMedium))
	assert.Equal(t, 65, score(domain.PriorityLow))
	assert.Equal(t, 70, score(""), "unset priority scores as medium")
}

func TestHeuristic_MorningPeak(t *testing.T) {
	h := NewHeuristic()
	got := h.Score([]domain.Slot{slot(7, 30, time.Hour), slot(8, 0, time.Hour), slot(10, 30, time.Hour), slot(11, 0, time.Hour)},
		input(domain.CategoryOther, domain.PriorityMedium))
	scores := map[time.Time]int{}
	for _, s := range got {
		scores[s.Start] = s.Score
	}
	assert.Equal(t, 70, scores[at(7, 30)])
	assert.Equal(t, 78, scores[at(8, 0)])
	assert.Equal(t, 78, scores[at(10, 30)])
	assert.Equal(t, 70, scores[at(11, 0)])
}

func TestHeuristic_SameCategoryAndCrowding(t *testing.T) {
	h := NewHeuristic()
	gym := domain.Task{Name: "gym", Category: domain.CategoryHealth, StartTime: at(17, 0), EndTime: at(18, 0)}
	chores := domain.Task{Name: "laundry", Category: domain.CategoryChores, StartTime: at(19, 0), EndTime: at(19, 30)}

	in := input(domain.CategoryHealth, domain.PriorityMedium, gym, chores)
	got := h.Score([]domain.Slot{slot(18, 0, time.Hour), slot(19, 30, time.Hour), slot(21, 30, time.Hour)}, in)
	scores := map[time.Time]int{}
	for _, s := range got {
		scores[s.Start] = s.Score
	}
	// 18:00: base 50 + 10 + 10 evening + 10 same category (1h from gym)
	assert.Equal(t, 80, scores[at(18, 0)])
	// 19:30: 70 + 10 same category (2h30 is outside) → no; chores 30m away is not < 30m
	assert.Equal(t, 70, scores[at(19, 30)])
	// 21:30: nothing nearby
	assert.Equal(t, 70, scores[at(21, 30)])

	// A slot 15 minutes from an existing task is penalized.
	crowded := h.Score([]domain.Slot{slot(19, 15, 15*time.Minute)}, in)
	// 70 + 10 (gym within 2h15? no: 2h15 > 2h) − 15 (chores 15m away)
	assert.Equal(t, 55, crowded[0].Score)
}

func TestHeuristic_SortedDescendingStable(t *testing.T) {
	h := NewHeuristic()
	slots := []domain.Slot{
		slot(15, 0, time.Hour), slot(15, 30, time.Hour), // tie
		slot(9, 0, time.Hour),                           // morning peak wins
		slot(12, 0, time.Hour),                          // lunch loses
		slot(16, 0, time.Hour),                          // tie with 15:00
	}
	got := h.Score(slots, input(domain.CategoryAcademics, domain.PriorityMedium))
	require.Len(t, got, 5)
	assert.Equal(t, at(9, 0), got[0].Start)
	assert.Equal(t, []time.Time{at(15, 0), at(15, 30), at(16, 0)},
		[]time.Time{got[1].Start, got[2].Start, got[3].Start}, "ties keep chronological order")
	assert.Equal(t, at(12, 0), got[4].Start)

	// Input is not mutated.
	assert.Zero(t, slots[0].Score)
}

func TestHeuristic_Deterministic(t *testing.T) {
	h := NewHeuristic()
	var slots []domain.Slot
	for m := 6 * 60; m < 23*60; m += 30 {
		slots = append(slots, slot(0, m, 45*time.Minute))
	}
	existing := []domain.Task{
		{Category: domain.CategoryFun, StartTime: at(19, 0), EndTime: at(20, 0)},
		{Category: domain.CategoryChores, StartTime: at(9, 0), EndTime: at(9, 30)},
	}
	in := input(domain.CategoryFun, domain.PriorityLow, existing...)
	first := h.Score(slots, in)
	for range 5 {
		assert.Equal(t, first, h.Score(slots, in))
	}
}

func TestHeuristic_GymScenario(t *testing.T) {
	h := NewHeuristic()
	var slots []domain.Slot
	for m := 10 * 60; m < 23*60; m += 30 {
		slots = append(slots, slot(0, m, time.Hour))
	}
	got := h.Score(slots, input(domain.CategoryHealth, domain.PriorityHigh))
	// 50 + 20 high + 15 morning + 8 peak
	assert.Equal(t, at(10, 0), got[0].Start)
	assert.Equal(t, 93, got[0].Score)
	assert.Greater(t, got[0].Score, 30)
}

func TestHeuristic_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC-3", -3*3600)
	h := NewHeuristic()
	in := input(domain.CategoryOther, domain.PriorityMedium)
	in.Location = loc
	// 15:30 UTC is 12:30 in UTC-3: lunch applies.
	got := h.Score([]domain.Slot{slot(15, 30, time.Hour)}, in)
	assert.Equal(t, 60, got[0].Score)
}

// ─── Weighted ───────────────────────────────────────────────────────────────

func TestHistogram(t *testing.T) {
	recs := []domain.ProgressRecord{
		{OriginalStart: at(9, 0)},
		{OriginalStart: at(9, 45)},
		{OriginalStart: at(18, 0)},
		{}, // no original start
	}
	h := Histogram(recs, time.UTC)
	assert.Equal(t, 2, h[9])
	assert.Equal(t, 1, h[18])
	assert.Equal(t, 0, h[0])
}

func TestWeighted_Score(t *testing.T) {
	w := NewWeighted()
	in := input(domain.CategoryAcademics, domain.PriorityHigh)
	in.History = []domain.ProgressRecord{{OriginalStart: at(14, 0)}, {OriginalStart: at(14, 10)}}

	got := w.Score([]domain.Slot{slot(8, 0, time.Hour), slot(9, 0, time.Hour), slot(14, 0, time.Hour)}, in)
	require.Len(t, got, 3)
	// 14:00: 100 + 2×10 history + 25 preferred + 30 high
	assert.Equal(t, at(14, 0), got[0].Start)
	assert.Equal(t, 175, got[0].Score)
	// 09:00: 100 + 25 + 30
	assert.Equal(t, 155, got[1].Score)
	// 08:00: 100 + 30
	assert.Equal(t, 130, got[2].Score)
}

func TestWeighted_DayOffsetAndUnknownCategory(t *testing.T) {
	w := NewWeighted()
	in := input("", domain.PriorityLow)
	in.DayOffset = 3
	got := w.Score([]domain.Slot{slot(10, 0, time.Hour)}, in)
	// 100 + 25 (Other prefers 10:00) + 0 low − 30
	assert.Equal(t, 95, got[0].Score)
}

func TestLookup(t *testing.T) {
	s, err := Lookup("")
	require.NoError(t, err)
	assert.Equal(t, NameHeuristic, s.Name())
	assert.False(t, s.UsesHistory())

	s, err = Lookup(NameWeighted)
	require.NoError(t, err)
	assert.Equal(t, NameWeighted, s.Name())
	assert.True(t, s.UsesHistory())

	_, err = Lookup("oracle")
	assert.ErrorIs(t, err, domain.ErrUnknownStrategy)
	assert.ElementsMatch(t, []string{NameHeuristic, NameWeighted}, Names())
}
