package cli

import (
	"slices"
	"testing"
	"time"

	"github.com/dayplanner-app/dayplanner/internal/app/reschedule"
)

func TestParseWeekdays(t *testing.T) {
	tests := []struct {
		in      string
		want    []time.Weekday
		wantErr bool
	}{
		{"mon", []time.Weekday{time.Monday}, false},
		{"Mon, wed ,FRI", []time.Weekday{time.Monday, time.Wednesday, time.Friday}, false},
		{"sunday,sun", []time.Weekday{time.Sunday}, false},
		{"mon,funday", nil, true},
		{"", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseWeekdays(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseWeekdays(%q) should fail", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseWeekdays(%q) error: %v", tt.in, err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("parseWeekdays(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseLocalTime(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	got, err := parseLocalTime(" 2024-01-03 09:30 ", loc)
	if err != nil {
		t.Fatalf("parseLocalTime() error: %v", err)
	}
	if want := time.Date(2024, 1, 3, 9, 30, 0, 0, loc); !got.Equal(want) {
		t.Errorf("parseLocalTime() = %v, want %v", got, want)
	}

	if _, err := parseLocalTime("tomorrow", loc); err == nil {
		t.Error("parseLocalTime(tomorrow) should fail")
	}
}

func TestFormatResult(t *testing.T) {
	ok := reschedule.Result{
		TaskID: "t1", Success: true, Score: 93, Strategy: "heuristic",
		NewTime: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
	}
	if got, want := formatResult(ok, time.UTC), "t1: moved to Mon Jan 1 10:00 (score 93, heuristic)"; got != want {
		t.Errorf("formatResult() = %q, want %q", got, want)
	}

	fail := reschedule.Result{TaskID: "t2", Reason: reschedule.ReasonNoSlot, Message: "No suitable time slot found within the next 7 days"}
	if got, want := formatResult(fail, time.UTC), "t2: not moved [no_slot] No suitable time slot found within the next 7 days"; got != want {
		t.Errorf("formatResult() = %q, want %q", got, want)
	}
}

func TestFormatClock(t *testing.T) {
	if got := formatClock(time.Time{}, time.UTC, "15:04"); got != "-" {
		t.Errorf("formatClock(zero) = %q, want -", got)
	}
	if got := formatClock(time.Date(2024, 1, 1, 9, 5, 0, 0, time.UTC), time.UTC, "15:04"); got != "09:05" {
		t.Errorf("formatClock() = %q, want 09:05", got)
	}
}
