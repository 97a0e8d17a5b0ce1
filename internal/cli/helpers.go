package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/dayplanner-app/dayplanner/internal/app/reschedule"
)

const localTimeLayout = "2006-01-02 15:04"

// parseLocalTime reads "YYYY-MM-DD HH:MM" in loc.
func parseLocalTime(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(localTimeLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("time %q is not %q", s, localTimeLayout)
	}
	return t, nil
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// parseWeekdays reads a comma-separated list such as "mon,wed,fri".
func parseWeekdays(s string) ([]time.Weekday, error) {
	var days []time.Weekday
	seen := map[time.Weekday]bool{}
	for _, part := range strings.Split(s, ",") {
		key := strings.ToLower(strings.TrimSpace(part))
		if len(key) > 3 {
			key = key[:3]
		}
		d, ok := weekdayNames[key]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", part)
		}
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	return days, nil
}

func formatClock(t time.Time, loc *time.Location, layout string) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(loc).Format(layout)
}

// formatResult renders one reschedule outcome as a line of text.
func formatResult(res reschedule.Result, loc *time.Location) string {
	if res.Success {
		return fmt.Sprintf("%s: moved to %s (score %d, %s)",
			res.TaskID, res.NewTime.In(loc).Format(reschedule.TimeLayout), res.Score, res.Strategy)
	}
	return fmt.Sprintf("%s: not moved [%s] %s", res.TaskID, res.Reason, res.Message)
}
