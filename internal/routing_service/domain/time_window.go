package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // rule timezones must resolve in minimal containers
)

// TimeOfDay is a wall-clock time expressed as seconds since midnight.
type TimeOfDay int

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS". "24:00" and "24:00:00" denote the
// end of the day.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: time of day %q", ErrInvalidTimeWindow, s)
	}
	limits := []int{24, 59, 59}
	var fields [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > limits[i] {
			return 0, fmt.Errorf("%w: time of day %q", ErrInvalidTimeWindow, s)
		}
		fields[i] = n
	}
	if fields[0] == 24 && (fields[1] != 0 || fields[2] != 0) {
		return 0, fmt.Errorf("%w: time of day %q", ErrInvalidTimeWindow, s)
	}
	return TimeOfDay(fields[0]*3600 + fields[1]*60 + fields[2]), nil
}

// TimeOfDayOf returns the wall-clock part of t in t's own location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay(h*3600 + m*60 + s)
}

func (t TimeOfDay) String() string {
	secs := int(t)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs%3600/60, secs%60)
}

// TimeWindow restricts when a rule may match. Start after End means the window
// wraps past midnight. Empty Weekdays means every day.
type TimeWindow struct {
	Start    *TimeOfDay
	End      *TimeOfDay
	Location *time.Location // nil means UTC
	Weekdays []time.Weekday
}

// NewTimeWindow builds a window from its persisted pieces. Empty start or end leaves
// the hours unrestricted; an empty timezone means UTC.
func NewTimeWindow(start, end, timezone string, weekdays []string) (*TimeWindow, error) {
	w := &TimeWindow{}
	if start != "" && end != "" {
		s, err := ParseTimeOfDay(start)
		if err != nil {
			return nil, err
		}
		e, err := ParseTimeOfDay(end)
		if err != nil {
			return nil, err
		}
		w.Start, w.End = &s, &e
	}
	if timezone != "" {
		loc, err := time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidTimeWindow, timezone, err)
		}
		w.Location = loc
	}
	for _, d := range weekdays {
		day, err := ParseWeekday(d)
		if err != nil {
			return nil, err
		}
		w.Weekdays = append(w.Weekdays, day)
	}
	return w, nil
}

var weekdayNames = map[string]time.Weekday{
	"SUN": time.Sunday, "SUNDAY": time.Sunday,
	"MON": time.Monday, "MONDAY": time.Monday,
	"TUE": time.Tuesday, "TUESDAY": time.Tuesday,
	"WED": time.Wednesday, "WEDNESDAY": time.Wednesday,
	"THU": time.Thursday, "THURSDAY": time.Thursday,
	"FRI": time.Friday, "FRIDAY": time.Friday,
	"SAT": time.Saturday, "SATURDAY": time.Saturday,
}

// ParseWeekday accepts English day names (full or three-letter) and ISO-8601
// day numbers, 1 = Monday through 7 = Sunday.
func ParseWeekday(s string) (time.Weekday, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if day, ok := weekdayNames[v]; ok {
		return day, nil
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 1 && n <= 7 {
		return time.Weekday(n % 7), nil
	}
	return 0, fmt.Errorf("%w: weekday %q", ErrInvalidTimeWindow, s)
}
