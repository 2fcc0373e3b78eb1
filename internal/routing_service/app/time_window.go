package app

import (
	"time"

	"github.com/aradsms/routing_engine/internal/routing_service/domain"
)

// InWindow reports whether rule may be used at now. The instant is converted to the
// window's timezone (UTC when unset) before comparing. Both ends are inclusive.
func InWindow(rule *domain.RoutingRule, now time.Time) bool {
	if rule == nil || rule.Window == nil {
		return true
	}
	w := rule.Window

	loc := w.Location
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)

	if len(w.Weekdays) > 0 && !containsWeekday(w.Weekdays, local.Weekday()) {
		return false
	}
	if w.Start == nil || w.End == nil {
		return true
	}

	t := domain.TimeOfDayOf(local)
	start, end := *w.Start, *w.End
	if start <= end {
		return start <= t && t <= end
	}
	// overnight, e.g. 22:00-06:00
	return t >= start || t <= end
}

func containsWeekday(days []time.Weekday, day time.Weekday) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}
