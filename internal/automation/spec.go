package automation

import (
	"fmt"
	"time"
)

type Interval string

const (
	IntervalDaily   Interval = "daily"
	IntervalWeekly  Interval = "weekly"
	IntervalMonthly Interval = "monthly"
)

// ScheduleSpec describes one recurring wall-clock trigger. The scheduler loop
// wakes at a fixed cadence and fires every spec whose occurrence falls inside
// the window since the previous wake-up.
type ScheduleSpec struct {
	Interval Interval
	Weekday  time.Weekday // weekly only
	MonthDay int          // monthly only
	Hour     int
	Minute   int
}

func Daily(hour, minute int) ScheduleSpec {
	return ScheduleSpec{Interval: IntervalDaily, Hour: hour, Minute: minute}
}

func Weekly(weekday time.Weekday, hour, minute int) ScheduleSpec {
	return ScheduleSpec{Interval: IntervalWeekly, Weekday: weekday, Hour: hour, Minute: minute}
}

func Monthly(monthDay, hour, minute int) ScheduleSpec {
	return ScheduleSpec{Interval: IntervalMonthly, MonthDay: monthDay, Hour: hour, Minute: minute}
}

// Due reports whether an occurrence of the spec falls within (after, now].
func (s ScheduleSpec) Due(after, now time.Time) bool {
	if !now.After(after) {
		return false
	}

	day := time.Date(after.Year(), after.Month(), after.Day(), 0, 0, 0, 0, after.Location())
	for ; !day.After(now); day = day.AddDate(0, 0, 1) {
		occurrence := time.Date(day.Year(), day.Month(), day.Day(), s.Hour, s.Minute, 0, 0, day.Location())
		if occurrence.After(after) && !occurrence.After(now) && s.matchesDay(occurrence) {
			return true
		}
	}
	return false
}

// NextAfter returns the first occurrence strictly after t, for status
// reporting. Searches up to two months ahead, which covers every interval.
func (s ScheduleSpec) NextAfter(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	for i := 0; i < 62; i++ {
		occurrence := time.Date(day.Year(), day.Month(), day.Day(), s.Hour, s.Minute, 0, 0, day.Location())
		if occurrence.After(t) && s.matchesDay(occurrence) {
			return occurrence
		}
		day = day.AddDate(0, 0, 1)
	}
	return time.Time{}
}

func (s ScheduleSpec) matchesDay(t time.Time) bool {
	switch s.Interval {
	case IntervalWeekly:
		return t.Weekday() == s.Weekday
	case IntervalMonthly:
		return t.Day() == s.MonthDay
	default:
		return true
	}
}

func (s ScheduleSpec) String() string {
	switch s.Interval {
	case IntervalWeekly:
		return fmt.Sprintf("weekly on %s at %02d:%02d", s.Weekday, s.Hour, s.Minute)
	case IntervalMonthly:
		return fmt.Sprintf("monthly on day %d at %02d:%02d", s.MonthDay, s.Hour, s.Minute)
	default:
		return fmt.Sprintf("daily at %02d:%02d", s.Hour, s.Minute)
	}
}
