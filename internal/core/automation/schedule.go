package automation

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Interval is the period of a schedule
type Interval string

const (
	IntervalMinute Interval = "minute"
	IntervalHour   Interval = "hour"
	IntervalDay    Interval = "day"
	IntervalWeek   Interval = "week"
	IntervalMonth  Interval = "month"
)

// Schedule is the interval spec of a schedule trigger.
//
// Anchors per interval: hour uses Minute, day uses Time, week uses
// DayOfWeek (0 = Sunday) and Time, month uses DayOfMonth and Time.
type Schedule struct {
	Interval   Interval `json:"interval"`
	Every      int      `json:"every,omitempty"`
	Time       string   `json:"time,omitempty"`
	DayOfWeek  *int     `json:"day_of_week,omitempty"`
	DayOfMonth int      `json:"day_of_month,omitempty"`
	Minute     *int     `json:"minute,omitempty"`
	Timezone   string   `json:"timezone,omitempty"`
}

// Validate checks the interval and anchor ranges
func (s Schedule) Validate() error {
	switch s.Interval {
	case IntervalMinute, IntervalHour, IntervalDay, IntervalWeek, IntervalMonth:
	default:
		return fmt.Errorf("unknown schedule interval %q", s.Interval)
	}
	if s.Every < 0 {
		return fmt.Errorf("schedule every must be positive, got %d", s.Every)
	}
	if s.Time != "" {
		if _, _, err := parseClock(s.Time); err != nil {
			return err
		}
	}
	if s.DayOfWeek != nil && (*s.DayOfWeek < 0 || *s.DayOfWeek > 6) {
		return fmt.Errorf("schedule day_of_week must be 0-6, got %d", *s.DayOfWeek)
	}
	if s.DayOfMonth < 0 || s.DayOfMonth > 31 {
		return fmt.Errorf("schedule day_of_month must be 1-31, got %d", s.DayOfMonth)
	}
	if s.Minute != nil && (*s.Minute < 0 || *s.Minute > 59) {
		return fmt.Errorf("schedule minute must be 0-59, got %d", *s.Minute)
	}
	if _, err := s.location(); err != nil {
		return err
	}
	return nil
}

func (s Schedule) every() int {
	if s.Every <= 0 {
		return 1
	}
	return s.Every
}

func (s Schedule) location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("schedule timezone: %w", err)
	}
	return loc, nil
}

// anchored reports whether the schedule pins runs to a point in the period
func (s Schedule) anchored() bool {
	switch s.Interval {
	case IntervalHour:
		return s.Minute != nil
	case IntervalDay:
		return s.Time != ""
	case IntervalWeek:
		return s.DayOfWeek != nil
	case IntervalMonth:
		return s.DayOfMonth > 0
	}
	return false
}

// Due reports whether a run should start at now. Without a previous run it
// is always due. Otherwise a full interval must have elapsed since lastRun
// and, for anchored schedules, now must have passed the anchor of the
// current period.
//
// Minute and hour intervals measure elapsed wall time. Day, week and month
// intervals count calendar periods in the schedule's timezone, so a daily
// 09:00 run that started at 09:01 is due again at 09:00 the next day.
func (s Schedule) Due(lastRun *time.Time, now time.Time) bool {
	if lastRun == nil || lastRun.IsZero() {
		return true
	}
	loc, err := s.location()
	if err != nil {
		return false
	}
	last := lastRun.In(loc)
	now = now.In(loc)

	if !s.intervalElapsed(last, now) {
		return false
	}
	if !s.anchored() {
		return true
	}
	return !now.Before(s.periodAnchor(now))
}

func (s Schedule) intervalElapsed(last, now time.Time) bool {
	if !s.anchored() {
		return !now.Before(s.advance(last, s.every()))
	}
	switch s.Interval {
	case IntervalDay:
		return calendarDays(last, now) >= s.every()
	case IntervalWeek:
		return calendarDays(last, now) >= 7*s.every()
	case IntervalMonth:
		months := (now.Year()-last.Year())*12 + int(now.Month()) - int(last.Month())
		return months >= s.every()
	}
	return !now.Before(s.advance(last, s.every()))
}

// calendarDays counts date changes between a and b, ignoring the clock
func calendarDays(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// periodAnchor returns the anchor inside the period containing t. A week
// period starts on DayOfWeek.
func (s Schedule) periodAnchor(t time.Time) time.Time {
	hour, minute, _ := parseClock(s.Time)
	loc := t.Location()

	switch s.Interval {
	case IntervalHour:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), *s.Minute, 0, 0, loc)
	case IntervalDay:
		return time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, loc)
	case IntervalWeek:
		back := (int(t.Weekday()) - *s.DayOfWeek + 7) % 7
		return time.Date(t.Year(), t.Month(), t.Day()-back, hour, minute, 0, 0, loc)
	case IntervalMonth:
		return s.monthAnchor(t.Year(), t.Month(), loc)
	}
	return t
}

// advance moves t forward by n periods
func (s Schedule) advance(t time.Time, n int) time.Time {
	switch s.Interval {
	case IntervalMinute:
		return t.Add(time.Duration(n) * time.Minute)
	case IntervalHour:
		return t.Add(time.Duration(n) * time.Hour)
	case IntervalDay:
		return t.AddDate(0, 0, n)
	case IntervalWeek:
		return t.AddDate(0, 0, 7*n)
	case IntervalMonth:
		return t.AddDate(0, n, 0)
	}
	return t
}

// monthAnchor clamps DayOfMonth to the month's length
func (s Schedule) monthAnchor(year int, month time.Month, loc *time.Location) time.Time {
	hour, minute, _ := parseClock(s.Time)
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	lastDay := first.AddDate(0, 1, -1).Day()
	day := s.DayOfMonth
	if day > lastDay {
		day = lastDay
	}
	return time.Date(first.Year(), first.Month(), day, hour, minute, 0, 0, loc)
}

// parseClock parses "HH:MM"; an empty string is midnight
func parseClock(s string) (int, int, error) {
	if s == "" {
		return 0, 0, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, fmt.Errorf("schedule time must be HH:MM, got %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("schedule time must be HH:MM, got %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("schedule time must be HH:MM, got %q", s)
	}
	return h, m, nil
}
