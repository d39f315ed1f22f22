package automation

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
)

func at(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return t
}

func ptr[T any](v T) *T { return &v }

func TestScheduleDue(t *testing.T) {
	tests := []struct {
		name     string
		schedule Schedule
		lastRun  string
		now      string
		want     bool
	}{
		{"daily anchor before time", Schedule{Interval: IntervalDay, Time: "09:00", Timezone: "UTC"}, "2024-03-09 10:00", "2024-03-10 08:00", false},
		{"daily anchor after time", Schedule{Interval: IntervalDay, Time: "09:00", Timezone: "UTC"}, "2024-03-09 10:00", "2024-03-10 09:30", true},
		{"daily anchor already ran today", Schedule{Interval: IntervalDay, Time: "09:00", Timezone: "UTC"}, "2024-03-10 09:01", "2024-03-10 23:00", false},
		{"daily ran before anchor same day", Schedule{Interval: IntervalDay, Time: "09:00", Timezone: "UTC"}, "2024-03-10 08:00", "2024-03-10 09:30", false},
		{"daily late run does not drift", Schedule{Interval: IntervalDay, Time: "09:00", Timezone: "UTC"}, "2024-03-09 09:01", "2024-03-10 09:00", true},
		{"every 2 days not yet", Schedule{Interval: IntervalDay, Every: 2, Time: "09:00", Timezone: "UTC"}, "2024-01-01 09:05", "2024-01-02 10:00", false},
		{"every 2 days due", Schedule{Interval: IntervalDay, Every: 2, Time: "09:00", Timezone: "UTC"}, "2024-01-01 09:05", "2024-01-03 09:00", true},
		{"unanchored hourly not yet", Schedule{Interval: IntervalHour, Every: 2, Timezone: "UTC"}, "2024-01-01 10:00", "2024-01-01 11:59", false},
		{"unanchored hourly due", Schedule{Interval: IntervalHour, Every: 2, Timezone: "UTC"}, "2024-01-01 10:00", "2024-01-01 12:00", true},
		{"minute interval", Schedule{Interval: IntervalMinute, Every: 5, Timezone: "UTC"}, "2024-01-01 10:00", "2024-01-01 10:05", true},
		{"hour anchored before minute", Schedule{Interval: IntervalHour, Minute: ptr(30), Timezone: "UTC"}, "2024-01-01 10:31", "2024-01-01 11:29", false},
		{"hour anchored under an hour elapsed", Schedule{Interval: IntervalHour, Minute: ptr(30), Timezone: "UTC"}, "2024-01-01 10:31", "2024-01-01 11:30", false},
		{"hour anchored full hour elapsed", Schedule{Interval: IntervalHour, Minute: ptr(30), Timezone: "UTC"}, "2024-01-01 10:31", "2024-01-01 11:31", true},
		{"hour anchored waits for minute", Schedule{Interval: IntervalHour, Minute: ptr(30), Timezone: "UTC"}, "2024-01-01 10:31", "2024-01-01 12:10", false},
		{"weekly before next monday", Schedule{Interval: IntervalWeek, DayOfWeek: ptr(1), Time: "08:00", Timezone: "UTC"}, "2024-01-01 08:05", "2024-01-07 23:59", false},
		{"weekly on next monday", Schedule{Interval: IntervalWeek, DayOfWeek: ptr(1), Time: "08:00", Timezone: "UTC"}, "2024-01-01 08:05", "2024-01-08 08:00", true},
		{"weekly next monday before time", Schedule{Interval: IntervalWeek, DayOfWeek: ptr(1), Time: "08:00", Timezone: "UTC"}, "2024-01-01 08:05", "2024-01-08 07:59", false},
		{"weekly missed monday runs tuesday", Schedule{Interval: IntervalWeek, DayOfWeek: ptr(1), Time: "08:00", Timezone: "UTC"}, "2024-01-01 08:05", "2024-01-09 06:00", true},
		{"unanchored weekly", Schedule{Interval: IntervalWeek, Timezone: "UTC"}, "2024-01-01 08:05", "2024-01-08 08:05", true},
		{"monthly clamps to short month", Schedule{Interval: IntervalMonth, DayOfMonth: 31, Timezone: "UTC"}, "2024-01-31 09:00", "2024-02-29 00:00", true},
		{"monthly before clamped anchor", Schedule{Interval: IntervalMonth, DayOfMonth: 31, Timezone: "UTC"}, "2024-01-31 09:00", "2024-02-28 23:00", false},
		{"monthly same month", Schedule{Interval: IntervalMonth, DayOfMonth: 1, Timezone: "UTC"}, "2024-02-01 00:05", "2024-02-28 23:00", false},
		{"unanchored monthly", Schedule{Interval: IntervalMonth, Timezone: "UTC"}, "2024-01-15 09:00", "2024-02-15 08:59", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			last := at(tt.lastRun)
			assert.Equal(t, tt.want, tt.schedule.Due(&last, at(tt.now)))
		})
	}
}

func TestScheduleDueWithoutLastRun(t *testing.T) {
	s := Schedule{Interval: IntervalMonth, DayOfMonth: 15, Time: "12:00"}
	assert.True(t, s.Due(nil, time.Now()))
}

func TestScheduleTimezone(t *testing.T) {
	s := Schedule{Interval: IntervalDay, Time: "09:00", Timezone: "Etc/GMT-2"} // UTC+2
	last := at("2024-03-09 08:00") // 10:00 local
	assert.False(t, s.Due(&last, at("2024-03-10 06:30")), "08:30 local")
	assert.True(t, s.Due(&last, at("2024-03-10 07:30")), "09:30 local")
}

func TestScheduleValidate(t *testing.T) {
	valid := Schedule{Interval: IntervalWeek, DayOfWeek: ptr(0), Time: "23:59", Timezone: "UTC"}
	assert.NoError(t, valid.Validate())

	for _, s := range []Schedule{
		{Interval: "fortnight"},
		{Interval: IntervalDay, Time: "25:00"},
		{Interval: IntervalDay, Time: "nine"},
		{Interval: IntervalWeek, DayOfWeek: ptr(7)},
		{Interval: IntervalMonth, DayOfMonth: 32},
		{Interval: IntervalHour, Minute: ptr(60)},
		{Interval: IntervalDay, Every: -1},
		{Interval: IntervalDay, Timezone: "Mars/Olympus"},
	} {
		assert.Error(t, s.Validate(), "%+v", s)
	}
}
