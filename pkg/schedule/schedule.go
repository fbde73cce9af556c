package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "time/tzdata"
)

const (
	// DateFormat is the layout of holiday entries.
	DateFormat = "2006-01-02"

	minutesPerDay = 24 * 60
)

// Location is the service region's local time. Every computation in this
// package reads clock and calendar fields in it.
var Location = loadLocation("Asia/Seoul")

func loadLocation(name string) *time.Location {
	location, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("KST", 9*60*60)
	}

	return location
}

var ErrInvalidClock = errors.New("invalid HH:mm time")

// Clock is a time of day with minute precision.
type Clock struct {
	Hour   int
	Minute int
}

func ParseClock(value string) (Clock, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}

	return Clock{Hour: hour, Minute: minute}, nil
}

func (c Clock) MinuteOfDay() int {
	return c.Hour*60 + c.Minute
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func minuteOfDay(t time.Time) int {
	local := t.In(Location)
	return local.Hour()*60 + local.Minute()
}

// IsWeekday reports whether date falls on Monday to Friday.
func IsWeekday(date time.Time) bool {
	weekday := date.In(Location).Weekday()
	return weekday >= time.Monday && weekday <= time.Friday
}

// IsHoliday reports whether the calendar day of date is listed in holidays.
func IsHoliday(date time.Time, holidays HolidaySet) bool {
	return holidays.Contains(date.In(Location).Format(DateFormat))
}

// ShouldUseWeekdaySchedule is the single rule for picking the weekday list:
// a holiday always turns a weekday into a weekend day.
func ShouldUseWeekdaySchedule(date time.Time, holidays HolidaySet) bool {
	return IsWeekday(date) && !IsHoliday(date, holidays)
}

func TypeFor(date time.Time, holidays HolidaySet) Type {
	if ShouldUseWeekdaySchedule(date, holidays) {
		return Weekday
	}

	return Weekend
}

// FindNextBus returns the first entry of times at or after the clock time of
// from. times must be sorted ascending. Malformed entries are skipped.
func FindNextBus(times []string, from time.Time) (string, bool) {
	current := minuteOfDay(from)

	for _, value := range times {
		clock, err := ParseClock(value)
		if err != nil {
			continue
		}

		if clock.MinuteOfDay() >= current {
			return value, true
		}
	}

	return "", false
}

// MinutesUntil ignores the date and seconds of from. The result is negative
// for a time that already passed today.
func MinutesUntil(timeString string, from time.Time) (int, error) {
	clock, err := ParseClock(timeString)
	if err != nil {
		return 0, err
	}

	return clock.MinuteOfDay() - minuteOfDay(from), nil
}

func SecondsUntil(timeString string, from time.Time) (int, error) {
	minutes, err := MinutesUntil(timeString, from)
	if err != nil {
		return 0, err
	}

	return minutes*60 - from.In(Location).Second(), nil
}

// MinutesUntilNextDay counts the rest of today plus the minutes from midnight
// to timeString. It always crosses midnight, even when timeString is still
// ahead today: 00:30 to 06:00 gives 1770, not 330.
func MinutesUntilNextDay(timeString string, from time.Time) (int, error) {
	clock, err := ParseClock(timeString)
	if err != nil {
		return 0, err
	}

	return (minutesPerDay - minuteOfDay(from)) + clock.MinuteOfDay(), nil
}

// ReminderTime is the next instant, not before from, whose clock time is
// lead minutes ahead of timeString.
func ReminderTime(timeString string, lead int, from time.Time) (time.Time, error) {
	clock, err := ParseClock(timeString)
	if err != nil {
		return time.Time{}, err
	}

	local := from.In(Location)
	departure := time.Date(local.Year(), local.Month(), local.Day(), clock.Hour, clock.Minute, 0, 0, Location)
	at := departure.Add(-time.Duration(lead) * time.Minute)

	for at.Before(local) {
		departure = departure.AddDate(0, 0, 1)
		at = departure.Add(-time.Duration(lead) * time.Minute)
	}

	return at, nil
}
