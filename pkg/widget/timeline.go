// Package widget builds the coarse next-departure timeline a home screen
// widget renders between host refreshes.
package widget

import (
	"time"

	"github.com/rycus86/localbus/pkg/schedule"
	"github.com/rycus86/localbus/pkg/timetables"
)

const (
	EntryInterval = time.Minute
	EntryCount    = 30
	RefreshAfter  = 30 * time.Minute
)

// DefaultTimes is shown when no document could be read or it has no
// timetable for the direction.
var DefaultTimes = []string{
	"06:00", "06:20", "06:40", "07:00", "07:20", "07:40",
	"08:00", "08:20", "08:40", "09:00", "09:20", "09:40",
}

type Entry struct {
	Date             time.Time `json:"date"`
	NextBusTime      string    `json:"next_bus_time,omitempty"`
	RemainingMinutes int       `json:"remaining_minutes"`
	Direction        string    `json:"direction"`
	ServiceEnded     bool      `json:"service_ended"`
}

type Timeline struct {
	Entries     []Entry   `json:"entries"`
	NextRefresh time.Time `json:"next_refresh"`
}

func Build(document *timetables.Document, direction timetables.Direction, now time.Time) Timeline {
	timeline := Timeline{
		Entries:     make([]Entry, 0, EntryCount),
		NextRefresh: now.Add(RefreshAfter),
	}

	for offset := 0; offset < EntryCount; offset++ {
		date := now.Add(time.Duration(offset) * EntryInterval)
		timeline.Entries = append(timeline.Entries, NewEntry(document, direction, date))
	}

	return timeline
}

func NewEntry(document *timetables.Document, direction timetables.Direction, date time.Time) Entry {
	times := DefaultTimes
	if _, ok := document.TimetableFor(direction); ok {
		times = document.ActiveTimes(date, direction)
	}

	entry := Entry{
		Date:      date,
		Direction: direction.Label(),
	}

	next, ok := schedule.FindNextBus(times, date)
	if !ok {
		entry.ServiceEnded = true
		return entry
	}

	entry.NextBusTime = next
	entry.RemainingMinutes, _ = schedule.MinutesUntil(next, date)

	return entry
}
