package timetables

import (
	"time"

	"github.com/rycus86/localbus/pkg/schedule"
)

// TimetableFor prefers the direction's route and falls back to the legacy
// single timetable of older documents.
func (d *Document) TimetableFor(direction Direction) (Timetable, bool) {
	if d == nil {
		return Timetable{}, false
	}

	if route, ok := d.Routes[direction]; ok && route != nil {
		return route.Timetable, true
	}

	if d.Timetable != nil {
		return *d.Timetable, true
	}

	return Timetable{}, false
}

func (d *Document) Times(direction Direction, scheduleType schedule.Type) []string {
	timetable, ok := d.TimetableFor(direction)
	if !ok {
		return []string{}
	}

	if scheduleType == schedule.Weekday {
		return timetable.Weekday
	}

	return timetable.Weekend
}

func (d *Document) HolidaySet() schedule.HolidaySet {
	if d == nil {
		return schedule.HolidaySet{}
	}

	return schedule.NewHolidaySet(d.Holidays)
}

func (d *Document) ScheduleTypeFor(date time.Time) schedule.Type {
	return schedule.TypeFor(date, d.HolidaySet())
}

// ActiveTimes is the departure list in effect on date for direction.
func (d *Document) ActiveTimes(date time.Time, direction Direction) []string {
	return d.Times(direction, d.ScheduleTypeFor(date))
}

func (d *Document) Route(direction Direction) (*RouteData, bool) {
	if d == nil {
		return nil, false
	}

	route, ok := d.Routes[direction]
	return route, ok && route != nil
}

func (d *Document) Stops(direction Direction) []BusStop {
	if route, ok := d.Route(direction); ok {
		return route.Stops
	}

	return []BusStop{}
}

func (d *Document) HasRoutes() bool {
	return d != nil && d.Routes != nil
}

func (d *Document) Notice() string {
	if d == nil || d.Meta.NoticeMessage == nil {
		return ""
	}

	return *d.Meta.NoticeMessage
}

func (d *Document) HasNotice() bool {
	return d.Notice() != ""
}
