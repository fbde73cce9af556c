package timetables

import (
	"fmt"
	"time"

	"github.com/rycus86/localbus/pkg/schedule"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const noTime = "--:--"

// Board is what the departure screen shows at one instant. It is cheap to
// rebuild, so callers recompute it on every tick rather than updating it.
type Board struct {
	Direction      Direction     `json:"direction"`
	DirectionLabel string        `json:"direction_label"`
	ScheduleType   schedule.Type `json:"schedule_type"`
	Now            time.Time     `json:"now"`
	Times          []string      `json:"times"`

	NextBus          string `json:"next_bus,omitempty"`
	HasNextBus       bool   `json:"has_next_bus"`
	ServiceEnded     bool   `json:"service_ended"`
	MinutesUntilNext int    `json:"minutes_until_next"`
	SecondsUntilNext int    `json:"seconds_until_next"`

	FirstBus                   string `json:"first_bus"`
	LastBus                    string `json:"last_bus"`
	MinutesUntilTomorrowsFirst int    `json:"minutes_until_tomorrows_first"`

	Notice          string    `json:"notice,omitempty"`
	Stops           []BusStop `json:"stops"`
	DurationMinutes int       `json:"duration_minutes"`
	Fare            int       `json:"fare"`
}

func NewBoard(document *Document, direction Direction, scheduleType schedule.Type, now time.Time) Board {
	times := document.Times(direction, scheduleType)

	board := Board{
		Direction:      direction,
		DirectionLabel: direction.Label(),
		ScheduleType:   scheduleType,
		Now:            now.In(schedule.Location),
		Times:          times,
		FirstBus:       noTime,
		LastBus:        noTime,
		Notice:         document.Notice(),
		Stops:          document.Stops(direction),
	}

	if route, ok := document.Route(direction); ok {
		board.DurationMinutes = route.DurationMinutes
		board.Fare = route.Fare
	}

	if len(times) > 0 {
		board.FirstBus = times[0]
		board.LastBus = times[len(times)-1]

		if minutes, err := schedule.MinutesUntilNextDay(board.FirstBus, now); err == nil {
			board.MinutesUntilTomorrowsFirst = minutes
		}
	}

	if next, ok := schedule.FindNextBus(times, now); ok {
		board.NextBus = next
		board.HasNextBus = true
		// FindNextBus only returns well formed entries
		board.MinutesUntilNext, _ = schedule.MinutesUntil(next, now)
		board.SecondsUntilNext, _ = schedule.SecondsUntil(next, now)
	} else {
		board.ServiceEnded = len(times) > 0
	}

	return board
}

// NewBoardForToday picks the weekday or weekend list from the calendar.
func NewBoardForToday(document *Document, direction Direction, now time.Time) Board {
	return NewBoard(document, direction, document.ScheduleTypeFor(now), now)
}

func (b Board) CountdownText() string {
	if !b.HasNextBus || b.SecondsUntilNext <= 0 {
		return noTime
	}

	return fmt.Sprintf("%02d:%02d", b.SecondsUntilNext/60, b.SecondsUntilNext%60)
}

func (b Board) RemainingText() string {
	if !b.HasNextBus {
		return ""
	}

	return formatMinutes(b.MinutesUntilNext)
}

func (b Board) UntilFirstBusText() string {
	if len(b.Times) == 0 {
		return ""
	}

	return formatMinutes(b.MinutesUntilTomorrowsFirst)
}

func formatMinutes(minutes int) string {
	switch {
	case minutes == 0:
		return "arriving now"
	case minutes < 60:
		return fmt.Sprintf("%d min", minutes)
	case minutes%60 > 0:
		return fmt.Sprintf("%d h %d min", minutes/60, minutes%60)
	default:
		return fmt.Sprintf("%d h", minutes/60)
	}
}

// FareText groups thousands the way Korean fares are printed.
func (b Board) FareText() string {
	return message.NewPrinter(language.Korean).Sprintf("%d KRW", b.Fare)
}
