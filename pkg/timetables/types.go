package timetables

import "fmt"

// Document is one complete timetable release. It is replaced wholesale on
// refresh and never mutated after decoding.
type Document struct {
	Meta      Meta                     `json:"meta"`
	Holidays  []string                 `json:"holidays" validate:"required,dive,datetime=2006-01-02"`
	Timetable *Timetable               `json:"timetable,omitempty"`
	Routes    map[Direction]*RouteData `json:"routes"`
}

type Meta struct {
	Version       int     `json:"version"`
	UpdatedAt     string  `json:"updated_at" validate:"required"`
	NoticeMessage *string `json:"notice_message"`
	ContactEmail  string  `json:"contact_email"`
}

type RouteData struct {
	Name            string    `json:"name" validate:"required"`
	DurationMinutes int       `json:"duration_minutes"`
	Fare            int       `json:"fare"`
	Stops           []BusStop `json:"stops" validate:"dive"`
	Timetable       Timetable `json:"timetable"`
}

type BusStop struct {
	ID          string  `json:"id" validate:"required"`
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description"`
	IsDeparture bool    `json:"is_departure"`
}

// Timetable holds departure times as HH:mm, ascending within each list.
type Timetable struct {
	Weekday []string `json:"weekday"`
	Weekend []string `json:"weekend"`
}

type Direction string

const (
	Outbound Direction = "jangyu_to_sasang"
	Inbound  Direction = "sasang_to_jangyu"
)

var Directions = []Direction{Outbound, Inbound}

func (d Direction) Label() string {
	switch d {
	case Outbound:
		return "장유 → 사상"
	case Inbound:
		return "사상 → 장유"
	default:
		return string(d)
	}
}

func ParseDirection(value string) (Direction, error) {
	for _, direction := range Directions {
		if string(direction) == value {
			return direction, nil
		}
	}

	return "", fmt.Errorf("unknown direction: %s", value)
}

// Source tells which tier of the loading chain produced a document.
type Source int

const (
	SourceRemote Source = iota
	SourceCache
	SourceBundle
)

func (s Source) String() string {
	switch s {
	case SourceRemote:
		return "remote"
	case SourceCache:
		return "cache"
	case SourceBundle:
		return "bundle"
	default:
		return fmt.Sprintf("Source(%d)", int(s))
	}
}

func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Source) UnmarshalText(text []byte) error {
	for _, candidate := range []Source{SourceRemote, SourceCache, SourceBundle} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}

	return fmt.Errorf("unknown source: %s", text)
}

// Offline is true whenever the remote fetch did not succeed.
func (s Source) Offline() bool {
	return s != SourceRemote
}
