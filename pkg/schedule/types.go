package schedule

import "fmt"

// Type is the bucket of departure times that applies to a day.
type Type int

const (
	Weekday Type = iota
	Weekend
)

func (t Type) String() string {
	switch t {
	case Weekday:
		return "weekday"
	case Weekend:
		return "weekend"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}

	*t = parsed
	return nil
}

func ParseType(value string) (Type, error) {
	switch value {
	case "weekday":
		return Weekday, nil
	case "weekend":
		return Weekend, nil
	default:
		return Weekday, fmt.Errorf("unknown schedule type: %s", value)
	}
}

type HolidaySet map[string]struct{}

func NewHolidaySet(dates []string) HolidaySet {
	set := make(HolidaySet, len(dates))
	for _, date := range dates {
		set[date] = struct{}{}
	}

	return set
}

func (s HolidaySet) Contains(date string) bool {
	_, ok := s[date]
	return ok
}
