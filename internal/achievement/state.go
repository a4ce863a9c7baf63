package achievement

import "fmt"

// State is what a single day shows for a habit.
type State uint8

const (
	NoRecord State = iota
	Achieved
	NotAchieved
)

// Next follows the toggle cycle none -> achieved -> notAchieved -> none.
func (s State) Next() State {
	switch s {
	case NoRecord:
		return Achieved
	case Achieved:
		return NotAchieved
	default:
		return NoRecord
	}
}

func (s State) String() string {
	switch s {
	case Achieved:
		return "achieved"
	case NotAchieved:
		return "notAchieved"
	default:
		return "none"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "none", "":
		*s = NoRecord
	case "achieved":
		*s = Achieved
	case "notAchieved":
		*s = NotAchieved
	default:
		return fmt.Errorf("unknown achievement state %q", string(b))
	}
	return nil
}
