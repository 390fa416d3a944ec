package machinist

import "fmt"

// State describes the machine lifecycle state. It is persisted as its
// string form so the stored record stays readable across versions.
type State uint8

const (
	Stopped State = iota
	Starting
	Up
	Rescue
	Unreachable
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Up:
		return "up"
	case Rescue:
		return "rescue"
	case Unreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// ParseState is the inverse of String.
func ParseState(s string) (State, error) {
	switch s {
	case "stopped":
		return Stopped, nil
	case "starting":
		return Starting, nil
	case "up":
		return Up, nil
	case "rescue":
		return Rescue, nil
	case "unreachable":
		return Unreachable, nil
	default:
		return Stopped, fmt.Errorf("unknown machine state %q", s)
	}
}

// Started reports whether the machine is booting or already reachable.
func (s State) Started() bool {
	return s == Starting || s == Up
}
