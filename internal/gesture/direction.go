package gesture

import (
	"fmt"
	"math"
	"strings"
)

// Direction is the compass sector of a swipe.
//
//	NW  N  NE
//	W  Any  E
//	SW  S  SE
type Direction int

const (
	DirectionAny Direction = iota
	DirectionN
	DirectionS
	DirectionE
	DirectionW
	DirectionNE
	DirectionNW
	DirectionSE
	DirectionSW
)

// obliqueRatio is tan(22.5°), the boundary between a cardinal and a diagonal sector.
const obliqueRatio = 0.414

var directionNames = map[Direction]string{
	DirectionAny: "any",
	DirectionN:   "n",
	DirectionS:   "s",
	DirectionE:   "e",
	DirectionW:   "w",
	DirectionNE:  "ne",
	DirectionNW:  "nw",
	DirectionSE:  "se",
	DirectionSW:  "sw",
}

// Classify maps a motion delta to a compass sector.
//
// Device coordinates grow downward, so a negative dy points north. A tie
// between |dx| and |dy| resolves through the vertical branch. Only the exact
// zero vector yields DirectionAny.
func Classify(dx, dy float64) Direction {
	ax, ay := math.Abs(dx), math.Abs(dy)
	if ax == 0 && ay == 0 {
		return DirectionAny
	}

	if ax > ay {
		base := DirectionE
		if dx < 0 {
			base = DirectionW
		}
		if ay/ax <= obliqueRatio {
			return base
		}
		north := dy < 0
		switch {
		case base == DirectionW && north:
			return DirectionNW
		case base == DirectionW:
			return DirectionSW
		case north:
			return DirectionNE
		default:
			return DirectionSE
		}
	}

	base := DirectionS
	if dy < 0 {
		base = DirectionN
	}
	if ax/ay <= obliqueRatio {
		return base
	}
	west := dx < 0
	switch {
	case base == DirectionN && west:
		return DirectionNW
	case base == DirectionN:
		return DirectionNE
	case west:
		return DirectionSW
	default:
		return DirectionSE
	}
}

// String returns the lowercase config spelling of the direction.
func (d Direction) String() string {
	if name, ok := directionNames[d]; ok {
		return name
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty input means any.
func (d *Direction) UnmarshalText(text []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(text)))
	if s == "" {
		*d = DirectionAny
		return nil
	}
	for dir, name := range directionNames {
		if name == s {
			*d = dir
			return nil
		}
	}
	return fmt.Errorf("%w: direction %q", ErrUnknownValue, string(text))
}

// InOut is the pinch analog of Direction.
type InOut int

const (
	InOutAny InOut = iota
	InOutIn
	InOutOut
)

// PinchDirection reports Out for a growing spread and In otherwise.
func PinchDirection(scale float64) InOut {
	if scale > 1.0 {
		return InOutOut
	}
	return InOutIn
}

func (io InOut) String() string {
	switch io {
	case InOutAny:
		return "any"
	case InOutIn:
		return "in"
	case InOutOut:
		return "out"
	default:
		return fmt.Sprintf("InOut(%d)", int(io))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (io InOut) MarshalText() ([]byte, error) {
	return []byte(io.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty input means any.
func (io *InOut) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "", "any":
		*io = InOutAny
	case "in":
		*io = InOutIn
	case "out":
		*io = InOutOut
	default:
		return fmt.Errorf("%w: pinch direction %q", ErrUnknownValue, string(text))
	}
	return nil
}

// Repeat is the repeat mode of a rotate binding. It is carried through
// configuration but no dispatch path reads it.
type Repeat int

const (
	RepeatOneshot Repeat = iota
	RepeatContinuous
)

func (r Repeat) String() string {
	if r == RepeatContinuous {
		return "continuous"
	}
	return "oneshot"
}

// MarshalText implements encoding.TextMarshaler.
func (r Repeat) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Repeat) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "", "oneshot":
		*r = RepeatOneshot
	case "continuous":
		*r = RepeatContinuous
	default:
		return fmt.Errorf("%w: repeat %q", ErrUnknownValue, string(text))
	}
	return nil
}
