package gesture

import (
	"fmt"
	"strings"
	"time"
)

// Swipe defaults applied when a binding omits them.
const (
	DefaultAcceleration = 1.5
	DefaultMouseUpDelay = 900 * time.Millisecond
)

// Kind discriminates gesture shapes shared by bindings and live state.
type Kind int

const (
	KindSwipe Kind = iota
	KindPinch
	KindHold
	KindRotate
)

func (k Kind) String() string {
	switch k {
	case KindSwipe:
		return "swipe"
	case KindPinch:
		return "pinch"
	case KindHold:
		return "hold"
	case KindRotate:
		return "rotate"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "swipe":
		*k = KindSwipe
	case "pinch":
		*k = KindPinch
	case "hold":
		*k = KindHold
	case "rotate":
		*k = KindRotate
	default:
		return fmt.Errorf("%w: gesture type %q", ErrUnknownValue, string(text))
	}
	return nil
}

// Binding is one configured reaction. Which fields are meaningful depends on Kind:
//   - Swipe: Direction, Start, Update, End, Acceleration, MouseUpDelay
//   - Pinch: InOut, Start, Update, End
//   - Hold: Action
//   - Rotate: Scale, DeltaAngle, Repeat, Action
type Binding struct {
	Kind    Kind
	Fingers int

	Direction Direction
	InOut     InOut

	Start  string
	Update string
	End    string
	Action string

	Acceleration float64
	// MouseUpDelay is only used by wildcard swipes (drag emulation).
	MouseUpDelay time.Duration

	Scale      float64
	DeltaAngle float64
	Repeat     Repeat
}

// IsDrag reports whether the binding emulates a pointer drag.
func (b Binding) IsDrag() bool {
	return b.Kind == KindSwipe && b.Direction == DirectionAny
}

// Validate checks a binding in isolation.
func (b Binding) Validate() error {
	if b.Fingers < 1 {
		return fmt.Errorf("%w: %s fingers must be >= 1, got %d", ErrInvalidBinding, b.Kind, b.Fingers)
	}
	switch b.Kind {
	case KindSwipe:
		if b.Acceleration <= 0 {
			return fmt.Errorf("%w: swipe acceleration must be > 0, got %g", ErrInvalidBinding, b.Acceleration)
		}
		if b.MouseUpDelay < 0 {
			return fmt.Errorf("%w: swipe mouse_up_delay cannot be negative", ErrInvalidBinding)
		}
	case KindPinch:
	case KindHold, KindRotate:
		if strings.TrimSpace(b.Action) == "" {
			return fmt.Errorf("%w: %s binding requires an action", ErrInvalidBinding, b.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidBinding, int(b.Kind))
	}
	return nil
}

// WithDefaults fills unset swipe tuning values.
func (b Binding) WithDefaults() Binding {
	if b.Kind == KindSwipe {
		if b.Acceleration == 0 {
			b.Acceleration = DefaultAcceleration
		}
		if b.MouseUpDelay == 0 {
			b.MouseUpDelay = DefaultMouseUpDelay
		}
	}
	return b
}

// Bindings is the ordered, read-only binding list. Order carries no priority.
type Bindings []Binding

// OfKind returns the bindings of one kind in configuration order.
func (bs Bindings) OfKind(k Kind) Bindings {
	out := make(Bindings, 0, len(bs))
	for _, b := range bs {
		if b.Kind == k {
			out = append(out, b)
		}
	}
	return out
}

// Validate checks every binding and reports the first failure with its index.
func (bs Bindings) Validate() error {
	for i, b := range bs {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("gestures[%d]: %w", i, err)
		}
	}
	return nil
}
