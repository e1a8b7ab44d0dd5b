package gesture

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/gestured/internal/config"
)

// FromConfig builds the binding list from the configuration file's gesture
// section, applying swipe defaults and validating each binding.
func FromConfig(gcs []config.GestureConfig) (Bindings, error) {
	bs := make(Bindings, 0, len(gcs))
	for i, gc := range gcs {
		b, err := bindingFromConfig(gc)
		if err != nil {
			return nil, fmt.Errorf("gestures[%d]: %w", i, err)
		}
		bs = append(bs, b)
	}
	if err := bs.Validate(); err != nil {
		return nil, err
	}
	return bs, nil
}

func bindingFromConfig(gc config.GestureConfig) (Binding, error) {
	var b Binding
	if err := b.Kind.UnmarshalText([]byte(gc.Type)); err != nil {
		return Binding{}, err
	}
	b.Fingers = gc.Fingers
	b.Start, b.Update, b.End, b.Action = gc.Start, gc.Update, gc.End, gc.Action
	b.Acceleration = gc.Acceleration
	b.MouseUpDelay = time.Duration(gc.MouseUpDelay) * time.Millisecond
	b.Scale = gc.Scale
	b.DeltaAngle = gc.DeltaAngle

	switch b.Kind {
	case KindSwipe:
		if err := b.Direction.UnmarshalText([]byte(gc.Direction)); err != nil {
			return Binding{}, err
		}
	case KindPinch:
		if err := b.InOut.UnmarshalText([]byte(gc.Direction)); err != nil {
			return Binding{}, err
		}
	case KindRotate:
		if err := b.Repeat.UnmarshalText([]byte(gc.Repeat)); err != nil {
			return Binding{}, err
		}
	}
	return b.WithDefaults(), nil
}
