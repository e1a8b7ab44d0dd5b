// Package touchpad turns a multitouch evdev device into gesture events.
//
// The package covers device discovery on a udev seat, restricted opening of
// the event node, a poll-based reader and a Recognizer that folds evdev
// frames into swipe, pinch and hold sessions for the gesture dispatcher.
//
// # Recognition
//
// Finger count comes from the BTN_TOOL_* keys and contact positions from the
// multitouch slots. Once two or more fingers rest on the pad a pending gesture
// starts; it becomes a pinch when the finger spread changes by more than the
// pinch threshold, a swipe when the centroid travels past the swipe threshold
// and a hold when neither happens within the hold timeout. Lifting all
// fingers ends the gesture. Lifting some of them ends it too, after which the
// recognizer waits for the pad to clear. Adding a finger cancels the gesture
// and starts over with the new count.
//
// Motion is reported in 1000 dpi units when the device advertises its axis
// resolution.
package touchpad
