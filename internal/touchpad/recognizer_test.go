package touchpad

import (
	"syscall"
	"testing"
	"time"

	evdev "github.com/gvalkov/golang-evdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/gestured/internal/gesture"
)

var toolCodes = map[int]uint16{
	1: evdev.BTN_TOOL_FINGER,
	2: evdev.BTN_TOOL_DOUBLETAP,
	3: evdev.BTN_TOOL_TRIPLETAP,
	4: evdev.BTN_TOOL_QUADTAP,
	5: evdev.BTN_TOOL_QUINTTAP,
}

// pad drives a Recognizer with synthetic evdev frames.
type pad struct {
	t   *testing.T
	r   *Recognizer
	now time.Time
	evs []evdev.InputEvent
}

func newPad(t *testing.T, cfg RecognizerConfig) *pad {
	return &pad{t: t, r: NewRecognizer(cfg), now: time.Unix(1700000000, 0)}
}

func (p *pad) push(typ, code uint16, value int32) *pad {
	p.evs = append(p.evs, evdev.InputEvent{
		Time:  syscall.NsecToTimeval(p.now.UnixNano()),
		Type:  typ,
		Code:  code,
		Value: value,
	})
	return p
}

func (p *pad) tool(n int, down bool) *pad {
	v := int32(0)
	if down {
		v = 1
	}
	return p.push(evdev.EV_KEY, toolCodes[n], v)
}

func (p *pad) down(slot int, x, y int32) *pad {
	p.push(evdev.EV_ABS, evdev.ABS_MT_SLOT, int32(slot))
	p.push(evdev.EV_ABS, evdev.ABS_MT_TRACKING_ID, int32(100+slot))
	return p.move(slot, x, y)
}

func (p *pad) move(slot int, x, y int32) *pad {
	p.push(evdev.EV_ABS, evdev.ABS_MT_SLOT, int32(slot))
	p.push(evdev.EV_ABS, evdev.ABS_MT_POSITION_X, x)
	return p.push(evdev.EV_ABS, evdev.ABS_MT_POSITION_Y, y)
}

func (p *pad) up(slot int) *pad {
	p.push(evdev.EV_ABS, evdev.ABS_MT_SLOT, int32(slot))
	return p.push(evdev.EV_ABS, evdev.ABS_MT_TRACKING_ID, -1)
}

// sync ends the frame after advancing the clock by dt and returns the
// gesture events it produced.
func (p *pad) sync(dt time.Duration) []gesture.Event {
	p.t.Helper()
	p.now = p.now.Add(dt)
	p.push(evdev.EV_SYN, evdev.SYN_REPORT, 0)
	var out []gesture.Event
	for _, ev := range p.evs {
		out = append(out, p.r.Feed(ev)...)
	}
	p.evs = nil
	return out
}

// threeDown places three fingers in a row 100 units apart.
func (p *pad) threeDown() {
	p.t.Helper()
	p.tool(3, true).down(0, 100, 100).down(1, 200, 100).down(2, 300, 100)
	require.Empty(p.t, p.sync(0))
}

func (p *pad) liftAll(n int) []gesture.Event {
	p.tool(n, false)
	for slot := 0; slot < n; slot++ {
		p.up(slot)
	}
	return p.sync(10 * time.Millisecond)
}

type phase struct {
	Kind      gesture.Kind
	Phase     gesture.Phase
	Fingers   int
	Cancelled bool
}

func phases(evs []gesture.Event) []phase {
	out := make([]phase, 0, len(evs))
	for _, e := range evs {
		out = append(out, phase{e.Kind, e.Phase, e.Fingers, e.Cancelled})
	}
	return out
}

func TestRecognizer_Swipe(t *testing.T) {
	p := newPad(t, RecognizerConfig{})
	p.threeDown()

	evs := p.move(0, 150, 100).move(1, 250, 100).move(2, 350, 100).sync(10 * time.Millisecond)
	require.Len(t, evs, 2)
	assert.Equal(t, []phase{
		{gesture.KindSwipe, gesture.PhaseBegin, 3, false},
		{gesture.KindSwipe, gesture.PhaseUpdate, 3, false},
	}, phases(evs))
	assert.InDelta(t, 50, evs[1].DX, 1e-9)
	assert.InDelta(t, 0, evs[1].DY, 1e-9)

	evs = p.move(0, 150, 70).move(1, 250, 70).move(2, 350, 70).sync(10 * time.Millisecond)
	require.Len(t, evs, 1)
	assert.InDelta(t, 0, evs[0].DX, 1e-9)
	assert.InDelta(t, -30, evs[0].DY, 1e-9)
	assert.Equal(t, gesture.DirectionN, gesture.Classify(evs[0].DX, evs[0].DY))

	evs = p.liftAll(3)
	assert.Equal(t, []phase{{gesture.KindSwipe, gesture.PhaseEnd, 3, false}}, phases(evs))
}

func TestRecognizer_SmallMotionStaysPending(t *testing.T) {
	p := newPad(t, RecognizerConfig{})
	p.threeDown()

	evs := p.move(0, 110, 100).move(1, 210, 100).move(2, 310, 100).sync(10 * time.Millisecond)
	assert.Empty(t, evs)

	// Lifting before anything was recognized produces nothing.
	assert.Empty(t, p.liftAll(3))
}

func TestRecognizer_Pinch(t *testing.T) {
	p := newPad(t, RecognizerConfig{})
	p.tool(2, true).down(0, 100, 100).down(1, 300, 100)
	require.Empty(t, p.sync(0))

	evs := p.move(0, 50, 100).move(1, 350, 100).sync(10 * time.Millisecond)
	assert.Equal(t, []phase{
		{gesture.KindPinch, gesture.PhaseBegin, 2, false},
		{gesture.KindPinch, gesture.PhaseUpdate, 2, false},
	}, phases(evs))
	assert.InDelta(t, 1.5, evs[1].Scale, 1e-9)
	assert.Equal(t, gesture.InOutOut, gesture.PinchDirection(evs[1].Scale))

	evs = p.move(0, 150, 100).move(1, 250, 100).sync(10 * time.Millisecond)
	require.Len(t, evs, 1)
	assert.InDelta(t, 0.5, evs[0].Scale, 1e-9)

	evs = p.liftAll(2)
	assert.Equal(t, []phase{{gesture.KindPinch, gesture.PhaseEnd, 2, false}}, phases(evs))
}

func TestRecognizer_HoldOnFrame(t *testing.T) {
	p := newPad(t, RecognizerConfig{})
	p.threeDown()

	assert.Empty(t, p.sync(100*time.Millisecond))
	evs := p.sync(100 * time.Millisecond)
	assert.Equal(t, []phase{{gesture.KindHold, gesture.PhaseBegin, 3, false}}, phases(evs))

	evs = p.liftAll(3)
	assert.Equal(t, []phase{{gesture.KindHold, gesture.PhaseEnd, 3, false}}, phases(evs))
}

func TestRecognizer_HoldOnTick(t *testing.T) {
	p := newPad(t, RecognizerConfig{HoldTimeout: 250 * time.Millisecond})
	start := p.now
	p.threeDown()

	deadline, ok := p.r.Deadline()
	require.True(t, ok)
	assert.True(t, start.Add(250*time.Millisecond).Equal(deadline))

	assert.Empty(t, p.r.Tick(start.Add(100*time.Millisecond)))
	evs := p.r.Tick(deadline)
	assert.Equal(t, []phase{{gesture.KindHold, gesture.PhaseBegin, 3, false}}, phases(evs))

	_, ok = p.r.Deadline()
	assert.False(t, ok)
	assert.Empty(t, p.r.Tick(deadline.Add(time.Second)))
}

func TestRecognizer_HoldBrokenByMotion(t *testing.T) {
	p := newPad(t, RecognizerConfig{})
	p.threeDown()
	require.Len(t, p.r.Tick(p.now.Add(time.Second)), 1)

	evs := p.move(0, 100, 200).move(1, 200, 200).move(2, 300, 200).sync(10 * time.Millisecond)
	assert.Equal(t, []phase{{gesture.KindHold, gesture.PhaseEnd, 3, true}}, phases(evs))

	// The moved position is the new origin of a pending gesture.
	evs = p.move(0, 100, 300).move(1, 200, 300).move(2, 300, 300).sync(10 * time.Millisecond)
	assert.Equal(t, []phase{
		{gesture.KindSwipe, gesture.PhaseBegin, 3, false},
		{gesture.KindSwipe, gesture.PhaseUpdate, 3, false},
	}, phases(evs))
}

func TestRecognizer_FingerAddedCancels(t *testing.T) {
	p := newPad(t, RecognizerConfig{})
	p.threeDown()
	p.move(0, 150, 100).move(1, 250, 100).move(2, 350, 100).sync(10 * time.Millisecond)

	evs := p.tool(3, false).tool(4, true).down(3, 400, 100).sync(10 * time.Millisecond)
	assert.Equal(t, []phase{{gesture.KindSwipe, gesture.PhaseEnd, 3, true}}, phases(evs))

	evs = p.move(0, 150, 200).move(1, 250, 200).move(2, 350, 200).move(3, 400, 200).sync(10 * time.Millisecond)
	require.NotEmpty(t, evs)
	assert.Equal(t, phase{gesture.KindSwipe, gesture.PhaseBegin, 4, false}, phases(evs)[0])
}

func TestRecognizer_FingerLiftedEnds(t *testing.T) {
	p := newPad(t, RecognizerConfig{})
	p.threeDown()
	p.move(0, 150, 100).move(1, 250, 100).move(2, 350, 100).sync(10 * time.Millisecond)

	evs := p.tool(3, false).tool(2, true).up(2).sync(10 * time.Millisecond)
	assert.Equal(t, []phase{{gesture.KindSwipe, gesture.PhaseEnd, 3, false}}, phases(evs))

	// Remaining fingers are ignored until the pad clears.
	assert.Empty(t, p.move(0, 400, 400).move(1, 500, 400).sync(10*time.Millisecond))
	assert.Empty(t, p.sync(time.Second))
	assert.Empty(t, p.liftAll(2))

	p.threeDown()
	evs = p.move(0, 150, 100).move(1, 250, 100).move(2, 350, 100).sync(10 * time.Millisecond)
	assert.Len(t, evs, 2)
}

func TestRecognizer_SingleFingerIgnored(t *testing.T) {
	p := newPad(t, RecognizerConfig{})
	p.tool(1, true).down(0, 100, 100)
	assert.Empty(t, p.sync(0))
	assert.Empty(t, p.move(0, 500, 500).sync(10*time.Millisecond))
	assert.Empty(t, p.sync(time.Second))
	_, ok := p.r.Deadline()
	assert.False(t, ok)
}

func TestRecognizer_DroppedLiftEndsGesture(t *testing.T) {
	p := newPad(t, RecognizerConfig{})
	p.threeDown()
	evs := p.move(0, 150, 100).move(1, 250, 100).move(2, 350, 100).sync(10 * time.Millisecond)
	require.Len(t, evs, 2)

	// The lift is lost in the overflow; the pad has no fingers afterwards.
	p.push(evdev.EV_SYN, evdev.SYN_DROPPED, 0)
	evs = p.liftAll(3)
	assert.Equal(t, []phase{{gesture.KindSwipe, gesture.PhaseEnd, 3, false}}, phases(evs))
	assert.Equal(t, 0, p.r.fingerCount())

	p.tool(2, true).down(0, 100, 100).down(1, 300, 100)
	require.Empty(t, p.sync(10*time.Millisecond))
	evs = p.move(0, 150, 100).move(1, 350, 100).sync(10 * time.Millisecond)
	assert.Equal(t, []phase{
		{gesture.KindSwipe, gesture.PhaseBegin, 2, false},
		{gesture.KindSwipe, gesture.PhaseUpdate, 2, false},
	}, phases(evs))
}

func TestRecognizer_DroppedFrameResyncsFromPad(t *testing.T) {
	moved := PadState{Fingers: 3, Slot: 2}
	for i, x := range []int32{150, 250, 350} {
		moved.Contacts[i] = Contact{Active: true, X: x, Y: 100}
	}
	calls := 0
	p := newPad(t, RecognizerConfig{Resync: func() (PadState, error) {
		calls++
		return moved, nil
	}})
	p.threeDown()

	// Events inside the dropped window are ignored; the resynced state counts.
	p.push(evdev.EV_SYN, evdev.SYN_DROPPED, 0)
	evs := p.move(0, 900, 100).sync(10 * time.Millisecond)
	assert.Equal(t, 1, calls)
	require.Len(t, evs, 2)
	assert.Equal(t, gesture.KindSwipe, evs[0].Kind)
	assert.InDelta(t, 50, evs[1].DX, 1e-9)

	// Following deltas apply on top of the resynced slots.
	evs = p.move(2, 350, 130).sync(10 * time.Millisecond)
	require.Len(t, evs, 1)
	assert.InDelta(t, 10, evs[0].DY, 1e-9)
}

func TestRecognizer_ResyncFailureAssumesLift(t *testing.T) {
	p := newPad(t, RecognizerConfig{Resync: func() (PadState, error) {
		return PadState{}, syscall.ENODEV
	}})
	p.threeDown()
	_, ok := p.r.Deadline()
	require.True(t, ok)

	p.push(evdev.EV_SYN, evdev.SYN_DROPPED, 0)
	assert.Empty(t, p.sync(10*time.Millisecond))
	_, ok = p.r.Deadline()
	assert.False(t, ok)
	assert.Empty(t, p.r.Tick(p.now.Add(time.Second)))
}

func TestFingersFromKeys(t *testing.T) {
	set := func(codes ...int) []byte {
		bits := make([]byte, (keyMax+7)/8)
		for _, c := range codes {
			bits[c/8] |= 1 << (c % 8)
		}
		return bits
	}

	assert.Equal(t, 0, fingersFromKeys(set()))
	assert.Equal(t, 0, fingersFromKeys(set(evdev.BTN_LEFT, evdev.BTN_TOUCH)))
	assert.Equal(t, 3, fingersFromKeys(set(evdev.BTN_TOUCH, evdev.BTN_TOOL_TRIPLETAP)))
	assert.Equal(t, 5, fingersFromKeys(set(evdev.BTN_TOOL_DOUBLETAP, evdev.BTN_TOOL_QUINTTAP)))
	assert.Equal(t, 0, fingersFromKeys(nil))
}

func TestRecognizer_Resolution(t *testing.T) {
	// 10 units/mm: 12 raw units is about 47 units at 1000 dpi.
	p := newPad(t, RecognizerConfig{Resolution: Resolution{X: 10, Y: 10}})
	p.threeDown()
	evs := p.move(0, 112, 100).move(1, 212, 100).move(2, 312, 100).sync(10 * time.Millisecond)
	require.Len(t, evs, 2)
	assert.InDelta(t, 12*unitsPerMM1000dpi/10, evs[1].DX, 1e-9)

	raw := newPad(t, RecognizerConfig{})
	raw.threeDown()
	assert.Empty(t, raw.move(0, 112, 100).move(1, 212, 100).move(2, 312, 100).sync(10*time.Millisecond))
}

func TestResolution_Scale(t *testing.T) {
	fx, fy := Resolution{}.scale()
	assert.Equal(t, 1.0, fx)
	assert.Equal(t, 1.0, fy)

	fx, fy = Resolution{X: unitsPerMM1000dpi, Y: 2 * unitsPerMM1000dpi}.scale()
	assert.InDelta(t, 1.0, fx, 1e-12)
	assert.InDelta(t, 0.5, fy, 1e-12)
}
