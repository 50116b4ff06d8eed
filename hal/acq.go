package hal

import (
	"errors"
	"fmt"
	"time"
)

// Edge selects which signal transition an EdgeCapture latches on.
type Edge uint8

const (
	EdgeRising Edge = iota
	EdgeFalling
	EdgeEither
)

func (e Edge) String() string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	case EdgeEither:
		return "either"
	default:
		return "unknown"
	}
}

// ParseEdge is the inverse of Edge.String.
func ParseEdge(s string) (Edge, error) {
	for e := EdgeRising; e <= EdgeEither; e++ {
		if e.String() == s {
			return e, nil
		}
	}
	return 0, fmt.Errorf("unknown edge %q", s)
}

// Match reports whether a prev->cur level change is this edge.
func (e Edge) Match(prev, cur bool) bool {
	switch e {
	case EdgeRising:
		return !prev && cur
	case EdgeFalling:
		return prev && !cur
	case EdgeEither:
		return prev != cur
	default:
		return false
	}
}

// Event is a completion signal raised by a primitive that the platform can
// route to an Action without CPU involvement.
type Event uint8

const (
	EventNone Event = iota
	EventEdgeCaptured
	EventTimerExpired
)

func (e Event) String() string {
	switch e {
	case EventEdgeCaptured:
		return "edge-captured"
	case EventTimerExpired:
		return "timer-expired"
	default:
		return "none"
	}
}

// Action is a control word a ControlChannel writes into a peripheral.
type Action uint8

const (
	ActionNone Action = iota
	ActionStartClock
	ActionStopClock
	ActionStartTimer
	ActionStopTimer
)

func (a Action) String() string {
	switch a {
	case ActionStartClock:
		return "start-clock"
	case ActionStopClock:
		return "stop-clock"
	case ActionStartTimer:
		return "start-timer"
	case ActionStopTimer:
		return "stop-timer"
	default:
		return "none"
	}
}

var (
	ErrChannelBusy     = errors.New("acq: channel busy")
	ErrInvalidTransfer = errors.New("acq: invalid transfer")
	ErrInvalidRoute    = errors.New("acq: invalid route")
	ErrClockRange      = errors.New("acq: clock frequency out of range")
)

// Clock is the sample clock: a free-running counter emitting one pulse per
// sample period. It is started and stopped either by software or by a
// ControlChannel action.
type Clock interface {
	SetFrequency(hz uint32) error
	Frequency() uint32
	Start()
	Stop()
	Running() bool
}

// Timer is a one-shot counter. Its expiry raises EventTimerExpired.
type Timer interface {
	SetDuration(d time.Duration) error
	Duration() time.Duration
	Start()
	Stop()
	Running() bool
}

// ChainDir selects which sibling channel's completion starts a DMAChannel.
type ChainDir uint8

const (
	ChainNone ChainDir = iota
	ChainFromLower
	ChainFromHigher
)

// DMAConfig describes a clock-paced byte transfer into Dst.
type DMAConfig struct {
	Dst []byte

	// Chain selects the sibling whose completion starts this channel.
	Chain ChainDir

	// Enable starts consuming clock pulses immediately. A chained channel
	// that is not enabled waits for its sibling to complete.
	Enable bool

	// OnComplete runs in interrupt context when Dst is full. It must only
	// do bookkeeping.
	OnComplete func()
}

// DMAChannel moves one sampled byte per clock pulse into a growing
// destination.
type DMAChannel interface {
	Index() int
	Configure(cfg DMAConfig) error
	// SetDestination reprograms an idle channel's destination.
	SetDestination(dst []byte) error
	Busy() bool
	// Offset is the number of bytes written into the current destination.
	Offset() int
}

// EdgeCapture watches probe bits selected by mask and latches on edge.
type EdgeCapture interface {
	// Configure arms the capture. onCapture runs in interrupt context and
	// must only drain the latched value.
	Configure(mask uint8, edge Edge, onCapture func()) error
	Disable()
}

// ControlChannel is a single-shot DMA channel that writes one control word
// into a peripheral when a routed event fires, then disarms.
type ControlChannel interface {
	Wire(from Event, to Action) error
	Release()
	Armed() bool
}

// Acquisition bundles the pre-allocated primitives of the logic analyzer
// front end.
type Acquisition interface {
	SampleClock() Clock
	PostTriggerTimer() Timer
	SampleDMA() [2]DMAChannel
	ControlDMA() [2]ControlChannel
	EdgeCapture() EdgeCapture
}
