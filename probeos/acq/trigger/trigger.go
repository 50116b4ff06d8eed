// Package trigger arms the hardware event chain that bounds a capture.
//
// The timing-critical path (edge, post-trigger timer, clock stop) is wired
// into control channels at arm time and runs without the control loop.
// Software only polls for the stopped clock afterwards.
package trigger

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"multiprobe/hal"
)

// State is the trigger state machine position.
type State uint8

const (
	Idle State = iota
	Armed
	Triggered
	Expired
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Triggered:
		return "triggered"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// MaxChannel is the highest trigger channel ordinal.
const MaxChannel = 3

var (
	ErrNotIdle  = errors.New("trigger: not idle")
	ErrChannel  = errors.New("trigger: invalid channel")
	ErrPosition = errors.New("trigger: position out of range")
	ErrEdge     = errors.New("trigger: invalid edge")
	ErrNoClock  = errors.New("trigger: sample clock frequency is zero")
)

// Config selects the trigger source. Channel 0 is free-run, and so is a
// channel whose Mask falls outside Enabled.
type Config struct {
	Channel int
	Mask    uint8
	Edge    hal.Edge
	// Enabled has the mask bit of every sampled lane set.
	Enabled uint8

	// PositionPercent is the pre-trigger share of the window: the
	// post-trigger timer runs for (100-PositionPercent)% of it.
	PositionPercent int
}

func (c Config) FreeRun() bool { return c.Channel == 0 || c.Mask&c.Enabled == 0 }

// Source is the channel the edge capture watches, or 0 when free-running.
func (c Config) Source() int {
	if c.FreeRun() {
		return 0
	}
	return c.Channel
}

func (c Config) Validate() error {
	if c.Channel < 0 || c.Channel > MaxChannel {
		return fmt.Errorf("%w: %d", ErrChannel, c.Channel)
	}
	if c.Channel != 0 && c.Mask == 0 {
		return fmt.Errorf("%w: channel %d has no mask", ErrChannel, c.Channel)
	}
	if c.Edge > hal.EdgeEither {
		return fmt.Errorf("%w: %d", ErrEdge, c.Edge)
	}
	if c.PositionPercent < 0 || c.PositionPercent > 100 {
		return fmt.Errorf("%w: %d", ErrPosition, c.PositionPercent)
	}
	return nil
}

// PostTriggerDuration is how long sampling continues after the trigger:
// (100-position)% of totalSamples at freq, rounded up to the next whole
// nanosecond so a pulse counter sized from it never falls one sample short.
func PostTriggerDuration(position, totalSamples int, freq uint32) time.Duration {
	if freq == 0 || totalSamples <= 0 || position >= 100 {
		return 0
	}
	if position < 0 {
		position = 0
	}
	num := uint64(totalSamples) * uint64(100-position) * uint64(time.Second)
	den := 100 * uint64(freq)
	return time.Duration((num + den - 1) / den)
}

// FullBufferDuration is the time to fill totalSamples at freq.
func FullBufferDuration(totalSamples int, freq uint32) time.Duration {
	return PostTriggerDuration(0, totalSamples, freq)
}

// Controller owns the clock, post-trigger timer, edge capture and both
// control channels of one acquisition front end.
type Controller struct {
	clock   hal.Clock
	timer   hal.Timer
	capture hal.EdgeCapture
	ctl     [2]hal.ControlChannel

	state State
	cfg   Config
	chain *Chain

	window time.Duration

	// Set by the capture interrupt. Read only by Poll.
	captured atomic.Bool
	captures atomic.Uint32
}

// New binds a controller to the primitives of a.
func New(a hal.Acquisition) *Controller {
	return &Controller{
		clock:   a.SampleClock(),
		timer:   a.PostTriggerTimer(),
		capture: a.EdgeCapture(),
		ctl:     a.ControlDMA(),
	}
}

func (c *Controller) State() State   { return c.state }
func (c *Controller) Config() Config { return c.cfg }

// Window is the post-trigger duration programmed by the last Arm.
func (c *Controller) Window() time.Duration { return c.window }

// Captures returns the number of edge interrupts seen since the last Arm.
func (c *Controller) Captures() uint32 { return c.captures.Load() }

// Chain returns the routes wired by the last Arm.
func (c *Controller) Chain() []Route {
	if c.chain == nil {
		return nil
	}
	return c.chain.Routes()
}

// Arm starts the sample clock and wires the stop chain for a window of
// totalSamples. The sampling pipeline must already be primed.
//
// Free-run starts the post-trigger timer immediately with a full-buffer
// duration. Otherwise the edge capture starts the timer through a control
// channel, and the clock runs meanwhile so pre-trigger history accumulates.
func (c *Controller) Arm(cfg Config, totalSamples int) error {
	if c.state != Idle {
		return ErrNotIdle
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	freq := c.clock.Frequency()
	if freq == 0 {
		return ErrNoClock
	}

	window := FullBufferDuration(totalSamples, freq)
	if !cfg.FreeRun() {
		window = PostTriggerDuration(cfg.PositionPercent, totalSamples, freq)
	}

	c.timer.Stop()
	if err := c.timer.SetDuration(window); err != nil {
		return fmt.Errorf("trigger: post-trigger timer: %w", err)
	}

	chain := NewChain()
	if cfg.FreeRun() {
		chain.On(hal.EventTimerExpired).Via(c.ctl[0]).Do(hal.ActionStopClock)
	} else {
		chain.
			On(hal.EventEdgeCaptured).Via(c.ctl[0]).Do(hal.ActionStartTimer).
			On(hal.EventTimerExpired).Via(c.ctl[1]).Do(hal.ActionStopClock)
	}
	if err := chain.Wire(); err != nil {
		return err
	}

	c.captured.Store(false)
	c.captures.Store(0)
	if !cfg.FreeRun() {
		if err := c.capture.Configure(cfg.Mask, cfg.Edge, c.onCapture); err != nil {
			chain.Release()
			return fmt.Errorf("trigger: edge capture: %w", err)
		}
	}

	c.cfg = cfg
	c.chain = chain
	c.window = window
	c.state = Armed

	c.clock.Start()
	if cfg.FreeRun() {
		c.timer.Start()
		c.state = Triggered
	}
	return nil
}

// onCapture drains the capture latch. The timer has already been started
// by the routed control channel.
func (c *Controller) onCapture() {
	c.captured.Store(true)
	c.captures.Add(1)
}

// Poll advances the state machine from what the hardware did since the
// previous call. A capture that never triggers stays Armed.
func (c *Controller) Poll() State {
	switch c.state {
	case Armed:
		if c.captured.Load() {
			c.state = Triggered
		}
		if !c.clock.Running() {
			c.state = Expired
		}
	case Triggered:
		if !c.clock.Running() {
			c.state = Expired
		}
	}
	return c.state
}

// Disarm tears the chain down after a stop so the controller can re-arm.
func (c *Controller) Disarm() {
	if c.chain != nil {
		c.chain.Release()
		c.chain = nil
	}
	c.capture.Disable()
	c.timer.Stop()
	c.captured.Store(false)
	c.state = Idle
}

// Abort stops the sample clock from software and disarms.
func (c *Controller) Abort() {
	c.clock.Stop()
	c.Disarm()
}
