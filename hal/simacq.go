package hal

import (
	"errors"
	"fmt"
	"time"
)

const (
	simMinFrequency = 1
	simMaxFrequency = 100_000_000

	// Upper bound on pulses simulated by one AdvanceDuration call.
	simMaxAdvance = 1 << 22
)

var (
	ErrClockRunning = errors.New("acq: clock running")
	ErrTimerRunning = errors.New("acq: timer running")
)

// Probe produces the raw sample byte seen by the front end at time t.
type Probe interface {
	Sample(t time.Duration) uint8
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(t time.Duration) uint8

func (f ProbeFunc) Sample(t time.Duration) uint8 { return f(t) }

// SimAcquisition is a pulse-accurate model of the analyzer front end.
//
// Routed events resolve inside the pulse that raised them: an edge capture
// starts the post-trigger timer and its expiry stops the clock without
// any call back into the control loop. Completion and capture callbacks run
// synchronously, as an interrupt would.
//
// The post-trigger timer counts sample clock pulses. It is not safe for
// concurrent use.
type SimAcquisition struct {
	probe Probe

	clock simClock
	timer simTimer
	dma   [2]simDMA
	ctl   [2]simControl
	edge  simEdge

	now    time.Duration
	pulses uint64
	carry  uint64
}

// NewSimAcquisition returns a front end sampling probe at 1 MHz.
func NewSimAcquisition(probe Probe) *SimAcquisition {
	s := &SimAcquisition{probe: probe}
	s.clock = simClock{s: s, hz: 1_000_000}
	s.timer = simTimer{s: s}
	for i := range s.dma {
		s.dma[i] = simDMA{s: s, idx: i}
	}
	for i := range s.ctl {
		s.ctl[i] = simControl{s: s}
	}
	s.edge = simEdge{s: s}
	return s
}

func (s *SimAcquisition) SampleClock() Clock      { return &s.clock }
func (s *SimAcquisition) PostTriggerTimer() Timer { return &s.timer }
func (s *SimAcquisition) EdgeCapture() EdgeCapture {
	return &s.edge
}

func (s *SimAcquisition) SampleDMA() [2]DMAChannel {
	return [2]DMAChannel{&s.dma[0], &s.dma[1]}
}

func (s *SimAcquisition) ControlDMA() [2]ControlChannel {
	return [2]ControlChannel{&s.ctl[0], &s.ctl[1]}
}

// SetProbe replaces the signal source.
func (s *SimAcquisition) SetProbe(p Probe) { s.probe = p }

// Now returns the simulated time of the next pulse.
func (s *SimAcquisition) Now() time.Duration { return s.now }

// Pulses returns the number of clock pulses simulated so far.
func (s *SimAcquisition) Pulses() uint64 { return s.pulses }

// CaptureCount returns how many edges the capture unit has latched.
func (s *SimAcquisition) CaptureCount() uint64 { return s.edge.count }

// InjectDMAFault makes the next SetDestination on channel ch fail with err.
func (s *SimAcquisition) InjectDMAFault(ch int, err error) {
	if ch < 0 || ch >= len(s.dma) {
		return
	}
	s.dma[ch].fault = err
}

// Advance simulates up to n pulses, stopping early when the clock stops.
// It returns the number of pulses simulated.
func (s *SimAcquisition) Advance(n uint64) uint64 {
	var done uint64
	for done < n && s.clock.running {
		s.pulse()
		done++
	}
	return done
}

// AdvanceDuration simulates the pulses that fit in d at the current clock
// frequency. Fractional pulses carry over to the next call.
func (s *SimAcquisition) AdvanceDuration(d time.Duration) uint64 {
	if d <= 0 || !s.clock.running {
		return 0
	}
	total := uint64(d)*uint64(s.clock.hz) + s.carry
	n := total / uint64(time.Second)
	s.carry = total % uint64(time.Second)
	if n > simMaxAdvance {
		n = simMaxAdvance
	}
	return s.Advance(n)
}

func (s *SimAcquisition) pulse() {
	var sample uint8
	if s.probe != nil {
		sample = s.probe.Sample(s.now)
	}
	for i := range s.dma {
		if s.dma[i].busy {
			s.dma[i].write(sample)
			break
		}
	}
	s.timer.tick()
	s.edge.observe(sample)

	s.pulses++
	s.now += s.clock.period()
}

func (s *SimAcquisition) pulsesFor(d time.Duration) uint64 {
	return pulsesIn(d, s.clock.hz)
}

func (s *SimAcquisition) raise(ev Event) {
	for i := range s.ctl {
		c := &s.ctl[i]
		if !c.armed || c.from != ev {
			continue
		}
		c.armed = false
		s.perform(c.to)
	}
}

func (s *SimAcquisition) perform(a Action) {
	switch a {
	case ActionStartClock:
		s.clock.running = true
	case ActionStopClock:
		s.clock.running = false
	case ActionStartTimer:
		s.timer.Start()
	case ActionStopTimer:
		s.timer.Stop()
	}
}

// chainFrom starts every channel whose chain source is channel idx.
func (s *SimAcquisition) chainFrom(idx int) {
	for i := range s.dma {
		d := &s.dma[i]
		if i == idx || !d.configured {
			continue
		}
		if d.source() != idx {
			continue
		}
		d.off = 0
		d.busy = true
	}
}

type simClock struct {
	s       *SimAcquisition
	hz      uint32
	running bool
}

func (c *simClock) SetFrequency(hz uint32) error {
	if hz < simMinFrequency || hz > simMaxFrequency {
		return fmt.Errorf("%w: %d Hz", ErrClockRange, hz)
	}
	if c.running {
		return ErrClockRunning
	}
	c.hz = hz
	c.s.carry = 0
	return nil
}

func (c *simClock) Frequency() uint32 { return c.hz }
func (c *simClock) Start()            { c.running = true }
func (c *simClock) Stop()             { c.running = false }
func (c *simClock) Running() bool     { return c.running }

func (c *simClock) period() time.Duration {
	if c.hz == 0 {
		return 0
	}
	return time.Second / time.Duration(c.hz)
}

type simTimer struct {
	s         *SimAcquisition
	d         time.Duration
	running   bool
	remaining uint64
}

func (t *simTimer) SetDuration(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("acq: timer duration %s: %w", d, ErrInvalidTransfer)
	}
	if t.running {
		return ErrTimerRunning
	}
	t.d = d
	return nil
}

func (t *simTimer) Duration() time.Duration { return t.d }
func (t *simTimer) Running() bool           { return t.running }
func (t *simTimer) Stop()                   { t.running = false }

func (t *simTimer) Start() {
	t.running = true
	t.remaining = t.s.pulsesFor(t.d)
	if t.remaining == 0 {
		t.expire()
	}
}

// tick counts one pulse. A timer started during a pulse counts from the
// next one.
func (t *simTimer) tick() {
	if !t.running {
		return
	}
	t.remaining--
	if t.remaining == 0 {
		t.expire()
	}
}

func (t *simTimer) expire() {
	t.running = false
	t.s.raise(EventTimerExpired)
}

type simDMA struct {
	s          *SimAcquisition
	idx        int
	dst        []byte
	off        int
	chain      ChainDir
	busy       bool
	configured bool
	onComplete func()
	fault      error
}

func (d *simDMA) Index() int { return d.idx }

func (d *simDMA) Configure(cfg DMAConfig) error {
	if len(cfg.Dst) == 0 {
		return fmt.Errorf("dma%d: empty destination: %w", d.idx, ErrInvalidTransfer)
	}
	d.dst = cfg.Dst
	d.off = 0
	d.chain = cfg.Chain
	d.busy = cfg.Enable
	d.onComplete = cfg.OnComplete
	d.configured = true
	return nil
}

func (d *simDMA) SetDestination(dst []byte) error {
	if d.fault != nil {
		err := d.fault
		d.fault = nil
		return fmt.Errorf("dma%d: %w", d.idx, err)
	}
	if d.busy {
		return fmt.Errorf("dma%d: %w", d.idx, ErrChannelBusy)
	}
	if len(dst) == 0 {
		return fmt.Errorf("dma%d: empty destination: %w", d.idx, ErrInvalidTransfer)
	}
	d.dst = dst
	d.off = 0
	return nil
}

func (d *simDMA) Busy() bool  { return d.busy }
func (d *simDMA) Offset() int { return d.off }

func (d *simDMA) source() int {
	switch d.chain {
	case ChainFromLower:
		return d.idx + 1
	case ChainFromHigher:
		return d.idx - 1
	default:
		return -1
	}
}

func (d *simDMA) write(b byte) {
	d.dst[d.off] = b
	d.off++
	if d.off < len(d.dst) {
		return
	}
	d.busy = false
	d.s.chainFrom(d.idx)
	if d.onComplete != nil {
		d.onComplete()
	}
}

type simEdge struct {
	s         *SimAcquisition
	mask      uint8
	edge      Edge
	enabled   bool
	primed    bool
	prev      bool
	onCapture func()
	count     uint64
}

func (e *simEdge) Configure(mask uint8, edge Edge, onCapture func()) error {
	if mask == 0 {
		return fmt.Errorf("capture: empty mask: %w", ErrInvalidRoute)
	}
	if edge > EdgeEither {
		return fmt.Errorf("capture: edge %d: %w", edge, ErrInvalidRoute)
	}
	e.mask = mask
	e.edge = edge
	e.onCapture = onCapture
	e.enabled = true
	e.primed = false
	return nil
}

func (e *simEdge) Disable() {
	e.enabled = false
	e.onCapture = nil
}

func (e *simEdge) observe(sample uint8) {
	if !e.enabled {
		return
	}
	lvl := sample&e.mask != 0
	if !e.primed {
		e.prev = lvl
		e.primed = true
		return
	}
	if e.edge.Match(e.prev, lvl) {
		e.count++
		e.s.raise(EventEdgeCaptured)
		if e.onCapture != nil {
			e.onCapture()
		}
	}
	e.prev = lvl
}

type simControl struct {
	s     *SimAcquisition
	from  Event
	to    Action
	armed bool
}

func (c *simControl) Wire(from Event, to Action) error {
	if from == EventNone || to == ActionNone {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidRoute, from, to)
	}
	if c.armed {
		return ErrChannelBusy
	}
	c.from = from
	c.to = to
	c.armed = true
	return nil
}

func (c *simControl) Release() { c.armed = false }
func (c *simControl) Armed() bool {
	return c.armed
}
