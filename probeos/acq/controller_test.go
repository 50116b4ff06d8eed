package acq

import (
	"errors"
	"strings"
	"testing"
	"time"

	"multiprobe/hal"
	"multiprobe/probeos/acq/decimate"
)

type fakePane struct {
	points   [NumChannels][]decimate.TracePoint
	writes   int
	triggers []int
}

func newFakePane(width int) *fakePane {
	p := &fakePane{}
	for i := range p.points {
		p.points[i] = make([]decimate.TracePoint, width)
	}
	return p
}

func (p *fakePane) SetTracePoint(channel, pixel int, pt decimate.TracePoint) {
	p.points[channel][pixel] = pt
	p.writes++
}

func (p *fakePane) SetTrigger(channel int, edge hal.Edge) {
	p.triggers = append(p.triggers, channel)
}

type lineLog struct{ lines []string }

func (l *lineLog) WriteLineString(s string) { l.lines = append(l.lines, s) }
func (l *lineLog) WriteLineBytes(b []byte)  { l.lines = append(l.lines, string(b)) }

func (l *lineLog) contains(sub string) bool {
	for _, s := range l.lines {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// patternProbe replays bytes, one per microsecond, then repeats the last.
func patternProbe(pattern []byte) hal.Probe {
	return hal.ProbeFunc(func(t time.Duration) uint8 {
		i := int(t / time.Microsecond)
		if i >= len(pattern) {
			i = len(pattern) - 1
		}
		return pattern[i]
	})
}

func stepProbe(at time.Duration) hal.Probe {
	return hal.ProbeFunc(func(t time.Duration) uint8 {
		if t >= at {
			return 0x01
		}
		return 0
	})
}

func newTestController(t *testing.T, sim *hal.SimAcquisition, pane Pane, blockSize, width int, s Settings, smooth bool) *Controller {
	t.Helper()
	opts := decimate.Options{Smooth: smooth}
	c, err := New(sim, pane, Config{BlockSize: blockSize, Width: width, Options: &opts}, s)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func assertPoints(t *testing.T, got []decimate.TracePoint, want ...decimate.TracePoint) {
	t.Helper()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pixel %d = %v, want %v (row %v)", i, got[i], want[i], got)
		}
	}
}

func TestFreeRunEndToEnd(t *testing.T) {
	sim := hal.NewSimAcquisition(patternProbe([]byte{1, 1, 1, 0, 0, 0, 1, 0, 1, 1, 1, 1}))
	pane := newFakePane(4)
	s := DefaultSettings()
	s.EnabledChannels = 0b001
	s.Mode = Single
	c := newTestController(t, sim, pane, 4, 4, s, false)

	if err := c.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := c.Poll(); got != Sampling {
		t.Fatalf("Poll() = %v, want %v", got, Sampling)
	}
	if got := sim.Advance(1000); got != 12 {
		t.Fatalf("Advance() = %d, want 12", got)
	}
	if got := c.Poll(); got != Idle {
		t.Fatalf("Poll() = %v, want %v", got, Idle)
	}

	assertPoints(t, pane.points[0], decimate.High, decimate.Low, decimate.Edge, decimate.High)
	assertPoints(t, pane.points[1], decimate.Blank, decimate.Blank, decimate.Blank, decimate.Blank)
	if pane.writes != NumChannels*4 {
		t.Fatalf("pane writes = %d, want %d", pane.writes, NumChannels*4)
	}
	last := c.Last()
	if last.Seq != 1 || last.Partial {
		t.Fatalf("Last() = seq %d partial %v, want 1 false", last.Seq, last.Partial)
	}
}

func TestSingleModeIdlesAfterCapture(t *testing.T) {
	sim := hal.NewSimAcquisition(nil)
	s := DefaultSettings()
	s.Mode = Single
	c := newTestController(t, sim, nil, 8, 8, s, true)

	_ = c.Run()
	c.Poll()
	sim.Advance(1000)
	if got := c.Poll(); got != Idle {
		t.Fatalf("Poll() = %v, want %v", got, Idle)
	}
	if c.Requested() {
		t.Fatalf("Requested() = true after single capture")
	}
	if sim.SampleClock().Running() {
		t.Fatalf("clock re-armed in single mode")
	}
	if got := c.Poll(); got != Idle {
		t.Fatalf("second Poll() = %v, want %v", got, Idle)
	}

	_ = c.Run()
	if got := c.Poll(); got != Sampling {
		t.Fatalf("Poll() after Run = %v, want %v", got, Sampling)
	}
}

func TestAutoModeRearms(t *testing.T) {
	sim := hal.NewSimAcquisition(nil)
	c := newTestController(t, sim, nil, 8, 8, DefaultSettings(), true)

	_ = c.Run()
	c.Poll()
	for i := 1; i <= 3; i++ {
		sim.Advance(1000)
		if got := c.Poll(); got != Sampling {
			t.Fatalf("cycle %d: Poll() = %v, want %v", i, got, Sampling)
		}
		if !sim.SampleClock().Running() {
			t.Fatalf("cycle %d: clock not re-armed", i)
		}
		if got := c.Last().Seq; got != uint64(i) {
			t.Fatalf("cycle %d: Last().Seq = %d", i, got)
		}
	}
}

func TestTriggeredWindowPlacesEdgeAtPosition(t *testing.T) {
	sim := hal.NewSimAcquisition(stepProbe(500 * time.Microsecond))
	pane := newFakePane(300)
	s := DefaultSettings()
	s.TriggerChannel = 1
	s.TriggerEdge = hal.EdgeRising
	s.TriggerPosition = 50
	s.Mode = Single
	c := newTestController(t, sim, pane, 100, 300, s, true)

	_ = c.Run()
	if got := c.Poll(); got != Armed {
		t.Fatalf("Poll() = %v, want %v", got, Armed)
	}
	sim.Advance(520)
	if got := c.Poll(); got != PostTrigger {
		t.Fatalf("Poll() = %v, want %v", got, PostTrigger)
	}
	if got := sim.Advance(1 << 20); got != 131 {
		t.Fatalf("Advance() = %d, want 131", got)
	}
	if got := c.Poll(); got != Idle {
		t.Fatalf("Poll() = %v, want %v", got, Idle)
	}

	// 300 samples end at pulse 650; the first high sample (pulse 500) is
	// the 150th.
	row := pane.points[0]
	assertPoints(t, row[147:151], decimate.Low, decimate.Low, decimate.Edge, decimate.High)
	if row[0] != decimate.Low || row[299] != decimate.High {
		t.Fatalf("row ends = %v, %v, want low, high", row[0], row[299])
	}
	if len(pane.triggers) != 1 || pane.triggers[0] != 1 {
		t.Fatalf("SetTrigger calls = %v, want [1]", pane.triggers)
	}
}

func TestTriggerOnDisabledChannelRunsFree(t *testing.T) {
	sim := hal.NewSimAcquisition(stepProbe(5 * time.Microsecond))
	pane := newFakePane(8)
	s := DefaultSettings()
	s.EnabledChannels = 0b110
	s.TriggerChannel = 1
	s.Mode = Single
	c := newTestController(t, sim, pane, 8, 8, s, true)

	_ = c.Run()
	if got := c.Poll(); got != Sampling {
		t.Fatalf("Poll() = %v, want %v", got, Sampling)
	}
	if got := len(c.Trigger().Chain()); got != 1 {
		t.Fatalf("len(Chain()) = %d, want 1", got)
	}
	if got := sim.Advance(1 << 20); got != 24 {
		t.Fatalf("Advance() = %d, want 24", got)
	}
	if got := c.Poll(); got != Idle {
		t.Fatalf("Poll() = %v, want %v", got, Idle)
	}
	if got := sim.CaptureCount(); got != 0 {
		t.Fatalf("CaptureCount() = %d, want 0", got)
	}
	if len(pane.triggers) != 1 || pane.triggers[0] != 0 {
		t.Fatalf("SetTrigger calls = %v, want [0]", pane.triggers)
	}
	assertPoints(t, pane.points[0], decimate.Blank, decimate.Blank, decimate.Blank, decimate.Blank)
}

func TestEarlyTriggerIsPartial(t *testing.T) {
	sim := hal.NewSimAcquisition(stepProbe(10 * time.Microsecond))
	log := &lineLog{}
	s := DefaultSettings()
	s.TriggerChannel = 1
	s.Mode = Single
	c, err := New(sim, nil, Config{BlockSize: 100, Width: 30, Logger: log}, s)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_ = c.Run()
	c.Poll()
	sim.Advance(1 << 20)
	c.Poll()
	if !c.Last().Partial {
		t.Fatalf("Last().Partial = false for capture shorter than the ring")
	}
	if !log.contains("partial") {
		t.Fatalf("no partial diagnostic in %v", log.lines)
	}
}

func TestMutatorsApplyAtNextArm(t *testing.T) {
	sim := hal.NewSimAcquisition(nil)
	c := newTestController(t, sim, nil, 8, 8, DefaultSettings(), true)

	_ = c.Run()
	c.Poll()
	if err := c.SetSampleFrequency(2_000_000); err != nil {
		t.Fatalf("SetSampleFrequency() error = %v", err)
	}
	if err := c.ToggleChannel(2); err != nil {
		t.Fatalf("ToggleChannel() error = %v", err)
	}
	if got := sim.SampleClock().Frequency(); got != 1_000_000 {
		t.Fatalf("armed clock = %d Hz, want 1000000", got)
	}
	if got := c.Active().EnabledChannels; got != 0b111 {
		t.Fatalf("Active().EnabledChannels = %#b, want 0b111", got)
	}

	sim.Advance(1000)
	c.Poll()
	if got := sim.SampleClock().Frequency(); got != 2_000_000 {
		t.Fatalf("re-armed clock = %d Hz, want 2000000", got)
	}
	if got := c.Active().EnabledChannels; got != 0b101 {
		t.Fatalf("Active().EnabledChannels = %#b, want 0b101", got)
	}
}

func TestMutatorsRejectBadValues(t *testing.T) {
	sim := hal.NewSimAcquisition(nil)
	c := newTestController(t, sim, nil, 8, 8, DefaultSettings(), true)

	if err := c.ToggleChannel(4); !errors.Is(err, ErrChannel) {
		t.Fatalf("ToggleChannel(4) = %v, want %v", err, ErrChannel)
	}
	if err := c.SetSampleFrequency(0); !errors.Is(err, ErrFrequency) {
		t.Fatalf("SetSampleFrequency(0) = %v, want %v", err, ErrFrequency)
	}
	if err := c.SetTrigger(1, hal.EdgeRising, 101); !errors.Is(err, ErrPosition) {
		t.Fatalf("SetTrigger(pos 101) = %v, want %v", err, ErrPosition)
	}
	if err := c.SetTrigger(4, hal.EdgeRising, 50); !errors.Is(err, ErrChannel) {
		t.Fatalf("SetTrigger(ch 4) = %v, want %v", err, ErrChannel)
	}
	if err := c.SetMode(Mode(7)); !errors.Is(err, ErrMode) {
		t.Fatalf("SetMode(7) = %v, want %v", err, ErrMode)
	}
	if got := c.Settings(); got != DefaultSettings() {
		t.Fatalf("Settings() = %+v, want defaults after rejected mutators", got)
	}
}

func TestNeverTriggeredStaysArmed(t *testing.T) {
	sim := hal.NewSimAcquisition(nil)
	s := DefaultSettings()
	s.TriggerChannel = 3
	c := newTestController(t, sim, nil, 8, 8, s, true)

	_ = c.Run()
	c.Poll()
	for i := 0; i < 10; i++ {
		sim.Advance(10_000)
		if got := c.Poll(); got != Armed {
			t.Fatalf("Poll() = %v, want %v", got, Armed)
		}
	}
}

func TestCancelStopsCapture(t *testing.T) {
	sim := hal.NewSimAcquisition(nil)
	pane := newFakePane(8)
	s := DefaultSettings()
	s.TriggerChannel = 1
	c := newTestController(t, sim, pane, 8, 8, s, true)

	_ = c.Run()
	c.Poll()
	sim.Advance(100)
	c.Cancel()

	if sim.SampleClock().Running() {
		t.Fatalf("clock running after Cancel")
	}
	if got := c.Poll(); got != Idle {
		t.Fatalf("Poll() = %v, want %v", got, Idle)
	}
	if pane.writes != 0 {
		t.Fatalf("pane writes = %d after cancelled capture, want 0", pane.writes)
	}
}

func TestPipelineFaultHalts(t *testing.T) {
	sim := hal.NewSimAcquisition(nil)
	log := &lineLog{}
	fault := errors.New("bus error")
	c, err := New(sim, nil, Config{BlockSize: 4, Width: 4, Logger: log}, DefaultSettings())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_ = c.Run()
	c.Poll()
	sim.InjectDMAFault(0, fault)
	sim.Advance(5)
	c.Poll()

	if !c.Halted() || !errors.Is(c.Err(), fault) {
		t.Fatalf("Halted() = %v, Err() = %v, want true, %v", c.Halted(), c.Err(), fault)
	}
	if sim.SampleClock().Running() {
		t.Fatalf("clock running after halt")
	}
	if !log.contains("halted") {
		t.Fatalf("no halt diagnostic in %v", log.lines)
	}
	if err := c.Run(); !errors.Is(err, ErrHalted) {
		t.Fatalf("Run() = %v, want %v", err, ErrHalted)
	}

	c.Reset()
	if err := c.Run(); err != nil {
		t.Fatalf("Run() after Reset = %v", err)
	}
	if got := c.Poll(); got != Sampling {
		t.Fatalf("Poll() after Reset = %v, want %v", got, Sampling)
	}
}

func TestNewRequiresFrontEnd(t *testing.T) {
	if _, err := New(nil, nil, Config{}, DefaultSettings()); !errors.Is(err, ErrNoFrontEnd) {
		t.Fatalf("New(nil) = %v, want %v", err, ErrNoFrontEnd)
	}
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{Auto, Single} {
		got, err := ParseMode(m.String())
		if err != nil || got != m {
			t.Fatalf("ParseMode(%q) = %v, %v, want %v", m.String(), got, err, m)
		}
	}
	if _, err := ParseMode("burst"); !errors.Is(err, ErrMode) {
		t.Fatalf("ParseMode(burst) = %v, want %v", err, ErrMode)
	}
}
