package hal

import (
	"testing"
	"time"
)

func TestSignalPinRead(t *testing.T) {
	now := time.Unix(0, 0)
	clock := func() time.Time { return now }

	pin := newSignalPinWithClock("SIG", 10*time.Second, 2*time.Second, 0, clock)
	if pin == nil {
		t.Fatal("expected pin")
	}

	level, err := pin.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !level {
		t.Fatal("expected high at t=0")
	}

	now = now.Add(3 * time.Second)
	level, err = pin.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if level {
		t.Fatal("expected low at t=3s")
	}

	now = now.Add(8 * time.Second) // t=11s => phase 1s, high again
	level, err = pin.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !level {
		t.Fatal("expected high at t=11s")
	}
}

func TestSignalPinPhase(t *testing.T) {
	pin := newSignalPin("SIG", 10*time.Millisecond, 5*time.Millisecond, 5*time.Millisecond)
	if !pin.LevelAt(6 * time.Millisecond) {
		t.Fatal("LevelAt(6ms) = false, want true")
	}
	if pin.LevelAt(11 * time.Millisecond) {
		t.Fatal("LevelAt(11ms) = true, want false")
	}
}

func TestProbePortPacksBits(t *testing.T) {
	hi := newSignalPin("HI", time.Second, time.Second, 0)
	lo := newSignalPin("LO", time.Second, 0, 0)

	p := NewProbePort(hi, lo, hi)
	if got := p.Sample(0); got != 0b101 {
		t.Fatalf("Sample() = %03b, want 101", got)
	}
}

func TestProbePortFromGPIOSkipsNonSources(t *testing.T) {
	g := newVirtualGPIO([]GPIOPin{
		newSignalPin("A", time.Second, time.Second, 0),
		nil,
		newSignalPin("B", time.Second, time.Second, 0),
	})
	p := ProbePortFromGPIO(g)
	if got := p.Sample(0); got != 0b11 {
		t.Fatalf("Sample() = %02b, want 11", got)
	}
}
