//go:build !tinygo

package app

import (
	"errors"
	"path/filepath"
	"testing"

	"multiprobe/hal"
	"multiprobe/probeos/acq"
	"multiprobe/probeos/kernel"
)

func newTestSystem(t *testing.T, cfg Config) (*system, *hal.SimAcquisition) {
	t.Helper()
	h := hal.NewHost(hal.HostConfig{FlashPath: filepath.Join(t.TempDir(), "probe.flash")})
	s, err := newSystem(h, cfg)
	if err != nil {
		t.Fatalf("newSystem() error = %v", err)
	}
	return s, h.Acquisition().(*hal.SimAcquisition)
}

func TestSystemCapturesContinuously(t *testing.T) {
	s, sim := newTestSystem(t, Config{BlockSize: 256})
	if s.settings == nil {
		t.Fatalf("settings service not started with a flash image")
	}

	if err := s.step(); err != nil {
		t.Fatalf("step() error = %v", err)
	}
	ctl := s.analyzer.Controller()
	if got := ctl.State(); got != acq.Sampling {
		t.Fatalf("State() = %v, want %v", got, acq.Sampling)
	}

	for i := 0; i < 3; i++ {
		sim.Advance(100_000)
		if err := s.step(); err != nil {
			t.Fatalf("step() error = %v", err)
		}
	}
	if got := ctl.Last().Seq; got != 3 {
		t.Fatalf("Last().Seq = %d, want 3", got)
	}
	if got := ctl.State(); got != acq.Sampling {
		t.Fatalf("State() after auto re-arm = %v, want %v", got, acq.Sampling)
	}
}

func TestIdleBootWaitsForRun(t *testing.T) {
	s, sim := newTestSystem(t, Config{BlockSize: 64, Idle: true, SampleFrequency: 2_000})
	_ = s.step()
	sim.Advance(10_000)
	_ = s.step()

	ctl := s.analyzer.Controller()
	if got := ctl.State(); got != acq.Idle {
		t.Fatalf("State() = %v, want %v", got, acq.Idle)
	}
	if got := ctl.Settings().SampleFrequency; got != 2_000 {
		t.Fatalf("SampleFrequency = %d, want 2000", got)
	}
}

func TestBadFrequencyFailsBoot(t *testing.T) {
	h := hal.NewHost(hal.HostConfig{FlashPath: filepath.Join(t.TempDir(), "probe.flash")})
	if _, err := newSystem(h, Config{SampleFrequency: 500_000_000}); !errors.Is(err, acq.ErrFrequency) {
		t.Fatalf("newSystem() error = %v, want %v", err, acq.ErrFrequency)
	}
}

type panicky struct{}

func (panicky) Step(*kernel.Context) { panic("boom") }

func TestTaskPanicStopsSystem(t *testing.T) {
	s, _ := newTestSystem(t, Config{BlockSize: 64, Idle: true})
	installPanicHandler(s.h)
	s.k.AddTask(panicky{})

	if err := s.step(); !errors.Is(err, ErrPanicked) {
		t.Fatalf("step() error = %v, want %v", err, ErrPanicked)
	}
	if err := s.step(); !errors.Is(err, ErrPanicked) {
		t.Fatalf("second step() error = %v, want %v", err, ErrPanicked)
	}
}

func TestTakeRunes(t *testing.T) {
	for _, tc := range []struct {
		s          string
		n          int16
		head, rest string
	}{
		{"hello", 3, "hel", "lo"},
		{"hi", 5, "hi", ""},
		{"äöü", 2, "äö", "ü"},
		{"x", 0, "", "x"},
	} {
		head, rest := takeRunes(tc.s, tc.n)
		if head != tc.head || rest != tc.rest {
			t.Fatalf("takeRunes(%q, %d) = %q, %q, want %q, %q", tc.s, tc.n, head, rest, tc.head, tc.rest)
		}
	}
}
