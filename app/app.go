// Package app wires the HAL into the kernel and starts the analyzer tasks.
package app

import (
	"errors"
	"fmt"

	"multiprobe/hal"
	"multiprobe/internal/buildinfo"
	"multiprobe/probeos/acq"
	"multiprobe/probeos/kernel"
	"multiprobe/probeos/services/keypad"
	"multiprobe/probeos/services/logger"
	"multiprobe/probeos/services/settings"
	"multiprobe/probeos/tasks/analyzer"
)

// ErrPanicked is returned by the step function once a task has panicked.
var ErrPanicked = errors.New("app: task panicked")

// DefaultBudget is the number of task steps run per tick.
const DefaultBudget = 32

type Config struct {
	// BlockSize overrides the capture block size in samples.
	BlockSize int
	// Budget caps task steps per tick.
	Budget int
	// SampleFrequency, when non-zero, overrides the stored rate for this
	// boot.
	SampleFrequency uint32
	// Idle leaves the analyzer stopped until a run request.
	Idle bool
}

type system struct {
	k      *kernel.Kernel
	h      hal.HAL
	budget int

	analyzer *analyzer.Task
	settings *settings.Service
}

// New initializes the system with default config and returns its step
// function.
func New(h hal.HAL) func() error {
	return NewWithConfig(h, Config{})
}

func NewWithConfig(h hal.HAL, cfg Config) func() error {
	installPanicHandler(h)
	s, err := newSystem(h, cfg)
	if err != nil {
		if l := h.Logger(); l != nil {
			l.WriteLineString("boot: " + err.Error())
		}
		return func() error { return err }
	}
	return s.step
}

// Run starts the system and steps it on every tick. It only returns
// after a fatal error.
func Run(h hal.HAL) {
	RunWithConfig(h, Config{})
}

func RunWithConfig(h hal.HAL, cfg Config) {
	step := NewWithConfig(h, cfg)
	ticks := h.Time().Ticks()
	for range ticks {
		if err := step(); err != nil {
			if l := h.Logger(); l != nil {
				l.WriteLineString("halt: " + err.Error())
			}
			select {}
		}
	}
}

func newSystem(h hal.HAL, cfg Config) (*system, error) {
	log := h.Logger()
	if log != nil {
		log.WriteLineString("multiprobe " + buildinfo.Long())
	}

	k := kernel.New()
	logEP := k.NewEndpoint(kernel.RightSend | kernel.RightRecv)
	anEP := k.NewEndpoint(kernel.RightSend | kernel.RightRecv)
	setEP := k.NewEndpoint(kernel.RightSend | kernel.RightRecv)

	initial := acq.DefaultSettings()
	var store *settings.Store
	if f := h.Flash(); f != nil {
		st, err := settings.NewStore(f)
		if err != nil {
			logLine(log, "settings: "+err.Error())
		} else {
			store = st
			loaded, err := st.LoadOrDefault()
			if err != nil {
				logLine(log, "settings: "+err.Error()+", using defaults")
			}
			initial = loaded
		}
	}
	if cfg.SampleFrequency != 0 {
		next := initial
		next.SampleFrequency = cfg.SampleFrequency
		if err := next.Validate(); err != nil {
			return nil, err
		}
		initial = next
	}

	an, err := analyzer.New(analyzer.Config{
		Display:     h.Display(),
		LED:         h.LED(),
		Acquisition: h.Acquisition(),
		Endpoint:    anEP.Restrict(kernel.RightRecv),
		Log:         logEP.Restrict(kernel.RightSend),
		Settings:    initial,
		BlockSize:   cfg.BlockSize,
		AutoRun:     !cfg.Idle,
	})
	if err != nil {
		return nil, fmt.Errorf("analyzer: %w", err)
	}

	logSvc := logger.New(log, logEP.Restrict(kernel.RightRecv))
	if w := an.Console(); w != nil {
		logSvc.Mirror(w)
	}

	s := &system{k: k, h: h, budget: cfg.Budget, analyzer: an}
	if s.budget <= 0 {
		s.budget = DefaultBudget
	}

	k.AddTask(logSvc)
	k.AddTask(an)

	storeCap := kernel.Capability{}
	if store != nil {
		s.settings = settings.NewService(store, setEP.Restrict(kernel.RightRecv), anEP.Restrict(kernel.RightSend))
		k.AddTask(s.settings)
		storeCap = setEP.Restrict(kernel.RightSend)
	}
	if in := h.Input(); in != nil {
		k.AddTask(keypad.New(in, anEP.Restrict(kernel.RightSend), storeCap, initial))
	}
	return s, nil
}

// step folds pending HAL ticks into the kernel and runs tasks until they
// are idle or the budget is spent.
func (s *system) step() error {
	if kernel.InPanicMode() {
		return ErrPanicked
	}
	s.k.Tick()
	if t := s.h.Time(); t != nil {
	drain:
		for {
			select {
			case _, ok := <-t.Ticks():
				if !ok {
					break drain
				}
			default:
				break drain
			}
		}
	}
	s.k.RunUntilIdle(s.budget)
	if p, ok := kernel.FirstPanic(); ok {
		return fmt.Errorf("%w: task %d: %v", ErrPanicked, p.TaskID, p.Value)
	}
	return nil
}

func logLine(l hal.Logger, s string) {
	if l != nil {
		l.WriteLineString(s)
	}
}
