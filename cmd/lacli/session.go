package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"multiprobe/hal"
	"multiprobe/probeos/acq"
	"multiprobe/probeos/services/settings"

	"github.com/google/shlex"
)

var errQuit = errors.New("quit")

// session drives one simulated front end. The sampling loop and the
// prompt share it under mu.
type session struct {
	mu    sync.Mutex
	sim   *hal.SimAcquisition
	ctl   *acq.Controller
	pane  *textPane
	store *settings.Store
	st    styles
	log   *lineBuffer
}

type lineBuffer struct{ lines []string }

func (b *lineBuffer) WriteLineString(s string) { b.lines = append(b.lines, s) }
func (b *lineBuffer) WriteLineBytes(p []byte)  { b.lines = append(b.lines, string(p)) }

func (b *lineBuffer) drain() []string {
	l := b.lines
	b.lines = nil
	return l
}

// defaultProbe is a 100 Hz square wave, a 40 Hz 25% PWM and a 1 ms pulse
// every 20 ms.
func defaultProbe() hal.Probe {
	return hal.NewProbePort(
		hal.PulseTrain{Period: 10 * time.Millisecond, High: 5 * time.Millisecond},
		hal.PulseTrain{Period: 25 * time.Millisecond, High: 6250 * time.Microsecond, Phase: 3 * time.Millisecond},
		hal.PulseTrain{Period: 20 * time.Millisecond, High: time.Millisecond, Phase: 7 * time.Millisecond},
	)
}

func newSession(probe hal.Probe, s acq.Settings, blockSize, width int, store *settings.Store) (*session, error) {
	sess := &session{
		sim:   hal.NewSimAcquisition(probe),
		pane:  newTextPane(width),
		store: store,
		st:    newStyles(),
		log:   &lineBuffer{},
	}
	ctl, err := acq.New(sess.sim, sess.pane, acq.Config{
		BlockSize: blockSize,
		Width:     width,
		Logger:    sess.log,
	}, s)
	if err != nil {
		return nil, err
	}
	sess.ctl = ctl
	return sess, nil
}

// advance runs the front end for d of simulated time and polls the
// controller.
func (s *session) advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctl.Poll()
	s.sim.AdvanceDuration(d)
	s.ctl.Poll()
}

// loop advances the simulation in step with wall time until ctx is done.
func (s *session) loop(ctx context.Context, period time.Duration) error {
	t := time.NewTicker(period)
	defer t.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-t.C:
			s.advance(now.Sub(last))
			last = now
		}
	}
}

// waitCapture blocks until a capture newer than seq is published.
func (s *session) waitCapture(ctx context.Context, seq uint64) error {
	t := time.NewTicker(5 * time.Millisecond)
	defer t.Stop()
	for {
		s.mu.Lock()
		last := s.ctl.Last().Seq
		halted, err := s.ctl.Halted(), s.ctl.Err()
		idle := s.ctl.State() == acq.Idle && !s.ctl.Requested()
		s.mu.Unlock()
		switch {
		case last > seq:
			return nil
		case halted:
			return err
		case idle:
			return errors.New("capture cancelled")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// resume puts back the mode a capture command overrode and restarts
// acquisition if it was running before.
func (s *session) resume(mode acq.Mode, running bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ctl.SetMode(mode); err != nil {
		return err
	}
	if running {
		return s.ctl.Run()
	}
	return nil
}

func (s *session) status() string {
	set := s.ctl.Settings()
	state := s.ctl.State().String()
	if s.ctl.Halted() {
		state = "halted"
	}
	last := s.ctl.Last()
	partial := ""
	if last.Partial {
		partial = " (partial)"
	}
	return fmt.Sprintf("%d Hz  %s  %s  capture #%d%s", set.SampleFrequency, set.Mode, state, last.Seq, partial)
}

// show renders the last capture.
func (s *session) show() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pane.render(s.st, s.ctl.Active(), s.status())
}

const help = `commands:
  run                      start capturing
  cancel                   stop capturing
  reset                    clear a halt
  capture                  run once and show the result
  show                     show the last capture
  status                   show controller state and pending settings
  toggle <1-3>             enable or disable a channel
  freq <hz>                sample frequency
  trigger free             free-run
  trigger <1-3> <edge> <%> trigger channel, rising|falling|either, position
  mode auto|single
  save                     store the pending settings
  load                     load the stored settings
  quit`

// exec runs one command line and returns its output.
func (s *session) exec(ctx context.Context, line string) (string, error) {
	f, err := shlex.Split(line)
	if err != nil {
		return "", err
	}
	if len(f) == 0 {
		return "", nil
	}
	cmd, args := f[0], f[1:]

	switch cmd {
	case "help", "?":
		return help, nil
	case "quit", "exit":
		return "", errQuit
	case "show":
		return s.show(), nil
	case "capture":
		s.mu.Lock()
		seq := s.ctl.Last().Seq
		prev := s.ctl.Settings().Mode
		running := s.ctl.Requested()
		err := s.ctl.SetMode(acq.Single)
		if err == nil {
			err = s.ctl.Run()
		}
		s.mu.Unlock()
		if err == nil {
			wctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err = s.waitCapture(wctx, seq)
			cancel()
		}
		if rerr := s.resume(prev, running); err == nil {
			err = rerr
		}
		if err != nil {
			return "", err
		}
		return s.show(), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.flushLog()

	switch cmd {
	case "status":
		return s.describe(), nil
	case "run":
		err = s.ctl.Run()
	case "cancel":
		s.ctl.Cancel()
	case "reset":
		s.ctl.Reset()
	case "toggle":
		var n int
		if n, err = intArg(args, 0); err == nil {
			err = s.ctl.ToggleChannel(n)
		}
	case "freq":
		var hz int
		if hz, err = intArg(args, 0); err == nil {
			err = s.ctl.SetSampleFrequency(uint32(hz))
		}
	case "trigger":
		err = s.trigger(args)
	case "mode":
		var m acq.Mode
		if len(args) != 1 {
			err = errors.New("usage: mode auto|single")
		} else if m, err = acq.ParseMode(args[0]); err == nil {
			err = s.ctl.SetMode(m)
		}
	case "save":
		if s.store == nil {
			err = settings.ErrNoFlash
		} else {
			err = s.store.Save(s.ctl.Settings())
		}
	case "load":
		if s.store == nil {
			err = settings.ErrNoFlash
			break
		}
		var st acq.Settings
		if st, err = s.store.Load(); err == nil {
			err = s.ctl.Apply(st)
		}
	default:
		err = fmt.Errorf("unknown command %q, try help", cmd)
	}
	if err != nil {
		return "", err
	}
	return s.describe(), nil
}

func (s *session) trigger(args []string) error {
	if len(args) == 1 && args[0] == "free" {
		cur := s.ctl.Settings()
		return s.ctl.SetTrigger(0, cur.TriggerEdge, cur.TriggerPosition)
	}
	if len(args) != 3 {
		return errors.New("usage: trigger free | trigger <1-3> <edge> <position>")
	}
	ch, err := intArg(args, 0)
	if err != nil {
		return err
	}
	edge, err := hal.ParseEdge(args[1])
	if err != nil {
		return err
	}
	pos, err := intArg(args, 2)
	if err != nil {
		return err
	}
	if ch < 0 || ch > 0xff || pos < 0 || pos > 0xff {
		return errors.New("argument out of range")
	}
	return s.ctl.SetTrigger(uint8(ch), edge, uint8(pos))
}

// describe reports state and pending settings. Callers hold mu.
func (s *session) describe() string {
	set := s.ctl.Settings()
	trig := "free-run"
	if set.TriggerChannel != 0 {
		trig = fmt.Sprintf("CH%d %s @%d%%", set.TriggerChannel, set.TriggerEdge, set.TriggerPosition)
	}
	return fmt.Sprintf("%s\nnext: %d Hz, channels %03b, trigger %s, mode %s, %d samples",
		s.status(), set.SampleFrequency, set.EnabledChannels, trig, set.Mode, s.ctl.BufferSize())
}

// flushLog moves controller diagnostics to the terminal. Callers hold mu.
func (s *session) flushLog() {
	for _, l := range s.log.drain() {
		fmt.Println(s.st.err.Render(l))
	}
}

func intArg(args []string, i int) (int, error) {
	if i >= len(args) {
		return 0, errors.New("missing argument")
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("bad number %q", args[i])
	}
	return n, nil
}
