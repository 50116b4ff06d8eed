//go:build !tinygo

package hal

import "time"

// hostTickPeriod is the HAL tick on host builds, matching the 1 ms tick of
// the board.
const hostTickPeriod = time.Millisecond

// hostTime converts wall time into ticks. It is advanced by the runner,
// not by a goroutine, so ticks stay in step with the control loop.
type hostTime struct {
	ch  chan uint64
	seq uint64
	now func() time.Time

	last time.Time
	acc  time.Duration
}

func newHostTime() *hostTime {
	return &hostTime{ch: make(chan uint64, 1024), now: time.Now}
}

func (t *hostTime) Ticks() <-chan uint64 { return t.ch }

// step emits one tick per elapsed tick period, and at least one tick on
// the first call.
func (t *hostTime) step() {
	now := t.now()
	if t.last.IsZero() {
		t.last = now
		t.emit(1)
		return
	}
	t.acc += now.Sub(t.last)
	t.last = now
	if n := uint64(t.acc / hostTickPeriod); n > 0 {
		t.acc %= hostTickPeriod
		t.emit(n)
	}
}

// emit drops ticks the consumer has not caught up with.
func (t *hostTime) emit(n uint64) {
	for ; n > 0; n-- {
		t.seq++
		select {
		case t.ch <- t.seq:
		default:
		}
	}
}
