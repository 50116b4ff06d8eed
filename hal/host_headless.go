//go:build !tinygo

package hal

import (
	"context"
	"fmt"
	"time"
)

// HeadlessConfig controls the no-window host runner.
type HeadlessConfig struct {
	Enabled bool
	// Hz is the control-loop rate.
	Hz int
	// Ticks stops the run after that many loop iterations; 0 runs until
	// ctx is done.
	Ticks uint64
	Host  HostConfig
}

// RunHeadless runs the firmware without opening a window. Every loop
// iteration replays a scripted key, lets the simulated front end catch up
// with wall time and calls step once.
func RunHeadless(ctx context.Context, newApp func(HAL) func() error, cfg HeadlessConfig) error {
	if cfg.Hz <= 0 {
		cfg.Hz = 60
	}
	period := time.Second / time.Duration(cfg.Hz)
	if period <= 0 {
		return fmt.Errorf("invalid headless hz: %d", cfg.Hz)
	}

	h := NewHost(cfg.Host).(*hostHAL)
	step := newApp(h)

	t := time.NewTicker(period)
	defer t.Stop()
	for n := uint64(1); ; n++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
		h.kbd.replay()
		h.advance()
		if step != nil {
			if err := step(); err != nil {
				return err
			}
		}
		if cfg.Ticks > 0 && n >= cfg.Ticks {
			return nil
		}
	}
}
