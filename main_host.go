//go:build !tinygo

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"multiprobe/app"
	"multiprobe/hal"
)

func main() {
	var cfg hal.HeadlessConfig
	var appCfg app.Config
	var freq uint
	var keys string
	flag.BoolVar(&cfg.Enabled, "headless", false, "Run without a window.")
	flag.IntVar(&cfg.Hz, "hz", 60, "Tick rate in headless mode.")
	flag.Uint64Var(&cfg.Ticks, "ticks", 0, "Stop after N ticks in headless mode (0 = run forever).")
	flag.StringVar(&cfg.Host.FlashPath, "flash", "", "Flash image path (default $PROBE_FLASH_PATH or probe.flash).")
	flag.UintVar(&freq, "freq", 0, "Sample frequency in Hz for this run (0 = stored setting).")
	flag.IntVar(&appCfg.BlockSize, "block", 0, "Capture block size in samples (0 = default).")
	flag.BoolVar(&appCfg.Idle, "idle", false, "Do not start capturing until run is pressed.")
	flag.StringVar(&keys, "keys", "", "Key script replayed one key per tick, e.g. \"2{f1}{right}r\".")
	flag.Parse()
	appCfg.SampleFrequency = uint32(freq)

	script, err := hal.ParseKeyScript(keys)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	cfg.Host.Keys = script

	newApp := func(h hal.HAL) func() error {
		return app.NewWithConfig(h, appCfg)
	}

	if cfg.Enabled {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if err := hal.RunHeadless(ctx, newApp, cfg); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := hal.RunWindow(newApp, cfg.Host); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
