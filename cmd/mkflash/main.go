//go:build !tinygo

// Command mkflash writes an analyzer settings record into a flash image,
// or prints the record an image already holds.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"multiprobe/hal"
	"multiprobe/probeos/acq"
	"multiprobe/probeos/services/settings"
)

const (
	defaultFlashPath = "probe.flash"
	defaultFlashSize = 256 * 1024
)

type options struct {
	path     string
	size     uint
	dump     bool
	freq     uint
	channels uint
	trigger  uint
	edge     string
	position uint
	mode     string
}

func main() {
	var o options
	flag.StringVar(&o.path, "out", defaultFlashPath, "Flash image path.")
	flag.UintVar(&o.size, "size", defaultFlashSize, "Image size in bytes when creating it.")
	flag.BoolVar(&o.dump, "dump", false, "Print the stored record and exit.")
	flag.UintVar(&o.freq, "freq", 1_000_000, "Sample frequency in Hz.")
	flag.UintVar(&o.channels, "channels", 0b111, "Enabled channel bitmask (bit 0 = CH1).")
	flag.UintVar(&o.trigger, "trigger", 0, "Trigger channel 1..3, 0 for free-run.")
	flag.StringVar(&o.edge, "edge", "rising", "Trigger edge: rising, falling or either.")
	flag.UintVar(&o.position, "pos", 50, "Trigger position in percent of the window.")
	flag.StringVar(&o.mode, "mode", "auto", "Capture mode: auto or single.")
	flag.Parse()

	if err := run(os.Stdout, o); err != nil {
		fmt.Fprintln(os.Stderr, "mkflash:", err)
		os.Exit(1)
	}
}

func run(w io.Writer, o options) error {
	f, closer, err := hal.OpenFlashFile(o.path, uint32(o.size))
	if err != nil {
		return err
	}
	defer closer.Close()

	store, err := settings.NewStore(f)
	if err != nil {
		return err
	}

	if o.dump {
		s, err := store.Load()
		if errors.Is(err, settings.ErrNoRecord) {
			fmt.Fprintf(w, "%s: no settings record\n", o.path)
			return nil
		}
		if err != nil {
			return err
		}
		printSettings(w, s)
		return nil
	}

	s, err := o.settings()
	if err != nil {
		return err
	}
	if err := store.Save(s); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: wrote %d-byte record at %#x\n", o.path, settings.RecordLen, store.Offset())
	printSettings(w, s)
	return nil
}

func (o options) settings() (acq.Settings, error) {
	edge, err := hal.ParseEdge(o.edge)
	if err != nil {
		return acq.Settings{}, err
	}
	mode, err := acq.ParseMode(o.mode)
	if err != nil {
		return acq.Settings{}, err
	}
	if o.freq > acq.MaxSampleFrequency || o.channels > 0xff || o.trigger > 0xff || o.position > 0xff {
		return acq.Settings{}, fmt.Errorf("value out of range")
	}
	s := acq.Settings{
		SampleFrequency: uint32(o.freq),
		EnabledChannels: uint8(o.channels),
		TriggerChannel:  uint8(o.trigger),
		TriggerEdge:     edge,
		TriggerPosition: uint8(o.position),
		Mode:            mode,
	}
	return s, s.Validate()
}

func printSettings(w io.Writer, s acq.Settings) {
	fmt.Fprintf(w, "  freq      %d Hz\n", s.SampleFrequency)
	fmt.Fprintf(w, "  channels  %03b\n", s.EnabledChannels)
	if s.TriggerChannel == 0 {
		fmt.Fprintf(w, "  trigger   free-run\n")
	} else {
		fmt.Fprintf(w, "  trigger   CH%d %s @%d%%\n", s.TriggerChannel, s.TriggerEdge, s.TriggerPosition)
	}
	fmt.Fprintf(w, "  mode      %s\n", s.Mode)
}
