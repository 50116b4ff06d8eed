package acq

import (
	"errors"
	"fmt"

	"multiprobe/hal"
	"multiprobe/probeos/acq/decimate"
	"multiprobe/probeos/acq/trigger"
)

// NumChannels is the number of probe channels.
const NumChannels = decimate.Channels

const (
	MinSampleFrequency = 1
	MaxSampleFrequency = 100_000_000
)

var (
	ErrChannel   = errors.New("acq: invalid channel")
	ErrFrequency = errors.New("acq: sample frequency out of range")
	ErrPosition  = errors.New("acq: trigger position out of range")
	ErrEdge      = errors.New("acq: invalid trigger edge")
	ErrMode      = errors.New("acq: invalid mode")
)

// Mode selects what happens after a capture is displayed.
type Mode uint8

const (
	// Auto re-arms as soon as decimation finishes.
	Auto Mode = iota
	// Single captures once, then idles until Run.
	Single
)

func (m Mode) String() string {
	switch m {
	case Auto:
		return "auto"
	case Single:
		return "single"
	default:
		return "unknown"
	}
}

// ParseMode is the inverse of Mode.String.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "auto":
		return Auto, nil
	case "single":
		return Single, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrMode, s)
}

// Channel is one probe input. BitMask selects its bit in a sample byte.
type Channel struct {
	Ordinal int
	Enabled bool
	BitMask uint32
}

// Settings is the persisted analyzer configuration.
type Settings struct {
	SampleFrequency uint32
	// EnabledChannels has bit n-1 set for enabled channel n.
	EnabledChannels uint8
	// TriggerChannel is 1..3, or 0 for free-run.
	TriggerChannel  uint8
	TriggerEdge     hal.Edge
	TriggerPosition uint8
	Mode            Mode
}

// DefaultSettings samples all channels at 1 MHz, free-running.
func DefaultSettings() Settings {
	return Settings{
		SampleFrequency: 1_000_000,
		EnabledChannels: 0b111,
		TriggerChannel:  0,
		TriggerEdge:     hal.EdgeRising,
		TriggerPosition: 50,
		Mode:            Auto,
	}
}

func (s Settings) Validate() error {
	if s.SampleFrequency < MinSampleFrequency || s.SampleFrequency > MaxSampleFrequency {
		return fmt.Errorf("%w: %d Hz", ErrFrequency, s.SampleFrequency)
	}
	if s.EnabledChannels>>NumChannels != 0 {
		return fmt.Errorf("%w: enabled mask %#x", ErrChannel, s.EnabledChannels)
	}
	if s.TriggerChannel > NumChannels {
		return fmt.Errorf("%w: trigger channel %d", ErrChannel, s.TriggerChannel)
	}
	if s.TriggerEdge > hal.EdgeEither {
		return fmt.Errorf("%w: %d", ErrEdge, s.TriggerEdge)
	}
	if s.TriggerPosition > 100 {
		return fmt.Errorf("%w: %d", ErrPosition, s.TriggerPosition)
	}
	if s.Mode > Single {
		return fmt.Errorf("%w: %d", ErrMode, s.Mode)
	}
	return nil
}

// Channels expands the enabled mask. Channel n samples bit n-1.
func (s Settings) Channels() [NumChannels]Channel {
	var out [NumChannels]Channel
	for i := range out {
		out[i] = Channel{
			Ordinal: i + 1,
			Enabled: s.EnabledChannels&(1<<i) != 0,
			BitMask: 1 << i,
		}
	}
	return out
}

func (s Settings) trigger() trigger.Config {
	cfg := trigger.Config{
		Channel:         int(s.TriggerChannel),
		Edge:            s.TriggerEdge,
		PositionPercent: int(s.TriggerPosition),
		Enabled:         s.EnabledChannels,
	}
	if s.TriggerChannel > 0 {
		cfg.Mask = 1 << (s.TriggerChannel - 1)
	}
	return cfg
}

func lanes(chans [NumChannels]Channel) [decimate.Channels]decimate.Channel {
	var out [decimate.Channels]decimate.Channel
	for i, c := range chans {
		out[i] = decimate.Channel{Enabled: c.Enabled, Mask: c.BitMask}
	}
	return out
}
