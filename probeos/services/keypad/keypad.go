// Package keypad turns front-panel key presses into analyzer requests.
package keypad

import (
	"multiprobe/hal"
	"multiprobe/probeos/acq"
	"multiprobe/probeos/kernel"
	"multiprobe/probeos/proto"
	"multiprobe/probeos/services/settings"
)

// Frequencies is the sample-rate ladder walked by Up and Down.
var Frequencies = []uint32{
	1_000, 2_000, 5_000,
	10_000, 20_000, 50_000,
	100_000, 200_000, 500_000,
	1_000_000, 2_000_000, 5_000_000,
	10_000_000, 20_000_000, 50_000_000,
}

const positionStep = 5

// Service keeps its own view of the settings it has requested so it can
// send absolute values.
type Service struct {
	in       hal.Input
	events   <-chan hal.KeyEvent
	analyzer kernel.Capability
	store    kernel.Capability

	view acq.Settings
}

// New binds the keypad to the analyzer endpoint and, optionally, the
// settings service endpoint.
func New(in hal.Input, analyzer, store kernel.Capability, initial acq.Settings) *Service {
	return &Service{in: in, analyzer: analyzer, store: store, view: initial}
}

// View returns the settings as requested so far.
func (s *Service) View() acq.Settings { return s.view }

func (s *Service) Step(ctx *kernel.Context) {
	if s.events == nil && s.in != nil {
		if kbd := s.in.Keyboard(); kbd != nil {
			s.events = kbd.Events()
		}
	}
	for s.events != nil {
		select {
		case ev := <-s.events:
			if ev.Press {
				s.Handle(ctx, ev)
			}
			continue
		default:
		}
		break
	}
	ctx.BlockOnTick()
}

// Handle maps one key press. The view only moves once the analyzer has
// accepted the request, so a full mailbox drops the key instead of
// desynchronizing the two.
//
//	1 2 3         toggle channel
//	t  F1         next trigger channel (0 = free-run)
//	e  F2         next trigger edge
//	Left Right    trigger position -/+5%
//	Up Down       sample frequency ladder
//	m  F3         auto/single
//	r  Enter      run
//	c  Esc        cancel
//	s  F4         save settings
func (s *Service) Handle(ctx *kernel.Context, ev hal.KeyEvent) kernel.SendResult {
	v := s.view
	switch {
	case ev.Rune >= '1' && ev.Rune <= '3':
		ch := uint8(ev.Rune - '0')
		v.EnabledChannels ^= 1 << (ch - 1)
		return s.commit(ctx, v, proto.MsgAnalyzerToggle, proto.ChannelPayload(ch))
	case ev.Rune == 't' || ev.Code == hal.KeyF1:
		v.TriggerChannel = (v.TriggerChannel + 1) % (acq.NumChannels + 1)
		return s.commitTrigger(ctx, v)
	case ev.Rune == 'e' || ev.Code == hal.KeyF2:
		v.TriggerEdge = (v.TriggerEdge + 1) % (hal.EdgeEither + 1)
		return s.commitTrigger(ctx, v)
	case ev.Code == hal.KeyLeft:
		if v.TriggerPosition >= positionStep {
			v.TriggerPosition -= positionStep
		} else {
			v.TriggerPosition = 0
		}
		return s.commitTrigger(ctx, v)
	case ev.Code == hal.KeyRight:
		v.TriggerPosition += positionStep
		if v.TriggerPosition > 100 {
			v.TriggerPosition = 100
		}
		return s.commitTrigger(ctx, v)
	case ev.Code == hal.KeyUp:
		v.SampleFrequency = stepFrequency(v.SampleFrequency, 1)
		return s.commit(ctx, v, proto.MsgAnalyzerFreq, proto.FreqPayload(v.SampleFrequency))
	case ev.Code == hal.KeyDown:
		v.SampleFrequency = stepFrequency(v.SampleFrequency, -1)
		return s.commit(ctx, v, proto.MsgAnalyzerFreq, proto.FreqPayload(v.SampleFrequency))
	case ev.Rune == 'm' || ev.Code == hal.KeyF3:
		if v.Mode == acq.Auto {
			v.Mode = acq.Single
		} else {
			v.Mode = acq.Auto
		}
		return s.commit(ctx, v, proto.MsgAnalyzerMode, proto.ModePayload(uint8(v.Mode)))
	case ev.Rune == 'r' || ev.Code == hal.KeyEnter:
		return s.commit(ctx, v, proto.MsgAnalyzerRun, nil)
	case ev.Rune == 'c' || ev.Code == hal.KeyEscape:
		return s.commit(ctx, v, proto.MsgAnalyzerCancel, nil)
	case ev.Rune == 's' || ev.Code == hal.KeyF4:
		if s.store.Valid() {
			return ctx.SendTo(s.store, uint16(proto.MsgSettingsSave), settings.Payload(s.view))
		}
	}
	return kernel.SendOK
}

func (s *Service) commitTrigger(ctx *kernel.Context, v acq.Settings) kernel.SendResult {
	return s.commit(ctx, v, proto.MsgAnalyzerTrigger, proto.TriggerPayload(v.TriggerChannel, uint8(v.TriggerEdge), v.TriggerPosition))
}

// commit sends one request and adopts v if the analyzer took it.
func (s *Service) commit(ctx *kernel.Context, v acq.Settings, kind proto.Kind, payload []byte) kernel.SendResult {
	res := ctx.SendTo(s.analyzer, uint16(kind), payload)
	if res == kernel.SendOK {
		s.view = v
	}
	return res
}

// stepFrequency moves hz dir rungs along Frequencies. An off-ladder value
// counts as sitting just above the nearest rung below it.
func stepFrequency(hz uint32, dir int) uint32 {
	i := 0
	for i+1 < len(Frequencies) && Frequencies[i+1] <= hz {
		i++
	}
	if Frequencies[i] != hz && dir < 0 {
		dir++
	}
	i += dir
	if i < 0 {
		i = 0
	}
	if i >= len(Frequencies) {
		i = len(Frequencies) - 1
	}
	return Frequencies[i]
}
