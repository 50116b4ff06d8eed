package keypad

import (
	"testing"

	"multiprobe/hal"
	"multiprobe/probeos/acq"
	"multiprobe/probeos/kernel"
	"multiprobe/probeos/proto"
)

type chanKeyboard struct{ ch chan hal.KeyEvent }

func (k chanKeyboard) Events() <-chan hal.KeyEvent { return k.ch }

type chanInput struct{ kbd chanKeyboard }

func (in chanInput) Keyboard() hal.Keyboard { return in.kbd }

func drain(k *kernel.Kernel, ep kernel.Capability) []kernel.Message {
	ctx := &collector{}
	k.AddTask(ctx)
	ctx.ep = ep
	k.RunUntilIdle(4)
	return ctx.msgs
}

type collector struct {
	ep   kernel.Capability
	msgs []kernel.Message
}

func (p *collector) Step(ctx *kernel.Context) {
	for {
		m, ok := ctx.TryRecv(p.ep)
		if !ok {
			break
		}
		p.msgs = append(p.msgs, m)
	}
	ctx.BlockOn(p.ep)
}

func TestKeysBecomeRequests(t *testing.T) {
	k := kernel.New()
	an := k.NewEndpoint(kernel.RightSend | kernel.RightRecv)
	st := k.NewEndpoint(kernel.RightSend | kernel.RightRecv)

	kbd := chanKeyboard{ch: make(chan hal.KeyEvent, 16)}
	svc := New(chanInput{kbd: kbd}, an.Restrict(kernel.RightSend), st.Restrict(kernel.RightSend), acq.DefaultSettings())
	k.AddTask(svc)

	for _, ev := range []hal.KeyEvent{
		{Press: true, Rune: '2'},
		{Press: true, Code: hal.KeyF1},
		{Press: false, Code: hal.KeyF1},
		{Press: true, Code: hal.KeyRight},
		{Press: true, Code: hal.KeyUp},
		{Press: true, Rune: 'm'},
		{Press: true, Code: hal.KeyEnter},
		{Press: true, Rune: 's'},
	} {
		kbd.ch <- ev
	}
	k.Step()

	msgs := drain(k, an.Restrict(kernel.RightRecv))
	want := []proto.Kind{
		proto.MsgAnalyzerToggle,
		proto.MsgAnalyzerTrigger,
		proto.MsgAnalyzerTrigger,
		proto.MsgAnalyzerFreq,
		proto.MsgAnalyzerMode,
		proto.MsgAnalyzerRun,
	}
	if len(msgs) != len(want) {
		t.Fatalf("got %d messages, want %d", len(msgs), len(want))
	}
	for i, m := range msgs {
		if proto.Kind(m.Kind) != want[i] {
			t.Fatalf("message %d = %v, want %v", i, proto.Kind(m.Kind), want[i])
		}
	}

	ch, _, pos, ok := proto.DecodeTriggerPayload(msgs[2].Payload())
	if !ok || ch != 1 || pos != 55 {
		t.Fatalf("trigger payload = ch %d pos %d, want ch 1 pos 55", ch, pos)
	}
	hz, _ := proto.DecodeFreqPayload(msgs[3].Payload())
	if hz != 2_000_000 {
		t.Fatalf("freq payload = %d, want 2000000", hz)
	}

	v := svc.View()
	if v.EnabledChannels != 0b101 || v.Mode != acq.Single {
		t.Fatalf("View() = %+v", v)
	}

	saved := drain(k, st.Restrict(kernel.RightRecv))
	if len(saved) != 1 || proto.Kind(saved[0].Kind) != proto.MsgSettingsSave {
		t.Fatalf("settings messages = %d, want one save", len(saved))
	}
}

func TestStepFrequency(t *testing.T) {
	tests := []struct {
		hz   uint32
		dir  int
		want uint32
	}{
		{1_000_000, 1, 2_000_000},
		{1_000_000, -1, 500_000},
		{1_000, -1, 1_000},
		{50_000_000, 1, 50_000_000},
		{3_000, 1, 5_000},
		{3_000, -1, 2_000},
	}
	for _, tt := range tests {
		if got := stepFrequency(tt.hz, tt.dir); got != tt.want {
			t.Fatalf("stepFrequency(%d, %d) = %d, want %d", tt.hz, tt.dir, got, tt.want)
		}
	}
}

func TestFullMailboxKeepsView(t *testing.T) {
	k := kernel.New()
	an := k.NewEndpoint(kernel.RightSend | kernel.RightRecv)

	kbd := chanKeyboard{ch: make(chan hal.KeyEvent, 16)}
	svc := New(chanInput{kbd: kbd}, an.Restrict(kernel.RightSend), kernel.Capability{}, acq.DefaultSettings())
	k.AddTask(svc)

	for i := 0; i < 8; i++ {
		kbd.ch <- hal.KeyEvent{Press: true, Rune: 'r'}
	}
	kbd.ch <- hal.KeyEvent{Press: true, Rune: '1'}
	k.Step()

	if got := svc.View().EnabledChannels; got != 0b111 {
		t.Fatalf("View().EnabledChannels = %03b, want 111", got)
	}
	msgs := drain(k, an.Restrict(kernel.RightRecv))
	if len(msgs) != 8 {
		t.Fatalf("got %d messages, want 8", len(msgs))
	}

	kbd.ch <- hal.KeyEvent{Press: true, Rune: '1'}
	k.Tick()
	k.Step()
	if got := svc.View().EnabledChannels; got != 0b110 {
		t.Fatalf("View().EnabledChannels = %03b, want 110", got)
	}
}
