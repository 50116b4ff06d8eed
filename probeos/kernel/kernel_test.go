package kernel

import "testing"

type countTask struct {
	n    int
	tick bool
}

func (t *countTask) Step(ctx *Context) {
	t.n++
	if t.tick {
		ctx.BlockOnTick()
	}
}

type recvTask struct {
	ep   Capability
	got  []uint16
	runs int
}

func (t *recvTask) Step(ctx *Context) {
	t.runs++
	for {
		msg, ok := ctx.TryRecv(t.ep)
		if !ok {
			break
		}
		t.got = append(t.got, msg.Kind)
	}
	ctx.BlockOn(t.ep)
}

func TestRoundRobin(t *testing.T) {
	k := New()
	a, b := &countTask{}, &countTask{}
	k.AddTask(a)
	k.AddTask(b)

	for i := 0; i < 6; i++ {
		k.Step()
	}
	if a.n != 3 || b.n != 3 {
		t.Fatalf("steps = %d, %d, want 3, 3", a.n, b.n)
	}
}

func TestBlockOnTick(t *testing.T) {
	k := New()
	a := &countTask{tick: true}
	k.AddTask(a)

	if ran := k.RunUntilIdle(10); ran != 1 {
		t.Fatalf("RunUntilIdle() = %d, want 1", ran)
	}
	k.Tick()
	if ran := k.RunUntilIdle(10); ran != 1 {
		t.Fatalf("RunUntilIdle() after Tick = %d, want 1", ran)
	}
	if got := k.NowTick(); got != 1 {
		t.Fatalf("NowTick() = %d, want 1", got)
	}
}

func TestBlockOnEndpointWakesOnSend(t *testing.T) {
	k := New()
	ep := k.NewEndpoint(RightSend | RightRecv)
	r := &recvTask{ep: ep.Restrict(RightRecv)}
	k.AddTask(r)

	k.RunUntilIdle(10)
	if r.runs != 1 {
		t.Fatalf("runs = %d, want 1", r.runs)
	}
	if res := k.Post(ep.Restrict(RightSend), 7, nil); res != SendOK {
		t.Fatalf("Post() = %v, want %v", res, SendOK)
	}
	k.RunUntilIdle(10)
	if r.runs != 2 || len(r.got) != 1 || r.got[0] != 7 {
		t.Fatalf("runs = %d, got = %v, want 2, [7]", r.runs, r.got)
	}
}

func TestMailboxFull(t *testing.T) {
	k := New()
	ep := k.NewEndpoint(RightSend | RightRecv)
	for i := 0; i < mailboxSlots; i++ {
		if res := k.Post(ep, 1, []byte("x")); res != SendOK {
			t.Fatalf("Post(%d) = %v, want %v", i, res, SendOK)
		}
	}
	if res := k.Post(ep, 1, []byte("x")); res != SendErrQueueFull {
		t.Fatalf("Post() on full mailbox = %v, want %v", res, SendErrQueueFull)
	}
}

func TestCapabilityRights(t *testing.T) {
	k := New()
	ep := k.NewEndpoint(RightSend | RightRecv)
	recvOnly := ep.Restrict(RightRecv)

	if res := k.Post(recvOnly, 1, nil); res != SendErrNoSendRight {
		t.Fatalf("Post(recv only) = %v, want %v", res, SendErrNoSendRight)
	}
	if res := k.Post(Capability{}, 1, nil); res != SendErrInvalidCap {
		t.Fatalf("Post(zero cap) = %v, want %v", res, SendErrInvalidCap)
	}
	if res := k.Post(ep, 1, make([]byte, MaxMessageBytes+1)); res != SendErrPayloadTooLarge {
		t.Fatalf("Post(large) = %v, want %v", res, SendErrPayloadTooLarge)
	}

	ctx := &Context{k: k}
	k.Post(ep, 3, []byte("abc"))
	if _, ok := ctx.TryRecv(ep.Restrict(RightSend)); ok {
		t.Fatalf("TryRecv(send only) = ok, want refused")
	}
	msg, ok := ctx.TryRecv(recvOnly)
	if !ok || string(msg.Payload()) != "abc" {
		t.Fatalf("TryRecv() = %q, %v, want abc, true", msg.Payload(), ok)
	}
}

func TestPayloadClampsLen(t *testing.T) {
	var msg Message
	msg.Len = MaxMessageBytes + 10
	if got := len(msg.Payload()); got != MaxMessageBytes {
		t.Fatalf("len(Payload()) = %d, want %d", got, MaxMessageBytes)
	}
}

type panicTask struct{}

func (panicTask) Step(*Context) { panic("boom") }

func TestPanicKillsTaskAndCallsHandler(t *testing.T) {
	var got PanicInfo
	SetPanicHandler(func(info PanicInfo) { got = info })

	k := New()
	other := &countTask{}
	k.AddTask(panicTask{})
	k.AddTask(other)

	k.RunUntilIdle(5)
	if !InPanicMode() {
		t.Fatalf("InPanicMode() = false after task panic")
	}
	if got.Value != "boom" || got.TaskID != 0 {
		t.Fatalf("PanicInfo = %+v, want task 0 value boom", got)
	}
	if other.n != 4 {
		t.Fatalf("surviving task steps = %d, want 4", other.n)
	}
	if first, ok := FirstPanic(); !ok || first.Value != "boom" {
		t.Fatalf("FirstPanic() = %+v, %v, want value boom", first, ok)
	}
}
