package logger

import (
	"bytes"
	"fmt"
	"testing"

	"multiprobe/probeos/kernel"
	"multiprobe/probeos/proto"
)

type lineLog struct{ lines []string }

func (l *lineLog) WriteLineString(s string) { l.lines = append(l.lines, s) }
func (l *lineLog) WriteLineBytes(b []byte)  { l.lines = append(l.lines, string(b)) }

type flushTask struct {
	q  *Queue
	to kernel.Capability
}

func (t *flushTask) Step(ctx *kernel.Context) {
	t.q.Flush(ctx, t.to)
	ctx.BlockOnTick()
}

func TestServiceWritesAndMirrors(t *testing.T) {
	k := kernel.New()
	ep := k.NewEndpoint(kernel.RightSend | kernel.RightRecv)
	log := &lineLog{}
	var console bytes.Buffer

	s := New(log, ep.Restrict(kernel.RightRecv))
	s.Mirror(&console)
	k.AddTask(s)

	k.Post(ep, uint16(proto.MsgLogLine), []byte("hello"))
	k.Post(ep, uint16(proto.MsgError), proto.ErrorPayload(proto.ErrInvalid, proto.MsgAnalyzerFreq, []byte("range")))
	k.RunUntilIdle(4)

	if len(log.lines) != 2 || log.lines[0] != "hello" {
		t.Fatalf("lines = %q, want [hello, error...]", log.lines)
	}
	if want := "error: analyzer_freq invalid: range"; log.lines[1] != want {
		t.Fatalf("lines[1] = %q, want %q", log.lines[1], want)
	}
	if got := console.String(); got != "hello\r\nerror: analyzer_freq invalid: range\r\n" {
		t.Fatalf("console = %q", got)
	}
	if s.Lines() != 2 {
		t.Fatalf("Lines() = %d, want 2", s.Lines())
	}
}

func TestQueueFlushesThroughService(t *testing.T) {
	k := kernel.New()
	ep := k.NewEndpoint(kernel.RightSend | kernel.RightRecv)
	log := &lineLog{}
	k.AddTask(New(log, ep.Restrict(kernel.RightRecv)))

	q := &Queue{}
	for i := 0; i < 12; i++ {
		q.WriteLineString(fmt.Sprintf("line %d", i))
	}
	k.AddTask(&flushTask{q: q, to: ep.Restrict(kernel.RightSend)})

	for i := 0; i < 4; i++ {
		k.RunUntilIdle(10)
		k.Tick()
	}
	if len(log.lines) != 12 || log.lines[11] != "line 11" {
		t.Fatalf("got %d lines, last %q", len(log.lines), log.lines[len(log.lines)-1])
	}
	if q.Len() != 0 {
		t.Fatalf("Len() = %d after flush, want 0", q.Len())
	}
}

func TestQueueDropsOldest(t *testing.T) {
	q := &Queue{}
	for i := 0; i < queueDepth+3; i++ {
		q.WriteLineString(fmt.Sprintf("%d", i))
	}
	if q.Len() != queueDepth || q.lines[0] != "3" {
		t.Fatalf("Len() = %d first = %q, want %d, 3", q.Len(), q.lines[0], queueDepth)
	}
}
