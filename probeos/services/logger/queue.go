package logger

import (
	"multiprobe/probeos/kernel"
	"multiprobe/probeos/proto"
)

const queueDepth = 16

// Queue is a hal.Logger for code that runs inside a task but has no
// Context at hand. Lines are held until Flush sends them to the service.
// When the queue overflows the oldest lines are dropped.
type Queue struct {
	lines   []string
	dropped int
}

func (q *Queue) WriteLineString(s string) {
	if len(q.lines) >= queueDepth {
		q.lines = q.lines[1:]
		q.dropped++
	}
	q.lines = append(q.lines, s)
}

func (q *Queue) WriteLineBytes(b []byte) { q.WriteLineString(string(b)) }

// Len returns the number of pending lines.
func (q *Queue) Len() int { return len(q.lines) }

// Flush sends pending lines until the service mailbox fills up.
func (q *Queue) Flush(ctx *kernel.Context, to kernel.Capability) {
	for len(q.lines) > 0 {
		payload := proto.LogLinePayload([]byte(q.lines[0]), kernel.MaxMessageBytes)
		if ctx.SendTo(to, uint16(proto.MsgLogLine), payload) != kernel.SendOK {
			return
		}
		q.lines = q.lines[1:]
	}
	if len(q.lines) == 0 {
		q.lines = nil
	}
}
