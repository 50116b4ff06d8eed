// Package logger is the log sink task and the queue tasks use to reach it.
package logger

import (
	"fmt"
	"io"

	"multiprobe/hal"
	"multiprobe/probeos/kernel"
	"multiprobe/probeos/proto"
)

type Service struct {
	log    hal.Logger
	ep     kernel.Capability
	mirror io.Writer
	lines  uint64
}

func New(log hal.Logger, ep kernel.Capability) *Service {
	return &Service{log: log, ep: ep}
}

// Mirror copies every line to w, typically an on-screen console.
func (s *Service) Mirror(w io.Writer) { s.mirror = w }

// Lines returns the number of lines written.
func (s *Service) Lines() uint64 { return s.lines }

func (s *Service) Step(ctx *kernel.Context) {
	for {
		msg, ok := ctx.TryRecv(s.ep)
		if !ok {
			break
		}
		switch proto.Kind(msg.Kind) {
		case proto.MsgLogLine:
			s.write(msg.Payload())
		case proto.MsgError:
			code, ref, detail, ok := proto.DecodeErrorPayload(msg.Payload())
			if !ok {
				continue
			}
			s.write([]byte(fmt.Sprintf("error: %s %s: %s", ref, code, detail)))
		}
	}
	ctx.BlockOn(s.ep)
}

func (s *Service) write(b []byte) {
	s.lines++
	if s.log != nil {
		s.log.WriteLineBytes(b)
	}
	if s.mirror != nil {
		s.mirror.Write(b)
		s.mirror.Write([]byte("\r\n"))
	}
}
