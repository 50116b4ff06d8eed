package settings

import (
	"multiprobe/probeos/kernel"
	"multiprobe/probeos/proto"
)

// Service saves records sent as MsgSettingsSave and reports the outcome to
// notify with MsgSettingsSaved or MsgError.
type Service struct {
	store  *Store
	ep     kernel.Capability
	notify kernel.Capability
	saves  int
}

func NewService(store *Store, ep, notify kernel.Capability) *Service {
	return &Service{store: store, ep: ep, notify: notify}
}

// Saves returns the number of records written.
func (s *Service) Saves() int { return s.saves }

func (s *Service) Step(ctx *kernel.Context) {
	for {
		msg, ok := ctx.TryRecv(s.ep)
		if !ok {
			break
		}
		if proto.Kind(msg.Kind) != proto.MsgSettingsSave {
			s.fail(ctx, proto.ErrBadMessage, proto.Kind(msg.Kind), "unexpected message")
			continue
		}
		st, err := FromPayload(msg.Payload())
		if err != nil {
			s.fail(ctx, proto.ErrInvalid, proto.MsgSettingsSave, err.Error())
			continue
		}
		if err := s.store.Save(st); err != nil {
			s.fail(ctx, proto.ErrInternal, proto.MsgSettingsSave, err.Error())
			continue
		}
		s.saves++
		if s.notify.Valid() {
			ctx.SendTo(s.notify, uint16(proto.MsgSettingsSaved), msg.Payload())
		}
	}
	ctx.BlockOn(s.ep)
}

func (s *Service) fail(ctx *kernel.Context, code proto.ErrCode, ref proto.Kind, detail string) {
	if !s.notify.Valid() {
		return
	}
	d := []byte(detail)
	if max := kernel.MaxMessageBytes - 4; len(d) > max {
		d = d[:max]
	}
	ctx.SendTo(s.notify, uint16(proto.MsgError), proto.ErrorPayload(code, ref, d))
}
