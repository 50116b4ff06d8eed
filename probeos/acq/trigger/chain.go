package trigger

import (
	"fmt"

	"multiprobe/hal"
)

// Route is one edge of the event graph: when From fires, Via writes the
// control word for To.
type Route struct {
	From hal.Event
	Via  hal.ControlChannel
	To   hal.Action
}

func (r Route) String() string {
	return fmt.Sprintf("%s -> %s", r.From, r.To)
}

// Chain collects routes and wires them into the platform in one go.
//
//	trigger.NewChain().
//		On(hal.EventEdgeCaptured).Via(ctl[0]).Do(hal.ActionStartTimer).
//		On(hal.EventTimerExpired).Via(ctl[1]).Do(hal.ActionStopClock)
type Chain struct {
	routes []Route
	wired  int
}

func NewChain() *Chain { return &Chain{} }

// Link is a route under construction.
type Link struct {
	c    *Chain
	from hal.Event
	via  hal.ControlChannel
}

// On starts a route fired by ev.
func (c *Chain) On(ev hal.Event) *Link {
	return &Link{c: c, from: ev}
}

// Via selects the control channel that carries the route.
func (l *Link) Via(ch hal.ControlChannel) *Link {
	l.via = ch
	return l
}

// Do completes the route with action a.
func (l *Link) Do(a hal.Action) *Chain {
	l.c.routes = append(l.c.routes, Route{From: l.from, Via: l.via, To: a})
	return l.c
}

// Routes returns the routes in declaration order.
func (c *Chain) Routes() []Route { return c.routes }

// Wire programs every route. On failure the routes already wired are
// released.
func (c *Chain) Wire() error {
	for i, r := range c.routes {
		if r.Via == nil {
			c.Release()
			return fmt.Errorf("trigger: route %s: %w", r, hal.ErrInvalidRoute)
		}
		if err := r.Via.Wire(r.From, r.To); err != nil {
			c.Release()
			return fmt.Errorf("trigger: route %s: %w", r, err)
		}
		c.wired = i + 1
	}
	return nil
}

// Release disarms every wired route.
func (c *Chain) Release() {
	for _, r := range c.routes[:c.wired] {
		r.Via.Release()
	}
	c.wired = 0
}
