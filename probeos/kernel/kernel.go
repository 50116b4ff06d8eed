// Package kernel is a cooperative round-robin scheduler with capability
// guarded message endpoints. Tasks never block the caller: a task that
// waits says so through its Context and is skipped until woken.
package kernel

const (
	maxTasks     = 16
	maxEndpoints = 16
	mailboxSlots = 8
)

type TaskID uint8

// Rights define which operations a capability allows.
type Rights uint8

const (
	RightSend Rights = 1 << iota
	RightRecv
)

// Endpoint identifies a mailbox.
type Endpoint uint8

// Capability grants access to an endpoint. The zero value is invalid.
type Capability struct {
	ep     Endpoint
	rights Rights
}

func (c Capability) Valid() bool   { return c.rights != 0 }
func (c Capability) canSend() bool { return c.rights&RightSend != 0 }
func (c Capability) canRecv() bool { return c.rights&RightRecv != 0 }

// Restrict returns c with only the given rights kept.
func (c Capability) Restrict(rights Rights) Capability {
	r := c.rights & rights
	if r == 0 {
		return Capability{}
	}
	return Capability{ep: c.ep, rights: r}
}

// MaxMessageBytes bounds a message payload.
const MaxMessageBytes = 64

// Message is a fixed-size envelope copied into the destination mailbox.
type Message struct {
	From Endpoint
	Kind uint16
	Len  uint16
	Data [MaxMessageBytes]byte
}

// Payload returns the valid part of Data.
func (m *Message) Payload() []byte {
	n := int(m.Len)
	if n > len(m.Data) {
		n = len(m.Data)
	}
	return m.Data[:n]
}

// SendResult describes the outcome of a send.
type SendResult uint8

const (
	SendOK SendResult = iota
	SendErrInvalidCap
	SendErrNoSendRight
	SendErrNoEndpoint
	SendErrPayloadTooLarge
	SendErrQueueFull
)

func (r SendResult) String() string {
	switch r {
	case SendOK:
		return "ok"
	case SendErrInvalidCap:
		return "invalid capability"
	case SendErrNoSendRight:
		return "no send right"
	case SendErrNoEndpoint:
		return "no such endpoint"
	case SendErrPayloadTooLarge:
		return "payload too large"
	case SendErrQueueFull:
		return "queue full"
	default:
		return "unknown"
	}
}

// Task is a cooperative unit of execution. Step must return promptly.
type Task interface {
	Step(*Context)
}

type taskState struct {
	task     Task
	runnable bool
	dead     bool
}

type endpointState struct {
	q        mailbox
	waitMask uint32
}

// Kernel schedules tasks and routes messages. It is not safe for
// concurrent use; the platform runner drives it from one loop.
type Kernel struct {
	endpoints     [maxEndpoints]endpointState
	endpointCount Endpoint

	tasks     [maxTasks]taskState
	taskCount TaskID
	rr        TaskID

	tick         uint64
	tickWaitMask uint32
}

func New() *Kernel { return &Kernel{} }

// NewEndpoint allocates an endpoint. It returns an invalid capability when
// the table is full.
func (k *Kernel) NewEndpoint(rights Rights) Capability {
	if k.endpointCount >= maxEndpoints || rights == 0 {
		return Capability{}
	}
	ep := k.endpointCount
	k.endpointCount++
	return Capability{ep: ep, rights: rights}
}

// AddTask registers t as runnable. ok is false when the table is full.
func (k *Kernel) AddTask(t Task) (id TaskID, ok bool) {
	if k.taskCount >= maxTasks || t == nil {
		return 0, false
	}
	id = k.taskCount
	k.taskCount++
	k.tasks[id] = taskState{task: t, runnable: true}
	return id, true
}

// Step runs one step of the next runnable task. It reports whether a task
// ran.
func (k *Kernel) Step() bool {
	for i := TaskID(0); i < k.taskCount; i++ {
		id := (k.rr + i) % k.taskCount
		st := &k.tasks[id]
		if !st.runnable || st.dead {
			continue
		}
		k.rr = (id + 1) % k.taskCount

		ctx := &Context{k: k, taskID: id}
		if !k.run(st, ctx) {
			st.dead = true
			return true
		}
		if ctx.blocked {
			st.runnable = false
			if ctx.blockOnTick {
				k.tickWaitMask |= 1 << id
			} else if ctx.blockOn < k.endpointCount {
				k.endpoints[ctx.blockOn].waitMask |= 1 << id
			}
		}
		return true
	}
	return false
}

// RunUntilIdle steps tasks until none is runnable or budget steps ran.
func (k *Kernel) RunUntilIdle(budget int) int {
	n := 0
	for n < budget && k.Step() {
		n++
	}
	return n
}

// run steps one task and turns a panic into a dead task plus a call to the
// process panic handler.
func (k *Kernel) run(st *taskState, ctx *Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			triggerPanic(PanicInfo{TaskID: ctx.taskID, Value: r})
			ok = false
		}
	}()
	st.task.Step(ctx)
	return true
}

// Tick advances the tick counter and wakes tasks waiting for it.
func (k *Kernel) Tick() {
	k.tick++
	wait := k.tickWaitMask
	k.tickWaitMask = 0
	for tid := TaskID(0); tid < k.taskCount; tid++ {
		if wait&(1<<tid) != 0 {
			k.tasks[tid].runnable = true
		}
	}
}

// NowTick returns the number of ticks seen.
func (k *Kernel) NowTick() uint64 { return k.tick }

func (k *Kernel) send(from, to Endpoint, kind uint16, payload []byte) SendResult {
	if to >= k.endpointCount {
		return SendErrNoEndpoint
	}
	if len(payload) > MaxMessageBytes {
		return SendErrPayloadTooLarge
	}

	msg := Message{From: from, Kind: kind, Len: uint16(len(payload))}
	copy(msg.Data[:], payload)

	ep := &k.endpoints[to]
	if !ep.q.push(msg) {
		return SendErrQueueFull
	}

	wait := ep.waitMask
	ep.waitMask = 0
	for tid := TaskID(0); tid < k.taskCount; tid++ {
		if wait&(1<<tid) != 0 {
			k.tasks[tid].runnable = true
		}
	}
	return SendOK
}

func (k *Kernel) recv(ep Endpoint) (Message, bool) {
	if ep >= k.endpointCount {
		return Message{}, false
	}
	return k.endpoints[ep].q.pop()
}
