package kernel

// Context is handed to a task for the duration of one Step.
type Context struct {
	k      *Kernel
	taskID TaskID

	blocked     bool
	blockOnTick bool
	blockOn     Endpoint
}

func (c *Context) TaskID() TaskID { return c.taskID }

// NowTick returns the kernel tick count.
func (c *Context) NowTick() uint64 { return c.k.NowTick() }

// TryRecv pops one message from the endpoint without waiting.
func (c *Context) TryRecv(epCap Capability) (Message, bool) {
	if !epCap.Valid() || !epCap.canRecv() {
		return Message{}, false
	}
	return c.k.recv(epCap.ep)
}

// BlockOn parks the task after this Step until a message reaches epCap.
// It returns false, without blocking, if a message is already queued.
func (c *Context) BlockOn(epCap Capability) bool {
	if !epCap.Valid() || !epCap.canRecv() || epCap.ep >= c.k.endpointCount {
		return false
	}
	if c.k.endpoints[epCap.ep].q.len() > 0 {
		return false
	}
	c.blocked = true
	c.blockOnTick = false
	c.blockOn = epCap.ep
	return true
}

// BlockOnTick parks the task after this Step until the next Kernel.Tick.
func (c *Context) BlockOnTick() {
	c.blocked = true
	c.blockOnTick = true
}

// Send delivers payload to toCap with From set to fromCap's endpoint.
func (c *Context) Send(fromCap, toCap Capability, kind uint16, payload []byte) SendResult {
	if !fromCap.Valid() {
		return SendErrInvalidCap
	}
	return c.sendFrom(fromCap.ep, toCap, kind, payload)
}

// SendTo delivers payload to toCap with From set to 0.
func (c *Context) SendTo(toCap Capability, kind uint16, payload []byte) SendResult {
	return c.sendFrom(0, toCap, kind, payload)
}

func (c *Context) sendFrom(from Endpoint, toCap Capability, kind uint16, payload []byte) SendResult {
	if !toCap.Valid() {
		return SendErrInvalidCap
	}
	if !toCap.canSend() {
		return SendErrNoSendRight
	}
	return c.k.send(from, toCap.ep, kind, payload)
}

// Post sends from outside any task, for example from the platform runner.
func (k *Kernel) Post(toCap Capability, kind uint16, payload []byte) SendResult {
	if !toCap.Valid() {
		return SendErrInvalidCap
	}
	if !toCap.canSend() {
		return SendErrNoSendRight
	}
	return k.send(0, toCap.ep, kind, payload)
}
