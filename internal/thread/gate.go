package thread

// timeoutReturn is the bit pattern wait_until_woken leaves in x0 when a
// wait expires by timeout rather than by an explicit wake: spec's gate
// semantics call for "return value is negative" on timeout and zero on
// wake, and nothing else records which of the two happened once gate is
// back at 0, so the register is written here, at the only two places a
// parked thread's wait actually resolves.
const timeoutReturn uint64 = uint64(^uint32(0)) // -1 as a 32-bit value in x0's low 32 bits, upper 32 bits zero per the ABI's 32-bit result convention

// WaitUntilWoken implements the wait_until_woken syscall body for self.
// If the gate already has a pending event, it is consumed immediately and
// blocked is false. Otherwise self is removed from runnable, gate is set to
// ThreadWaiting, and (if timeoutTicks > 0) self is armed in the timeout
// queue; blocked is true and the caller (the trap dispatcher) must not
// write a return value into self's registers yet — that happens later,
// from WakeThread or Tick, once self is resumed.
func (c *Core) WaitUntilWoken(self uint32, timeoutTicks uint64) (result int32, blocked bool) {
	t := c.Pool.Get(self)
	if t.Gate > 0 {
		v := t.Gate
		t.Gate = 0
		return v, false
	}

	c.Remove(self)
	t.Gate = ThreadWaiting
	if timeoutTicks > 0 {
		c.armTimeout(self, timeoutTicks)
	}
	return 0, true
}

// WakeThread implements wake_thread(target) issued by caller. The two
// threads' current maps must match. If target is blocked in
// WaitUntilWoken, it is unparked (timeout entry, if any, removed and its
// remaining ticks folded into the next waiter) and reinserted into
// runnable immediately after caller. Otherwise target's gate is
// saturating-incremented so a future wait returns immediately.
func (c *Core) WakeThread(caller, target uint32) error {
	callerT := c.Pool.Get(caller)
	targetT := c.Pool.Get(target)
	if callerT.CurrentMap != targetT.CurrentMap {
		return ErrPermissionDenied
	}

	if targetT.Gate == ThreadWaiting {
		if targetT.inTimeout {
			c.disarmTimeout(target)
		}
		targetT.Gate = 0
		targetT.Regs[0] = 0 // "on wake: return value is zero"
		c.InsertAfter(caller, target)
		return nil
	}

	if targetT.Gate < GateMax {
		targetT.Gate++
	}
	return nil
}

// armTimeout inserts code into the delta-encoded timeout queue so it fires
// after exactly ticks core ticks.
func (c *Core) armTimeout(code uint32, ticks uint64) {
	t := c.Pool.Get(code)
	t.inTimeout = true

	if c.timeout == None {
		t.tnext, t.tprev = None, None
		t.ticks = ticks
		c.timeout = code
		return
	}

	cur := c.timeout
	remaining := ticks
	var prev uint32 = None
	for cur != None {
		curT := c.Pool.Get(cur)
		if remaining < curT.ticks {
			break
		}
		remaining -= curT.ticks
		prev = cur
		cur = curT.tnext
	}

	t.ticks = remaining
	t.tprev = prev
	t.tnext = cur
	if cur != None {
		curT := c.Pool.Get(cur)
		curT.ticks -= remaining
		curT.tprev = code
	}
	if prev == None {
		c.timeout = code
	} else {
		c.Pool.Get(prev).tnext = code
	}
}

// disarmTimeout removes code from the timeout queue, folding its remaining
// delta into the following entry so the queue's total stays correct.
func (c *Core) disarmTimeout(code uint32) {
	t := c.Pool.Get(code)
	t.inTimeout = false

	if t.tnext != None {
		c.Pool.Get(t.tnext).ticks += t.ticks
		c.Pool.Get(t.tnext).tprev = t.tprev
	}
	if t.tprev != None {
		c.Pool.Get(t.tprev).tnext = t.tnext
	} else {
		c.timeout = t.tnext
	}
	t.tnext, t.tprev = None, None
}

// Tick advances the timeout queue by one tick, waking every thread whose
// deadline has now been reached (spec §4.2: "any zero-reaching chain is
// spliced into runnable atomically"). The svc dispatch loop never calls
// Tick (a Gate SVC with x0 == 0 is a wait there); the timeout queue
// advances only through direct calls to this method.
func (c *Core) Tick() {
	if c.timeout == None {
		return
	}
	head := c.Pool.Get(c.timeout)
	if head.ticks > 0 {
		head.ticks--
	}

	var woken []uint32
	for c.timeout != None && c.Pool.Get(c.timeout).ticks == 0 {
		code := c.timeout
		t := c.Pool.Get(code)
		c.timeout = t.tnext
		if c.timeout != None {
			c.Pool.Get(c.timeout).tprev = None
		}
		t.tnext, t.tprev = None, None
		t.inTimeout = false
		t.Gate = 0
		t.Regs[0] = timeoutReturn // "on timeout: return value is negative"
		woken = append(woken, code)
	}

	for _, code := range woken {
		c.InsertHead(code)
	}
}
