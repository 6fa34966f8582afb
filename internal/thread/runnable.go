package thread

// Core is one CPU's scheduling state: the circular doubly-linked runnable
// list (the running thread is always the head) and the timeout queue that
// feeds it.
type Core struct {
	Pool     *Pool
	runnable uint32 // head of the circular list, None if empty
	timeout  uint32 // head of the timeout queue, None if empty
}

// NewCore creates scheduling state over pool, with nothing runnable yet.
func NewCore(pool *Pool) *Core {
	return &Core{Pool: pool, runnable: None, timeout: None}
}

// Current returns the running thread's code, or None if nothing is
// runnable.
func (c *Core) Current() uint32 { return c.runnable }

// InsertHead makes code the new head of the runnable list (used when a
// freshly created or newly woken thread should run next).
func (c *Core) InsertHead(code uint32) {
	if c.runnable == None {
		t := c.Pool.Get(code)
		t.next, t.prev = code, code
		c.runnable = code
		return
	}
	c.insertBefore(c.runnable, code)
	c.runnable = code
}

// InsertAfter links code into the runnable list immediately after after.
func (c *Core) InsertAfter(after, code uint32) {
	if c.runnable == None {
		c.InsertHead(code)
		return
	}
	at := c.Pool.Get(after)
	c.insertBefore(at.next, code)
}

// insertBefore splices code into the circular list immediately before at.
func (c *Core) insertBefore(at, code uint32) {
	atT := c.Pool.Get(at)
	prev := atT.prev
	prevT := c.Pool.Get(prev)
	t := c.Pool.Get(code)

	t.next, t.prev = at, prev
	prevT.next = code
	atT.prev = code
}

// Remove unlinks code from the runnable list. If code was the head, the
// next thread becomes head; if code was the only runnable thread, the list
// becomes empty.
func (c *Core) Remove(code uint32) {
	t := c.Pool.Get(code)
	if t.next == code { // sole element
		c.runnable = None
		t.next, t.prev = None, None
		return
	}
	nextT := c.Pool.Get(t.next)
	prevT := c.Pool.Get(t.prev)
	nextT.prev = t.prev
	prevT.next = t.next
	if c.runnable == code {
		c.runnable = t.next
	}
	t.next, t.prev = None, None
}

// Yield rotates the head to the next runnable thread and reports whether
// there was anyone else to switch to: spec §4.2 "returns false iff the list
// has one element".
func (c *Core) Yield() bool {
	if c.runnable == None {
		return false
	}
	head := c.Pool.Get(c.runnable)
	if head.next == c.runnable {
		return false
	}
	c.runnable = head.next
	return true
}
