package server

import "sync"

// Counter is the process-wide count of active conversations.
//
// Both mutations hold mu. Read takes the lock only for the load itself, so a
// caller that reads, compares and then increments is performing two separate
// critical sections. The literal admission mode relies on exactly that gap.
type Counter struct {
	mu   sync.Mutex
	n    int
	peak int
}

// NewCounter returns a counter starting at zero.
func NewCounter() *Counter {
	return &Counter{}
}

// Increment adds one active conversation.
func (c *Counter) Increment() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.n++
	if c.n > c.peak {
		c.peak = c.n
	}
}

// Decrement removes one active conversation.
func (c *Counter) Decrement() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.n--
}

// Read returns the current count. The value is advisory.
func (c *Counter) Read() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.n
}

// Peak returns the highest count ever observed.
func (c *Counter) Peak() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.peak
}
