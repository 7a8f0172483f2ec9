package messaging

import (
	"sync"
	"time"
)

// Clock hands out creation timestamps that never go backwards and never
// repeat, at the millisecond resolution the document store keeps. Two sends
// from the same process therefore always sort in the order they were made.
type Clock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Now}
}

func (c *Clock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(time.Millisecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Millisecond)
	}
	c.last = t
	return t
}
