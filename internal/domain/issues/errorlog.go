package issues

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrorLogCounter is a zerolog hook that remembers when error-level events
// were logged during the last hour.
type ErrorLogCounter struct {
	mu     sync.Mutex
	times  []time.Time
	window time.Duration
	now    func() time.Time
}

var _ zerolog.Hook = (*ErrorLogCounter)(nil)

func NewErrorLogCounter() *ErrorLogCounter {
	return &ErrorLogCounter{window: errorWindow, now: time.Now}
}

func (c *ErrorLogCounter) Run(_ *zerolog.Event, level zerolog.Level, _ string) {
	if level < zerolog.ErrorLevel || level == zerolog.NoLevel || level == zerolog.Disabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.prune(now)
	c.times = append(c.times, now)
}

// Timestamps returns the error times still inside the window, oldest first.
func (c *ErrorLogCounter) Timestamps() []time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prune(c.now())
	out := make([]time.Time, len(c.times))
	copy(out, c.times)
	return out
}

func (c *ErrorLogCounter) prune(now time.Time) {
	from := now.Add(-c.window)
	i := 0
	for i < len(c.times) && !c.times[i].After(from) {
		i++
	}
	if i > 0 {
		c.times = append(c.times[:0], c.times[i:]...)
	}
}
