package simplevr

import "time"

// stepClock advances by step every time it is read, so receive windows
// elapse after a fixed number of polls.
type stepClock struct {
	now  time.Time
	step time.Duration
}

func newStepClock(step time.Duration) *stepClock {
	return &stepClock{now: time.Unix(0, 0), step: step}
}

func (c *stepClock) Now() time.Time {
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}
