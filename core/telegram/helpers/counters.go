package helpers

import (
	"context"
	"sync/atomic"
)

// Counters tracks what one update produced. The transport bumps them on every
// successful outbound call; the handler summary reports them.
type Counters struct {
	messages atomic.Int32
	keyboard atomic.Bool
}

type countersKey struct{}

// WithCounters attaches a fresh Counters to ctx.
func WithCounters(ctx context.Context) context.Context {
	return context.WithValue(ctx, countersKey{}, &Counters{})
}

// CountersFrom returns the counters attached to ctx, or nil.
func CountersFrom(ctx context.Context) *Counters {
	if ctx == nil {
		return nil
	}
	c, _ := ctx.Value(countersKey{}).(*Counters)
	return c
}

// CountMessage records one outbound message. Nil-safe.
func (c *Counters) CountMessage(withKeyboard bool) {
	if c == nil {
		return
	}
	c.messages.Add(1)
	if withKeyboard {
		c.keyboard.Store(true)
	}
}

// Snapshot returns the message count and whether any carried a keyboard.
func (c *Counters) Snapshot() (int, bool) {
	if c == nil {
		return 0, false
	}
	return int(c.messages.Load()), c.keyboard.Load()
}
