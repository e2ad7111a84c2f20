package helpers

import (
	"context"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"
)

const countersKey = "send_counters"

type ctxCountersKey struct{}

// sendCounters tracks outbound messages produced while handling one update.
type sendCounters struct {
	messages atomic.Int32
	keyboard atomic.Bool
}

// TrackSends installs counters on the update and its stored context once per update.
func TrackSends(c tele.Context) {
	if _, ok := c.Get(countersKey).(*sendCounters); ok {
		return
	}
	sc := &sendCounters{}
	c.Set(countersKey, sc)
	StoreContext(c, context.WithValue(BuildContext(c), ctxCountersKey{}, sc))
}

// CountSent records one outbound message for the update that owns ctx.
// Contexts without counters (background jobs) are ignored.
func CountSent(ctx context.Context, keyboard bool) {
	if ctx == nil {
		return
	}
	sc, ok := ctx.Value(ctxCountersKey{}).(*sendCounters)
	if !ok {
		return
	}
	sc.messages.Add(1)
	if keyboard {
		sc.keyboard.Store(true)
	}
}

// Counters returns the number of messages sent for the update and whether any carried a keyboard.
func Counters(c tele.Context) (int, bool) {
	sc, ok := c.Get(countersKey).(*sendCounters)
	if !ok {
		return 0, false
	}
	return int(sc.messages.Load()), sc.keyboard.Load()
}
