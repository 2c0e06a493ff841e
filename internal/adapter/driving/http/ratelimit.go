package httphandler

import (
	"sync"
	"time"

	"github.com/juju/clock"
	"golang.org/x/time/rate"
)

// limiterIdleTTL is how long an actor's bucket survives without use. A bucket
// idle this long is full again, so dropping it changes nothing.
const limiterIdleTTL = 10 * time.Minute

// UnlockLimiter is a per-actor token bucket for unlock attempts. Each actor
// may attempt perMinute unlocks in a burst, refilling evenly over a minute.
type UnlockLimiter struct {
	mu        sync.Mutex
	clock     clock.Clock
	limit     rate.Limit
	burst     int
	actors    map[string]*actorBucket
	lastPrune time.Time
}

type actorBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewUnlockLimiter creates a limiter allowing perMinute unlock attempts per
// actor. A nil clock uses the wall clock.
func NewUnlockLimiter(perMinute int, clk clock.Clock) *UnlockLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	if clk == nil {
		clk = clock.WallClock
	}

	return &UnlockLimiter{
		clock:     clk,
		limit:     rate.Every(time.Minute / time.Duration(perMinute)),
		burst:     perMinute,
		actors:    make(map[string]*actorBucket),
		lastPrune: clk.Now(),
	}
}

// Allow reports whether actorID may attempt an unlock now, consuming one
// token if so.
func (l *UnlockLimiter) Allow(actorID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.pruneLocked(now)

	b, ok := l.actors[actorID]
	if !ok {
		b = &actorBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.actors[actorID] = b
	}
	b.lastSeen = now

	return b.limiter.AllowN(now, 1)
}

func (l *UnlockLimiter) pruneLocked(now time.Time) {
	if now.Sub(l.lastPrune) < limiterIdleTTL {
		return
	}
	for id, b := range l.actors {
		if now.Sub(b.lastSeen) >= limiterIdleTTL {
			delete(l.actors, id)
		}
	}
	l.lastPrune = now
}
