package auctionhouse

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// Throttle rate-limits a player's auction requests per command category.
// It runs on the game-loop thread, so plain maps suffice; idle entries are
// dropped by Sweep on the registry tick.
type Throttle struct {
	interval        time.Duration
	taintedInterval time.Duration
	entries         map[snowflake.ID]*throttleEntry
	clock           func() time.Time
}

type throttleEntry struct {
	lastAccepted [commandCount]time.Time
	lastSeen     time.Time
}

func NewThrottle(interval, taintedInterval time.Duration, clock func() time.Time) *Throttle {
	if taintedInterval < interval {
		taintedInterval = interval
	}
	if clock == nil {
		clock = time.Now
	}
	return &Throttle{
		interval:        interval,
		taintedInterval: taintedInterval,
		entries:         make(map[snowflake.ID]*throttleEntry),
		clock:           clock,
	}
}

// Check records a request attempt and reports whether it must be rejected.
// The returned delay is the "desired delay" hint echoed back on every
// response regardless of outcome, and is never negative. Tainted requests
// (client automation) use the stricter interval. CommandNone is never
// throttled; it only refreshes the entry and echoes the hint.
func (t *Throttle) Check(player snowflake.ID, tainted bool, command ThrottleCommand) (throttled bool, delay time.Duration) {
	now := t.clock()
	interval := t.interval
	if tainted {
		interval = t.taintedInterval
	}

	entry, ok := t.entries[player]
	if !ok {
		entry = &throttleEntry{}
		t.entries[player] = entry
	}
	entry.lastSeen = now

	if command == CommandNone {
		return false, interval
	}

	last := entry.lastAccepted[command]
	if !last.IsZero() {
		if remaining := interval - now.Sub(last); remaining > 0 {
			return true, remaining
		}
	}

	entry.lastAccepted[command] = now
	return false, interval
}

// Sweep drops entries idle for longer than the given age.
func (t *Throttle) Sweep(maxIdle time.Duration) {
	cutoff := t.clock().Add(-maxIdle)
	for player, entry := range t.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(t.entries, player)
		}
	}
}
