package billing

import (
	"sync"
	"time"

	"tollgate-service/internal/utils"
)

// evictThreshold is the map size beyond which Allow opportunistically sweeps
// expired entries. A bounded map is an operational nicety, not a correctness
// requirement.
const evictThreshold = 4096

// DebounceGate suppresses repeated billing attempts for the same canonical
// plate within a time window. It is shared across streams and safe for
// concurrent use.
type DebounceGate struct {
	window   time.Duration
	mu       sync.Mutex
	lastSeen map[string]time.Time
}

// NewDebounceGate creates a gate with the given window.
func NewDebounceGate(window time.Duration) *DebounceGate {
	return &DebounceGate{
		window:   window,
		lastSeen: make(map[string]time.Time),
	}
}

// Allow reports whether a billing attempt for the plate may proceed at `now`.
// An allowed attempt records its timestamp; a suppressed attempt does not
// touch the stored timestamp, so billing frequency is capped at one attempt
// per window rather than a sliding lockout.
func (g *DebounceGate) Allow(plate string, now time.Time) bool {
	key := utils.NormalizePlate(plate)
	if key == "" {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if last, ok := g.lastSeen[key]; ok && now.Sub(last) < g.window {
		return false
	}
	g.lastSeen[key] = now

	if len(g.lastSeen) > evictThreshold {
		for k, t := range g.lastSeen {
			if now.Sub(t) >= g.window {
				delete(g.lastSeen, k)
			}
		}
	}
	return true
}
