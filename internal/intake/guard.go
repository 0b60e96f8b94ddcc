package intake

import (
	"sync"
	"time"
)

// Guard owns the in-memory dedup set and the per-issue response throttle.
// Both are best-effort and reset on process restart; each instance is
// injected into exactly one intake service so tests can build isolated
// copies and a later deployment can swap in a shared cache.
type Guard struct {
	mu sync.Mutex

	cap   int
	keep  int
	seen  []string
	index map[string]struct{}

	window       time.Duration
	lastResponse map[string]time.Time

	stats Stats

	now func() time.Time
}

// NewGuard builds a guard with the given dedup bounds and throttle window.
func NewGuard(capacity, keep int, window time.Duration) *Guard {
	if capacity <= 0 {
		capacity = 100
	}
	if keep <= 0 || keep > capacity {
		keep = capacity / 2
	}
	return &Guard{
		cap:          capacity,
		keep:         keep,
		index:        make(map[string]struct{}),
		window:       window,
		lastResponse: make(map[string]time.Time),
		stats:        Stats{Since: time.Now()},
		now:          time.Now,
	}
}

// Seen reports whether the composite event key was already processed; new
// keys are recorded. When the set grows past its cap, only the most recent
// entries are retained.
func (g *Guard) Seen(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.index[key]; ok {
		return true
	}
	g.seen = append(g.seen, key)
	g.index[key] = struct{}{}

	if len(g.seen) > g.cap {
		evicted := g.seen[:len(g.seen)-g.keep]
		g.seen = append([]string(nil), g.seen[len(g.seen)-g.keep:]...)
		for _, old := range evicted {
			delete(g.index, old)
		}
	}
	return false
}

// Reserve performs the throttle check for an issue and, when allowed,
// immediately records now as the last response time. Recording before the
// long AI call closes the race against near-simultaneous webhook retries.
// When throttled it returns the remaining wait.
func (g *Guard) Reserve(issueKey string) (time.Duration, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if last, ok := g.lastResponse[issueKey]; ok {
		elapsed := now.Sub(last)
		if elapsed < g.window {
			return g.window - elapsed, false
		}
	}
	g.lastResponse[issueKey] = now
	return 0, true
}

// --- statistics ---

func (g *Guard) countReceived()  { g.count(func(s *Stats) { s.Received++ }) }
func (g *Guard) countDuplicate() { g.count(func(s *Stats) { s.Duplicates++ }) }
func (g *Guard) countAISkipped() { g.count(func(s *Stats) { s.AISkipped++ }) }
func (g *Guard) countThrottled() { g.count(func(s *Stats) { s.Throttled++ }) }
func (g *Guard) countResponse()  { g.count(func(s *Stats) { s.Responses++ }) }
func (g *Guard) countError()     { g.count(func(s *Stats) { s.Errors++ }) }

func (g *Guard) count(update func(*Stats)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	update(&g.stats)
}

// Snapshot returns a copy of the lifetime counters.
func (g *Guard) Snapshot() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := g.stats
	out.ProcessedKeys = len(g.seen)
	return out
}

// Reset clears the counters and the rolling since timestamp. The dedup set
// and throttle map are left alone; resetting stats must not re-open the
// loop-prevention window.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stats = Stats{Since: g.now()}
}
