package services

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

// Tier names a request budget.
type Tier string

const (
	TierRead      Tier = "read"
	TierWrite     Tier = "write"
	TierSensitive Tier = "sensitive" // claim, complete, payout claim, token rotation
	TierAuth      Tier = "auth"      // registration handshake

	// TierAuthFailure counts rejected credentials per client origin. It is
	// checked before a credential is resolved, so a spent budget never
	// reaches the identity service.
	TierAuthFailure Tier = "auth_failure"
)

// TierLimit is a fixed request count per fixed window.
type TierLimit struct {
	Limit  int
	Window time.Duration
}

func (l TierLimit) String() string {
	return fmt.Sprintf("%d/%s", l.Limit, l.Window)
}

// ParseTierLimit parses "<count>/<duration>", e.g. "30/1m".
func ParseTierLimit(s string) (TierLimit, error) {
	countStr, windowStr, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return TierLimit{}, fmt.Errorf("rate limit %q: want <count>/<duration>", s)
	}
	count, err := strconv.Atoi(countStr)
	if err != nil || count <= 0 {
		return TierLimit{}, fmt.Errorf("rate limit %q: invalid count", s)
	}
	window, err := time.ParseDuration(windowStr)
	if err != nil || window <= 0 {
		return TierLimit{}, fmt.Errorf("rate limit %q: invalid window", s)
	}
	return TierLimit{Limit: count, Window: window}, nil
}

// DefaultTiers is the budget table used when no overrides are configured.
func DefaultTiers() map[Tier]TierLimit {
	return map[Tier]TierLimit{
		TierRead:        {Limit: 120, Window: time.Minute},
		TierWrite:       {Limit: 30, Window: time.Minute},
		TierSensitive:   {Limit: 10, Window: time.Minute},
		TierAuth:        {Limit: 20, Window: time.Minute},
		TierAuthFailure: {Limit: 10, Window: time.Minute},
	}
}

// Decision is the outcome of one Allow call. A denial is a normal result, not an error.
type Decision struct {
	Allowed   bool
	Remaining int
	Limit     int
	ResetAt   time.Time
}

// RetryAfter is the whole number of seconds until the window resets, at least 1.
func (d Decision) RetryAfter(now time.Time) int {
	secs := int(d.ResetAt.Sub(now).Seconds() + 0.999)
	if secs < 1 {
		return 1
	}
	return secs
}

type windowKey struct {
	tier       Tier
	identifier string
}

type window struct {
	count   int
	resetAt time.Time
}

// QuotaGuard is a process-local fixed-window limiter keyed by (tier, identifier).
// Counters are not shared between instances; a multi-instance deployment gets
// one budget per instance.
type QuotaGuard struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	tiers   map[Tier]TierLimit
	windows map[windowKey]*window

	sched gocron.Scheduler
}

// NewQuotaGuard builds a guard over tiers. A nil clock uses the real clock.
func NewQuotaGuard(tiers map[Tier]TierLimit, clock clockwork.Clock) *QuotaGuard {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	merged := DefaultTiers()
	for t, l := range tiers {
		merged[t] = l
	}
	return &QuotaGuard{
		clock:   clock,
		tiers:   merged,
		windows: make(map[windowKey]*window),
	}
}

// Limit returns the configured budget for tier. Unknown tiers get the sensitive budget.
func (g *QuotaGuard) Limit(tier Tier) TierLimit {
	if l, ok := g.tiers[tier]; ok {
		return l
	}
	return g.tiers[TierSensitive]
}

// Allow counts one request from identifier against tier.
func (g *QuotaGuard) Allow(identifier string, tier Tier) Decision {
	limit := g.Limit(tier)
	now := g.clock.Now()
	key := windowKey{tier: tier, identifier: identifier}

	g.mu.Lock()
	defer g.mu.Unlock()

	w, ok := g.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(limit.Window)}
		g.windows[key] = w
	}

	if w.count >= limit.Limit {
		return Decision{Allowed: false, Remaining: 0, Limit: limit.Limit, ResetAt: w.resetAt}
	}
	w.count++
	return Decision{
		Allowed:   true,
		Remaining: limit.Limit - w.count,
		Limit:     limit.Limit,
		ResetAt:   w.resetAt,
	}
}

// Peek reports the identifier's standing in tier without counting a request.
func (g *QuotaGuard) Peek(identifier string, tier Tier) Decision {
	limit := g.Limit(tier)
	now := g.clock.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	w, ok := g.windows[windowKey{tier: tier, identifier: identifier}]
	if !ok || !now.Before(w.resetAt) {
		return Decision{Allowed: true, Remaining: limit.Limit, Limit: limit.Limit, ResetAt: now.Add(limit.Window)}
	}
	return Decision{
		Allowed:   w.count < limit.Limit,
		Remaining: limit.Limit - w.count,
		Limit:     limit.Limit,
		ResetAt:   w.resetAt,
	}
}

// Now exposes the guard's clock for computing Retry-After.
func (g *QuotaGuard) Now() time.Time {
	return g.clock.Now()
}

// Sweep drops expired windows and returns how many were removed.
func (g *QuotaGuard) Sweep() int {
	now := g.clock.Now()
	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for k, w := range g.windows {
		if !now.Before(w.resetAt) {
			delete(g.windows, k)
			removed++
		}
	}
	return removed
}

// QuotaStats is a snapshot for the internal inspection endpoint.
type QuotaStats struct {
	Windows int             `json:"windows"`
	PerTier map[Tier]int    `json:"per_tier"`
	Limits  map[Tier]string `json:"limits"`
}

func (g *QuotaGuard) Stats() QuotaStats {
	g.mu.Lock()
	defer g.mu.Unlock()

	stats := QuotaStats{
		Windows: len(g.windows),
		PerTier: make(map[Tier]int),
		Limits:  make(map[Tier]string, len(g.tiers)),
	}
	for k := range g.windows {
		stats.PerTier[k.tier]++
	}
	for t, l := range g.tiers {
		stats.Limits[t] = l.String()
	}
	return stats
}

// Start schedules Sweep every interval. Housekeeping only: expired windows are
// reset lazily by Allow whether or not the sweep runs.
func (g *QuotaGuard) Start(interval time.Duration) error {
	sched, err := gocron.NewScheduler(gocron.WithClock(g.clock))
	if err != nil {
		return fmt.Errorf("create quota scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if n := g.Sweep(); n > 0 {
				log.Printf("[QUOTA] swept %d expired window(s)", n)
			}
		}),
	)
	if err != nil {
		_ = sched.Shutdown()
		return fmt.Errorf("schedule quota sweep: %w", err)
	}
	sched.Start()
	g.sched = sched
	return nil
}

// Stop halts the sweep job if it was started.
func (g *QuotaGuard) Stop() {
	if g.sched == nil {
		return
	}
	if err := g.sched.Shutdown(); err != nil {
		log.Printf("[QUOTA] scheduler shutdown: %v", err)
	}
	g.sched = nil
}
