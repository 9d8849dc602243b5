// Package verify tracks one-time code flows per email: how long the current
// code stays valid and when a new one may be requested.
package verify

import (
	"strings"
	"sync"
	"time"

	"expensia/internal/api"
	"expensia/internal/cache"
)

const (
	DefaultCodeTTL        = 600 * time.Second
	DefaultResendCooldown = 120 * time.Second

	maxFlows = 10000
	flowTTL  = 2 * time.Hour
)

type flow struct {
	expiresAt     time.Time
	cooldownUntil time.Time
	exhausted     bool
}

// Status is a snapshot of one email's flow.
type Status struct {
	Email string
	// Remaining is the time left on the current code.
	Remaining time.Duration
	// Cooldown is the time left before another resend is allowed.
	Cooldown time.Duration
	// Exhausted is set once the backend refused further resends.
	Exhausted bool
}

// Expired reports whether the current code ran out.
func (s Status) Expired() bool { return s.Remaining <= 0 }

// CanResend reports whether a resend may be attempted now.
func (s Status) CanResend() bool { return !s.Exhausted && s.Cooldown <= 0 }

func (s Status) RemainingSeconds() int { return ceilSeconds(s.Remaining) }

func (s Status) CooldownSeconds() int { return ceilSeconds(s.Cooldown) }

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// Tracker holds the code countdown and resend cooldown of every email in
// a verification flow. It is safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	flows    *cache.LRUCache[*flow]
	now      func() time.Time
	codeTTL  time.Duration
	cooldown time.Duration
}

type Option func(*Tracker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithDurations overrides the code lifetime and the resend cooldown.
func WithDurations(codeTTL, cooldown time.Duration) Option {
	return func(t *Tracker) {
		t.codeTTL = codeTTL
		t.cooldown = cooldown
	}
}

func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		flows:    cache.NewLRUCache[*flow](maxFlows, flowTTL),
		now:      time.Now,
		codeTTL:  DefaultCodeTTL,
		cooldown: DefaultResendCooldown,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Cleaner exposes the flow cache to a cache.Manager.
func (t *Tracker) Cleaner() cache.Cleaner { return t.flows }

func key(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// get returns the flow for email, starting the countdown when there is
// none. Callers hold t.mu.
func (t *Tracker) get(email string) *flow {
	k := key(email)
	if f, ok := t.flows.Get(k); ok {
		return f
	}
	f := &flow{expiresAt: t.now().Add(t.codeTTL)}
	t.flows.Set(k, f)
	return f
}

func (t *Tracker) status(email string, f *flow) Status {
	now := t.now()
	st := Status{Email: email, Exhausted: f.exhausted}
	if d := f.expiresAt.Sub(now); d > 0 {
		st.Remaining = d
	}
	if d := f.cooldownUntil.Sub(now); d > 0 {
		st.Cooldown = d
	}
	return st
}

// Start returns the flow of email, beginning its countdown on first use.
func (t *Tracker) Start(email string) Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status(email, t.get(email))
}

// Status is Start without side effects for unknown emails.
func (t *Tracker) Status(email string) (Status, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.flows.Get(key(email))
	if !ok {
		return Status{Email: email}, false
	}
	return t.status(email, f), true
}

// Restart begins a fresh countdown, as after a new code was mailed by a
// different endpoint.
func (t *Tracker) Restart(email string) Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	f := &flow{expiresAt: t.now().Add(t.codeTTL)}
	t.flows.Set(key(email), f)
	return t.status(email, f)
}

// ResendSucceeded resets the countdown and starts the resend cooldown.
func (t *Tracker) ResendSucceeded(email string) Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	f := t.get(email)
	now := t.now()
	f.expiresAt = now.Add(t.codeTTL)
	f.cooldownUntil = now.Add(t.cooldown)
	return t.status(email, f)
}

// ResendRefused applies a backend throttle. A max-attempts refusal is
// permanent for the email.
func (t *Tracker) ResendRefused(email string, th api.Throttle) Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	f := t.get(email)
	if th.MaxAttempts {
		f.exhausted = true
	}
	if th.RetryAfter > 0 {
		f.cooldownUntil = t.now().Add(th.RetryAfter)
	}
	return t.status(email, f)
}

// Done forgets the flow once the code was accepted.
func (t *Tracker) Done(email string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.flows.Delete(key(email))
}
