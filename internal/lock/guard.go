// Package lock implements the line-lock and supervisor PIN guard. The
// guard is process-wide: one lock, one attempt counter, one lockout,
// shared by every caller. It holds no mutex of its own; the verification
// engine serializes all access.
package lock

import (
	"log/slog"
	"time"

	"github.com/dwalsh-mfg/barcode-verifier/internal/clock"
	"github.com/dwalsh-mfg/barcode-verifier/internal/common"
)

// Guard gates line resumption (and job end) behind the supervisor PIN.
// States: unlocked, locked, and locked with PIN attempts rated out.
type Guard struct {
	pin         string
	maxAttempts int
	lockout     time.Duration

	locked       bool
	attempts     int
	lockoutUntil time.Time

	clk clock.Clock
	log *slog.Logger
}

type Option func(*Guard)

func WithMaxAttempts(n int) Option {
	return func(g *Guard) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

func WithLockout(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.lockout = d
		}
	}
}

func NewGuard(pin string, clk clock.Clock, log *slog.Logger, opts ...Option) *Guard {
	g := &Guard{
		pin:         pin,
		maxAttempts: 5,
		lockout:     15 * time.Minute,
		clk:         clk,
		log:         log,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Locked reports whether the line is currently halted.
func (g *Guard) Locked() bool { return g.locked }

// Engage halts the line. Called on every FAIL scan; idempotent.
func (g *Guard) Engage() {
	if !g.locked {
		g.log.Warn("line locked")
	}
	g.locked = true
}

// VerifyPin runs one supervisor authorization attempt through the shared
// rate limiter. During a lockout it fails immediately with a
// RateLimitedError carrying the remaining time, without comparing the PIN
// and without consuming an attempt. The lockout re-arms to plain locked
// the moment it expires. On success the attempt counter resets and the
// line unlocks.
func (g *Guard) VerifyPin(candidate string) error {
	now := g.clk.Now()

	if !g.lockoutUntil.IsZero() {
		if now.Before(g.lockoutUntil) {
			remaining := g.lockoutUntil.Sub(now)
			g.log.Warn("PIN attempt during lockout", "retry_after", remaining)
			return &common.RateLimitedError{RetryAfter: remaining}
		}
		g.lockoutUntil = time.Time{}
		g.attempts = 0
	}

	if candidate == g.pin {
		g.attempts = 0
		if g.locked {
			g.locked = false
			g.log.Info("line unlocked")
		}
		return nil
	}

	g.attempts++
	g.log.Warn("invalid PIN attempt", "attempt", g.attempts, "max", g.maxAttempts)
	if g.attempts >= g.maxAttempts {
		g.lockoutUntil = now.Add(g.lockout)
		g.log.Warn("PIN attempts exhausted, lockout engaged", "until", g.lockoutUntil)
	}
	return common.ErrInvalidPIN
}

// Reset clears the lock without a PIN. Only used when a job ends: with no
// job there is nothing left to gate.
func (g *Guard) Reset() {
	g.locked = false
}
