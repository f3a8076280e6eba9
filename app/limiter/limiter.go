// Package limiter enforces a per-IP sliding-window policy on login attempts,
// backed by a durable record per IP so limits survive restarts. Concurrent
// attempts from one IP race on read-modify-write with last-writer-wins; the
// worst case counts an extra attempt or two, never fewer.
package limiter

import (
	"math/rand"
	"time"

	log "github.com/go-pkgz/lgr"
)

// Store is the durable record port for per-IP attempt lists.
type Store interface {
	Load(ip string) ([]int64, error)
	Save(ip string, stamps []int64) error
	Sweep(ttl time.Duration, now time.Time)
}

// Params customize the limiting policy.
type Params struct {
	Window        time.Duration // attempts older than this never count
	MaxAttempts   int           // allowed attempts per window
	RecordTTL     time.Duration // sweep records not touched for this long
	SweepFraction float64       // chance per call to run the sweep
}

// Limiter checks and records login attempts.
type Limiter struct {
	Params
	store Store
	now   func() time.Time
}

// Result of a rate-limit check.
type Result struct {
	Allowed bool
	Wait    time.Duration // how long the client has to wait when denied
}

// New makes a Limiter with the given store and params, filling defaults.
func New(store Store, params Params, options ...Option) *Limiter {
	if params.Window == 0 {
		params.Window = 5 * time.Minute
	}
	if params.MaxAttempts == 0 {
		params.MaxAttempts = 5
	}
	if params.RecordTTL == 0 {
		params.RecordTTL = time.Hour
	}
	if params.SweepFraction == 0 {
		params.SweepFraction = 0.01
	}
	res := &Limiter{Params: params, store: store, now: time.Now}
	for _, opt := range options {
		opt(res)
	}
	log.Printf("[INFO] login limiter with %+v", params)
	return res
}

// Option functions optional parameters for Limiter
type Option func(l *Limiter)

// Clock sets the time source, used in tests.
func Clock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// Check loads the IP's attempt history, denies with a computed wait when the
// window is full (without recording the attempt), otherwise records now and
// allows. Storage failures degrade to best-effort limiting, never block login.
func (l *Limiter) Check(ip string) Result {
	if rand.Float64() < l.SweepFraction { //nolint:gosec // maintenance jitter, not security sensitive
		l.store.Sweep(l.RecordTTL, l.now())
	}

	now := l.now().Unix()
	windowSecs := int64(l.Window.Seconds())

	stamps, err := l.store.Load(ip)
	if err != nil {
		log.Printf("[WARN] failed to load rate record: %v", err)
	}

	recent := stamps[:0:0]
	for _, ts := range stamps {
		if now-ts < windowSecs {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= l.MaxAttempts {
		wait := time.Duration(recent[0]+windowSecs-now) * time.Second
		if wait > 0 {
			return Result{Allowed: false, Wait: wait}
		}
	}

	recent = append(recent, now)
	if err := l.store.Save(ip, recent); err != nil {
		log.Printf("[WARN] failed to save rate record: %v", err)
	}
	return Result{Allowed: true}
}
