package auth

import (
	"strings"
	"sync"
	"time"
)

// RateLimiter locks a client out of the login endpoint after repeated wrong
// passwords for one account. Clients are keyed by IP and normalized email, so
// a lockout on one reader's account leaves other accounts usable from the
// same desk terminal.
type RateLimiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu       sync.Mutex
	failures map[string]*lockout

	stop     chan struct{}
	stopOnce sync.Once
}

type lockout struct {
	count       int
	windowStart time.Time
	until       time.Time
}

func (l *lockout) active(now time.Time) bool {
	return !l.until.IsZero() && now.Before(l.until)
}

type RateLimitConfig struct {
	MaxAttempts     int           // failures inside WindowDuration that trigger a lockout
	WindowDuration  time.Duration // failures older than this are forgotten
	LockoutDuration time.Duration
	CleanupInterval time.Duration // how often stale entries are dropped from memory
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxAttempts:     5,
		WindowDuration:  15 * time.Minute,
		LockoutDuration: 30 * time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// NewRateLimiter fills zero fields from DefaultRateLimitConfig and starts the
// eviction loop. Call Stop when the server shuts down.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	def := DefaultRateLimitConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.WindowDuration <= 0 {
		cfg.WindowDuration = def.WindowDuration
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = def.LockoutDuration
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}

	rl := &RateLimiter{
		cfg:      cfg,
		now:      time.Now,
		failures: make(map[string]*lockout),
		stop:     make(chan struct{}),
	}
	go rl.evictLoop()
	return rl
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func loginKey(ip, email string) string {
	return ip + "|" + strings.ToLower(strings.TrimSpace(email))
}

// Allow reports whether a login may be attempted, and if not, how long the
// client has to wait.
func (rl *RateLimiter) Allow(ip, email string) (bool, time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	l, ok := rl.failures[loginKey(ip, email)]
	if !ok {
		return true, 0
	}
	if l.active(now) {
		return false, l.until.Sub(now)
	}
	return true, 0
}

// RecordFailure counts a wrong password and reports whether it started a
// lockout.
func (rl *RateLimiter) RecordFailure(ip, email string) (bool, time.Duration) {
	key := loginKey(ip, email)
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	l, ok := rl.failures[key]
	if !ok || rl.stale(l, now) {
		l = &lockout{windowStart: now}
		rl.failures[key] = l
	}

	l.count++
	if l.count >= rl.cfg.MaxAttempts {
		l.until = now.Add(rl.cfg.LockoutDuration)
		return true, rl.cfg.LockoutDuration
	}
	return false, 0
}

// RecordSuccess forgets earlier failures once the reader gets the password right.
func (rl *RateLimiter) RecordSuccess(ip, email string) {
	rl.mu.Lock()
	delete(rl.failures, loginKey(ip, email))
	rl.mu.Unlock()
}

// stale is true once both the counting window and any lockout have passed.
func (rl *RateLimiter) stale(l *lockout, now time.Time) bool {
	return now.Sub(l.windowStart) > rl.cfg.WindowDuration && !l.active(now)
}

func (rl *RateLimiter) evictLoop() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evict()
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) evict() {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, l := range rl.failures {
		if rl.stale(l, now) {
			delete(rl.failures, key)
		}
	}
}
