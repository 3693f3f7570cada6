package web

import (
	"sync/atomic"

	"golang.org/x/time/rate"

	"buzzerd/internal/buzzer"
	"buzzerd/internal/config"
)

// Settings holds the parts of the config that handlers read per request.
// Apply swaps them in place so a config reload takes effect without
// restarting the server.
type Settings struct {
	defaults atomic.Pointer[buzzer.Defaults]
	limiter  atomic.Pointer[rate.Limiter] // nil when rate limiting is off
	limit    atomic.Pointer[config.RateLimitConfig]
}

func NewSettings(cfg config.Config) *Settings {
	s := &Settings{}
	s.Apply(cfg)
	return s
}

// Apply installs request defaults and the rate limit from cfg. The token
// bucket is only rebuilt when the limit itself changes.
func (s *Settings) Apply(cfg config.Config) {
	d := cfg.Buzzer.RequestDefaults()
	s.defaults.Store(&d)

	rl := cfg.RateLimit
	if prev := s.limit.Load(); prev != nil && *prev == rl {
		return
	}
	s.limit.Store(&rl)
	if !rl.Enable || rl.PerSecond <= 0 {
		s.limiter.Store(nil)
		return
	}
	burst := rl.Burst
	if burst < 1 {
		burst = 1
	}
	s.limiter.Store(rate.NewLimiter(rate.Limit(rl.PerSecond), burst))
}

// Defaults returns the current request defaults.
func (s *Settings) Defaults() buzzer.Defaults {
	if s == nil {
		return buzzer.DefaultDefaults()
	}
	if d := s.defaults.Load(); d != nil {
		return *d
	}
	return buzzer.DefaultDefaults()
}

// Allow takes a token from the request bucket.
func (s *Settings) Allow() bool {
	if s == nil {
		return true
	}
	lim := s.limiter.Load()
	return lim == nil || lim.Allow()
}
