package backoff

import (
	"time"
)

// Config controls reconnect waits.
type Config struct {
	InitialDelay time.Duration `yaml:"initial"`
	Step         time.Duration `yaml:"step"`
	Every        int           `yaml:"every"`
	MaxDelay     time.Duration `yaml:"max"`
}

// DefaultConfig retries after 1s and grows by 10s every 10 failures
// with the same code, up to 5 minutes.
func DefaultConfig() Config {
	return Config{
		InitialDelay: 1 * time.Second,
		Step:         10 * time.Second,
		Every:        10,
		MaxDelay:     5 * time.Minute,
	}
}

// State is the reconnect history since the last successful connect.
type State struct {
	Failures int
	Wait     time.Duration
	LastCode int
	seen     bool
}

// Controller computes the wait before the next reconnect attempt.
type Controller struct {
	cfg Config
}

// NewController creates a controller, filling zero fields with defaults.
func NewController(cfg Config) *Controller {
	def := DefaultConfig()
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.Step < 0 {
		cfg.Step = 0
	}
	if cfg.Every <= 0 {
		cfg.Every = def.Every
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = cfg.InitialDelay
	}
	return &Controller{cfg: cfg}
}

// Reset returns the state used after a successful connect.
func (c *Controller) Reset() State {
	return State{Wait: c.cfg.InitialDelay}
}

// Next records a failure with the given normalized code and returns how
// long to wait. A code different from the previous one starts over from
// the initial delay. Repeated codes grow the wait by Step every Every
// failures, capped at MaxDelay.
func (c *Controller) Next(s State, code int) (time.Duration, State) {
	if !s.seen || code != s.LastCode {
		s = State{Wait: c.cfg.InitialDelay, LastCode: code, seen: true}
	}
	if s.Wait <= 0 {
		s.Wait = c.cfg.InitialDelay
	}

	s.Failures++
	if s.Failures >= c.cfg.Every {
		s.Wait = min(s.Wait+c.cfg.Step, c.cfg.MaxDelay)
		s.Failures = 0
	}

	return s.Wait, s
}
