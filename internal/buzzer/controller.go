// Package buzzer drives a GPIO buzzer: plain beeps, software-generated
// tones and fixed patterns, with a single-emission-at-a-time guard.
package buzzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"buzzerd/internal/gpio"
)

var (
	// ErrUnavailable means the buzzer line could not be acquired. It persists
	// until Reinit succeeds.
	ErrUnavailable = errors.New("buzzer: not available")
	// ErrInvalidDuration is returned for emissions with duration <= 0.
	ErrInvalidDuration = errors.New("buzzer: duration must be > 0")
	// ErrClosed is returned once Close has been called, and by emissions
	// interrupted by it.
	ErrClosed = errors.New("buzzer: closed")
)

// State is the initialization state of a Controller.
type State int32

const (
	StateUninitialized State = iota
	StateReady
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateUnavailable:
		return "unavailable"
	}
	return "uninitialized"
}

type Config struct {
	// Open acquires the buzzer line at its off level (high when ActiveLow).
	// Nil behaves like gpio's "none" backend.
	Open func() (gpio.Line, error)
	// OpenPWM optionally acquires a hardware PWM channel for MethodPWM. A
	// failure here is logged and MethodPWM falls back to software toggling.
	OpenPWM func() (gpio.PWM, error)
	// ActiveLow selects PNP (active-low) wiring.
	ActiveLow bool

	// Pin and Backend only feed Snapshot.
	Pin     int
	Backend string

	Clock  Clock
	Logger *slog.Logger
}

type Snapshot struct {
	State       string `json:"state"`
	Busy        bool   `json:"busy"`
	Backend     string `json:"backend,omitempty"`
	Pin         int    `json:"pin"`
	ActiveLow   bool   `json:"active_low"`
	HardwarePWM bool   `json:"hardware_pwm"`

	EmissionsTotal   uint64 `json:"emissions_total"`
	SkippedBusyTotal uint64 `json:"skipped_busy_total"`
	PatternsTotal    uint64 `json:"patterns_total"`

	LastEmissionAt time.Time `json:"last_emission_utc,omitempty"`
	LastJobID      string    `json:"last_job_id,omitempty"`
	LastError      string    `json:"last_error,omitempty"`
}

// Controller owns the buzzer pin and serializes emissions on it.
//
// At most one emission (a beep, a tone or a whole pattern) drives the pin at
// any time. Callers arriving while one is in flight are turned away at once
// rather than queued. Running emissions cannot be cancelled; only Close
// stops them, at their next toggle or pause.
type Controller struct {
	cfg   Config
	log   *slog.Logger
	clock Clock

	initMu   sync.Mutex
	state    State
	initDone chan struct{} // non-nil while an init attempt is in flight
	initErr  error
	pin      *OutputPin
	pwm      gpio.PWM

	busy atomic.Bool

	lifeMu    sync.Mutex
	closed    bool
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	closeErr  error

	mu   sync.RWMutex
	snap Snapshot
}

func New(cfg Config) *Controller {
	if cfg.Open == nil {
		cfg.Open = func() (gpio.Line, error) { return nil, gpio.ErrNoBackend }
	}
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		cfg:    cfg,
		log:    log,
		clock:  cfg.Clock,
		ctx:    ctx,
		cancel: cancel,
		snap: Snapshot{
			Backend:   cfg.Backend,
			Pin:       cfg.Pin,
			ActiveLow: cfg.ActiveLow,
		},
	}
}

func (c *Controller) State() State {
	c.initMu.Lock()
	defer c.initMu.Unlock()
	return c.state
}

// Busy reports whether an emission is driving the pin right now.
func (c *Controller) Busy() bool { return c.busy.Load() }

func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	snap := c.snap
	c.mu.RUnlock()
	snap.State = c.State().String()
	snap.Busy = c.busy.Load()
	return snap
}

func (c *Controller) setState(update func(*Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	update(&c.snap)
}

func unavailable(cause error) error {
	if cause == nil || errors.Is(cause, ErrUnavailable) {
		return ErrUnavailable
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, cause)
}

// Init acquires the pin. Concurrent callers share one attempt; each waits
// for it (or for its own ctx). The outcome sticks: Ready stays Ready and
// Unavailable stays Unavailable until Reinit.
func (c *Controller) Init(ctx context.Context) error {
	c.initMu.Lock()
	if c.ctx.Err() != nil {
		c.initMu.Unlock()
		return ErrClosed
	}
	switch c.state {
	case StateReady:
		c.initMu.Unlock()
		return nil
	case StateUnavailable:
		err := c.initErr
		c.initMu.Unlock()
		return unavailable(err)
	}
	done := c.initDone
	if done == nil {
		done = make(chan struct{})
		c.initDone = done
		go c.initialize(done)
	}
	c.initMu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.initMu.Lock()
	defer c.initMu.Unlock()
	if c.state == StateReady {
		return nil
	}
	return unavailable(c.initErr)
}

// Reinit retries initialization after a failure. It is a no-op for a
// Controller that is already Ready.
func (c *Controller) Reinit(ctx context.Context) error {
	c.initMu.Lock()
	if c.state == StateUnavailable {
		c.state = StateUninitialized
		c.initErr = nil
	}
	c.initMu.Unlock()
	return c.Init(ctx)
}

func (c *Controller) initialize(done chan struct{}) {
	defer close(done)

	var pin *OutputPin
	line, err := c.cfg.Open()
	if err == nil {
		pin = NewOutputPin(line, c.cfg.ActiveLow)
		// Open should have requested the off level already; one that drove
		// the line low leaves a PNP buzzer sounding until this write.
		if derr := pin.Deactivate(); derr != nil {
			_ = line.Close()
			pin = nil
			err = derr
		}
	}

	var pwm gpio.PWM
	if err == nil && c.cfg.OpenPWM != nil {
		p, perr := c.cfg.OpenPWM()
		if perr != nil {
			c.log.Warn("buzzer: hardware pwm unavailable, using software tone", "err", perr)
		} else {
			pwm = p
		}
	}

	c.initMu.Lock()
	c.initDone = nil
	if err != nil {
		c.state = StateUnavailable
		c.initErr = err
	} else {
		c.state = StateReady
		c.initErr = nil
		c.pin = pin
		c.pwm = pwm
	}
	c.initMu.Unlock()

	if err != nil {
		c.log.Warn("buzzer: gpio not available", "backend", c.cfg.Backend, "pin", c.cfg.Pin, "err", err)
		c.setState(func(sn *Snapshot) { sn.LastError = err.Error() })
		return
	}
	c.log.Info("buzzer: ready", "backend", c.cfg.Backend, "pin", c.cfg.Pin, "active_low", c.cfg.ActiveLow, "hardware_pwm", pwm != nil)
	c.setState(func(sn *Snapshot) {
		sn.HardwarePWM = pwm != nil
		sn.LastError = ""
	})
}

func (c *Controller) ready(ctx context.Context) (*OutputPin, gpio.PWM, error) {
	if err := c.Init(ctx); err != nil {
		return nil, nil, err
	}
	c.initMu.Lock()
	defer c.initMu.Unlock()
	return c.pin, c.pwm, nil
}

// acquire registers work that Close must wait for.
func (c *Controller) acquire() error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.wg.Add(1)
	return nil
}

// Emit plays one tone and returns when it is done.
//
// ctx only bounds waiting for a lazy initialization; the emission itself
// always runs to completion. If another emission is in flight Emit returns
// (OutcomeSkipped, nil) immediately without touching the pin. If the pin is
// unavailable it returns an error wrapping ErrUnavailable.
func (c *Controller) Emit(ctx context.Context, t Tone) (Outcome, error) {
	if t.Duration <= 0 {
		return OutcomeSkipped, ErrInvalidDuration
	}
	if err := c.acquire(); err != nil {
		return OutcomeSkipped, err
	}
	defer c.wg.Done()

	pin, pwm, err := c.ready(ctx)
	if err != nil {
		return OutcomeSkipped, err
	}
	if !c.busy.CompareAndSwap(false, true) {
		c.setState(func(sn *Snapshot) { sn.SkippedBusyTotal++ })
		return OutcomeSkipped, nil
	}
	defer c.busy.Store(false)

	err = c.play(pin, pwm, t)
	c.recordEmission(err)
	return OutcomePlayed, err
}

// StartPattern plays p in the background and returns a job id at once.
//
// The background job claims the pin for the whole pattern; if the pin is
// busy when it starts, the pattern is dropped. A failing step aborts the
// rest of the pattern and is only logged and recorded in Snapshot.
func (c *Controller) StartPattern(p PatternID, method Method) (string, error) {
	steps := p.Steps(method)
	if len(steps) == 0 {
		return "", fmt.Errorf("buzzer: no steps for pattern %d", p)
	}
	c.initMu.Lock()
	st, cause := c.state, c.initErr
	c.initMu.Unlock()
	if st == StateUnavailable {
		return "", unavailable(cause)
	}
	if err := c.acquire(); err != nil {
		return "", err
	}

	id := ulid.Make().String()
	c.setState(func(sn *Snapshot) { sn.LastJobID = id })
	go func() {
		defer c.wg.Done()
		c.runPattern(id, p, method, steps)
	}()
	return id, nil
}

func (c *Controller) runPattern(id string, p PatternID, method Method, steps []Step) {
	log := c.log.With("job", id, "pattern", p.Name(), "method", string(method))

	pin, pwm, err := c.ready(c.ctx)
	if err != nil {
		log.Warn("buzzer: pattern not started", "err", err)
		return
	}
	if !c.busy.CompareAndSwap(false, true) {
		log.Info("buzzer: busy, pattern skipped")
		c.setState(func(sn *Snapshot) { sn.SkippedBusyTotal++ })
		return
	}
	defer c.busy.Store(false)

	c.setState(func(sn *Snapshot) { sn.PatternsTotal++ })
	log.Debug("buzzer: pattern started", "steps", len(steps))

	for i, s := range steps {
		err := c.play(pin, pwm, Tone{Duration: s.On, FrequencyHz: s.FrequencyHz, Method: method})
		c.recordEmission(err)
		if err == nil && s.Pause > 0 {
			err = c.wait(s.Pause)
		}
		if errors.Is(err, ErrClosed) {
			log.Info("buzzer: pattern interrupted by shutdown", "step", i+1)
			return
		}
		if err != nil {
			log.Warn("buzzer: pattern aborted", "step", i+1, "err", err)
			return
		}
	}
	log.Debug("buzzer: pattern done")
}

func (c *Controller) recordEmission(err error) {
	now := c.clock.Now().UTC()
	c.setState(func(sn *Snapshot) {
		sn.EmissionsTotal++
		sn.LastEmissionAt = now
		if err != nil {
			sn.LastError = err.Error()
		}
	})
}

// play drives one tone. The pin is deactivated on every return path.
func (c *Controller) play(pin *OutputPin, pwm gpio.PWM, t Tone) (err error) {
	defer func() {
		if derr := pin.Deactivate(); err == nil && derr != nil {
			err = derr
		}
	}()

	switch {
	case !t.Oscillates():
		if err := pin.Activate(); err != nil {
			return err
		}
		return c.wait(t.Duration)
	case t.Method == MethodPWM && pwm != nil:
		return c.hardwareTone(pwm, t)
	default:
		return c.softwareTone(pin, t)
	}
}

// softwareTone toggles the pin every half period until the elapsed time
// reaches the duration. Every wait is cut to the time left, so a half
// period longer than the remainder cannot stretch the tone.
func (c *Controller) softwareTone(pin *OutputPin, t Tone) error {
	half := HalfPeriod(t.FrequencyHz)

	unlock := lockToneThread()
	defer unlock()

	start := c.clock.Now()
	remaining := func() time.Duration { return t.Duration - c.clock.Now().Sub(start) }
	for {
		left := remaining()
		if left <= 0 {
			return nil
		}
		if err := pin.Activate(); err != nil {
			return err
		}
		if err := c.wait(min(half, left)); err != nil {
			return err
		}
		if err := pin.Deactivate(); err != nil {
			return err
		}
		if left = remaining(); left <= 0 {
			return nil
		}
		if err := c.wait(min(half, left)); err != nil {
			return err
		}
	}
}

func (c *Controller) hardwareTone(pwm gpio.PWM, t Tone) error {
	if err := pwm.SetFrequencyHz(t.FrequencyHz); err != nil {
		return fmt.Errorf("buzzer: pwm frequency: %w", err)
	}
	if err := pwm.SetDutyPercent(50); err != nil {
		return fmt.Errorf("buzzer: pwm duty: %w", err)
	}
	werr := c.wait(t.Duration)
	if err := pwm.SetDutyPercent(0); err != nil && werr == nil {
		return fmt.Errorf("buzzer: pwm off: %w", err)
	}
	return werr
}

func (c *Controller) wait(d time.Duration) error {
	select {
	case <-c.clock.After(d):
		return nil
	case <-c.ctx.Done():
		return ErrClosed
	}
}

// Close stops running emissions at their next suspension point, waits for
// them, then deactivates and releases the pin. Safe to call more than once.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		c.lifeMu.Lock()
		c.closed = true
		c.lifeMu.Unlock()
		c.cancel()

		c.initMu.Lock()
		done := c.initDone
		c.initMu.Unlock()
		if done != nil {
			<-done
		}
		c.wg.Wait()

		c.initMu.Lock()
		pin, pwm := c.pin, c.pwm
		c.initMu.Unlock()
		if pwm != nil {
			if err := pwm.Close(); err != nil {
				c.log.Warn("buzzer: pwm release failed", "err", err)
			}
		}
		if pin != nil {
			c.closeErr = pin.Release()
		}
		c.log.Info("buzzer: released", "pin", c.cfg.Pin)
	})
	return c.closeErr
}
