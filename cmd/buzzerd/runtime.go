package main

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"buzzerd/internal/buzzer"
	"buzzerd/internal/config"
	"buzzerd/internal/gpio"
	"buzzerd/internal/logging"
	"buzzerd/internal/mdns"
	"buzzerd/internal/web"
)

// runtime ties the controller, HTTP server, config watcher and mDNS
// announcement to one config.
type runtime struct {
	configPath string
	log        *slog.Logger
	logs       *logging.Buffer

	ctl      *buzzer.Controller
	status   *web.Status
	settings *web.Settings

	mu  sync.Mutex
	cfg config.Config
}

func newRuntime(cfg config.Config, configPath string, logs *logging.Buffer, log *slog.Logger) *runtime {
	if log == nil {
		log = slog.Default()
	}
	status := web.NewStatus()
	status.SetListen(cfg.Listen)
	return &runtime{
		configPath: configPath,
		log:        log,
		logs:       logs,
		ctl:        buzzer.New(controllerConfig(cfg.Buzzer, log.With("component", "buzzer"))),
		status:     status,
		settings:   web.NewSettings(cfg),
		cfg:        cfg,
	}
}

var (
	openLine = gpio.Open
	openPWM  = gpio.OpenPWM
)

func controllerConfig(c config.BuzzerConfig, log *slog.Logger) buzzer.Config {
	lc := gpio.LineConfig{Backend: c.Backend, Chip: c.Chip, Pin: c.Pin}
	if c.ActiveLow {
		// Request the line at its "off" level so a PNP buzzer stays quiet.
		lc.Initial = 1
	}
	bc := buzzer.Config{
		Open:      func() (gpio.Line, error) { return openLine(lc) },
		ActiveLow: c.ActiveLow,
		Pin:       c.Pin,
		Backend:   c.Backend,
		Logger:    log,
	}
	if !c.PWM.Enable {
		return bc
	}
	pc := gpio.PWMConfig{Chip: c.PWM.Chip, Channel: c.PWM.Channel, Inverted: c.ActiveLow}
	if !c.PWM.SharedPin {
		bc.OpenPWM = func() (gpio.PWM, error) { return openPWM(pc) }
		return bc
	}

	// The controller opens the line before the PWM, so OpenPWM hands back the
	// channel the line already holds.
	var shared *gpio.PWMLine
	bc.Open = func() (gpio.Line, error) {
		p, err := openPWM(pc)
		if err != nil {
			return nil, err
		}
		l, err := gpio.NewPWMLine(p, pc.Inverted, lc.Initial)
		if err != nil {
			return nil, err
		}
		shared = l
		return l, nil
	}
	bc.OpenPWM = func() (gpio.PWM, error) {
		if shared == nil {
			return nil, errors.New("buzzer: shared pwm pin not open")
		}
		return shared.Channel(), nil
	}
	return bc
}

func (r *runtime) Config() config.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// Apply takes a reloaded config. Request defaults, max duration and the
// rate limit change live; pin wiring changes are reported and ignored
// until restart.
func (r *runtime) Apply(next config.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.cfg.Buzzer.HardwareEqual(next.Buzzer) {
		r.log.Warn("config: buzzer wiring changed, restart to apply",
			"backend", next.Buzzer.Backend, "pin", next.Buzzer.Pin, "active_low", next.Buzzer.ActiveLow)
		next.Buzzer.Backend = r.cfg.Buzzer.Backend
		next.Buzzer.Chip = r.cfg.Buzzer.Chip
		next.Buzzer.Pin = r.cfg.Buzzer.Pin
		next.Buzzer.ActiveLow = r.cfg.Buzzer.ActiveLow
		next.Buzzer.PWM = r.cfg.Buzzer.PWM
	}
	if next.Listen != r.cfg.Listen || next.MDNS != r.cfg.MDNS || next.Log != r.cfg.Log {
		r.log.Warn("config: listen/mdns/log changes need a restart")
		next.Listen, next.MDNS, next.Log = r.cfg.Listen, r.cfg.MDNS, r.cfg.Log
	}

	r.settings.Apply(next)
	r.cfg = next
	d := next.Buzzer.RequestDefaults()
	r.log.Info("config: applied",
		"duration", d.Duration, "frequency_hz", d.FrequencyHz, "method", d.Method,
		"max_duration", d.MaxDuration, "rate_limit", next.RateLimit.Enable)
}

// Run serves until ctx is cancelled. A missing buzzer is not fatal: the
// endpoint keeps answering and reports it per request.
func (r *runtime) Run(ctx context.Context) error {
	cfg := r.Config()

	if !cfg.Buzzer.LazyInit {
		if err := r.ctl.Init(ctx); err != nil {
			r.log.Warn("buzzer not available, continuing without it", "err", err)
		}
	}

	handler := web.Handler(r.ctl, r.status, r.settings, r.logs, r.log.With("component", "web"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return web.Serve(gctx, cfg.Listen, handler, cfg.Buzzer.MaxDuration)
	})
	if r.configPath != "" {
		g.Go(func() error {
			if err := config.Watch(gctx, r.configPath, r.log, r.Apply); err != nil {
				r.log.Warn("config watcher stopped", "err", err)
			}
			return nil
		})
	}
	if cfg.MDNS.Enable {
		g.Go(func() error {
			port, err := mdns.PortFromListen(cfg.Listen)
			if err == nil {
				err = mdns.Advertise(gctx, mdns.Config{
					Instance: cfg.MDNS.Instance,
					Service:  cfg.MDNS.Service,
					Domain:   cfg.MDNS.Domain,
					Port:     port,
					Text:     map[string]string{"path": "/beep"},
				}, r.log)
			}
			if err != nil {
				r.log.Warn("mdns announcement failed", "err", err)
			}
			return nil
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close stops any running pattern and releases the pin.
func (r *runtime) Close() error {
	return r.ctl.Close()
}
