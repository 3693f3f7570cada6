// Command buzzer-test toggles a GPIO line at a fixed cadence to check
// buzzer wiring without the HTTP daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"buzzerd/internal/buzzer"
	"buzzerd/internal/gpio"
)

type options struct {
	backend   string
	chip      string
	pin       int
	toggles   int
	interval  time.Duration
	activeLow bool
}

var openLine = gpio.Open

func main() {
	var o options
	flag.StringVar(&o.backend, "backend", gpio.BackendChardev, "GPIO backend: gpiocdev, periph, sysfs")
	flag.StringVar(&o.chip, "chip", "", "gpiochip for the gpiocdev backend (pin is then a line offset)")
	flag.IntVar(&o.pin, "pin", 18, "GPIO number")
	flag.IntVar(&o.toggles, "toggles", 2000, "Number of on/off transitions")
	flag.DurationVar(&o.interval, "interval", time.Millisecond, "Delay between transitions")
	flag.BoolVar(&o.activeLow, "active-low", false, "Buzzer is on when the line is low (PNP wiring)")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	n, err := run(ctx, o, log)
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "buzzer-test: %v\n", err)
		os.Exit(1)
	}
	log.Info("done", "toggles", n)
}

// run toggles the pin o.toggles times and always leaves it deactivated
// and released. It returns how many transitions were written.
func run(ctx context.Context, o options, log *slog.Logger) (int, error) {
	if o.toggles < 0 {
		return 0, fmt.Errorf("toggles must be >= 0")
	}
	if o.interval <= 0 {
		return 0, fmt.Errorf("interval must be > 0")
	}

	lc := gpio.LineConfig{Backend: o.backend, Chip: o.chip, Pin: o.pin}
	if o.activeLow {
		lc.Initial = 1
	}
	line, err := openLine(lc)
	if err != nil {
		return 0, fmt.Errorf("open gpio %d (%s): %w", o.pin, o.backend, err)
	}
	pin := buzzer.NewOutputPin(line, o.activeLow)
	defer func() {
		if err := pin.Release(); err != nil {
			log.Warn("release failed", "err", err)
		}
	}()

	log.Info("toggling", "backend", gpio.NormalizeBackend(o.backend), "pin", o.pin, "toggles", o.toggles, "interval", o.interval, "active_low", o.activeLow)

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	on := false
	for i := 0; i < o.toggles; i++ {
		on = !on
		if on {
			err = pin.Activate()
		} else {
			err = pin.Deactivate()
		}
		if err != nil {
			return i, fmt.Errorf("toggle %d: %w", i+1, err)
		}
		select {
		case <-ctx.Done():
			return i + 1, ctx.Err()
		case <-ticker.C:
		}
	}
	return o.toggles, nil
}
