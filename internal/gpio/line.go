// Package gpio opens single digital output lines and hardware PWM channels
// on Linux single-board computers.
//
// Several backends are supported because boards and kernels differ in what
// they expose: the GPIO character device (libgpiod), periph.io, and the
// legacy /sys/class/gpio interface.
package gpio

import (
	"errors"
	"fmt"
	"strings"
)

// Backend names accepted by Open.
const (
	BackendChardev = "gpiocdev"
	BackendPeriph  = "periph"
	BackendSysfs   = "sysfs"
	BackendNone    = "none"
)

// Consumer is the label attached to requested lines where the backend
// supports one.
const Consumer = "buzzerd"

// ErrNoBackend is returned by the "none" backend.
var ErrNoBackend = errors.New("gpio: no backend configured")

// Line is a single requested output line.
//
// SetValue writes the physical level (0 or 1). Close releases the line; it
// does not change the level first.
type Line interface {
	SetValue(v int) error
	Close() error
}

// PWM is a hardware PWM channel.
//
// Duty is expressed in percent (0..100). Close should be best-effort and
// leave the channel disabled.
type PWM interface {
	SetFrequencyHz(hz int) error
	SetDutyPercent(p float64) error
	Close() error
}

// LineConfig selects a backend and a line.
type LineConfig struct {
	Backend string
	// Chip optionally names the gpiochip (e.g. "gpiochip0"). When empty the
	// chardev backend searches every chip for a line named "GPIO<Pin>".
	Chip string
	// Pin is BCM numbering for chardev/periph, the kernel GPIO number for sysfs.
	Pin int
	// Initial is the physical level (0 or 1) the line is requested at. PNP
	// wired buzzers sound at 0, so callers pass their "off" level here.
	Initial int
}

// PWMConfig selects a sysfs PWM channel.
type PWMConfig struct {
	// Chip is a pwmchip name under /sys/class/pwm; empty picks the first usable one.
	Chip    string
	Channel int
	// Inverted sets polarity "inversed" so that 0% duty drives the line high.
	Inverted bool
}

var (
	openChardevFn  = openChardev
	openPeriphFn   = openPeriph
	openSysfsFn    = openSysfs
	openSysfsPWMFn = openSysfsPWM
)

func NormalizeBackend(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "chardev", "gpiod", "libgpiod":
		return BackendChardev
	}
	return s
}

// ValidBackend reports whether s names a known backend.
func ValidBackend(s string) bool {
	switch NormalizeBackend(s) {
	case BackendChardev, BackendPeriph, BackendSysfs, BackendNone:
		return true
	}
	return false
}

// Open requests cfg.Pin as an output driven to cfg.Initial.
func Open(cfg LineConfig) (Line, error) {
	if cfg.Pin < 0 {
		return nil, fmt.Errorf("gpio: invalid pin %d", cfg.Pin)
	}
	initial := 0
	if cfg.Initial != 0 {
		initial = 1
	}
	switch NormalizeBackend(cfg.Backend) {
	case BackendChardev:
		return openChardevFn(cfg.Chip, cfg.Pin, initial)
	case BackendPeriph:
		return openPeriphFn(cfg.Pin, initial)
	case BackendSysfs:
		return openSysfsFn(cfg.Pin, initial)
	case BackendNone:
		return nil, ErrNoBackend
	default:
		return nil, fmt.Errorf("gpio: unknown backend %q", cfg.Backend)
	}
}

// OpenPWM exports and prepares a hardware PWM channel, left disabled.
func OpenPWM(cfg PWMConfig) (PWM, error) {
	if cfg.Channel < 0 {
		return nil, fmt.Errorf("gpio: invalid pwm channel %d", cfg.Channel)
	}
	return openSysfsPWMFn(cfg)
}
