package buzzer

import (
	"fmt"
	"sync"
	"sync/atomic"

	"buzzerd/internal/gpio"
)

// OutputPin hides the wiring polarity of a buzzer line.
//
// With activeLow (PNP transistor wiring) Activate drives the line low and
// Deactivate drives it high; otherwise the mapping is the usual one.
type OutputPin struct {
	line      gpio.Line
	activeLow bool

	released    atomic.Bool
	releaseOnce sync.Once
	releaseErr  error
}

func NewOutputPin(line gpio.Line, activeLow bool) *OutputPin {
	return &OutputPin{line: line, activeLow: activeLow}
}

func (p *OutputPin) ActiveLow() bool { return p.activeLow }

func (p *OutputPin) Activate() error { return p.write(true) }

func (p *OutputPin) Deactivate() error { return p.write(false) }

func (p *OutputPin) level(active bool) int {
	if active != p.activeLow {
		return 1
	}
	return 0
}

func (p *OutputPin) write(active bool) error {
	if p == nil || p.line == nil {
		return ErrUnavailable
	}
	if p.released.Load() {
		return ErrClosed
	}
	if err := p.line.SetValue(p.level(active)); err != nil {
		return fmt.Errorf("buzzer: write pin: %w", err)
	}
	return nil
}

// Release deactivates the pin and releases the line. Only the first call
// does anything; later calls return the first result.
func (p *OutputPin) Release() error {
	if p == nil || p.line == nil {
		return nil
	}
	p.releaseOnce.Do(func() {
		derr := p.Deactivate()
		p.released.Store(true)
		cerr := p.line.Close()
		switch {
		case cerr != nil:
			p.releaseErr = cerr
		case derr != nil:
			p.releaseErr = derr
		}
	})
	return p.releaseErr
}
