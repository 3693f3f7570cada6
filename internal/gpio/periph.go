package gpio

import (
	"fmt"
	"strconv"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

var periphInit = host.Init

// openPeriph resolves the pin through periph.io's registry. host.Init is
// safe to call repeatedly; later calls are no-ops.
func openPeriph(pin, initial int) (Line, error) {
	if _, err := periphInit(); err != nil {
		return nil, fmt.Errorf("gpio: periph init: %w", err)
	}
	p := gpioreg.ByName(fmt.Sprintf("GPIO%d", pin))
	if p == nil {
		p = gpioreg.ByName(strconv.Itoa(pin))
	}
	if p == nil {
		return nil, fmt.Errorf("gpio: periph pin GPIO%d not found", pin)
	}
	if err := p.Out(gpio.Level(initial != 0)); err != nil {
		return nil, fmt.Errorf("gpio: periph %s as output: %w", p.Name(), err)
	}
	return &periphLine{pin: p}, nil
}

type periphLine struct {
	pin gpio.PinIO
}

func (l *periphLine) SetValue(v int) error {
	if l.pin == nil {
		return fmt.Errorf("gpio: line not requested")
	}
	return l.pin.Out(gpio.Level(v != 0))
}

func (l *periphLine) Close() error {
	if l.pin == nil {
		return nil
	}
	err := l.pin.Halt()
	l.pin = nil
	return err
}
