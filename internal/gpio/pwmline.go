package gpio

import "fmt"

// CarrierHz is the period programmed when a PWM channel is opened as a line,
// so that level writes are accepted before the first tone sets its own.
const CarrierHz = 1000

// PWMLine drives a pin that is muxed to a PWM channel as a plain output.
// Level 1 is 100% duty and level 0 is 0%, swapped when the channel polarity
// is inverted. A pin routed to PWM cannot also be requested as a GPIO, so on
// shared wiring this replaces the Line from Open.
type PWMLine struct {
	pwm      PWM
	inverted bool
}

// NewPWMLine takes ownership of p and drives it to the physical level initial.
// p is closed if that fails.
func NewPWMLine(p PWM, inverted bool, initial int) (*PWMLine, error) {
	l := &PWMLine{pwm: p, inverted: inverted}
	if err := p.SetFrequencyHz(CarrierHz); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("gpio: pwm line carrier: %w", err)
	}
	if err := l.SetValue(initial); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("gpio: pwm line initial level: %w", err)
	}
	return l, nil
}

func (l *PWMLine) SetValue(v int) error {
	if (v != 0) != l.inverted {
		return l.pwm.SetDutyPercent(100)
	}
	return l.pwm.SetDutyPercent(0)
}

func (l *PWMLine) Close() error {
	return l.pwm.Close()
}

// Channel returns the channel for tone playback. Its Close does nothing;
// the channel is released by closing the line.
func (l *PWMLine) Channel() PWM {
	return borrowedPWM{l.pwm}
}

type borrowedPWM struct{ PWM }

func (borrowedPWM) Close() error { return nil }
