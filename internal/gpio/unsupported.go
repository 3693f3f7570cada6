//go:build !linux

package gpio

import "fmt"

func openChardev(chipName string, pin, initial int) (Line, error) {
	return nil, fmt.Errorf("gpio: chardev unsupported on this platform")
}

func openSysfs(pin, initial int) (Line, error) {
	return nil, fmt.Errorf("gpio: sysfs unsupported on this platform")
}

func openSysfsPWM(cfg PWMConfig) (PWM, error) {
	return nil, fmt.Errorf("gpio: pwm unsupported on this platform")
}
