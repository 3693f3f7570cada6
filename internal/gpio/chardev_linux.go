//go:build linux

package gpio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/warthog618/go-gpiocdev"
)

// openChardev requests a line through the Linux GPIO character device,
// driven to initial from the moment it is claimed.
//
// With an explicit chip the pin is used as the line offset on that chip.
// Otherwise every /dev/gpiochip* is searched for a line named "GPIO<pin>",
// which is how Raspberry Pi kernels label the header pins.
func openChardev(chipName string, pin, initial int) (Line, error) {
	if chipName != "" {
		chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(Consumer))
		if err != nil {
			return nil, fmt.Errorf("gpio: open %s: %w", chipName, err)
		}
		line, err := chip.RequestLine(pin, gpiocdev.AsOutput(initial))
		if err != nil {
			_ = chip.Close()
			return nil, fmt.Errorf("gpio: request %s:%d: %w", chipName, pin, err)
		}
		return &chardevLine{chip: chip, line: line}, nil
	}

	lineName := fmt.Sprintf("GPIO%d", pin)

	// Pi 5 kernels may expose the header on gpiochip4 rather than gpiochip0.
	chipCandidates := []string{"/dev/gpiochip0", "/dev/gpiochip4"}
	entries, _ := os.ReadDir("/dev")
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "gpiochip") {
			p := filepath.Join("/dev", name)
			if !contains(chipCandidates, p) {
				chipCandidates = append(chipCandidates, p)
			}
		}
	}

	for _, chipPath := range chipCandidates {
		chip, err := gpiocdev.NewChip(chipPath, gpiocdev.WithConsumer(Consumer))
		if err != nil {
			continue
		}
		offset, err := chip.FindLine(lineName)
		if err != nil {
			_ = chip.Close()
			continue
		}
		line, err := chip.RequestLine(offset, gpiocdev.AsOutput(initial))
		if err != nil {
			_ = chip.Close()
			continue
		}
		return &chardevLine{chip: chip, line: line}, nil
	}

	return nil, fmt.Errorf("gpio: line %q not found (or busy)", lineName)
}

type chardevLine struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

func (c *chardevLine) SetValue(v int) error {
	if c == nil || c.line == nil {
		return fmt.Errorf("gpio: line not requested")
	}
	return c.line.SetValue(v)
}

func (c *chardevLine) Close() error {
	if c == nil || c.line == nil {
		return nil
	}
	err := c.line.Close()
	c.line = nil
	if c.chip != nil {
		_ = c.chip.Close()
		c.chip = nil
	}
	return err
}
