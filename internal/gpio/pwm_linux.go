//go:build linux

package gpio

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// sysfsPWM drives a hardware PWM channel via /sys/class/pwm.
//
// On Raspberry Pi this needs `dtoverlay=pwm` (or pwm-2chan) so that GPIO18
// is routed to PWM0 and exposed as pwmchip0/pwm0.
type sysfsPWM struct {
	chipPath string // /sys/class/pwm/pwmchipN
	pwmPath  string // /sys/class/pwm/pwmchipN/pwmM
	channel  int

	periodNS uint64
	enabled  bool
}

var pwmSysfsBase = "/sys/class/pwm"

func openSysfsPWM(cfg PWMConfig) (PWM, error) {
	var chipPath string
	if cfg.Chip != "" {
		chipPath = filepath.Join(pwmSysfsBase, cfg.Chip)
		if _, err := os.Stat(chipPath); err != nil {
			return nil, fmt.Errorf("gpio: pwm chip %s: %w", cfg.Chip, err)
		}
	} else {
		p, err := findPWMChip()
		if err != nil {
			return nil, err
		}
		chipPath = p
	}

	d := &sysfsPWM{
		chipPath: chipPath,
		channel:  cfg.Channel,
		pwmPath:  filepath.Join(chipPath, fmt.Sprintf("pwm%d", cfg.Channel)),
	}
	if err := d.ensureExported(); err != nil {
		return nil, err
	}
	// Polarity can only change while disabled.
	_ = d.writeBool("enable", false)
	polarity := "normal"
	if cfg.Inverted {
		polarity = "inversed"
	}
	if err := writeSysfs(filepath.Join(d.pwmPath, "polarity"), polarity); err != nil {
		return nil, fmt.Errorf("gpio: set pwm polarity: %w", err)
	}
	return d, nil
}

func findPWMChip() (string, error) {
	base := pwmSysfsBase
	entries, err := os.ReadDir(base)
	if err != nil {
		return "", fmt.Errorf("gpio: read %s: %w", base, err)
	}

	// In sysfs, pwmchipN entries are commonly symlinks, not directories.
	candidates := make([]string, 0, len(entries))
	for _, name := range []string{"pwmchip0", "pwmchip1", "pwmchip2"} {
		for _, e := range entries {
			if e.Name() == name {
				candidates = append(candidates, name)
			}
		}
	}
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "pwmchip") && !contains(candidates, name) {
			candidates = append(candidates, name)
		}
	}

	for _, name := range candidates {
		chip := filepath.Join(base, name)
		n, err := readInt(filepath.Join(chip, "npwm"))
		if err != nil || n <= 0 {
			continue
		}
		return chip, nil
	}
	return "", fmt.Errorf("gpio: no sysfs pwmchip found (is the pwm overlay enabled?)")
}

func (d *sysfsPWM) ensureExported() error {
	if _, err := os.Stat(d.pwmPath); err == nil {
		return nil
	}
	if err := writeSysfs(filepath.Join(d.chipPath, "export"), strconv.Itoa(d.channel)); err != nil {
		if _, statErr := os.Stat(d.pwmPath); statErr == nil {
			return nil
		}
		return fmt.Errorf("gpio: export pwm: %w", err)
	}
	if _, err := os.Stat(d.pwmPath); err != nil {
		return fmt.Errorf("gpio: pwm path not created after export: %w", err)
	}
	return nil
}

// SetFrequencyHz reprograms the period. The channel is disabled while the
// period changes and duty is reset to 0.
func (d *sysfsPWM) SetFrequencyHz(hz int) error {
	if hz <= 0 {
		return fmt.Errorf("gpio: invalid pwm frequency %d", hz)
	}
	periodNS := uint64(1_000_000_000 / hz)
	if periodNS == 0 {
		periodNS = 1
	}

	_ = d.writeBool("enable", false)
	d.enabled = false

	// duty_cycle must never exceed period, so clear it first.
	if err := d.writeUint("duty_cycle", 0); err != nil {
		return err
	}
	if err := d.writeUint("period", periodNS); err != nil {
		return err
	}
	d.periodNS = periodNS
	return nil
}

// SetDutyPercent sets duty and enables the channel when p > 0.
func (d *sysfsPWM) SetDutyPercent(p float64) error {
	if p < 0 {
		p = 0
	} else if p > 100 {
		p = 100
	}
	if d.periodNS == 0 {
		return fmt.Errorf("gpio: pwm period not set")
	}

	duty := uint64(math.Round(float64(d.periodNS) * (p / 100.0)))
	if duty > d.periodNS {
		duty = d.periodNS
	}
	if err := d.writeUint("duty_cycle", duty); err != nil {
		return err
	}

	want := p > 0
	if want != d.enabled {
		if err := d.writeBool("enable", want); err != nil {
			return err
		}
		d.enabled = want
	}
	return nil
}

func (d *sysfsPWM) Close() error {
	if d.periodNS != 0 {
		_ = d.writeUint("duty_cycle", 0)
	}
	_ = d.writeBool("enable", false)
	d.enabled = false
	return writeSysfsOnce(filepath.Join(d.chipPath, "unexport"), strconv.Itoa(d.channel))
}

func (d *sysfsPWM) writeUint(name string, v uint64) error {
	return writeSysfsOnce(filepath.Join(d.pwmPath, name), strconv.FormatUint(v, 10))
}

func (d *sysfsPWM) writeBool(name string, v bool) error {
	val := "0"
	if v {
		val = "1"
	}
	return writeSysfsOnce(filepath.Join(d.pwmPath, name), val)
}
