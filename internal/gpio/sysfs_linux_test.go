//go:build linux

package gpio

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func mkfile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	return string(b)
}

func TestSysfsLine_AlreadyExported(t *testing.T) {
	base := t.TempDir()
	mkfile(t, filepath.Join(base, "gpio18", "direction"))
	mkfile(t, filepath.Join(base, "gpio18", "value"))
	mkfile(t, filepath.Join(base, "unexport"))

	old := gpioSysfsBase
	gpioSysfsBase = base
	t.Cleanup(func() { gpioSysfsBase = old })

	l, err := openSysfs(18, 0)
	if err != nil {
		t.Fatalf("openSysfs: %v", err)
	}
	if got := readFile(t, filepath.Join(base, "gpio18", "direction")); got != "low" {
		t.Fatalf("direction=%q want low", got)
	}
	if err := l.SetValue(1); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if got := readFile(t, filepath.Join(base, "gpio18", "value")); got != "1" {
		t.Fatalf("value=%q want 1", got)
	}
	if err := l.SetValue(0); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if got := readFile(t, filepath.Join(base, "gpio18", "value")); got != "0" {
		t.Fatalf("value=%q want 0", got)
	}

	// Not exported by us, so Close must leave unexport untouched.
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := readFile(t, filepath.Join(base, "unexport")); got != "" {
		t.Fatalf("unexport=%q want empty", got)
	}
}

func TestSysfsLine_InitialHighForActiveLow(t *testing.T) {
	base := t.TempDir()
	mkfile(t, filepath.Join(base, "gpio23", "direction"))
	mkfile(t, filepath.Join(base, "gpio23", "value"))

	old := gpioSysfsBase
	gpioSysfsBase = base
	t.Cleanup(func() { gpioSysfsBase = old })

	if _, err := openSysfs(23, 1); err != nil {
		t.Fatalf("openSysfs: %v", err)
	}
	if got := readFile(t, filepath.Join(base, "gpio23", "direction")); got != "high" {
		t.Fatalf("direction=%q want high", got)
	}
}

func TestSysfsLine_SetValueDoesNotRetry(t *testing.T) {
	// The value node is gone, as when the line is unexported underneath us.
	l := &sysfsLine{pin: "18", path: filepath.Join(t.TempDir(), "gpio18")}

	start := time.Now()
	err := l.SetValue(1)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("err=%v want not exist", err)
	}
	if took := time.Since(start); took > 200*time.Millisecond {
		t.Fatalf("SetValue took %v", took)
	}
}

func TestSysfsPWM_DutyWriteDoesNotRetry(t *testing.T) {
	d := &sysfsPWM{pwmPath: filepath.Join(t.TempDir(), "pwm0"), periodNS: 1000}

	start := time.Now()
	if err := d.SetDutyPercent(50); err == nil {
		t.Fatalf("expected error")
	}
	if took := time.Since(start); took > 200*time.Millisecond {
		t.Fatalf("SetDutyPercent took %v", took)
	}
}

func TestFindPWMChip_AcceptsSymlinkedPWMChip(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "pwm")
	if err := os.MkdirAll(base, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	realChip := filepath.Join(dir, "realchip0")
	if err := os.MkdirAll(realChip, 0o755); err != nil {
		t.Fatalf("MkdirAll realChip: %v", err)
	}
	if err := os.WriteFile(filepath.Join(realChip, "npwm"), []byte("2\n"), 0o644); err != nil {
		t.Fatalf("WriteFile npwm: %v", err)
	}
	link := filepath.Join(base, "pwmchip0")
	if err := os.Symlink(realChip, link); err != nil {
		t.Fatalf("Symlink: %v", err)
	}

	old := pwmSysfsBase
	pwmSysfsBase = base
	t.Cleanup(func() { pwmSysfsBase = old })

	chipPath, err := findPWMChip()
	if err != nil {
		t.Fatalf("findPWMChip: %v", err)
	}
	if chipPath != link {
		t.Fatalf("chipPath=%q want %q", chipPath, link)
	}
}

func TestSysfsPWM_ToneProgramming(t *testing.T) {
	base := t.TempDir()
	chip := filepath.Join(base, "pwmchip0")
	for _, name := range []string{"enable", "polarity", "period", "duty_cycle"} {
		mkfile(t, filepath.Join(chip, "pwm0", name))
	}
	mkfile(t, filepath.Join(chip, "npwm"))
	mkfile(t, filepath.Join(chip, "unexport"))
	if err := os.WriteFile(filepath.Join(chip, "npwm"), []byte("2\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	old := pwmSysfsBase
	pwmSysfsBase = base
	t.Cleanup(func() { pwmSysfsBase = old })

	d, err := openSysfsPWM(PWMConfig{Channel: 0, Inverted: true})
	if err != nil {
		t.Fatalf("openSysfsPWM: %v", err)
	}
	if got := readFile(t, filepath.Join(chip, "pwm0", "polarity")); got != "inversed" {
		t.Fatalf("polarity=%q want inversed", got)
	}

	if err := d.SetFrequencyHz(1000); err != nil {
		t.Fatalf("SetFrequencyHz: %v", err)
	}
	if n, _ := readInt(filepath.Join(chip, "pwm0", "period")); n != 1_000_000 {
		t.Fatalf("period=%d want 1000000", n)
	}
	if err := d.SetDutyPercent(50); err != nil {
		t.Fatalf("SetDutyPercent: %v", err)
	}
	if n, _ := readInt(filepath.Join(chip, "pwm0", "duty_cycle")); n != 500_000 {
		t.Fatalf("duty=%d want 500000", n)
	}
	if got := readFile(t, filepath.Join(chip, "pwm0", "enable")); got != "1" {
		t.Fatalf("enable=%q want 1", got)
	}

	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := readFile(t, filepath.Join(chip, "pwm0", "enable")); got != "0" {
		t.Fatalf("enable=%q want 0 after close", got)
	}
	if n, _ := readInt(filepath.Join(chip, "pwm0", "duty_cycle")); n != 0 {
		t.Fatalf("duty=%d want 0 after close", n)
	}
}

func TestSysfsPWM_DutyRequiresPeriod(t *testing.T) {
	d := &sysfsPWM{}
	if err := d.SetDutyPercent(50); err == nil {
		t.Fatalf("expected error without period")
	}
}
