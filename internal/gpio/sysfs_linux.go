//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

var gpioSysfsBase = "/sys/class/gpio"

// exportWait bounds how long we wait for udev to create the gpioN node.
var exportWait = 500 * time.Millisecond

// sysfsLine drives a line through the deprecated /sys/class/gpio interface.
// Still the only option on some vendor kernels.
type sysfsLine struct {
	pin      string
	path     string
	exported bool // we exported it, so we unexport on Close
}

func openSysfs(pin, initial int) (Line, error) {
	l := &sysfsLine{
		pin:  strconv.Itoa(pin),
		path: filepath.Join(gpioSysfsBase, "gpio"+strconv.Itoa(pin)),
	}
	if err := l.export(); err != nil {
		return nil, err
	}
	// "low"/"high" set direction=out and the value in one write.
	dir := "low"
	if initial != 0 {
		dir = "high"
	}
	if err := writeSysfs(filepath.Join(l.path, "direction"), dir); err != nil {
		if err := writeSysfs(filepath.Join(l.path, "direction"), "out"); err != nil {
			l.unexport()
			return nil, fmt.Errorf("gpio: set direction gpio%s: %w", l.pin, err)
		}
		if err := l.SetValue(initial); err != nil {
			l.unexport()
			return nil, fmt.Errorf("gpio: set initial value gpio%s: %w", l.pin, err)
		}
	}
	return l, nil
}

func (l *sysfsLine) export() error {
	if _, err := os.Stat(l.path); err == nil {
		return nil
	}
	if err := writeSysfs(filepath.Join(gpioSysfsBase, "export"), l.pin); err != nil {
		// If already exported by someone else, ignore.
		if _, statErr := os.Stat(l.path); statErr == nil {
			return nil
		}
		return fmt.Errorf("gpio: export gpio%s: %w", l.pin, err)
	}
	l.exported = true

	deadline := time.Now().Add(exportWait)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(l.path); err == nil {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	if _, err := os.Stat(l.path); err != nil {
		return fmt.Errorf("gpio: gpio%s not created after export: %w", l.pin, err)
	}
	return nil
}

func (l *sysfsLine) unexport() {
	if !l.exported {
		return
	}
	_ = writeSysfsOnce(filepath.Join(gpioSysfsBase, "unexport"), l.pin)
	l.exported = false
}

// SetValue writes the value attribute once. Unlike export and direction it
// is not retried: the node exists by now, and a toggle must not stall.
func (l *sysfsLine) SetValue(v int) error {
	val := "0"
	if v != 0 {
		val = "1"
	}
	return writeSysfsOnce(filepath.Join(l.path, "value"), val)
}

func (l *sysfsLine) Close() error {
	l.unexport()
	return nil
}

// writeSysfs writes value to a sysfs attribute. Right after an export udev
// may still be creating the node or fixing its permissions, so
// ENOENT/EACCES/EPERM are retried for up to 2 s.
func writeSysfs(path string, value string) error {
	deadline := time.Now().Add(2 * time.Second)
	for {
		err := writeSysfsOnce(path, value)
		if err == nil || !isRetryableSysfsErr(err) || !time.Now().Before(deadline) {
			return err
		}
		time.Sleep(25 * time.Millisecond)
	}
}

// writeSysfsOnce uses O_WRONLY without O_TRUNC/O_CREATE; some sysfs
// attributes reject truncation flags.
func writeSysfsOnce(path string, value string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	_, werr := f.WriteString(value)
	cerr := f.Close()
	switch {
	case werr != nil && cerr != nil:
		return errors.Join(werr, cerr)
	case werr != nil:
		return werr
	default:
		return cerr
	}
}

func isRetryableSysfsErr(err error) bool {
	return os.IsPermission(err) || os.IsNotExist(err) || errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) || errors.Is(err, syscall.ENOENT)
}

func readInt(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(string(b))
	if s == "" {
		return 0, fmt.Errorf("empty")
	}
	return strconv.Atoi(s)
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
