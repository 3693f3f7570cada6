package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"buzzerd/internal/buzzer"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeTempConfig(t, "buzzer: {}\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Listen != ":8080" {
		t.Fatalf("listen=%q want :8080", cfg.Listen)
	}
	if cfg.Buzzer.Backend != "gpiocdev" {
		t.Fatalf("backend=%q want gpiocdev", cfg.Buzzer.Backend)
	}
	if cfg.Buzzer.Pin != 18 {
		t.Fatalf("pin=%d want 18", cfg.Buzzer.Pin)
	}
	if cfg.Buzzer.Defaults.Duration != 200*time.Millisecond {
		t.Fatalf("duration=%s want 200ms", cfg.Buzzer.Defaults.Duration)
	}
	if cfg.Buzzer.Defaults.FrequencyHz != 1500 {
		t.Fatalf("frequency=%d want 1500", cfg.Buzzer.Defaults.FrequencyHz)
	}
	if cfg.Buzzer.Defaults.Method != "tone" {
		t.Fatalf("method=%q want tone", cfg.Buzzer.Defaults.Method)
	}
	if cfg.Buzzer.MaxDuration != 5*time.Second {
		t.Fatalf("max_duration=%s want 5s", cfg.Buzzer.MaxDuration)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" || cfg.Log.Output != "stderr" {
		t.Fatalf("log=%+v", cfg.Log)
	}
	if cfg.RateLimit.Enable {
		t.Fatalf("rate limit should default to disabled")
	}
	if cfg.MDNS.Service != "_buzzer._tcp" {
		t.Fatalf("mdns.service=%q", cfg.MDNS.Service)
	}
}

func TestLoad_ParsesFullFile(t *testing.T) {
	path := writeTempConfig(t, `
listen: "127.0.0.1:9000"
log:
  level: debug
  format: json
buzzer:
  backend: sysfs
  pin: 76
  active_low: true
  lazy_init: true
  max_duration: 3s
  defaults:
    duration: 150ms
    frequency_hz: 2000
    method: SIMPLE
  pwm:
    enable: true
    chip: pwmchip0
    channel: 1
    shared_pin: true
rate_limit:
  enable: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	b := cfg.Buzzer
	if b.Backend != "sysfs" || b.Pin != 76 || !b.ActiveLow || !b.LazyInit {
		t.Fatalf("buzzer=%+v", b)
	}
	if b.MaxDuration != 3*time.Second || b.Defaults.Duration != 150*time.Millisecond {
		t.Fatalf("durations=%s %s", b.MaxDuration, b.Defaults.Duration)
	}
	if b.Defaults.Method != "simple" {
		t.Fatalf("method=%q want simple", b.Defaults.Method)
	}
	if !b.PWM.Enable || b.PWM.Chip != "pwmchip0" || b.PWM.Channel != 1 || !b.PWM.SharedPin {
		t.Fatalf("pwm=%+v", b.PWM)
	}
	if cfg.RateLimit.PerSecond != 5 || cfg.RateLimit.Burst != 10 {
		t.Fatalf("rate_limit=%+v", cfg.RateLimit)
	}

	d := b.RequestDefaults()
	want := buzzer.Defaults{Duration: 150 * time.Millisecond, FrequencyHz: 2000, Method: buzzer.MethodSimple, MaxDuration: 3 * time.Second}
	if d != want {
		t.Fatalf("RequestDefaults=%+v want %+v", d, want)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "UnknownBackend",
			body: "buzzer:\n  backend: wiringpi\n",
			want: "buzzer.backend must be one of gpiocdev, periph, sysfs, none",
		},
		{
			name: "NegativePin",
			body: "buzzer:\n  pin: -3\n",
			want: "buzzer.pin must be >= 0",
		},
		{
			name: "UnknownMethod",
			body: "buzzer:\n  defaults:\n    method: square\n",
			want: "buzzer.defaults.method must be one of simple, tone, pwm",
		},
		{
			name: "DefaultAboveMax",
			body: "buzzer:\n  max_duration: 1s\n  defaults:\n    duration: 2s\n",
			want: "buzzer.defaults.duration must not exceed buzzer.max_duration",
		},
		{
			name: "NegativeFrequency",
			body: "buzzer:\n  defaults:\n    frequency_hz: -1\n",
			want: "buzzer.defaults.frequency_hz must be > 0",
		},
		{
			name: "SharedPinWithoutPWM",
			body: "buzzer:\n  pwm:\n    shared_pin: true\n",
			want: "buzzer.pwm.shared_pin requires buzzer.pwm.enable",
		},
		{
			name: "BadLogFormat",
			body: "log:\n  format: xml\n",
			want: "log.format must be 'text' or 'json'",
		},
		{
			name: "NegativeRate",
			body: "rate_limit:\n  enable: true\n  per_second: -1\n",
			want: "rate_limit.per_second must be > 0",
		},
		{
			name: "BadService",
			body: "mdns:\n  service: buzzer\n",
			want: "mdns.service must look like '_name._tcp'",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeTempConfig(t, tc.body))
			requireErrEq(t, err, tc.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := DefaultAndValidate(&cfg); err != nil {
		t.Fatalf("DefaultAndValidate(Default()): %v", err)
	}
	if cfg.Buzzer.Pin != 18 {
		t.Fatalf("pin=%d", cfg.Buzzer.Pin)
	}
}

func TestLoad_ShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "buzzerd.yaml"))
	if err != nil {
		t.Fatalf("Load(configs/buzzerd.yaml): %v", err)
	}
	if cfg.Buzzer.Backend != "gpiocdev" || cfg.Buzzer.Pin != 18 {
		t.Fatalf("buzzer=%+v", cfg.Buzzer)
	}
	if !cfg.MDNS.Enable || cfg.MDNS.Service != "_buzzer._tcp" {
		t.Fatalf("mdns=%+v", cfg.MDNS)
	}
}

func TestHardwareEqual(t *testing.T) {
	a := Default().Buzzer
	b := a
	b.Defaults.Duration = time.Second
	if !a.HardwareEqual(b) {
		t.Fatalf("defaults change must not count as hardware change")
	}
	b.ActiveLow = true
	if a.HardwareEqual(b) {
		t.Fatalf("polarity change must count as hardware change")
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := writeTempConfig(t, "buzzer:\n  defaults:\n    duration: 100ms\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Config, 64)
	errCh := make(chan error, 1)
	go func() {
		errCh <- Watch(ctx, path, nil, func(cfg Config) {
			select {
			case got <- cfg:
			default:
			}
		})
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)

	// An invalid write is skipped.
	if err := os.WriteFile(path, []byte("buzzer:\n  backend: wiringpi\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(path, []byte("buzzer:\n  defaults:\n    duration: 400ms\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case cfg := <-got:
			if cfg.Buzzer.Defaults.Duration == 400*time.Millisecond {
				cancel()
				if err := <-errCh; err != nil {
					t.Fatalf("Watch: %v", err)
				}
				return
			}
		case <-deadline:
			t.Fatalf("no reload observed")
		}
	}
}
