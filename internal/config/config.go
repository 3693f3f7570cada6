package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"buzzerd/internal/buzzer"
	"buzzerd/internal/gpio"
)

type Config struct {
	Listen    string          `yaml:"listen"`
	Log       LogConfig       `yaml:"log"`
	Buzzer    BuzzerConfig    `yaml:"buzzer"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	MDNS      MDNSConfig      `yaml:"mdns"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// Output is "stderr", "stdout" or a file path.
	Output string `yaml:"output"`
	// BufferLines is how many recent lines /api/logs keeps.
	BufferLines int `yaml:"buffer_lines"`
}

type BuzzerConfig struct {
	// Backend is one of gpiocdev, periph, sysfs, none.
	Backend string `yaml:"backend"`
	// Chip optionally pins the gpiochip for the gpiocdev backend; Pin is
	// then a line offset on that chip.
	Chip string `yaml:"chip"`
	// Pin is BCM numbering (gpiocdev/periph) or the kernel GPIO number (sysfs).
	Pin int `yaml:"pin"`
	// ActiveLow is set for PNP transistor wiring (low = buzzer on).
	ActiveLow bool `yaml:"active_low"`
	// LazyInit defers acquiring the pin to the first request.
	LazyInit bool `yaml:"lazy_init"`

	MaxDuration time.Duration  `yaml:"max_duration"`
	Defaults    DefaultsConfig `yaml:"defaults"`
	PWM         PWMConfig      `yaml:"pwm"`
}

type DefaultsConfig struct {
	Duration    time.Duration `yaml:"duration"`
	FrequencyHz int           `yaml:"frequency_hz"`
	Method      string        `yaml:"method"`
}

// PWMConfig enables a hardware PWM channel for method=pwm.
type PWMConfig struct {
	Enable  bool   `yaml:"enable"`
	Chip    string `yaml:"chip"`
	Channel int    `yaml:"channel"`
	// SharedPin is set when the channel is routed to the buzzer pin itself
	// (e.g. GPIO18 with dtoverlay=pwm). The pin is then driven only through
	// the PWM channel and never requested as a GPIO, so backend is unused.
	SharedPin bool `yaml:"shared_pin"`
}

type RateLimitConfig struct {
	Enable    bool    `yaml:"enable"`
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

type MDNSConfig struct {
	Enable   bool   `yaml:"enable"`
	Instance string `yaml:"instance"`
	Service  string `yaml:"service"`
	Domain   string `yaml:"domain"`
}

// Default returns a fully defaulted config, as used when no file is given.
func Default() Config {
	var cfg Config
	_ = DefaultAndValidate(&cfg)
	return cfg
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	if err := DefaultAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultAndValidate fills zero values with defaults and rejects settings
// that cannot work.
func DefaultAndValidate(cfg *Config) error {
	if strings.TrimSpace(cfg.Listen) == "" {
		cfg.Listen = ":8080"
	}
	if _, _, err := net.SplitHostPort(cfg.Listen); err != nil {
		return fmt.Errorf("listen must be host:port: %v", err)
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be 'text' or 'json'")
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stderr"
	}
	if cfg.Log.BufferLines <= 0 {
		cfg.Log.BufferLines = 2000
	}

	b := &cfg.Buzzer
	b.Backend = gpio.NormalizeBackend(b.Backend)
	if !gpio.ValidBackend(b.Backend) {
		return fmt.Errorf("buzzer.backend must be one of gpiocdev, periph, sysfs, none")
	}
	if b.Pin == 0 {
		b.Pin = 18
	}
	if b.Pin < 0 {
		return fmt.Errorf("buzzer.pin must be >= 0")
	}
	if b.MaxDuration == 0 {
		b.MaxDuration = buzzer.DefaultMaxDuration
	}
	if b.MaxDuration < 0 {
		return fmt.Errorf("buzzer.max_duration must be > 0")
	}
	if b.Defaults.Duration == 0 {
		b.Defaults.Duration = buzzer.DefaultDuration
	}
	if b.Defaults.Duration < 0 {
		return fmt.Errorf("buzzer.defaults.duration must be > 0")
	}
	if b.Defaults.Duration > b.MaxDuration {
		return fmt.Errorf("buzzer.defaults.duration must not exceed buzzer.max_duration")
	}
	if b.Defaults.FrequencyHz == 0 {
		b.Defaults.FrequencyHz = buzzer.DefaultFrequencyHz
	}
	if b.Defaults.FrequencyHz < 0 {
		return fmt.Errorf("buzzer.defaults.frequency_hz must be > 0")
	}
	if b.Defaults.Method == "" {
		b.Defaults.Method = string(buzzer.DefaultMethod)
	}
	m, ok := buzzer.ParseMethod(b.Defaults.Method)
	if !ok {
		return fmt.Errorf("buzzer.defaults.method must be one of simple, tone, pwm")
	}
	b.Defaults.Method = string(m)
	if b.PWM.Channel < 0 {
		return fmt.Errorf("buzzer.pwm.channel must be >= 0")
	}
	if b.PWM.SharedPin && !b.PWM.Enable {
		return fmt.Errorf("buzzer.pwm.shared_pin requires buzzer.pwm.enable")
	}

	if cfg.RateLimit.Enable {
		if cfg.RateLimit.PerSecond == 0 {
			cfg.RateLimit.PerSecond = 5
		}
		if cfg.RateLimit.PerSecond < 0 {
			return fmt.Errorf("rate_limit.per_second must be > 0")
		}
		if cfg.RateLimit.Burst == 0 {
			cfg.RateLimit.Burst = 10
		}
		if cfg.RateLimit.Burst < 0 {
			return fmt.Errorf("rate_limit.burst must be > 0")
		}
	}

	if cfg.MDNS.Instance == "" {
		cfg.MDNS.Instance = "buzzerd"
	}
	if cfg.MDNS.Service == "" {
		cfg.MDNS.Service = "_buzzer._tcp"
	}
	if cfg.MDNS.Domain == "" {
		cfg.MDNS.Domain = "local."
	}
	if !strings.HasPrefix(cfg.MDNS.Service, "_") || !strings.Contains(cfg.MDNS.Service, "._") {
		return fmt.Errorf("mdns.service must look like '_name._tcp'")
	}
	return nil
}

// RequestDefaults converts the buzzer section into request defaults.
func (c BuzzerConfig) RequestDefaults() buzzer.Defaults {
	m, _ := buzzer.ParseMethod(c.Defaults.Method)
	return buzzer.Defaults{
		Duration:    c.Defaults.Duration,
		FrequencyHz: c.Defaults.FrequencyHz,
		Method:      m,
		MaxDuration: c.MaxDuration,
	}
}

// HardwareEqual reports whether a and b acquire the same pins the same
// way. Differences need a restart.
func (c BuzzerConfig) HardwareEqual(o BuzzerConfig) bool {
	return c.Backend == o.Backend &&
		c.Chip == o.Chip &&
		c.Pin == o.Pin &&
		c.ActiveLow == o.ActiveLow &&
		c.PWM == o.PWM
}
