package buzzer

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Defaults fill in request parameters that are absent or unusable. They
// are per-deployment constants since buzzer wiring differs between boards.
type Defaults struct {
	Duration    time.Duration
	FrequencyHz int
	Method      Method
	// MaxDuration caps single emissions; 0 disables the cap.
	MaxDuration time.Duration
}

const (
	DefaultDuration    = 200 * time.Millisecond
	DefaultFrequencyHz = 1500
	DefaultMethod      = MethodTone
	DefaultMaxDuration = 5 * time.Second
)

func DefaultDefaults() Defaults {
	return Defaults{
		Duration:    DefaultDuration,
		FrequencyHz: DefaultFrequencyHz,
		Method:      DefaultMethod,
		MaxDuration: DefaultMaxDuration,
	}
}

// Request is a parsed /beep call.
type Request struct {
	Tone    Tone
	Pattern PatternID
}

// maxDurationMs keeps the ms->Duration conversion from overflowing.
const maxDurationMs = int64(24 * time.Hour / time.Millisecond)

// ParseRequest reads duration (ms), frequency (Hz), pattern and method.
// Each falls back to d independently: missing, non-numeric or non-positive
// numbers use the default, unknown methods become MethodSimple and unknown
// patterns become PatternNone.
func ParseRequest(v url.Values, d Defaults) Request {
	if d.Duration <= 0 {
		d.Duration = DefaultDuration
	}
	if d.FrequencyHz <= 0 {
		d.FrequencyHz = DefaultFrequencyHz
	}
	if d.Method == "" {
		d.Method = DefaultMethod
	}

	r := Request{
		Tone: Tone{Duration: d.Duration, FrequencyHz: d.FrequencyHz, Method: d.Method},
	}
	if ms, ok := positiveInt(v.Get("duration")); ok {
		if ms > maxDurationMs {
			ms = maxDurationMs
		}
		r.Tone.Duration = time.Duration(ms) * time.Millisecond
	}
	if d.MaxDuration > 0 && r.Tone.Duration > d.MaxDuration {
		r.Tone.Duration = d.MaxDuration
	}
	if hz, ok := positiveInt(v.Get("frequency")); ok {
		if hz > 1_000_000 {
			hz = 1_000_000
		}
		r.Tone.FrequencyHz = int(hz)
	}
	if s := strings.TrimSpace(v.Get("method")); s != "" {
		r.Tone.Method, _ = ParseMethod(s)
	}
	r.Pattern = ParsePattern(v.Get("pattern"))
	return r
}

func positiveInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
