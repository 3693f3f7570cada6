package buzzer

import (
	"strings"
	"time"
)

// Method selects how an emission drives the pin.
type Method string

const (
	// MethodSimple holds the pin active for the whole duration.
	MethodSimple Method = "simple"
	// MethodTone toggles the pin in software at the requested frequency.
	MethodTone Method = "tone"
	// MethodPWM uses a hardware PWM channel when one is configured and
	// falls back to MethodTone otherwise.
	MethodPWM Method = "pwm"
)

// ParseMethod maps a request value to a Method. Unknown values map to
// MethodSimple; ok is false for them.
func ParseMethod(s string) (m Method, ok bool) {
	switch Method(strings.ToLower(strings.TrimSpace(s))) {
	case MethodSimple:
		return MethodSimple, true
	case MethodTone:
		return MethodTone, true
	case MethodPWM:
		return MethodPWM, true
	}
	return MethodSimple, false
}

// Tone is one emission: a duration, an optional frequency (0 = none) and a
// method.
type Tone struct {
	Duration    time.Duration
	FrequencyHz int
	Method      Method
}

// Oscillates reports whether the tone needs a toggling/PWM output rather
// than a plain on/off beep.
func (t Tone) Oscillates() bool {
	return t.FrequencyHz > 0 && (t.Method == MethodTone || t.Method == MethodPWM)
}

// MinHalfPeriod is the shortest toggle interval the software tone loop uses.
const MinHalfPeriod = time.Millisecond

// HalfPeriod returns 1/(2f), clamped to MinHalfPeriod. For any f above
// 500 Hz the clamp wins, so the audible pitch tops out at 500 Hz.
func HalfPeriod(frequencyHz int) time.Duration {
	if frequencyHz <= 0 {
		return MinHalfPeriod
	}
	half := time.Duration(float64(time.Second) / (2 * float64(frequencyHz)))
	if half < MinHalfPeriod {
		return MinHalfPeriod
	}
	return half
}

// Outcome reports whether an emission actually drove the pin.
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomePlayed
)

func (o Outcome) String() string {
	if o == OutcomePlayed {
		return "played"
	}
	return "skipped"
}
