package buzzer

import (
	"strings"
	"time"
)

// PatternID names a fixed emission sequence.
type PatternID int

const (
	PatternNone PatternID = iota
	PatternSOS
	PatternTest
)

// ParsePattern maps a request value to a PatternID; unknown values and
// "none" map to PatternNone.
func ParsePattern(s string) PatternID {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sos":
		return PatternSOS
	case "test":
		return PatternTest
	}
	return PatternNone
}

// Name is the label echoed back to clients.
func (p PatternID) Name() string {
	switch p {
	case PatternSOS:
		return "SOS"
	case PatternTest:
		return "TEST"
	}
	return ""
}

// Step is one emission followed by a pause. The last step of a pattern has
// no pause.
type Step struct {
	On          time.Duration
	FrequencyHz int
	Pause       time.Duration
}

const (
	sosShort    = 200 * time.Millisecond
	sosLong     = 600 * time.Millisecond
	sosGap      = 100 * time.Millisecond
	sosSection  = 200 * time.Millisecond
	sosToneHz   = 1500
	testToneLen = 300 * time.Millisecond
	testGap     = 100 * time.Millisecond
)

var testTonesHz = [3]int{500, 1000, 2000}

// Steps expands the pattern for the given method. Simple emissions carry
// no frequency.
func (p PatternID) Steps(method Method) []Step {
	freq := func(hz int) int {
		if method == MethodSimple {
			return 0
		}
		return hz
	}

	switch p {
	case PatternSOS:
		steps := make([]Step, 0, 9)
		for section, on := range []time.Duration{sosShort, sosLong, sosShort} {
			for i := 0; i < 3; i++ {
				pause := sosGap
				if i == 2 {
					pause = sosSection
					if section == 2 {
						pause = 0
					}
				}
				steps = append(steps, Step{On: on, FrequencyHz: freq(sosToneHz), Pause: pause})
			}
		}
		return steps
	case PatternTest:
		steps := make([]Step, 0, len(testTonesHz))
		for i, hz := range testTonesHz {
			pause := testGap
			if i == len(testTonesHz)-1 {
				pause = 0
			}
			steps = append(steps, Step{On: testToneLen, FrequencyHz: freq(hz), Pause: pause})
		}
		return steps
	}
	return nil
}
