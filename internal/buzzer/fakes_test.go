package buzzer

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"buzzerd/internal/gpio"
)

// recorder collects line writes and clock waits in program order.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(ev string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type recordingLine struct {
	rec *recorder

	mu        sync.Mutex
	values    []int
	closed    int
	failAfter int // fail writes once this many succeeded; 0 = never
}

func (l *recordingLine) SetValue(v int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failAfter > 0 && len(l.values) >= l.failAfter {
		return errors.New("write failed")
	}
	l.values = append(l.values, v)
	l.rec.add(fmt.Sprintf("set %d", v))
	return nil
}

func (l *recordingLine) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed++
	return nil
}

func (l *recordingLine) Values() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int(nil), l.values...)
}

func (l *recordingLine) Closed() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// fakeClock advances instantly on every After.
type fakeClock struct {
	rec *recorder

	mu  sync.Mutex
	now time.Time
}

func newFakeClock(rec *recorder) *fakeClock {
	return &fakeClock{rec: rec, now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()
	c.rec.add("wait " + d.String())
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

// gateClock blocks every After until release is closed.
type gateClock struct {
	waiting chan time.Duration
	release chan time.Time
}

func newGateClock() *gateClock {
	return &gateClock{waiting: make(chan time.Duration, 64), release: make(chan time.Time)}
}

func (c *gateClock) Now() time.Time { return time.Now() }

func (c *gateClock) After(d time.Duration) <-chan time.Time {
	select {
	case c.waiting <- d:
	default:
	}
	return c.release
}

type fakePWM struct {
	mu    sync.Mutex
	freqs []int
	duty  []float64
	close atomic.Int32
}

func (p *fakePWM) SetFrequencyHz(hz int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.freqs = append(p.freqs, hz)
	return nil
}

func (p *fakePWM) SetDutyPercent(v float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.duty = append(p.duty, v)
	return nil
}

func (p *fakePWM) Close() error {
	p.close.Add(1)
	return nil
}

func openLine(l *recordingLine) func() (gpio.Line, error) {
	return func() (gpio.Line, error) { return l, nil }
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
