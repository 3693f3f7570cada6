package web

import (
	"sync/atomic"
	"time"

	"buzzerd/internal/buzzer"
)

type Status struct {
	startUnixNano    int64
	requestsTotal    uint64
	rateLimitedTotal uint64
	listen           atomic.Value // string
}

func NewStatus() *Status {
	s := &Status{}
	atomic.StoreInt64(&s.startUnixNano, time.Now().UTC().UnixNano())
	s.listen.Store("")
	return s
}

func (s *Status) SetListen(addr string) {
	s.listen.Store(addr)
}

func (s *Status) MarkRequest() {
	atomic.AddUint64(&s.requestsTotal, 1)
}

func (s *Status) MarkRateLimited() {
	atomic.AddUint64(&s.rateLimitedTotal, 1)
}

// DefaultsView is the JSON form of buzzer.Defaults.
type DefaultsView struct {
	DurationMs    int64  `json:"duration_ms"`
	FrequencyHz   int    `json:"frequency_hz"`
	Method        string `json:"method"`
	MaxDurationMs int64  `json:"max_duration_ms"`
}

type StatusSnapshot struct {
	Service          string          `json:"service"`
	NowUTC           string          `json:"now_utc"`
	UptimeSec        int64           `json:"uptime_sec"`
	Listen           string          `json:"listen,omitempty"`
	LocalAddrs       []string        `json:"local_addrs"`
	RequestsTotal    uint64          `json:"requests_total"`
	RateLimitedTotal uint64          `json:"rate_limited_total"`
	Defaults         DefaultsView    `json:"defaults"`
	Buzzer           buzzer.Snapshot `json:"buzzer"`
}

func (s *Status) Snapshot(nowUTC time.Time, b buzzer.Snapshot, d buzzer.Defaults) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	start := time.Unix(0, atomic.LoadInt64(&s.startUnixNano)).UTC()

	addrs := localInterfaceAddrs()
	if addrs == nil {
		addrs = []string{}
	}
	return StatusSnapshot{
		Service:          "buzzerd",
		NowUTC:           nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec:        int64(nowUTC.Sub(start).Seconds()),
		Listen:           s.listen.Load().(string),
		LocalAddrs:       addrs,
		RequestsTotal:    atomic.LoadUint64(&s.requestsTotal),
		RateLimitedTotal: atomic.LoadUint64(&s.rateLimitedTotal),
		Defaults: DefaultsView{
			DurationMs:    d.Duration.Milliseconds(),
			FrequencyHz:   d.FrequencyHz,
			Method:        string(d.Method),
			MaxDurationMs: d.MaxDuration.Milliseconds(),
		},
		Buzzer: b,
	}
}
