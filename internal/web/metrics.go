package web

import (
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"buzzerd/internal/buzzer"
)

// MetricsHandler serves controller and HTTP counters in the Prometheus
// text exposition format.
func MetricsHandler(ctl Buzzer, status *Status) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		snap := status.Snapshot(time.Now().UTC(), ctl.Snapshot(), buzzer.Defaults{})

		w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
		w.Header().Set("Cache-Control", "no-store")
		for _, mf := range metricFamilies(snap) {
			if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
				return
			}
		}
	})
}

func metricFamilies(s StatusSnapshot) []*dto.MetricFamily {
	b := s.Buzzer
	ready := 0.0
	if b.State == buzzer.StateReady.String() {
		ready = 1
	}
	busy := 0.0
	if b.Busy {
		busy = 1
	}
	return []*dto.MetricFamily{
		counter("buzzerd_http_beep_requests_total", "Requests to /beep and /api/beep.", float64(s.RequestsTotal)),
		counter("buzzerd_http_rate_limited_total", "Beep requests rejected by the rate limit.", float64(s.RateLimitedTotal)),
		counter("buzzerd_emissions_total", "Tones played, counting each pattern step.", float64(b.EmissionsTotal)),
		counter("buzzerd_skipped_busy_total", "Emissions and patterns dropped because the buzzer was busy.", float64(b.SkippedBusyTotal)),
		counter("buzzerd_patterns_total", "Patterns started.", float64(b.PatternsTotal)),
		gauge("buzzerd_buzzer_ready", "1 when the GPIO line is acquired.", ready),
		gauge("buzzerd_buzzer_busy", "1 while an emission is playing.", busy),
		gauge("buzzerd_uptime_seconds", "Seconds since start.", float64(s.UptimeSec)),
	}
}

func counter(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   &name,
		Help:   &help,
		Type:   dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{{Counter: &dto.Counter{Value: &v}}},
	}
}

func gauge(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   &name,
		Help:   &help,
		Type:   dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{{Gauge: &dto.Gauge{Value: &v}}},
	}
}
