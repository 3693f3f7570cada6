package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"buzzerd/internal/logging"
)

const indexHTML = `<!doctype html>
<html>
<head><meta charset="utf-8"><title>buzzerd</title></head>
<body>
<h1>buzzerd</h1>
<ul>
<li><a href="/beep">/beep</a> (duration, frequency, method=simple|tone|pwm, pattern=sos|test)</li>
<li><a href="/beep?pattern=sos">/beep?pattern=sos</a></li>
<li><a href="/beep?pattern=test">/beep?pattern=test</a></li>
<li><a href="/api/status">/api/status</a></li>
<li><a href="/api/logs?format=text">/api/logs</a></li>
<li><a href="/api/about">/api/about</a></li>
<li><a href="/metrics">/metrics</a></li>
</ul>
</body>
</html>
`

// InitResponse is the reply of POST /api/buzzer/init.
type InitResponse struct {
	OK    bool   `json:"ok"`
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

func Handler(ctl Buzzer, status *Status, settings *Settings, logs *logging.Buffer, log *slog.Logger) http.Handler {
	if status == nil {
		status = NewStatus()
	}
	if log == nil {
		log = slog.Default()
	}
	mux := http.NewServeMux()

	beep := beepHandler(ctl, status, settings, log)
	mux.Handle("/beep", beep)
	mux.Handle("/api/beep", beep)

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, status.Snapshot(time.Now().UTC(), ctl.Snapshot(), settings.Defaults()))
	})

	mux.HandleFunc("/api/buzzer/init", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		resp := InitResponse{OK: true}
		if err := ctl.Reinit(ctx); err != nil {
			log.Warn("buzzer init failed", "err", err)
			resp.OK = false
			resp.Error = err.Error()
		}
		resp.State = ctl.Snapshot().State
		writeJSON(w, http.StatusOK, resp)
	})

	if logs != nil {
		mux.Handle("/api/logs", LogsHandler(logs))
	}
	mux.Handle("/api/about", AboutHandler())
	mux.Handle("/metrics", MetricsHandler(ctl, status))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(indexHTML))
	})

	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}

// Serve runs handler on listenAddr until ctx is done, then shuts down
// gracefully. WriteTimeout leaves room for the longest allowed emission;
// maxEmission <= 0 means emissions are uncapped and disables it.
func Serve(ctx context.Context, listenAddr string, handler http.Handler, maxEmission time.Duration) error {
	writeTimeout := time.Duration(0)
	if maxEmission > 0 {
		writeTimeout = 10*time.Second + maxEmission
	}
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second+max(maxEmission, 0))
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
