package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"buzzerd/internal/buzzer"
)

// Buzzer is the part of *buzzer.Controller the handlers use.
type Buzzer interface {
	Emit(ctx context.Context, t buzzer.Tone) (buzzer.Outcome, error)
	StartPattern(p buzzer.PatternID, method buzzer.Method) (string, error)
	Reinit(ctx context.Context) error
	Snapshot() buzzer.Snapshot
}

// BeepResponse is the body of every /beep reply.
type BeepResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	Duration  int64  `json:"duration,omitempty"`  // ms
	Frequency int    `json:"frequency,omitempty"` // Hz
	Method    string `json:"method,omitempty"`
	Pattern   string `json:"pattern,omitempty"`
	JobID     string `json:"job_id,omitempty"`
	Busy      bool   `json:"busy,omitempty"`
}

const msgUnavailable = "Buzzer not available"

// beepHandler plays a single tone synchronously, or starts a pattern and
// replies before it finishes.
func beepHandler(ctl Buzzer, status *Status, settings *Settings, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodPost {
			w.Header().Set("Allow", "GET, POST")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("beep: panic", "panic", rec)
				writeJSON(w, http.StatusInternalServerError, BeepResponse{Error: fmt.Sprint(rec)})
			}
		}()

		status.MarkRequest()
		if !settings.Allow() {
			status.MarkRateLimited()
			writeJSON(w, http.StatusTooManyRequests, BeepResponse{Error: "rate limited"})
			return
		}
		if err := r.ParseForm(); err != nil {
			writeJSON(w, http.StatusBadRequest, BeepResponse{Error: err.Error()})
			return
		}

		req := buzzer.ParseRequest(r.Form, settings.Defaults())
		if req.Pattern != buzzer.PatternNone {
			name := req.Pattern.Name()
			id, err := ctl.StartPattern(req.Pattern, req.Tone.Method)
			if err != nil {
				writeBeepError(w, log, err)
				return
			}
			log.Info("beep: pattern started", "pattern", name, "method", req.Tone.Method, "job_id", id)
			writeJSON(w, http.StatusOK, BeepResponse{
				Success: true,
				Message: name + " pattern started",
				Pattern: name,
				Method:  string(req.Tone.Method),
				JobID:   id,
			})
			return
		}

		out, err := ctl.Emit(r.Context(), req.Tone)
		if err != nil {
			writeBeepError(w, log, err)
			return
		}
		resp := BeepResponse{
			Success:   true,
			Message:   "Beep!",
			Duration:  req.Tone.Duration.Milliseconds(),
			Frequency: req.Tone.FrequencyHz,
			Method:    string(req.Tone.Method),
		}
		if out == buzzer.OutcomeSkipped {
			resp.Busy = true
			resp.Message = "Buzzer busy"
		}
		log.Debug("beep", "duration_ms", resp.Duration, "frequency_hz", resp.Frequency, "method", resp.Method, "outcome", out)
		writeJSON(w, http.StatusOK, resp)
	})
}

// writeBeepError maps controller errors onto the response shape: a missing
// buzzer is an ordinary outcome, anything else is a server error.
func writeBeepError(w http.ResponseWriter, log *slog.Logger, err error) {
	if errors.Is(err, buzzer.ErrUnavailable) || errors.Is(err, buzzer.ErrClosed) {
		log.Debug("beep: buzzer unavailable", "err", err)
		writeJSON(w, http.StatusOK, BeepResponse{Message: msgUnavailable})
		return
	}
	log.Error("beep: failed", "err", err)
	writeJSON(w, http.StatusInternalServerError, BeepResponse{Error: err.Error()})
}
