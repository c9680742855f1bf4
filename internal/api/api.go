// Package api exposes the engines over a local JSON HTTP API.
//
// Every route answers JSON. Engine errors are mapped onto status codes:
// policy denials are 403 and carry the machine-readable reason and the wait
// estimate, invalid state is 409, validation failures are 422 and store
// failures are 500.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/btouchard/holdfast/internal/app"
	"github.com/btouchard/holdfast/internal/bypass"
	"github.com/btouchard/holdfast/internal/fault"
	"github.com/btouchard/holdfast/internal/lockdown"
	"github.com/btouchard/holdfast/internal/pomodoro"
)

const maxBodySize = 64 << 10

// Server serves the engines of one App.
type Server struct {
	app *app.App
}

// New returns a Server for a.
func New(a *app.App) *Server {
	return &Server{app: a}
}

// Routes returns the API router. Mount it under /api.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/status", s.handleStatus)

	r.Route("/focus", func(r chi.Router) {
		r.Get("/", s.handleFocusState)
		r.Post("/start", s.handleFocusStart)
		r.Post("/cancel", s.handleFocusCancel)
		r.Post("/extend", s.handleFocusExtend)
	})

	r.Route("/pomodoro", func(r chi.Router) {
		r.Get("/", s.handlePomodoroState)
		r.Post("/start", s.handlePomodoroStart)
		r.Post("/pause", s.handlePomodoroPause)
		r.Post("/resume", s.handlePomodoroResume)
		r.Post("/stop", s.handlePomodoroStop)
		r.Post("/skip", s.handlePomodoroSkip)
	})

	r.Route("/usage", func(r chi.Router) {
		r.Get("/", s.handleUsageToday)
		r.Post("/track", s.handleUsageTrack)
		r.Post("/reset", s.handleUsageReset)
		r.Get("/history", s.handleUsageHistory)
		r.Get("/{platform}", s.handleUsageCheck)
	})

	r.Post("/blocks", s.handleBlockRecorded)
	r.Get("/stats/{date}", s.handleStatsDay)

	r.Route("/streak", func(r chi.Router) {
		r.Get("/", s.handleStreakState)
		r.Post("/check", s.handleStreakCheck)
	})

	r.Route("/bypass", func(r chi.Router) {
		r.Get("/", s.handleBypassStatus)
		r.Post("/challenge", s.handleBypassChallenge)
		r.Post("/answer", s.handleBypassAnswer)
	})

	r.Route("/lockdown", func(r chi.Router) {
		r.Get("/", s.handleLockdownStatus)
		r.Put("/pin", s.handleLockdownSetPIN)
		r.Post("/verify", s.handleLockdownVerify)
		r.Post("/activate", s.handleLockdownActivate)
		r.Post("/deactivate", s.handleLockdownDeactivate)
		r.Get("/emergency", s.handleEmergencyStatus)
		r.Post("/emergency", s.handleEmergencyRequest)
	})

	r.Route("/unlock", func(r chi.Router) {
		r.Get("/", s.handleUnlockCheck)
		r.Post("/start", s.handleUnlockStart)
		r.Post("/intention", s.handleUnlockIntention)
		r.Post("/challenge", s.handleUnlockChallenge)
		r.Post("/answer", s.handleUnlockAnswer)
		r.Post("/confirm", s.handleUnlockConfirm)
		r.Post("/cancel", s.handleUnlockCancel)
		r.Get("/stats", s.handleUnlockStats)
		r.Get("/history", s.handleUnlockHistory)
	})

	return r
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error       string       `json:"error"`
	Reason      fault.Reason `json:"reason,omitempty"`
	WaitSeconds int          `json:"waitSeconds,omitempty"`
	Wait        string       `json:"wait,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if d, ok := fault.AsDenied(err); ok {
		slog.Info("request denied", "path", r.URL.Path, "reason", d.Reason)
		writeJSON(w, http.StatusForbidden, errorBody{
			Error:       d.Message,
			Reason:      d.Reason,
			WaitSeconds: int(d.Wait.Seconds()),
			Wait:        d.WaitText(),
		})
		return
	}

	switch {
	case errors.Is(err, fault.ErrInvalidState):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, fault.ErrValidation):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
	default:
		slog.Error("request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

// decode reads an optional JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fault.Validation("malformed request body: %v", err)
	}
	return nil
}

type statusResponse struct {
	Focus    focusResponse  `json:"focus"`
	Pomodoro pomodoro.State `json:"pomodoro"`
	Lockdown lockdown.State `json:"lockdown"`
	Bypass   bypass.Status  `json:"bypass"`
	Blocking bool           `json:"blocking"`
}

// handleStatus is the summary polled by the blocking layer. A challenge
// bypass lifts focus blocking only; lockdown ends by PIN or emergency bypass.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fs := s.focusView(r)
	ps := s.app.Pomodoro.State(ctx)
	ls := s.app.Lockdown.State(ctx)
	bs := s.app.Bypass.Status(ctx)

	writeJSON(w, http.StatusOK, statusResponse{
		Focus:    fs,
		Pomodoro: ps,
		Lockdown: ls,
		Bypass:   bs,
		Blocking: ls.Active || (fs.Active && !bs.Active),
	})
}
