package api

import (
	"net/http"
	"time"

	"github.com/btouchard/holdfast/internal/pomodoro"
)

type minutesRequest struct {
	Minutes int `json:"minutes"`
}

type focusResponse struct {
	Active           bool      `json:"active"`
	StartedAt        time.Time `json:"startedAt,omitzero"`
	EndTime          time.Time `json:"endTime,omitzero"`
	DurationMinutes  int       `json:"durationMinutes"`
	RemainingSeconds int       `json:"remainingSeconds"`
}

func (s *Server) focusView(r *http.Request) focusResponse {
	st := s.app.Focus.State(r.Context())
	return focusResponse{
		Active:           st.Active,
		StartedAt:        st.StartedAt,
		EndTime:          st.EndTime,
		DurationMinutes:  st.DurationMinutes,
		RemainingSeconds: int(st.Remaining(s.app.Now()).Seconds()),
	}
}

func (s *Server) handleFocusState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.focusView(r))
}

func (s *Server) handleFocusStart(w http.ResponseWriter, r *http.Request) {
	var req minutesRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.app.Focus.Start(r.Context(), req.Minutes); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.focusView(r))
}

func (s *Server) handleFocusCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Focus.Cancel(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.focusView(r))
}

func (s *Server) handleFocusExtend(w http.ResponseWriter, r *http.Request) {
	var req minutesRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.app.Focus.Extend(r.Context(), req.Minutes); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.focusView(r))
}

type pomodoroStartRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handlePomodoroState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Pomodoro.State(r.Context()))
}

func (s *Server) handlePomodoroStart(w http.ResponseWriter, r *http.Request) {
	var req pomodoroStartRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	mode, err := pomodoro.ParseMode(req.Mode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writePomodoro(w, r)(s.app.Pomodoro.Start(r.Context(), mode))
}

func (s *Server) handlePomodoroPause(w http.ResponseWriter, r *http.Request) {
	s.writePomodoro(w, r)(s.app.Pomodoro.Pause(r.Context()))
}

func (s *Server) handlePomodoroResume(w http.ResponseWriter, r *http.Request) {
	s.writePomodoro(w, r)(s.app.Pomodoro.Resume(r.Context()))
}

func (s *Server) handlePomodoroStop(w http.ResponseWriter, r *http.Request) {
	s.writePomodoro(w, r)(s.app.Pomodoro.Stop(r.Context()))
}

func (s *Server) handlePomodoroSkip(w http.ResponseWriter, r *http.Request) {
	s.writePomodoro(w, r)(s.app.Pomodoro.Skip(r.Context()))
}

func (s *Server) writePomodoro(w http.ResponseWriter, r *http.Request) func(pomodoro.State, error) {
	return func(st pomodoro.State, err error) {
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}
