package api

import (
	"net/http"

	"github.com/btouchard/holdfast/internal/lockdown"
)

type answerRequest struct {
	Answer string `json:"answer"`
}

type pinRequest struct {
	PIN string `json:"pin"`
}

type setPINRequest struct {
	PIN        string `json:"pin"`
	CurrentPIN string `json:"currentPin"`
}

func (s *Server) handleBypassStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Bypass.Status(r.Context()))
}

func (s *Server) handleBypassChallenge(w http.ResponseWriter, r *http.Request) {
	v, err := s.app.Bypass.RequestChallenge(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleBypassAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.app.Bypass.SubmitAnswer(r.Context(), req.Answer)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type lockdownResponse struct {
	lockdown.State
	HasPIN    bool               `json:"hasPin"`
	Emergency lockdown.Emergency `json:"emergency"`
}

func (s *Server) handleLockdownStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	em := s.app.Lockdown.CheckEmergencyBypass(ctx)
	writeJSON(w, http.StatusOK, lockdownResponse{
		State:     s.app.Lockdown.State(ctx),
		HasPIN:    s.app.Lockdown.HasPIN(ctx),
		Emergency: em,
	})
}

// handleLockdownSetPIN sets or changes the PIN. Refused during lockdown.
func (s *Server) handleLockdownSetPIN(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.app.Lockdown.GuardSettingsChange(ctx); err != nil {
		writeError(w, r, err)
		return
	}

	var req setPINRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.app.Lockdown.SetPIN(ctx, req.PIN, req.CurrentPIN); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w)
}

func (s *Server) handleLockdownVerify(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": s.app.Lockdown.VerifyPIN(r.Context(), req.PIN)})
}

func (s *Server) handleLockdownActivate(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.app.Lockdown.Activate(r.Context(), req.PIN)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleLockdownDeactivate(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.app.Lockdown.Deactivate(r.Context(), req.PIN); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w)
}

func (s *Server) handleEmergencyStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Lockdown.CheckEmergencyBypass(r.Context()))
}

func (s *Server) handleEmergencyRequest(w http.ResponseWriter, r *http.Request) {
	em, err := s.app.Lockdown.RequestEmergencyBypass(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, em)
}
