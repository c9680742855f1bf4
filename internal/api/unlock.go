package api

import (
	"net/http"

	"github.com/btouchard/holdfast/internal/commitment"
)

type intentionRequest struct {
	Text string `json:"text"`
}

type unlockCheckResponse struct {
	commitment.Decision
	Flow *commitment.FlowView `json:"flow,omitempty"`
}

func (s *Server) handleUnlockCheck(w http.ResponseWriter, r *http.Request) {
	d, err := s.app.Commitment.CheckUnlockAllowed(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := unlockCheckResponse{Decision: d}
	if f, ok := s.app.Commitment.Flow(); ok {
		resp.Flow = &f
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUnlockStart(w http.ResponseWriter, r *http.Request) {
	s.writeFlow(w, r)(s.app.Commitment.StartUnlockFlow(r.Context()))
}

func (s *Server) handleUnlockIntention(w http.ResponseWriter, r *http.Request) {
	var req intentionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s.writeFlow(w, r)(s.app.Commitment.SubmitIntention(r.Context(), req.Text))
}

func (s *Server) handleUnlockChallenge(w http.ResponseWriter, r *http.Request) {
	s.writeFlow(w, r)(s.app.Commitment.RequestChallenge(r.Context()))
}

func (s *Server) handleUnlockAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.app.Commitment.SubmitChallengeAnswer(r.Context(), req.Answer)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleUnlockConfirm(w http.ResponseWriter, r *http.Request) {
	u, err := s.app.Commitment.ConfirmUnlock(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleUnlockCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Commitment.CancelUnlockFlow(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w)
}

func (s *Server) handleUnlockStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.app.Commitment.GetUnlockStats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleUnlockHistory(w http.ResponseWriter, r *http.Request) {
	attempts := s.app.Commitment.History(r.Context())
	if attempts == nil {
		attempts = []commitment.Attempt{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"attempts": attempts})
}

func (s *Server) writeFlow(w http.ResponseWriter, r *http.Request) func(commitment.FlowView, error) {
	return func(v commitment.FlowView, err error) {
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}
