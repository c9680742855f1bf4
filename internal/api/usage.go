package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/btouchard/holdfast/internal/clock"
	"github.com/btouchard/holdfast/internal/fault"
	"github.com/btouchard/holdfast/internal/timelimit"
)

type trackRequest struct {
	Platform   string `json:"platform"`
	DurationMs int64  `json:"durationMs"`
}

type resetRequest struct {
	Platform string `json:"platform"` // empty resets every platform
}

type usageResponse struct {
	Date     string             `json:"date"`
	Usage    []timelimit.Usage  `json:"usage"`
	Statuses []timelimit.Status `json:"statuses"`
}

func (s *Server) handleUsageToday(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := s.app.TimeLimits.Today(ctx)

	resp := usageResponse{Date: st.LastResetDate, Usage: st.Usage, Statuses: []timelimit.Status{}}
	if resp.Usage == nil {
		resp.Usage = []timelimit.Usage{}
	}
	for _, u := range st.Usage {
		resp.Statuses = append(resp.Statuses, s.app.TimeLimits.CheckLimit(ctx, u.Platform))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUsageTrack(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.app.TimeLimits.TrackActivity(r.Context(), req.Platform, req.DurationMs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleUsageCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.TimeLimits.CheckLimit(r.Context(), chi.URLParam(r, "platform")))
}

// handleUsageReset clears accumulated usage. Refused during lockdown.
func (s *Server) handleUsageReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.app.Lockdown.GuardSettingsChange(ctx); err != nil {
		writeError(w, r, err)
		return
	}

	var req resetRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.app.TimeLimits.ResetUsage(ctx, req.Platform); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w)
}

func (s *Server) handleUsageHistory(w http.ResponseWriter, r *http.Request) {
	records := s.app.TimeLimits.History(r.Context())
	if records == nil {
		records = []timelimit.DayRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

// handleBlockRecorded is called by the blocking layer each time it blocks
// an access.
func (s *Server) handleBlockRecorded(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Stats.RecordBlock(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w)
}

type statsDayResponse struct {
	Date         string `json:"date"`
	FocusMinutes int    `json:"focusMinutes"`
	BlockCount   int    `json:"blockCount"`
	UsageMs      int64  `json:"usageMs"`
}

func (s *Server) handleStatsDay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	date := chi.URLParam(r, "date")
	if date == "today" {
		date = clock.DateOf(s.app.Now())
	}
	if _, err := clock.ParseDate(date, s.app.Now().Location()); err != nil {
		writeError(w, r, fault.Validation("date must be YYYY-MM-DD"))
		return
	}

	day := s.app.Stats.Day(ctx, date)
	writeJSON(w, http.StatusOK, statsDayResponse{
		Date:         date,
		FocusMinutes: day.FocusMinutes,
		BlockCount:   day.BlockCount,
		UsageMs:      s.app.TimeLimits.UsageOn(ctx, date),
	})
}

func (s *Server) handleStreakState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Streak.Data(r.Context()))
}

func (s *Server) handleStreakCheck(w http.ResponseWriter, r *http.Request) {
	d, err := s.app.Streak.CheckDay(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
