package http

import (
	"errors"
	"net/http"

	"fintrack/internal/analytics"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

type categoriesResponse struct {
	Type       core.TransactionType `json:"type"`
	Categories []string             `json:"categories"`
}

// handleCategories lists the suggested categories for the form.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	t, err := core.ParseTransactionType(r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "type must be income or expense")
		return
	}
	writeJSON(w, r, http.StatusOK, categoriesResponse{Type: t, Categories: core.SuggestedCategories(t)})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	sum, err := s.svc.Summary(r.Context(), userID)
	if err != nil {
		applog.NewStructuredLogger(applog.FromContext(r.Context())).
			LogError(r.Context(), "Summary failed", err, applog.ComponentAnalytics, applog.OpSummary, nil)
		writeError(w, r, http.StatusInternalServerError, "Failed to compute summary")
		return
	}
	writeJSON(w, r, http.StatusOK, sum)
}

func (s *Server) handleCategoryBreakdown(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	t, err := core.ParseTransactionType(r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "type must be income or expense")
		return
	}

	shares, err := s.svc.Breakdown(r.Context(), userID, t)
	switch {
	case errors.Is(err, core.ErrInvalidType):
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		applog.NewStructuredLogger(applog.FromContext(r.Context())).
			LogError(r.Context(), "Category breakdown failed", err, applog.ComponentAnalytics, applog.OpSummary, nil)
		writeError(w, r, http.StatusInternalServerError, "Failed to compute breakdown")
		return
	}
	if shares == nil {
		shares = []analytics.CategoryShare{}
	}
	writeJSON(w, r, http.StatusOK, shares)
}
