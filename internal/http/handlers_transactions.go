package http

import (
	"errors"
	"net/http"

	"fintrack/internal/analytics"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
	sortRequested := q.Has("sort") || q.Has("order")
	key, err := analytics.ParseSortKey(q.Get("sort"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	order, err := analytics.ParseSortOrder(q.Get("order"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	txs, err := s.svc.List(r.Context(), userID)
	if err != nil {
		s.logError(r, "List transactions failed", err, applog.OpList)
		writeError(w, r, http.StatusInternalServerError, "Failed to fetch transactions")
		return
	}
	// Without sort parameters the store order (by id) is kept.
	if sortRequested {
		txs = analytics.Sort(txs, key, order)
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	writeJSON(w, r, http.StatusOK, txs)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var in core.NewTransaction
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	tx, err := s.svc.Create(r.Context(), in)
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, r, http.StatusUnprocessableEntity, errorResponse{Message: ve.Error(), Field: ve.Field})
		return
	case err != nil:
		s.logError(r, "Create transaction failed", err, applog.OpCreate)
		writeError(w, r, http.StatusInternalServerError, "Failed to create transaction")
		return
	}

	s.appMetrics.transactionsCreated.Add(1)
	applog.FromContext(r.Context()).WithComponent(applog.ComponentTransactions).InfoContext(r.Context(),
		"Transaction created", applog.NewFields().WithTransaction(tx).ToSlice()...)
	writeJSON(w, r, http.StatusCreated, tx)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	err = s.svc.Delete(r.Context(), id)
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "Transaction not found")
		return
	case err != nil:
		s.logError(r, "Delete transaction failed", err, applog.OpDelete)
		writeError(w, r, http.StatusInternalServerError, "Failed to delete transaction")
		return
	}

	s.appMetrics.transactionsDeleted.Add(1)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) logError(r *http.Request, msg string, err error, op string) {
	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogError(r.Context(), msg, err, applog.ComponentTransactions, op, nil)
}
