package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/garunski/marketplace-publisher/pkg/publisher/errors"
	"github.com/garunski/marketplace-publisher/pkg/publisher/events"
	"github.com/garunski/marketplace-publisher/pkg/publisher/store"
)

var errRunsUnavailable = fmt.Errorf("%w: run store not available", apperrors.ErrEventStore)

func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		WriteError(w, h.logger, errRunsUnavailable)
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"), defaultEventLimit)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}

	runs := h.runs.List()
	if len(runs) > limit {
		runs = runs[:limit]
	}
	if runs == nil {
		runs = []store.RunRecord{}
	}
	WriteJSONResponse(w, h.logger, http.StatusOK, runs)
}

func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		WriteError(w, h.logger, errRunsUnavailable)
		return
	}
	id := chi.URLParam(r, "id")
	if err := ValidateKey(id); err != nil {
		WriteError(w, h.logger, err)
		return
	}

	rec, ok := h.runs.Get(id)
	if !ok {
		WriteError(w, h.logger, fmt.Errorf("%w: run %s", apperrors.ErrNotFound, id))
		return
	}
	WriteJSONResponse(w, h.logger, http.StatusOK, rec)
}

func (h *Handler) GetRunEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := ValidateKey(id); err != nil {
		WriteError(w, h.logger, err)
		return
	}
	filters, err := ParseQueryParams(r)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	filters.RunID = id

	if h.journal == nil {
		WriteError(w, h.logger, errJournalUnavailable)
		return
	}

	eventList, err := h.journal.ListEvents(filters)
	if err != nil {
		h.logger.Error(err, "failed to list run events", "run", id)
		WriteError(w, h.logger, err)
		return
	}
	if eventList == nil {
		eventList = []events.Event{}
	}
	WriteJSONResponse(w, h.logger, http.StatusOK, eventList)
}
