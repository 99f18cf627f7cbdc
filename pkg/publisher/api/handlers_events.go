package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/garunski/marketplace-publisher/pkg/publisher/errors"
)

var errJournalUnavailable = fmt.Errorf("%w: journal not available", apperrors.ErrEventStore)

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		WriteError(w, h.logger, errJournalUnavailable)
		return
	}

	filters, err := ParseQueryParams(r)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}

	eventList, err := h.journal.ListEvents(filters)
	if err != nil {
		h.logger.Error(err, "failed to list events")
		WriteError(w, h.logger, err)
		return
	}

	WriteJSONResponse(w, h.logger, http.StatusOK, eventList)
}

func (h *Handler) GetPackEvents(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := ValidatePackName(name); err != nil {
		WriteError(w, h.logger, err)
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"), defaultEventLimit)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}

	if h.journal == nil {
		WriteError(w, h.logger, errJournalUnavailable)
		return
	}

	eventList, err := h.journal.GetEventsByPack(name, limit)
	if err != nil {
		h.logger.Error(err, "failed to get events by pack", "pack", name)
		WriteError(w, h.logger, err)
		return
	}

	WriteJSONResponse(w, h.logger, http.StatusOK, eventList)
}

func (h *Handler) GetRecentErrors(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"), defaultErrorLimit)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}

	if h.journal == nil {
		WriteError(w, h.logger, errJournalUnavailable)
		return
	}

	eventList, err := h.journal.GetRecentErrors(limit)
	if err != nil {
		h.logger.Error(err, "failed to get recent errors")
		WriteError(w, h.logger, err)
		return
	}

	WriteJSONResponse(w, h.logger, http.StatusOK, eventList)
}
