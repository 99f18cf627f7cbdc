package api

import (
	"errors"
	"net/http"

	apperrors "github.com/garunski/marketplace-publisher/pkg/publisher/errors"
)

func httpStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	if errors.Is(err, apperrors.ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, apperrors.ErrInvalid) {
		return http.StatusBadRequest
	}
	if errors.Is(err, apperrors.ErrEventStore) {
		return http.StatusServiceUnavailable
	}
	if _, ok := apperrors.AsFatal(err); ok {
		return http.StatusBadGateway
	}

	return http.StatusInternalServerError
}

func extractErrorCode(err error) string {
	if err == nil {
		return "unknown_error"
	}

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperrors.ErrInvalid):
		return "validation_error"
	case errors.Is(err, apperrors.ErrEventStore):
		return "event_store_unavailable"
	case errors.Is(err, apperrors.ErrStorage):
		return "storage_error"
	case errors.Is(err, apperrors.ErrBlobStore):
		return "blob_store_error"
	case errors.Is(err, apperrors.ErrMetadata):
		return "metadata_error"
	}
	if _, ok := apperrors.AsFatal(err); ok {
		return "index_unavailable"
	}

	return "internal_error"
}
