package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-logr/logr"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func WriteJSONResponse(w http.ResponseWriter, logger logr.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error(err, "failed to encode JSON response")
	}
}

func WriteRawJSON(w http.ResponseWriter, logger logr.Logger, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logger.Error(err, "failed to write JSON response")
	}
}

func WriteError(w http.ResponseWriter, logger logr.Logger, err error) {
	if err == nil {
		WriteJSONResponse(w, logger, http.StatusInternalServerError, ErrorResponse{
			Error:   "unknown_error",
			Message: "An unknown error occurred",
		})
		return
	}
	WriteJSONResponse(w, logger, httpStatus(err), ErrorResponse{
		Error:   extractErrorCode(err),
		Message: err.Error(),
	})
}
