package api

import (
	"net/http"
	"time"
)

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    "healthy",
		Version:   h.version,
		Timestamp: time.Now(),
	}

	WriteJSONResponse(w, h.logger, http.StatusOK, status)
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:     "healthy",
		Version:    h.version,
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentStatus),
	}

	if h.runs != nil {
		_ = h.runs.List()
		status.Components["runs"] = ComponentStatus{Status: "healthy"}
	} else {
		status.Components["runs"] = ComponentStatus{
			Status:  "unhealthy",
			Message: "Run store not initialized",
		}
		status.Status = "unhealthy"
	}

	if h.journal != nil {
		if _, err := h.journal.GetRecentErrors(1); err != nil {
			status.Components["journal"] = ComponentStatus{
				Status:  "unavailable",
				Message: err.Error(),
			}
		} else {
			status.Components["journal"] = ComponentStatus{Status: "available"}
		}
	} else {
		status.Components["journal"] = ComponentStatus{
			Status:  "unavailable",
			Message: "Journal not initialized",
		}
	}

	if h.store != nil {
		status.Components["blobstore"] = ComponentStatus{Status: "available", Message: h.store.Bucket()}
	} else {
		status.Components["blobstore"] = ComponentStatus{
			Status:  "unavailable",
			Message: "Blob store not initialized",
		}
	}

	statusCode := http.StatusOK
	if status.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	WriteJSONResponse(w, h.logger, statusCode, status)
}
