package events

import "github.com/go-logr/logr"

// StoreEventSafe records event and only logs when the journal is
// unavailable; journaling never fails a run.
func StoreEventSafe(storage EventStorage, logger logr.Logger, event Event) {
	if storage == nil {
		return
	}
	if err := storage.StoreEvent(event); err != nil {
		logger.V(1).Info("failed to store event",
			"error", err,
			"type", event.Type,
			"runId", event.RunID,
			"pack", event.Pack,
			"message", event.Message)
	}
}
