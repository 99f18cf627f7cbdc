package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/garunski/marketplace-publisher/pkg/publisher/errors"
)

// CleanupOldEvents removes every event recorded before the cutoff together
// with its index keys.
func (s *Storage) CleanupOldEvents(before time.Time) error {
	items, err := s.db.List(keyAll)
	if err != nil {
		return fmt.Errorf("%w: list events for cleanup: %w", apperrors.ErrEventStore, err)
	}

	var keys []string
	for key, data := range items {
		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			// unreadable entries only have the primary key we know of
			keys = append(keys, key)
			continue
		}
		if event.Timestamp.Before(before) {
			keys = append(keys, eventKeys(event)...)
		}
	}

	for i := 0; i < len(keys); i += DefaultBatchSize {
		end := i + DefaultBatchSize
		if end > len(keys) {
			end = len(keys)
		}
		if err := s.db.BatchDelete(keys[i:end]); err != nil {
			return fmt.Errorf("%w: delete batch: %w", apperrors.ErrEventStore, err)
		}
	}

	if len(keys) > 0 {
		s.logger.V(1).Info("cleaned up journal", "keys", len(keys), "before", before.Format(time.RFC3339))
	}
	return nil
}

// CleanupRun removes every event of one run.
func (s *Storage) CleanupRun(runID string) error {
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("%w: empty run id", apperrors.ErrInvalid)
	}
	items, err := s.db.List(keyByRun + runID + "/")
	if err != nil {
		return fmt.Errorf("%w: list run %s: %w", apperrors.ErrEventStore, runID, err)
	}
	var keys []string
	for _, data := range items {
		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			continue
		}
		keys = append(keys, eventKeys(event)...)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.db.BatchDelete(keys); err != nil {
		return fmt.Errorf("%w: delete run %s: %w", apperrors.ErrEventStore, runID, err)
	}
	return nil
}
