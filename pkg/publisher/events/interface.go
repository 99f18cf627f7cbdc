package events

import "time"

// EventStorage defines the run journal operations.
type EventStorage interface {
	// StoreEvent stores a single event
	StoreEvent(event Event) error

	// StoreEventsBatch stores multiple events in a batch operation
	StoreEventsBatch(events []Event) error

	// ListEvents lists events matching the provided filters, newest first
	ListEvents(filters EventFilters) ([]Event, error)

	// GetEventsByPack retrieves the events of one pack across runs
	GetEventsByPack(pack string, limit int) ([]Event, error)

	// GetRecentErrors retrieves recent error events
	GetRecentErrors(limit int) ([]Event, error)

	// CleanupOldEvents removes events older than the specified time
	CleanupOldEvents(before time.Time) error
}

// Ensure *Storage implements EventStorage interface
var _ EventStorage = (*Storage)(nil)
