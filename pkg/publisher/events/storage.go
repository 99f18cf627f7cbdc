package events

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/garunski/marketplace-publisher/pkg/publisher/database"
	apperrors "github.com/garunski/marketplace-publisher/pkg/publisher/errors"
)

const (
	keyAll    = "journal/all/"
	keyByRun  = "journal/by-run/"
	keyByPack = "journal/by-pack/"
	keyByType = "journal/by-type/"
)

// Storage is the badger backed run journal. Every event is written under a
// primary key plus one index key per dimension it carries.
type Storage struct {
	db     *database.DB
	logger logr.Logger
}

func NewStorage(db *database.DB, logger logr.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

func stamp(event Event) string {
	return fmt.Sprintf("%020d/%s", event.Timestamp.UnixNano(), event.ID)
}

func eventKeys(event Event) []string {
	s := stamp(event)
	keys := []string{
		keyAll + s,
		keyByType + string(event.Type) + "/" + s,
	}
	if event.RunID != "" {
		keys = append(keys, keyByRun+event.RunID+"/"+s)
	}
	if event.Pack != "" {
		keys = append(keys, keyByPack+event.Pack+"/"+s)
	}
	return keys
}

func normalize(event Event) Event {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return event
}

func (s *Storage) StoreEvent(event Event) error {
	return s.StoreEventsBatch([]Event{event})
}

func (s *Storage) StoreEventsBatch(events []Event) error {
	if len(events) == 0 {
		return nil
	}

	items := make(map[string][]byte, len(events)*4)
	for _, event := range events {
		event = normalize(event)
		data, err := json.Marshal(event)
		if err != nil {
			s.logger.Error(err, "failed to marshal event", "eventID", event.ID)
			continue
		}
		for _, key := range eventKeys(event) {
			items[key] = data
		}
	}

	if err := s.db.BatchSet(items); err != nil {
		return fmt.Errorf("%w: store %d events: %w", apperrors.ErrEventStore, len(events), err)
	}
	return nil
}

func prefixFor(filters EventFilters) string {
	switch {
	case filters.RunID != "":
		return keyByRun + filters.RunID + "/"
	case filters.Pack != "":
		return keyByPack + filters.Pack + "/"
	case filters.Type != "":
		return keyByType + string(filters.Type) + "/"
	default:
		return keyAll
	}
}

func (f EventFilters) matches(event Event) bool {
	if f.RunID != "" && event.RunID != f.RunID {
		return false
	}
	if f.Pack != "" && event.Pack != f.Pack {
		return false
	}
	if f.Type != "" && event.Type != f.Type {
		return false
	}
	if !f.Since.IsZero() && event.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && event.Timestamp.After(f.Until) {
		return false
	}
	return true
}

func (s *Storage) ListEvents(filters EventFilters) ([]Event, error) {
	prefix := prefixFor(filters)
	items, err := s.db.List(prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", apperrors.ErrEventStore, prefix, err)
	}

	events := make([]Event, 0, len(items))
	for key, data := range items {
		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			s.logger.Error(err, "failed to unmarshal event", "key", key)
			continue
		}
		if filters.matches(event) {
			events = append(events, event)
		}
	}

	sort.Slice(events, func(i, j int) bool {
		if events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].ID > events[j].ID
		}
		return events[i].Timestamp.After(events[j].Timestamp)
	})

	offset := filters.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(events) {
		return []Event{}, nil
	}
	events = events[offset:]

	limit := filters.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (s *Storage) GetEventsByPack(pack string, limit int) ([]Event, error) {
	return s.ListEvents(EventFilters{Pack: pack, Limit: limit})
}

func (s *Storage) GetRecentErrors(limit int) ([]Event, error) {
	return s.ListEvents(EventFilters{Type: EventTypeError, Limit: limit})
}
