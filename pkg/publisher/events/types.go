package events

import "time"

type EventType string

const (
	EventTypeError   EventType = "error"
	EventTypeSuccess EventType = "success"
	EventTypeInfo    EventType = "info"
	EventTypeWarning EventType = "warning"
	EventTypeSkip    EventType = "skip"
)

// Event is one entry of the run journal. Pack is empty for run level events.
type Event struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Type      EventType              `json:"type"`
	RunID     string                 `json:"runId"`
	Pack      string                 `json:"pack,omitempty"`
	Status    string                 `json:"status,omitempty"`
	Message   string                 `json:"message"`
	Error     string                 `json:"error,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

type EventFilters struct {
	RunID  string
	Pack   string
	Type   EventType
	Since  time.Time
	Until  time.Time
	Limit  int
	Offset int
}

const (
	DefaultLimit     = 100
	DefaultBatchSize = 1000
)
