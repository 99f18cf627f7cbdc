package events

import "time"

func newEvent(t EventType, runID, pack, operation, message string) Event {
	return Event{
		Type:      t,
		RunID:     runID,
		Pack:      pack,
		Message:   message,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

func Success(runID, pack, operation, message string) Event {
	return newEvent(EventTypeSuccess, runID, pack, operation, message)
}

func Error(runID, pack, operation, message string, err error) Event {
	event := newEvent(EventTypeError, runID, pack, operation, message)
	if err != nil {
		event.Error = err.Error()
	}
	return event
}

func Info(runID, pack, operation, message string) Event {
	return newEvent(EventTypeInfo, runID, pack, operation, message)
}

func Warning(runID, pack, operation, message string) Event {
	return newEvent(EventTypeWarning, runID, pack, operation, message)
}

func Skip(runID, pack, operation, message string) Event {
	return newEvent(EventTypeSkip, runID, pack, operation, message)
}

// WithStatus records the pack status the event transitions to.
func (e Event) WithStatus(status string) Event {
	e.Status = status
	return e
}

// WithDetail adds a detail value.
func (e Event) WithDetail(key string, value interface{}) Event {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	e.Details = details
	return e
}
