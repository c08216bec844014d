package events

import "time"

// Event types published on the analytics bus.
const (
	TypeAnswerCompleted   = "answer.completed"
	TypeAnswerFailed      = "answer.failed"
	TypeDocumentIngested  = "document.ingested"
	TypeDocumentDeleted   = "document.deleted"
	TypeVerificationSplit = "verification.disagreed"
)

// Event is what publishers hand to the bus. Subjects are derived from the
// type, not passed separately.
type Event interface {
	EventType() string
	Payload() map[string]interface{}
	Timestamp() time.Time
}

// BaseEvent is a plain implementation for callers that do not need a
// dedicated event struct.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func NewBaseEvent(eventType string, data map[string]interface{}) BaseEvent {
	return BaseEvent{
		Type:       eventType,
		Data:       data,
		OccurredAt: time.Now(),
	}
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}
