package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType defines the type of domain event.
type EventType string

const (
	EventEntityCreated EventType = "ENTITY_CREATED"
	EventEntityUpdated EventType = "ENTITY_UPDATED"
	EventEntityDeleted EventType = "ENTITY_DELETED"

	EventUploadStored EventType = "UPLOAD_STORED"
	EventUploadSwept  EventType = "UPLOAD_SWEPT"

	EventAccessDenied EventType = "ACCESS_DENIED"
)

// DomainEvent is an immutable notification emitted after a committed change.
type DomainEvent struct {
	EventID       string    `json:"event_id"`
	EventType     EventType `json:"event_type"`
	AggregateType string    `json:"aggregate_type"`
	AggregateID   string    `json:"aggregate_id"`
	Payload       []byte    `json:"payload,omitempty"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// EntityWritePayload describes a committed create or update.
type EntityWritePayload struct {
	Draft         bool `json:"draft"`
	ChangedFields int  `json:"changed_fields"`
}

// ToJSON converts payload to JSON bytes.
func (p EntityWritePayload) ToJSON() ([]byte, error) {
	return json.Marshal(p)
}

// FromJSON decodes an event payload. Empty input leaves p unchanged.
func (p *EntityWritePayload) FromJSON(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, p)
}

// AccessDeniedPayload describes a rejected operation.
type AccessDeniedPayload struct {
	Operation Operation `json:"operation"`
	Code      string    `json:"code"`
}

// ToJSON converts payload to JSON bytes.
func (p AccessDeniedPayload) ToJSON() ([]byte, error) {
	return json.Marshal(p)
}

// FromJSON decodes an event payload. Empty input leaves p unchanged.
func (p *AccessDeniedPayload) FromJSON(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, p)
}

// NewEvent builds an event stamped with a time-ordered id.
func NewEvent(typ EventType, aggregateType, aggregateID, actor string, payload []byte) *DomainEvent {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return &DomainEvent{
		EventID:       id.String(),
		EventType:     typ,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Payload:       payload,
		CreatedBy:     actor,
		CreatedAt:     time.Now().UTC(),
	}
}
