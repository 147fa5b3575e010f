package events

import (
	"time"

	"github.com/genmitra/public-complaint-ai-system/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventComplaintCreated         EventType = "complaint_created"
	EventComplaintStatusChanged   EventType = "complaint_status_changed"
	EventComplaintPriorityChanged EventType = "complaint_priority_changed"
	EventComplaintUpdateAdded     EventType = "complaint_update_added"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID          string      `json:"id"`
	Type        EventType   `json:"type"`
	ComplaintID string      `json:"complaint_id"`
	TicketID    string      `json:"ticket_id"`
	Actor       string      `json:"actor"`
	Timestamp   time.Time   `json:"timestamp"`
	Payload     interface{} `json:"payload"`
}

// ComplaintCreatedPayload payload.
type ComplaintCreatedPayload struct {
	Category string                   `json:"category"`
	Priority domain.ComplaintPriority `json:"priority"`
	Urgency  float64                  `json:"urgency_score"`
}

// ComplaintStatusChangedPayload payload.
type ComplaintStatusChangedPayload struct {
	OldStatus domain.ComplaintStatus `json:"old_status"`
	NewStatus domain.ComplaintStatus `json:"new_status"`
	Message   string                 `json:"message,omitempty"`
}

// ComplaintPriorityChangedPayload payload.
type ComplaintPriorityChangedPayload struct {
	OldPriority domain.ComplaintPriority `json:"old_priority"`
	NewPriority domain.ComplaintPriority `json:"new_priority"`
}

// ComplaintUpdateAddedPayload payload.
type ComplaintUpdateAddedPayload struct {
	EntryID        string `json:"entry_id"`
	Internal       bool   `json:"internal"`
	MessagePreview string `json:"message_preview"`
}
