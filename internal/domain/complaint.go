package domain

import (
	"strings"
	"time"
)

// ComplaintStatus enumerates lifecycle states for complaints.
type ComplaintStatus string

const (
	StatusSubmitted       ComplaintStatus = "submitted"
	StatusReceived        ComplaintStatus = "received"
	StatusUnderReview     ComplaintStatus = "under_review"
	StatusInvestigating   ComplaintStatus = "investigating"
	StatusPendingResponse ComplaintStatus = "pending_response"
	StatusResolved        ComplaintStatus = "resolved"
	StatusClosed          ComplaintStatus = "closed"
	StatusEscalated       ComplaintStatus = "escalated"
)

// Statuses lists every recognized status value.
var Statuses = []ComplaintStatus{
	StatusSubmitted,
	StatusReceived,
	StatusUnderReview,
	StatusInvestigating,
	StatusPendingResponse,
	StatusResolved,
	StatusClosed,
	StatusEscalated,
}

// ParseStatus maps a raw string onto a recognized status.
func ParseStatus(raw string) (ComplaintStatus, bool) {
	candidate := ComplaintStatus(strings.ToLower(strings.TrimSpace(raw)))
	for _, status := range Statuses {
		if status == candidate {
			return status, true
		}
	}
	return "", false
}

// ComplaintPriority enumerates triage tiers derived from analysis signals.
type ComplaintPriority string

const (
	PriorityLow      ComplaintPriority = "Low"
	PriorityMedium   ComplaintPriority = "Medium"
	PriorityHigh     ComplaintPriority = "High"
	PriorityCritical ComplaintPriority = "Critical"
)

// ContactInfo carries the submitter's contact channels.
type ContactInfo struct {
	Email string
	Phone string
}

// Location describes where the reported issue occurred.
type Location struct {
	Street  string
	City    string
	State   string
	Pincode string
}

// FullAddress joins the populated location parts for display.
func (l Location) FullAddress() string {
	parts := make([]string, 0, 4)
	for _, part := range []string{l.Street, l.City, l.State, l.Pincode} {
		if strings.TrimSpace(part) != "" {
			parts = append(parts, strings.TrimSpace(part))
		}
	}
	return strings.Join(parts, ", ")
}

// Complaint is the aggregate for citizen-submitted grievances.
type Complaint struct {
	ID             string
	TicketID       string
	CitizenName    string
	Contact        ContactInfo
	Category       string
	Description    string
	Location       Location
	Status         ComplaintStatus
	Priority       ComplaintPriority
	UrgencyScore   float64
	SentimentScore float64
	Updates        []UpdateEntry
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AgeInDays reports how long the complaint has been open, computed on read.
func (c *Complaint) AgeInDays(now time.Time) int {
	if c.CreatedAt.IsZero() || now.Before(c.CreatedAt) {
		return 0
	}
	return int(now.Sub(c.CreatedAt).Hours() / 24)
}

// LastUpdate returns the most recent audit entry, if any.
func (c *Complaint) LastUpdate() *UpdateEntry {
	if len(c.Updates) == 0 {
		return nil
	}
	return &c.Updates[len(c.Updates)-1]
}

// UpdateEntry is an immutable audit trail record. Entries are only ever
// appended; Status is nil for informational notes that do not transition.
type UpdateEntry struct {
	ID          string
	ComplaintID string
	Status      *ComplaintStatus
	Message     string
	UpdatedBy   string
	Internal    bool
	Timestamp   time.Time
}
