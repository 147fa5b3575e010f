package dto

import (
	"strings"
	"time"

	"github.com/genmitra/public-complaint-ai-system/internal/domain"
)

// FieldError describes one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// CreateComplaintRequest payload.
type CreateComplaintRequest struct {
	CitizenName string          `json:"citizen_name"`
	Email       string          `json:"email"`
	Phone       string          `json:"phone"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Location    LocationRequest `json:"location"`
}

// LocationRequest describes the incident location.
type LocationRequest struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
}

// Validate checks the payload at the boundary and returns every field
// error at once rather than failing on the first.
func (r CreateComplaintRequest) Validate() []FieldError {
	var errs []FieldError
	if strings.TrimSpace(r.CitizenName) == "" {
		errs = append(errs, FieldError{Field: "citizen_name", Message: "required"})
	}
	if strings.TrimSpace(r.Description) == "" {
		errs = append(errs, FieldError{Field: "description", Message: "required"})
	} else if len(strings.TrimSpace(r.Description)) < 10 {
		errs = append(errs, FieldError{Field: "description", Message: "must be at least 10 characters"})
	}
	if strings.TrimSpace(r.Category) == "" {
		errs = append(errs, FieldError{Field: "category", Message: "required"})
	}
	email := strings.TrimSpace(r.Email)
	phone := strings.TrimSpace(r.Phone)
	if email == "" && phone == "" {
		errs = append(errs, FieldError{Field: "email", Message: "email or phone required"})
	}
	if email != "" && (!strings.Contains(email, "@") || strings.Contains(email, " ")) {
		errs = append(errs, FieldError{Field: "email", Message: "malformed email address"})
	}
	return errs
}

// CreateUpdateRequest payload for appending an audit entry.
type CreateUpdateRequest struct {
	Status    string `json:"status,omitempty"`
	Message   string `json:"message"`
	UpdatedBy string `json:"updated_by"`
	Internal  bool   `json:"internal"`
	EntryID   string `json:"entry_id,omitempty"`
}

// Validate checks the update payload.
func (r CreateUpdateRequest) Validate() []FieldError {
	var errs []FieldError
	if strings.TrimSpace(r.Message) == "" {
		errs = append(errs, FieldError{Field: "message", Message: "required"})
	}
	if strings.TrimSpace(r.UpdatedBy) == "" {
		errs = append(errs, FieldError{Field: "updated_by", Message: "required"})
	}
	return errs
}

// RecomputePriorityRequest optionally carries fresh analysis signals.
type RecomputePriorityRequest struct {
	UrgencyScore   *float64 `json:"urgency_score,omitempty"`
	SentimentScore *float64 `json:"sentiment_score,omitempty"`
}

// ComplaintSummary response.
type ComplaintSummary struct {
	ID             string                   `json:"id"`
	TicketID       string                   `json:"ticket_id"`
	Category       string                   `json:"category"`
	Status         domain.ComplaintStatus   `json:"status"`
	Priority       domain.ComplaintPriority `json:"priority"`
	UrgencyScore   float64                  `json:"urgency_score"`
	SentimentScore float64                  `json:"sentiment_score"`
	AgeInDays      int                      `json:"age_in_days"`
	CreatedAt      time.Time                `json:"created_at"`
	UpdatedAt      time.Time                `json:"updated_at"`
}

// ComplaintDetailResponse provides full complaint info.
type ComplaintDetailResponse struct {
	ID             string                   `json:"id"`
	TicketID       string                   `json:"ticket_id"`
	CitizenName    string                   `json:"citizen_name"`
	Email          string                   `json:"email,omitempty"`
	Phone          string                   `json:"phone,omitempty"`
	Category       string                   `json:"category"`
	Description    string                   `json:"description"`
	FullAddress    string                   `json:"full_address,omitempty"`
	Status         domain.ComplaintStatus   `json:"status"`
	Priority       domain.ComplaintPriority `json:"priority"`
	UrgencyScore   float64                  `json:"urgency_score"`
	SentimentScore float64                  `json:"sentiment_score"`
	AgeInDays      int                      `json:"age_in_days"`
	CreatedAt      time.Time                `json:"created_at"`
	UpdatedAt      time.Time                `json:"updated_at"`
	Updates        []UpdateEntryResponse    `json:"updates"`
}

// UpdateEntryResponse represents one audit trail entry.
type UpdateEntryResponse struct {
	ID        string                  `json:"id"`
	Status    *domain.ComplaintStatus `json:"status,omitempty"`
	Message   string                  `json:"message"`
	UpdatedBy string                  `json:"updated_by"`
	Internal  bool                    `json:"internal"`
	Timestamp time.Time               `json:"timestamp"`
}
