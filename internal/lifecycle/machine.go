// Package lifecycle governs complaint status transitions and the
// construction of audit trail entries.
//
// Updates are built in two phases: Stage validates the input and produces
// the entry plus the resulting status without touching the complaint, and
// Staged.Commit applies both to the in-memory record. Callers run the
// durable write between the two phases, so a failed or canceled write
// leaves the record exactly as it was.
package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/genmitra/public-complaint-ai-system/internal/domain"
	apperrors "github.com/genmitra/public-complaint-ai-system/pkg/util"
)

// UpdateInput describes one requested update operation.
type UpdateInput struct {
	// Status is the raw requested status; empty means an informational
	// note with no transition.
	Status    string
	Message   string
	UpdatedBy string
	Internal  bool
	// EntryID is an optional idempotency key; one is minted when absent.
	EntryID string
}

// Machine validates transitions and stages update entries.
type Machine struct {
	now func() time.Time
}

// Option customizes a Machine.
type Option func(*Machine)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// NewMachine constructs a Machine.
func NewMachine(opts ...Option) *Machine {
	m := &Machine{now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CanTransition reports whether next may follow current. The model is
// deliberately permissive between recognized states with one exception:
// closed is terminal.
func CanTransition(current, next domain.ComplaintStatus) bool {
	return current != domain.StatusClosed
}

// Stage validates the input against the complaint's current state and
// returns the staged entry. The complaint itself is not modified.
func (m *Machine) Stage(complaint *domain.Complaint, in UpdateInput) (*Staged, error) {
	if strings.TrimSpace(in.Message) == "" {
		return nil, apperrors.NewValidationError("update message required", nil)
	}
	if strings.TrimSpace(in.UpdatedBy) == "" {
		return nil, apperrors.NewValidationError("updated_by required", nil)
	}

	staged := &Staged{}

	if raw := strings.TrimSpace(in.Status); raw != "" {
		status, ok := domain.ParseStatus(raw)
		if !ok {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("unrecognized status %q", raw),
				map[string]any{"status": raw},
			)
		}
		if !CanTransition(complaint.Status, status) {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("complaint is %s and accepts no further transitions", complaint.Status),
				map[string]any{"current": complaint.Status, "requested": status},
			)
		}
		staged.nextStatus = status
		staged.transitions = true
	}

	entryID := strings.TrimSpace(in.EntryID)
	if entryID == "" {
		entryID = uuid.NewString()
	}

	staged.entry = domain.UpdateEntry{
		ID:          entryID,
		ComplaintID: complaint.ID,
		Message:     strings.TrimSpace(in.Message),
		UpdatedBy:   strings.TrimSpace(in.UpdatedBy),
		Internal:    in.Internal,
		Timestamp:   m.entryTimestamp(complaint),
	}
	if staged.transitions {
		status := staged.nextStatus
		staged.entry.Status = &status
	}
	return staged, nil
}

// entryTimestamp keeps timestamps monotonic non-decreasing within a
// complaint's update sequence even if the wall clock steps backwards.
func (m *Machine) entryTimestamp(complaint *domain.Complaint) time.Time {
	ts := m.now()
	if last := complaint.LastUpdate(); last != nil && ts.Before(last.Timestamp) {
		return last.Timestamp
	}
	return ts
}

// Staged is a validated update that has not yet been applied.
type Staged struct {
	entry       domain.UpdateEntry
	nextStatus  domain.ComplaintStatus
	transitions bool
}

// Entry returns the staged audit entry.
func (s *Staged) Entry() domain.UpdateEntry {
	return s.entry
}

// NextStatus returns the status the complaint will carry after Commit; the
// second return is false for informational notes.
func (s *Staged) NextStatus() (domain.ComplaintStatus, bool) {
	return s.nextStatus, s.transitions
}

// Commit appends the entry and applies the status overwrite. Call only
// after the durable write succeeded.
func (s *Staged) Commit(complaint *domain.Complaint) domain.UpdateEntry {
	complaint.Updates = append(complaint.Updates, s.entry)
	if s.transitions {
		complaint.Status = s.nextStatus
	}
	complaint.UpdatedAt = s.entry.Timestamp
	return s.entry
}
