package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/genmitra/public-complaint-ai-system/internal/analysis"
	"github.com/genmitra/public-complaint-ai-system/internal/classifier"
	"github.com/genmitra/public-complaint-ai-system/internal/domain"
	"github.com/genmitra/public-complaint-ai-system/internal/events"
	"github.com/genmitra/public-complaint-ai-system/internal/lifecycle"
	"github.com/genmitra/public-complaint-ai-system/internal/repository"
	"github.com/genmitra/public-complaint-ai-system/internal/ticketid"
	apperrors "github.com/genmitra/public-complaint-ai-system/pkg/util"
)

// maxTicketIDAttempts bounds regeneration retries on ticket id collision.
const maxTicketIDAttempts = 3

// ComplaintService coordinates complaint workflows.
type ComplaintService struct {
	complaints repository.ComplaintRepository
	analyzer   analysis.Provider
	machine    *lifecycle.Machine
	ids        *ticketid.Generator
	dispatcher events.Dispatcher
	logger     *zap.Logger

	mu    sync.Mutex
	locks map[string]*recordLock
}

// ComplaintDependencies bundles collaborators for the complaint service.
type ComplaintDependencies struct {
	ComplaintRepo repository.ComplaintRepository
	Analyzer      analysis.Provider
	Machine       *lifecycle.Machine
	IDGenerator   *ticketid.Generator
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
}

// ComplaintCreateInput describes complaint submission payload.
type ComplaintCreateInput struct {
	CitizenName string
	Email       string
	Phone       string
	Category    string
	Description string
	Location    domain.Location
}

// ComplaintListFilter describes listing filters.
type ComplaintListFilter struct {
	Statuses   []domain.ComplaintStatus
	Priorities []domain.ComplaintPriority
	Category   *string
	Limit      int
	Offset     int
}

// NewComplaintService constructs the service.
func NewComplaintService(deps ComplaintDependencies) *ComplaintService {
	machine := deps.Machine
	if machine == nil {
		machine = lifecycle.NewMachine()
	}
	ids := deps.IDGenerator
	if ids == nil {
		ids = ticketid.NewGenerator()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ComplaintService{
		complaints: deps.ComplaintRepo,
		analyzer:   deps.Analyzer,
		machine:    machine,
		ids:        ids,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		locks:      make(map[string]*recordLock),
	}
}

// CreateComplaint registers a new complaint: scores it (degrading to
// defaults when the analyzer is unreachable), derives the initial priority,
// assigns the ticket reference and persists the record. Ticket id
// collisions are retried with a fresh reference.
func (s *ComplaintService) CreateComplaint(ctx context.Context, input ComplaintCreateInput) (*domain.Complaint, error) {
	urgency, sentiment := s.scoreText(ctx, input.Description)
	urgency, sentiment = classifier.ClampScores(urgency, sentiment)

	complaint := &domain.Complaint{
		CitizenName: strings.TrimSpace(input.CitizenName),
		Contact: domain.ContactInfo{
			Email: strings.TrimSpace(input.Email),
			Phone: strings.TrimSpace(input.Phone),
		},
		Category:       strings.TrimSpace(input.Category),
		Description:    strings.TrimSpace(input.Description),
		Location:       input.Location,
		Status:         domain.StatusSubmitted,
		Priority:       classifier.Classify(urgency, sentiment),
		UrgencyScore:   urgency,
		SentimentScore: sentiment,
	}

	var err error
	for attempt := 0; attempt < maxTicketIDAttempts; attempt++ {
		complaint.TicketID = ""
		s.ids.Assign(complaint)
		err = s.complaints.Create(ctx, complaint)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrDuplicateTicketID) {
			return nil, apperrors.NewPersistenceError(err)
		}
		s.logger.Warn("ticket id collision, regenerating",
			zap.String("ticket_id", complaint.TicketID),
			zap.Int("attempt", attempt+1))
	}
	if err != nil {
		return nil, apperrors.NewConflict("could not allocate a unique ticket id", nil)
	}

	s.publishEvent(ctx, events.Event{
		Type:        events.EventComplaintCreated,
		ComplaintID: complaint.ID,
		TicketID:    complaint.TicketID,
		Actor:       "citizen",
		Payload: events.ComplaintCreatedPayload{
			Category: complaint.Category,
			Priority: complaint.Priority,
			Urgency:  complaint.UrgencyScore,
		},
	})
	return complaint, nil
}

// RecordUpdate appends an audit entry to the complaint, optionally
// transitioning its status. Concurrent updates against the same complaint
// serialize on a per-record lock; the in-memory record is only mutated
// after the durable write succeeded.
func (s *ComplaintService) RecordUpdate(ctx context.Context, complaintID string, input lifecycle.UpdateInput) (*domain.Complaint, *domain.UpdateEntry, error) {
	unlock := s.lockRecord(complaintID)
	defer unlock()

	complaint, err := s.complaints.GetByID(ctx, complaintID)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}

	staged, err := s.machine.Stage(complaint, input)
	if err != nil {
		return nil, nil, err
	}

	nextStatus := complaint.Status
	if status, ok := staged.NextStatus(); ok {
		nextStatus = status
	}

	entry := staged.Entry()
	if err := s.complaints.AppendUpdate(ctx, entry, nextStatus, entry.Timestamp); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			// Idempotent retry of an already durable entry.
			return s.resolveDuplicate(ctx, complaintID, entry.ID)
		}
		return nil, nil, apperrors.NewPersistenceError(err)
	}

	oldStatus := complaint.Status
	committed := staged.Commit(complaint)

	if _, transitioned := staged.NextStatus(); transitioned && oldStatus != complaint.Status {
		s.publishEvent(ctx, events.Event{
			Type:        events.EventComplaintStatusChanged,
			ComplaintID: complaint.ID,
			TicketID:    complaint.TicketID,
			Actor:       committed.UpdatedBy,
			Payload: events.ComplaintStatusChangedPayload{
				OldStatus: oldStatus,
				NewStatus: complaint.Status,
				Message:   committed.Message,
			},
		})
	}
	s.publishEvent(ctx, events.Event{
		Type:        events.EventComplaintUpdateAdded,
		ComplaintID: complaint.ID,
		TicketID:    complaint.TicketID,
		Actor:       committed.UpdatedBy,
		Payload: events.ComplaintUpdateAddedPayload{
			EntryID:        committed.ID,
			Internal:       committed.Internal,
			MessagePreview: stringPreview(committed.Message, 120),
		},
	})
	return complaint, &committed, nil
}

// RecomputePriority re-derives the priority tier from the complaint's
// current scores, or from freshly supplied scores when the analysis
// collaborator produced new signals.
func (s *ComplaintService) RecomputePriority(ctx context.Context, complaintID string, scores *analysis.Scores) (*domain.Complaint, error) {
	unlock := s.lockRecord(complaintID)
	defer unlock()

	complaint, err := s.complaints.GetByID(ctx, complaintID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	urgency, sentiment := complaint.UrgencyScore, complaint.SentimentScore
	if scores != nil {
		urgency, sentiment = classifier.ClampScores(scores.Urgency, scores.Sentiment)
	}

	oldPriority := complaint.Priority
	newPriority := classifier.Classify(urgency, sentiment)

	if err := s.complaints.UpdatePriority(ctx, complaint.ID, newPriority, urgency, sentiment); err != nil {
		return nil, apperrors.NewPersistenceError(err)
	}
	complaint.Priority = newPriority
	complaint.UrgencyScore = urgency
	complaint.SentimentScore = sentiment

	if oldPriority != newPriority {
		s.publishEvent(ctx, events.Event{
			Type:        events.EventComplaintPriorityChanged,
			ComplaintID: complaint.ID,
			TicketID:    complaint.TicketID,
			Actor:       "system",
			Payload: events.ComplaintPriorityChangedPayload{
				OldPriority: oldPriority,
				NewPriority: newPriority,
			},
		})
	}
	return complaint, nil
}

// GetComplaint fetches a complaint by row id.
func (s *ComplaintService) GetComplaint(ctx context.Context, id string) (*domain.Complaint, error) {
	complaint, err := s.complaints.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return complaint, nil
}

// GetComplaintByTicketID fetches a complaint by its public ticket reference.
func (s *ComplaintService) GetComplaintByTicketID(ctx context.Context, ticketID string) (*domain.Complaint, error) {
	complaint, err := s.complaints.GetByTicketID(ctx, strings.ToUpper(strings.TrimSpace(ticketID)))
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return complaint, nil
}

// ListComplaints returns filtered complaints sorted by urgency descending.
func (s *ComplaintService) ListComplaints(ctx context.Context, filter ComplaintListFilter) ([]domain.Complaint, error) {
	repoFilter := repository.ComplaintFilter{
		Statuses:   filter.Statuses,
		Priorities: filter.Priorities,
		Category:   filter.Category,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	complaints, err := s.complaints.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return complaints, nil
}

// VisibleUpdates filters the audit trail for the requested audience.
func VisibleUpdates(complaint *domain.Complaint, includeInternal bool) []domain.UpdateEntry {
	if includeInternal {
		return complaint.Updates
	}
	filtered := make([]domain.UpdateEntry, 0, len(complaint.Updates))
	for _, entry := range complaint.Updates {
		if entry.Internal {
			continue
		}
		filtered = append(filtered, entry)
	}
	return filtered
}

func (s *ComplaintService) scoreText(ctx context.Context, text string) (float64, float64) {
	if s.analyzer == nil {
		return classifier.DefaultUrgency, classifier.DefaultSentiment
	}
	scores, err := s.analyzer.Analyze(ctx, text)
	if err != nil {
		s.logger.Warn("analysis unavailable, using default scores", zap.Error(err))
		return classifier.DefaultUrgency, classifier.DefaultSentiment
	}
	return scores.Urgency, scores.Sentiment
}

// resolveDuplicate reloads the record after an idempotent retry hit an
// entry that was already durably appended.
func (s *ComplaintService) resolveDuplicate(ctx context.Context, complaintID, entryID string) (*domain.Complaint, *domain.UpdateEntry, error) {
	complaint, err := s.complaints.GetByID(ctx, complaintID)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	for i := range complaint.Updates {
		if complaint.Updates[i].ID == entryID {
			return complaint, &complaint.Updates[i], nil
		}
	}
	return nil, nil, apperrors.NewConflict("update entry already recorded", map[string]any{"entry_id": entryID})
}

// recordLock is a refcounted per-complaint mutex; entries are removed when
// the last holder releases, so the lock map stays bounded.
type recordLock struct {
	mu   sync.Mutex
	refs int
}

func (s *ComplaintService) lockRecord(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &recordLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}

func (s *ComplaintService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
