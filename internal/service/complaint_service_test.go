package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/genmitra/public-complaint-ai-system/internal/analysis"
	"github.com/genmitra/public-complaint-ai-system/internal/domain"
	"github.com/genmitra/public-complaint-ai-system/internal/lifecycle"
	"github.com/genmitra/public-complaint-ai-system/internal/repository"
	apperrors "github.com/genmitra/public-complaint-ai-system/pkg/util"
)

// fakeComplaintRepo is an in-memory ComplaintRepository for service tests.
type fakeComplaintRepo struct {
	mu         sync.Mutex
	complaints map[string]*domain.Complaint
	ticketIDs  map[string]string

	failCreates   int
	failAppends   int
	appendCalls   int
	dupTicketOnce bool
}

func newFakeRepo() *fakeComplaintRepo {
	return &fakeComplaintRepo{
		complaints: make(map[string]*domain.Complaint),
		ticketIDs:  make(map[string]string),
	}
}

var errRepoDown = errors.New("repo down")

func (f *fakeComplaintRepo) Create(_ context.Context, complaint *domain.Complaint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreates > 0 {
		f.failCreates--
		return errRepoDown
	}
	if f.dupTicketOnce {
		f.dupTicketOnce = false
		return repository.ErrDuplicateTicketID
	}
	if _, exists := f.ticketIDs[complaint.TicketID]; exists {
		return repository.ErrDuplicateTicketID
	}
	complaint.ID = uuid.NewString()
	complaint.CreatedAt = time.Now()
	complaint.UpdatedAt = complaint.CreatedAt
	stored := *complaint
	f.complaints[complaint.ID] = &stored
	f.ticketIDs[complaint.TicketID] = complaint.ID
	return nil
}

func (f *fakeComplaintRepo) GetByID(_ context.Context, id string) (*domain.Complaint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.complaints[id]
	if !ok {
		return nil, apperrors.NewNotFound("complaint", nil)
	}
	copied := *stored
	copied.Updates = append([]domain.UpdateEntry(nil), stored.Updates...)
	return &copied, nil
}

func (f *fakeComplaintRepo) GetByTicketID(ctx context.Context, ticketID string) (*domain.Complaint, error) {
	f.mu.Lock()
	id, ok := f.ticketIDs[ticketID]
	f.mu.Unlock()
	if !ok {
		return nil, apperrors.NewNotFound("complaint", nil)
	}
	return f.GetByID(ctx, id)
}

func (f *fakeComplaintRepo) ListWithFilter(_ context.Context, _ repository.ComplaintFilter) ([]domain.Complaint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Complaint, 0, len(f.complaints))
	for _, c := range f.complaints {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeComplaintRepo) AppendUpdate(_ context.Context, entry domain.UpdateEntry, status domain.ComplaintStatus, updatedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appendCalls++
	if f.failAppends > 0 {
		f.failAppends--
		return errRepoDown
	}
	stored, ok := f.complaints[entry.ComplaintID]
	if !ok {
		return errors.New("no such complaint")
	}
	for _, existing := range stored.Updates {
		if existing.ID == entry.ID {
			return repository.ErrDuplicateEntry
		}
	}
	stored.Updates = append(stored.Updates, entry)
	stored.Status = status
	stored.UpdatedAt = updatedAt
	return nil
}

func (f *fakeComplaintRepo) UpdatePriority(_ context.Context, id string, priority domain.ComplaintPriority, urgency, sentiment float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.complaints[id]
	if !ok {
		return errors.New("no such complaint")
	}
	stored.Priority = priority
	stored.UrgencyScore = urgency
	stored.SentimentScore = sentiment
	return nil
}

// fixedAnalyzer returns preset scores or an error.
type fixedAnalyzer struct {
	scores analysis.Scores
	err    error
}

func (a fixedAnalyzer) Analyze(context.Context, string) (analysis.Scores, error) {
	return a.scores, a.err
}

func newTestService(repo *fakeComplaintRepo, analyzer analysis.Provider) *ComplaintService {
	return NewComplaintService(ComplaintDependencies{
		ComplaintRepo: repo,
		Analyzer:      analyzer,
	})
}

func createInput() ComplaintCreateInput {
	return ComplaintCreateInput{
		CitizenName: "Asha Rao",
		Email:       "asha@example.com",
		Category:    "sanitation",
		Description: "Garbage has not been collected on MG Road for two weeks.",
		Location:    domain.Location{City: "Pune", State: "MH"},
	}
}

func TestCreateComplaint(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, fixedAnalyzer{scores: analysis.Scores{Urgency: 9, Sentiment: -0.8}})

	complaint, err := svc.CreateComplaint(context.Background(), createInput())
	if err != nil {
		t.Fatalf("CreateComplaint: %v", err)
	}
	if complaint.TicketID == "" {
		t.Fatal("ticket id not assigned")
	}
	if complaint.Status != domain.StatusSubmitted {
		t.Fatalf("initial status = %v", complaint.Status)
	}
	if complaint.Priority != domain.PriorityCritical {
		t.Fatalf("priority = %v, want Critical for urgency 9 sentiment -0.8", complaint.Priority)
	}
	if complaint.UrgencyScore != 9 || complaint.SentimentScore != -0.8 {
		t.Fatalf("scores not stored: %v / %v", complaint.UrgencyScore, complaint.SentimentScore)
	}
}

func TestCreateComplaintAnalyzerUnavailableUsesDefaults(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, fixedAnalyzer{err: analysis.ErrUnavailable})

	complaint, err := svc.CreateComplaint(context.Background(), createInput())
	if err != nil {
		t.Fatalf("intake must not fail when analysis is down: %v", err)
	}
	if complaint.Priority != domain.PriorityMedium {
		t.Fatalf("default scores should classify Medium, got %v", complaint.Priority)
	}
	if complaint.UrgencyScore != 5 || complaint.SentimentScore != 0 {
		t.Fatalf("expected default scores, got %v / %v", complaint.UrgencyScore, complaint.SentimentScore)
	}
}

func TestCreateComplaintClampsScores(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, fixedAnalyzer{scores: analysis.Scores{Urgency: 14, Sentiment: -3}})

	complaint, err := svc.CreateComplaint(context.Background(), createInput())
	if err != nil {
		t.Fatalf("CreateComplaint: %v", err)
	}
	if complaint.UrgencyScore != 10 || complaint.SentimentScore != -1 {
		t.Fatalf("scores not clamped: %v / %v", complaint.UrgencyScore, complaint.SentimentScore)
	}
}

func TestCreateComplaintRetriesTicketCollision(t *testing.T) {
	repo := newFakeRepo()
	repo.dupTicketOnce = true
	svc := newTestService(repo, fixedAnalyzer{scores: analysis.Scores{Urgency: 2}})

	complaint, err := svc.CreateComplaint(context.Background(), createInput())
	if err != nil {
		t.Fatalf("expected collision retry to succeed: %v", err)
	}
	if complaint.ID == "" || complaint.TicketID == "" {
		t.Fatal("complaint not persisted after retry")
	}
}

func TestCreateComplaintPersistenceFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.failCreates = 1
	svc := newTestService(repo, fixedAnalyzer{scores: analysis.Scores{Urgency: 2}})

	_, err := svc.CreateComplaint(context.Background(), createInput())
	if err == nil {
		t.Fatal("expected persistence error")
	}
	var domainErr *apperrors.DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "PERSISTENCE_FAILED" {
		t.Fatalf("expected PERSISTENCE_FAILED, got %v", err)
	}
}

func TestRecordUpdateTransitions(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, fixedAnalyzer{scores: analysis.Scores{Urgency: 5}})
	created, err := svc.CreateComplaint(context.Background(), createInput())
	if err != nil {
		t.Fatalf("CreateComplaint: %v", err)
	}

	complaint, entry, err := svc.RecordUpdate(context.Background(), created.ID, lifecycle.UpdateInput{
		Status:    "investigating",
		Message:   "crew dispatched",
		UpdatedBy: "ops:meera",
	})
	if err != nil {
		t.Fatalf("RecordUpdate: %v", err)
	}
	if complaint.Status != domain.StatusInvestigating {
		t.Fatalf("status = %v", complaint.Status)
	}
	if entry.Status == nil || *entry.Status != domain.StatusInvestigating {
		t.Fatal("entry should carry the transition")
	}

	stored, _ := repo.GetByID(context.Background(), created.ID)
	if stored.Status != domain.StatusInvestigating || len(stored.Updates) != 1 {
		t.Fatal("durable state does not reflect the update")
	}
}

func TestRecordUpdateRejectionLeavesRecordUnchanged(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, fixedAnalyzer{scores: analysis.Scores{Urgency: 5}})
	created, _ := svc.CreateComplaint(context.Background(), createInput())

	_, _, err := svc.RecordUpdate(context.Background(), created.ID, lifecycle.UpdateInput{
		Status:    "not_a_status",
		Message:   "bogus",
		UpdatedBy: "ops:meera",
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	var domainErr *apperrors.DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "VALIDATION_FAILED" {
		t.Fatalf("expected VALIDATION_FAILED, got %v", err)
	}

	stored, _ := repo.GetByID(context.Background(), created.ID)
	if stored.Status != domain.StatusSubmitted || len(stored.Updates) != 0 {
		t.Fatal("rejected update must leave status and audit trail unchanged")
	}
	if repo.appendCalls != 0 {
		t.Fatal("no durable write should be attempted for invalid input")
	}
}

func TestRecordUpdatePersistenceFailureIsAtomic(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, fixedAnalyzer{scores: analysis.Scores{Urgency: 5}})
	created, _ := svc.CreateComplaint(context.Background(), createInput())

	repo.failAppends = 1
	_, _, err := svc.RecordUpdate(context.Background(), created.ID, lifecycle.UpdateInput{
		Status:    "received",
		Message:   "ack",
		UpdatedBy: "ops:meera",
	})
	if err == nil {
		t.Fatal("expected persistence error")
	}
	var domainErr *apperrors.DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "PERSISTENCE_FAILED" {
		t.Fatalf("expected PERSISTENCE_FAILED, got %v", err)
	}

	stored, _ := repo.GetByID(context.Background(), created.ID)
	if stored.Status != domain.StatusSubmitted || len(stored.Updates) != 0 {
		t.Fatal("failed write must not leave a partial update")
	}
}

func TestRecordUpdateIdempotentRetry(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, fixedAnalyzer{scores: analysis.Scores{Urgency: 5}})
	created, _ := svc.CreateComplaint(context.Background(), createInput())

	input := lifecycle.UpdateInput{
		Status:    "received",
		Message:   "ack",
		UpdatedBy: "ops:meera",
		EntryID:   "retry-key-1",
	}
	if _, _, err := svc.RecordUpdate(context.Background(), created.ID, input); err != nil {
		t.Fatalf("first RecordUpdate: %v", err)
	}
	complaint, entry, err := svc.RecordUpdate(context.Background(), created.ID, input)
	if err != nil {
		t.Fatalf("idempotent retry should succeed: %v", err)
	}
	if entry.ID != "retry-key-1" {
		t.Fatalf("retry returned wrong entry %q", entry.ID)
	}
	if len(complaint.Updates) != 1 {
		t.Fatalf("duplicate append: %d entries", len(complaint.Updates))
	}
}

func TestRecordUpdateConcurrentAppendsAllSurvive(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, fixedAnalyzer{scores: analysis.Scores{Urgency: 5}})
	created, _ := svc.CreateComplaint(context.Background(), createInput())

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.RecordUpdate(context.Background(), created.ID, lifecycle.UpdateInput{
				Message:   "progress note",
				UpdatedBy: "ops:meera",
			})
			if err != nil {
				t.Errorf("RecordUpdate: %v", err)
			}
		}()
	}
	wg.Wait()

	stored, _ := repo.GetByID(context.Background(), created.ID)
	if len(stored.Updates) != n {
		t.Fatalf("lost updates: %d of %d recorded", len(stored.Updates), n)
	}
	for i := 1; i < len(stored.Updates); i++ {
		if stored.Updates[i].Timestamp.Before(stored.Updates[i-1].Timestamp) {
			t.Fatal("timestamps not monotonic across serialized updates")
		}
	}
}

func TestRecomputePriority(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, fixedAnalyzer{scores: analysis.Scores{Urgency: 2, Sentiment: 0}})
	created, _ := svc.CreateComplaint(context.Background(), createInput())
	if created.Priority != domain.PriorityLow {
		t.Fatalf("setup: priority = %v", created.Priority)
	}

	// New signals arrived; recompute with them.
	complaint, err := svc.RecomputePriority(context.Background(), created.ID, &analysis.Scores{Urgency: 8.5, Sentiment: -0.2})
	if err != nil {
		t.Fatalf("RecomputePriority: %v", err)
	}
	if complaint.Priority != domain.PriorityCritical {
		t.Fatalf("priority = %v, want Critical", complaint.Priority)
	}

	// Without new scores the stored ones are re-derived; result is stable.
	complaint, err = svc.RecomputePriority(context.Background(), created.ID, nil)
	if err != nil {
		t.Fatalf("RecomputePriority: %v", err)
	}
	if complaint.Priority != domain.PriorityCritical {
		t.Fatalf("recompute from stored scores changed priority to %v", complaint.Priority)
	}
}

func TestStringPreview(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short untouched", "pipe burst", 120, "pipe burst"},
		{"trimmed", "  pipe burst  ", 120, "pipe burst"},
		{"truncated", "abcdefghij", 8, "abcde..."},
		{"tiny budget", "abcdefghij", 2, "ab"},
		{"multibyte kept whole", "नळ फुटला आणि रस्ता पाण्याखाली गेला", 10, "नळ फुटल..."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := stringPreview(tc.in, tc.max)
			if got != tc.want {
				t.Errorf("stringPreview(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
			}
			for i, r := range got {
				if r == '�' {
					t.Errorf("preview contains a split rune at byte %d: %q", i, got)
				}
			}
		})
	}
}

func TestVisibleUpdatesFiltersInternal(t *testing.T) {
	complaint := &domain.Complaint{
		Updates: []domain.UpdateEntry{
			{ID: "1", Message: "public ack"},
			{ID: "2", Message: "internal note", Internal: true},
			{ID: "3", Message: "public resolution"},
		},
	}
	visible := VisibleUpdates(complaint, false)
	if len(visible) != 2 {
		t.Fatalf("expected 2 public entries, got %d", len(visible))
	}
	for _, entry := range visible {
		if entry.Internal {
			t.Fatal("internal entry leaked to public view")
		}
	}
	if all := VisibleUpdates(complaint, true); len(all) != 3 {
		t.Fatalf("operator view should include everything, got %d", len(all))
	}
}
