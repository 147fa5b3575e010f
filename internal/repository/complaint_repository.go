package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/genmitra/public-complaint-ai-system/internal/domain"
)

// Sentinel errors surfaced to the service layer for retry decisions.
var (
	// ErrDuplicateTicketID means the generated ticket reference collided;
	// the caller regenerates and retries.
	ErrDuplicateTicketID = errors.New("ticket id already exists")
	// ErrDuplicateEntry means an update entry with the same idempotency id
	// was already appended; the write is already durable.
	ErrDuplicateEntry = errors.New("update entry already appended")
)

const pgUniqueViolation = "23505"

// ComplaintFilter captures listing parameters.
type ComplaintFilter struct {
	Statuses   []domain.ComplaintStatus
	Priorities []domain.ComplaintPriority
	Category   *string
	Limit      int
	Offset     int
}

// ComplaintRepository encapsulates complaint persistence.
type ComplaintRepository interface {
	Create(ctx context.Context, complaint *domain.Complaint) error
	GetByID(ctx context.Context, id string) (*domain.Complaint, error)
	GetByTicketID(ctx context.Context, ticketID string) (*domain.Complaint, error)
	ListWithFilter(ctx context.Context, filter ComplaintFilter) ([]domain.Complaint, error)
	// AppendUpdate durably appends the entry and applies the resulting
	// status in one transaction.
	AppendUpdate(ctx context.Context, entry domain.UpdateEntry, status domain.ComplaintStatus, updatedAt time.Time) error
	UpdatePriority(ctx context.Context, id string, priority domain.ComplaintPriority, urgency, sentiment float64) error
}

type complaintRepository struct {
	pool *pgxpool.Pool
}

// NewComplaintRepository instantiates repository.
func NewComplaintRepository(pool *pgxpool.Pool) ComplaintRepository {
	return &complaintRepository{pool: pool}
}

func (r *complaintRepository) Create(ctx context.Context, complaint *domain.Complaint) error {
	const query = `
        INSERT INTO complaints (ticket_id, citizen_name, email, phone, category, description,
            street, city, state, pincode, status, priority, urgency_score, sentiment_score)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
        RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		complaint.TicketID,
		complaint.CitizenName,
		complaint.Contact.Email,
		complaint.Contact.Phone,
		complaint.Category,
		complaint.Description,
		complaint.Location.Street,
		complaint.Location.City,
		complaint.Location.State,
		complaint.Location.Pincode,
		complaint.Status,
		complaint.Priority,
		complaint.UrgencyScore,
		complaint.SentimentScore,
	).Scan(&complaint.ID, &complaint.CreatedAt, &complaint.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateTicketID
	}
	return err
}

func (r *complaintRepository) GetByID(ctx context.Context, id string) (*domain.Complaint, error) {
	const query = complaintSelect + ` WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *complaintRepository) GetByTicketID(ctx context.Context, ticketID string) (*domain.Complaint, error) {
	const query = complaintSelect + ` WHERE ticket_id=$1`
	return r.fetchSingle(ctx, query, ticketID)
}

const complaintSelect = `
        SELECT id, ticket_id, citizen_name, email, phone, category, description,
               street, city, state, pincode, status, priority, urgency_score, sentiment_score,
               created_at, updated_at
        FROM complaints`

func (r *complaintRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Complaint, error) {
	var complaint domain.Complaint
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&complaint.ID,
		&complaint.TicketID,
		&complaint.CitizenName,
		&complaint.Contact.Email,
		&complaint.Contact.Phone,
		&complaint.Category,
		&complaint.Description,
		&complaint.Location.Street,
		&complaint.Location.City,
		&complaint.Location.State,
		&complaint.Location.Pincode,
		&complaint.Status,
		&complaint.Priority,
		&complaint.UrgencyScore,
		&complaint.SentimentScore,
		&complaint.CreatedAt,
		&complaint.UpdatedAt,
	); err != nil {
		return nil, err
	}
	updates, err := r.listUpdates(ctx, complaint.ID)
	if err != nil {
		return nil, err
	}
	complaint.Updates = updates
	return &complaint, nil
}

func (r *complaintRepository) ListWithFilter(ctx context.Context, filter ComplaintFilter) ([]domain.Complaint, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Category != nil && strings.TrimSpace(*filter.Category) != "" {
		args = append(args, strings.TrimSpace(*filter.Category))
		clauses = append(clauses, fmt.Sprintf("category=$%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY urgency_score DESC, created_at DESC LIMIT %d OFFSET %d`,
		complaintSelect, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanComplaints(rows)
}

func (r *complaintRepository) AppendUpdate(ctx context.Context, entry domain.UpdateEntry, status domain.ComplaintStatus, updatedAt time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const insertEntry = `
        INSERT INTO complaint_updates (id, complaint_id, status, message, updated_by, internal, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (id) DO NOTHING`
	cmd, err := tx.Exec(ctx, insertEntry,
		entry.ID,
		entry.ComplaintID,
		entry.Status,
		entry.Message,
		entry.UpdatedBy,
		entry.Internal,
		entry.Timestamp,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrDuplicateEntry
	}

	const updateComplaint = `
        UPDATE complaints SET status=$1, updated_at=$2 WHERE id=$3`
	cmd, err = tx.Exec(ctx, updateComplaint, status, updatedAt, entry.ComplaintID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	return tx.Commit(ctx)
}

func (r *complaintRepository) UpdatePriority(ctx context.Context, id string, priority domain.ComplaintPriority, urgency, sentiment float64) error {
	const query = `
        UPDATE complaints SET priority=$1, urgency_score=$2, sentiment_score=$3, updated_at=NOW()
        WHERE id=$4`
	cmd, err := r.pool.Exec(ctx, query, priority, urgency, sentiment, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *complaintRepository) listUpdates(ctx context.Context, complaintID string) ([]domain.UpdateEntry, error) {
	const query = `
        SELECT id, complaint_id, status, message, updated_by, internal, created_at
        FROM complaint_updates WHERE complaint_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, complaintID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.UpdateEntry
	for rows.Next() {
		var entry domain.UpdateEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.ComplaintID,
			&entry.Status,
			&entry.Message,
			&entry.UpdatedBy,
			&entry.Internal,
			&entry.Timestamp,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func scanComplaints(rows pgx.Rows) ([]domain.Complaint, error) {
	var result []domain.Complaint
	for rows.Next() {
		var complaint domain.Complaint
		if err := rows.Scan(
			&complaint.ID,
			&complaint.TicketID,
			&complaint.CitizenName,
			&complaint.Contact.Email,
			&complaint.Contact.Phone,
			&complaint.Category,
			&complaint.Description,
			&complaint.Location.Street,
			&complaint.Location.City,
			&complaint.Location.State,
			&complaint.Location.Pincode,
			&complaint.Status,
			&complaint.Priority,
			&complaint.UrgencyScore,
			&complaint.SentimentScore,
			&complaint.CreatedAt,
			&complaint.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, complaint)
	}
	return result, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
