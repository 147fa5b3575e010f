package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/genmitra/public-complaint-ai-system/internal/analysis"
	"github.com/genmitra/public-complaint-ai-system/internal/api/dto"
	"github.com/genmitra/public-complaint-ai-system/internal/domain"
	"github.com/genmitra/public-complaint-ai-system/internal/lifecycle"
	"github.com/genmitra/public-complaint-ai-system/internal/service"
	apperrors "github.com/genmitra/public-complaint-ai-system/pkg/util"
)

// ComplaintsHandler manages complaint endpoints.
type ComplaintsHandler struct {
	service *service.ComplaintService
}

// NewComplaintsHandler constructs handler.
func NewComplaintsHandler(complaintService *service.ComplaintService) *ComplaintsHandler {
	return &ComplaintsHandler{service: complaintService}
}

// CreateComplaint POST /complaints.
func (h *ComplaintsHandler) CreateComplaint(c *fiber.Ctx) error {
	var req dto.CreateComplaintRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if fieldErrs := req.Validate(); len(fieldErrs) > 0 {
		return apperrors.NewValidationError("invalid complaint", map[string]any{"fields": fieldErrs})
	}

	input := service.ComplaintCreateInput{
		CitizenName: req.CitizenName,
		Email:       req.Email,
		Phone:       req.Phone,
		Category:    req.Category,
		Description: req.Description,
		Location: domain.Location{
			Street:  req.Location.Street,
			City:    req.Location.City,
			State:   req.Location.State,
			Pincode: req.Location.Pincode,
		},
	}
	complaint, err := h.service.CreateComplaint(c.UserContext(), input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": complaintDetail(complaint, false)})
}

// ListComplaints GET /complaints.
func (h *ComplaintsHandler) ListComplaints(c *fiber.Ctx) error {
	filter := parseComplaintQuery(c)
	complaints, err := h.service.ListComplaints(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.ComplaintSummary, 0, len(complaints))
	for i := range complaints {
		items = append(items, complaintSummary(&complaints[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetComplaint GET /complaints/:id. The path segment accepts either the
// row id or the public ticket reference.
func (h *ComplaintsHandler) GetComplaint(c *fiber.Ctx) error {
	id := c.Params("id")
	var (
		complaint *domain.Complaint
		err       error
	)
	if looksLikeTicketID(id) {
		complaint, err = h.service.GetComplaintByTicketID(c.UserContext(), id)
	} else {
		complaint, err = h.service.GetComplaint(c.UserContext(), id)
	}
	if err != nil {
		return err
	}
	includeInternal := c.QueryBool("include_internal")
	return c.JSON(fiber.Map{"data": complaintDetail(complaint, includeInternal)})
}

// AddUpdate POST /complaints/:id/updates.
func (h *ComplaintsHandler) AddUpdate(c *fiber.Ctx) error {
	var req dto.CreateUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if fieldErrs := req.Validate(); len(fieldErrs) > 0 {
		return apperrors.NewValidationError("invalid update", map[string]any{"fields": fieldErrs})
	}

	complaint, entry, err := h.service.RecordUpdate(c.UserContext(), c.Params("id"), lifecycle.UpdateInput{
		Status:    req.Status,
		Message:   req.Message,
		UpdatedBy: req.UpdatedBy,
		Internal:  req.Internal,
		EntryID:   req.EntryID,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": fiber.Map{
		"complaint": complaintSummary(complaint),
		"update":    updateEntryResponse(*entry),
	}})
}

// RecomputePriority POST /complaints/:id/recompute-priority.
func (h *ComplaintsHandler) RecomputePriority(c *fiber.Ctx) error {
	var req dto.RecomputePriorityRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	var scores *analysis.Scores
	if req.UrgencyScore != nil || req.SentimentScore != nil {
		if req.UrgencyScore == nil || req.SentimentScore == nil {
			return apperrors.NewValidationError("urgency_score and sentiment_score must be supplied together", nil)
		}
		scores = &analysis.Scores{
			Urgency:   *req.UrgencyScore,
			Sentiment: *req.SentimentScore,
		}
	}
	complaint, err := h.service.RecomputePriority(c.UserContext(), c.Params("id"), scores)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": complaintSummary(complaint)})
}

func parseComplaintQuery(c *fiber.Ctx) service.ComplaintListFilter {
	filter := service.ComplaintListFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			if status, ok := domain.ParseStatus(part); ok {
				filter.Statuses = append(filter.Statuses, status)
			}
		}
	}
	if priorityStr := c.Query("priority"); priorityStr != "" {
		for _, part := range strings.Split(priorityStr, ",") {
			filter.Priorities = append(filter.Priorities, domain.ComplaintPriority(strings.TrimSpace(part)))
		}
	}
	if category := strings.TrimSpace(c.Query("category")); category != "" {
		filter.Category = &category
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func looksLikeTicketID(id string) bool {
	return strings.Contains(id, "-") && len(id) < 32
}

func complaintSummary(complaint *domain.Complaint) dto.ComplaintSummary {
	return dto.ComplaintSummary{
		ID:             complaint.ID,
		TicketID:       complaint.TicketID,
		Category:       complaint.Category,
		Status:         complaint.Status,
		Priority:       complaint.Priority,
		UrgencyScore:   complaint.UrgencyScore,
		SentimentScore: complaint.SentimentScore,
		AgeInDays:      complaint.AgeInDays(time.Now()),
		CreatedAt:      complaint.CreatedAt,
		UpdatedAt:      complaint.UpdatedAt,
	}
}

func complaintDetail(complaint *domain.Complaint, includeInternal bool) dto.ComplaintDetailResponse {
	visible := service.VisibleUpdates(complaint, includeInternal)
	updates := make([]dto.UpdateEntryResponse, 0, len(visible))
	for _, entry := range visible {
		updates = append(updates, updateEntryResponse(entry))
	}
	return dto.ComplaintDetailResponse{
		ID:             complaint.ID,
		TicketID:       complaint.TicketID,
		CitizenName:    complaint.CitizenName,
		Email:          complaint.Contact.Email,
		Phone:          complaint.Contact.Phone,
		Category:       complaint.Category,
		Description:    complaint.Description,
		FullAddress:    complaint.Location.FullAddress(),
		Status:         complaint.Status,
		Priority:       complaint.Priority,
		UrgencyScore:   complaint.UrgencyScore,
		SentimentScore: complaint.SentimentScore,
		AgeInDays:      complaint.AgeInDays(time.Now()),
		CreatedAt:      complaint.CreatedAt,
		UpdatedAt:      complaint.UpdatedAt,
		Updates:        updates,
	}
}

func updateEntryResponse(entry domain.UpdateEntry) dto.UpdateEntryResponse {
	return dto.UpdateEntryResponse{
		ID:        entry.ID,
		Status:    entry.Status,
		Message:   entry.Message,
		UpdatedBy: entry.UpdatedBy,
		Internal:  entry.Internal,
		Timestamp: entry.Timestamp,
	}
}
