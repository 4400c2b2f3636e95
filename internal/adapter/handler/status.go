package handler

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/meetnote-labs/meetnote/errors"
	"github.com/meetnote-labs/meetnote/internal/domain/entities"
	"github.com/meetnote-labs/meetnote/internal/domain/repositories"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// StatusHandler exposes the read-only operator API: recent meetings, a
// single meeting with its reminders, and the failure queue.
type StatusHandler struct {
	meetings  repositories.MeetingRepository
	ledger    repositories.LedgerRepository
	reminders repositories.ReminderRepository
	logger    *zap.Logger
}

// NewStatusHandler creates a status handler
func NewStatusHandler(meetings repositories.MeetingRepository, ledger repositories.LedgerRepository, reminders repositories.ReminderRepository, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{
		meetings:  meetings,
		ledger:    ledger,
		reminders: reminders,
		logger:    logger,
	}
}

type meetingSummary struct {
	ID          uuid.UUID                `json:"id"`
	Title       string                   `json:"title"`
	Category    entities.MeetingCategory `json:"category"`
	Status      entities.MeetingStatus   `json:"status"`
	ActionItems int                      `json:"action_items"`
	Indexed     bool                     `json:"indexed"`
	ReceivedAt  time.Time                `json:"received_at"`
}

type meetingDetail struct {
	Meeting   *entities.Meeting            `json:"meeting"`
	Reminders []*entities.CalendarReminder `json:"reminders"`
}

// ListMeetings returns the most recently committed meetings. Optional query
// parameters narrow the listing: category, from and to (dates, inclusive).
func (h *StatusHandler) ListMeetings(c echo.Context) error {
	filter := repositories.MeetingFilter{
		Category: entities.MeetingCategory(c.QueryParam("category")),
		Limit:    parseLimit(c.QueryParam("limit")),
	}
	if filter.Category != "" && !entities.ValidCategory(filter.Category) {
		return HandleError(h.logger, c, errors.ErrInvalidRequest("unknown category"))
	}

	var err error
	if filter.From, err = parseDate(c.QueryParam("from")); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidRequest("from must be YYYY-MM-DD"))
	}
	if filter.To, err = parseDate(c.QueryParam("to")); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidRequest("to must be YYYY-MM-DD"))
	}
	if !filter.To.IsZero() {
		filter.To = filter.To.AddDate(0, 0, 1)
	}

	meetings, err := h.meetings.List(c.Request().Context(), filter)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	summaries := make([]meetingSummary, 0, len(meetings))
	for _, m := range meetings {
		summaries = append(summaries, meetingSummary{
			ID:          m.ID,
			Title:       m.Title,
			Category:    m.Category,
			Status:      m.Status,
			ActionItems: len(m.ActionItems),
			Indexed:     m.IndexedAt != nil,
			ReceivedAt:  m.ReceivedAt,
		})
	}

	return HandleSuccess(h.logger, c, summaries)
}

// GetMeeting returns one meeting with its action items and reminders
func (h *StatusHandler) GetMeeting(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidRequest("meeting id must be a UUID"))
	}

	ctx := c.Request().Context()
	meeting, err := h.meetings.GetByID(ctx, id)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	if meeting == nil {
		return HandleError(h.logger, c, errors.ErrNotFound("meeting", id.String()))
	}

	reminders, err := h.reminders.ListByMeeting(ctx, id)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	return HandleSuccess(h.logger, c, meetingDetail{Meeting: meeting, Reminders: reminders})
}

// ListFailures returns dead-lettered messages and accepted messages whose
// reply delivery failed, newest first.
func (h *StatusHandler) ListFailures(c echo.Context) error {
	limit := parseLimit(c.QueryParam("limit"))

	failures, err := h.ledger.ListFailures(c.Request().Context(), limit)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	return HandleSuccess(h.logger, c, failures)
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", raw)
}

func parseLimit(raw string) int {
	if raw == "" {
		return defaultListLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
