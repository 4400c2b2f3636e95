package remind

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/meetnote-labs/meetnote/internal/domain/entities"
	"github.com/meetnote-labs/meetnote/internal/domain/repositories"
	"github.com/meetnote-labs/meetnote/internal/infrastructure/storage"
	"github.com/meetnote-labs/meetnote/pkg/calendar"
	"github.com/meetnote-labs/meetnote/pkg/config"
)

// Service turns action items into calendar reminders. Items without a
// resolved due date, or whose due date already passed, get no reminder;
// travel items get a wider alarm window.
type Service struct {
	reminders repositories.ReminderRepository
	archiver  storage.Archiver
	cfg       config.ReminderConfig
	logger    *zap.Logger
}

// NewService constructs a reminder service
func NewService(reminders repositories.ReminderRepository, archiver storage.Archiver, cfg config.ReminderConfig, logger *zap.Logger) *Service {
	return &Service{
		reminders: reminders,
		archiver:  archiver,
		cfg:       cfg,
		logger:    logger,
	}
}

// Artifact is the rendered calendar output for one meeting
type Artifact struct {
	ICS       string
	Reminders []*entities.CalendarReminder
}

// Generate builds reminders for the meeting's eligible action items and
// persists the records. Returns nil when no item qualifies.
func (s *Service) Generate(ctx context.Context, meeting *entities.Meeting, items []*entities.ActionItem, now time.Time) (*Artifact, error) {
	var (
		events    []calendar.Event
		reminders []*entities.CalendarReminder
	)

	for _, item := range items {
		if item.DueDate == nil {
			continue
		}
		if !item.DueDate.After(now) {
			s.logger.Debug("skipping reminder for past due date",
				zap.String("action_item_id", item.ID.String()),
				zap.Time("due_date", *item.DueDate),
			)
			continue
		}

		lead := s.cfg.LeadTime
		travel := time.Duration(0)
		if item.RequiresTravel {
			travel = s.cfg.TravelBuffer
		}

		events = append(events, calendar.Event{
			UID:          fmt.Sprintf("%s@meetnote", item.ID),
			Title:        item.Title,
			Description:  item.Description,
			Start:        *item.DueDate,
			Lead:         lead,
			TravelBuffer: travel,
		})
		reminders = append(reminders, entities.NewCalendarReminder(
			meeting.ID, item.ID, item.Title, *item.DueDate, lead+travel, item.RequiresTravel))
	}

	if len(events) == 0 {
		return nil, nil
	}

	ics := calendar.Render(events)

	objectName := fmt.Sprintf("reminders/%s.ics", meeting.ID)
	if err := s.archiver.PutCalendar(ctx, objectName, ics); err != nil {
		// Archive is best-effort; the attachment still goes out.
		s.logger.Warn("⚠️ Failed to archive calendar artifact",
			zap.String("object", objectName),
			zap.Error(err),
		)
	} else {
		for _, r := range reminders {
			r.SetArchiveKey(objectName)
		}
	}

	if err := s.reminders.CreateBatch(ctx, reminders); err != nil {
		return nil, err
	}

	s.logger.Info("⏰ Reminders generated",
		zap.String("meeting_id", meeting.ID.String()),
		zap.Int("count", len(reminders)),
	)

	return &Artifact{ICS: ics, Reminders: reminders}, nil
}
