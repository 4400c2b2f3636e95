package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/meetnote-labs/meetnote/internal/domain/entities"
)

// ReminderRepository persists generated calendar reminder records
type ReminderRepository interface {
	CreateBatch(ctx context.Context, reminders []*entities.CalendarReminder) error
	ListByMeeting(ctx context.Context, meetingID uuid.UUID) ([]*entities.CalendarReminder, error)
}
