package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/meetnote-labs/meetnote/internal/domain/entities"
	"github.com/meetnote-labs/meetnote/internal/domain/repositories"
)

type reminderRepository struct {
	db *gorm.DB
}

// NewReminderRepository creates a new calendar reminder repository
func NewReminderRepository(db *gorm.DB) repositories.ReminderRepository {
	return &reminderRepository{db: db}
}

// CreateBatch stores reminder records generated for one meeting
func (r *reminderRepository) CreateBatch(ctx context.Context, reminders []*entities.CalendarReminder) error {
	if len(reminders) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&reminders).Error
}

// ListByMeeting returns the reminders generated for a meeting
func (r *reminderRepository) ListByMeeting(ctx context.Context, meetingID uuid.UUID) ([]*entities.CalendarReminder, error) {
	var reminders []*entities.CalendarReminder
	err := r.db.WithContext(ctx).
		Where("meeting_id = ?", meetingID).
		Order("start_at ASC").
		Find(&reminders).Error
	if err != nil {
		return nil, err
	}
	return reminders, nil
}
