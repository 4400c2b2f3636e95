package entities

import (
	"time"

	"github.com/google/uuid"
)

// CalendarReminder records a reminder artifact generated for an action item.
// Reminders exist only for items with a resolved, future due date.
type CalendarReminder struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	MeetingID    uuid.UUID `json:"meeting_id" gorm:"type:uuid;not null;index"`
	ActionItemID uuid.UUID `json:"action_item_id" gorm:"type:uuid;not null;index"`
	Summary      string    `json:"summary" gorm:"type:varchar(255);not null"`
	StartAt      time.Time `json:"start_at" gorm:"not null"`
	LeadMinutes  int       `json:"lead_minutes" gorm:"type:integer;not null"`
	WithTravel   bool      `json:"with_travel" gorm:"default:false"`
	ArchiveKey   *string   `json:"archive_key,omitempty" gorm:"type:varchar(512)"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// NewCalendarReminder creates a reminder record for an action item
func NewCalendarReminder(meetingID, actionItemID uuid.UUID, summary string, startAt time.Time, lead time.Duration, withTravel bool) *CalendarReminder {
	return &CalendarReminder{
		ID:           uuid.New(),
		MeetingID:    meetingID,
		ActionItemID: actionItemID,
		Summary:      summary,
		StartAt:      startAt,
		LeadMinutes:  int(lead.Minutes()),
		WithTravel:   withTravel,
		CreatedAt:    time.Now(),
	}
}

// SetArchiveKey links the reminder to its archived artifact object
func (r *CalendarReminder) SetArchiveKey(key string) {
	r.ArchiveKey = &key
}

// TableName specifies the table name for GORM
func (CalendarReminder) TableName() string {
	return "calendar_reminders"
}
