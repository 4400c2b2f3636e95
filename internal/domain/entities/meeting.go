package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// MeetingStatus distinguishes full extractions from degraded fallbacks
type MeetingStatus string

const (
	MeetingStatusProcessed MeetingStatus = "processed" // Structured extraction validated
	MeetingStatusDegraded  MeetingStatus = "degraded"  // Plain summary only, structured extraction failed
)

// MeetingCategory is the topical label assigned during extraction
type MeetingCategory string

const (
	CategoryWork      MeetingCategory = "work"
	CategoryPersonal  MeetingCategory = "personal"
	CategoryHealth    MeetingCategory = "health"
	CategoryFinance   MeetingCategory = "finance"
	CategoryEducation MeetingCategory = "education"
	CategoryOther     MeetingCategory = "other"
)

// ValidCategory reports whether c is one of the known topical labels
func ValidCategory(c MeetingCategory) bool {
	switch c {
	case CategoryWork, CategoryPersonal, CategoryHealth, CategoryFinance, CategoryEducation, CategoryOther:
		return true
	}
	return false
}

// Meeting is the stored record for one accepted meeting message
type Meeting struct {
	ID              uuid.UUID       `json:"id" gorm:"type:uuid;primary_key"`
	SourceMessageID string          `json:"source_message_id" gorm:"type:varchar(255);not null;uniqueIndex"`
	ConversationID  string          `json:"conversation_id" gorm:"type:varchar(255);not null;index"`
	Title           string          `json:"title" gorm:"type:varchar(255);not null"`
	Summary         string          `json:"summary" gorm:"type:text;not null"`
	Category        MeetingCategory `json:"category" gorm:"type:varchar(20);not null;index;default:'other'"`
	Status          MeetingStatus   `json:"status" gorm:"type:varchar(20);not null;index;default:'processed'"`
	Content         string          `json:"content" gorm:"type:text;not null"`
	Participants    []string        `json:"participants,omitempty" gorm:"type:jsonb;serializer:json"`
	RawExtraction   datatypes.JSON  `json:"raw_extraction,omitempty" gorm:"type:jsonb"`
	ReceivedAt      time.Time       `json:"received_at" gorm:"not null;index"`
	IndexedAt       *time.Time      `json:"indexed_at,omitempty" gorm:"index"`
	CreatedAt       time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time       `json:"updated_at" gorm:"autoUpdateTime"`

	ActionItems []ActionItem `json:"action_items,omitempty" gorm:"foreignKey:MeetingID"`
}

// NewMeeting creates a meeting record from extraction output
func NewMeeting(sourceMessageID, conversationID, title, summary, content string, category MeetingCategory, receivedAt time.Time) *Meeting {
	if !ValidCategory(category) {
		category = CategoryOther
	}
	return &Meeting{
		ID:              uuid.New(),
		SourceMessageID: sourceMessageID,
		ConversationID:  conversationID,
		Title:           title,
		Summary:         summary,
		Category:        category,
		Status:          MeetingStatusProcessed,
		Content:         content,
		ReceivedAt:      receivedAt,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
}

// MarkDegraded flags that only a plain summary could be produced
func (m *Meeting) MarkDegraded() {
	m.Status = MeetingStatusDegraded
	m.UpdatedAt = time.Now()
}

// MarkIndexed records completion of async vector indexing
func (m *Meeting) MarkIndexed() {
	now := time.Now()
	m.IndexedAt = &now
	m.UpdatedAt = now
}

// NeedsIndexing reports whether the meeting still awaits vector indexing
func (m *Meeting) NeedsIndexing() bool {
	return m.IndexedAt == nil
}

// TableName specifies the table name for GORM
func (Meeting) TableName() string {
	return "meetings"
}
