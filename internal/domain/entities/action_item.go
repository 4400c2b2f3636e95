package entities

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ActionItemPriority represents how urgent an action item is
type ActionItemPriority string

const (
	PriorityLow    ActionItemPriority = "low"
	PriorityMedium ActionItemPriority = "medium"
	PriorityHigh   ActionItemPriority = "high"
)

// ValidPriority reports whether p is one of the known priorities
func ValidPriority(p ActionItemPriority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ActionItem is a single commitment extracted from a meeting. Items whose
// normalized descriptions collide within one meeting are merged into a single
// row carrying the union of assignees.
type ActionItem struct {
	ID             uuid.UUID          `json:"id" gorm:"type:uuid;primary_key"`
	MeetingID      uuid.UUID          `json:"meeting_id" gorm:"type:uuid;not null;index"`
	Title          string             `json:"title" gorm:"type:varchar(255);not null"`
	Description    string             `json:"description" gorm:"type:text;not null"`
	NormalizedKey  string             `json:"-" gorm:"type:varchar(512);not null;index"`
	DueDate        *time.Time         `json:"due_date,omitempty" gorm:"index"`
	DuePhrase      string             `json:"due_phrase,omitempty" gorm:"type:varchar(255)"`
	Priority       ActionItemPriority `json:"priority" gorm:"type:varchar(10);not null;default:'medium'"`
	RequiresTravel bool               `json:"requires_travel" gorm:"default:false"`
	Assignees      []string           `json:"assignees,omitempty" gorm:"type:jsonb;serializer:json"`
	CreatedAt      time.Time          `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time          `json:"updated_at" gorm:"autoUpdateTime"`
}

// NewActionItem creates an action item with its normalized merge key
func NewActionItem(meetingID uuid.UUID, title, description string, priority ActionItemPriority) *ActionItem {
	if !ValidPriority(priority) {
		priority = PriorityMedium
	}
	return &ActionItem{
		ID:            uuid.New(),
		MeetingID:     meetingID,
		Title:         title,
		Description:   description,
		NormalizedKey: NormalizeDescription(description),
		Priority:      priority,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
}

// MergeAssignees adds names to the assignee set, preserving first-seen order
func (a *ActionItem) MergeAssignees(names []string) {
	seen := make(map[string]bool, len(a.Assignees))
	for _, n := range a.Assignees {
		seen[strings.ToLower(strings.TrimSpace(n))] = true
	}
	for _, n := range names {
		key := strings.ToLower(strings.TrimSpace(n))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		a.Assignees = append(a.Assignees, strings.TrimSpace(n))
	}
	a.UpdatedAt = time.Now()
}

// NormalizeDescription collapses case, punctuation and whitespace so near
// identical phrasings of the same commitment compare equal.
func NormalizeDescription(desc string) string {
	var b strings.Builder
	b.Grow(len(desc))
	lastSpace := true
	for _, r := range strings.ToLower(desc) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// TableName specifies the table name for GORM
func (ActionItem) TableName() string {
	return "action_items"
}
