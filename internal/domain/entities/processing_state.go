package entities

import (
	"time"

	"github.com/google/uuid"
)

// ProcessingOutcome represents the terminal disposition of an inbound message
type ProcessingOutcome string

const (
	OutcomePending      ProcessingOutcome = "pending"       // Recorded, release to pipeline not yet confirmed complete
	OutcomeAccepted     ProcessingOutcome = "accepted"      // Fully processed and committed
	OutcomeDuplicate    ProcessingOutcome = "duplicate"     // Same source message seen before, treated as success
	OutcomeDeadLettered ProcessingOutcome = "dead_lettered" // Retries exhausted, preserved for inspection
)

// ProcessingState is the durable per-message ledger entry. One row exists for
// every message the pipeline has ever begun, keyed by the bridge-assigned
// source message ID. A row in pending means the message may be redelivered
// after a crash and must be safe to process again. Sender and Body carry the
// raw message so a restart can requeue pending entries without waiting for
// the bridge to redeliver.
type ProcessingState struct {
	ID              uuid.UUID         `json:"id" gorm:"type:uuid;primary_key"`
	SourceMessageID string            `json:"source_message_id" gorm:"type:varchar(255);not null;uniqueIndex"`
	ConversationID  string            `json:"conversation_id" gorm:"type:varchar(255);not null;index"`
	Sender          string            `json:"sender" gorm:"type:varchar(255)"`
	Body            string            `json:"-" gorm:"type:text"`
	Outcome         ProcessingOutcome `json:"outcome" gorm:"type:varchar(20);not null;index;default:'pending'"`
	AttemptCount    int               `json:"attempt_count" gorm:"type:integer;default:0"`
	MeetingID       *uuid.UUID        `json:"meeting_id,omitempty" gorm:"type:uuid;index"`
	LastError       *string           `json:"last_error,omitempty" gorm:"type:text"`
	DispatchError   *string           `json:"dispatch_error,omitempty" gorm:"type:text"`
	ReceivedAt      time.Time         `json:"received_at" gorm:"not null"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time         `json:"updated_at" gorm:"autoUpdateTime"`
}

// NewProcessingState creates a pending ledger entry for an inbound message
func NewProcessingState(msg InboundMessage) *ProcessingState {
	return &ProcessingState{
		ID:              uuid.New(),
		SourceMessageID: msg.SourceMessageID,
		ConversationID:  msg.ConversationID,
		Sender:          msg.Sender,
		Body:            msg.Body,
		Outcome:         OutcomePending,
		ReceivedAt:      msg.ReceivedAt,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
}

// Message rebuilds the inbound message this entry recorded, so pending
// entries can be requeued after a restart.
func (s *ProcessingState) Message() InboundMessage {
	return InboundMessage{
		SourceMessageID: s.SourceMessageID,
		ConversationID:  s.ConversationID,
		Sender:          s.Sender,
		Body:            s.Body,
		ReceivedAt:      s.ReceivedAt,
	}
}

// MarkAccepted records successful processing and links the stored meeting
func (s *ProcessingState) MarkAccepted(meetingID uuid.UUID) {
	s.Outcome = OutcomeAccepted
	s.MeetingID = &meetingID
	now := time.Now()
	s.CompletedAt = &now
	s.UpdatedAt = now
}

// MarkAcceptedNoMeeting records completion for messages that needed no
// storage, like content the classifier rejected.
func (s *ProcessingState) MarkAcceptedNoMeeting() {
	s.Outcome = OutcomeAccepted
	now := time.Now()
	s.CompletedAt = &now
	s.UpdatedAt = now
}

// MarkDuplicate records that the message body was already accepted earlier
func (s *ProcessingState) MarkDuplicate(existingMeetingID *uuid.UUID) {
	s.Outcome = OutcomeDuplicate
	s.MeetingID = existingMeetingID
	now := time.Now()
	s.CompletedAt = &now
	s.UpdatedAt = now
}

// MarkDeadLettered records an exhausted retry budget with the final error
func (s *ProcessingState) MarkDeadLettered(errMsg string) {
	s.Outcome = OutcomeDeadLettered
	s.LastError = &errMsg
	now := time.Now()
	s.CompletedAt = &now
	s.UpdatedAt = now
}

// RecordDispatchFailure notes a failed reply delivery without changing the
// processing outcome. Processing succeeded; only the notification was lost.
func (s *ProcessingState) RecordDispatchFailure(errMsg string) {
	s.DispatchError = &errMsg
	s.UpdatedAt = time.Now()
}

// IncrementAttempt counts one pipeline pass over this message
func (s *ProcessingState) IncrementAttempt() {
	s.AttemptCount++
	s.UpdatedAt = time.Now()
}

// IsTerminal reports whether the entry reached a final outcome
func (s *ProcessingState) IsTerminal() bool {
	return s.Outcome != OutcomePending
}

// TableName specifies the table name for GORM
func (ProcessingState) TableName() string {
	return "processing_states"
}
