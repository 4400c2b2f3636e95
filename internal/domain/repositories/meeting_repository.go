package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/meetnote-labs/meetnote/internal/domain/entities"
)

// CommitResult reports whether a commit wrote new rows or hit an earlier one
type CommitResult string

const (
	CommitInserted  CommitResult = "inserted"
	CommitDuplicate CommitResult = "duplicate"
)

// MeetingFilter narrows meeting listings. Zero values mean no constraint;
// From and To bound the received timestamp.
type MeetingFilter struct {
	Category entities.MeetingCategory
	From     time.Time
	To       time.Time
	Limit    int
}

// MeetingRepository persists meetings with their action items. CommitMeeting
// is the single write path: one transaction covering the meeting row, its
// action items and the ledger transition to accepted. Replays of the same
// source message ID return CommitDuplicate without writing.
type MeetingRepository interface {
	CommitMeeting(ctx context.Context, meeting *entities.Meeting, items []*entities.ActionItem, state *entities.ProcessingState) (CommitResult, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Meeting, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*entities.Meeting, error)
	GetBySourceMessageID(ctx context.Context, sourceMessageID string) (*entities.Meeting, error)
	List(ctx context.Context, filter MeetingFilter) ([]*entities.Meeting, error)
	ListUnindexed(ctx context.Context, limit int) ([]*entities.Meeting, error)
	MarkIndexed(ctx context.Context, id uuid.UUID) error
}
