package repositories

import (
	"context"
	"time"

	"github.com/meetnote-labs/meetnote/internal/domain/entities"
)

// BeginResult classifies what the ledger already knows about a message
type BeginResult string

const (
	// BeginFresh means no prior entry existed; a pending row was written.
	BeginFresh BeginResult = "fresh"
	// BeginResume means a pending entry exists from an interrupted run.
	// The message is safe to process again.
	BeginResume BeginResult = "resume"
	// BeginDuplicate means the message already reached accepted or
	// duplicate. Processing must be skipped and treated as success.
	BeginDuplicate BeginResult = "duplicate"
	// BeginDeadLettered means the message permanently failed before.
	BeginDeadLettered BeginResult = "dead_lettered"
)

// LedgerRepository manages the durable processing-state ledger. Begin must
// record pending BEFORE any downstream work starts so a crash between intake
// and commit is recoverable by redelivery.
type LedgerRepository interface {
	Begin(ctx context.Context, state *entities.ProcessingState) (BeginResult, *entities.ProcessingState, error)
	Update(ctx context.Context, state *entities.ProcessingState) error
	GetBySourceMessageID(ctx context.Context, sourceMessageID string) (*entities.ProcessingState, error)
	ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*entities.ProcessingState, error)
	ListFailures(ctx context.Context, limit int) ([]*entities.ProcessingState, error)
	DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
