package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "github.com/meetnote-labs/meetnote/errors"
	"github.com/meetnote-labs/meetnote/internal/domain/entities"
	"github.com/meetnote-labs/meetnote/internal/domain/repositories"
)

type ledgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a new processing-state ledger repository
func NewLedgerRepository(db *gorm.DB) repositories.LedgerRepository {
	return &ledgerRepository{db: db}
}

// Begin records a pending entry for a message before any downstream work.
// When an entry already exists its outcome decides what happens next:
// pending entries are resumed (crash recovery), terminal entries short the
// message out of the pipeline.
func (r *ledgerRepository) Begin(ctx context.Context, state *entities.ProcessingState) (repositories.BeginResult, *entities.ProcessingState, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_message_id"}},
		DoNothing: true,
	}).Create(state)
	if res.Error != nil {
		return "", nil, apperrors.ErrLedgerUnavailable(res.Error)
	}

	if res.RowsAffected > 0 {
		return repositories.BeginFresh, state, nil
	}

	existing, err := r.GetBySourceMessageID(ctx, state.SourceMessageID)
	if err != nil {
		return "", nil, err
	}
	if existing == nil {
		// Conflict row vanished between insert and read; treat as fresh
		// on the next delivery.
		return "", nil, apperrors.ErrLedgerUnavailable(errors.New("ledger entry disappeared after conflict"))
	}

	switch existing.Outcome {
	case entities.OutcomePending:
		existing.IncrementAttempt()
		if err := r.Update(ctx, existing); err != nil {
			return "", nil, err
		}
		return repositories.BeginResume, existing, nil
	case entities.OutcomeDeadLettered:
		return repositories.BeginDeadLettered, existing, nil
	default:
		return repositories.BeginDuplicate, existing, nil
	}
}

// Update persists transitions on an existing ledger entry
func (r *ledgerRepository) Update(ctx context.Context, state *entities.ProcessingState) error {
	if err := r.db.WithContext(ctx).Save(state).Error; err != nil {
		return apperrors.ErrLedgerUnavailable(err)
	}
	return nil
}

// GetBySourceMessageID looks up the ledger entry for a bridge message
func (r *ledgerRepository) GetBySourceMessageID(ctx context.Context, sourceMessageID string) (*entities.ProcessingState, error) {
	var state entities.ProcessingState
	err := r.db.WithContext(ctx).
		Where("source_message_id = ?", sourceMessageID).
		First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperrors.ErrLedgerUnavailable(err)
	}
	return &state, nil
}

// ListPending returns pending entries created before olderThan, oldest
// first. Used at startup to requeue work interrupted by a crash.
func (r *ledgerRepository) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*entities.ProcessingState, error) {
	var states []*entities.ProcessingState
	err := r.db.WithContext(ctx).
		Where("outcome = ? AND created_at < ?", entities.OutcomePending, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&states).Error
	if err != nil {
		return nil, apperrors.ErrLedgerUnavailable(err)
	}
	return states, nil
}

// ListFailures returns entries that dead-lettered or failed dispatch
func (r *ledgerRepository) ListFailures(ctx context.Context, limit int) ([]*entities.ProcessingState, error) {
	var states []*entities.ProcessingState
	err := r.db.WithContext(ctx).
		Where("outcome = ? OR dispatch_error IS NOT NULL", entities.OutcomeDeadLettered).
		Order("updated_at DESC").
		Limit(limit).
		Find(&states).Error
	if err != nil {
		return nil, apperrors.ErrLedgerUnavailable(err)
	}
	return states, nil
}

// DeleteCompletedBefore prunes terminal entries older than the cutoff.
// Dead-lettered entries are kept for inspection.
func (r *ledgerRepository) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("outcome IN ? AND completed_at < ?",
			[]entities.ProcessingOutcome{entities.OutcomeAccepted, entities.OutcomeDuplicate},
			cutoff).
		Delete(&entities.ProcessingState{})
	if res.Error != nil {
		return 0, apperrors.ErrLedgerUnavailable(res.Error)
	}
	return res.RowsAffected, nil
}
