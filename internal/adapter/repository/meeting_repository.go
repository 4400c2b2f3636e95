package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "github.com/meetnote-labs/meetnote/errors"
	"github.com/meetnote-labs/meetnote/internal/domain/entities"
	"github.com/meetnote-labs/meetnote/internal/domain/repositories"
)

type meetingRepository struct {
	db *gorm.DB
}

// NewMeetingRepository creates a new meeting repository
func NewMeetingRepository(db *gorm.DB) repositories.MeetingRepository {
	return &meetingRepository{db: db}
}

// CommitMeeting writes the meeting, its action items and the ledger
// transition in one transaction. The unique index on source_message_id makes
// replays a no-op: the conflict is absorbed, the existing meeting is linked
// and the ledger entry moves to duplicate.
func (r *meetingRepository) CommitMeeting(ctx context.Context, meeting *entities.Meeting, items []*entities.ActionItem, state *entities.ProcessingState) (repositories.CommitResult, error) {
	result := repositories.CommitInserted

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_message_id"}},
			DoNothing: true,
		}).Create(meeting)
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			var existing entities.Meeting
			if err := tx.Where("source_message_id = ?", meeting.SourceMessageID).First(&existing).Error; err != nil {
				return err
			}
			existingID := existing.ID
			state.MarkDuplicate(&existingID)
			result = repositories.CommitDuplicate
			return tx.Save(state).Error
		}

		for _, item := range items {
			item.MeetingID = meeting.ID
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}

		state.MarkAccepted(meeting.ID)
		return tx.Save(state).Error
	})
	if err != nil {
		return "", apperrors.ErrCommitFailed(err)
	}
	return result, nil
}

// GetByID retrieves a meeting with its action items
func (r *meetingRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Meeting, error) {
	var meeting entities.Meeting
	err := r.db.WithContext(ctx).
		Preload("ActionItems").
		Where("id = ?", id).
		First(&meeting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &meeting, nil
}

// GetByIDs retrieves multiple meetings, preserving no particular order
func (r *meetingRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*entities.Meeting, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var meetings []*entities.Meeting
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&meetings).Error
	if err != nil {
		return nil, err
	}
	return meetings, nil
}

// GetBySourceMessageID retrieves the meeting committed for a bridge message
func (r *meetingRepository) GetBySourceMessageID(ctx context.Context, sourceMessageID string) (*entities.Meeting, error) {
	var meeting entities.Meeting
	err := r.db.WithContext(ctx).
		Preload("ActionItems").
		Where("source_message_id = ?", sourceMessageID).
		First(&meeting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &meeting, nil
}

// List returns meetings matching the filter, most recent first
func (r *meetingRepository) List(ctx context.Context, filter repositories.MeetingFilter) ([]*entities.Meeting, error) {
	query := r.db.WithContext(ctx).Order("received_at DESC")
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if !filter.From.IsZero() {
		query = query.Where("received_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		query = query.Where("received_at < ?", filter.To)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var meetings []*entities.Meeting
	if err := query.Find(&meetings).Error; err != nil {
		return nil, err
	}
	return meetings, nil
}

// ListUnindexed returns committed meetings still awaiting vector indexing
func (r *meetingRepository) ListUnindexed(ctx context.Context, limit int) ([]*entities.Meeting, error) {
	var meetings []*entities.Meeting
	err := r.db.WithContext(ctx).
		Where("indexed_at IS NULL").
		Order("received_at ASC").
		Limit(limit).
		Find(&meetings).Error
	if err != nil {
		return nil, err
	}
	return meetings, nil
}

// MarkIndexed records vector indexing completion for a meeting
func (r *meetingRepository) MarkIndexed(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&entities.Meeting{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"indexed_at": time.Now(),
			"updated_at": time.Now(),
		}).Error
}
