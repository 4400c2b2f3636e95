package ingest

import (
	"context"
	"errors"

	"go.uber.org/zap"

	apperrors "github.com/meetnote-labs/meetnote/errors"
	"github.com/meetnote-labs/meetnote/internal/domain/entities"
	"github.com/meetnote-labs/meetnote/internal/domain/repositories"
	"github.com/meetnote-labs/meetnote/internal/infrastructure/cache"
	"github.com/meetnote-labs/meetnote/pkg/config"
	"github.com/meetnote-labs/meetnote/pkg/retry"
)

// Service admits bridge messages into the pipeline. It owns the two-tier
// duplicate check: a Redis hit on a message whose ledger entry is already
// terminal short-circuits without touching the write path; everything else
// goes through the durable ledger, which stays authoritative.
type Service struct {
	ledger  repositories.LedgerRepository
	deduper cache.Deduper
	policy  retry.Policy
	logger  *zap.Logger
}

// NewService constructs an ingest service
func NewService(ledger repositories.LedgerRepository, deduper cache.Deduper, cfg config.PipelineConfig, logger *zap.Logger) *Service {
	return &Service{
		ledger:  ledger,
		deduper: deduper,
		policy: retry.Policy{
			MaxAttempts: cfg.IngestMaxAttempts,
			BaseDelay:   cfg.IngestBaseDelay,
			MaxDelay:    cfg.IngestMaxDelay,
			Multiplier:  2.0,
		},
		logger: logger,
	}
}

// Admit records the message in the ledger and decides whether the pipeline
// should process it. Fresh and resumed messages return a pending state with
// a nil error. Replays of terminal messages return the existing state with a
// duplicate or dead-lettered error; callers route on the error kind.
func (s *Service) Admit(ctx context.Context, msg entities.InboundMessage) (*entities.ProcessingState, error) {
	// Fast path. A cache hit whose ledger entry reached a terminal outcome
	// skips the ledger write entirely; a pending entry or a missing row
	// falls through to Begin, which decides.
	seen, err := s.deduper.MarkSeen(ctx, msg.SourceMessageID)
	if err != nil {
		s.logger.Warn("⚠️ Dedup cache unavailable, falling through to ledger",
			zap.String("source_message_id", msg.SourceMessageID),
			zap.Error(err),
		)
	} else if seen {
		if state, done := s.shortCircuit(ctx, msg.SourceMessageID); done != nil {
			return state, done
		}
	}

	var (
		result repositories.BeginResult
		state  *entities.ProcessingState
	)
	err = retry.Do(ctx, s.policy, func(ctx context.Context) error {
		var beginErr error
		result, state, beginErr = s.ledger.Begin(ctx, entities.NewProcessingState(msg))
		return beginErr
	})
	if err != nil {
		// Nothing durable was recorded; drop the cache entry so the next
		// delivery is not short-circuited by a key with no ledger row.
		if ferr := s.deduper.Forget(ctx, msg.SourceMessageID); ferr != nil {
			s.logger.Warn("⚠️ Failed to drop dedup key after ledger failure",
				zap.String("source_message_id", msg.SourceMessageID),
				zap.Error(ferr),
			)
		}
		return nil, apperrors.ErrLedgerUnavailable(err)
	}

	switch result {
	case repositories.BeginFresh:
		return state, nil
	case repositories.BeginResume:
		s.logger.Info("🔁 Resuming interrupted message",
			zap.String("source_message_id", msg.SourceMessageID),
			zap.Int("attempt_count", state.AttemptCount),
		)
		return state, nil
	case repositories.BeginDeadLettered:
		return state, deadLetteredError(state)
	default:
		return state, apperrors.ErrDuplicateMessage(msg.SourceMessageID)
	}
}

// shortCircuit resolves a cache hit against the ledger. It returns a non-nil
// error verdict only for terminal entries; pending and unknown messages get
// (nil, nil) and continue to Begin.
func (s *Service) shortCircuit(ctx context.Context, sourceMessageID string) (*entities.ProcessingState, error) {
	existing, err := s.ledger.GetBySourceMessageID(ctx, sourceMessageID)
	if err != nil {
		s.logger.Warn("⚠️ Ledger lookup after cache hit failed",
			zap.String("source_message_id", sourceMessageID),
			zap.Error(err),
		)
		return nil, nil
	}
	if existing == nil || !existing.IsTerminal() {
		return nil, nil
	}

	s.logger.Debug("dedup cache hit on terminal entry",
		zap.String("source_message_id", sourceMessageID),
		zap.String("outcome", string(existing.Outcome)),
	)
	if existing.Outcome == entities.OutcomeDeadLettered {
		return existing, deadLetteredError(existing)
	}
	return existing, apperrors.ErrDuplicateMessage(sourceMessageID)
}

func deadLetteredError(state *entities.ProcessingState) error {
	cause := "retries exhausted"
	if state.LastError != nil {
		cause = *state.LastError
	}
	return apperrors.ErrDeadLettered(state.SourceMessageID, errors.New(cause))
}
