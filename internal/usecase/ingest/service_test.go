package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/meetnote-labs/meetnote/errors"
	"github.com/meetnote-labs/meetnote/internal/domain/entities"
	"github.com/meetnote-labs/meetnote/internal/domain/repositories"
	"github.com/meetnote-labs/meetnote/pkg/config"
)

type fakeLedger struct {
	repositories.LedgerRepository

	result     repositories.BeginResult
	state      *entities.ProcessingState
	existing   *entities.ProcessingState // returned by GetBySourceMessageID
	errs       []error                   // consumed one per Begin call
	beginCalls int
	getCalls   int
}

func (f *fakeLedger) Begin(ctx context.Context, state *entities.ProcessingState) (repositories.BeginResult, *entities.ProcessingState, error) {
	f.beginCalls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return "", nil, err
		}
	}
	if f.state != nil {
		return f.result, f.state, nil
	}
	return f.result, state, nil
}

func (f *fakeLedger) GetBySourceMessageID(ctx context.Context, sourceMessageID string) (*entities.ProcessingState, error) {
	f.getCalls++
	return f.existing, nil
}

type fakeDeduper struct {
	seen        bool
	err         error
	forgetCalls int
}

func (f *fakeDeduper) MarkSeen(ctx context.Context, sourceMessageID string) (bool, error) {
	return f.seen, f.err
}

func (f *fakeDeduper) Forget(ctx context.Context, sourceMessageID string) error {
	f.forgetCalls++
	return nil
}

func (f *fakeDeduper) Close() error { return nil }

func ingestConfig() config.PipelineConfig {
	return config.PipelineConfig{
		IngestMaxAttempts: 3,
		IngestBaseDelay:   time.Millisecond,
		IngestMaxDelay:    5 * time.Millisecond,
	}
}

func testMessage() entities.InboundMessage {
	return entities.InboundMessage{
		SourceMessageID: "+1555:1700000000000",
		ConversationID:  "conv-1",
		Sender:          "Alice",
		Body:            "meeting notes",
		ReceivedAt:      time.Now(),
	}
}

func ledgerEntry(mutate func(*entities.ProcessingState)) *entities.ProcessingState {
	state := entities.NewProcessingState(testMessage())
	if mutate != nil {
		mutate(state)
	}
	return state
}

func TestAdmit_Fresh(t *testing.T) {
	ledger := &fakeLedger{result: repositories.BeginFresh}
	svc := NewService(ledger, &fakeDeduper{}, ingestConfig(), zap.NewNop())

	state, err := svc.Admit(context.Background(), testMessage())

	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, entities.OutcomePending, state.Outcome)
	assert.Equal(t, "meeting notes", state.Body)
}

func TestAdmit_ResumeProceedsAfterCrash(t *testing.T) {
	pending := ledgerEntry(func(s *entities.ProcessingState) { s.AttemptCount = 2 })
	ledger := &fakeLedger{result: repositories.BeginResume, state: pending}
	svc := NewService(ledger, &fakeDeduper{}, ingestConfig(), zap.NewNop())

	state, err := svc.Admit(context.Background(), testMessage())

	require.NoError(t, err)
	assert.Equal(t, pending, state)
}

func TestAdmit_DuplicateReturnsDuplicateError(t *testing.T) {
	done := ledgerEntry(func(s *entities.ProcessingState) { s.MarkAcceptedNoMeeting() })
	ledger := &fakeLedger{result: repositories.BeginDuplicate, state: done}
	svc := NewService(ledger, &fakeDeduper{}, ingestConfig(), zap.NewNop())

	state, err := svc.Admit(context.Background(), testMessage())

	assert.True(t, apperrors.IsDuplicate(err))
	assert.Equal(t, done, state)
}

func TestAdmit_DeadLetteredReturnsPermanentError(t *testing.T) {
	dead := ledgerEntry(func(s *entities.ProcessingState) { s.MarkDeadLettered("exhausted") })
	ledger := &fakeLedger{result: repositories.BeginDeadLettered, state: dead}
	svc := NewService(ledger, &fakeDeduper{}, ingestConfig(), zap.NewNop())

	state, err := svc.Admit(context.Background(), testMessage())

	assert.True(t, apperrors.IsPermanent(err))
	assert.Contains(t, err.Error(), "exhausted")
	assert.Equal(t, dead, state)
}

func TestAdmit_CacheHitOnTerminalEntrySkipsLedgerWrite(t *testing.T) {
	done := ledgerEntry(func(s *entities.ProcessingState) { s.MarkAcceptedNoMeeting() })
	ledger := &fakeLedger{existing: done}
	svc := NewService(ledger, &fakeDeduper{seen: true}, ingestConfig(), zap.NewNop())

	state, err := svc.Admit(context.Background(), testMessage())

	assert.True(t, apperrors.IsDuplicate(err))
	assert.Equal(t, done, state)
	assert.Equal(t, 0, ledger.beginCalls)
	assert.Equal(t, 1, ledger.getCalls)
}

func TestAdmit_CacheHitOnDeadLetterSkipsLedgerWrite(t *testing.T) {
	dead := ledgerEntry(func(s *entities.ProcessingState) { s.MarkDeadLettered("boom") })
	ledger := &fakeLedger{existing: dead}
	svc := NewService(ledger, &fakeDeduper{seen: true}, ingestConfig(), zap.NewNop())

	_, err := svc.Admit(context.Background(), testMessage())

	assert.True(t, apperrors.IsPermanent(err))
	assert.Equal(t, 0, ledger.beginCalls)
}

func TestAdmit_CacheHitOnPendingEntryStillBegins(t *testing.T) {
	// A key left by a crashed run: the row is still pending and must be
	// resumed, not treated as a duplicate.
	pending := ledgerEntry(nil)
	ledger := &fakeLedger{result: repositories.BeginResume, state: pending, existing: pending}
	svc := NewService(ledger, &fakeDeduper{seen: true}, ingestConfig(), zap.NewNop())

	state, err := svc.Admit(context.Background(), testMessage())

	require.NoError(t, err)
	assert.Equal(t, pending, state)
	assert.Equal(t, 1, ledger.beginCalls)
}

func TestAdmit_CacheHitWithoutLedgerRowFallsThrough(t *testing.T) {
	ledger := &fakeLedger{result: repositories.BeginFresh}
	svc := NewService(ledger, &fakeDeduper{seen: true}, ingestConfig(), zap.NewNop())

	state, err := svc.Admit(context.Background(), testMessage())

	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, 1, ledger.beginCalls)
}

func TestAdmit_CacheFailureFallsThrough(t *testing.T) {
	ledger := &fakeLedger{result: repositories.BeginFresh}
	svc := NewService(ledger, &fakeDeduper{err: errors.New("redis down")}, ingestConfig(), zap.NewNop())

	state, err := svc.Admit(context.Background(), testMessage())

	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, 0, ledger.getCalls)
}

func TestAdmit_RetriesTransientLedgerErrors(t *testing.T) {
	ledger := &fakeLedger{
		result: repositories.BeginFresh,
		errs:   []error{errors.New("connection refused"), nil},
	}
	svc := NewService(ledger, &fakeDeduper{}, ingestConfig(), zap.NewNop())

	state, err := svc.Admit(context.Background(), testMessage())

	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, 2, ledger.beginCalls)
}

func TestAdmit_LedgerExhaustionDropsDedupKey(t *testing.T) {
	ledger := &fakeLedger{
		errs: []error{
			errors.New("connection refused"),
			errors.New("connection refused"),
			errors.New("connection refused"),
		},
	}
	deduper := &fakeDeduper{}
	svc := NewService(ledger, deduper, ingestConfig(), zap.NewNop())

	state, err := svc.Admit(context.Background(), testMessage())

	assert.Nil(t, state)
	require.Error(t, err)
	var appErr apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrorCode_LEDGER_UNAVAILABLE, appErr.Code)
	assert.Equal(t, 3, ledger.beginCalls)
	assert.Equal(t, 1, deduper.forgetCalls)
}
