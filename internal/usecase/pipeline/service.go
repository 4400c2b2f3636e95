package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/meetnote-labs/meetnote/errors"
	"github.com/meetnote-labs/meetnote/internal/domain/entities"
	"github.com/meetnote-labs/meetnote/internal/domain/repositories"
	"github.com/meetnote-labs/meetnote/internal/infrastructure/bridge"
	"github.com/meetnote-labs/meetnote/internal/usecase/classify"
	"github.com/meetnote-labs/meetnote/internal/usecase/dispatch"
	"github.com/meetnote-labs/meetnote/internal/usecase/extract"
	"github.com/meetnote-labs/meetnote/internal/usecase/index"
	"github.com/meetnote-labs/meetnote/internal/usecase/ingest"
	"github.com/meetnote-labs/meetnote/internal/usecase/query"
	"github.com/meetnote-labs/meetnote/internal/usecase/remind"
	"github.com/meetnote-labs/meetnote/pkg/config"
	"github.com/meetnote-labs/meetnote/pkg/retry"
)

// Service wires the pipeline stages behind a bounded worker pool: a poller
// drains the bridge into a queue, workers run intake through dispatch, and
// background tickers sweep unindexed meetings and expired ledger entries.
type Service struct {
	bridge     bridge.Client
	ingest     *ingest.Service
	classifier *classify.Classifier
	engine     *extract.Engine
	resolver   *extract.Resolver
	meetings   repositories.MeetingRepository
	ledger     repositories.LedgerRepository
	indexer    *index.Indexer
	reminders  *remind.Service
	dispatcher *dispatch.Dispatcher
	answerer   *query.Answerer
	cfg        *config.Config
	logger     *zap.Logger

	jobs     chan entities.InboundMessage
	stopChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

// NewService constructs the pipeline
func NewService(
	b bridge.Client,
	ingestSvc *ingest.Service,
	classifier *classify.Classifier,
	engine *extract.Engine,
	resolver *extract.Resolver,
	meetings repositories.MeetingRepository,
	ledger repositories.LedgerRepository,
	indexer *index.Indexer,
	reminders *remind.Service,
	dispatcher *dispatch.Dispatcher,
	answerer *query.Answerer,
	cfg *config.Config,
	logger *zap.Logger,
) *Service {
	return &Service{
		bridge:     b,
		ingest:     ingestSvc,
		classifier: classifier,
		engine:     engine,
		resolver:   resolver,
		meetings:   meetings,
		ledger:     ledger,
		indexer:    indexer,
		reminders:  reminders,
		dispatcher: dispatcher,
		answerer:   answerer,
		cfg:        cfg,
		logger:     logger,
		jobs:       make(chan entities.InboundMessage, cfg.Pipeline.QueueSize),
	}
}

// Start launches the poller, the worker pool and the sweep tickers
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("pipeline already running")
	}
	s.running = true
	s.stopChan = make(chan struct{})

	s.logger.Info("🚀 Starting pipeline",
		zap.Int("workers", s.cfg.Pipeline.Workers),
		zap.Duration("poll_interval", s.cfg.Bridge.PollInterval),
	)

	s.wg.Add(1)
	go s.poller(ctx)

	for i := 0; i < s.cfg.Pipeline.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.wg.Add(1)
	go s.recoverPending(ctx)

	s.wg.Add(1)
	go s.reindexSweeper(ctx)

	s.wg.Add(1)
	go s.ledgerSweeper(ctx)

	return nil
}

// Stop drains the workers and waits for in-flight messages to finish
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return fmt.Errorf("pipeline not running")
	}

	s.logger.Info("🛑 Stopping pipeline...")
	close(s.stopChan)
	s.wg.Wait()
	s.running = false
	s.logger.Info("✅ Pipeline stopped")

	return nil
}

// poller drains the bridge receive queue into the worker channel
func (s *Service) poller(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Bridge.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			messages, err := s.bridge.Receive(ctx)
			if err != nil {
				s.logger.Warn("⚠️ Bridge receive failed", zap.Error(err))
				continue
			}
			for _, msg := range messages {
				select {
				case s.jobs <- msg:
				case <-s.stopChan:
					return
				}
			}
		}
	}
}

func (s *Service) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	s.logger.Info("👷 Worker started", zap.Int("worker_id", workerID))

	for {
		select {
		case <-s.stopChan:
			s.logger.Info("👷 Worker stopping", zap.Int("worker_id", workerID))
			return
		case msg := <-s.jobs:
			jobCtx, cancel := context.WithTimeout(ctx, s.cfg.Pipeline.JobTimeout)
			s.Process(jobCtx, msg)
			cancel()
		}
	}
}

// recoverPending requeues ledger entries a previous run left pending. The
// entries carry the raw message body, so recovery does not depend on the
// bridge redelivering anything.
func (s *Service) recoverPending(ctx context.Context) {
	defer s.wg.Done()

	states, err := s.ledger.ListPending(ctx, time.Now(), s.cfg.Pipeline.QueueSize)
	if err != nil {
		s.logger.Error("❌ Failed to list pending ledger entries for recovery", zap.Error(err))
		return
	}
	if len(states) == 0 {
		return
	}

	s.logger.Info("🔁 Requeuing interrupted messages", zap.Int("count", len(states)))
	for _, state := range states {
		select {
		case s.jobs <- state.Message():
		case <-s.stopChan:
			return
		}
	}
}

// Process runs one message through the full pipeline. Exported so crash
// recovery and tests can push messages without the poller.
func (s *Service) Process(ctx context.Context, msg entities.InboundMessage) {
	// Explicit query command: answered directly, never enters the ledger.
	if msg.IsQuery() {
		s.answerAndSend(ctx, msg, msg.QueryText())
		return
	}

	state, err := s.ingest.Admit(ctx, msg)
	switch {
	case err == nil:
	case apperrors.IsDuplicate(err):
		s.logger.Info("⏭️ Skipping duplicate message",
			zap.String("source_message_id", msg.SourceMessageID),
		)
		return
	case apperrors.IsPermanent(err):
		s.logger.Info("⛔ Skipping dead-lettered message",
			zap.String("source_message_id", msg.SourceMessageID),
		)
		return
	default:
		s.logger.Error("❌ Intake failed; message stays undelivered for redelivery",
			zap.String("source_message_id", msg.SourceMessageID),
			zap.Error(err),
		)
		return
	}

	verdict := s.classifier.Classify(ctx, msg.Body)
	switch verdict.Kind {
	case classify.KindQuery:
		// A natural-language question: complete the ledger entry, then
		// answer from the index without creating a meeting.
		state.MarkAcceptedNoMeeting()
		if err := s.ledger.Update(ctx, state); err != nil {
			s.logger.Error("❌ Failed to complete ledger entry", zap.Error(err))
			return
		}
		s.answerAndSend(ctx, msg, msg.Body)
		return
	case classify.KindUnknown:
		state.MarkAcceptedNoMeeting()
		if err := s.ledger.Update(ctx, state); err != nil {
			s.logger.Error("❌ Failed to complete ledger entry", zap.Error(err))
			return
		}
		s.dispatcher.Reply(ctx, state,
			"🤔 I couldn't tell what to do with that. Send meeting notes to store them, or use /ask to query past meetings.", nil)
		return
	}

	// Extraction. Transient LLM failures retry here; validation failures
	// are handled inside the engine's degrade path.
	var outcome *extract.Outcome
	err = retry.Do(ctx, retry.Policy{
		MaxAttempts: s.cfg.Pipeline.IngestMaxAttempts,
		BaseDelay:   s.cfg.Pipeline.IngestBaseDelay,
		MaxDelay:    s.cfg.Pipeline.IngestMaxDelay,
		Multiplier:  2.0,
	}, func(ctx context.Context) error {
		var exErr error
		outcome, exErr = s.engine.Extract(ctx, msg.Body, msg.ReceivedAt)
		return exErr
	})
	if err != nil {
		s.deadLetter(ctx, state, apperrors.ErrDeadLettered(msg.SourceMessageID, err))
		return
	}

	meeting, items := extract.Assemble(msg, outcome, s.resolver)

	var commitResult repositories.CommitResult
	err = retry.Do(ctx, retry.DefaultPolicy, func(ctx context.Context) error {
		var commitErr error
		commitResult, commitErr = s.meetings.CommitMeeting(ctx, meeting, items, state)
		return commitErr
	})
	if err != nil {
		// Ledger entry stays pending; redelivery retries the whole pass.
		s.logger.Error("❌ Commit failed, leaving message pending",
			zap.String("source_message_id", msg.SourceMessageID),
			zap.Error(err),
		)
		return
	}

	if commitResult == repositories.CommitDuplicate {
		s.logger.Info("⏭️ Commit hit existing meeting, skipping reply",
			zap.String("source_message_id", msg.SourceMessageID),
		)
		return
	}

	s.logger.Info("✅ Meeting committed",
		zap.String("meeting_id", meeting.ID.String()),
		zap.String("title", meeting.Title),
		zap.String("status", string(meeting.Status)),
		zap.Int("action_items", len(items)),
	)

	// Reminders are best-effort: a failure here costs the attachment, not
	// the meeting.
	var attachments []bridge.Attachment
	reminderCount := 0
	artifact, err := s.reminders.Generate(ctx, meeting, items, msg.ReceivedAt)
	if err != nil {
		s.logger.Warn("⚠️ Reminder generation failed", zap.Error(err))
	} else if artifact != nil {
		reminderCount = len(artifact.Reminders)
		attachments = append(attachments, bridge.Attachment{
			Filename:    "reminders.ics",
			ContentType: "text/calendar",
			Data:        []byte(artifact.ICS),
		})
	}

	s.dispatcher.Reply(ctx, state, dispatch.ConfirmationMessage(meeting, items, reminderCount), attachments)

	// Index asynchronously after commit. A failure leaves the meeting
	// unindexed for the sweep; it can never orphan embeddings.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		idxCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Pipeline.IndexTimeout)
		defer cancel()
		if err := s.indexer.IndexMeeting(idxCtx, meeting); err != nil {
			s.logger.Warn("⚠️ Async indexing failed, sweep will retry",
				zap.String("meeting_id", meeting.ID.String()),
				zap.Error(err),
			)
		}
	}()
}

// answerAndSend runs the retrieval-and-answer path and delivers the reply
func (s *Service) answerAndSend(ctx context.Context, msg entities.InboundMessage, question string) {
	answer, err := s.answerer.Answer(ctx, question)
	if err != nil {
		s.logger.Error("❌ Query answering failed",
			zap.String("source_message_id", msg.SourceMessageID),
			zap.Error(err),
		)
		answer = "Sorry, I couldn't search your meetings right now."
	}

	err = retry.Do(ctx, retry.Policy{
		MaxAttempts: s.cfg.Pipeline.DispatchAttempts,
		BaseDelay:   s.cfg.Pipeline.DispatchBaseDelay,
		MaxDelay:    s.cfg.Pipeline.DispatchMaxDelay,
		Multiplier:  2.0,
	}, func(ctx context.Context) error {
		return s.bridge.Send(ctx, msg.ConversationID, answer, nil)
	})
	if err != nil {
		s.logger.Error("❌ Query reply delivery failed", zap.Error(err))
	}
}

func (s *Service) deadLetter(ctx context.Context, state *entities.ProcessingState, cause error) {
	state.MarkDeadLettered(cause.Error())
	if err := s.ledger.Update(ctx, state); err != nil {
		s.logger.Error("❌ Failed to dead-letter ledger entry",
			zap.String("source_message_id", state.SourceMessageID),
			zap.Error(err),
		)
		return
	}
	s.logger.Error("⛔ Message dead-lettered",
		zap.String("source_message_id", state.SourceMessageID),
		zap.Error(cause),
	)
}

// reindexSweeper periodically indexes meetings whose async indexing failed
func (s *Service) reindexSweeper(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Pipeline.ReindexInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.indexer.Sweep(ctx, 20)
		}
	}
}

// ledgerSweeper prunes old completed ledger entries
func (s *Service) ledgerSweeper(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Pipeline.LedgerSweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-s.cfg.Pipeline.LedgerRetention)
			n, err := s.ledger.DeleteCompletedBefore(ctx, cutoff)
			if err != nil {
				s.logger.Warn("⚠️ Ledger sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.logger.Info("🧹 Pruned completed ledger entries", zap.Int64("count", n))
			}
		}
	}
}

// Announce sends a startup note so the account owner sees the bot is live
func (s *Service) Announce(ctx context.Context) {
	if !s.cfg.Bridge.AnnounceStart {
		return
	}
	err := s.bridge.Send(ctx, s.cfg.Bridge.Account,
		"🤖 Meeting assistant online. Send meeting notes or /ask a question.", nil)
	if err != nil {
		s.logger.Warn("⚠️ Startup announcement failed", zap.Error(err))
	}
}
