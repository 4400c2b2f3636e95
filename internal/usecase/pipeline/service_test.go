package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/meetnote-labs/meetnote/internal/adapter/repository"
	"github.com/meetnote-labs/meetnote/internal/domain/entities"
	"github.com/meetnote-labs/meetnote/internal/domain/repositories"
	"github.com/meetnote-labs/meetnote/internal/infrastructure/bridge"
	"github.com/meetnote-labs/meetnote/internal/infrastructure/cache"
	"github.com/meetnote-labs/meetnote/internal/infrastructure/storage"
	"github.com/meetnote-labs/meetnote/internal/infrastructure/vectorstore"
	"github.com/meetnote-labs/meetnote/internal/usecase/classify"
	"github.com/meetnote-labs/meetnote/internal/usecase/dispatch"
	"github.com/meetnote-labs/meetnote/internal/usecase/extract"
	"github.com/meetnote-labs/meetnote/internal/usecase/index"
	"github.com/meetnote-labs/meetnote/internal/usecase/ingest"
	"github.com/meetnote-labs/meetnote/internal/usecase/query"
	"github.com/meetnote-labs/meetnote/internal/usecase/remind"
	"github.com/meetnote-labs/meetnote/pkg/config"
	"github.com/meetnote-labs/meetnote/pkg/llm"
)

const meetingBody = "Meeting notes from today: we discussed the Q3 budget and agreed on next steps. " +
	"Action items were assigned. Alice will send the budget proposal by Friday."

const extractionReply = `{
	"title": "Q3 budget planning",
	"summary": "The team reviewed the Q3 budget and assigned follow-ups.",
	"category": "work",
	"participants": ["Alice"],
	"action_items": [
		{"title": "Send proposal", "description": "Send the budget proposal", "due_date": "by Friday", "priority": "high", "assignees": ["Alice"]}
	]
}`

// fakeBridge records sends and can be told to fail
type fakeBridge struct {
	mu      sync.Mutex
	sends   []sentMessage
	sendErr error
}

type sentMessage struct {
	conversationID string
	message        string
	attachments    []bridge.Attachment
}

func (f *fakeBridge) Receive(ctx context.Context) ([]entities.InboundMessage, error) {
	return nil, nil
}

func (f *fakeBridge) Send(ctx context.Context, conversationID, message string, attachments []bridge.Attachment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sends = append(f.sends, sentMessage{conversationID, message, attachments})
	return nil
}

func (f *fakeBridge) sent() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sends...)
}

// scriptedChatter returns canned replies for extraction, routing and summary
// calls. chatQueue is consumed first, one reply per Chat call; chatReply is
// the fallback once the queue is drained.
type scriptedChatter struct {
	mu        sync.Mutex
	jsonReply string
	chatReply string
	chatQueue []string
	chatCalls int
}

func (s *scriptedChatter) ChatJSON(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	return s.jsonReply, nil
}

func (s *scriptedChatter) Chat(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatCalls++
	if len(s.chatQueue) > 0 {
		reply := s.chatQueue[0]
		s.chatQueue = s.chatQueue[1:]
		return reply, nil
	}
	return s.chatReply, nil
}

func (s *scriptedChatter) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatCalls
}

// keywordEmbedder embeds text as counts of topic keywords, giving
// deterministic similarity rankings.
type keywordEmbedder struct{}

func (keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	lower := strings.ToLower(text)
	return []float32{
		float32(strings.Count(lower, "budget")),
		float32(strings.Count(lower, "marketing")),
		1,
	}, nil
}

// failingMeetingRepo rejects every commit
type failingMeetingRepo struct {
	repositories.MeetingRepository
}

func (f *failingMeetingRepo) CommitMeeting(ctx context.Context, meeting *entities.Meeting, items []*entities.ActionItem, state *entities.ProcessingState) (repositories.CommitResult, error) {
	return "", errors.New("disk full")
}

type testHarness struct {
	svc      *Service
	bridge   *fakeBridge
	store    *vectorstore.MemoryStore
	meetings repositories.MeetingRepository
	ledger   repositories.LedgerRepository
	db       *gorm.DB
}

func testConfig() *config.Config {
	return &config.Config{
		Bridge: config.BridgeConfig{Account: "+15550001111", PollInterval: time.Second},
		LLM: config.LLMConfig{
			Temperature:    0.3,
			RetryTemp:      0.1,
			MaxContentLen:  10000,
			ContextResults: 5,
		},
		Vector: config.VectorConfig{ChunkSize: 2000, ChunkOverlap: 200},
		Pipeline: config.PipelineConfig{
			Workers:           2,
			QueueSize:         8,
			JobTimeout:        time.Minute,
			IndexTimeout:      time.Minute,
			Timezone:          "UTC",
			ClassifyThreshold: 0.6,
			ExtractionRetries: 2,
			IngestMaxAttempts: 2,
			IngestBaseDelay:   time.Millisecond,
			IngestMaxDelay:    5 * time.Millisecond,
			DispatchAttempts:  2,
			DispatchBaseDelay: time.Millisecond,
			DispatchMaxDelay:  5 * time.Millisecond,
			IndexAttempts:     2,
			IndexBaseDelay:    time.Millisecond,
			ReindexInterval:   time.Hour,
			LedgerSweepEvery:  time.Hour,
			LedgerRetention:   720 * time.Hour,
		},
		Reminder: config.ReminderConfig{
			LeadTime:     15 * time.Minute,
			TravelBuffer: 30 * time.Minute,
			DefaultHour:  17,
		},
	}
}

func newHarness(t *testing.T, chatter llm.Chatter, override func(repositories.MeetingRepository) repositories.MeetingRepository) *testHarness {
	t.Helper()

	dsn := fmt.Sprintf("file:pipeline_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&entities.Meeting{}, &entities.ActionItem{},
		&entities.ProcessingState{}, &entities.CalendarReminder{},
	))

	cfg := testConfig()
	log := zap.NewNop()

	meetings := repository.NewMeetingRepository(db)
	if override != nil {
		meetings = override(meetings)
	}
	ledger := repository.NewLedgerRepository(db)
	reminderRepo := repository.NewReminderRepository(db)

	store := vectorstore.NewMemoryStore()
	b := &fakeBridge{}

	indexer := index.NewIndexer(meetings, store, keywordEmbedder{}, cfg.Vector, cfg.Pipeline, log)
	engine := extract.NewEngine(chatter, cfg.LLM, cfg.Pipeline.ExtractionRetries, log)
	svc := NewService(
		b,
		ingest.NewService(ledger, cache.NoopDeduper{}, cfg.Pipeline, log),
		classify.NewClassifier(cfg.Pipeline.ClassifyThreshold, engine, log),
		engine,
		extract.NewResolver(time.UTC, cfg.Reminder.DefaultHour),
		meetings,
		ledger,
		indexer,
		remind.NewService(reminderRepo, storage.NoopArchiver{}, cfg.Reminder, log),
		dispatch.NewDispatcher(b, ledger, cfg.Pipeline, log),
		query.NewAnswerer(indexer, meetings, chatter, cfg.LLM, log),
		cfg,
		log,
	)

	return &testHarness{svc: svc, bridge: b, store: store, meetings: meetings, ledger: ledger, db: db}
}

func inbound(id, body string) entities.InboundMessage {
	return entities.InboundMessage{
		SourceMessageID: id,
		ConversationID:  "conv-1",
		Sender:          "Alice",
		Body:            body,
		ReceivedAt:      time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC), // Monday
	}
}

func TestProcess_HappyPath(t *testing.T) {
	h := newHarness(t, &scriptedChatter{jsonReply: extractionReply}, nil)
	ctx := context.Background()

	h.svc.Process(ctx, inbound("msg-1", meetingBody))

	// Meeting committed with its action item
	meeting, err := h.meetings.GetBySourceMessageID(ctx, "msg-1")
	require.NoError(t, err)
	require.NotNil(t, meeting)
	assert.Equal(t, "Q3 budget planning", meeting.Title)
	assert.Equal(t, entities.MeetingStatusProcessed, meeting.Status)
	require.Len(t, meeting.ActionItems, 1)
	require.NotNil(t, meeting.ActionItems[0].DueDate)
	assert.Equal(t, time.Date(2026, 3, 13, 17, 0, 0, 0, time.UTC), meeting.ActionItems[0].DueDate.UTC())

	// Ledger accepted
	state, err := h.ledger.GetBySourceMessageID(ctx, "msg-1")
	require.NoError(t, err)
	assert.Equal(t, entities.OutcomeAccepted, state.Outcome)
	assert.Nil(t, state.DispatchError)

	// Confirmation reply with a calendar attachment went out
	sends := h.bridge.sent()
	require.Len(t, sends, 1)
	assert.Equal(t, "conv-1", sends[0].conversationID)
	assert.Contains(t, sends[0].message, "Q3 budget planning")
	assert.Contains(t, sends[0].message, "Send proposal")
	require.Len(t, sends[0].attachments, 1)
	assert.Equal(t, "reminders.ics", sends[0].attachments[0].Filename)
	assert.Contains(t, string(sends[0].attachments[0].Data), "BEGIN:VCALENDAR")

	// Async indexing completes and marks the meeting
	assert.Eventually(t, func() bool {
		return h.store.Len() > 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		m, _ := h.meetings.GetBySourceMessageID(ctx, "msg-1")
		return m != nil && m.IndexedAt != nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestProcess_RedeliveryIsIdempotent(t *testing.T) {
	h := newHarness(t, &scriptedChatter{jsonReply: extractionReply}, nil)
	ctx := context.Background()

	h.svc.Process(ctx, inbound("msg-1", meetingBody))
	h.svc.Process(ctx, inbound("msg-1", meetingBody))

	var count int64
	require.NoError(t, h.db.Model(&entities.Meeting{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// Only the first pass replied
	assert.Len(t, h.bridge.sent(), 1)
}

func TestProcess_UnplaceableContentGetsClarification(t *testing.T) {
	chatter := &scriptedChatter{jsonReply: extractionReply, chatQueue: []string{"unknown"}}
	h := newHarness(t, chatter, nil)
	ctx := context.Background()

	h.svc.Process(ctx, inbound("msg-1", "hey, lunch tomorrow?"))

	// The heuristics could not place it, so the model was consulted
	assert.Equal(t, 1, chatter.calls())

	meeting, err := h.meetings.GetBySourceMessageID(ctx, "msg-1")
	require.NoError(t, err)
	assert.Nil(t, meeting)

	state, err := h.ledger.GetBySourceMessageID(ctx, "msg-1")
	require.NoError(t, err)
	assert.Equal(t, entities.OutcomeAccepted, state.Outcome)
	assert.Nil(t, state.MeetingID)

	sends := h.bridge.sent()
	require.Len(t, sends, 1)
	assert.Contains(t, sends[0].message, "couldn't tell")
}

func TestProcess_InconclusiveQuestionRoutedToQueryByModel(t *testing.T) {
	chatter := &scriptedChatter{jsonReply: extractionReply}
	h := newHarness(t, chatter, nil)
	ctx := context.Background()

	h.svc.Process(ctx, inbound("msg-1", meetingBody))
	require.Eventually(t, func() bool { return h.store.Len() > 0 }, 2*time.Second, 10*time.Millisecond)

	// One weak indicator, short text: below the heuristic threshold, the
	// model decides this is a question about stored meetings.
	chatter.mu.Lock()
	chatter.chatQueue = []string{"query", "You discussed the Q3 budget."}
	chatter.mu.Unlock()
	h.svc.Process(ctx, inbound("msg-2", "what did we discuss in the budget meeting?"))

	sends := h.bridge.sent()
	require.Len(t, sends, 2)
	assert.Equal(t, "You discussed the Q3 budget.", sends[1].message)

	// No meeting was created; the ledger entry completed without one
	meeting, err := h.meetings.GetBySourceMessageID(ctx, "msg-2")
	require.NoError(t, err)
	assert.Nil(t, meeting)

	state, err := h.ledger.GetBySourceMessageID(ctx, "msg-2")
	require.NoError(t, err)
	assert.Equal(t, entities.OutcomeAccepted, state.Outcome)
	assert.Nil(t, state.MeetingID)
}

func TestProcess_InconclusiveMeetingRoutedToExtractionByModel(t *testing.T) {
	// Two short sentences with a single indicator still hold extractable
	// content when the model says so.
	chatter := &scriptedChatter{jsonReply: extractionReply, chatQueue: []string{"meeting_transcript"}}
	h := newHarness(t, chatter, nil)
	ctx := context.Background()

	h.svc.Process(ctx, inbound("msg-1", "Synced with Alice on the budget."))

	meeting, err := h.meetings.GetBySourceMessageID(ctx, "msg-1")
	require.NoError(t, err)
	require.NotNil(t, meeting)
	assert.Equal(t, "Q3 budget planning", meeting.Title)
}

func TestProcess_DegradedExtractionStillCommits(t *testing.T) {
	h := newHarness(t, &scriptedChatter{
		jsonReply: "not json at all",
		chatReply: "The team discussed the budget.",
	}, nil)
	ctx := context.Background()

	h.svc.Process(ctx, inbound("msg-1", meetingBody))

	meeting, err := h.meetings.GetBySourceMessageID(ctx, "msg-1")
	require.NoError(t, err)
	require.NotNil(t, meeting)
	assert.Equal(t, entities.MeetingStatusDegraded, meeting.Status)
	assert.Equal(t, "The team discussed the budget.", meeting.Summary)
	assert.Empty(t, meeting.ActionItems)

	sends := h.bridge.sent()
	require.Len(t, sends, 1)
	assert.Contains(t, sends[0].message, "summary only")
}

func TestProcess_ExhaustedExtractionDeadLetters(t *testing.T) {
	h := newHarness(t, &scriptedChatter{jsonReply: "not json", chatReply: "  "}, nil)
	ctx := context.Background()

	h.svc.Process(ctx, inbound("msg-1", meetingBody))

	state, err := h.ledger.GetBySourceMessageID(ctx, "msg-1")
	require.NoError(t, err)
	assert.Equal(t, entities.OutcomeDeadLettered, state.Outcome)
	require.NotNil(t, state.LastError)

	// No meeting, no reply
	meeting, err := h.meetings.GetBySourceMessageID(ctx, "msg-1")
	require.NoError(t, err)
	assert.Nil(t, meeting)
	assert.Empty(t, h.bridge.sent())

	// Redelivery is skipped outright
	h.svc.Process(ctx, inbound("msg-1", meetingBody))
	assert.Empty(t, h.bridge.sent())
}

func TestProcess_CommitFailureLeavesNoOrphanEmbeddings(t *testing.T) {
	h := newHarness(t, &scriptedChatter{jsonReply: extractionReply},
		func(real repositories.MeetingRepository) repositories.MeetingRepository {
			return &failingMeetingRepo{MeetingRepository: real}
		})
	ctx := context.Background()

	h.svc.Process(ctx, inbound("msg-1", meetingBody))

	// Nothing indexed, no reply, ledger still pending for redelivery
	assert.Equal(t, 0, h.store.Len())
	assert.Empty(t, h.bridge.sent())

	state, err := h.ledger.GetBySourceMessageID(ctx, "msg-1")
	require.NoError(t, err)
	assert.Equal(t, entities.OutcomePending, state.Outcome)
}

func TestProcess_DispatchFailureRecordedButMeetingStaysCommitted(t *testing.T) {
	h := newHarness(t, &scriptedChatter{jsonReply: extractionReply}, nil)
	h.bridge.sendErr = errors.New("connection refused")
	ctx := context.Background()

	h.svc.Process(ctx, inbound("msg-1", meetingBody))

	meeting, err := h.meetings.GetBySourceMessageID(ctx, "msg-1")
	require.NoError(t, err)
	require.NotNil(t, meeting)

	state, err := h.ledger.GetBySourceMessageID(ctx, "msg-1")
	require.NoError(t, err)
	assert.Equal(t, entities.OutcomeAccepted, state.Outcome)
	require.NotNil(t, state.DispatchError)
	assert.Contains(t, *state.DispatchError, "connection refused")
}

func TestProcess_QueryAnswersFromIndexedMeetings(t *testing.T) {
	chatter := &scriptedChatter{jsonReply: extractionReply, chatReply: "You agreed to send the budget proposal by Friday."}
	h := newHarness(t, chatter, nil)
	ctx := context.Background()

	h.svc.Process(ctx, inbound("msg-1", meetingBody))
	require.Eventually(t, func() bool { return h.store.Len() > 0 }, 2*time.Second, 10*time.Millisecond)

	h.svc.Process(ctx, inbound("msg-2", "/ask what did we decide about the budget?"))

	sends := h.bridge.sent()
	require.Len(t, sends, 2)
	assert.Equal(t, "You agreed to send the budget proposal by Friday.", sends[1].message)

	// Queries bypass the ledger entirely
	state, err := h.ledger.GetBySourceMessageID(ctx, "msg-2")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestProcess_QueryWithEmptyIndex(t *testing.T) {
	h := newHarness(t, &scriptedChatter{}, nil)

	h.svc.Process(context.Background(), inbound("msg-1", "/ask anything stored?"))

	sends := h.bridge.sent()
	require.Len(t, sends, 1)
	assert.Contains(t, sends[0].message, "don't have any stored meetings")
}

func TestStart_RecoversPendingLedgerEntries(t *testing.T) {
	h := newHarness(t, &scriptedChatter{jsonReply: extractionReply}, nil)
	ctx := context.Background()

	// A previous run recorded the message and crashed before committing.
	// The pending entry carries the body, so no redelivery is needed.
	_, _, err := h.ledger.Begin(ctx, entities.NewProcessingState(inbound("msg-1", meetingBody)))
	require.NoError(t, err)

	require.NoError(t, h.svc.Start(ctx))
	defer func() { require.NoError(t, h.svc.Stop()) }()

	require.Eventually(t, func() bool {
		state, err := h.ledger.GetBySourceMessageID(ctx, "msg-1")
		return err == nil && state != nil && state.Outcome == entities.OutcomeAccepted
	}, 3*time.Second, 10*time.Millisecond)

	meeting, err := h.meetings.GetBySourceMessageID(ctx, "msg-1")
	require.NoError(t, err)
	require.NotNil(t, meeting)
	assert.Equal(t, "Q3 budget planning", meeting.Title)
}

func TestProcess_ConcurrentRedeliveryCommitsOnce(t *testing.T) {
	h := newHarness(t, &scriptedChatter{jsonReply: extractionReply}, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.svc.Process(ctx, inbound("msg-1", meetingBody))
		}()
	}
	wg.Wait()

	var count int64
	require.NoError(t, h.db.Model(&entities.Meeting{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// Only the pass that inserted replied
	assert.Len(t, h.bridge.sent(), 1)

	state, err := h.ledger.GetBySourceMessageID(ctx, "msg-1")
	require.NoError(t, err)
	require.NotNil(t, state.MeetingID)
}

func TestStartStop(t *testing.T) {
	h := newHarness(t, &scriptedChatter{jsonReply: extractionReply}, nil)

	require.NoError(t, h.svc.Start(context.Background()))
	assert.Error(t, h.svc.Start(context.Background()))

	require.NoError(t, h.svc.Stop())
	assert.Error(t, h.svc.Stop())
}

func TestAnnounce(t *testing.T) {
	h := newHarness(t, &scriptedChatter{}, nil)
	h.svc.cfg.Bridge.AnnounceStart = true

	h.svc.Announce(context.Background())

	sends := h.bridge.sent()
	require.Len(t, sends, 1)
	assert.Equal(t, "+15550001111", sends[0].conversationID)
}

func TestMeetingIDLinkedOnLedger(t *testing.T) {
	h := newHarness(t, &scriptedChatter{jsonReply: extractionReply}, nil)
	ctx := context.Background()

	h.svc.Process(ctx, inbound("msg-1", meetingBody))

	meeting, err := h.meetings.GetBySourceMessageID(ctx, "msg-1")
	require.NoError(t, err)
	state, err := h.ledger.GetBySourceMessageID(ctx, "msg-1")
	require.NoError(t, err)

	require.NotNil(t, state.MeetingID)
	assert.Equal(t, meeting.ID, *state.MeetingID)
}
