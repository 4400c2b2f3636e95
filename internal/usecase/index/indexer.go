package index

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/meetnote-labs/meetnote/internal/domain/entities"
	"github.com/meetnote-labs/meetnote/internal/domain/repositories"
	"github.com/meetnote-labs/meetnote/internal/infrastructure/vectorstore"
	"github.com/meetnote-labs/meetnote/pkg/config"
	"github.com/meetnote-labs/meetnote/pkg/llm"
	"github.com/meetnote-labs/meetnote/pkg/retry"
)

// Indexer embeds committed meeting content into the vector store. It runs
// after the relational commit, so an indexing failure never orphans
// embeddings; the reindex sweep picks unindexed meetings up later.
type Indexer struct {
	meetings repositories.MeetingRepository
	store    vectorstore.Store
	embedder llm.Embedder
	cfg      config.VectorConfig
	policy   retry.Policy
	logger   *zap.Logger
}

// NewIndexer constructs an indexer
func NewIndexer(meetings repositories.MeetingRepository, store vectorstore.Store, embedder llm.Embedder, vcfg config.VectorConfig, pcfg config.PipelineConfig, logger *zap.Logger) *Indexer {
	return &Indexer{
		meetings: meetings,
		store:    store,
		embedder: embedder,
		cfg:      vcfg,
		policy: retry.Policy{
			MaxAttempts: pcfg.IndexAttempts,
			BaseDelay:   pcfg.IndexBaseDelay,
			Multiplier:  2.0,
		},
		logger: logger,
	}
}

// IndexMeeting chunks, embeds and stores one meeting's content, then marks
// the meeting indexed. Safe to call repeatedly: chunks upsert in place.
func (i *Indexer) IndexMeeting(ctx context.Context, meeting *entities.Meeting) error {
	text := meeting.Title + "\n" + meeting.Summary + "\n" + meeting.Content
	chunks := vectorstore.Chunk(text, i.cfg.ChunkSize, i.cfg.ChunkOverlap)
	if len(chunks) == 0 {
		return i.meetings.MarkIndexed(ctx, meeting.ID)
	}

	docs := make([]vectorstore.Document, 0, len(chunks))
	for idx, chunk := range chunks {
		var vector []float32
		err := retry.Do(ctx, i.policy, func(ctx context.Context) error {
			var embedErr error
			vector, embedErr = i.embedder.Embed(ctx, chunk)
			return embedErr
		})
		if err != nil {
			return fmt.Errorf("embed chunk %d: %w", idx, err)
		}
		docs = append(docs, vectorstore.Document{
			MeetingID:  meeting.ID,
			ChunkIndex: idx,
			Content:    chunk,
			Category:   string(meeting.Category),
			ReceivedAt: meeting.ReceivedAt,
			Vector:     vector,
		})
	}

	err := retry.Do(ctx, i.policy, func(ctx context.Context) error {
		return i.store.Upsert(ctx, docs)
	})
	if err != nil {
		return err
	}

	if err := i.meetings.MarkIndexed(ctx, meeting.ID); err != nil {
		return err
	}

	i.logger.Info("📚 Meeting indexed",
		zap.String("meeting_id", meeting.ID.String()),
		zap.Int("chunks", len(docs)),
	)
	return nil
}

// Sweep indexes meetings whose earlier indexing attempt never completed
func (i *Indexer) Sweep(ctx context.Context, batchSize int) {
	pending, err := i.meetings.ListUnindexed(ctx, batchSize)
	if err != nil {
		i.logger.Error("❌ Reindex sweep failed to list meetings", zap.Error(err))
		return
	}

	for _, meeting := range pending {
		if ctx.Err() != nil {
			return
		}
		if err := i.IndexMeeting(ctx, meeting); err != nil {
			i.logger.Warn("⚠️ Reindex sweep skipping meeting",
				zap.String("meeting_id", meeting.ID.String()),
				zap.Error(err),
			)
		}
	}
}

// Query embeds the question and returns the most similar chunks matching
// the filter. The index trails the relational store, so results may omit
// very recent meetings.
func (i *Indexer) Query(ctx context.Context, question string, topK int, filter vectorstore.SearchFilter) ([]vectorstore.SearchResult, error) {
	vector, err := i.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}
	return i.store.Search(ctx, vector, topK, filter)
}
