package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meetnote-labs/meetnote/internal/domain/repositories"
	"github.com/meetnote-labs/meetnote/internal/infrastructure/vectorstore"
	"github.com/meetnote-labs/meetnote/internal/usecase/index"
	"github.com/meetnote-labs/meetnote/pkg/config"
	"github.com/meetnote-labs/meetnote/pkg/llm"
)

const answerSystemPrompt = `You answer questions about the user's past meetings.
Use only the meeting excerpts provided as context. If the context does not
contain the answer, say you don't have a record of it.`

// Answerer serves /ask queries: retrieve similar meeting chunks, then answer
// grounded on them. The vector index trails the relational store, so very
// recent meetings may not surface yet.
type Answerer struct {
	indexer  *index.Indexer
	meetings repositories.MeetingRepository
	chatter  llm.Chatter
	cfg      config.LLMConfig
	logger   *zap.Logger
}

// NewAnswerer constructs an answerer
func NewAnswerer(indexer *index.Indexer, meetings repositories.MeetingRepository, chatter llm.Chatter, cfg config.LLMConfig, logger *zap.Logger) *Answerer {
	return &Answerer{
		indexer:  indexer,
		meetings: meetings,
		chatter:  chatter,
		cfg:      cfg,
		logger:   logger,
	}
}

// Answer retrieves context for the question and generates a grounded reply.
// Questions may carry inline filters: "category:work", "since:2026-03-01"
// and "until:2026-04-01" narrow retrieval and are stripped from the text
// sent to the model.
func (a *Answerer) Answer(ctx context.Context, question string) (string, error) {
	topK := a.cfg.ContextResults
	if topK <= 0 {
		topK = 5
	}

	filter, question := parseFilter(question)

	results, err := a.indexer.Query(ctx, question, topK, filter)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "I don't have any stored meetings to answer from yet.", nil
	}

	// Pull meeting titles so excerpts carry attribution
	idSet := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, r := range results {
		if !idSet[r.MeetingID] {
			idSet[r.MeetingID] = true
			ids = append(ids, r.MeetingID)
		}
	}
	meetings, err := a.meetings.GetByIDs(ctx, ids)
	if err != nil {
		return "", err
	}
	titles := make(map[uuid.UUID]string, len(meetings))
	for _, m := range meetings {
		titles[m.ID] = fmt.Sprintf("%s (%s)", m.Title, m.ReceivedAt.Format("2006-01-02"))
	}

	var b strings.Builder
	for _, r := range results {
		title := titles[r.MeetingID]
		if title == "" {
			title = "Unknown meeting"
		}
		fmt.Fprintf(&b, "[%s]\n%s\n\n", title, r.Content)
	}

	a.logger.Debug("answering query",
		zap.Int("context_chunks", len(results)),
		zap.Int("meetings", len(ids)),
	)

	return a.chatter.Chat(ctx, []llm.Message{
		{Role: "system", Content: answerSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("Context:\n\n%sQuestion: %s", b.String(), question)},
	}, llm.Options{Temperature: a.cfg.Temperature})
}

// parseFilter pulls inline filter tokens out of the question. Unparseable
// dates leave the token in the question text rather than guessing.
func parseFilter(question string) (vectorstore.SearchFilter, string) {
	var filter vectorstore.SearchFilter
	var rest []string

	for _, word := range strings.Fields(question) {
		switch {
		case strings.HasPrefix(word, "category:"):
			filter.Category = strings.ToLower(strings.TrimPrefix(word, "category:"))
			continue
		case strings.HasPrefix(word, "since:"):
			if d, err := time.Parse("2006-01-02", strings.TrimPrefix(word, "since:")); err == nil {
				filter.From = d
				continue
			}
		case strings.HasPrefix(word, "until:"):
			if d, err := time.Parse("2006-01-02", strings.TrimPrefix(word, "until:")); err == nil {
				// Inclusive end date: the window closes at the next midnight.
				filter.To = d.AddDate(0, 0, 1)
				continue
			}
		}
		rest = append(rest, word)
	}
	return filter, strings.Join(rest, " ")
}
