package extract

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	apperrors "github.com/meetnote-labs/meetnote/errors"
	"github.com/meetnote-labs/meetnote/internal/domain/entities"
	"github.com/meetnote-labs/meetnote/internal/usecase/classify"
	"github.com/meetnote-labs/meetnote/pkg/config"
	"github.com/meetnote-labs/meetnote/pkg/llm"
)

// Outcome is what extraction produced for one message. Either Result holds a
// validated structure, or Degraded is set and Summary carries the plain-text
// fallback.
type Outcome struct {
	Result   *ExtractionResult
	Raw      string // validated model payload, kept for reprocessing
	Degraded bool
	Summary  string
}

// Engine runs structured extraction with a bounded validation-retry budget.
// Malformed model output is retried at reduced temperature; when the budget
// is spent the engine degrades to a plain summary rather than dropping the
// message.
type Engine struct {
	chatter llm.Chatter
	parser  *Parser
	cfg     config.LLMConfig
	retries int
	logger  *zap.Logger
}

// NewEngine constructs an extraction engine
func NewEngine(chatter llm.Chatter, cfg config.LLMConfig, retries int, logger *zap.Logger) *Engine {
	if retries < 0 {
		retries = 2
	}
	return &Engine{
		chatter: chatter,
		parser:  NewParser(),
		cfg:     cfg,
		retries: retries,
		logger:  logger,
	}
}

// Extract structures the message content. Transient LLM failures propagate
// to the caller's retry loop; only validation failures consume the local
// retry budget.
func (e *Engine) Extract(ctx context.Context, content string, receivedAt time.Time) (*Outcome, error) {
	content = e.truncate(content)

	messages := []llm.Message{
		{Role: "system", Content: extractionSystemPrompt},
		{Role: "user", Content: extractionUserPrompt(content)},
	}

	var lastErr error
	for attempt := 0; attempt <= e.retries; attempt++ {
		temp := e.cfg.Temperature
		if attempt > 0 {
			temp = e.cfg.RetryTemp
		}

		raw, err := e.chatter.ChatJSON(ctx, messages, llm.Options{Temperature: temp})
		if err != nil {
			return nil, err
		}

		result, err := e.parser.Parse(raw)
		if err == nil {
			if result.Title == "" {
				result.Title = fallbackTitle(receivedAt)
			}
			return &Outcome{Result: result, Raw: extractJSON(raw)}, nil
		}

		lastErr = err
		e.logger.Warn("⚠️ Extraction output failed validation",
			zap.Int("attempt", attempt+1),
			zap.Float64("temperature", temp),
			zap.Error(err),
		)
	}

	e.logger.Warn("🪂 Degrading to plain summary",
		zap.Int("validation_attempts", e.retries+1),
	)

	summary, err := e.chatter.Chat(ctx, []llm.Message{
		{Role: "system", Content: summarySystemPrompt},
		{Role: "user", Content: summaryUserPrompt(content)},
	}, llm.Options{Temperature: e.cfg.RetryTemp})
	if err != nil {
		return nil, err
	}

	summary = strings.TrimSpace(summary)
	if summary == "" {
		return nil, apperrors.ErrExtractionExhausted(lastErr)
	}

	return &Outcome{Degraded: true, Summary: summary}, nil
}

// Label asks the model to route a message the heuristics could not place.
// It satisfies the classifier's Labeler dependency.
func (e *Engine) Label(ctx context.Context, content string) (classify.ContentKind, error) {
	raw, err := e.chatter.Chat(ctx, []llm.Message{
		{Role: "system", Content: labelSystemPrompt},
		{Role: "user", Content: labelUserPrompt(e.truncate(content))},
	}, llm.Options{Temperature: e.cfg.RetryTemp})
	if err != nil {
		return classify.KindUnknown, err
	}
	return classify.ParseKind(raw), nil
}

func (e *Engine) truncate(content string) string {
	max := e.cfg.MaxContentLen
	if max <= 0 {
		max = 10000
	}
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max])
}

// Assemble converts an extraction outcome into storable entities. Action
// items with identical normalized descriptions merge into one row with the
// union of assignees; due phrases resolve relative to the receipt time.
func Assemble(msg entities.InboundMessage, outcome *Outcome, resolver *Resolver) (*entities.Meeting, []*entities.ActionItem) {
	if outcome.Degraded {
		meeting := entities.NewMeeting(
			msg.SourceMessageID, msg.ConversationID,
			fallbackTitle(msg.ReceivedAt), outcome.Summary, msg.Body,
			entities.CategoryOther, msg.ReceivedAt,
		)
		meeting.MarkDegraded()
		return meeting, nil
	}

	result := outcome.Result
	meeting := entities.NewMeeting(
		msg.SourceMessageID, msg.ConversationID,
		result.Title, result.Summary, msg.Body,
		entities.MeetingCategory(result.Category), msg.ReceivedAt,
	)
	meeting.Participants = result.Participants
	if outcome.Raw != "" {
		meeting.RawExtraction = datatypes.JSON(outcome.Raw)
	}

	byKey := make(map[string]*entities.ActionItem)
	var items []*entities.ActionItem
	for _, extracted := range result.ActionItems {
		key := entities.NormalizeDescription(extracted.Description)

		if existing, ok := byKey[key]; ok {
			existing.MergeAssignees(extracted.Assignees)
			if extracted.RequiresTravel {
				existing.RequiresTravel = true
			}
			continue
		}

		item := entities.NewActionItem(meeting.ID, extracted.Title, extracted.Description,
			entities.ActionItemPriority(extracted.Priority))
		item.RequiresTravel = extracted.RequiresTravel
		item.MergeAssignees(extracted.Assignees)
		item.DuePhrase = extracted.DuePhrase
		item.DueDate = resolver.Resolve(extracted.DuePhrase, msg.ReceivedAt)

		byKey[key] = item
		items = append(items, item)
	}

	return meeting, items
}
