package classify

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// ContentKind is the routing verdict for an inbound message
type ContentKind string

const (
	// KindMeetingTranscript routes to structured extraction.
	KindMeetingTranscript ContentKind = "meeting_transcript"
	// KindQuery routes to retrieval-and-answer without creating a meeting.
	KindQuery ContentKind = "query"
	// KindUnknown gets a clarification reply rather than a silent drop.
	KindUnknown ContentKind = "unknown"
)

// Labeler is the model-backed fallback consulted when the heuristics are
// inconclusive. It returns one of the ContentKind values.
type Labeler interface {
	Label(ctx context.Context, content string) (ContentKind, error)
}

// meetingIndicators are phrases that suggest a message carries meeting
// content rather than chatter.
var meetingIndicators = []string{
	"meeting", "discussed", "action items", "follow up", "agenda",
	"attendees", "participants", "minutes", "next steps", "decisions",
	"transcript", "call with", "zoom", "teams",
}

const minContentLength = 100

// Classifier routes inbound text. A cheap indicator heuristic handles clear
// meeting content without a model call; everything below the confidence
// threshold falls back to the labeler, which decides between transcript,
// query and unknown.
type Classifier struct {
	threshold float64
	labeler   Labeler
	logger    *zap.Logger
}

// NewClassifier creates a classifier with the given confidence threshold
func NewClassifier(threshold float64, labeler Labeler, logger *zap.Logger) *Classifier {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.6
	}
	return &Classifier{threshold: threshold, labeler: labeler, logger: logger}
}

// Result carries the classification verdict and its supporting signal
type Result struct {
	Kind       ContentKind
	Confidence float64
	Indicators []string
	FromModel  bool
}

// Classify scores the message body against the indicator list and asks the
// labeler when the score is inconclusive. A labeler failure yields unknown:
// the sender gets a clarification instead of a guessed route.
func (c *Classifier) Classify(ctx context.Context, body string) Result {
	lower := strings.ToLower(body)

	var matched []string
	for _, ind := range meetingIndicators {
		if strings.Contains(lower, ind) {
			matched = append(matched, ind)
		}
	}

	confidence := c.score(len(matched), len(body))
	result := Result{
		Kind:       KindMeetingTranscript,
		Confidence: confidence,
		Indicators: matched,
	}

	if confidence < c.threshold {
		result.FromModel = true
		kind, err := c.labeler.Label(ctx, body)
		if err != nil {
			if c.logger != nil {
				c.logger.Warn("⚠️ Classification fallback failed, treating as unknown",
					zap.Error(err),
				)
			}
			kind = KindUnknown
		}
		result.Kind = kind
	}

	if c.logger != nil {
		c.logger.Debug("classified message",
			zap.String("kind", string(result.Kind)),
			zap.Float64("confidence", confidence),
			zap.Bool("from_model", result.FromModel),
			zap.Int("indicator_count", len(matched)),
			zap.Int("length", len(body)),
		)
	}
	return result
}

func (c *Classifier) score(indicators, length int) float64 {
	switch {
	case indicators >= 3:
		return 0.95
	case indicators == 2:
		return 0.8
	case indicators == 1 && length > minContentLength:
		return 0.7
	case indicators == 1:
		return 0.4
	default:
		return 0.1
	}
}

// ParseKind maps a model label to a ContentKind, tolerating surrounding
// prose. Unrecognized output maps to unknown.
func ParseKind(raw string) ContentKind {
	lower := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(lower, string(KindMeetingTranscript)):
		return KindMeetingTranscript
	case strings.Contains(lower, string(KindQuery)):
		return KindQuery
	default:
		return KindUnknown
	}
}
