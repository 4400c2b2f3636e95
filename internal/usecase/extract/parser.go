package extract

import (
	"encoding/json"
	"strings"

	apperrors "github.com/meetnote-labs/meetnote/errors"
	"github.com/meetnote-labs/meetnote/pkg/validator"
)

// Parser validates raw model output against the extraction schema
type Parser struct {
	validate *validator.CustomValidator
}

// NewParser creates a new Parser instance
func NewParser() *Parser {
	return &Parser{validate: validator.New()}
}

// Parse decodes and validates a model response. Markdown fences around the
// JSON are tolerated; anything else that fails to decode or validate is a
// validation error feeding the retry budget.
func (p *Parser) Parse(raw string) (*ExtractionResult, error) {
	raw = extractJSON(raw)

	var result ExtractionResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, apperrors.ErrExtractionMalformed(err)
	}

	if err := p.validate.Struct(&result); err != nil {
		return nil, apperrors.ErrExtractionMalformed(err)
	}

	if result.Participants == nil {
		result.Participants = make([]string, 0)
	}
	if result.ActionItems == nil {
		result.ActionItems = make([]ExtractedActionItem, 0)
	}

	return &result, nil
}

// extractJSON extracts JSON content from markdown code blocks or plain text
func extractJSON(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		if idx := strings.LastIndex(content, "```"); idx != -1 {
			content = content[:idx]
		}
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		if idx := strings.LastIndex(content, "```"); idx != -1 {
			content = content[:idx]
		}
	}

	return strings.TrimSpace(content)
}
