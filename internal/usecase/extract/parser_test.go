package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetnote-labs/meetnote/errors"
)

const validPayload = `{
	"title": "Q3 budget planning",
	"summary": "The team reviewed the Q3 budget and agreed to cut travel spend.",
	"category": "work",
	"participants": ["Alice", "Bob"],
	"action_items": [
		{"title": "Send proposal", "description": "Send the budget proposal", "due_date": "by Friday", "priority": "high", "assignees": ["Alice"]}
	]
}`

func TestParse_ValidPayload(t *testing.T) {
	result, err := NewParser().Parse(validPayload)

	require.NoError(t, err)
	assert.Equal(t, "Q3 budget planning", result.Title)
	assert.Equal(t, "work", result.Category)
	require.Len(t, result.ActionItems, 1)
	assert.Equal(t, "by Friday", result.ActionItems[0].DuePhrase)
}

func TestParse_StripsMarkdownFences(t *testing.T) {
	result, err := NewParser().Parse("```json\n" + validPayload + "\n```")

	require.NoError(t, err)
	assert.Equal(t, "Q3 budget planning", result.Title)
}

func TestParse_MalformedJSONIsValidationError(t *testing.T) {
	_, err := NewParser().Parse("this is not json at all")

	require.Error(t, err)
	assert.Equal(t, errors.KindValidation, errors.KindOf(err))
}

func TestParse_MissingRequiredFields(t *testing.T) {
	_, err := NewParser().Parse(`{"title": "ok title", "category": "work"}`)

	require.Error(t, err)
	assert.Equal(t, errors.KindValidation, errors.KindOf(err))
}

func TestParse_UnknownCategoryRejected(t *testing.T) {
	_, err := NewParser().Parse(`{
		"title": "Team sync",
		"summary": "A long enough summary of the discussion.",
		"category": "sports"
	}`)

	require.Error(t, err)
	assert.Equal(t, errors.KindValidation, errors.KindOf(err))
}

func TestParse_EmptyCollectionsInitialized(t *testing.T) {
	result, err := NewParser().Parse(`{
		"title": "Team sync",
		"summary": "A long enough summary of the discussion.",
		"category": "work"
	}`)

	require.NoError(t, err)
	assert.NotNil(t, result.Participants)
	assert.NotNil(t, result.ActionItems)
	assert.Empty(t, result.ActionItems)
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extractJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, extractJSON("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, extractJSON(`  {"a":1}  `))
}
