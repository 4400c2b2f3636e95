package extract

// ExtractionResult is the schema the language model must produce for a
// meeting message. Validation failures trigger reduced-temperature retries
// before degrading to a plain summary.
type ExtractionResult struct {
	Title        string                `json:"title" validate:"required,min=3,max=120"`
	Summary      string                `json:"summary" validate:"required,min=10"`
	Category     string                `json:"category" validate:"required,oneof=work personal health finance education other"`
	Participants []string              `json:"participants"`
	ActionItems  []ExtractedActionItem `json:"action_items" validate:"dive"`
}

// ExtractedActionItem is one commitment as the model reports it. DuePhrase
// stays verbatim; resolution to a concrete date happens afterwards.
type ExtractedActionItem struct {
	Title          string   `json:"title" validate:"required"`
	Description    string   `json:"description" validate:"required"`
	DuePhrase      string   `json:"due_date"`
	Priority       string   `json:"priority" validate:"omitempty,oneof=low medium high"`
	RequiresTravel bool     `json:"requires_travel"`
	Assignees      []string `json:"assignees"`
}
