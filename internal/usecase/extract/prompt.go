package extract

import (
	"fmt"
	"time"
)

const extractionSystemPrompt = `You are an assistant that structures meeting notes.
Respond with a single JSON object and nothing else, using this shape:
{
  "title": "3-8 word meeting title",
  "summary": "2-4 sentence summary of what was discussed and decided",
  "category": "work|personal|health|finance|education|other",
  "participants": ["names mentioned as attending"],
  "action_items": [
    {
      "title": "short imperative title",
      "description": "what must be done",
      "due_date": "the due phrase exactly as written in the notes, or empty",
      "priority": "low|medium|high",
      "requires_travel": false,
      "assignees": ["who owns it"]
    }
  ]
}
Only include action items the notes actually state. Keep due_date verbatim.`

func extractionUserPrompt(content string) string {
	return fmt.Sprintf("Structure these meeting notes:\n\n%s", content)
}

const labelSystemPrompt = `You route messages for a meeting assistant.
Answer with exactly one word:
meeting_transcript - the message contains meeting notes, minutes or a transcript to store
query - the message asks about meetings that already happened
unknown - neither, or you cannot tell`

func labelUserPrompt(content string) string {
	return fmt.Sprintf("Route this message:\n\n%s", content)
}

const summarySystemPrompt = `You summarize meeting notes in 2-4 plain sentences.
Respond with the summary text only.`

func summaryUserPrompt(content string) string {
	return fmt.Sprintf("Summarize these meeting notes:\n\n%s", content)
}

// fallbackTitle names a meeting when no title could be extracted
func fallbackTitle(receivedAt time.Time) string {
	return fmt.Sprintf("Meeting - %s", receivedAt.Format("2006-01-02"))
}
