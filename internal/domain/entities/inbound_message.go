package entities

import "time"

// InboundMessage is a message delivered by the messaging bridge. The bridge
// assigns SourceMessageID; the pipeline treats it as the idempotency key.
type InboundMessage struct {
	SourceMessageID string
	ConversationID  string
	Sender          string
	Body            string
	ReceivedAt      time.Time
}

// IsQuery reports whether the message asks about past meetings rather than
// submitting new content. Queries start with an explicit command prefix.
func (m InboundMessage) IsQuery() bool {
	const prefix = "/ask "
	return len(m.Body) > len(prefix) && m.Body[:len(prefix)] == prefix
}

// QueryText returns the question portion of a query message
func (m InboundMessage) QueryText() string {
	if !m.IsQuery() {
		return ""
	}
	return m.Body[len("/ask "):]
}
