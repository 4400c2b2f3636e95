package dispatch

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/meetnote-labs/meetnote/errors"
	"github.com/meetnote-labs/meetnote/internal/domain/entities"
	"github.com/meetnote-labs/meetnote/internal/domain/repositories"
	"github.com/meetnote-labs/meetnote/internal/infrastructure/bridge"
	"github.com/meetnote-labs/meetnote/pkg/config"
	"github.com/meetnote-labs/meetnote/pkg/retry"
)

// Dispatcher sends confirmation replies back through the bridge. Delivery
// failures never undo processing: the meeting stays committed and the
// failure is recorded on the ledger entry instead.
type Dispatcher struct {
	bridge bridge.Client
	ledger repositories.LedgerRepository
	policy retry.Policy
	logger *zap.Logger
}

// NewDispatcher constructs a dispatcher
func NewDispatcher(b bridge.Client, ledger repositories.LedgerRepository, cfg config.PipelineConfig, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		bridge: b,
		ledger: ledger,
		policy: retry.Policy{
			MaxAttempts: cfg.DispatchAttempts,
			BaseDelay:   cfg.DispatchBaseDelay,
			MaxDelay:    cfg.DispatchMaxDelay,
			Multiplier:  2.0,
		},
		logger: logger,
	}
}

// Reply delivers a message with optional attachments, retrying transient
// bridge failures. On exhaustion the failure lands on the ledger entry and
// the returned error is permanent.
func (d *Dispatcher) Reply(ctx context.Context, state *entities.ProcessingState, message string, attachments []bridge.Attachment) error {
	err := retry.Do(ctx, d.policy, func(ctx context.Context) error {
		return d.bridge.Send(ctx, state.ConversationID, message, attachments)
	})
	if err == nil {
		return nil
	}

	d.logger.Error("❌ Reply delivery failed after retries",
		zap.String("source_message_id", state.SourceMessageID),
		zap.String("conversation_id", state.ConversationID),
		zap.Error(err),
	)

	state.RecordDispatchFailure(err.Error())
	if updateErr := d.ledger.Update(ctx, state); updateErr != nil {
		d.logger.Error("❌ Failed to record dispatch failure",
			zap.String("source_message_id", state.SourceMessageID),
			zap.Error(updateErr),
		)
	}

	return apperrors.ErrDispatchExhausted(state.SourceMessageID, err)
}

// ConfirmationMessage renders the reply for a committed meeting
func ConfirmationMessage(meeting *entities.Meeting, items []*entities.ActionItem, reminderCount int) string {
	var b strings.Builder

	if meeting.Status == entities.MeetingStatusDegraded {
		fmt.Fprintf(&b, "📝 Stored \"%s\" (summary only, structured extraction unavailable).\n\n%s", meeting.Title, meeting.Summary)
		return b.String()
	}

	fmt.Fprintf(&b, "✅ Stored \"%s\" [%s]\n\n%s", meeting.Title, meeting.Category, meeting.Summary)

	if len(items) > 0 {
		fmt.Fprintf(&b, "\n\nAction items (%d):", len(items))
		for _, item := range items {
			fmt.Fprintf(&b, "\n• %s", item.Title)
			if len(item.Assignees) > 0 {
				fmt.Fprintf(&b, " (%s)", strings.Join(item.Assignees, ", "))
			}
			if item.DueDate != nil {
				fmt.Fprintf(&b, " (due %s)", item.DueDate.Format("Mon Jan 2"))
			}
		}
	}

	if reminderCount > 0 {
		fmt.Fprintf(&b, "\n\n⏰ %d reminder(s) attached.", reminderCount)
	}

	return b.String()
}
