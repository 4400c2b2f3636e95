package bridge

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	apperrors "github.com/meetnote-labs/meetnote/errors"
	"github.com/meetnote-labs/meetnote/internal/domain/entities"
	"github.com/meetnote-labs/meetnote/pkg/config"
)

// Attachment is a file sent along with an outbound message
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Client is the messaging bridge surface the pipeline depends on
type Client interface {
	Receive(ctx context.Context) ([]entities.InboundMessage, error)
	Send(ctx context.Context, conversationID, message string, attachments []Attachment) error
}

// SignalClient talks to a signal-cli REST bridge
type SignalClient struct {
	baseURL string
	account string
	client  *http.Client
}

// NewSignalClient builds a client from the bridge config section
func NewSignalClient(cfg config.BridgeConfig) *SignalClient {
	return &SignalClient{
		baseURL: cfg.BaseURL,
		account: cfg.Account,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

type receiveEnvelope struct {
	Envelope struct {
		Source      string `json:"source"`
		SourceName  string `json:"sourceName"`
		Timestamp   int64  `json:"timestamp"`
		DataMessage *struct {
			Message   string `json:"message"`
			GroupInfo *struct {
				GroupID string `json:"groupId"`
			} `json:"groupInfo"`
		} `json:"dataMessage"`
	} `json:"envelope"`
}

type sendRequest struct {
	Message           string   `json:"message"`
	Number            string   `json:"number"`
	Recipients        []string `json:"recipients"`
	Base64Attachments []string `json:"base64_attachments,omitempty"`
}

// Receive drains the bridge's queue of pending messages. Envelopes without a
// data message (receipts, typing indicators) are skipped.
func (c *SignalClient) Receive(ctx context.Context) ([]entities.InboundMessage, error) {
	endpoint := fmt.Sprintf("%s/v1/receive/%s", c.baseURL, url.PathEscape(c.account))
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperrors.ErrBridgeReceiveFailed(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, apperrors.ErrBridgeReceiveFailed(fmt.Errorf("bridge returned status %d", resp.StatusCode))
	}

	var envelopes []receiveEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelopes); err != nil {
		return nil, apperrors.ErrBridgeReceiveFailed(err)
	}

	messages := make([]entities.InboundMessage, 0, len(envelopes))
	for _, env := range envelopes {
		dm := env.Envelope.DataMessage
		if dm == nil || dm.Message == "" {
			continue
		}

		conversation := env.Envelope.Source
		if dm.GroupInfo != nil && dm.GroupInfo.GroupID != "" {
			conversation = dm.GroupInfo.GroupID
		}

		messages = append(messages, entities.InboundMessage{
			SourceMessageID: fmt.Sprintf("%s:%d", env.Envelope.Source, env.Envelope.Timestamp),
			ConversationID:  conversation,
			Sender:          env.Envelope.SourceName,
			Body:            dm.Message,
			ReceivedAt:      time.UnixMilli(env.Envelope.Timestamp),
		})
	}
	return messages, nil
}

// Send delivers a message, optionally with attachments, to a conversation
func (c *SignalClient) Send(ctx context.Context, conversationID, message string, attachments []Attachment) error {
	body := sendRequest{
		Message:    message,
		Number:     c.account,
		Recipients: []string{conversationID},
	}
	for _, att := range attachments {
		body.Base64Attachments = append(body.Base64Attachments, fmt.Sprintf(
			"data:%s;filename=%s;base64,%s",
			att.ContentType, att.Filename, base64.StdEncoding.EncodeToString(att.Data)))
	}

	b, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v2/send", bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return apperrors.ErrBridgeSendFailed(conversationID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return apperrors.ErrBridgeSendFailed(conversationID, fmt.Errorf("bridge returned status %d", resp.StatusCode))
	}
	return nil
}
