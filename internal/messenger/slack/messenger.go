package slack

import (
	"context"
	"fmt"

	slacklib "github.com/slack-go/slack"

	"github.com/gosuda/prime/internal/domain"
	"github.com/gosuda/prime/internal/messenger"
)

// SlackAPI abstracts the subset of the Slack client used by SlackMessenger.
// This allows testing without real HTTP calls.
type SlackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slacklib.MsgOption) (string, string, error)
	UpdateMessageContext(ctx context.Context, channelID, timestamp string, options ...slacklib.MsgOption) (string, string, string, error)
}

// SlackMessenger implements messenger.Messenger for Slack.
type SlackMessenger struct {
	api SlackAPI
}

// Compile-time interface check.
var _ messenger.Messenger = (*SlackMessenger)(nil) //nolint:gochecknoglobals // compile-time check

// NewSlackMessenger creates a SlackMessenger with the given API client.
func NewSlackMessenger(api SlackAPI) *SlackMessenger {
	return &SlackMessenger{api: api}
}

// NewFromToken creates a SlackMessenger backed by a bot token.
func NewFromToken(token string) *SlackMessenger {
	return NewSlackMessenger(slacklib.New(token))
}

// PostTicket posts the ticket card and returns the message timestamp as MessageID.
func (m *SlackMessenger) PostTicket(ctx context.Context, channelID string, t *domain.EscalationTicket) (messenger.MessageID, error) {
	_, ts, err := m.api.PostMessageContext(ctx, channelID,
		slacklib.MsgOptionText(TicketFallbackText(t), false),
		slacklib.MsgOptionBlocks(BuildTicketBlocks(t)...),
	)
	if err != nil {
		return "", fmt.Errorf("slack.SlackMessenger.PostTicket: %w", err)
	}

	return messenger.MessageID(ts), nil
}

// UpdateTicket replaces the ticket card in place.
func (m *SlackMessenger) UpdateTicket(ctx context.Context, channelID string, messageID messenger.MessageID, t *domain.EscalationTicket) error {
	_, _, _, err := m.api.UpdateMessageContext(ctx, channelID, string(messageID),
		slacklib.MsgOptionText(TicketFallbackText(t), false),
		slacklib.MsgOptionBlocks(BuildTicketBlocks(t)...),
	)
	if err != nil {
		return fmt.Errorf("slack.SlackMessenger.UpdateTicket: %w", err)
	}

	return nil
}

// Platform returns the messenger platform identifier.
func (m *SlackMessenger) Platform() string {
	return "slack"
}
