package messenger

import (
	"context"

	"github.com/gosuda/prime/internal/domain"
)

// MessageID uniquely identifies a message within a messenger platform.
type MessageID string

// Messenger posts escalation tickets to a chat platform where reviewers pick
// them up. Implementations handle platform-specific formatting.
type Messenger interface {
	// PostTicket announces a ticket in a channel and returns the message ID.
	PostTicket(ctx context.Context, channelID string, t *domain.EscalationTicket) (MessageID, error)

	// UpdateTicket rewrites a previously posted ticket message, e.g. after
	// a status change.
	UpdateTicket(ctx context.Context, channelID string, messageID MessageID, t *domain.EscalationTicket) error

	// Platform returns the messenger platform identifier (e.g. "slack").
	Platform() string
}
