// Package notify tells human reviewers about escalation tickets through
// chat messengers.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/prime/internal/domain"
	"github.com/gosuda/prime/internal/messenger"
)

// ErrPlatformNotFound is returned when a messenger platform is not registered.
var ErrPlatformNotFound = errors.New("notify: platform not found") //nolint:gochecknoglobals // sentinel error

// MessengerRegistry maps platform names to Messenger implementations.
type MessengerRegistry interface {
	Get(platform string) (messenger.Messenger, bool)
}

// Target is a reviewer channel on one platform.
type Target struct {
	Platform  string
	ChannelID string
}

type posted struct {
	target Target
	id     messenger.MessageID
}

// Notifier posts escalation tickets to every reviewer target and keeps the
// posted cards in sync with later status changes.
type Notifier struct {
	messengers MessengerRegistry
	targets    []Target

	mu     sync.Mutex
	posted map[int64][]posted
}

// New creates a Notifier that posts to targets.
func New(messengers MessengerRegistry, targets ...Target) *Notifier {
	return &Notifier{
		messengers: messengers,
		targets:    targets,
		posted:     make(map[int64][]posted),
	}
}

// TicketCreated posts t to every target. Failing targets do not stop the
// others; their errors are joined.
func (n *Notifier) TicketCreated(ctx context.Context, t *domain.EscalationTicket) error {
	if len(n.targets) == 0 {
		log.Info().Int64("ticket_id", t.ID).Msg("notify: no reviewer targets configured")
		return nil
	}

	var errs []error
	for _, target := range n.targets {
		id, err := n.post(ctx, target, t)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		n.mu.Lock()
		n.posted[t.ID] = append(n.posted[t.ID], posted{target: target, id: id})
		n.mu.Unlock()
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("notify.Notifier.TicketCreated: %w", err)
	}
	return nil
}

// TicketUpdated refreshes the cards posted for t. A ticket never announced
// by this process is posted fresh. Cards of resolved tickets are forgotten
// once updated.
func (n *Notifier) TicketUpdated(ctx context.Context, t *domain.EscalationTicket) error {
	n.mu.Lock()
	cards := n.posted[t.ID]
	if t.Status == domain.TicketResolved {
		delete(n.posted, t.ID)
	}
	n.mu.Unlock()

	if len(cards) == 0 {
		if t.Status == domain.TicketResolved {
			return nil
		}
		return n.TicketCreated(ctx, t)
	}

	var errs []error
	for _, c := range cards {
		msg, ok := n.messengers.Get(c.target.Platform)
		if !ok {
			errs = append(errs, fmt.Errorf("platform %q: %w", c.target.Platform, ErrPlatformNotFound))
			continue
		}
		if err := msg.UpdateTicket(ctx, c.target.ChannelID, c.id, t); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("notify.Notifier.TicketUpdated: %w", err)
	}
	return nil
}

func (n *Notifier) post(ctx context.Context, target Target, t *domain.EscalationTicket) (messenger.MessageID, error) {
	msg, ok := n.messengers.Get(target.Platform)
	if !ok {
		return "", fmt.Errorf("platform %q: %w", target.Platform, ErrPlatformNotFound)
	}

	id, err := msg.PostTicket(ctx, target.ChannelID, t)
	if err != nil {
		return "", fmt.Errorf("%s/%s: %w", target.Platform, target.ChannelID, err)
	}
	return id, nil
}
