// Package escalation holds requests that need a human decision. Tickets move
// strictly OPEN -> IN_REVIEW -> RESOLVED and are never deleted.
package escalation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/prime/internal/domain"
)

// Channel is the pub/sub channel ticket lifecycle events are published on.
const Channel = "prime:escalations"

// Authorizer enforces a permission, recording the denial. *access.Enforcer
// satisfies it.
type Authorizer interface {
	Require(ctx context.Context, u domain.User, p domain.Permission, requestID, op string) error
}

// Recorder appends audit events. *audit.Logger satisfies it.
type Recorder interface {
	Record(ctx context.Context, e *domain.AuditEvent) error
}

// Notifier tells reviewers about ticket changes. Failures are logged, never
// returned to the caller.
type Notifier interface {
	TicketCreated(ctx context.Context, t *domain.EscalationTicket) error
	TicketUpdated(ctx context.Context, t *domain.EscalationTicket) error
}

// Publisher fans ticket events out to live subscribers.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// TicketInput is what the pipeline knows when it escalates a request.
type TicketInput struct {
	RequestID string
	User      domain.User
	Summary   string
	Rationale string
	RuleIDs   []string
}

// Event is the message published on Channel.
type Event struct {
	Type   string                   `json:"type"`
	Ticket *domain.EscalationTicket `json:"ticket"`
}

// Queue is the escalation ticket queue.
type Queue struct {
	repo      domain.TicketRepository
	access    Authorizer
	audit     Recorder
	notifier  Notifier
	publisher Publisher
	clock     func() time.Time

	locks sync.Map // ticket ID -> *sync.Mutex
}

// Option configures optional Queue collaborators.
type Option func(*Queue)

func WithNotifier(n Notifier) Option {
	return func(q *Queue) { q.notifier = n }
}

func WithPublisher(p Publisher) Option {
	return func(q *Queue) { q.publisher = p }
}

func WithClock(clock func() time.Time) Option {
	return func(q *Queue) { q.clock = clock }
}

// NewQueue creates a Queue backed by repo.
func NewQueue(repo domain.TicketRepository, access Authorizer, audit Recorder, opts ...Option) *Queue {
	q := &Queue{
		repo:   repo,
		access: access,
		audit:  audit,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Create opens a ticket for in and returns its ID. IDs are unique even under
// concurrent calls. The ESCALATION_CREATED event is recorded before the
// ticket is stored.
func (q *Queue) Create(ctx context.Context, in TicketInput) (int64, error) {
	id, err := q.repo.NextID(ctx)
	if err != nil {
		return 0, fmt.Errorf("escalation.Queue.Create: next id: %w", err)
	}

	now := q.clock().UTC()
	t := &domain.EscalationTicket{
		ID:             id,
		RequestID:      in.RequestID,
		RequestSummary: in.Summary,
		UserID:         in.User.ID,
		SessionID:      in.User.SessionID,
		Rationale:      in.Rationale,
		RuleIDs:        append([]string(nil), in.RuleIDs...),
		Status:         domain.TicketOpen,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = q.audit.Record(ctx, domain.NewAuditEvent(domain.AuditEscalationCreated, in.User, in.RequestID, map[string]any{
		"ticket_id": id,
		"rule_ids":  t.RuleIDs,
		"rationale": t.Rationale,
		"status":    t.Status,
	}))
	if err != nil {
		return 0, fmt.Errorf("escalation.Queue.Create: %w", err)
	}

	if err := q.repo.Create(ctx, t); err != nil {
		return 0, fmt.Errorf("escalation.Queue.Create: %w", err)
	}

	log.Info().Int64("ticket_id", id).Str("request_id", in.RequestID).Strs("rule_ids", t.RuleIDs).Msg("escalation ticket opened")

	q.announce(ctx, "created", t)
	return id, nil
}

// List returns the tickets matching filter. The actor needs view_escalations.
func (q *Queue) List(ctx context.Context, actor domain.User, filter domain.TicketFilter) ([]*domain.EscalationTicket, error) {
	if err := q.access.Require(ctx, actor, domain.PermViewEscalations, "", "list_escalations"); err != nil {
		return nil, fmt.Errorf("escalation.Queue.List: %w", err)
	}

	tickets, err := q.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("escalation.Queue.List: %w", err)
	}
	return tickets, nil
}

// Get returns one ticket. The actor needs view_escalations.
func (q *Queue) Get(ctx context.Context, actor domain.User, id int64) (*domain.EscalationTicket, error) {
	if err := q.access.Require(ctx, actor, domain.PermViewEscalations, "", "get_escalation"); err != nil {
		return nil, fmt.Errorf("escalation.Queue.Get: %w", err)
	}

	t, err := q.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("escalation.Queue.Get: %w", err)
	}
	return t, nil
}

// Transition moves ticket id to status to on behalf of actor, who needs
// resolve_escalation. Transitions of one ticket are serialized; an illegal
// transition fails with domain.ErrInvalidTransition and leaves the ticket
// unchanged. Every step is recorded as ESCALATION_RESOLVED, carrying from and
// to, before the status is written. Notes are stored only on the move to
// RESOLVED.
func (q *Queue) Transition(ctx context.Context, id int64, to domain.TicketStatus, actor domain.User, notes string) (*domain.EscalationTicket, error) {
	if err := q.access.Require(ctx, actor, domain.PermResolveEscalation, "", "resolve_escalation"); err != nil {
		return nil, fmt.Errorf("escalation.Queue.Transition: %w", err)
	}

	t, err := q.transition(ctx, id, to, actor, notes)
	if err != nil {
		return nil, fmt.Errorf("escalation.Queue.Transition: %w", err)
	}

	q.announce(ctx, "updated", t)
	return t, nil
}

// transition applies one status change while holding the ticket's lock.
func (q *Queue) transition(ctx context.Context, id int64, to domain.TicketStatus, actor domain.User, notes string) (*domain.EscalationTicket, error) {
	mu := q.lock(id)
	mu.Lock()
	defer mu.Unlock()

	t, err := q.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	from := t.Status
	if !from.ValidTransition(to) {
		log.Warn().Int64("ticket_id", id).Str("from", string(from)).Str("to", string(to)).Str("actor", actor.ID).Msg("rejected ticket transition")
		return nil, fmt.Errorf("%s -> %s: %w", from, to, domain.ErrInvalidTransition)
	}

	update := domain.TicketUpdate{
		ID:        id,
		From:      from,
		To:        to,
		ActorID:   actor.ID,
		UpdatedAt: q.clock().UTC(),
	}
	if to == domain.TicketResolved {
		update.Notes = notes
		update.ResolvedBy = &actor.ID
	}

	payload := map[string]any{
		"ticket_id": id,
		"from":      from,
		"to":        to,
		"notes":     notes,
	}
	if err := q.audit.Record(ctx, domain.NewAuditEvent(domain.AuditEscalationResolved, actor, t.RequestID, payload)); err != nil {
		return nil, err
	}

	if err := q.repo.UpdateStatus(ctx, update); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			q.abort(ctx, id, actor, t.RequestID, payload)
		}
		return nil, err
	}

	t.Status = to
	t.UpdatedAt = update.UpdatedAt
	if update.Notes != "" {
		t.ResolutionNotes = &update.Notes
	}
	if update.ResolvedBy != nil {
		resolvedBy := *update.ResolvedBy
		t.ResolvedBy = &resolvedBy
	}

	log.Info().Int64("ticket_id", id).Str("from", string(from)).Str("to", string(to)).Str("actor", actor.ID).Msg("ticket transitioned")
	return t, nil
}

// abort records that an already audited transition was not applied because
// the stored status changed underneath it.
func (q *Queue) abort(ctx context.Context, id int64, actor domain.User, requestID string, payload map[string]any) {
	aborted := maps.Clone(payload)
	aborted["aborted"] = true
	if err := q.audit.Record(ctx, domain.NewAuditEvent(domain.AuditEscalationResolved, actor, requestID, aborted)); err != nil {
		log.Error().Err(err).Int64("ticket_id", id).Msg("record aborted ticket transition")
		return
	}
	log.Warn().Int64("ticket_id", id).Msg("ticket changed concurrently, transition aborted")
}

func (q *Queue) lock(id int64) *sync.Mutex {
	mu, _ := q.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex) //nolint:forcetypeassert // only *sync.Mutex is stored
}

// announce notifies reviewers and publishes the event. Both are best effort:
// the ticket is already durable and audited.
func (q *Queue) announce(ctx context.Context, typ string, t *domain.EscalationTicket) {
	if q.notifier != nil {
		var err error
		if typ == "created" {
			err = q.notifier.TicketCreated(ctx, t)
		} else {
			err = q.notifier.TicketUpdated(ctx, t)
		}
		if err != nil {
			log.Warn().Err(err).Int64("ticket_id", t.ID).Msg("reviewer notification failed")
		}
	}

	if q.publisher == nil {
		return
	}
	payload, err := json.Marshal(Event{Type: typ, Ticket: t})
	if err != nil {
		log.Warn().Err(err).Int64("ticket_id", t.ID).Msg("escalation publish: marshal")
		return
	}
	if err := q.publisher.Publish(ctx, Channel, payload); err != nil {
		log.Warn().Err(err).Int64("ticket_id", t.ID).Msg("escalation publish failed")
	}
}
