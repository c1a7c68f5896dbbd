package domain

import (
	"context"
	"time"
)

type TicketStatus string

const (
	TicketOpen     TicketStatus = "OPEN"
	TicketInReview TicketStatus = "IN_REVIEW"
	TicketResolved TicketStatus = "RESOLVED"
)

// ValidTransition checks if a ticket status change is allowed.
// Allowed: OPEN->IN_REVIEW, IN_REVIEW->RESOLVED. RESOLVED is terminal.
func (s TicketStatus) ValidTransition(to TicketStatus) bool {
	switch s {
	case TicketOpen:
		return to == TicketInReview
	case TicketInReview:
		return to == TicketResolved
	default:
		return false
	}
}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketOpen, TicketInReview, TicketResolved:
		return true
	default:
		return false
	}
}

// EscalationTicket is a request held for human review. Tickets are never
// deleted; they change only through the escalation queue's transition API.
type EscalationTicket struct {
	ID              int64        `json:"id"`
	RequestID       string       `json:"request_id"`
	RequestSummary  string       `json:"request_summary"`
	UserID          string       `json:"user_id"`
	SessionID       string       `json:"session_id"`
	Rationale       string       `json:"rationale"`
	RuleIDs         []string     `json:"rule_ids"`
	Status          TicketStatus `json:"status"`
	ResolvedBy      *string      `json:"resolved_by,omitempty"`
	ResolutionNotes *string      `json:"resolution_notes,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// TicketFilter narrows a ticket listing. Zero values match everything.
type TicketFilter struct {
	Status TicketStatus
	UserID string
}

// Matches reports whether t passes the filter.
func (f TicketFilter) Matches(t *EscalationTicket) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.UserID != "" && t.UserID != f.UserID {
		return false
	}
	return true
}

// TicketUpdate is a compare-and-swap status change: it applies only while the
// stored status still equals From.
type TicketUpdate struct {
	ID         int64
	From       TicketStatus
	To         TicketStatus
	ActorID    string
	Notes      string
	UpdatedAt  time.Time
	ResolvedBy *string
}

type TicketRepository interface {
	// NextID issues a unique, monotonically increasing ticket identifier.
	NextID(ctx context.Context) (int64, error)
	Create(ctx context.Context, t *EscalationTicket) error
	GetByID(ctx context.Context, id int64) (*EscalationTicket, error)
	List(ctx context.Context, filter TicketFilter) ([]*EscalationTicket, error)
	// UpdateStatus returns ErrConflict when the stored status is no longer u.From.
	UpdateStatus(ctx context.Context, u TicketUpdate) error
}
