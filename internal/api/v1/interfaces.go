package v1

import (
	"context"

	"github.com/gosuda/prime/internal/domain"
	"github.com/gosuda/prime/internal/pipeline"
)

// RequestProcessor evaluates a user request. *pipeline.Pipeline satisfies this interface.
type RequestProcessor interface {
	Process(ctx context.Context, user domain.User, text string) (*pipeline.Outcome, error)
}

// EscalationService abstracts the review queue for handler testing.
// *escalation.Queue satisfies this interface.
type EscalationService interface {
	List(ctx context.Context, actor domain.User, filter domain.TicketFilter) ([]*domain.EscalationTicket, error)
	Get(ctx context.Context, actor domain.User, id int64) (*domain.EscalationTicket, error)
	Transition(ctx context.Context, id int64, to domain.TicketStatus, actor domain.User, notes string) (*domain.EscalationTicket, error)
}

// AuditQuerier reads the audit log on behalf of a caller. *audit.Reader satisfies this interface.
type AuditQuerier interface {
	Query(ctx context.Context, actor domain.User, filter domain.AuditFilter) ([]*domain.AuditEvent, error)
}

// CapabilityService describes and authorizes the operations a caller may
// invoke. *access.Enforcer satisfies this interface.
type CapabilityService interface {
	Visible(u domain.User) []string
	AuthorizeOperation(ctx context.Context, u domain.User, name, requestID string, args map[string]any) error
}

// PermissionLister resolves role permissions. *access.Table satisfies this interface.
type PermissionLister interface {
	Permissions(role domain.Role) []domain.Permission
}
