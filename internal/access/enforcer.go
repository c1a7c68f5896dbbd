package access

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/prime/internal/domain"
)

// Recorder appends audit events. *audit.Logger satisfies it.
type Recorder interface {
	Record(ctx context.Context, e *domain.AuditEvent) error
}

// Enforcer turns permission checks into audited outcomes. A denial is
// recorded as ACCESS_DENIED and returned as domain.ErrPermissionDenied; it is
// never escalated.
type Enforcer struct {
	table *Table
	ops   Operations
	audit Recorder
}

// NewEnforcer creates an Enforcer.
func NewEnforcer(table *Table, ops Operations, audit Recorder) *Enforcer {
	return &Enforcer{table: table, ops: ops, audit: audit}
}

// Table returns the underlying role table.
func (e *Enforcer) Table() *Table { return e.table }

// Require checks that u holds p before an operation named op proceeds.
func (e *Enforcer) Require(ctx context.Context, u domain.User, p domain.Permission, requestID, op string) error {
	if e.table.Check(u, p) {
		return nil
	}
	return e.deny(ctx, u, p, requestID, op)
}

// AuthorizeOperation checks u against the catalogue entry for name. Allowed
// calls are recorded as TOOL_CALL so the audit trail shows every action the
// router was cleared to execute.
func (e *Enforcer) AuthorizeOperation(ctx context.Context, u domain.User, name, requestID string, args map[string]any) error {
	perm, ok := e.ops[name]
	if !ok {
		return fmt.Errorf("access.Enforcer.AuthorizeOperation: operation %q: %w", name, domain.ErrNotFound)
	}
	if !e.table.Check(u, perm) {
		return e.deny(ctx, u, perm, requestID, name)
	}

	err := e.audit.Record(ctx, domain.NewAuditEvent(domain.AuditToolCall, u, requestID, map[string]any{
		"operation":  name,
		"permission": perm,
		"args":       args,
	}))
	if err != nil {
		return fmt.Errorf("access.Enforcer.AuthorizeOperation: %w", err)
	}
	return nil
}

// Visible returns the operations u may invoke.
func (e *Enforcer) Visible(u domain.User) []string {
	return e.ops.Visible(e.table, u)
}

func (e *Enforcer) deny(ctx context.Context, u domain.User, p domain.Permission, requestID, op string) error {
	log.Info().
		Str("user_id", u.ID).
		Str("role", string(u.Role)).
		Str("permission", string(p)).
		Str("operation", op).
		Msg("access denied")

	err := e.audit.Record(ctx, domain.NewAuditEvent(domain.AuditAccessDenied, u, requestID, map[string]any{
		"permission": p,
		"operation":  op,
		"role":       u.Role,
	}))
	if err != nil {
		return fmt.Errorf("access.Enforcer: %w", err)
	}
	return fmt.Errorf("access: %s lacks %s for %s: %w", u.ID, p, op, domain.ErrPermissionDenied)
}
