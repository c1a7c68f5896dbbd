package audit

import (
	"context"
	"fmt"

	"github.com/gosuda/prime/internal/domain"
)

// Checker answers permission checks. access.Table satisfies it.
type Checker interface {
	Check(u domain.User, p domain.Permission) bool
}

// Reader is the permission-gated read side of the audit log used by
// compliance tooling.
type Reader struct {
	log    *Logger
	access Checker
}

// NewReader creates a Reader over l.
func NewReader(l *Logger, access Checker) *Reader {
	return &Reader{log: l, access: access}
}

// Query returns stored events matching filter in sequence order. The caller
// must hold view_audit_log; a denial is itself recorded.
func (r *Reader) Query(ctx context.Context, actor domain.User, filter domain.AuditFilter) ([]*domain.AuditEvent, error) {
	if !r.access.Check(actor, domain.PermViewAuditLog) {
		if err := r.log.Record(ctx, domain.NewAuditEvent(domain.AuditAccessDenied, actor, "", map[string]any{
			"permission": domain.PermViewAuditLog,
			"operation":  "audit.query",
		})); err != nil {
			return nil, fmt.Errorf("audit.Reader.Query: %w", err)
		}
		return nil, fmt.Errorf("audit.Reader.Query: %w", domain.ErrPermissionDenied)
	}

	var out []*domain.AuditEvent
	err := r.log.sink.Scan(ctx, filter, func(e *domain.AuditEvent) bool {
		out = append(out, e)
		return filter.Limit <= 0 || len(out) < filter.Limit
	})
	if err != nil {
		return nil, fmt.Errorf("audit.Reader.Query: %w", err)
	}
	return out, nil
}
