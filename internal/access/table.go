// Package access implements role-based access control over a static
// role→permission table.
package access

import (
	"maps"
	"slices"

	"github.com/gosuda/prime/internal/domain"
)

// Table is an immutable role→permission mapping. It is built once at startup
// and injected wherever access is checked, so tests can substitute their own.
type Table struct {
	perms map[domain.Role]map[domain.Permission]struct{}
}

// NewTable copies m into a new Table.
func NewTable(m map[domain.Role][]domain.Permission) *Table {
	t := &Table{perms: make(map[domain.Role]map[domain.Permission]struct{}, len(m))}
	for role, ps := range m {
		set := make(map[domain.Permission]struct{}, len(ps))
		for _, p := range ps {
			set[p] = struct{}{}
		}
		t.perms[role] = set
	}
	return t
}

// DefaultTable returns the standard banking role table.
func DefaultTable() *Table {
	return NewTable(map[domain.Role][]domain.Permission{
		domain.RoleUser: {
			domain.PermSubmitRequest,
			domain.PermViewOwnAccounts,
			domain.PermExecuteTransfer,
		},
		domain.RoleStaff: {
			domain.PermSubmitRequest,
			domain.PermViewOwnAccounts,
			domain.PermViewAllAccounts,
			domain.PermViewEscalations,
		},
		domain.RoleAdmin: {
			domain.PermSubmitRequest,
			domain.PermViewOwnAccounts,
			domain.PermViewAllAccounts,
			domain.PermExecuteTransfer,
			domain.PermViewEscalations,
			domain.PermResolveEscalation,
			domain.PermViewAuditLog,
		},
		domain.RoleSystem: {
			domain.PermSubmitRequest,
			domain.PermViewEscalations,
			domain.PermViewAuditLog,
		},
	})
}

// Check reports whether u's role grants p. Unknown roles have no permissions.
func (t *Table) Check(u domain.User, p domain.Permission) bool {
	_, ok := t.perms[u.Role][p]
	return ok
}

// Permissions returns the permissions granted to role, sorted.
func (t *Table) Permissions(role domain.Role) []domain.Permission {
	return slices.Sorted(maps.Keys(t.perms[role]))
}

var roleDescriptions = map[domain.Role]string{ //nolint:gochecknoglobals // static lookup
	domain.RoleUser:   "Customer: can query and act on their own accounts",
	domain.RoleStaff:  "Bank staff: can view all accounts and escalations",
	domain.RoleAdmin:  "Administrator: full access, including resolving escalations and reading the audit log",
	domain.RoleSystem: "Service account: submits requests and reads the audit log",
}

// Describe returns a human-readable description of role.
func Describe(role domain.Role) string {
	if d, ok := roleDescriptions[role]; ok {
		return d
	}
	return "Unknown role"
}
