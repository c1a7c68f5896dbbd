package access

import (
	"maps"
	"slices"

	"github.com/gosuda/prime/internal/domain"
)

// Operations maps each downstream operation (a tool the router may execute)
// to the permission it requires.
type Operations map[string]domain.Permission

// DefaultOperations returns the banking tool catalogue.
func DefaultOperations() Operations {
	return Operations{
		"get_account_balance": domain.PermViewOwnAccounts,
		"list_own_accounts":   domain.PermViewOwnAccounts,
		"list_transactions":   domain.PermViewOwnAccounts,
		"search_all_accounts": domain.PermViewAllAccounts,
		"transfer_funds":      domain.PermExecuteTransfer,
		"list_escalations":    domain.PermViewEscalations,
		"resolve_escalation":  domain.PermResolveEscalation,
		"export_audit_log":    domain.PermViewAuditLog,
	}
}

// Visible returns the sorted names of the operations u may invoke: the
// capability-filtered view of the catalogue for u's role.
func (ops Operations) Visible(t *Table, u domain.User) []string {
	var out []string
	for _, name := range slices.Sorted(maps.Keys(ops)) {
		if t.Check(u, ops[name]) {
			out = append(out, name)
		}
	}
	return out
}
