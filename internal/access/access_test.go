package access_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/prime/internal/access"
	"github.com/gosuda/prime/internal/audit"
	"github.com/gosuda/prime/internal/domain"
)

func user(role domain.Role) domain.User {
	return domain.User{ID: string(role) + "-1", Role: role, SessionID: "sess"}
}

func TestDefaultTable_Check(t *testing.T) {
	t.Parallel()

	table := access.DefaultTable()

	tests := []struct {
		role domain.Role
		perm domain.Permission
		want bool
	}{
		{domain.RoleUser, domain.PermSubmitRequest, true},
		{domain.RoleUser, domain.PermExecuteTransfer, true},
		{domain.RoleUser, domain.PermViewAllAccounts, false},
		{domain.RoleUser, domain.PermViewEscalations, false},
		{domain.RoleStaff, domain.PermViewEscalations, true},
		{domain.RoleStaff, domain.PermResolveEscalation, false},
		{domain.RoleStaff, domain.PermViewAuditLog, false},
		{domain.RoleAdmin, domain.PermResolveEscalation, true},
		{domain.RoleAdmin, domain.PermViewAuditLog, true},
		{domain.RoleSystem, domain.PermViewAuditLog, true},
		{domain.RoleSystem, domain.PermExecuteTransfer, false},
		{domain.Role("ROOT"), domain.PermSubmitRequest, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.perm), func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, table.Check(user(tt.role), tt.perm))
		})
	}
}

func TestNewTable_Substitutable(t *testing.T) {
	t.Parallel()

	src := map[domain.Role][]domain.Permission{domain.RoleStaff: {domain.PermResolveEscalation}}
	table := access.NewTable(src)
	src[domain.RoleStaff][0] = domain.PermViewAuditLog

	assert.True(t, table.Check(user(domain.RoleStaff), domain.PermResolveEscalation))
	assert.False(t, table.Check(user(domain.RoleStaff), domain.PermViewAuditLog))
	assert.False(t, table.Check(user(domain.RoleAdmin), domain.PermResolveEscalation))
	assert.Equal(t, []domain.Permission{domain.PermResolveEscalation}, table.Permissions(domain.RoleStaff))
}

func TestOperations_Visible(t *testing.T) {
	t.Parallel()

	table := access.DefaultTable()
	ops := access.DefaultOperations()

	userOps := ops.Visible(table, user(domain.RoleUser))
	assert.Equal(t, []string{"get_account_balance", "list_own_accounts", "list_transactions", "transfer_funds"}, userOps)

	adminOps := ops.Visible(table, user(domain.RoleAdmin))
	assert.Len(t, adminOps, len(ops))
	assert.IsIncreasing(t, adminOps)

	assert.Empty(t, ops.Visible(table, domain.User{ID: "x", Role: "GUEST"}))
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	assert.Contains(t, access.Describe(domain.RoleAdmin), "Administrator")
	assert.Equal(t, "Unknown role", access.Describe("GUEST"))
}

func newEnforcer(t *testing.T) (*access.Enforcer, *audit.MemorySink) {
	t.Helper()

	sink := audit.NewMemorySink()
	l, err := audit.New(context.Background(), sink)
	require.NoError(t, err)
	return access.NewEnforcer(access.DefaultTable(), access.DefaultOperations(), l), sink
}

func TestEnforcer_Require(t *testing.T) {
	t.Parallel()

	t.Run("allowed records nothing", func(t *testing.T) {
		t.Parallel()

		e, sink := newEnforcer(t)
		require.NoError(t, e.Require(context.Background(), user(domain.RoleUser), domain.PermSubmitRequest, "r1", "pipeline.process"))
		assert.Empty(t, sink.Events())
	})

	t.Run("denied records ACCESS_DENIED", func(t *testing.T) {
		t.Parallel()

		e, sink := newEnforcer(t)
		err := e.Require(context.Background(), user(domain.RoleStaff), domain.PermResolveEscalation, "", "escalation.transition")
		require.ErrorIs(t, err, domain.ErrPermissionDenied)

		events := sink.Events()
		require.Len(t, events, 1)
		assert.Equal(t, domain.AuditAccessDenied, events[0].Kind)
		assert.Equal(t, domain.PermResolveEscalation, events[0].Payload["permission"])
		assert.Equal(t, "escalation.transition", events[0].Payload["operation"])
	})
}

func TestEnforcer_AuthorizeOperation(t *testing.T) {
	t.Parallel()

	t.Run("allowed records TOOL_CALL", func(t *testing.T) {
		t.Parallel()

		e, sink := newEnforcer(t)
		err := e.AuthorizeOperation(context.Background(), user(domain.RoleUser), "transfer_funds", "r1", map[string]any{"amount": "50"})
		require.NoError(t, err)
		assert.Equal(t, []domain.AuditKind{domain.AuditToolCall}, sink.Kinds())
	})

	t.Run("denied", func(t *testing.T) {
		t.Parallel()

		e, sink := newEnforcer(t)
		err := e.AuthorizeOperation(context.Background(), user(domain.RoleUser), "search_all_accounts", "r1", nil)
		require.ErrorIs(t, err, domain.ErrPermissionDenied)
		assert.Equal(t, []domain.AuditKind{domain.AuditAccessDenied}, sink.Kinds())
	})

	t.Run("unknown operation", func(t *testing.T) {
		t.Parallel()

		e, sink := newEnforcer(t)
		err := e.AuthorizeOperation(context.Background(), user(domain.RoleAdmin), "format_disk", "r1", nil)
		require.True(t, errors.Is(err, domain.ErrNotFound))
		assert.Empty(t, sink.Events())
	})
}

func TestEnforcer_Visible(t *testing.T) {
	t.Parallel()

	e, _ := newEnforcer(t)
	assert.Contains(t, e.Visible(user(domain.RoleStaff)), "list_escalations")
	assert.NotContains(t, e.Visible(user(domain.RoleStaff)), "resolve_escalation")
}
