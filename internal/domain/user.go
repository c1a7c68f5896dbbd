package domain

// Role is the coarse identity class a caller acts under.
type Role string

const (
	RoleUser   Role = "USER"
	RoleStaff  Role = "STAFF"
	RoleAdmin  Role = "ADMIN"
	RoleSystem Role = "SYSTEM"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleStaff, RoleAdmin, RoleSystem:
		return true
	default:
		return false
	}
}

// Permission is an atomic capability token.
type Permission string

const (
	PermSubmitRequest     Permission = "submit_request"
	PermViewOwnAccounts   Permission = "view_own_accounts"
	PermViewAllAccounts   Permission = "view_all_accounts"
	PermExecuteTransfer   Permission = "execute_transfer"
	PermViewEscalations   Permission = "view_escalations"
	PermResolveEscalation Permission = "resolve_escalation"
	PermViewAuditLog      Permission = "view_audit_log"
)

// User identifies the caller of a single request. It is immutable for the
// lifetime of that request.
type User struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	SessionID string `json:"session_id"`
}
