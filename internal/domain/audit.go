package domain

import (
	"context"
	"time"
)

type AuditKind string

const (
	AuditLayer1Check        AuditKind = "LAYER1_CHECK"
	AuditLayer2Check        AuditKind = "LAYER2_CHECK"
	AuditDecision           AuditKind = "DECISION"
	AuditEscalationCreated  AuditKind = "ESCALATION_CREATED"
	AuditEscalationResolved AuditKind = "ESCALATION_RESOLVED"
	AuditToolCall           AuditKind = "TOOL_CALL"
	AuditAccessDenied       AuditKind = "ACCESS_DENIED"
)

// AuditEvent is one append-only audit record. Sequence and Timestamp are
// assigned by the audit logger at append time.
type AuditEvent struct {
	Sequence  uint64         `json:"seq"`
	Kind      AuditKind      `json:"kind"`
	Timestamp time.Time      `json:"ts"`
	UserID    string         `json:"user_id"`
	SessionID string         `json:"session_id"`
	RequestID string         `json:"request_id,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// NewAuditEvent builds an event for user u. Sequence and timestamp are left
// for the logger.
func NewAuditEvent(kind AuditKind, u User, requestID string, payload map[string]any) *AuditEvent {
	return &AuditEvent{
		Kind:      kind,
		UserID:    u.ID,
		SessionID: u.SessionID,
		RequestID: requestID,
		Payload:   payload,
	}
}

// AuditFilter narrows an audit query. Zero values match everything.
type AuditFilter struct {
	Kind      AuditKind
	UserID    string
	RequestID string
	AfterSeq  uint64
	Limit     int
}

// Matches reports whether e passes the filter, ignoring Limit.
func (f AuditFilter) Matches(e *AuditEvent) bool {
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.RequestID != "" && e.RequestID != f.RequestID {
		return false
	}
	return e.Sequence > f.AfterSeq
}

// AuditSink is durable append-only storage for audit events.
type AuditSink interface {
	Append(ctx context.Context, e *AuditEvent) error
	// LastSequence returns the highest sequence number stored, 0 when empty.
	LastSequence(ctx context.Context) (uint64, error)
	// Scan calls fn for every stored event matching filter, in sequence order,
	// stopping early when fn returns false.
	Scan(ctx context.Context, filter AuditFilter, fn func(*AuditEvent) bool) error
}
