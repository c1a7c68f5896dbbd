package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/prime/internal/domain"
)

// AuditRepo is a domain.AuditSink backed by the audit_events table. The
// sequence number is the primary key, so a replayed append cannot duplicate
// an event.
type AuditRepo struct {
	pool *pgxpool.Pool
}

var _ domain.AuditSink = (*AuditRepo)(nil) //nolint:gochecknoglobals // compile-time check

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

func (r *AuditRepo) Append(ctx context.Context, e *domain.AuditEvent) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("auditRepo.Append: marshal payload: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO audit_events (seq, kind, ts, user_id, session_id, request_id, payload)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		int64(e.Sequence), e.Kind, e.Timestamp, e.UserID, e.SessionID, e.RequestID, payload, //nolint:gosec // sequence fits in int64
	)
	if err != nil {
		return fmt.Errorf("auditRepo.Append: %w", err)
	}

	return nil
}

func (r *AuditRepo) LastSequence(ctx context.Context) (uint64, error) {
	var last int64
	if err := r.pool.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM audit_events`).Scan(&last); err != nil {
		return 0, fmt.Errorf("auditRepo.LastSequence: %w", err)
	}
	return uint64(last), nil //nolint:gosec // seq is never negative
}

// Scan streams matching events in sequence order until fn returns false.
func (r *AuditRepo) Scan(ctx context.Context, filter domain.AuditFilter, fn func(*domain.AuditEvent) bool) error {
	where, args := auditWhere(filter)
	rows, err := r.pool.Query(ctx,
		`SELECT seq, kind, ts, user_id, session_id, request_id, payload
		 FROM audit_events`+where+` ORDER BY seq`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("auditRepo.Scan: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e       domain.AuditEvent
			seq     int64
			payload []byte
		)
		if err := rows.Scan(&seq, &e.Kind, &e.Timestamp, &e.UserID, &e.SessionID, &e.RequestID, &payload); err != nil {
			return fmt.Errorf("auditRepo.Scan: scan: %w", err)
		}
		e.Sequence = uint64(seq) //nolint:gosec // seq is never negative
		if err := json.Unmarshal(payload, &e.Payload); err != nil {
			return fmt.Errorf("auditRepo.Scan: unmarshal payload: %w", err)
		}
		if !fn(&e) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("auditRepo.Scan: rows: %w", err)
	}

	return nil
}

func auditWhere(f domain.AuditFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Kind != "" {
		add("kind = $%d", f.Kind)
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.RequestID != "" {
		add("request_id = $%d", f.RequestID)
	}
	if f.AfterSeq > 0 {
		add("seq > $%d", int64(f.AfterSeq)) //nolint:gosec // sequence fits in int64
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
