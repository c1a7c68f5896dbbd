package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/prime/internal/domain"
)

const ticketColumns = `id, request_id, request_summary, user_id, session_id, rationale, rule_ids,
		        status, resolved_by, resolution_notes, created_at, updated_at`

type TicketRepo struct {
	pool *pgxpool.Pool
}

var _ domain.TicketRepository = (*TicketRepo)(nil) //nolint:gochecknoglobals // compile-time check

func NewTicketRepo(pool *pgxpool.Pool) *TicketRepo {
	return &TicketRepo{pool: pool}
}

func (r *TicketRepo) NextID(ctx context.Context) (int64, error) {
	var id int64
	if err := r.pool.QueryRow(ctx, `SELECT nextval('escalation_ticket_id_seq')`).Scan(&id); err != nil {
		return 0, fmt.Errorf("ticketRepo.NextID: %w", err)
	}
	return id, nil
}

func (r *TicketRepo) Create(ctx context.Context, t *domain.EscalationTicket) error {
	ruleIDs := t.RuleIDs
	if ruleIDs == nil {
		ruleIDs = []string{}
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO escalation_tickets (`+ticketColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.RequestID, t.RequestSummary, t.UserID, t.SessionID, t.Rationale, ruleIDs,
		t.Status, t.ResolvedBy, t.ResolutionNotes, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ticketRepo.Create: %w", err)
	}

	return nil
}

func (r *TicketRepo) GetByID(ctx context.Context, id int64) (*domain.EscalationTicket, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM escalation_tickets WHERE id = $1`,
		id,
	)

	t, err := scanTicket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("ticketRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ticketRepo.GetByID: %w", err)
	}

	return t, nil
}

func (r *TicketRepo) List(ctx context.Context, filter domain.TicketFilter) ([]*domain.EscalationTicket, error) {
	where, args := ticketWhere(filter)
	rows, err := r.pool.Query(ctx,
		`SELECT `+ticketColumns+` FROM escalation_tickets`+where+` ORDER BY id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("ticketRepo.List: %w", err)
	}
	defer rows.Close()

	var tickets []*domain.EscalationTicket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("ticketRepo.List: scan: %w", err)
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ticketRepo.List: rows: %w", err)
	}

	return tickets, nil
}

// UpdateStatus applies u only while the row still has status u.From.
func (r *TicketRepo) UpdateStatus(ctx context.Context, u domain.TicketUpdate) error {
	var notes *string
	if u.To == domain.TicketResolved && u.Notes != "" {
		notes = &u.Notes
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE escalation_tickets
		 SET status = $1, updated_at = $2,
		     resolution_notes = COALESCE($3, resolution_notes),
		     resolved_by = COALESCE($4, resolved_by)
		 WHERE id = $5 AND status = $6`,
		u.To, u.UpdatedAt, notes, u.ResolvedBy, u.ID, u.From,
	)
	if err != nil {
		return fmt.Errorf("ticketRepo.UpdateStatus: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	err = r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM escalation_tickets WHERE id = $1)`, u.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("ticketRepo.UpdateStatus: %w", err)
	}
	if !exists {
		return fmt.Errorf("ticketRepo.UpdateStatus: %w", domain.ErrNotFound)
	}
	return fmt.Errorf("ticketRepo.UpdateStatus: status is no longer %s: %w", u.From, domain.ErrConflict)
}

func scanTicket(row pgx.Row) (*domain.EscalationTicket, error) {
	var t domain.EscalationTicket
	err := row.Scan(
		&t.ID, &t.RequestID, &t.RequestSummary, &t.UserID, &t.SessionID, &t.Rationale, &t.RuleIDs,
		&t.Status, &t.ResolvedBy, &t.ResolutionNotes, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func ticketWhere(f domain.TicketFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.UserID != "" {
		args = append(args, f.UserID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
