package escalation

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gosuda/prime/internal/domain"
)

// MemoryRepository is an in-process domain.TicketRepository.
type MemoryRepository struct {
	next atomic.Int64

	mu      sync.RWMutex
	tickets map[int64]*domain.EscalationTicket
}

var _ domain.TicketRepository = (*MemoryRepository)(nil) //nolint:gochecknoglobals // compile-time check

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{tickets: make(map[int64]*domain.EscalationTicket)}
}

func (r *MemoryRepository) NextID(_ context.Context) (int64, error) {
	return r.next.Add(1), nil
}

func (r *MemoryRepository) Create(_ context.Context, t *domain.EscalationTicket) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tickets[t.ID]; exists {
		return domain.ErrConflict
	}
	r.tickets[t.ID] = cloneTicket(t)
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id int64) (*domain.EscalationTicket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tickets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneTicket(t), nil
}

// List returns matching tickets ordered by ID.
func (r *MemoryRepository) List(_ context.Context, filter domain.TicketFilter) ([]*domain.EscalationTicket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.EscalationTicket, 0, len(r.tickets))
	for _, t := range r.tickets {
		if filter.Matches(t) {
			out = append(out, cloneTicket(t))
		}
	}
	slices.SortFunc(out, func(a, b *domain.EscalationTicket) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, u domain.TicketUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tickets[u.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if t.Status != u.From {
		return domain.ErrConflict
	}

	t.Status = u.To
	t.UpdatedAt = u.UpdatedAt
	if u.To == domain.TicketResolved && u.Notes != "" {
		notes := u.Notes
		t.ResolutionNotes = &notes
	}
	if u.ResolvedBy != nil {
		by := *u.ResolvedBy
		t.ResolvedBy = &by
	}
	return nil
}

func cloneTicket(t *domain.EscalationTicket) *domain.EscalationTicket {
	c := *t
	c.RuleIDs = slices.Clone(t.RuleIDs)
	if t.ResolvedBy != nil {
		v := *t.ResolvedBy
		c.ResolvedBy = &v
	}
	if t.ResolutionNotes != nil {
		v := *t.ResolutionNotes
		c.ResolutionNotes = &v
	}
	return &c
}
