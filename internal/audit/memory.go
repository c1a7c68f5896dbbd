package audit

import (
	"context"
	"sync"

	"github.com/gosuda/prime/internal/domain"
)

// MemorySink keeps events in process memory. It backs tests and
// single-process deployments without a durable store.
type MemorySink struct {
	mu     sync.RWMutex
	events []domain.AuditEvent
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Append(_ context.Context, e *domain.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *e)
	return nil
}

func (s *MemorySink) LastSequence(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.events) == 0 {
		return 0, nil
	}
	return s.events[len(s.events)-1].Sequence, nil
}

func (s *MemorySink) Scan(ctx context.Context, filter domain.AuditFilter, fn func(*domain.AuditEvent) bool) error {
	s.mu.RLock()
	snapshot := make([]domain.AuditEvent, len(s.events))
	copy(snapshot, s.events)
	s.mu.RUnlock()

	for i := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !filter.Matches(&snapshot[i]) {
			continue
		}
		if !fn(&snapshot[i]) {
			return nil
		}
	}
	return nil
}

// Events returns a copy of every stored event in order.
func (s *MemorySink) Events() []domain.AuditEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AuditEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Kinds returns the kind of every stored event in order.
func (s *MemorySink) Kinds() []domain.AuditKind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AuditKind, len(s.events))
	for i := range s.events {
		out[i] = s.events[i].Kind
	}
	return out
}
