// Package audit implements the process-wide append-only audit log.
//
// Every component records its state transitions through a Logger. Appends
// are serialized by a single writer that stamps each event with the next
// sequence number, so the stored order is the arrival order even under
// concurrent writers. There is no update or delete operation.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/prime/internal/domain"
)

// Publisher fans appended events out to live consumers. Publishing happens
// after the durable append and its failures never fail the append.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Channel is the pub/sub channel audit events are published on.
const Channel = "prime:audit"

// Logger serializes appends to a Sink.
type Logger struct {
	mu        sync.Mutex
	sink      domain.AuditSink
	seq       uint64
	clock     func() time.Time
	publisher Publisher
}

// Option configures optional Logger parameters.
type Option func(*Logger)

// WithClock overrides the clock for deterministic testing.
func WithClock(clock func() time.Time) Option {
	return func(l *Logger) {
		l.clock = clock
	}
}

// WithPublisher publishes every appended event on Channel.
func WithPublisher(p Publisher) Option {
	return func(l *Logger) {
		l.publisher = p
	}
}

// New creates a Logger that resumes numbering after the sink's last stored event.
func New(ctx context.Context, sink domain.AuditSink, opts ...Option) (*Logger, error) {
	last, err := sink.LastSequence(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit.New: last sequence: %w", err)
	}

	l := &Logger{
		sink:  sink,
		seq:   last,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Record appends e. On success e.Sequence and e.Timestamp are set. A storage
// failure is returned wrapped in domain.ErrAuditWrite and must be treated as
// fatal for the triggering operation.
func (l *Logger) Record(ctx context.Context, e *domain.AuditEvent) error {
	if e == nil {
		return errors.New("audit.Logger.Record: nil event")
	}

	stored, err := l.append(ctx, e)
	if err != nil {
		log.Error().Err(err).Str("kind", string(e.Kind)).Str("user_id", e.UserID).Msg("audit append failed")
		return fmt.Errorf("audit.Logger.Record: %w: %w", domain.ErrAuditWrite, err)
	}

	l.publish(ctx, stored)
	return nil
}

func (l *Logger) append(ctx context.Context, e *domain.AuditEvent) (domain.AuditEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := *e
	next.Sequence = l.seq + 1
	next.Timestamp = l.clock().UTC()
	next.Payload = maps.Clone(e.Payload)

	if err := l.sink.Append(ctx, &next); err != nil {
		return next, err
	}

	// Only advance once the event is durable, so a failed append leaves no gap.
	l.seq = next.Sequence
	e.Sequence = next.Sequence
	e.Timestamp = next.Timestamp

	return next, nil
}

func (l *Logger) publish(ctx context.Context, e domain.AuditEvent) {
	if l.publisher == nil {
		return
	}
	payload, err := json.Marshal(e)
	if err != nil {
		log.Warn().Err(err).Uint64("seq", e.Sequence).Msg("audit publish: marshal")
		return
	}
	if err := l.publisher.Publish(ctx, Channel, payload); err != nil {
		log.Warn().Err(err).Uint64("seq", e.Sequence).Msg("audit publish failed")
	}
}

// Replay streams every stored event in sequence order to fn, which can
// reconstruct full request history. It stops at the first error fn returns.
func (l *Logger) Replay(ctx context.Context, fn func(*domain.AuditEvent) error) error {
	var fnErr error
	err := l.sink.Scan(ctx, domain.AuditFilter{}, func(e *domain.AuditEvent) bool {
		fnErr = fn(e)
		return fnErr == nil
	})
	if err != nil {
		return fmt.Errorf("audit.Logger.Replay: %w", err)
	}
	return fnErr
}

// LastSequence returns the sequence number of the latest appended event.
func (l *Logger) LastSequence() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq
}
