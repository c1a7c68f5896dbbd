package audit_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/prime/internal/audit"
	"github.com/gosuda/prime/internal/domain"
)

var alice = domain.User{ID: "alice", Role: domain.RoleUser, SessionID: "s1"}

type failingSink struct {
	*audit.MemorySink
	fail bool
}

func (f *failingSink) Append(ctx context.Context, e *domain.AuditEvent) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.MemorySink.Append(ctx, e)
}

type recordingPublisher struct {
	mu       sync.Mutex
	channels []string
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels = append(p.channels, channel)
	return p.err
}

type roleChecker map[domain.Role]bool

func (c roleChecker) Check(u domain.User, _ domain.Permission) bool { return c[u.Role] }

func TestLogger_RecordAssignsSequenceAndTimestamp(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	sink := audit.NewMemorySink()
	l, err := audit.New(context.Background(), sink, audit.WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)

	e1 := domain.NewAuditEvent(domain.AuditLayer1Check, alice, "r1", map[string]any{"passed": true})
	e2 := domain.NewAuditEvent(domain.AuditDecision, alice, "r1", nil)
	require.NoError(t, l.Record(context.Background(), e1))
	require.NoError(t, l.Record(context.Background(), e2))

	assert.Equal(t, uint64(1), e1.Sequence)
	assert.Equal(t, uint64(2), e2.Sequence)
	assert.Equal(t, fixed, e1.Timestamp)
	assert.Equal(t, uint64(2), l.LastSequence())

	events := sink.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "alice", events[0].UserID)
	assert.Equal(t, "s1", events[0].SessionID)
}

func TestLogger_PayloadIsCopied(t *testing.T) {
	t.Parallel()

	sink := audit.NewMemorySink()
	l, err := audit.New(context.Background(), sink)
	require.NoError(t, err)

	payload := map[string]any{"k": "before"}
	require.NoError(t, l.Record(context.Background(), domain.NewAuditEvent(domain.AuditToolCall, alice, "", payload)))
	payload["k"] = "after"

	assert.Equal(t, "before", sink.Events()[0].Payload["k"])
}

func TestLogger_ConcurrentAppendsAreTotallyOrdered(t *testing.T) {
	t.Parallel()

	sink := audit.NewMemorySink()
	l, err := audit.New(context.Background(), sink)
	require.NoError(t, err)

	const n = 200
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Record(context.Background(), domain.NewAuditEvent(domain.AuditToolCall, alice, "", nil)))
		}()
	}
	wg.Wait()

	events := sink.Events()
	require.Len(t, events, n)
	for i, e := range events {
		assert.Equal(t, uint64(i+1), e.Sequence)
	}
}

func TestLogger_FailureIsFatalAndLeavesNoGap(t *testing.T) {
	t.Parallel()

	sink := &failingSink{MemorySink: audit.NewMemorySink()}
	l, err := audit.New(context.Background(), sink)
	require.NoError(t, err)

	require.NoError(t, l.Record(context.Background(), domain.NewAuditEvent(domain.AuditToolCall, alice, "", nil)))

	sink.fail = true
	err = l.Record(context.Background(), domain.NewAuditEvent(domain.AuditToolCall, alice, "", nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAuditWrite)

	sink.fail = false
	e := domain.NewAuditEvent(domain.AuditToolCall, alice, "", nil)
	require.NoError(t, l.Record(context.Background(), e))
	assert.Equal(t, uint64(2), e.Sequence)
}

func TestLogger_RecordNil(t *testing.T) {
	t.Parallel()

	l, err := audit.New(context.Background(), audit.NewMemorySink())
	require.NoError(t, err)
	assert.Error(t, l.Record(context.Background(), nil))
}

func TestLogger_Publishes(t *testing.T) {
	t.Parallel()

	t.Run("after append", func(t *testing.T) {
		t.Parallel()

		pub := &recordingPublisher{}
		l, err := audit.New(context.Background(), audit.NewMemorySink(), audit.WithPublisher(pub))
		require.NoError(t, err)

		require.NoError(t, l.Record(context.Background(), domain.NewAuditEvent(domain.AuditDecision, alice, "r", nil)))
		assert.Equal(t, []string{audit.Channel}, pub.channels)
	})

	t.Run("publish failure does not fail the append", func(t *testing.T) {
		t.Parallel()

		pub := &recordingPublisher{err: errors.New("redis down")}
		sink := audit.NewMemorySink()
		l, err := audit.New(context.Background(), sink, audit.WithPublisher(pub))
		require.NoError(t, err)

		require.NoError(t, l.Record(context.Background(), domain.NewAuditEvent(domain.AuditDecision, alice, "r", nil)))
		assert.Len(t, sink.Events(), 1)
	})

	t.Run("nothing published when append fails", func(t *testing.T) {
		t.Parallel()

		pub := &recordingPublisher{}
		l, err := audit.New(context.Background(), &failingSink{MemorySink: audit.NewMemorySink(), fail: true}, audit.WithPublisher(pub))
		require.NoError(t, err)

		require.Error(t, l.Record(context.Background(), domain.NewAuditEvent(domain.AuditDecision, alice, "r", nil)))
		assert.Empty(t, pub.channels)
	})
}

func TestLogger_Replay(t *testing.T) {
	t.Parallel()

	l, err := audit.New(context.Background(), audit.NewMemorySink())
	require.NoError(t, err)
	for _, k := range []domain.AuditKind{domain.AuditLayer1Check, domain.AuditLayer2Check, domain.AuditDecision} {
		require.NoError(t, l.Record(context.Background(), domain.NewAuditEvent(k, alice, "r1", nil)))
	}

	var kinds []domain.AuditKind
	require.NoError(t, l.Replay(context.Background(), func(e *domain.AuditEvent) error {
		kinds = append(kinds, e.Kind)
		return nil
	}))
	assert.Equal(t, []domain.AuditKind{domain.AuditLayer1Check, domain.AuditLayer2Check, domain.AuditDecision}, kinds)

	stop := errors.New("stop")
	calls := 0
	err = l.Replay(context.Background(), func(*domain.AuditEvent) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestReader_Query(t *testing.T) {
	t.Parallel()

	sink := audit.NewMemorySink()
	l, err := audit.New(context.Background(), sink)
	require.NoError(t, err)
	for _, k := range []domain.AuditKind{domain.AuditLayer1Check, domain.AuditDecision, domain.AuditLayer1Check} {
		require.NoError(t, l.Record(context.Background(), domain.NewAuditEvent(k, alice, "r1", nil)))
	}

	r := audit.NewReader(l, roleChecker{domain.RoleAdmin: true})
	admin := domain.User{ID: "carol", Role: domain.RoleAdmin}

	t.Run("filter and limit", func(t *testing.T) {
		got, err := r.Query(context.Background(), admin, domain.AuditFilter{Kind: domain.AuditLayer1Check})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, uint64(1), got[0].Sequence)
		assert.Equal(t, uint64(3), got[1].Sequence)

		got, err = r.Query(context.Background(), admin, domain.AuditFilter{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("denied is recorded", func(t *testing.T) {
		_, err := r.Query(context.Background(), alice, domain.AuditFilter{})
		require.ErrorIs(t, err, domain.ErrPermissionDenied)

		events := sink.Events()
		assert.Equal(t, domain.AuditAccessDenied, events[len(events)-1].Kind)
	})
}

func TestJSONLSink(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "audit", "events.jsonl")

	sink, err := audit.NewJSONLSink(path)
	require.NoError(t, err)
	l, err := audit.New(context.Background(), sink)
	require.NoError(t, err)

	require.NoError(t, l.Record(context.Background(), domain.NewAuditEvent(domain.AuditLayer1Check, alice, "r1", map[string]any{"passed": true})))
	require.NoError(t, l.Record(context.Background(), domain.NewAuditEvent(domain.AuditDecision, alice, "r1", map[string]any{"decision": "approve"})))
	require.NoError(t, sink.Close())

	// Reopening resumes the sequence.
	reopened, err := audit.NewJSONLSink(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	l2, err := audit.New(context.Background(), reopened)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), l2.LastSequence())

	e := domain.NewAuditEvent(domain.AuditToolCall, alice, "", nil)
	require.NoError(t, l2.Record(context.Background(), e))
	assert.Equal(t, uint64(3), e.Sequence)

	var got []*domain.AuditEvent
	require.NoError(t, reopened.Scan(context.Background(), domain.AuditFilter{RequestID: "r1"}, func(e *domain.AuditEvent) bool {
		got = append(got, e)
		return true
	}))
	require.Len(t, got, 2)
	assert.Equal(t, domain.AuditDecision, got[1].Kind)
	assert.Equal(t, "approve", got[1].Payload["decision"])
}

func TestJSONLSink_EmptyPath(t *testing.T) {
	t.Parallel()

	_, err := audit.NewJSONLSink("")
	assert.Error(t, err)
}

func TestJSONLSink_AppendAfterClose(t *testing.T) {
	t.Parallel()

	sink, err := audit.NewJSONLSink(filepath.Join(t.TempDir(), "a.jsonl"))
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	err = sink.Append(context.Background(), &domain.AuditEvent{Sequence: 1})
	assert.Error(t, err)
}
