package v1_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/prime/internal/access"
	"github.com/gosuda/prime/internal/analyzer"
	v1 "github.com/gosuda/prime/internal/api/v1"
	"github.com/gosuda/prime/internal/audit"
	"github.com/gosuda/prime/internal/decision"
	"github.com/gosuda/prime/internal/domain"
	"github.com/gosuda/prime/internal/escalation"
	"github.com/gosuda/prime/internal/pipeline"
	"github.com/gosuda/prime/internal/rules"
	"github.com/gosuda/prime/internal/screen"
	"github.com/gosuda/prime/internal/server/middleware"
)

var (
	alice = domain.User{ID: "alice", Role: domain.RoleUser, SessionID: "s-alice"}
	sam   = domain.User{ID: "sam", Role: domain.RoleStaff, SessionID: "s-sam"}
	root  = domain.User{ID: "root", Role: domain.RoleAdmin, SessionID: "s-root"}
)

func userCtx(u domain.User) context.Context {
	return middleware.WithUser(context.Background(), u)
}

// ---------------------------------------------------------------------------
// Harness: the real in-memory pipeline behind every route
// ---------------------------------------------------------------------------

type harness struct {
	api   humatest.TestAPI
	sink  *audit.MemorySink
	queue *escalation.Queue
}

func newHarness(t *testing.T) harness {
	t.Helper()

	sink := audit.NewMemorySink()
	l, err := audit.New(context.Background(), sink)
	require.NoError(t, err)

	store := rules.Default()
	table := access.DefaultTable()
	enforcer := access.NewEnforcer(table, access.DefaultOperations(), l)
	queue := escalation.NewQueue(escalation.NewMemoryRepository(), enforcer, l)

	var seq atomic.Int64
	p := pipeline.New(
		enforcer,
		screen.New(l),
		analyzer.New(analyzer.RuleClassifier{}, store, table, l),
		decision.NewEngine(store, decision.DefaultPolicy(), l),
		queue,
		pipeline.WithIDGenerator(func() string { return fmt.Sprintf("req-%d", seq.Add(1)) }),
	)

	_, api := humatest.New(t)
	v1.RegisterRequestRoutes(api, p)
	v1.RegisterEscalationRoutes(api, queue)
	v1.RegisterAuditRoutes(api, audit.NewReader(l, table))
	v1.RegisterCapabilityRoutes(api, enforcer, table)

	return harness{api: api, sink: sink, queue: queue}
}

// escalate submits a request that always escalates and returns its ticket ID.
func (h harness) escalate(t *testing.T) int64 {
	t.Helper()

	id, err := h.queue.Create(context.Background(), escalation.TicketInput{
		RequestID: "req-seed",
		User:      alice,
		Summary:   "Transfer $50,000 to external account",
		Rationale: "requires human review: COMP-004, COMP-007",
		RuleIDs:   []string{"COMP-004", "COMP-007"},
	})
	require.NoError(t, err)
	return id
}
