// Package decision turns Layer-2 findings into the single binding Decision
// for a request.
package decision

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/prime/internal/domain"
	"github.com/gosuda/prime/internal/rules"
	"github.com/gosuda/prime/internal/screen"
)

// DefaultHardRejectSeverity is the lowest severity at which a safety finding
// rejects outright even without the hard-reject flag.
const DefaultHardRejectSeverity = 4

// Policy holds the tunable parts of evaluation.
type Policy struct {
	HardRejectSeverity int
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{HardRejectSeverity: DefaultHardRejectSeverity}
}

// Evaluate maps findings to a Decision. It is pure and does not depend on
// the order of findings. Precedence is reject, escalate, rewrite, approve.
//
// A finding whose rule is missing from store is treated as a hard finding.
func Evaluate(text string, findings []domain.RiskFinding, store *rules.Store, p Policy) domain.Decision {
	if len(findings) == 0 {
		return domain.Approve{}
	}

	var hard, review, redact []string
	for _, f := range findings {
		r, ok := store.Get(f.RuleID)
		switch {
		case !ok, isHard(r, p):
			hard = append(hard, f.RuleID)
		case r.HasFlag(domain.FlagRequiresReview):
			review = append(review, f.RuleID)
		case r.HasFlag(domain.FlagRedactable):
			redact = append(redact, f.RuleID)
		}
	}

	if len(hard) > 0 {
		ids := sortedUnique(hard)
		return domain.Reject{
			Reason:  "request violates " + strings.Join(ids, ", "),
			RuleIDs: ids,
		}
	}

	if len(review) > 0 {
		ids := make([]string, 0, len(findings))
		for _, f := range findings {
			ids = append(ids, f.RuleID)
		}
		sorted := slices.Clone(findings)
		slices.SortFunc(sorted, compareFindings)
		return domain.Escalate{
			Reason:   "requires human review: " + strings.Join(sortedUnique(review), ", "),
			RuleIDs:  sortedUnique(ids),
			Findings: sorted,
			Masked:   redactAll(text, sortedUnique(redact), store),
		}
	}

	if len(redact) > 0 {
		ids := sortedUnique(redact)
		return domain.Rewrite{Original: text, Rewritten: redactAll(text, ids, store), RuleIDs: ids}
	}

	return domain.Approve{}
}

// redactAll applies the redaction of each rule in ids, in order.
func redactAll(text string, ids []string, store *rules.Store) string {
	for _, id := range ids {
		if r, ok := store.Get(id); ok {
			text = rules.Redact(r, text)
		}
	}
	return text
}

func isHard(r *domain.Rule, p Policy) bool {
	if r.HasFlag(domain.FlagHardReject) {
		return true
	}
	return r.Category == domain.CategorySafety && r.Severity >= p.HardRejectSeverity
}

func compareFindings(a, b domain.RiskFinding) int {
	if c := strings.Compare(a.RuleID, b.RuleID); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	return strings.Compare(a.Rationale, b.Rationale)
}

func sortedUnique(ids []string) []string {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

// Recorder appends audit events. *audit.Logger satisfies it.
type Recorder interface {
	Record(ctx context.Context, e *domain.AuditEvent) error
}

// Request identifies the request a decision is made for.
type Request struct {
	ID   string
	User domain.User
	Text string
}

// Engine evaluates findings and records every Decision before returning it.
type Engine struct {
	rules  *rules.Store
	policy Policy
	audit  Recorder
}

// NewEngine creates an Engine.
func NewEngine(store *rules.Store, policy Policy, audit Recorder) *Engine {
	return &Engine{rules: store, policy: policy, audit: audit}
}

// Decide evaluates findings for req and records the resulting DECISION event.
// The returned error is non-nil only when the audit record failed, in which
// case no Decision may be acted on.
func (e *Engine) Decide(ctx context.Context, req Request, findings []domain.RiskFinding) (domain.Decision, error) {
	d := Evaluate(req.Text, findings, e.rules, e.policy)
	if err := e.record(ctx, req, d, "layer2"); err != nil {
		return nil, fmt.Errorf("decision.Engine.Decide: %w", err)
	}
	return d, nil
}

// Refuse records a Reject for a request that Layer-1 stopped, so Layer-2 is
// never consulted.
func (e *Engine) Refuse(ctx context.Context, req Request, reason string) (domain.Decision, error) {
	d := domain.Reject{Reason: reason}
	if err := e.record(ctx, req, d, "layer1"); err != nil {
		return nil, fmt.Errorf("decision.Engine.Refuse: %w", err)
	}
	return d, nil
}

func (e *Engine) record(ctx context.Context, req Request, d domain.Decision, stage string) error {
	payload := domain.DecisionPayload(d)
	payload["stage"] = stage
	if _, ok := d.(domain.Rewrite); !ok {
		payload["input"] = screen.Truncate(req.Text, 200)
	}

	if err := e.audit.Record(ctx, domain.NewAuditEvent(domain.AuditDecision, req.User, req.ID, payload)); err != nil {
		return err
	}

	log.Info().
		Str("request_id", req.ID).
		Str("user_id", req.User.ID).
		Str("decision", string(d.Kind())).
		Str("stage", stage).
		Msg("decision recorded")
	return nil
}
