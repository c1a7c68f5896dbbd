package analyzer

import (
	"context"

	"github.com/gosuda/prime/internal/rules"
)

// RuleClassifier evaluates each rule's machine-checkable predicate locally.
// It is deterministic and needs no network, so it also serves as the
// offline fallback and the reference classifier in tests.
type RuleClassifier struct{}

func (RuleClassifier) Name() string { return "rules" }

func (RuleClassifier) Classify(ctx context.Context, q Query) ([]Verdict, error) {
	var out []Verdict
	for _, r := range q.Rules.All() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if rules.Match(r, q.Text) {
			out = append(out, Verdict{
				RuleID:     r.ID,
				Confidence: 1,
				Rationale:  "matched rule predicate: " + r.Description,
			})
		}
	}
	return out, nil
}
