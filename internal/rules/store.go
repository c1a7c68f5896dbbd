// Package rules holds the immutable rule store consulted by the analyzer and
// the decision engine.
package rules

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gosuda/prime/internal/domain"
)

// AnalysisFailureRuleID is the rule every synthetic "analysis failure"
// finding refers to. It is always present in a Store.
const AnalysisFailureRuleID = "SYS-001"

func analysisFailureRule() domain.Rule {
	return domain.Rule{
		ID:          AnalysisFailureRuleID,
		Category:    domain.CategorySafety,
		Severity:    5,
		Description: "Risk analysis could not be completed; the request cannot be cleared",
		Flags:       []domain.RuleFlag{domain.FlagHardReject},
	}
}

// Store is a read-only table of rules keyed by ID. It has no writer after
// construction, so concurrent reads need no locking.
type Store struct {
	byID map[string]*domain.Rule
	ids  []string // sorted
}

// New validates rules and builds a Store. Duplicate IDs, unknown categories,
// out-of-range severities and redactable rules without a redaction are errors.
func New(rules []domain.Rule) (*Store, error) {
	s := &Store{byID: make(map[string]*domain.Rule, len(rules)+1)}

	for i := range rules {
		r := rules[i]
		if err := validate(&r); err != nil {
			return nil, fmt.Errorf("rules.New: %w", err)
		}
		if _, dup := s.byID[r.ID]; dup {
			return nil, fmt.Errorf("rules.New: duplicate rule %q", r.ID)
		}
		r.Flags = slices.Clone(r.Flags)
		s.byID[r.ID] = &r
	}

	if _, ok := s.byID[AnalysisFailureRuleID]; !ok {
		r := analysisFailureRule()
		s.byID[r.ID] = &r
	}

	s.ids = make([]string, 0, len(s.byID))
	for id := range s.byID {
		s.ids = append(s.ids, id)
	}
	slices.Sort(s.ids)

	return s, nil
}

func validate(r *domain.Rule) error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("rule with empty id")
	}
	switch r.Category {
	case domain.CategorySafety, domain.CategoryCompliance:
	default:
		return fmt.Errorf("rule %s: unknown category %q", r.ID, r.Category)
	}
	if r.Severity < 1 || r.Severity > 5 {
		return fmt.Errorf("rule %s: severity must be 1-5, got %d", r.ID, r.Severity)
	}
	for _, f := range r.Flags {
		switch f {
		case domain.FlagRedactable, domain.FlagRequiresReview, domain.FlagHardReject:
		default:
			return fmt.Errorf("rule %s: unknown flag %q", r.ID, f)
		}
	}
	if r.HasFlag(domain.FlagRedactable) && (r.Redaction == nil || r.Redaction.Pattern == nil) {
		return fmt.Errorf("rule %s: redactable rule needs a redaction pattern", r.ID)
	}
	if r.Redaction != nil && r.Redaction.KeepLast < 0 {
		return fmt.Errorf("rule %s: keep_last must not be negative", r.ID)
	}
	return nil
}

// Get returns the rule with the given ID.
func (s *Store) Get(id string) (*domain.Rule, bool) {
	r, ok := s.byID[id]
	return r, ok
}

// Has reports whether a rule with the given ID exists.
func (s *Store) Has(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// IDs returns every rule ID in sorted order.
func (s *Store) IDs() []string {
	return slices.Clone(s.ids)
}

// All returns every rule in ID order.
func (s *Store) All() []*domain.Rule {
	out := make([]*domain.Rule, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.byID[id])
	}
	return out
}

// ByCategory returns the rules of category c in ID order.
func (s *Store) ByCategory(c domain.RuleCategory) []*domain.Rule {
	var out []*domain.Rule
	for _, id := range s.ids {
		if r := s.byID[id]; r.Category == c {
			out = append(out, r)
		}
	}
	return out
}

// Len returns the number of rules, including the built-in analysis failure rule.
func (s *Store) Len() int {
	return len(s.ids)
}
