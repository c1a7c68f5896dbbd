package domain

import (
	"regexp"
	"slices"

	"github.com/shopspring/decimal"
)

type RuleCategory string

const (
	CategorySafety     RuleCategory = "safety"
	CategoryCompliance RuleCategory = "compliance"
)

type RuleFlag string

const (
	FlagRedactable     RuleFlag = "redactable"
	FlagRequiresReview RuleFlag = "requires-review"
	FlagHardReject     RuleFlag = "hard-reject"
)

// Rule is a loaded policy or safety rule. Rules are immutable once the rule
// store is built and are keyed uniquely by ID.
type Rule struct {
	ID          string
	Category    RuleCategory
	Severity    int // 1 (informational) .. 5 (critical)
	Description string
	Flags       []RuleFlag
	Predicate   Predicate
	Redaction   *Redaction // required when the rule is redactable
}

// HasFlag reports whether the rule carries flag f.
func (r *Rule) HasFlag(f RuleFlag) bool {
	return slices.Contains(r.Flags, f)
}

// Predicate is the machine-checkable part of a rule. A predicate matches when
// any pattern or keyword matches and, if MinAmount is set, some money amount
// in the text is at least MinAmount.
type Predicate struct {
	Patterns  []*regexp.Regexp
	Keywords  []string // lower-case, matched as substrings
	MinAmount *decimal.Decimal
}

// Empty reports whether the predicate has nothing to evaluate.
func (p Predicate) Empty() bool {
	return len(p.Patterns) == 0 && len(p.Keywords) == 0 && p.MinAmount == nil
}

// Redaction masks every match of Pattern, keeping the last KeepLast characters.
type Redaction struct {
	Pattern  *regexp.Regexp
	KeepLast int
}

// RiskFinding is one Layer-2 result against a single rule. Findings are scoped
// to one request's evaluation.
type RiskFinding struct {
	RuleID    string  `json:"rule_id"`
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale"`
	Synthetic bool    `json:"synthetic,omitempty"`
}
