// Package analyzer implements the Layer-2 risk analysis: it asks a
// classifier which rules a request violates and turns the answer into
// validated risk findings.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/prime/internal/domain"
	"github.com/gosuda/prime/internal/rules"
	"github.com/gosuda/prime/internal/screen"
)

// DefaultTimeout bounds a single classifier call.
const DefaultTimeout = 10 * time.Second

// Query is what a classifier is asked about one request.
type Query struct {
	Text        string
	Rules       *rules.Store
	Role        domain.Role
	Permissions []domain.Permission
}

// Verdict is one raw classifier claim that a rule applies.
type Verdict struct {
	RuleID     string  `json:"rule_id"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// Classifier is the external risk classifier. Implementations should honor
// ctx, but the Analyzer does not rely on it.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, q Query) ([]Verdict, error)
}

// PermissionLister resolves a role's permissions. *access.Table satisfies it.
type PermissionLister interface {
	Permissions(role domain.Role) []domain.Permission
}

// Recorder appends audit events. *audit.Logger satisfies it.
type Recorder interface {
	Record(ctx context.Context, e *domain.AuditEvent) error
}

// Request is the input to Analyze.
type Request struct {
	ID   string
	User domain.User
	Text string
}

// Analyzer runs one classifier call per request under a hard timeout.
type Analyzer struct {
	classifier Classifier
	rules      *rules.Store
	perms      PermissionLister
	audit      Recorder
	timeout    time.Duration
}

// Option configures optional Analyzer parameters.
type Option func(*Analyzer)

// WithTimeout sets the per-call classifier timeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// New creates an Analyzer.
func New(classifier Classifier, store *rules.Store, perms PermissionLister, audit Recorder, opts ...Option) *Analyzer {
	a := &Analyzer{
		classifier: classifier,
		rules:      store,
		perms:      perms,
		audit:      audit,
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type classifyResult struct {
	verdicts []Verdict
	err      error
}

// Analyze returns the findings for req, possibly none. A classifier error,
// timeout or malformed answer never yields an empty result: it becomes a
// single synthetic finding against the analysis failure rule. Verdicts naming
// rules unknown to the store are discarded and listed in the audit record.
//
// Exactly one LAYER2_CHECK event is recorded. The error is non-nil only when
// that record could not be persisted.
func (a *Analyzer) Analyze(ctx context.Context, req Request) ([]domain.RiskFinding, error) {
	start := time.Now()
	q := Query{
		Text:        req.Text,
		Rules:       a.rules,
		Role:        req.User.Role,
		Permissions: a.perms.Permissions(req.User.Role),
	}

	verdicts, classifyErr := a.classify(ctx, q)

	var (
		findings  []domain.RiskFinding
		discarded []string
		failure   string
	)
	if classifyErr != nil {
		failure = classifyErr.Error()
		findings = []domain.RiskFinding{analysisFailure(classifyErr)}
		log.Warn().Err(classifyErr).Str("request_id", req.ID).Str("classifier", a.classifier.Name()).Msg("layer-2 analysis failed")
	} else {
		findings, discarded = a.validate(verdicts)
	}

	err := a.audit.Record(ctx, domain.NewAuditEvent(domain.AuditLayer2Check, req.User, req.ID, map[string]any{
		"input":      screen.Truncate(req.Text, 200),
		"classifier": a.classifier.Name(),
		"findings":   findings,
		"discarded":  discarded,
		"failure":    failure,
		"latency_ms": time.Since(start).Milliseconds(),
	}))
	if err != nil {
		return nil, fmt.Errorf("analyzer.Analyzer.Analyze: %w", err)
	}

	return findings, nil
}

// classify runs the classifier in its own goroutine so that a classifier
// ignoring ctx still cannot hold the pipeline past the timeout.
func (a *Analyzer) classify(ctx context.Context, q Query) ([]Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	done := make(chan classifyResult, 1)
	go func() {
		v, err := a.classifier.Classify(ctx, q)
		done <- classifyResult{verdicts: v, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrClassifierFailure, res.err)
		}
		return res.verdicts, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", domain.ErrClassifierFailure, ctx.Err())
	}
}

// validate keeps verdicts whose rule exists, clamps scores into [0,1] and
// collapses duplicates to the highest-confidence verdict per rule.
func (a *Analyzer) validate(verdicts []Verdict) ([]domain.RiskFinding, []string) {
	var (
		findings  []domain.RiskFinding
		discarded []string
		index     = make(map[string]int)
	)
	for _, v := range verdicts {
		if !a.rules.Has(v.RuleID) {
			discarded = append(discarded, v.RuleID)
			continue
		}
		f := domain.RiskFinding{
			RuleID:    v.RuleID,
			Score:     clamp(v.Confidence),
			Rationale: v.Rationale,
		}
		if i, seen := index[v.RuleID]; seen {
			if f.Score > findings[i].Score {
				findings[i] = f
			}
			continue
		}
		index[v.RuleID] = len(findings)
		findings = append(findings, f)
	}
	return findings, discarded
}

func analysisFailure(err error) domain.RiskFinding {
	rationale := "analysis failure: " + err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		rationale = "analysis failure: classifier timed out"
	}
	return domain.RiskFinding{
		RuleID:    rules.AnalysisFailureRuleID,
		Score:     1,
		Rationale: rationale,
		Synthetic: true,
	}
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 1
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
