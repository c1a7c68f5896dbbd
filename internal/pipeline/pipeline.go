// Package pipeline runs one user request through access control, both
// screening layers and the decision engine, escalating when required.
package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/prime/internal/analyzer"
	"github.com/gosuda/prime/internal/decision"
	"github.com/gosuda/prime/internal/domain"
	"github.com/gosuda/prime/internal/escalation"
	"github.com/gosuda/prime/internal/screen"
)

// summaryLength bounds the request text copied onto an escalation ticket.
const summaryLength = 200

type Authorizer interface {
	Require(ctx context.Context, u domain.User, p domain.Permission, requestID, op string) error
}

type Screener interface {
	Screen(ctx context.Context, req screen.Request) (screen.Result, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, req analyzer.Request) ([]domain.RiskFinding, error)
}

type Decider interface {
	Decide(ctx context.Context, req decision.Request, findings []domain.RiskFinding) (domain.Decision, error)
	Refuse(ctx context.Context, req decision.Request, reason string) (domain.Decision, error)
}

type Escalator interface {
	Create(ctx context.Context, in escalation.TicketInput) (int64, error)
}

// Outcome is the result of processing one request.
type Outcome struct {
	RequestID string
	Decision  domain.Decision
	// TicketID is set only for an Escalate decision.
	TicketID int64
	Findings []domain.RiskFinding
	Layer1   screen.Result
}

// Pipeline is safe for concurrent use; it keeps no per-request state.
type Pipeline struct {
	access    Authorizer
	screen    Screener
	analyzer  Analyzer
	decider   Decider
	escalator Escalator
	newID     func() string
}

// Option configures optional Pipeline parameters.
type Option func(*Pipeline)

// WithIDGenerator replaces the request ID source.
func WithIDGenerator(fn func() string) Option {
	return func(p *Pipeline) { p.newID = fn }
}

// New creates a Pipeline.
func New(access Authorizer, screener Screener, risk Analyzer, decider Decider, escalator Escalator, opts ...Option) *Pipeline {
	p := &Pipeline{
		access:    access,
		screen:    screener,
		analyzer:  risk,
		decider:   decider,
		escalator: escalator,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process evaluates text submitted by user and returns the binding outcome.
//
// A caller without submit_request gets domain.ErrPermissionDenied and no
// Decision. Any other error means an audit record or the escalation ticket
// could not be written, and the request must not proceed. Rejections,
// rewrites and escalations are Outcomes, not errors.
func (p *Pipeline) Process(ctx context.Context, user domain.User, text string) (*Outcome, error) {
	requestID := p.newID()
	out := &Outcome{RequestID: requestID}

	if err := p.access.Require(ctx, user, domain.PermSubmitRequest, requestID, "submit_request"); err != nil {
		return nil, fmt.Errorf("pipeline.Process: %w", err)
	}

	l1, err := p.screen.Screen(ctx, screen.Request{ID: requestID, User: user, Text: text})
	if err != nil {
		return nil, fmt.Errorf("pipeline.Process: layer1: %w", err)
	}
	out.Layer1 = l1

	dreq := decision.Request{ID: requestID, User: user, Text: text}

	if !l1.Passed {
		d, err := p.decider.Refuse(ctx, dreq, l1.Reason)
		if err != nil {
			return nil, fmt.Errorf("pipeline.Process: %w", err)
		}
		out.Decision = d
		return out, nil
	}

	findings, err := p.analyzer.Analyze(ctx, analyzer.Request{ID: requestID, User: user, Text: text})
	if err != nil {
		return nil, fmt.Errorf("pipeline.Process: layer2: %w", err)
	}
	out.Findings = findings

	d, err := p.decider.Decide(ctx, dreq, findings)
	if err != nil {
		return nil, fmt.Errorf("pipeline.Process: %w", err)
	}
	out.Decision = d

	if esc, ok := d.(domain.Escalate); ok {
		id, err := p.escalator.Create(ctx, escalation.TicketInput{
			RequestID: requestID,
			User:      user,
			Summary:   screen.Truncate(esc.Masked, summaryLength),
			Rationale: esc.Reason,
			RuleIDs:   esc.RuleIDs,
		})
		if err != nil {
			return nil, fmt.Errorf("pipeline.Process: escalate: %w", err)
		}
		out.TicketID = id
	}

	log.Debug().
		Str("request_id", requestID).
		Str("user_id", user.ID).
		Str("decision", string(d.Kind())).
		Int("findings", len(findings)).
		Msg("request processed")

	return out, nil
}
