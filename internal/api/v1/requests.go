package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/prime/internal/domain"
	"github.com/gosuda/prime/internal/pipeline"
)

type SubmitRequestInput struct {
	Body struct {
		Text string `json:"text" minLength:"1" doc:"Request text as typed by the user"`
	}
}

// DecisionBody is the wire form of a Decision.
type DecisionBody struct {
	Kind          domain.DecisionKind `json:"kind" doc:"approve, reject, rewrite or escalate"`
	Reason        string              `json:"reason,omitempty"`
	RuleIDs       []string            `json:"rule_ids,omitempty"`
	RewrittenText string              `json:"rewritten_text,omitempty" doc:"Text downstream processing must use instead of the original"`
}

type Layer1Body struct {
	Passed bool   `json:"passed"`
	Reason string `json:"reason,omitempty"`
	Marker string `json:"marker,omitempty"`
}

type SubmitRequestOutput struct {
	Body struct {
		RequestID string               `json:"request_id"`
		Decision  DecisionBody         `json:"decision"`
		TicketID  int64                `json:"ticket_id,omitempty"`
		Findings  []domain.RiskFinding `json:"findings,omitempty"`
		Layer1    Layer1Body           `json:"layer1"`
	}
}

// decisionBody renders d. An unknown variant is reported as a rejection.
func decisionBody(d domain.Decision) DecisionBody {
	switch v := d.(type) {
	case domain.Approve:
		return DecisionBody{Kind: domain.DecisionApprove}
	case domain.Reject:
		return DecisionBody{Kind: domain.DecisionReject, Reason: v.Reason, RuleIDs: v.RuleIDs}
	case domain.Rewrite:
		return DecisionBody{Kind: domain.DecisionRewrite, RuleIDs: v.RuleIDs, RewrittenText: v.Rewritten}
	case domain.Escalate:
		return DecisionBody{Kind: domain.DecisionEscalate, Reason: v.Reason, RuleIDs: v.RuleIDs}
	default:
		return DecisionBody{Kind: domain.DecisionReject, Reason: "unrecognized decision"}
	}
}

func RegisterRequestRoutes(api huma.API, processor RequestProcessor) {
	huma.Register(api, huma.Operation{
		OperationID: "submit-request",
		Method:      http.MethodPost,
		Path:        "/requests",
		Summary:     "Evaluate a user request and return the binding decision",
		Tags:        []string{"Requests"},
	}, func(ctx context.Context, input *SubmitRequestInput) (*SubmitRequestOutput, error) {
		u, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		out, err := processor.Process(ctx, u, input.Body.Text)
		if err != nil {
			return nil, toHTTPError(err, "failed to process request")
		}

		return submitOutput(out), nil
	})
}

func submitOutput(out *pipeline.Outcome) *SubmitRequestOutput {
	resp := &SubmitRequestOutput{}
	resp.Body.RequestID = out.RequestID
	resp.Body.Decision = decisionBody(out.Decision)
	resp.Body.TicketID = out.TicketID
	resp.Body.Findings = out.Findings
	resp.Body.Layer1 = Layer1Body{
		Passed: out.Layer1.Passed,
		Reason: out.Layer1.Reason,
		Marker: out.Layer1.Marker,
	}
	return resp
}
