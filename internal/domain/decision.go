package domain

// DecisionKind names a Decision variant on the wire and in audit payloads.
type DecisionKind string

const (
	DecisionApprove  DecisionKind = "approve"
	DecisionReject   DecisionKind = "reject"
	DecisionRewrite  DecisionKind = "rewrite"
	DecisionEscalate DecisionKind = "escalate"
)

// Decision is the binding outcome of one request. It is a closed sum type:
// the only implementations are Approve, Reject, Rewrite and Escalate.
// Consumers must switch over all four and treat anything else as a refusal.
type Decision interface {
	Kind() DecisionKind
	sealed()
}

type Approve struct{}

type Reject struct {
	Reason  string   `json:"reason"`
	RuleIDs []string `json:"rule_ids,omitempty"`
}

// Rewrite carries both texts: Original is kept for audit, Rewritten is what
// downstream processing acts on.
type Rewrite struct {
	Original  string   `json:"original"`
	Rewritten string   `json:"rewritten"`
	RuleIDs   []string `json:"rule_ids"`
}

type Escalate struct {
	Reason   string        `json:"reason"`
	RuleIDs  []string      `json:"rule_ids"`
	Findings []RiskFinding `json:"findings"`
	// Masked is the request text with every matched redaction applied. It is
	// what leaves the audit log: ticket summaries and reviewer cards.
	Masked string `json:"masked_text"`
}

func (Approve) Kind() DecisionKind  { return DecisionApprove }
func (Reject) Kind() DecisionKind   { return DecisionReject }
func (Rewrite) Kind() DecisionKind  { return DecisionRewrite }
func (Escalate) Kind() DecisionKind { return DecisionEscalate }

func (Approve) sealed()  {}
func (Reject) sealed()   {}
func (Rewrite) sealed()  {}
func (Escalate) sealed() {}

// DecisionPayload renders d as a flat map for audit events and API bodies.
// An unrecognized variant is rendered as a reject.
func DecisionPayload(d Decision) map[string]any {
	switch v := d.(type) {
	case Approve:
		return map[string]any{"decision": DecisionApprove}
	case Reject:
		return map[string]any{"decision": DecisionReject, "reason": v.Reason, "rule_ids": v.RuleIDs}
	case Rewrite:
		return map[string]any{
			"decision":       DecisionRewrite,
			"original_text":  v.Original,
			"rewritten_text": v.Rewritten,
			"rule_ids":       v.RuleIDs,
		}
	case Escalate:
		return map[string]any{
			"decision": DecisionEscalate,
			"reason":   v.Reason,
			"rule_ids": v.RuleIDs,
			"findings": v.Findings,
		}
	default:
		return map[string]any{"decision": DecisionReject, "reason": "unrecognized decision"}
	}
}
