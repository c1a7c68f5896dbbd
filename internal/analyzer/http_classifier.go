package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/gosuda/prime/internal/domain"
)

// maxResponseBytes caps how much of a classifier response is read.
const maxResponseBytes = 1 << 20

// ErrMalformedResponse is returned when the model's answer cannot be decoded
// into the findings schema.
var ErrMalformedResponse = errors.New("analyzer: malformed classifier response") //nolint:gochecknoglobals // sentinel error

// HTTPClassifier asks an OpenAI-compatible chat completions endpoint to
// classify a request against the rule set.
type HTTPClassifier struct {
	url    string
	apiKey string
	model  string
	client *http.Client
}

// NewHTTPClassifier creates an HTTPClassifier. A nil client uses http.DefaultClient;
// per-call deadlines come from the Analyzer's context.
func NewHTTPClassifier(url, apiKey, model string, client *http.Client) *HTTPClassifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPClassifier{url: url, apiKey: apiKey, model: model, client: client}
}

func (c *HTTPClassifier) Name() string { return "http:" + c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type findingsEnvelope struct {
	Findings *[]Verdict `json:"findings"`
}

func (c *HTTPClassifier) Classify(ctx context.Context, q Query) ([]Verdict, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: BuildPrompt(q)},
			{Role: "user", Content: q.Text},
		},
		Temperature:    0.1,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("analyzer.HTTPClassifier.Classify: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("analyzer.HTTPClassifier.Classify: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analyzer.HTTPClassifier.Classify: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("analyzer.HTTPClassifier.Classify: read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analyzer.HTTPClassifier.Classify: status %d", resp.StatusCode)
	}

	var chat chatResponse
	if err := json.Unmarshal(raw, &chat); err != nil {
		return nil, fmt.Errorf("analyzer.HTTPClassifier.Classify: %w: %w", ErrMalformedResponse, err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("analyzer.HTTPClassifier.Classify: %w: no choices", ErrMalformedResponse)
	}

	return ParseVerdicts(chat.Choices[0].Message.Content)
}

// ParseVerdicts decodes a model answer of the form {"findings": [...]}.
// Code fences are stripped and near-JSON (trailing commas, single quotes,
// truncated brackets) is repaired before decoding. A missing "findings" key
// is malformed; an empty list is a valid "no findings" answer.
func ParseVerdicts(content string) ([]Verdict, error) {
	content = stripFences(content)
	if content == "" {
		return nil, fmt.Errorf("%w: empty content", ErrMalformedResponse)
	}

	var env findingsEnvelope
	if err := json.Unmarshal([]byte(content), &env); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(content)
		if repairErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, repairErr)
		}
		env = findingsEnvelope{}
		if err := json.Unmarshal([]byte(repaired), &env); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}
	}
	if env.Findings == nil {
		return nil, fmt.Errorf("%w: missing findings", ErrMalformedResponse)
	}
	for _, v := range *env.Findings {
		if strings.TrimSpace(v.RuleID) == "" {
			return nil, fmt.Errorf("%w: finding without rule_id", ErrMalformedResponse)
		}
	}
	return *env.Findings, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// BuildPrompt renders the system prompt for q: the safety and compliance
// rules in separate sections, the caller's role context and the output schema.
func BuildPrompt(q Query) string {
	var b strings.Builder
	b.WriteString("You are a safety and compliance checker for a banking customer service agent.\n")
	b.WriteString("Analyze the user request against the rules below and report every rule it violates.\n\n")

	writeRules := func(title string, c domain.RuleCategory) {
		b.WriteString("## " + title + "\n")
		for _, r := range q.Rules.ByCategory(c) {
			fmt.Fprintf(&b, "- %s (severity %d): %s\n", r.ID, r.Severity, r.Description)
		}
		b.WriteString("\n")
	}
	writeRules("SAFETY RULES", domain.CategorySafety)
	writeRules("COMPLIANCE RULES", domain.CategoryCompliance)

	b.WriteString("## CALLER\n")
	fmt.Fprintf(&b, "Role: %s\n", q.Role)
	perms := make([]string, len(q.Permissions))
	for i, p := range q.Permissions {
		perms[i] = string(p)
	}
	fmt.Fprintf(&b, "Permissions: %s\n\n", strings.Join(perms, ", "))

	b.WriteString("## OUTPUT FORMAT\n")
	b.WriteString(`Return ONLY a JSON object: {"findings": [{"rule_id": "COMP-004", "confidence": 0.9, "rationale": "..."}]}` + "\n")
	b.WriteString(`Use only rule IDs listed above. Return {"findings": []} when no rule applies.` + "\n")
	return b.String()
}
