// Package screen implements the Layer-1 filter: a fast, deterministic
// pattern screen run before any model-backed analysis.
package screen

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/gosuda/prime/internal/domain"
)

// DefaultMaxLength bounds the request size accepted by the screen.
const DefaultMaxLength = 4000

// Recorder appends audit events. *audit.Logger satisfies it.
type Recorder interface {
	Record(ctx context.Context, e *domain.AuditEvent) error
}

// Marker is one named pattern that fails the screen.
type Marker struct {
	Name    string
	Pattern *regexp.Regexp
}

// Result is the Layer-1 outcome.
type Result struct {
	Passed bool   `json:"passed"`
	Reason string `json:"reason,omitempty"`
	Marker string `json:"marker,omitempty"`
}

// Request is the input to a screen.
type Request struct {
	ID   string
	User domain.User
	Text string
}

// Filter screens raw request text. It does no I/O other than its single
// audit record, so its latency is bounded by the regex set.
type Filter struct {
	markers   []Marker
	maxLength int
	audit     Recorder
}

// Option configures optional Filter parameters.
type Option func(*Filter)

// WithMarkers replaces the default marker set.
func WithMarkers(m []Marker) Option {
	return func(f *Filter) {
		f.markers = m
	}
}

// WithMaxLength sets the maximum accepted length in runes.
func WithMaxLength(n int) Option {
	return func(f *Filter) {
		f.maxLength = n
	}
}

// New creates a Filter with the default markers.
func New(audit Recorder, opts ...Option) *Filter {
	f := &Filter{
		markers:   DefaultMarkers(),
		maxLength: DefaultMaxLength,
		audit:     audit,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// DefaultMarkers returns the built-in injection and abuse markers.
func DefaultMarkers() []Marker {
	return []Marker{
		{Name: "instruction_override", Pattern: regexp.MustCompile(`(?i)\b(ignore|disregard|forget)\s+(all\s+)?(the\s+)?(previous|prior|above|earlier)\s+(instructions|rules|prompts?)`)},
		{Name: "system_prompt_probe", Pattern: regexp.MustCompile(`(?i)\b(reveal|print|show|repeat)\s+(me\s+)?(your|the)\s+(system\s+prompt|hidden\s+instructions)`)},
		{Name: "role_hijack", Pattern: regexp.MustCompile(`(?i)\b(you are now|act as|pretend to be)\s+(an?\s+)?(unrestricted|jailbroken|dan|developer mode)`)},
		{Name: "privilege_claim", Pattern: regexp.MustCompile(`(?i)\b(i am|i'm)\s+(the\s+|an?\s+)?(admin|administrator|system)\b.*\b(override|grant|elevate)`)},
		{Name: "markup_injection", Pattern: regexp.MustCompile(`(?i)<\s*(script|iframe)\b|javascript:`)},
		{Name: "sql_injection", Pattern: regexp.MustCompile(`(?i)(;\s*drop\s+table\b|\bunion\s+select\b|'\s*or\s+'1'\s*=\s*'1)`)},
		{Name: "profanity", Pattern: regexp.MustCompile(`(?i)\b(fuck\w*|shit\w*|bitch\w*|asshole\w*|cunt\w*)\b`)},
	}
}

// Screen checks req.Text and records exactly one LAYER1_CHECK event with the
// outcome, whichever branch is taken. The returned error is non-nil only when
// that record could not be persisted.
func (f *Filter) Screen(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	res := f.check(req.Text)

	err := f.audit.Record(ctx, domain.NewAuditEvent(domain.AuditLayer1Check, req.User, req.ID, map[string]any{
		"input":      Truncate(req.Text, 200),
		"passed":     res.Passed,
		"reason":     res.Reason,
		"marker":     res.Marker,
		"latency_us": time.Since(start).Microseconds(),
	}))
	if err != nil {
		return res, fmt.Errorf("screen.Filter.Screen: %w", err)
	}
	return res, nil
}

func (f *Filter) check(text string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{Reason: "empty request", Marker: "empty"}
	}
	if !utf8.ValidString(text) {
		return Result{Reason: "request is not valid UTF-8", Marker: "encoding"}
	}
	if f.maxLength > 0 && utf8.RuneCountInString(text) > f.maxLength {
		return Result{Reason: fmt.Sprintf("request exceeds %d characters", f.maxLength), Marker: "length"}
	}
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return Result{Reason: "request contains control characters", Marker: "control_chars"}
		}
	}
	for _, m := range f.markers {
		if m.Pattern.MatchString(text) {
			return Result{Reason: "request matched " + m.Name, Marker: m.Name}
		}
	}
	return Result{Passed: true}
}

// Truncate shortens s to at most n runes for logging.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
