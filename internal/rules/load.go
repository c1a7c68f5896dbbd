package rules

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/gosuda/prime/internal/domain"
)

//go:embed default_rules.yaml
var defaultRulesYAML []byte

type ruleFile struct {
	Rules map[string]ruleSpec `yaml:"rules"`
}

type ruleSpec struct {
	Category    string   `yaml:"category"`
	Severity    int      `yaml:"severity"`
	Description string   `yaml:"description"`
	Flags       []string `yaml:"flags,omitempty"`
	Predicate   struct {
		Patterns  []string `yaml:"patterns,omitempty"`
		Keywords  []string `yaml:"keywords,omitempty"`
		MinAmount string   `yaml:"min_amount,omitempty"`
	} `yaml:"predicate"`
	Redaction *struct {
		Pattern  string `yaml:"pattern"`
		KeepLast int    `yaml:"keep_last"`
	} `yaml:"redaction,omitempty"`
}

// Default returns the Store built from the embedded rule set.
func Default() *Store {
	s, err := Parse(defaultRulesYAML)
	if err != nil {
		panic("rules: embedded rule set is invalid: " + err.Error())
	}
	return s
}

// Load reads a YAML rule file. An empty path yields the built-in rules.
func Load(path string) (*Store, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules.Load: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("rules.Load %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a YAML rule document into a Store.
func Parse(data []byte) (*Store, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("rules.Parse: unmarshal: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, errors.New("rules.Parse: no rules defined")
	}

	out := make([]domain.Rule, 0, len(f.Rules))
	for id, spec := range f.Rules {
		r, err := spec.toRule(id)
		if err != nil {
			return nil, fmt.Errorf("rules.Parse: %w", err)
		}
		out = append(out, r)
	}

	return New(out)
}

func (spec ruleSpec) toRule(id string) (domain.Rule, error) {
	r := domain.Rule{
		ID:          id,
		Category:    domain.RuleCategory(strings.ToLower(spec.Category)),
		Severity:    spec.Severity,
		Description: spec.Description,
	}
	for _, f := range spec.Flags {
		r.Flags = append(r.Flags, domain.RuleFlag(strings.ToLower(f)))
	}

	for _, p := range spec.Predicate.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return r, fmt.Errorf("rule %s: pattern %q: %w", id, p, err)
		}
		r.Predicate.Patterns = append(r.Predicate.Patterns, re)
	}
	for _, k := range spec.Predicate.Keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			r.Predicate.Keywords = append(r.Predicate.Keywords, k)
		}
	}
	if spec.Predicate.MinAmount != "" {
		amt, err := decimal.NewFromString(spec.Predicate.MinAmount)
		if err != nil {
			return r, fmt.Errorf("rule %s: min_amount %q: %w", id, spec.Predicate.MinAmount, err)
		}
		r.Predicate.MinAmount = &amt
	}

	if spec.Redaction != nil {
		re, err := regexp.Compile(spec.Redaction.Pattern)
		if err != nil {
			return r, fmt.Errorf("rule %s: redaction pattern: %w", id, err)
		}
		r.Redaction = &domain.Redaction{Pattern: re, KeepLast: spec.Redaction.KeepLast}
	}

	return r, nil
}
