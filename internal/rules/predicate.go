package rules

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/gosuda/prime/internal/domain"
)

var amountRe = regexp.MustCompile(`(?i)(?:\$\s?([0-9][0-9,]*(?:\.[0-9]+)?))|(?:\b([0-9][0-9,]*(?:\.[0-9]+)?)\s?(?:usd|dollars)\b)`)

// Amounts extracts the money amounts written in text ("$50,000", "1200 USD").
func Amounts(text string) []decimal.Decimal {
	var out []decimal.Decimal
	for _, m := range amountRe.FindAllStringSubmatch(text, -1) {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		raw = strings.ReplaceAll(raw, ",", "")
		d, err := decimal.NewFromString(raw)
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Match evaluates r's predicate against text. Patterns and keywords are
// alternatives; a minimum amount is an additional requirement. A rule with an
// empty predicate never matches locally and can only be raised by an external
// classifier.
func Match(r *domain.Rule, text string) bool {
	p := r.Predicate
	if p.Empty() {
		return false
	}

	if len(p.Patterns) > 0 || len(p.Keywords) > 0 {
		if !matchAny(p, text) {
			return false
		}
	}

	if p.MinAmount != nil {
		for _, amt := range Amounts(text) {
			if amt.GreaterThanOrEqual(*p.MinAmount) {
				return true
			}
		}
		return false
	}

	return true
}

func matchAny(p domain.Predicate, text string) bool {
	for _, re := range p.Patterns {
		if re.MatchString(text) {
			return true
		}
	}
	lower := strings.ToLower(text)
	for _, k := range p.Keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
