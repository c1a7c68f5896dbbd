package rules

import (
	"strings"

	"github.com/gosuda/prime/internal/domain"
)

// Redact masks every match of the rule's redaction pattern, keeping only the
// last KeepLast characters of each match. Matches no longer than KeepLast are
// masked entirely. Rules without a redaction leave text unchanged.
//
// Masked output never matches a digit-based pattern again, which makes
// Redact idempotent for the built-in rules.
func Redact(r *domain.Rule, text string) string {
	if r.Redaction == nil || r.Redaction.Pattern == nil {
		return text
	}
	keep := r.Redaction.KeepLast
	return r.Redaction.Pattern.ReplaceAllStringFunc(text, func(m string) string {
		runes := []rune(m)
		if len(runes) <= keep {
			return strings.Repeat("*", len(runes))
		}
		cut := len(runes) - keep
		return strings.Repeat("*", cut) + string(runes[cut:])
	})
}
