package slack

import (
	"fmt"
	"strings"

	slacklib "github.com/slack-go/slack"

	"github.com/gosuda/prime/internal/domain"
)

// TicketFallbackText is the plain-text rendering shown in notifications.
func TicketFallbackText(t *domain.EscalationTicket) string {
	return fmt.Sprintf("Escalation #%d (%s): %s", t.ID, t.Status, t.Rationale)
}

// BuildTicketBlocks builds Slack Block Kit blocks for an escalation ticket card.
func BuildTicketBlocks(t *domain.EscalationTicket) []slacklib.Block {
	header := slacklib.NewSectionBlock(
		slacklib.NewTextBlockObject(slacklib.MarkdownType,
			fmt.Sprintf("*Escalation #%d* `%s`\n%s", t.ID, t.Status, t.Rationale), false, false),
		nil,
		nil,
	)

	rules := "none"
	if len(t.RuleIDs) > 0 {
		rules = strings.Join(t.RuleIDs, ", ")
	}
	fields := []*slacklib.TextBlockObject{
		slacklib.NewTextBlockObject(slacklib.MarkdownType, "*User:*\n"+t.UserID, false, false),
		slacklib.NewTextBlockObject(slacklib.MarkdownType, "*Rules:*\n"+rules, false, false),
	}
	if t.ResolvedBy != nil {
		fields = append(fields, slacklib.NewTextBlockObject(slacklib.MarkdownType, "*Resolved by:*\n"+*t.ResolvedBy, false, false))
	}
	details := slacklib.NewSectionBlock(nil, fields, nil)

	summary := slacklib.NewSectionBlock(
		slacklib.NewTextBlockObject(slacklib.MarkdownType, "> "+t.RequestSummary, false, false),
		nil,
		nil,
	)

	footer := slacklib.NewContextBlock("",
		slacklib.NewTextBlockObject(slacklib.MarkdownType, "request `"+t.RequestID+"`", false, false),
	)

	return []slacklib.Block{header, details, summary, footer}
}
