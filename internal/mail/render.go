package mail

import (
	"fmt"
	"sort"
	"strings"
	"text/template"
)

// Bodies are plain-text templates keyed by template name. Unknown templates
// fall back to a key/value dump of the arguments so a missing body never
// suppresses a notification.
var bodies = map[Template]string{
	TemplateProposalSubmitted:        "Your proposal \"{{.ProposalTitle}}\" has been submitted and is awaiting review.",
	TemplateProposalApprovedDiscuss:  "Your proposal \"{{.ProposalTitle}}\" has been approved for public review and discussion.",
	TemplateProposalRejectedDiscuss:  "Your proposal \"{{.ProposalTitle}}\" was not approved for review.\n\nReason: {{.Reason}}",
	TemplateProposalChangesRequested: "Changes have been requested for \"{{.ProposalTitle}}\".\n\n{{.Reason}}",
	TemplateProposalAccepted:         "Your proposal \"{{.ProposalTitle}}\" has been accepted and is now live. Community members can begin contributing toward your target of {{.Target}}.",
	TemplateProposalAcceptedFunded:   "Your proposal \"{{.ProposalTitle}}\" has been accepted and fully funded with a bounty of {{.Bounty}}.",
	TemplateProposalCanceled:         "Your proposal \"{{.ProposalTitle}}\" has been canceled.",
	TemplateContributionRefund:       "The proposal \"{{.ProposalTitle}}\" you contributed to has been canceled. Set a refund address on your account settings to receive your contribution back.",
	TemplateContributionExpired:      "Your contribution of {{.Amount}} to \"{{.ProposalTitle}}\" was not confirmed in time and has expired.",
	TemplateProposalFailed:           "Your proposal \"{{.ProposalTitle}}\" did not reach its funding target before the deadline.",
	TemplateMilestoneRequest:         "A payout has been requested for milestone \"{{.MilestoneTitle}}\" of \"{{.ProposalTitle}}\". Please review it.",
	TemplateMilestoneAccept:          "The payout of {{.Amount}} for milestone \"{{.MilestoneTitle}}\" of \"{{.ProposalTitle}}\" has been accepted.",
	TemplateMilestoneReject:          "The payout request for milestone \"{{.MilestoneTitle}}\" of \"{{.ProposalTitle}}\" was rejected.\n\nReason: {{.Reason}}",
	TemplateMilestoneDeadline:        "The estimated date for milestone \"{{.MilestoneTitle}}\" of \"{{.ProposalTitle}}\" is approaching.",
	TemplateArbiterNominated:         "You have been nominated as arbiter of \"{{.ProposalTitle}}\". As arbiter you review milestone payout requests.",
	TemplateTeamInvite:               "You have been invited to join the team of \"{{.ProposalTitle}}\". Sign in to accept or decline the invitation.",
	TemplateCCRSubmitted:             "Your request \"{{.CCRTitle}}\" has been submitted and is awaiting review.",
	TemplateCCRApproved:              "Your request \"{{.CCRTitle}}\" has been accepted. A request for proposals has been opened based on it.",
	TemplateCCRRejected:              "Your request \"{{.CCRTitle}}\" was not accepted.\n\nReason: {{.Reason}}",
	TemplateAdminApproval:            "Proposal \"{{.ProposalTitle}}\" has been submitted and requires review.",
	TemplateAdminApprovalCCR:         "Change request \"{{.CCRTitle}}\" has been submitted and requires review.",
}

func render(t Template, args map[string]any) (string, error) {
	body, ok := bodies[t]
	if !ok {
		return fallbackBody(t, args), nil
	}
	tmpl, err := template.New(string(t)).Parse(body)
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", t, err)
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, args); err != nil {
		return "", fmt.Errorf("execute template %s: %w", t, err)
	}
	return sb.String(), nil
}

func fallbackBody(t Template, args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	fmt.Fprintf(&sb, "Notification: %s\n", t)
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s: %v\n", k, args[k])
	}
	return sb.String()
}
