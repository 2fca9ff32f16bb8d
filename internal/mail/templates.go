package mail

import (
	"grantflow/grant-portal-backend/internal/users"
)

// Template identifies an outbound email template.
type Template string

const (
	TemplateProposalSubmitted        Template = "proposal_submitted"
	TemplateProposalApprovedDiscuss  Template = "proposal_approved_discussion"
	TemplateProposalRejectedDiscuss  Template = "proposal_rejected_discussion"
	TemplateProposalChangesRequested Template = "proposal_changes_requested"
	TemplateProposalAccepted         Template = "proposal_accepted"
	TemplateProposalAcceptedFunded   Template = "proposal_accepted_with_funding"
	TemplateProposalCanceled         Template = "proposal_canceled"
	TemplateContributionRefund       Template = "contribution_proposal_canceled"
	TemplateContributionExpired      Template = "contribution_expired"
	TemplateProposalFailed           Template = "proposal_failed"
	TemplateMilestoneRequest         Template = "milestone_request"
	TemplateMilestoneAccept          Template = "milestone_accept"
	TemplateMilestoneReject          Template = "milestone_reject"
	TemplateMilestoneDeadline        Template = "milestone_deadline"
	TemplateArbiterNominated         Template = "proposal_arbiter"
	TemplateTeamInvite               Template = "team_invite"
	TemplateCCRSubmitted             Template = "ccr_submitted"
	TemplateCCRApproved              Template = "ccr_approved"
	TemplateCCRRejected              Template = "ccr_rejected"
	TemplateAdminApproval            Template = "admin_approval"
	TemplateAdminApprovalCCR         Template = "admin_approval_ccr"
)

type templateDef struct {
	subject  string
	category users.Subscription
}

// Admin templates carry SubAdminApproval; admin recipients are expected to
// have the bit set.
var templates = map[Template]templateDef{
	TemplateProposalSubmitted:        {"Your proposal has been submitted", users.SubMyProposalApproval},
	TemplateProposalApprovedDiscuss:  {"Your proposal has been approved for public review", users.SubMyProposalApproval},
	TemplateProposalRejectedDiscuss:  {"Your proposal has changes requested", users.SubMyProposalApproval},
	TemplateProposalChangesRequested: {"Changes have been requested for your proposal", users.SubMyProposalApproval},
	TemplateProposalAccepted:         {"Your proposal has been accepted", users.SubMyProposalApproval},
	TemplateProposalAcceptedFunded:   {"Your proposal has been accepted with funding", users.SubMyProposalApproval},
	TemplateProposalCanceled:         {"Your proposal has been canceled", users.SubMyProposalApproval},
	TemplateContributionRefund:       {"A proposal you funded has been canceled", users.SubFundedProposalUpdates},
	TemplateContributionExpired:      {"Your contribution expired", users.SubMyProposalFunding},
	TemplateProposalFailed:           {"Your proposal failed to reach its funding goal", users.SubMyProposalFunding},
	TemplateMilestoneRequest:         {"A milestone payout has been requested", users.SubArbitration},
	TemplateMilestoneAccept:          {"Your milestone payout has been accepted", users.SubMyProposalFunding},
	TemplateMilestoneReject:          {"Your milestone payout request was rejected", users.SubMyProposalFunding},
	TemplateMilestoneDeadline:        {"A milestone deadline is approaching", users.SubMyProposalFunding},
	TemplateArbiterNominated:         {"You have been nominated as a proposal arbiter", users.SubArbitration},
	TemplateTeamInvite:               {"You have been invited to join a proposal team", users.SubTeamInvites},
	TemplateCCRSubmitted:             {"Your request has been submitted", users.SubMyProposalApproval},
	TemplateCCRApproved:              {"Your request has been accepted", users.SubMyProposalApproval},
	TemplateCCRRejected:              {"Your request was not accepted", users.SubMyProposalApproval},
	TemplateAdminApproval:            {"A proposal is awaiting review", users.SubAdminApproval},
	TemplateAdminApprovalCCR:         {"A change request is awaiting review", users.SubAdminApproval},
}

// Subject returns the subject line for a template, or the template key itself
// for templates missing a definition.
func Subject(t Template) string {
	if def, ok := templates[t]; ok {
		return def.subject
	}
	return string(t)
}

// Category returns the subscription category a template belongs to.
func Category(t Template) users.Subscription {
	if def, ok := templates[t]; ok {
		return def.category
	}
	return 0
}
