package proposals

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grantflow/grant-portal-backend/pkg/apperrors"
)

func testLimits() Limits {
	return Limits{
		TargetMax:     decimal.RequireFromString("10000000"),
		StakingTarget: decimal.RequireFromString("10"),
		MaxDeadline:   90 * 24 * time.Hour,
	}
}

func publishableProposal() *Proposal {
	return &Proposal{
		Status:           StatusDraft,
		Stage:            StagePreview,
		Title:            "Light client for mobile",
		Brief:            "A light client suitable for phones",
		Content:          "<p>Full plan</p>",
		TargetAmount:     decimal.RequireFromString("5000"),
		PayoutAddress:    "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY",
		DeadlineDuration: int64((60 * 24 * time.Hour).Seconds()),
		Milestones: []Milestone{
			{Index: 0, Title: "Spike", PayoutPercent: 30, DaysEstimated: 14},
			{Index: 1, Title: "Release", PayoutPercent: 70, DaysEstimated: 30},
		},
	}
}

func TestValidatePublishableAcceptsCompleteProposal(t *testing.T) {
	assert.NoError(t, ValidatePublishable(publishableProposal(), testLimits()))
}

func TestValidatePublishableRejectsMissingFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(p *Proposal)
	}{
		{"empty title", func(p *Proposal) { p.Title = "" }},
		{"oversized title", func(p *Proposal) { p.Title = strings.Repeat("x", MaxTitleLength+1) }},
		{"empty brief", func(p *Proposal) { p.Brief = "" }},
		{"oversized brief", func(p *Proposal) { p.Brief = strings.Repeat("x", MaxBriefLength+1) }},
		{"empty content", func(p *Proposal) { p.Content = "" }},
		{"missing payout address", func(p *Proposal) { p.PayoutAddress = "" }},
		{"zero target", func(p *Proposal) { p.TargetAmount = decimal.Zero }},
		{"fractional target", func(p *Proposal) { p.TargetAmount = decimal.RequireFromString("5000.5") }},
		{"target above cap", func(p *Proposal) { p.TargetAmount = decimal.RequireFromString("10000001") }},
		{"missing deadline", func(p *Proposal) { p.DeadlineDuration = 0 }},
		{"deadline too long", func(p *Proposal) { p.DeadlineDuration = int64((91 * 24 * time.Hour).Seconds()) }},
		{"negative matching", func(p *Proposal) { p.ContributionMatching = decimal.RequireFromString("-0.5") }},
		{"no milestones", func(p *Proposal) { p.Milestones = nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := publishableProposal()
			tc.mutate(p)
			err := ValidatePublishable(p, testLimits())
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
		})
	}
}

func TestValidateMilestonesPercentagesMustSumToHundred(t *testing.T) {
	ms := []Milestone{
		{Title: "Spike", PayoutPercent: 30, DaysEstimated: 14},
		{Title: "Release", PayoutPercent: 60, DaysEstimated: 30},
	}
	err := ValidateMilestones(ms)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Contains(t, err.Error(), "sum to 100")
}

func TestValidateMilestonesImmediatePayoutOnlyFirst(t *testing.T) {
	ms := []Milestone{
		{Title: "Spike", PayoutPercent: 30, DaysEstimated: 14},
		{Title: "Release", PayoutPercent: 70, ImmediatePayout: true},
	}
	err := ValidateMilestones(ms)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first milestone")
}

func TestValidateMilestoneDays(t *testing.T) {
	err := ValidateMilestoneDays([]Milestone{{Title: "Spike", PayoutPercent: 100}})
	require.Error(t, err)

	err = ValidateMilestoneDays([]Milestone{{Title: "Spike", PayoutPercent: 100, DaysEstimated: MaxMilestoneDays + 1}})
	require.Error(t, err)

	// Immediate-payout milestones do not need a day estimate.
	err = ValidateMilestoneDays([]Milestone{{Title: "Spike", PayoutPercent: 100, ImmediatePayout: true}})
	assert.NoError(t, err)
}
