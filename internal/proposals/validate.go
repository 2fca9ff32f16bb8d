package proposals

import (
	"time"

	"github.com/shopspring/decimal"

	"grantflow/grant-portal-backend/internal/money"
	"grantflow/grant-portal-backend/pkg/apperrors"
)

// Limits holds the configurable bounds applied at publish time.
type Limits struct {
	TargetMax     decimal.Decimal
	StakingTarget decimal.Decimal
	MaxDeadline   time.Duration
}

// ValidatePublishable checks every field gate a proposal must pass before it
// can be submitted for review or accepted. Address format checks happen
// separately through the watcher because they require an external call.
func ValidatePublishable(p *Proposal, limits Limits) error {
	if p.Title == "" {
		return apperrors.Validation("title is required")
	}
	if len(p.Title) > MaxTitleLength {
		return apperrors.Validation("title cannot exceed %d characters", MaxTitleLength)
	}
	if p.Brief == "" {
		return apperrors.Validation("brief is required")
	}
	if len(p.Brief) > MaxBriefLength {
		return apperrors.Validation("brief cannot exceed %d characters", MaxBriefLength)
	}
	if p.Content == "" {
		return apperrors.Validation("content is required")
	}
	if len(p.Content) > MaxContentLength {
		return apperrors.Validation("content cannot exceed %d characters", MaxContentLength)
	}
	if p.PayoutAddress == "" {
		return apperrors.Validation("payout address is required")
	}

	if !p.TargetAmount.IsPositive() {
		return apperrors.Validation("target must be a positive amount")
	}
	if p.TargetAmount.GreaterThan(limits.TargetMax) {
		return apperrors.Validation("target cannot exceed %s", limits.TargetMax.String())
	}
	if !money.IsWholeNumber(p.TargetAmount) {
		return apperrors.Validation("target must be a whole number")
	}

	if p.DeadlineDuration <= 0 {
		return apperrors.Validation("deadline duration is required")
	}
	if time.Duration(p.DeadlineDuration)*time.Second > limits.MaxDeadline {
		return apperrors.Validation("deadline cannot exceed %d days", int(limits.MaxDeadline.Hours()/24))
	}

	if p.ContributionMatching.IsNegative() {
		return apperrors.Validation("contribution matching must not be negative")
	}

	return ValidateMilestones(p.Milestones)
}

// ValidateMilestones enforces the milestone ledger invariants: payout
// percentages are whole numbers in (0,100] summing to exactly 100, and only
// the first milestone may carry immediate payout.
func ValidateMilestones(milestones []Milestone) error {
	if len(milestones) == 0 {
		return apperrors.Validation("proposal requires at least one milestone")
	}

	sum := 0
	for i, m := range milestones {
		if m.Title == "" {
			return apperrors.Validation("milestone %d: title is required", i+1)
		}
		if len(m.Title) > MaxMilestoneTitleLength {
			return apperrors.Validation("milestone %d: title cannot exceed %d characters", i+1, MaxMilestoneTitleLength)
		}
		if len(m.Content) > MaxMilestoneContentLength {
			return apperrors.Validation("milestone %d: content cannot exceed %d characters", i+1, MaxMilestoneContentLength)
		}
		if m.PayoutPercent <= 0 || m.PayoutPercent > 100 {
			return apperrors.Validation("milestone %d: payout percent must be between 1 and 100", i+1)
		}
		if m.ImmediatePayout && i != 0 {
			return apperrors.Validation("only the first milestone may have immediate payout")
		}
		sum += m.PayoutPercent
	}
	if sum != 100 {
		return apperrors.Validation("milestone payout percentages must sum to 100, got %d", sum)
	}
	return nil
}

// ValidateMilestoneDays checks that each non-immediate milestone estimates a
// positive whole number of days, at most a year out.
func ValidateMilestoneDays(milestones []Milestone) error {
	for i, m := range milestones {
		if m.ImmediatePayout {
			continue
		}
		if m.DaysEstimated <= 0 {
			return apperrors.Validation("milestone %d: estimated days must be a positive number", i+1)
		}
		if m.DaysEstimated > MaxMilestoneDays {
			return apperrors.Validation("milestone %d: estimated days cannot exceed %d", i+1, MaxMilestoneDays)
		}
	}
	return nil
}

// validateRejectReason applies the shared bounds for human-entered reasons.
func validateRejectReason(reason string) error {
	if len(reason) < MinRejectReasonLength {
		return apperrors.Validation("a reason of at least %d characters is required", MinRejectReasonLength)
	}
	if len(reason) > MaxRejectReasonLength {
		return apperrors.Validation("reason cannot exceed %d characters", MaxRejectReasonLength)
	}
	return nil
}
