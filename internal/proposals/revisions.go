package proposals

// ChangeType names one field-level difference between two proposal snapshots.
type ChangeType string

const (
	ChangeProposalBrief   ChangeType = "PROPOSAL_BRIEF"
	ChangeProposalContent ChangeType = "PROPOSAL_CONTENT"
	ChangeProposalTarget  ChangeType = "PROPOSAL_TARGET"
	ChangeProposalTitle   ChangeType = "PROPOSAL_TITLE"

	ChangeMilestoneDays      ChangeType = "MILESTONE_DAYS"
	ChangeMilestoneImmediate ChangeType = "MILESTONE_IMMEDIATE_PAYOUT"
	ChangeMilestonePercent   ChangeType = "MILESTONE_PAYOUT_PERCENT"
	ChangeMilestoneContent   ChangeType = "MILESTONE_CONTENT"
	ChangeMilestoneTitle     ChangeType = "MILESTONE_TITLE"
	ChangeMilestoneAdd       ChangeType = "MILESTONE_ADD"
	ChangeMilestoneRemove    ChangeType = "MILESTONE_REMOVE"
)

// Change is one entry of a revision changelog. MilestoneIndex is set only for
// milestone-level changes.
type Change struct {
	Type           ChangeType `json:"type"`
	MilestoneIndex *int       `json:"milestoneIndex,omitempty"`
}

// DiffProposals computes the changelog between two proposal snapshots. It is
// pure: no side effects and no persistence access, so revision history is
// reproducible and independently testable.
//
// Output ordering is fixed: proposal-field changes first (brief, content,
// target, title), then milestone changes in milestone-index order. Milestones
// are aligned by index against the longer of the two lists; indices beyond the
// shorter list yield MILESTONE_ADD or MILESTONE_REMOVE, never both in one
// diff.
func DiffProposals(oldP, newP *Proposal) []Change {
	changes := []Change{}

	if oldP.Brief != newP.Brief {
		changes = append(changes, Change{Type: ChangeProposalBrief})
	}
	if oldP.Content != newP.Content {
		changes = append(changes, Change{Type: ChangeProposalContent})
	}
	if !oldP.TargetAmount.Equal(newP.TargetAmount) {
		changes = append(changes, Change{Type: ChangeProposalTarget})
	}
	if oldP.Title != newP.Title {
		changes = append(changes, Change{Type: ChangeProposalTitle})
	}

	oldMs := oldP.Milestones
	newMs := newP.Milestones
	longest := len(oldMs)
	if len(newMs) > longest {
		longest = len(newMs)
	}

	for i := 0; i < longest; i++ {
		idx := i
		switch {
		case i >= len(oldMs):
			changes = append(changes, Change{Type: ChangeMilestoneAdd, MilestoneIndex: &idx})
		case i >= len(newMs):
			changes = append(changes, Change{Type: ChangeMilestoneRemove, MilestoneIndex: &idx})
		default:
			changes = append(changes, diffMilestone(&oldMs[i], &newMs[i], idx)...)
		}
	}

	return changes
}

func diffMilestone(oldM, newM *Milestone, index int) []Change {
	var changes []Change
	add := func(t ChangeType) {
		idx := index
		changes = append(changes, Change{Type: t, MilestoneIndex: &idx})
	}
	if oldM.DaysEstimated != newM.DaysEstimated {
		add(ChangeMilestoneDays)
	}
	if oldM.ImmediatePayout != newM.ImmediatePayout {
		add(ChangeMilestoneImmediate)
	}
	if oldM.PayoutPercent != newM.PayoutPercent {
		add(ChangeMilestonePercent)
	}
	if oldM.Content != newM.Content {
		add(ChangeMilestoneContent)
	}
	if oldM.Title != newM.Title {
		add(ChangeMilestoneTitle)
	}
	return changes
}
