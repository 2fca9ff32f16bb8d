package proposals

import (
	"grantflow/grant-portal-backend/pkg/workflows"
)

// Transition tables. All status guards flow through these machines; services
// never compare statuses ad hoc to decide legality.

func newStatusMachine() *workflows.StateMachine {
	return workflows.NewStateMachine(map[string][]string{
		string(StatusDraft):      {string(StatusStaking), string(StatusPending), string(StatusDeleted)},
		string(StatusLiveDraft):  {string(StatusArchived), string(StatusDeleted)},
		string(StatusStaking):    {string(StatusPending), string(StatusDeleted)},
		string(StatusPending):    {string(StatusApproved), string(StatusRejected), string(StatusDiscussion), string(StatusDeleted)},
		string(StatusApproved):   {string(StatusLive)},
		string(StatusRejected):   {string(StatusStaking), string(StatusPending), string(StatusDeleted)},
		string(StatusDiscussion): {string(StatusLive)},
		string(StatusLive):       {},
		string(StatusDeleted):    {},
		string(StatusArchived):   {},
	})
}

func newStageMachine() *workflows.StateMachine {
	return workflows.NewStateMachine(map[string][]string{
		string(StagePreview):   {string(StageWIP)},
		string(StageWIP):       {string(StageCompleted), string(StageFailed), string(StageCanceled)},
		string(StageCompleted): {},
		string(StageFailed):    {},
		string(StageCanceled):  {},
	})
}

func newMilestoneMachine() *workflows.StateMachine {
	return workflows.NewStateMachine(map[string][]string{
		string(MilestoneNotRequested): {string(MilestoneOngoingVote)},
		string(MilestoneOngoingVote):  {string(MilestonePaid), string(MilestoneNotRequested)},
		string(MilestonePaid):         {},
	})
}

// deletableStatuses are the early-lifecycle statuses from which a proposal may
// be hard-removed. Anything published is archived, never deleted.
var deletableStatuses = map[Status]bool{
	StatusDraft:     true,
	StatusLiveDraft: true,
	StatusStaking:   true,
	StatusPending:   true,
	StatusRejected:  true,
}
