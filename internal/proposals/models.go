package proposals

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"grantflow/grant-portal-backend/internal/users"
)

// Status is the review-lifecycle axis of a proposal.
type Status string

const (
	StatusDraft      Status = "DRAFT"
	StatusLiveDraft  Status = "LIVE_DRAFT"
	StatusStaking    Status = "STAKING"
	StatusPending    Status = "PENDING"
	StatusApproved   Status = "APPROVED"
	StatusRejected   Status = "REJECTED"
	StatusDiscussion Status = "DISCUSSION"
	StatusLive       Status = "LIVE"
	StatusDeleted    Status = "DELETED"
	StatusArchived   Status = "ARCHIVED"
)

// Stage is the execution-lifecycle axis of a LIVE proposal, orthogonal to
// review status.
type Stage string

const (
	StagePreview   Stage = "PREVIEW"
	StageWIP       Stage = "WIP"
	StageCompleted Stage = "COMPLETED"
	StageFailed    Stage = "FAILED"
	StageCanceled  Stage = "CANCELED"
)

// Field length limits enforced at publish time.
const (
	MaxTitleLength            = 60
	MaxBriefLength            = 140
	MaxContentLength          = 250000
	MaxMilestoneTitleLength   = 60
	MaxMilestoneContentLength = 200
	MaxMilestoneDays          = 365
	MinRejectReasonLength     = 2
	MaxRejectReasonLength     = 200
)

// Proposal is a funding request progressing through review, publication,
// funding, and milestone payout.
type Proposal struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Status Status `gorm:"not null;default:'DRAFT';index" json:"status"`
	Stage  Stage  `gorm:"not null;default:'PREVIEW'" json:"stage"`

	Title   string `json:"title"`
	Brief   string `json:"brief"`
	Content string `gorm:"type:text" json:"content"`

	TargetAmount         decimal.Decimal `gorm:"type:numeric(32,8);not null;default:0" json:"target"`
	PayoutAddress        string          `json:"payout_address"`
	TipJarAddress        string          `json:"tip_jar_address"`
	DeadlineDuration     int64           `json:"deadline_duration"` // seconds
	ContributionMatching decimal.Decimal `gorm:"type:numeric(8,4);not null;default:0" json:"contribution_matching"`
	ContributionBounty   decimal.Decimal `gorm:"type:numeric(32,8);not null;default:0" json:"contribution_bounty"`

	RFPID       *uuid.UUID `gorm:"type:uuid" json:"rfp_id"`
	RFPOptIn    bool       `gorm:"not null;default:false" json:"rfp_opt_in"`
	LiveDraftID *uuid.UUID `gorm:"type:uuid" json:"live_draft_id"`

	ChangesRequestedDiscussion       bool   `gorm:"not null;default:false" json:"changes_requested_discussion"`
	ChangesRequestedDiscussionReason string `json:"changes_requested_discussion_reason"`

	DateApproved  *time.Time `json:"date_approved"`
	DatePublished *time.Time `json:"date_published"`

	Team       []users.User       `gorm:"many2many:proposal_team" json:"team"`
	Milestones []Milestone        `gorm:"foreignKey:ProposalID" json:"milestones"`
	Invites    []TeamInvite       `gorm:"foreignKey:ProposalID" json:"invites"`
	Revisions  []ProposalRevision `gorm:"foreignKey:ProposalID" json:"revisions"`
	Arbiter    *ProposalArbiter   `gorm:"foreignKey:ProposalID" json:"arbiter"`
}

// Deadline returns the funding deadline, defined only once published.
func (p *Proposal) Deadline() *time.Time {
	if p.DatePublished == nil || p.DeadlineDuration <= 0 {
		return nil
	}
	d := p.DatePublished.Add(time.Duration(p.DeadlineDuration) * time.Second)
	return &d
}

// IsTeamMember reports whether the user belongs to the proposal team.
func (p *Proposal) IsTeamMember(userID uuid.UUID) bool {
	for _, member := range p.Team {
		if member.ID == userID {
			return true
		}
	}
	return false
}

// IsArbiter reports whether the user is the accepted arbiter of the proposal.
func (p *Proposal) IsArbiter(userID uuid.UUID) bool {
	return p.Arbiter != nil &&
		p.Arbiter.Status == ArbiterAccepted &&
		p.Arbiter.UserID != nil &&
		*p.Arbiter.UserID == userID
}

// MilestoneStage is the payout sub-state of a milestone.
type MilestoneStage string

const (
	MilestoneNotRequested MilestoneStage = "NOT_REQUESTED"
	MilestoneOngoingVote  MilestoneStage = "ONGOING_VOTE"
	MilestonePaid         MilestoneStage = "PAID"
)

// Milestone is one payout tranche of a proposal. Payout percentages across a
// proposal's milestones sum to 100 at publish time and only the first
// milestone may carry immediate payout.
type Milestone struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ProposalID uuid.UUID `gorm:"type:uuid;not null;index" json:"proposal_id"`
	Index      int       `gorm:"not null" json:"index"`

	Title           string         `json:"title"`
	Content         string         `json:"content"`
	PayoutPercent   int            `gorm:"not null;default:0" json:"payout_percent"`
	ImmediatePayout bool           `gorm:"not null;default:false" json:"immediate_payout"`
	DaysEstimated   int            `gorm:"not null;default:0" json:"days_estimated"`
	DateEstimated   *time.Time     `json:"date_estimated"`
	Stage           MilestoneStage `gorm:"not null;default:'NOT_REQUESTED'" json:"stage"`

	DateRequested *time.Time `json:"date_requested"`
	DatePaid      *time.Time `json:"date_paid"`
	RejectReason  string     `json:"reject_reason"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ArbiterStatus tracks the nomination lifecycle of a proposal's arbiter.
type ArbiterStatus string

const (
	ArbiterMissing   ArbiterStatus = "MISSING"
	ArbiterNominated ArbiterStatus = "NOMINATED"
	ArbiterAccepted  ArbiterStatus = "ACCEPTED"
)

// ProposalArbiter is the nominated reviewer who approves or rejects milestone
// payout requests. Exactly one exists per proposal, created with it.
type ProposalArbiter struct {
	ID         uuid.UUID     `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ProposalID uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex" json:"proposal_id"`
	UserID     *uuid.UUID    `gorm:"type:uuid" json:"user_id"`
	Status     ArbiterStatus `gorm:"not null;default:'MISSING'" json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`

	User *users.User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// ProposalRevision is an immutable snapshot record created by a live-draft
// merge. Never mutated after creation.
type ProposalRevision struct {
	ID                 uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ProposalID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"proposal_id"`
	ArchivedProposalID uuid.UUID      `gorm:"type:uuid;not null" json:"archived_proposal_id"`
	AuthorID           uuid.UUID      `gorm:"type:uuid;not null" json:"author_id"`
	RevisionIndex      int            `gorm:"not null" json:"revision_index"`
	Changes            datatypes.JSON `gorm:"type:jsonb;default:'[]'" json:"changes"`
	CreatedAt          time.Time      `json:"created_at"`
}

// TeamInvite is a pending invitation to join a proposal team.
type TeamInvite struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ProposalID uuid.UUID  `gorm:"type:uuid;not null;index" json:"proposal_id"`
	Address    string     `gorm:"not null" json:"address"`
	Accepted   *bool      `json:"accepted"`
	UserID     *uuid.UUID `gorm:"type:uuid" json:"user_id"`
	CreatedAt  time.Time  `json:"created_at"`
}
