package proposals

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"grantflow/grant-portal-backend/internal/users"
	"grantflow/grant-portal-backend/pkg/apperrors"
)

// Repository provides access to proposal aggregates.
type Repository interface {
	Create(ctx context.Context, p *Proposal) error
	GetByID(ctx context.Context, id uuid.UUID) (*Proposal, error)
	Update(ctx context.Context, p *Proposal) error
	ListByStatus(ctx context.Context, status Status) ([]*Proposal, error)
	ListPublishedUnfunded(ctx context.Context) ([]*Proposal, error)

	ReplaceMilestones(ctx context.Context, proposalID uuid.UUID, milestones []Milestone) error
	UpdateMilestone(ctx context.Context, m *Milestone) error
	ReplaceTeam(ctx context.Context, proposalID uuid.UUID, team []users.User) error
	AddTeamMember(ctx context.Context, proposalID uuid.UUID, member *users.User) error
	SaveInvite(ctx context.Context, invite *TeamInvite) error
	GetInvite(ctx context.Context, id uuid.UUID) (*TeamInvite, error)
	ClearInvites(ctx context.Context, proposalID uuid.UUID) error

	SaveArbiter(ctx context.Context, a *ProposalArbiter) error
	CreateRevision(ctx context.Context, r *ProposalRevision) error

	DeleteCascade(ctx context.Context, id uuid.UUID) error

	// Transaction runs fn against a repository bound to one database
	// transaction. Multi-step transitions are committed atomically through it.
	Transaction(ctx context.Context, fn func(Repository) error) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a gorm-backed proposal repository.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Create(ctx context.Context, p *Proposal) error {
	// The arbiter record is created atomically with the proposal so the
	// one-arbiter-per-proposal invariant holds from birth.
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Team", "Revisions", "Arbiter").Create(p).Error; err != nil {
			return err
		}
		if len(p.Team) > 0 {
			if err := tx.Model(p).Association("Team").Append(p.Team); err != nil {
				return err
			}
		}
		arbiter := &ProposalArbiter{ProposalID: p.ID, Status: ArbiterMissing}
		if err := tx.Create(arbiter).Error; err != nil {
			return err
		}
		p.Arbiter = arbiter
		return nil
	})
}

func (r *gormRepository) GetByID(ctx context.Context, id uuid.UUID) (*Proposal, error) {
	var p Proposal
	err := r.db.WithContext(ctx).
		Preload("Team").
		Preload("Milestones", func(db *gorm.DB) *gorm.DB {
			return db.Order("milestones.index asc")
		}).
		Preload("Invites").
		Preload("Revisions", func(db *gorm.DB) *gorm.DB {
			return db.Order("proposal_revisions.revision_index asc")
		}).
		Preload("Arbiter").
		Preload("Arbiter.User").
		First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("proposal %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) Update(ctx context.Context, p *Proposal) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(p).Error
}

func (r *gormRepository) ListByStatus(ctx context.Context, status Status) ([]*Proposal, error) {
	var out []*Proposal
	err := r.db.WithContext(ctx).Where("status = ?", status).Find(&out).Error
	return out, err
}

func (r *gormRepository) ListPublishedUnfunded(ctx context.Context) ([]*Proposal, error) {
	var out []*Proposal
	err := r.db.WithContext(ctx).
		Preload("Team").
		Where("status = ? AND stage = ? AND date_published IS NOT NULL", StatusLive, StageWIP).
		Find(&out).Error
	return out, err
}

func (r *gormRepository) ReplaceMilestones(ctx context.Context, proposalID uuid.UUID, milestones []Milestone) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("proposal_id = ?", proposalID).Delete(&Milestone{}).Error; err != nil {
			return err
		}
		for i := range milestones {
			milestones[i].ID = uuid.Nil
			milestones[i].ProposalID = proposalID
			milestones[i].Index = i
		}
		if len(milestones) == 0 {
			return nil
		}
		return tx.Create(&milestones).Error
	})
}

func (r *gormRepository) UpdateMilestone(ctx context.Context, m *Milestone) error {
	return r.db.WithContext(ctx).Save(m).Error
}

func (r *gormRepository) ReplaceTeam(ctx context.Context, proposalID uuid.UUID, team []users.User) error {
	return r.db.WithContext(ctx).
		Model(&Proposal{ID: proposalID}).
		Association("Team").
		Replace(team)
}

func (r *gormRepository) AddTeamMember(ctx context.Context, proposalID uuid.UUID, member *users.User) error {
	return r.db.WithContext(ctx).
		Model(&Proposal{ID: proposalID}).
		Association("Team").
		Append(member)
}

func (r *gormRepository) SaveInvite(ctx context.Context, invite *TeamInvite) error {
	return r.db.WithContext(ctx).Save(invite).Error
}

func (r *gormRepository) GetInvite(ctx context.Context, id uuid.UUID) (*TeamInvite, error) {
	var invite TeamInvite
	err := r.db.WithContext(ctx).First(&invite, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("invite %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &invite, nil
}

func (r *gormRepository) ClearInvites(ctx context.Context, proposalID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("proposal_id = ?", proposalID).Delete(&TeamInvite{}).Error
}

func (r *gormRepository) SaveArbiter(ctx context.Context, a *ProposalArbiter) error {
	return r.db.WithContext(ctx).Save(a).Error
}

func (r *gormRepository) CreateRevision(ctx context.Context, rev *ProposalRevision) error {
	return r.db.WithContext(ctx).Create(rev).Error
}

// cascadeStatements is the ordered child-record cleanup run before the
// proposal row itself is removed. Contribution rows are raw SQL so this
// package does not import the ledger's model; STAKING and PENDING proposals
// are deletable and may already carry pledges.
var cascadeStatements = []string{
	"DELETE FROM milestones WHERE proposal_id = ?",
	"DELETE FROM contributions WHERE proposal_id = ?",
	"DELETE FROM team_invites WHERE proposal_id = ?",
	"DELETE FROM proposal_revisions WHERE proposal_id = ?",
	"DELETE FROM proposal_arbiters WHERE proposal_id = ?",
	"DELETE FROM proposal_team WHERE proposal_id = ?",
}

// DeleteCascade hard-removes a proposal and its owned child records in the
// cascadeStatements order. Callers gate on deletableStatuses first.
func (r *gormRepository) DeleteCascade(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, stmt := range cascadeStatements {
			if err := tx.Exec(stmt, id).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&Proposal{}, "id = ?", id).Error
	})
}

func (r *gormRepository) Transaction(ctx context.Context, fn func(Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}
