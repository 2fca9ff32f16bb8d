package ccrs

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"grantflow/grant-portal-backend/internal/users"
	"grantflow/grant-portal-backend/pkg/workflows"
)

// Status is the community change request lifecycle.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusPending  Status = "PENDING"
	StatusLive     Status = "LIVE"
	StatusRejected Status = "REJECTED"
	StatusDeleted  Status = "DELETED"
)

// Content length limits mirror the proposal editor.
const (
	MaxTitleLength   = 60
	MaxBriefLength   = 140
	MaxContentLength = 250000
)

// CCR is a community change request: a member-authored pitch for work the
// community wants done. Approval turns it into a live RFP.
type CCR struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	AuthorID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"author_id"`
	Author       *users.User     `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Title        string          `gorm:"size:255" json:"title"`
	Brief        string          `gorm:"size:255" json:"brief"`
	Content      string          `gorm:"type:text" json:"content"`
	TargetAmount decimal.Decimal `gorm:"type:numeric(16,3)" json:"target_amount"`
	Status       Status          `gorm:"size:32;not null;index" json:"status"`
	RejectReason string          `gorm:"size:255" json:"reject_reason,omitempty"`
	RFPID        *uuid.UUID      `gorm:"type:uuid" json:"rfp_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	DeletedAt    gorm.DeletedAt  `gorm:"index" json:"-"`
}

// TableName overrides the gorm default pluralization.
func (CCR) TableName() string {
	return "ccrs"
}

func newStatusMachine() *workflows.StateMachine {
	return workflows.NewStateMachine(map[string][]string{
		string(StatusDraft):    {string(StatusPending), string(StatusDeleted)},
		string(StatusPending):  {string(StatusLive), string(StatusRejected)},
		string(StatusRejected): {string(StatusPending), string(StatusDeleted)},
		string(StatusLive):     {},
		string(StatusDeleted):  {},
	})
}
