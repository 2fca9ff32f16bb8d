package contributions

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"grantflow/grant-portal-backend/internal/users"
)

// Status is the contribution lifecycle. Confirmation is one-way and
// idempotent; deletion is a soft status so transaction history survives.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusDeleted   Status = "DELETED"
)

// Contribution is a pledge of funds against a proposal. Anonymous pledges
// carry no user.
type Contribution struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ProposalID uuid.UUID  `gorm:"type:uuid;not null;index" json:"proposal_id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`

	Amount     decimal.Decimal `gorm:"type:numeric(32,8);not null" json:"amount"`
	Status     Status          `gorm:"not null;default:'PENDING';index" json:"status"`
	TxID       string          `json:"tx_id"`
	RefundTxID string          `json:"refund_tx_id"`
	Staking    bool            `gorm:"not null;default:false" json:"staking"`
	Private    bool            `gorm:"not null;default:true" json:"private"`

	DateConfirmed *time.Time `json:"date_confirmed"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	User *users.User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
