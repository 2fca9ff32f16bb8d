package users

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents a portal account. Authentication and password handling live
// with the identity provider; this record carries what the grant workflow
// needs: display identity, email routing, and subscription preferences.
type User struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	DisplayName   string         `gorm:"not null" json:"display_name"`
	EmailAddress  string         `gorm:"not null;uniqueIndex" json:"email_address"`
	Title         string         `json:"title"`
	EmailSettings Subscription   `gorm:"not null;default:0" json:"-"`
	IsAdmin       bool           `gorm:"not null;default:false" json:"is_admin"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// Subscription is a bitmask of email categories a user has opted into.
type Subscription int64

const (
	SubMyProposalApproval Subscription = 1 << iota
	SubMyProposalFunding
	SubMyProposalComments
	SubFundedProposalUpdates
	SubArbitration
	SubAdminApproval
	SubTeamInvites
)

// SubscriptionAll is the default for new accounts.
const SubscriptionAll = SubMyProposalApproval | SubMyProposalFunding |
	SubMyProposalComments | SubFundedProposalUpdates | SubArbitration |
	SubAdminApproval | SubTeamInvites

// Has reports whether the category bit is set.
func (s Subscription) Has(category Subscription) bool {
	return s&category != 0
}
