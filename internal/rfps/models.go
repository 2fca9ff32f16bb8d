package rfps

import (
	"time"

	"github.com/google/uuid"
)

// Status is the RFP lifecycle.
type Status string

const (
	StatusDraft  Status = "DRAFT"
	StatusLive   Status = "LIVE"
	StatusClosed Status = "CLOSED"
)

// Category buckets RFPs for browsing.
type Category string

const (
	CategoryCoreDev       Category = "CORE_DEV"
	CategoryDevTool       Category = "DEV_TOOL"
	CategoryCommunity     Category = "COMMUNITY"
	CategoryDocumentation Category = "DOCUMENTATION"
	CategoryAccessibility Category = "ACCESSIBILITY"
	CategoryGrant         Category = "GRANT"
)

// RFP is a request for proposals: a funding call soliciting proposals.
type RFP struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	Title      string     `db:"title" json:"title"`
	Brief      string     `db:"brief" json:"brief"`
	Content    string     `db:"content" json:"content"`
	Category   Category   `db:"category" json:"category"`
	Status     Status     `db:"status" json:"status"`
	DateOpened *time.Time `db:"date_opened" json:"date_opened"`
	DateCloses *time.Time `db:"date_closes" json:"date_closes"`
	CCRID      *uuid.UUID `db:"ccr_id" json:"ccr_id"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// ProposalSummary is the slim projection of a solicited proposal used on RFP
// detail views.
type ProposalSummary struct {
	ID     uuid.UUID `db:"id" json:"id"`
	Title  string    `db:"title" json:"title"`
	Brief  string    `db:"brief" json:"brief"`
	Status string    `db:"status" json:"status"`
}
