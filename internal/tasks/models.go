package tasks

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// JobType names a scheduled job body. Handlers are registered per type.
type JobType string

const (
	JobContributionExpiry JobType = "contribution_expiry"
	JobProposalDeadline   JobType = "proposal_deadline"
	JobMilestoneDeadline  JobType = "milestone_deadline"
)

// Task is a persisted unit of deferred work. The runner polls for due tasks
// and executes them at-least-once; handlers must be idempotent.
type Task struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	JobType    JobType        `gorm:"not null;index" json:"job_type"`
	Payload    datatypes.JSON `gorm:"type:jsonb;default:'{}'" json:"payload"`
	NotBefore  time.Time      `gorm:"not null;index" json:"not_before"`
	ExecutedAt *time.Time     `json:"executed_at"`
	FailedAt   *time.Time     `json:"failed_at"`
	LastError  string         `json:"last_error"`
	CreatedAt  time.Time      `json:"created_at"`
}
