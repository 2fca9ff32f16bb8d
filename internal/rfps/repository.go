package rfps

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"grantflow/grant-portal-backend/pkg/apperrors"
)

// Repository defines the interface for RFP data access
type Repository interface {
	Create(ctx context.Context, rfp *RFP) error
	GetByID(ctx context.Context, id uuid.UUID) (*RFP, error)
	Update(ctx context.Context, rfp *RFP) error
	List(ctx context.Context, status *Status) ([]*RFP, error)
	ListClosable(ctx context.Context, now time.Time) ([]*RFP, error)
	ListAcceptedProposals(ctx context.Context, rfpID uuid.UUID) ([]*ProposalSummary, error)
}

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, rfp *RFP) error {
	query := `
		INSERT INTO rfps (
			id, title, brief, content, category, status,
			date_opened, date_closes, ccr_id, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`

	now := time.Now()
	rfp.CreatedAt = now
	rfp.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		rfp.ID, rfp.Title, rfp.Brief, rfp.Content, rfp.Category, rfp.Status,
		rfp.DateOpened, rfp.DateCloses, rfp.CCRID, rfp.CreatedAt, rfp.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create rfp: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*RFP, error) {
	query := `
		SELECT id, title, brief, content, category, status,
			   date_opened, date_closes, ccr_id, created_at, updated_at
		FROM rfps
		WHERE id = $1
	`

	var rfp RFP
	err := r.db.GetContext(ctx, &rfp, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NotFound("rfp not found")
		}
		return nil, fmt.Errorf("failed to get rfp: %w", err)
	}

	return &rfp, nil
}

func (r *PostgresRepository) Update(ctx context.Context, rfp *RFP) error {
	query := `
		UPDATE rfps SET
			title = $2, brief = $3, content = $4, category = $5, status = $6,
			date_opened = $7, date_closes = $8, updated_at = $9
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		rfp.ID, rfp.Title, rfp.Brief, rfp.Content, rfp.Category, rfp.Status,
		rfp.DateOpened, rfp.DateCloses, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update rfp: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperrors.NotFound("rfp not found")
	}

	return nil
}

func (r *PostgresRepository) List(ctx context.Context, status *Status) ([]*RFP, error) {
	query := `
		SELECT id, title, brief, content, category, status,
			   date_opened, date_closes, ccr_id, created_at, updated_at
		FROM rfps
	`
	var args []interface{}
	if status != nil {
		query += " WHERE status = $1"
		args = append(args, *status)
	}
	query += " ORDER BY created_at DESC"

	var rfps []*RFP
	if err := r.db.SelectContext(ctx, &rfps, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list rfps: %w", err)
	}

	return rfps, nil
}

// ListClosable returns live RFPs whose closing date has passed.
func (r *PostgresRepository) ListClosable(ctx context.Context, now time.Time) ([]*RFP, error) {
	query := `
		SELECT id, title, brief, content, category, status,
			   date_opened, date_closes, ccr_id, created_at, updated_at
		FROM rfps
		WHERE status = $1
		  AND date_closes IS NOT NULL
		  AND date_closes <= $2
		ORDER BY date_closes ASC
	`

	var rfps []*RFP
	if err := r.db.SelectContext(ctx, &rfps, query, StatusLive, now); err != nil {
		return nil, fmt.Errorf("failed to list closable rfps: %w", err)
	}

	return rfps, nil
}

// acceptedProposalsQuery reads the gorm-owned proposals table; proposals are
// hard-deleted, so no tombstone filter applies.
const acceptedProposalsQuery = `
	SELECT id, title, brief, status
	FROM proposals
	WHERE rfp_id = $1
	  AND status = 'LIVE'
	ORDER BY date_published DESC NULLS LAST
`

// ListAcceptedProposals returns the accepted proposals solicited by an RFP.
func (r *PostgresRepository) ListAcceptedProposals(ctx context.Context, rfpID uuid.UUID) ([]*ProposalSummary, error) {
	var summaries []*ProposalSummary
	if err := r.db.SelectContext(ctx, &summaries, acceptedProposalsQuery, rfpID); err != nil {
		return nil, fmt.Errorf("failed to list rfp proposals: %w", err)
	}

	return summaries, nil
}
