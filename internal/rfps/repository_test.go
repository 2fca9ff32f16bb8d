package rfps

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"

	"grantflow/grant-portal-backend/internal/proposals"
)

// The accepted-proposals query runs raw SQL against the gorm-owned proposals
// table, so its column references have to track the Proposal model.
func TestAcceptedProposalsQueryMatchesProposalSchema(t *testing.T) {
	parsed, err := schema.Parse(&proposals.Proposal{}, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)

	columns := make(map[string]bool)
	for _, field := range parsed.Fields {
		if field.DBName != "" {
			columns[field.DBName] = true
		}
	}

	for _, col := range []string{"id", "title", "brief", "status", "rfp_id", "date_published"} {
		assert.True(t, columns[col], "query references column %q missing from the proposals schema", col)
	}

	// Proposals are hard-deleted; there is no tombstone column to filter on.
	assert.False(t, columns["deleted_at"])
	assert.NotContains(t, acceptedProposalsQuery, "deleted_at")
}

func TestAcceptedProposalsQueryFiltersLiveOnly(t *testing.T) {
	assert.Contains(t, acceptedProposalsQuery, "status = 'LIVE'")
	assert.NotContains(t, acceptedProposalsQuery, "APPROVED")
}
