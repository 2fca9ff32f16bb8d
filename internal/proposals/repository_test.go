package proposals

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"
)

func TestDeleteCascadeCoversOwnedChildRecords(t *testing.T) {
	expected := []string{
		"milestones",
		"contributions",
		"team_invites",
		"proposal_revisions",
		"proposal_arbiters",
		"proposal_team",
	}

	require.Len(t, cascadeStatements, len(expected))
	for i, table := range expected {
		assert.Contains(t, cascadeStatements[i], "DELETE FROM "+table+" ",
			"cascade step %d should clean up %s", i, table)
		assert.Contains(t, cascadeStatements[i], "proposal_id = ?")
	}
}

func TestCascadeTableNamesMatchModels(t *testing.T) {
	models := map[string]any{
		"milestones":         &Milestone{},
		"team_invites":       &TeamInvite{},
		"proposal_revisions": &ProposalRevision{},
		"proposal_arbiters":  &ProposalArbiter{},
	}

	for table, model := range models {
		parsed, err := schema.Parse(model, &sync.Map{}, schema.NamingStrategy{})
		require.NoError(t, err)
		assert.Equal(t, table, parsed.Table)
	}
}
