package migrate

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/specbook/pkg/models"
)

// seqIDs returns a deterministic identifier mint for tests.
func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("{NEW-%04d}", n)
	}
}

func TestRebuildThreadsMintsFreshIdentifiers(t *testing.T) {
	placed := testThread("", "S", "B2", 2)
	failed := testThread("", "S", "C3", 1)
	outcomes := []*models.MigrationOutcome{
		{Thread: placed, Sheet: "S", Ref: "B2", Strategy: models.StrategySameSheet},
		{Thread: failed, Failure: models.FailureAnchorNotFound},
	}

	rebuilt := RebuildThreads(outcomes, seqIDs())

	require.Len(t, rebuilt, 3, "failed threads are excluded whole")
	require.Equal(t, "{NEW-0001}", rebuilt[0].NewID)
	require.Empty(t, rebuilt[0].NewParent)
	require.Equal(t, "{NEW-0002}", rebuilt[1].NewID)
	require.Equal(t, "{NEW-0001}", rebuilt[1].NewParent)
	require.Equal(t, "{NEW-0003}", rebuilt[2].NewID)
	require.Equal(t, "{NEW-0001}", rebuilt[2].NewParent)

	// Originals keep their source identifiers; only the emitted copies carry
	// fresh ones.
	require.Equal(t, "{R-1}", placed.Root.ID)
	require.Equal(t, "{R-2}", placed.Replies[0].ID)
}

func TestRebuildThreadsFlattensStrayParents(t *testing.T) {
	th := testThread("", "S", "B2", 2)
	th.Replies[1].ParentID = th.Replies[0].ID // points at a reply, not the root

	rebuilt := RebuildThreads([]*models.MigrationOutcome{
		{Thread: th, Sheet: "S", Ref: "B2", Strategy: models.StrategySameSheet},
	}, seqIDs())

	require.Len(t, rebuilt, 3)
	require.Equal(t, rebuilt[0].NewID, rebuilt[2].NewParent,
		"every emitted reply references the thread root")
}

func TestNewCommentIDShape(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 64; i++ {
		id := NewCommentID()
		require.True(t, strings.HasPrefix(id, "{"))
		require.True(t, strings.HasSuffix(id, "}"))
		require.Equal(t, strings.ToUpper(id), id)
		require.Len(t, id, 38)
		require.False(t, seen[id], "identifiers must not repeat")
		seen[id] = true
	}
}
