package loading

import (
	"context"
	"testing"

	"github.com/nodalis/framework/db"
	"github.com/nodalis/framework/orm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanExecutor_ExecuteFeedsChildPhaseFromParentResults(t *testing.T) {
	gdb := newTestDB(t)
	seedUsersWithPosts(t, gdb, 3, 2)

	loader := NewBatchLoader(gdb, db.DialectSQLite, BatchLoaderConfig{BatchSize: 10})

	plan := NewQueryPlan()
	root := NewRootNode("users", "users")
	plan.AddNode(root)
	posts := NewChildNodeWithMetadata("posts", root, orm.RelationshipMetadata{
		Type: orm.HasMany, ForeignKey: "user_id", RelatedTable: "posts",
	})
	plan.AddNode(posts)
	require.NoError(t, plan.BuildExecutionPhases())

	executor := NewPlanExecutor(loader)
	result, err := executor.Execute(context.Background(), plan, map[string][]any{
		"users": {int64(1), int64(2), int64(3)},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Errors)

	assert.Len(t, result.ResultsByNodeID["posts"], 6)
	assert.Equal(t, 1, result.Stats.QueryCount)
	assert.Equal(t, 6, result.Stats.RowsFetched)
	assert.Len(t, result.Stats.PhaseDurations, 2)
}

func TestPlanExecutor_ParallelPhaseRunsSiblingNodesConcurrently(t *testing.T) {
	gdb := newTestDB(t)
	seedUsersWithPosts(t, gdb, 2, 1)
	require.NoError(t, gdb.Exec(`CREATE TABLE profiles (id INTEGER PRIMARY KEY, user_id INTEGER)`).Error)
	require.NoError(t, gdb.Exec("INSERT INTO profiles (id, user_id) VALUES (1, 1), (2, 2)").Error)

	loader := NewBatchLoader(gdb, db.DialectSQLite, BatchLoaderConfig{BatchSize: 10})

	plan := NewQueryPlan()
	root := NewRootNode("users", "users")
	plan.AddNode(root)
	posts := NewChildNodeWithMetadata("posts", root, orm.RelationshipMetadata{
		Type: orm.HasMany, ForeignKey: "user_id", RelatedTable: "posts",
	})
	plan.AddNode(posts)
	profile := NewChildNodeWithMetadata("profile", root, orm.RelationshipMetadata{
		Type: orm.HasOne, ForeignKey: "user_id", RelatedTable: "profiles",
	})
	plan.AddNode(profile)
	require.NoError(t, plan.BuildExecutionPhases())

	// users is its own phase; posts and profile share depth 1 and are both
	// parallel-safe, so they land in one two-node phase together.
	require.Len(t, plan.ExecutionPhases, 2)
	require.Len(t, plan.ExecutionPhases[1], 2)

	executor := NewPlanExecutor(loader)
	result, err := executor.Execute(context.Background(), plan, map[string][]any{
		"users": {int64(1), int64(2)},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	assert.Len(t, result.ResultsByNodeID["posts"], 2)
	assert.Len(t, result.ResultsByNodeID["profile"], 2)
	assert.Equal(t, 1, result.Stats.ParallelPhases)
}
