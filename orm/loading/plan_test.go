package loading

import (
	"math"
	"testing"

	"github.com/nodalis/framework/orm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSamplePlan(t *testing.T) *QueryPlan {
	t.Helper()
	plan := NewQueryPlan()

	root := NewRootNode("users", "users")
	plan.AddNode(root)

	posts := NewChildNodeWithMetadata("posts", root, orm.RelationshipMetadata{
		Type: orm.HasMany, ForeignKey: "user_id", RelatedTable: "posts",
	})
	plan.AddNode(posts)

	comments := NewChildNodeWithMetadata("comments", posts, orm.RelationshipMetadata{
		Type: orm.HasMany, ForeignKey: "post_id", RelatedTable: "comments",
	})
	plan.AddNode(comments)

	tags := NewChildNodeWithMetadata("tags", posts, orm.RelationshipMetadata{
		Type: orm.ManyToMany, ForeignKey: "post_id", RelatedTable: "tags",
		Pivot: &orm.PivotMetadata{Table: "post_tags", ParentKey: "post_id", RelatedKey: "tag_id"},
	})
	plan.AddNode(tags)

	return plan
}

func TestQueryPlan_BuildExecutionPhasesGroupsByDepthAndParallelSafety(t *testing.T) {
	plan := buildSamplePlan(t)
	require.NoError(t, plan.BuildExecutionPhases())

	// depth 0: users (root, parallel-safe) -> one phase
	// depth 1: posts (parallel-safe) -> one phase
	// depth 2: comments (parallel-safe) and tags (ManyToMany, not parallel-safe)
	//          -> comments groups with itself, tags gets its own single-node phase
	require.Len(t, plan.ExecutionPhases, 4)
	assert.ElementsMatch(t, []string{"users"}, plan.ExecutionPhases[0])
	assert.ElementsMatch(t, []string{"posts"}, plan.ExecutionPhases[1])
	assert.ElementsMatch(t, []string{"comments"}, plan.ExecutionPhases[2])
	assert.ElementsMatch(t, []string{"tags"}, plan.ExecutionPhases[3])
}

func TestQueryPlan_ValidateRejectsDanglingReferences(t *testing.T) {
	plan := NewQueryPlan()
	orphanParent := "missing"
	plan.AddNode(&QueryNode{ID: "child", Table: "posts", Parent: &orphanParent})

	err := plan.Validate()
	assert.Error(t, err)
}

func TestQueryPlan_ValidateRejectsCycles(t *testing.T) {
	plan := NewQueryPlan()
	a := &QueryNode{ID: "a", Table: "a", Children: []string{"b"}}
	b := &QueryNode{ID: "b", Table: "b", Children: []string{"a"}}
	plan.Nodes["a"] = a
	plan.Nodes["b"] = b

	err := plan.Validate()
	assert.Error(t, err)
}

func TestQueryPlan_ComplexityScoreMatchesFormula(t *testing.T) {
	plan := buildSamplePlan(t)
	require.NoError(t, plan.BuildExecutionPhases())

	score := plan.ComplexityScore()
	assert.Greater(t, score, 0.0)
	// depth 2, 4 nodes, 10+100+100+100 estimated rows.
	assert.InDelta(t, 2*1.5+4*0.5+math.Log10(310)*2.0, score, 1e-9)

	stats := plan.Statistics()
	assert.Equal(t, 4, stats.NodeCount)
	assert.Equal(t, 2, stats.MaxDepth)
	assert.Equal(t, 4, stats.PhaseCount)
}

func TestNewChildNodeWithMetadata_DefaultsRowsAndParallelSafetyByType(t *testing.T) {
	root := NewRootNode("users", "users")

	hasMany := NewChildNodeWithMetadata("posts", root, orm.RelationshipMetadata{Type: orm.HasMany, RelatedTable: "posts"})
	assert.Equal(t, collectionEstimatedRows, hasMany.EstimatedRows)
	assert.True(t, hasMany.ParallelSafe)

	manyToMany := NewChildNodeWithMetadata("tags", root, orm.RelationshipMetadata{
		Type: orm.ManyToMany, RelatedTable: "tags",
		Pivot: &orm.PivotMetadata{Table: "post_tags"},
	})
	assert.False(t, manyToMany.ParallelSafe)

	hinted := NewChildNodeWithMetadata("author", root, orm.RelationshipMetadata{
		Type: orm.BelongsTo, RelatedTable: "users", EstimatedRows: 42,
	})
	assert.Equal(t, 42, hinted.EstimatedRows)
}
