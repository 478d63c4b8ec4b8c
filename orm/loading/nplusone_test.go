package loading

import (
	"context"
	"testing"

	"github.com/nodalis/framework/db"
	"github.com/nodalis/framework/orm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Loading a two-level relationship path over 100 roots at batch size 50
// must issue a bounded number of queries: 2 chunks for posts, then
// ceil(unique post ids / 50) chunks for comments — never one query per
// root.
func TestLoadNested_QueryCountIsIndependentOfRootSetSize(t *testing.T) {
	gdb := newTestDB(t)

	// 100 users, 1 post each, 3 comments per post: the comment count is
	// irrelevant to the query count, only unique parent ids matter.
	commentID := 1
	for u := 1; u <= 100; u++ {
		require.NoError(t, gdb.Exec("INSERT INTO users (id) VALUES (?)", u).Error)
		require.NoError(t, gdb.Exec("INSERT INTO posts (id, user_id) VALUES (?, ?)", u, u).Error)
		for i := 0; i < 3; i++ {
			require.NoError(t, gdb.Exec("INSERT INTO comments (id, post_id) VALUES (?, ?)", commentID, u).Error)
			commentID++
		}
	}

	var queries int
	gdb.Callback().Query().After("gorm:query").Register("count_nested_queries", func(tx *gorm.DB) {
		queries++
	})

	loader := NewBatchLoader(gdb, db.DialectSQLite, BatchLoaderConfig{BatchSize: 50})
	resolver := staticResolver{
		"users.posts":    {Name: "posts", Type: orm.HasMany, ForeignKey: "user_id", RelatedTable: "posts"},
		"posts.comments": {Name: "comments", Type: orm.HasMany, ForeignKey: "post_id", RelatedTable: "comments"},
	}

	rootIDs := make([]any, 100)
	for i := range rootIDs {
		rootIDs[i] = int64(i + 1)
	}

	phases, err := loader.LoadNested(context.Background(), "users", rootIDs, "posts.comments", resolver)
	require.NoError(t, err)
	require.Len(t, phases, 2)

	// Phase 1: ceil(100/50) = 2 queries for posts. Phase 2: 100 unique post
	// ids => 2 more for comments. 4 total, regardless of the 300 comments.
	assert.Equal(t, 4, queries)

	totalComments := 0
	for _, rows := range phases[1].Grouped {
		totalComments += len(rows)
	}
	assert.Equal(t, 300, totalComments)
}
