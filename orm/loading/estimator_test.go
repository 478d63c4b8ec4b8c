package loading

import (
	"context"
	"testing"

	"github.com/nodalis/framework/db"
	"github.com/nodalis/framework/orm"
	"github.com/stretchr/testify/assert"
)

func TestGormRowEstimator_PrefersManualHintOverQuery(t *testing.T) {
	gdb := newTestDB(t)
	estimator := NewGormRowEstimator(gdb, db.DialectSQLite)

	n := estimator.Estimate(context.Background(), "posts", orm.RelationshipMetadata{
		Type: orm.HasMany, EstimatedRows: 77,
	})
	assert.Equal(t, 77, n)
}

func TestGormRowEstimator_FallsBackToTypeDefaultsOnNonPostgres(t *testing.T) {
	gdb := newTestDB(t)
	estimator := NewGormRowEstimator(gdb, db.DialectSQLite)

	n := estimator.Estimate(context.Background(), "posts", orm.RelationshipMetadata{Type: orm.HasMany})
	assert.Equal(t, collectionEstimatedRows, n)

	n = estimator.Estimate(context.Background(), "users", orm.RelationshipMetadata{Type: orm.BelongsTo})
	assert.Equal(t, defaultEstimatedRows, n)
}
