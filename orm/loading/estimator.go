package loading

import (
	"context"

	"github.com/nodalis/framework/db"
	"github.com/nodalis/framework/orm"
	"gorm.io/gorm"
)

// RowEstimator estimates how many rows a relationship fetch is likely to
// return, for the planner to size EstimatedRows with before any query runs.
type RowEstimator interface {
	Estimate(ctx context.Context, table string, meta orm.RelationshipMetadata) int
}

// GormRowEstimator asks Postgres's planner statistics for a row estimate
// (SELECT reltuples FROM pg_class, a constant-time catalog lookup rather
// than a COUNT(*) scan), falling back to the relationship-type defaults
// used by NewChildNodeWithMetadata when the catalog query fails or the
// dialect doesn't expose one (MySQL/SQLite).
type GormRowEstimator struct {
	gdb     *gorm.DB
	dialect db.Dialect
}

func NewGormRowEstimator(gdb *gorm.DB, dialect db.Dialect) *GormRowEstimator {
	return &GormRowEstimator{gdb: gdb, dialect: dialect}
}

func (e *GormRowEstimator) Estimate(ctx context.Context, table string, meta orm.RelationshipMetadata) int {
	if meta.EstimatedRows > 0 {
		return meta.EstimatedRows
	}

	if e.dialect == db.DialectPostgres {
		var reltuples float64
		err := e.gdb.WithContext(ctx).Raw(
			"SELECT reltuples FROM pg_class WHERE relname = ?", table,
		).Scan(&reltuples).Error
		if err == nil && reltuples > 0 {
			return int(reltuples)
		}
	}

	if meta.IsCollection() {
		return collectionEstimatedRows
	}
	return defaultEstimatedRows
}
