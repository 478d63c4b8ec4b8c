package orm

import (
	"fmt"
	"strings"

	"github.com/nodalis/framework/db"
)

// QueryBuilder produces parameterized SQL fragments for batch loads,
// issued through gorm.DB.Raw/Where rather than a hand-rolled SQL AST.
// Identifier quoting and the batch predicate shape are dialect-aware;
// PostgreSQL is the reference dialect and the only one that gets a native
// `= ANY(ARRAY[...])` predicate, MySQL/SQLite fall back to `IN (...)`.
type QueryBuilder struct {
	dialect db.Dialect
}

func NewQueryBuilder(dialect db.Dialect) *QueryBuilder {
	return &QueryBuilder{dialect: dialect}
}

// QuoteIdentifier quotes a column or table name per dialect: backticks for
// MySQL, double quotes for Postgres and SQLite.
func (b *QueryBuilder) QuoteIdentifier(name string) string {
	if b.dialect == db.DialectMySQL {
		return "`" + name + "`"
	}
	return `"` + name + `"`
}

// BatchWhereClause builds the predicate used to fetch every row whose
// column matches one of values in a single query, plus the args slice to
// pass alongside it to gorm.DB.Where/Raw.
func (b *QueryBuilder) BatchWhereClause(column string, values []any) (sql string, args []any) {
	quoted := b.QuoteIdentifier(column)
	placeholders := make([]string, len(values))
	args = make([]any, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		args[i] = v
	}
	joined := strings.Join(placeholders, ", ")

	if b.dialect == db.DialectPostgres {
		return fmt.Sprintf("%s = ANY(ARRAY[%s])", quoted, joined), args
	}
	return fmt.Sprintf("%s IN (%s)", quoted, joined), args
}

// PivotJoinClause builds the join predicate for a ManyToMany relationship's
// pivot table, used by the batch loader when RelationshipMetadata.Pivot is
// set.
func (b *QueryBuilder) PivotJoinClause(pivot *PivotMetadata, relatedTable string) string {
	return fmt.Sprintf("JOIN %s ON %s.%s = %s.id",
		b.QuoteIdentifier(pivot.Table),
		b.QuoteIdentifier(pivot.Table),
		b.QuoteIdentifier(pivot.RelatedKey),
		b.QuoteIdentifier(relatedTable),
	)
}
