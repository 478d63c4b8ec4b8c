// Package loading implements the eager loader, batch loader, and query
// planner: given a root entity set and a list of relationships
// (optionally nested, e.g. "posts.comments.user"), it loads every related
// row in a constant, bounded number of queries regardless of the root
// set's size.
package loading

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/nodalis/framework/db"
	"github.com/nodalis/framework/orm"
	"gorm.io/gorm"
)

// Row is a generic loaded row: the loader works over arbitrary tables, so
// it scans into a plain column map rather than a generated struct.
type Row map[string]any

// LoadRequest describes a single batched fetch of one relationship for a
// set of parent ids.
type LoadRequest struct {
	ParentType       string
	ParentIDs        []any
	RelationshipName string
	ForeignKey       string
	RelatedTable     string
}

// BatchLoaderConfig controls chunking and request-scoped deduplication.
type BatchLoaderConfig struct {
	// BatchSize bounds how many parent ids go into a single query's
	// predicate; ParentIDs beyond this are split into additional chunks.
	BatchSize int
	// DeduplicateQueries, when true, caches a LoadRequest's result by a
	// canonical key so a repeated identical request skips the database.
	DeduplicateQueries bool
}

const defaultBatchSize = 500

// BatchLoader issues one SELECT ... WHERE fk = ANY(ARRAY[...])/IN (...)
// query per chunk of parent ids, then groups the resulting rows back onto
// their parent id.
type BatchLoader struct {
	gdb   *gorm.DB
	qb    *orm.QueryBuilder
	cfg   BatchLoaderConfig
	cache sync.Map
}

func NewBatchLoader(gdb *gorm.DB, dialect db.Dialect, cfg BatchLoaderConfig) *BatchLoader {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	return &BatchLoader{gdb: gdb, qb: orm.NewQueryBuilder(dialect), cfg: cfg}
}

// Load fetches RelatedTable rows matching ForeignKey against any of
// ParentIDs, chunked to BatchSize, and groups them by foreign key value.
// The output map has one entry per requested parent id, possibly empty,
// so callers can always look up every id they asked for.
func (l *BatchLoader) Load(ctx context.Context, req LoadRequest) (map[any][]Row, error) {
	if l.cfg.DeduplicateQueries {
		key := dedupKey(req)
		if cached, ok := l.cache.Load(key); ok {
			return cached.(map[any][]Row), nil
		}
	}

	result := make(map[any][]Row, len(req.ParentIDs))
	for _, id := range req.ParentIDs {
		result[id] = []Row{}
	}
	if len(req.ParentIDs) == 0 {
		return result, nil
	}

	for _, chunk := range chunkIDs(req.ParentIDs, l.cfg.BatchSize) {
		predicate, args := l.qb.BatchWhereClause(req.ForeignKey, chunk)
		query := fmt.Sprintf("SELECT * FROM %s WHERE %s", l.qb.QuoteIdentifier(req.RelatedTable), predicate)

		var rows []Row
		if err := l.gdb.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
			return nil, err
		}
		groupByParentID(result, rows, req.ForeignKey)
	}

	if l.cfg.DeduplicateQueries {
		l.cache.Store(dedupKey(req), result)
	}
	return result, nil
}

// groupByParentID appends each row into the bucket keyed by its foreign
// key value; buckets must already be pre-initialized for every requested
// parent id so a parent with zero matches still surfaces an empty slice.
func groupByParentID(result map[any][]Row, rows []Row, foreignKey string) {
	for _, row := range rows {
		fk := row[foreignKey]
		result[fk] = append(result[fk], row)
	}
}

func chunkIDs(ids []any, size int) [][]any {
	chunks := make([][]any, 0, (len(ids)+size-1)/size)
	for i := 0; i < len(ids); i += size {
		end := i + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[i:end])
	}
	return chunks
}

func dedupKey(req LoadRequest) string {
	ids := make([]string, len(req.ParentIDs))
	for i, id := range req.ParentIDs {
		ids[i] = fmt.Sprint(id)
	}
	sort.Strings(ids)
	return fmt.Sprintf("%s:%s:%s", req.ParentType, req.RelationshipName, strings.Join(ids, ","))
}

// RelationshipResolver looks up a relationship's metadata by the owning
// type's name, letting LoadNested walk a dotted path without the loader
// itself knowing anything about model schemas.
type RelationshipResolver interface {
	Resolve(parentType, relationshipName string) (orm.RelationshipMetadata, error)
}

// PhaseResult is one segment's worth of LoadNested output.
type PhaseResult struct {
	RelationshipName string
	Grouped          map[any][]Row
}

// LoadNested walks a dotted relationship path ("posts.comments.user") one
// segment at a time, feeding each phase's loaded row ids as the next
// phase's ParentIDs.
func (l *BatchLoader) LoadNested(ctx context.Context, rootType string, rootIDs []any, path string, resolver RelationshipResolver) ([]PhaseResult, error) {
	segments := strings.Split(path, ".")
	phases := make([]PhaseResult, 0, len(segments))

	currentType := rootType
	currentIDs := rootIDs

	for _, segment := range segments {
		meta, err := resolver.Resolve(currentType, segment)
		if err != nil {
			return nil, err
		}

		grouped, err := l.Load(ctx, LoadRequest{
			ParentType:       currentType,
			ParentIDs:        currentIDs,
			RelationshipName: segment,
			ForeignKey:       meta.ForeignKey,
			RelatedTable:     meta.RelatedTable,
		})
		if err != nil {
			return nil, err
		}
		phases = append(phases, PhaseResult{RelationshipName: segment, Grouped: grouped})

		currentIDs = uniqueRowIDs(grouped)
		currentType = meta.RelatedTable
	}

	return phases, nil
}

func uniqueRowIDs(grouped map[any][]Row) []any {
	seen := make(map[any]struct{})
	ids := make([]any, 0)
	for _, rows := range grouped {
		for _, row := range rows {
			id := row["id"]
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}
