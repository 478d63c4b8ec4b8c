package loading

import (
	"fmt"
	"math"
	"sort"

	"github.com/nodalis/framework/orm"
)

// QueryNode is one relationship fetch in a query plan: a table to query,
// optionally scoped to a parent node, with the metadata the executor and
// analyzer need to schedule and estimate cost without re-deriving it from
// the relationship itself every time.
type QueryNode struct {
	ID            string
	Table         string
	Parent        *string
	Children      []string
	Depth         int
	EstimatedRows int
	ParallelSafe  bool
	ForeignKey    *string
	Constraints   []string
}

const defaultEstimatedRows = 10
const collectionEstimatedRows = 100

// NewRootNode builds the plan's entry node: depth 0, no parent, no foreign
// key (the root set is supplied directly by the caller rather than fetched).
func NewRootNode(id, table string) *QueryNode {
	return &QueryNode{
		ID:            id,
		Table:         table,
		Depth:         0,
		EstimatedRows: defaultEstimatedRows,
		ParallelSafe:  true,
	}
}

// NewChildNode builds a node one level below parent, defaulting its row
// estimate and parallel-safety from the relationship type: collections
// default to a higher row estimate, and ManyToMany (which writes through a
// shared pivot table) defaults to not parallel-safe.
func NewChildNode(id string, parent *QueryNode, relType orm.RelationshipType, foreignKey string) *QueryNode {
	return NewChildNodeWithMetadata(id, parent, orm.RelationshipMetadata{
		Type:       relType,
		ForeignKey: foreignKey,
	})
}

// NewChildNodeWithMetadata is NewChildNode but takes the full relationship
// metadata, so an explicit EstimatedRows hint (see orm.RelationshipMetadata)
// overrides the type-based default.
func NewChildNodeWithMetadata(id string, parent *QueryNode, meta orm.RelationshipMetadata) *QueryNode {
	estimated := defaultEstimatedRows
	if meta.IsCollection() {
		estimated = collectionEstimatedRows
	}
	if meta.EstimatedRows > 0 {
		estimated = meta.EstimatedRows
	}

	parallelSafe := true
	if meta.RequiresPivot() {
		parallelSafe = false
	}

	parentID := parent.ID
	fk := meta.ForeignKey
	node := &QueryNode{
		ID:            id,
		Table:         meta.RelatedTable,
		Parent:        &parentID,
		Depth:         parent.Depth + 1,
		EstimatedRows: estimated,
		ParallelSafe:  parallelSafe,
		ForeignKey:    &fk,
	}
	parent.Children = append(parent.Children, id)
	return node
}

// QueryPlan is the full tree of QueryNodes for one eager-load request, plus
// the execution phases the executor will actually run.
type QueryPlan struct {
	Nodes              map[string]*QueryNode
	Roots              []string
	ExecutionPhases    [][]string
	MaxDepth           int
	TotalEstimatedRows int
}

func NewQueryPlan() *QueryPlan {
	return &QueryPlan{Nodes: make(map[string]*QueryNode)}
}

// AddNode inserts a node into the plan, tracking roots and running totals.
func (p *QueryPlan) AddNode(node *QueryNode) {
	p.Nodes[node.ID] = node
	if node.Parent == nil {
		p.Roots = append(p.Roots, node.ID)
	}
	if node.Depth > p.MaxDepth {
		p.MaxDepth = node.Depth
	}
	p.TotalEstimatedRows += node.EstimatedRows
}

// Validate rejects cycles and dangling parent/child references, so the
// executor never has to defend against a malformed plan mid-execution.
func (p *QueryPlan) Validate() error {
	for id, node := range p.Nodes {
		if node.Parent != nil {
			if _, ok := p.Nodes[*node.Parent]; !ok {
				return fmt.Errorf("node %s: dangling parent reference %s", id, *node.Parent)
			}
		}
		for _, childID := range node.Children {
			if _, ok := p.Nodes[childID]; !ok {
				return fmt.Errorf("node %s: dangling child reference %s", id, childID)
			}
		}
	}

	visiting := make(map[string]bool)
	visited := make(map[string]bool)
	var visit func(id string) error
	visit = func(id string) error {
		if visited[id] {
			return nil
		}
		if visiting[id] {
			return fmt.Errorf("cycle detected at node %s", id)
		}
		visiting[id] = true
		node := p.Nodes[id]
		for _, childID := range node.Children {
			if err := visit(childID); err != nil {
				return err
			}
		}
		visiting[id] = false
		visited[id] = true
		return nil
	}

	ids := p.sortedNodeIDs()
	for _, id := range ids {
		if err := visit(id); err != nil {
			return err
		}
	}
	return nil
}

// BuildExecutionPhases partitions nodes into phases by depth, and within a
// depth into parallel-safe groups, with any non-parallel-safe node running
// in its own single-node phase. Within a depth, nodes are processed in
// node id order, so output is deterministic across runs; the order in which
// nodes were added to the plan is not tracked and does not affect phases.
func (p *QueryPlan) BuildExecutionPhases() error {
	if err := p.Validate(); err != nil {
		return err
	}

	byDepth := make(map[int][]string)
	for _, id := range p.sortedNodeIDs() {
		node := p.Nodes[id]
		byDepth[node.Depth] = append(byDepth[node.Depth], id)
	}

	phases := make([][]string, 0, p.MaxDepth+1)
	for depth := 0; depth <= p.MaxDepth; depth++ {
		ids, ok := byDepth[depth]
		if !ok {
			continue
		}

		var parallelGroup []string
		for _, id := range ids {
			node := p.Nodes[id]
			if node.ParallelSafe {
				parallelGroup = append(parallelGroup, id)
				continue
			}
			if len(parallelGroup) > 0 {
				phases = append(phases, parallelGroup)
				parallelGroup = nil
			}
			phases = append(phases, []string{id})
		}
		if len(parallelGroup) > 0 {
			phases = append(phases, parallelGroup)
		}
	}

	p.ExecutionPhases = phases
	return nil
}

func (p *QueryPlan) sortedNodeIDs() []string {
	ids := make([]string, 0, len(p.Nodes))
	for id := range p.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ComplexityScore weighs depth, node count, and total row volume into a
// single number the analyzer and optimizer threshold against.
func (p *QueryPlan) ComplexityScore() float64 {
	rows := float64(p.TotalEstimatedRows)
	if rows < 1 {
		rows = 1
	}
	return float64(p.MaxDepth)*1.5 + float64(len(p.Nodes))*0.5 + math.Log10(rows)*2.0
}

// PlanStatistics summarizes a plan's shape for logging and the analyzer.
type PlanStatistics struct {
	NodeCount          int
	MaxDepth           int
	PhaseCount         int
	ParallelPhaseCount int
	TotalEstimatedRows int
}

func (p *QueryPlan) Statistics() PlanStatistics {
	stats := PlanStatistics{
		NodeCount:          len(p.Nodes),
		MaxDepth:           p.MaxDepth,
		PhaseCount:         len(p.ExecutionPhases),
		TotalEstimatedRows: p.TotalEstimatedRows,
	}
	for _, phase := range p.ExecutionPhases {
		if len(phase) > 1 {
			stats.ParallelPhaseCount++
		}
	}
	return stats
}
