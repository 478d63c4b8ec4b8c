package loading

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// QueryTimeoutError reports that a single node's query exceeded
// PlanExecutor.QueryTimeout; it never aborts sibling nodes in the same
// phase.
type QueryTimeoutError struct {
	NodeID string
	Err    error
}

func (e *QueryTimeoutError) Error() string {
	return fmt.Sprintf("node %s: query timed out: %v", e.NodeID, e.Err)
}

func (e *QueryTimeoutError) Unwrap() error { return e.Err }

// CancelledError reports that plan execution was cancelled before every
// phase ran; Completed is the number of phases that finished.
type CancelledError struct {
	Completed int
	Total     int
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("execution cancelled after %d/%d phases", e.Completed, e.Total)
}

// ExecutionStats reports timing and volume for one Execute call.
type ExecutionStats struct {
	TotalDuration  time.Duration
	PhaseDurations []time.Duration
	QueryCount     int
	RowsFetched    int
	ParallelPhases int
	AvgQueryTime   time.Duration
}

// ExecutionResult is Execute's output: every node's rows, keyed by node id,
// plus stats and any per-node errors that didn't abort the run.
type ExecutionResult struct {
	ResultsByNodeID map[string][]Row
	Stats           ExecutionStats
	Errors          []error
}

// PlanExecutor runs a QueryPlan's phases in order, parallelizing nodes
// within a phase through a bounded worker pool.
type PlanExecutor struct {
	BatchLoader      *BatchLoader
	MaxParallelTasks int
	QueryTimeout     time.Duration
}

func NewPlanExecutor(loader *BatchLoader) *PlanExecutor {
	return &PlanExecutor{BatchLoader: loader, MaxParallelTasks: 10, QueryTimeout: 30 * time.Second}
}

// Execute runs plan's phases in declared order. Within a phase with more
// than one node, nodes run concurrently bounded by MaxParallelTasks; a
// single-node phase runs inline. After phase k completes, its output row
// ids seed ParentIDs for phase k+1 along each node's recorded parent edge.
func (e *PlanExecutor) Execute(ctx context.Context, plan *QueryPlan, rootIDsByNode map[string][]any) (ExecutionResult, error) {
	if plan.ExecutionPhases == nil {
		if err := plan.BuildExecutionPhases(); err != nil {
			return ExecutionResult{}, err
		}
	}

	maxParallel := e.MaxParallelTasks
	if maxParallel <= 0 {
		maxParallel = 10
	}
	timeout := e.QueryTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	result := ExecutionResult{
		ResultsByNodeID: make(map[string][]Row),
		Stats:           ExecutionStats{PhaseDurations: make([]time.Duration, 0, len(plan.ExecutionPhases))},
	}

	parentIDs := make(map[string][]any, len(rootIDsByNode))
	for id, ids := range rootIDsByNode {
		parentIDs[id] = ids
	}

	start := time.Now()
	var mu sync.Mutex

	for phaseIdx, phase := range plan.ExecutionPhases {
		select {
		case <-ctx.Done():
			result.Errors = append(result.Errors, &CancelledError{Completed: phaseIdx, Total: len(plan.ExecutionPhases)})
			result.Stats.TotalDuration = time.Since(start)
			return result, nil
		default:
		}

		phaseStart := time.Now()
		if len(phase) > 1 {
			result.Stats.ParallelPhases++
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(maxParallel)
			for _, nodeID := range phase {
				nodeID := nodeID
				g.Go(func() error {
					e.runNode(gctx, plan, nodeID, parentIDs, timeout, &mu, &result)
					return nil
				})
			}
			_ = g.Wait()
		} else if len(phase) == 1 {
			e.runNode(ctx, plan, phase[0], parentIDs, timeout, &mu, &result)
		}
		result.Stats.PhaseDurations = append(result.Stats.PhaseDurations, time.Since(phaseStart))

		for _, nodeID := range phase {
			node := plan.Nodes[nodeID]
			rows := result.ResultsByNodeID[nodeID]
			for _, childID := range node.Children {
				parentIDs[childID] = append(parentIDs[childID], rowIDs(rows)...)
			}
		}
	}

	result.Stats.TotalDuration = time.Since(start)
	if result.Stats.QueryCount > 0 {
		result.Stats.AvgQueryTime = result.Stats.TotalDuration / time.Duration(result.Stats.QueryCount)
	}
	return result, nil
}

func (e *PlanExecutor) runNode(ctx context.Context, plan *QueryPlan, nodeID string, parentIDs map[string][]any, timeout time.Duration, mu *sync.Mutex, result *ExecutionResult) {
	node := plan.Nodes[nodeID]
	ids := parentIDs[nodeID]

	// A root node's ids come from the caller, not a query: there is no
	// parent row to fetch it by.
	if node.Parent == nil {
		rows := make([]Row, len(ids))
		for i, id := range ids {
			rows[i] = Row{"id": id}
		}
		mu.Lock()
		result.ResultsByNodeID[nodeID] = rows
		mu.Unlock()
		return
	}

	nodeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var fk string
	if node.ForeignKey != nil {
		fk = *node.ForeignKey
	}

	grouped, err := e.BatchLoader.Load(nodeCtx, LoadRequest{
		ParentType:       parentTable(plan, node),
		ParentIDs:        ids,
		RelationshipName: nodeID,
		ForeignKey:       fk,
		RelatedTable:     node.Table,
	})

	mu.Lock()
	defer mu.Unlock()
	if err != nil {
		if nodeCtx.Err() != nil {
			result.Errors = append(result.Errors, &QueryTimeoutError{NodeID: nodeID, Err: err})
		} else {
			result.Errors = append(result.Errors, fmt.Errorf("node %s: %w", nodeID, err))
		}
		return
	}

	var rows []Row
	for _, rs := range grouped {
		rows = append(rows, rs...)
	}
	result.ResultsByNodeID[nodeID] = rows
	result.Stats.QueryCount++
	result.Stats.RowsFetched += len(rows)
}

func parentTable(plan *QueryPlan, node *QueryNode) string {
	if node.Parent == nil {
		return node.Table
	}
	if parent, ok := plan.Nodes[*node.Parent]; ok {
		return parent.Table
	}
	return ""
}

func rowIDs(rows []Row) []any {
	ids := make([]any, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row["id"])
	}
	return ids
}
