package loading

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// RiskLevel classifies a plan's likely impact on database and request
// latency, from the analyzer's complexity/time/bottleneck thresholds.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// PlanAnalysis is AnalyzePlan's report: a cost estimate plus human-readable
// bottlenecks and recommendations a caller can log or surface to an admin.
type PlanAnalysis struct {
	ComplexityScore        float64
	EstimatedExecutionTime time.Duration
	Bottlenecks            []string
	Recommendations        []string
	RiskLevel              RiskLevel
	Statistics             PlanStatistics
}

// QueryOptimizer holds the thresholds AnalyzePlan and OptimizePlan judge a
// plan against.
type QueryOptimizer struct {
	MaxComplexity       float64
	TargetExecutionTime time.Duration
}

func NewQueryOptimizer() *QueryOptimizer {
	return &QueryOptimizer{MaxComplexity: 100, TargetExecutionTime: 5 * time.Second}
}

const (
	bottleneckRowThreshold   = 10000
	bottleneckDepthThreshold = 5
)

// AnalyzePlan estimates a plan's execution time, flags bottlenecks, and
// derives recommendations and a risk level from them.
func (o *QueryOptimizer) AnalyzePlan(plan *QueryPlan) (PlanAnalysis, error) {
	if plan.ExecutionPhases == nil {
		if err := plan.BuildExecutionPhases(); err != nil {
			return PlanAnalysis{}, err
		}
	}

	estimated := o.estimateExecutionTime(plan)
	bottlenecks := o.identifyBottlenecks(plan)
	recommendations := o.generateRecommendations(plan, bottlenecks)
	complexity := plan.ComplexityScore()

	return PlanAnalysis{
		ComplexityScore:        complexity,
		EstimatedExecutionTime: estimated,
		Bottlenecks:            bottlenecks,
		Recommendations:        recommendations,
		RiskLevel:              o.assessRiskLevel(complexity, estimated, len(bottlenecks)),
		Statistics:             plan.Statistics(),
	}, nil
}

// estimateExecutionTime sums a fixed per-node cost, a row-volume term, a
// depth term, and a per-phase term (single-sequential-node phases cost more
// than parallel phases, since they can't overlap with siblings).
func (o *QueryOptimizer) estimateExecutionTime(plan *QueryPlan) time.Duration {
	nodeCost := time.Duration(len(plan.Nodes)) * 10 * time.Millisecond
	rowCost := time.Duration(plan.TotalEstimatedRows/1000) * time.Millisecond
	depthCost := time.Duration(plan.MaxDepth) * 50 * time.Millisecond

	var phaseCost time.Duration
	for _, phase := range plan.ExecutionPhases {
		if len(phase) == 1 {
			phaseCost += 20 * time.Millisecond
		} else {
			phaseCost += 10 * time.Millisecond
		}
	}

	return nodeCost + rowCost + depthCost + phaseCost
}

func (o *QueryOptimizer) identifyBottlenecks(plan *QueryPlan) []string {
	var bottlenecks []string

	for _, id := range plan.sortedNodeIDs() {
		node := plan.Nodes[id]
		if node.EstimatedRows > bottleneckRowThreshold {
			bottlenecks = append(bottlenecks, fmt.Sprintf("node %s estimates %d rows, exceeding the %d-row threshold", node.ID, node.EstimatedRows, bottleneckRowThreshold))
		}
	}

	if plan.MaxDepth > bottleneckDepthThreshold {
		bottlenecks = append(bottlenecks, fmt.Sprintf("plan depth %d exceeds the %d-level threshold", plan.MaxDepth, bottleneckDepthThreshold))
	}

	var totalSize int
	for _, phase := range plan.ExecutionPhases {
		totalSize += len(phase)
	}
	avgSize := float64(0)
	if len(plan.ExecutionPhases) > 0 {
		avgSize = float64(totalSize) / float64(len(plan.ExecutionPhases))
	}

	for i, phase := range plan.ExecutionPhases {
		if len(phase) == 1 && !plan.Nodes[phase[0]].ParallelSafe {
			bottlenecks = append(bottlenecks, fmt.Sprintf("phase %d is a single non-parallel-safe node (%s)", i, phase[0]))
		}
		if avgSize > 0 && float64(len(phase)) > 3*avgSize {
			bottlenecks = append(bottlenecks, fmt.Sprintf("phase %d has %d nodes, over 3x the average phase size", i, len(phase)))
		}
	}

	return bottlenecks
}

func (o *QueryOptimizer) generateRecommendations(plan *QueryPlan, bottlenecks []string) []string {
	recSet := make(map[string]struct{})

	for _, b := range bottlenecks {
		switch {
		case strings.Contains(b, "exceeding the"):
			recSet["add pagination or a tighter filter to high-row-count relationships"] = struct{}{}
		case strings.Contains(b, "exceeds the"):
			recSet["flatten deeply nested eager loads or split the request into multiple round trips"] = struct{}{}
		case strings.Contains(b, "single non-parallel-safe node"):
			recSet["review whether the pivot-backed relationship can be made parallel-safe"] = struct{}{}
		case strings.Contains(b, "average phase size"):
			recSet["rebalance phases so no single phase dominates total query count"] = struct{}{}
		}
	}

	if plan.MaxDepth > 3 {
		recSet["consider denormalizing frequently-nested relationships"] = struct{}{}
	}
	if plan.TotalEstimatedRows > 50000 {
		recSet["add result limits to relationships contributing the most estimated rows"] = struct{}{}
	}

	var parallel, total int
	for _, phase := range plan.ExecutionPhases {
		total += len(phase)
		if len(phase) > 1 {
			parallel += len(phase)
		}
	}
	if total > 0 && float64(parallel)/float64(total) < 0.5 {
		recSet["increase parallel-safe relationship coverage to improve phase concurrency"] = struct{}{}
	}

	recs := make([]string, 0, len(recSet))
	for r := range recSet {
		recs = append(recs, r)
	}
	sort.Strings(recs)
	return recs
}

func (o *QueryOptimizer) assessRiskLevel(complexity float64, estimated time.Duration, bottleneckCount int) RiskLevel {
	maxComplexity := o.MaxComplexity
	if maxComplexity <= 0 {
		maxComplexity = 100
	}
	target := o.TargetExecutionTime
	if target <= 0 {
		target = 5 * time.Second
	}

	switch {
	case complexity > 2*maxComplexity || estimated > 2*target || bottleneckCount > 4:
		return RiskCritical
	case complexity > maxComplexity || estimated > target || bottleneckCount > 2:
		return RiskHigh
	case complexity > 0.7*maxComplexity || estimated > time.Duration(0.7*float64(target)) || bottleneckCount > 0:
		return RiskMedium
	default:
		return RiskLow
	}
}

// OptimizationStrategy is one mutation or suggestion OptimizePlan applied
// or proposed.
type OptimizationStrategy struct {
	Kind        string
	Description string
}

// OptimizePlan mutates the plan toward the optimizer's thresholds and
// returns a record of every change and suggestion it made. Callers should
// call BuildExecutionPhases again after OptimizePlan reorders nodes.
func (o *QueryOptimizer) OptimizePlan(plan *QueryPlan) ([]OptimizationStrategy, error) {
	var strategies []OptimizationStrategy

	if plan.ComplexityScore() > o.MaxComplexity {
		for _, id := range plan.sortedNodeIDs() {
			node := plan.Nodes[id]
			if !node.ParallelSafe && len(node.Constraints) == 0 {
				node.ParallelSafe = true
				strategies = append(strategies, OptimizationStrategy{
					Kind:        "relax_parallel_safety",
					Description: fmt.Sprintf("marked node %s parallel-safe to reduce sequential phase count", node.ID),
				})
			}
		}
		if err := plan.BuildExecutionPhases(); err != nil {
			return nil, err
		}
	}

	estimated := o.estimateExecutionTime(plan)
	if estimated > o.TargetExecutionTime {
		sort.SliceStable(plan.ExecutionPhases, func(i, j int) bool {
			return phaseRowSum(plan, plan.ExecutionPhases[i]) < phaseRowSum(plan, plan.ExecutionPhases[j])
		})
		strategies = append(strategies, OptimizationStrategy{
			Kind:        "reorder_phases",
			Description: "reordered phases by ascending estimated row sum",
		})
	}

	seenTables := make(map[string]struct{})
	for _, id := range plan.sortedNodeIDs() {
		node := plan.Nodes[id]
		if _, ok := seenTables[node.Table]; ok {
			continue
		}
		seenTables[node.Table] = struct{}{}
		strategies = append(strategies, OptimizationStrategy{
			Kind:        "suggest_index",
			Description: fmt.Sprintf("CREATE INDEX idx_%s_id ON %s (id)", node.Table, node.Table),
		})
		if node.ForeignKey != nil {
			strategies = append(strategies, OptimizationStrategy{
				Kind:        "suggest_index",
				Description: fmt.Sprintf("CREATE INDEX idx_%s_%s ON %s (%s)", node.Table, *node.ForeignKey, node.Table, *node.ForeignKey),
			})
		}
	}

	return strategies, nil
}

func phaseRowSum(plan *QueryPlan, phase []string) int {
	sum := 0
	for _, id := range phase {
		sum += plan.Nodes[id].EstimatedRows
	}
	return sum
}
