package grvl

import (
	"container/heap"
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"
)

const (
	// DefaultSnapDistance is the largest distance (meters) between requested point and graph node
	DefaultSnapDistance = 100.0
	// DefaultMaxExpansions is node expansion budget of a single search
	DefaultMaxExpansions = 10000

	cancelCheckInterval = 256
)

// PathStatus is outcome of path search
type PathStatus uint16

const (
	PATH_FOUND = PathStatus(iota)
	NO_PATH_EMPTY_GRAPH
	NO_PATH_START_SNAP
	NO_PATH_END_SNAP
	NO_PATH_UNREACHABLE
	NO_PATH_BUDGET_EXHAUSTED
	NO_PATH_CANCELED
)

func (iotaIdx PathStatus) String() string {
	return [...]string{"found", "empty graph", "start is too far from roads", "end is too far from roads", "unreachable", "expansion budget exhausted", "canceled"}[iotaIdx]
}

// PlanResult is outcome of route planning. Status tells why there is no path
type PlanResult struct {
	Status PathStatus
	// Path starts and ends with requested points (when they differ from snapped nodes)
	Path  []GeoPoint
	Nodes []int64
	Edges []*Edge
	// Elevations is parallel to Path. NaN marks unknown value
	Elevations []float64
	// Distance is physical length of the path (meters)
	Distance float64
	// Cost is quality weighted length of the path
	Cost       float64
	Expansions int

	PavedDistance          float64
	UnpavedDistance        float64
	UnknownSurfaceDistance float64
	// SteepestPoint is where the steepest matched road climbs most. Valid when SteepestSlope is known
	SteepestPoint  GeoPoint
	SteepestSlope  float64
	Segments       []*RouteSegment
	Classification *Classification

	startOffGraph bool
	endOffGraph   bool
}

// Found checks if path exists
func (result *PlanResult) Found() bool {
	return result.Status == PATH_FOUND
}

func (result *PlanResult) String() string {
	if !result.Found() {
		return fmt.Sprintf("No path: %s", result.Status)
	}
	return fmt.Sprintf("Path: %d points | %.0f m | paved %.0f m | unpaved %.0f m | unknown %.0f m",
		len(result.Path), result.Distance, result.PavedDistance, result.UnpavedDistance, result.UnknownSurfaceDistance)
}

// Planner finds quality biased paths on road graphs
type Planner struct {
	snapDistance  float64
	maxExpansions int
	matcher       *RoadMatcher
	logger        *zap.Logger
}

// PlannerOption configures Planner
type PlannerOption func(*Planner)

// WithSnapDistance sets the largest snapping distance (meters)
func WithSnapDistance(distance float64) PlannerOption {
	return func(planner *Planner) {
		if distance > 0 {
			planner.snapDistance = distance
		}
	}
}

// WithMaxExpansions sets node expansion budget
func WithMaxExpansions(expansions int) PlannerOption {
	return func(planner *Planner) {
		if expansions > 0 {
			planner.maxExpansions = expansions
		}
	}
}

// WithPlannerMatcher sets matcher used for path metrics
func WithPlannerMatcher(matcher *RoadMatcher) PlannerOption {
	return func(planner *Planner) {
		planner.matcher = matcher
	}
}

// WithPlannerLogger sets logger
func WithPlannerLogger(logger *zap.Logger) PlannerOption {
	return func(planner *Planner) {
		planner.logger = logger
	}
}

// NewPlanner creates planner
func NewPlanner(options ...PlannerOption) *Planner {
	planner := &Planner{
		snapDistance:  DefaultSnapDistance,
		maxExpansions: DefaultMaxExpansions,
		matcher:       NewRoadMatcher(MatcherConfig{}),
		logger:        zap.L(),
	}
	for _, option := range options {
		option(planner)
	}
	return planner
}

// Plan builds graph from roads and searches path between start and end
func (planner *Planner) Plan(ctx context.Context, start, end GeoPoint, roads []*Road) *PlanResult {
	return planner.PlanOnGraph(ctx, start, end, BuildGraph(roads))
}

// PlanOnGraph searches path on prepared graph. Never fails: absence of path is reported by result status
func (planner *Planner) PlanOnGraph(ctx context.Context, start, end GeoPoint, wg *WeightedGraph) *PlanResult {
	if wg == nil || wg.NodesCount() == 0 {
		return &PlanResult{Status: NO_PATH_EMPTY_GRAPH, SteepestSlope: SlopeUnknown}
	}
	source, _ := wg.Nearest(start, planner.snapDistance)
	if source == nil {
		return &PlanResult{Status: NO_PATH_START_SNAP, SteepestSlope: SlopeUnknown}
	}
	target, _ := wg.Nearest(end, planner.snapDistance)
	if target == nil {
		return &PlanResult{Status: NO_PATH_END_SNAP, SteepestSlope: SlopeUnknown}
	}

	result := planner.search(ctx, wg, source, target)
	planner.logger.Debug("path search finished",
		zap.String("status", result.Status.String()),
		zap.Int("expansions", result.Expansions),
		zap.Int("nodes", wg.NodesCount()),
	)
	if !result.Found() {
		return result
	}

	result.Path = make([]GeoPoint, 0, len(result.Nodes)+2)
	if start != source.Point {
		result.Path = append(result.Path, start)
		result.startOffGraph = true
	}
	for _, id := range result.Nodes {
		result.Path = append(result.Path, wg.Node(id).Point)
	}
	if end != target.Point {
		result.Path = append(result.Path, end)
		result.endOffGraph = true
	}
	result.Distance = getSphericalLength(result.Path)
	planner.Describe(result, wg.Roads())
	return result
}

// search is A* over graph nodes. Heuristic is haversine distance scaled by the best score factor
func (planner *Planner) search(ctx context.Context, wg *WeightedGraph, source, target *Node) *PlanResult {
	result := &PlanResult{SteepestSlope: SlopeUnknown}
	n := wg.NodesCount()
	gScore := make([]float64, n)
	parent := make([]int64, n)
	closed := make([]bool, n)
	for i := range gScore {
		gScore[i] = math.Inf(1)
		parent[i] = -1
	}
	maxFactor := wg.MaxScoreFactor()
	heuristic := func(node *Node) float64 {
		return greatCircleDistance(node.Point, target.Point) / maxFactor
	}

	open := &openSet{}
	gScore[source.id] = 0
	heap.Push(open, openItem{id: source.id, g: 0, f: heuristic(source)})
	for open.Len() > 0 {
		if result.Expansions%cancelCheckInterval == 0 && ctx.Err() != nil {
			result.Status = NO_PATH_CANCELED
			return result
		}
		item := heap.Pop(open).(openItem)
		if closed[item.id] {
			continue
		}
		if item.id == target.id {
			result.Status = PATH_FOUND
			result.Cost = gScore[target.id]
			result.Nodes = reconstructPath(parent, target.id)
			result.Edges = make([]*Edge, 0, len(result.Nodes))
			for i := 1; i < len(result.Nodes); i++ {
				result.Edges = append(result.Edges, wg.EdgeBetween(result.Nodes[i-1], result.Nodes[i]))
			}
			return result
		}
		closed[item.id] = true
		result.Expansions++
		if result.Expansions > planner.maxExpansions {
			result.Status = NO_PATH_BUDGET_EXHAUSTED
			return result
		}
		for _, edge := range wg.Neighbours(item.id) {
			next := edge.T.id
			if closed[next] {
				continue
			}
			tentative := gScore[item.id] + edge.Cost
			if tentative < gScore[next] {
				gScore[next] = tentative
				parent[next] = item.id
				heap.Push(open, openItem{id: next, g: tentative, f: tentative + heuristic(edge.T)})
			}
		}
	}
	result.Status = NO_PATH_UNREACHABLE
	return result
}

func reconstructPath(parent []int64, target int64) []int64 {
	path := []int64{}
	for id := target; id != -1; id = parent[id] {
		path = append(path, id)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Describe re-walks found path against roads and fills surface split, steepest point, classification and elevations
func (planner *Planner) Describe(result *PlanResult, roads []*Road) {
	if !result.Found() {
		return
	}
	result.PavedDistance = 0
	result.UnpavedDistance = 0
	result.UnknownSurfaceDistance = 0
	result.SteepestSlope = SlopeUnknown
	result.Segments = make([]*RouteSegment, 0, len(result.Path))

	var steepest *Road
	for i := 1; i < len(result.Path); i++ {
		distance := greatCircleDistance(result.Path[i-1], result.Path[i])
		if distance < minSegmentLength {
			continue
		}
		seg := &RouteSegment{
			Index:    len(result.Segments),
			Start:    result.Path[i-1],
			End:      result.Path[i],
			Distance: distance,
			Slope:    SlopeUnknown,
		}
		if match := planner.matcher.Match(seg, roads); match != nil {
			seg.assignRoad(match.Road, match.Score)
		}
		result.Segments = append(result.Segments, seg)

		switch {
		case seg.Road == nil || seg.Road.Surface() == "":
			result.UnknownSurfaceDistance += distance
		case isPavedSurface(seg.Road.Surface()):
			result.PavedDistance += distance
		default:
			result.UnpavedDistance += distance
		}
		if seg.Road != nil && seg.Road.HasSlope() && (steepest == nil || seg.Road.MaxSlope > steepest.MaxSlope) {
			steepest = seg.Road
		}
	}
	if steepest != nil {
		result.SteepestSlope = steepest.MaxSlope
		if pt, ok := steepest.steepestPoint(); ok {
			result.SteepestPoint = pt
		} else {
			result.SteepestPoint = steepest.Points[0]
		}
	}
	result.Classification = Classify(result.Segments)
	result.Elevations = pathElevations(result)
}

// pathElevations takes elevation of path nodes from roads of adjacent edges
func pathElevations(result *PlanResult) []float64 {
	elevations := make([]float64, len(result.Path))
	for i := range elevations {
		elevations[i] = math.NaN()
	}
	byKey := make(map[nodeKey]float64)
	for _, edge := range result.Edges {
		if edge == nil || edge.Road == nil || len(edge.Road.Elevations) != len(edge.Road.Points) {
			continue
		}
		for j, pt := range edge.Road.Points {
			key := newNodeKey(pt)
			if _, ok := byKey[key]; !ok {
				byKey[key] = edge.Road.Elevations[j]
			}
		}
	}
	for i, pt := range result.Path {
		if e, ok := byKey[newNodeKey(pt)]; ok {
			elevations[i] = e
		}
	}
	// requested points off the graph inherit elevation of adjacent node
	if n := len(elevations); n > 1 {
		if result.startOffGraph {
			elevations[0] = elevations[1]
		}
		if result.endOffGraph {
			elevations[n-1] = elevations[n-2]
		}
	}
	return elevations
}

type openItem struct {
	id int64
	g  float64
	f  float64
}

// openSet is binary heap ordered by f, then by g descending (deeper nodes first)
type openSet []openItem

func (set openSet) Len() int { return len(set) }

func (set openSet) Less(i, j int) bool {
	if set[i].f == set[j].f {
		return set[i].g > set[j].g
	}
	return set[i].f < set[j].f
}

func (set openSet) Swap(i, j int) { set[i], set[j] = set[j], set[i] }

func (set *openSet) Push(x any) { *set = append(*set, x.(openItem)) }

func (set *openSet) Pop() any {
	old := *set
	n := len(old)
	item := old[n-1]
	*set = old[:n-1]
	return item
}
