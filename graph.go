package grvl

import (
	"math"
	"sort"

	"github.com/LdDl/ch"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/graph/simple"
)

// WeightedGraph is undirected road graph with quality biased edge weights
type WeightedGraph struct {
	g         *simple.WeightedUndirectedGraph
	nodes     []*Node
	keys      map[nodeKey]*Node
	index     *spatialIndex
	roads     []*Road
	maxFactor float64
}

// NewWeightedGraph returns empty graph
func NewWeightedGraph() *WeightedGraph {
	return &WeightedGraph{
		g:         simple.NewWeightedUndirectedGraph(0, math.Inf(1)),
		keys:      make(map[nodeKey]*Node),
		index:     newSpatialIndex(),
		maxFactor: 1.0,
	}
}

// BuildGraph creates graph from given roads using their current scores
func BuildGraph(roads []*Road) *WeightedGraph {
	wg := NewWeightedGraph()
	for _, road := range roads {
		wg.AddRoad(road)
	}
	return wg
}

// AddRoad adds every consecutive pair of road vertices as undirected edge.
// Degenerate pairs are skipped; of parallel edges the cheaper one is kept
func (wg *WeightedGraph) AddRoad(road *Road) {
	if road == nil || len(road.Points) < 2 {
		return
	}
	wg.roads = append(wg.roads, road)
	wg.maxFactor = math.Max(wg.maxFactor, scoreFactor(road.Score))
	prev := wg.node(road.Points[0])
	for i := 1; i < len(road.Points); i++ {
		next := wg.node(road.Points[i])
		if next.id == prev.id {
			continue
		}
		distance := greatCircleDistance(road.Points[i-1], road.Points[i])
		cost := edgeCost(distance, road.Score)
		if existing, ok := wg.g.Weight(prev.id, next.id); !ok || cost < existing {
			wg.g.SetWeightedEdge(&Edge{
				F:        prev,
				T:        next,
				Distance: distance,
				Cost:     cost,
				Road:     road,
			})
		}
		prev = next
	}
}

// node returns node for given point creating it when needed
func (wg *WeightedGraph) node(pt GeoPoint) *Node {
	key := newNodeKey(pt)
	if node, ok := wg.keys[key]; ok {
		node.useCount++
		return node
	}
	node := &Node{
		id:       int64(len(wg.nodes)),
		Point:    pt,
		useCount: 1,
	}
	wg.keys[key] = node
	wg.nodes = append(wg.nodes, node)
	wg.g.AddNode(node)
	wg.index.insert(node)
	return node
}

// NodesCount returns number of nodes
func (wg *WeightedGraph) NodesCount() int {
	return len(wg.nodes)
}

// EdgesCount returns number of undirected edges
func (wg *WeightedGraph) EdgesCount() int {
	return wg.g.WeightedEdges().Len()
}

// Node returns node by its identifier
func (wg *WeightedGraph) Node(id int64) *Node {
	if id < 0 || id >= int64(len(wg.nodes)) {
		return nil
	}
	return wg.nodes[id]
}

// Roads returns roads the graph has been built from
func (wg *WeightedGraph) Roads() []*Road {
	return wg.roads
}

// MaxScoreFactor returns the largest score factor over graph roads
func (wg *WeightedGraph) MaxScoreFactor() float64 {
	return wg.maxFactor
}

// Nearest returns node closest to pt within maxDistance (meters)
func (wg *WeightedGraph) Nearest(pt GeoPoint, maxDistance float64) (*Node, float64) {
	return wg.index.nearest(pt, maxDistance)
}

// Neighbours returns edges leaving given node. Each edge starts at the node
func (wg *WeightedGraph) Neighbours(id int64) []*Edge {
	it := wg.g.From(id)
	result := make([]*Edge, 0, it.Len())
	for it.Next() {
		edge := wg.g.WeightedEdgeBetween(id, it.Node().ID())
		if edge == nil {
			continue
		}
		result = append(result, edge.(*Edge))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].T.id < result[j].T.id
	})
	return result
}

// EdgeBetween returns edge from u to v or nil
func (wg *WeightedGraph) EdgeBetween(u, v int64) *Edge {
	edge := wg.g.WeightedEdgeBetween(u, v)
	if edge == nil {
		return nil
	}
	return edge.(*Edge)
}

// Edges returns every undirected edge once, ordered by node identifiers
func (wg *WeightedGraph) Edges() []*Edge {
	it := wg.g.WeightedEdges()
	result := make([]*Edge, 0, it.Len())
	for it.Next() {
		edge := it.WeightedEdge().(*Edge)
		if edge.F.id > edge.T.id {
			edge = edge.ReversedEdge().(*Edge)
		}
		result = append(result, edge)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].F.id == result[j].F.id {
			return result[i].T.id < result[j].T.id
		}
		return result[i].F.id < result[j].F.id
	})
	return result
}

// ContractionGraph exports graph into contraction hierarchies graph. Every undirected edge becomes two arcs
func (wg *WeightedGraph) ContractionGraph() (*ch.Graph, error) {
	graph := ch.Graph{}
	for _, node := range wg.nodes {
		err := graph.CreateVertex(node.id)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't create vertex %d", node.id)
		}
	}
	for _, edge := range wg.Edges() {
		err := graph.AddEdge(edge.F.id, edge.T.id, edge.Cost)
		if err != nil {
			return nil, errors.Wrap(err, "Can't wrap source and target vertices as edge")
		}
		err = graph.AddEdge(edge.T.id, edge.F.id, edge.Cost)
		if err != nil {
			return nil, errors.Wrap(err, "Can't wrap target and source vertices as edge")
		}
	}
	return &graph, nil
}
